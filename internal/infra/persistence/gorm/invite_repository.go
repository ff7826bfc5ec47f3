package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

// GormInviteRepository 是 InviteRepository 接口的 GORM 实现
type GormInviteRepository struct {
	db *gorm.DB
}

func NewGormInviteRepository(db *gorm.DB) *GormInviteRepository {
	if db == nil {
		panic("database connection cannot be nil for GormInviteRepository")
	}
	return &GormInviteRepository{db: db}
}

func (r *GormInviteRepository) FindByID(ctx context.Context, id uint) (*domain.RoomInvite, error) {
	var invite domain.RoomInvite
	if err := r.db.WithContext(ctx).First(&invite, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrInviteNotFound
		}
		return nil, fmt.Errorf("gorm: find invite by id %d: %w", id, err)
	}
	return &invite, nil
}

func (r *GormInviteRepository) FindPending(ctx context.Context, roomID, inviteeID uint) (*domain.RoomInvite, error) {
	var invite domain.RoomInvite
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND invitee_id = ? AND status = ?", roomID, inviteeID, domain.InviteStatusPending).
		Order("id DESC").
		First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrInviteNotFound
		}
		return nil, fmt.Errorf("gorm: find pending invite (room: %d, invitee: %d): %w", roomID, inviteeID, err)
	}
	return &invite, nil
}

func (r *GormInviteRepository) ListPendingByInvitee(ctx context.Context, inviteeID uint) ([]domain.RoomInvite, error) {
	invites := []domain.RoomInvite{}
	err := r.db.WithContext(ctx).
		Where("invitee_id = ? AND status = ?", inviteeID, domain.InviteStatusPending).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list pending invites for user %d: %w", inviteeID, err)
	}
	return invites, nil
}

func (r *GormInviteRepository) Create(ctx context.Context, invite *domain.RoomInvite) error {
	if err := r.db.WithContext(ctx).Create(invite).Error; err != nil {
		return fmt.Errorf("gorm: create invite (room: %d, invitee: %d): %w", invite.RoomID, invite.InviteeID, err)
	}
	return nil
}

func (r *GormInviteRepository) Save(ctx context.Context, invite *domain.RoomInvite) error {
	if err := r.db.WithContext(ctx).Save(invite).Error; err != nil {
		return fmt.Errorf("gorm: save invite %d: %w", invite.ID, err)
	}
	return nil
}

// GormJoinRequestRepository 是 JoinRequestRepository 接口的 GORM 实现
type GormJoinRequestRepository struct {
	db *gorm.DB
}

func NewGormJoinRequestRepository(db *gorm.DB) *GormJoinRequestRepository {
	if db == nil {
		panic("database connection cannot be nil for GormJoinRequestRepository")
	}
	return &GormJoinRequestRepository{db: db}
}

func (r *GormJoinRequestRepository) Find(ctx context.Context, roomID, userID uint) (*domain.RoomJoinRequest, error) {
	var request domain.RoomJoinRequest
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJoinRequestNotFound
		}
		return nil, fmt.Errorf("gorm: find join request (room: %d, user: %d): %w", roomID, userID, err)
	}
	return &request, nil
}

func (r *GormJoinRequestRepository) FindByID(ctx context.Context, id uint) (*domain.RoomJoinRequest, error) {
	var request domain.RoomJoinRequest
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJoinRequestNotFound
		}
		return nil, fmt.Errorf("gorm: find join request by id %d: %w", id, err)
	}
	return &request, nil
}

func (r *GormJoinRequestRepository) ListByRoom(ctx context.Context, roomID uint, status domain.JoinRequestStatus) ([]domain.RoomJoinRequest, error) {
	requests := []domain.RoomJoinRequest{}
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("updated_at ASC").Order("id ASC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("gorm: list join requests of room %d: %w", roomID, err)
	}
	return requests, nil
}

func (r *GormJoinRequestRepository) Upsert(ctx context.Context, request *domain.RoomJoinRequest) error {
	request.Status = domain.JoinRequestPending
	request.DecidedAt = nil
	request.DecidedByID = nil
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":        domain.JoinRequestPending,
			"decided_by_id": nil,
			"decided_at":    nil,
			"updated_at":    time.Now(),
		}),
	}).Create(request).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert join request (room: %d, user: %d): %w", request.RoomID, request.UserID, err)
	}
	stored, err := r.Find(ctx, request.RoomID, request.UserID)
	if err != nil {
		return err
	}
	*request = *stored
	return nil
}

func (r *GormJoinRequestRepository) Save(ctx context.Context, request *domain.RoomJoinRequest) error {
	if err := r.db.WithContext(ctx).Save(request).Error; err != nil {
		return fmt.Errorf("gorm: save join request %d: %w", request.ID, err)
	}
	return nil
}

// GormShareLinkRepository 是 ShareLinkRepository 接口的 GORM 实现
type GormShareLinkRepository struct {
	db *gorm.DB
}

func NewGormShareLinkRepository(db *gorm.DB) *GormShareLinkRepository {
	if db == nil {
		panic("database connection cannot be nil for GormShareLinkRepository")
	}
	return &GormShareLinkRepository{db: db}
}

func (r *GormShareLinkRepository) Create(ctx context.Context, link *domain.RoomShareLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrShareTokenTaken
		}
		return fmt.Errorf("gorm: create share link for room %d: %w", link.RoomID, err)
	}
	return nil
}

func (r *GormShareLinkRepository) FindByToken(ctx context.Context, token string) (*domain.RoomShareLink, error) {
	var link domain.RoomShareLink
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrShareLinkNotFound
		}
		return nil, fmt.Errorf("gorm: find share link by token: %w", err)
	}
	return &link, nil
}

func (r *GormShareLinkRepository) FindByID(ctx context.Context, id uint) (*domain.RoomShareLink, error) {
	var link domain.RoomShareLink
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrShareLinkNotFound
		}
		return nil, fmt.Errorf("gorm: find share link by id %d: %w", id, err)
	}
	return &link, nil
}

func (r *GormShareLinkRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomShareLink, error) {
	links := []domain.RoomShareLink{}
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("gorm: list share links of room %d: %w", roomID, err)
	}
	return links, nil
}

func (r *GormShareLinkRepository) Revoke(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomShareLink{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if result.Error != nil {
		return fmt.Errorf("gorm: revoke share link %d: %w", id, result.Error)
	}
	return nil
}

func (r *GormShareLinkRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("(expires_at IS NOT NULL AND expires_at < ?) OR (revoked_at IS NOT NULL AND revoked_at < ?)", before, before).
		Delete(&domain.RoomShareLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete stale share links: %w", result.Error)
	}
	return result.RowsAffected, nil
}
