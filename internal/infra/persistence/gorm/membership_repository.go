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

// GormMembershipRepository 是 MembershipRepository 接口的 GORM 实现
type GormMembershipRepository struct {
	db *gorm.DB
}

func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMembershipRepository")
	}
	return &GormMembershipRepository{db: db}
}

func (r *GormMembershipRepository) Find(ctx context.Context, roomID, userID uint) (*domain.RoomMembership, error) {
	var membership domain.RoomMembership
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("gorm: find membership (room: %d, user: %d): %w", roomID, userID, err)
	}
	return &membership, nil
}

func (r *GormMembershipRepository) FindActiveByUser(ctx context.Context, userID uint) (*domain.RoomMembership, error) {
	var membership domain.RoomMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND left_at IS NULL", userID).
		Order("joined_at DESC").
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("gorm: find active membership for user %d: %w", userID, err)
	}
	return &membership, nil
}

func (r *GormMembershipRepository) CountActive(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active members of room %d: %w", roomID, err)
	}
	return count, nil
}

func (r *GormMembershipRepository) CountActiveByRooms(ctx context.Context, roomIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		RoomID uint
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Select("room_id, COUNT(*) AS total").
		Where("room_id IN ? AND left_at IS NULL", roomIDs).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: count active members by rooms: %w", err)
	}
	for _, row := range rows {
		counts[row.RoomID] = row.Total
	}
	return counts, nil
}

func (r *GormMembershipRepository) ListActive(ctx context.Context, roomID uint) ([]domain.RoomMembership, error) {
	memberships := []domain.RoomMembership{}
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Order("joined_at ASC").Order("id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list active members of room %d: %w", roomID, err)
	}
	return memberships, nil
}

func (r *GormMembershipRepository) CloseActiveExcept(ctx context.Context, userID, exceptRoomID uint, at time.Time) ([]uint, error) {
	var roomIDs []uint
	scope := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Where("user_id = ? AND room_id <> ? AND left_at IS NULL", userID, exceptRoomID)
	if err := scope.Pluck("room_id", &roomIDs).Error; err != nil {
		return nil, fmt.Errorf("gorm: find other active memberships for user %d: %w", userID, err)
	}
	if len(roomIDs) == 0 {
		return roomIDs, nil
	}
	err := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Where("user_id = ? AND room_id IN ? AND left_at IS NULL", userID, roomIDs).
		Update("left_at", at).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: close other active memberships for user %d: %w", userID, err)
	}
	return roomIDs, nil
}

// Upsert 依赖 (room_id, user_id) 唯一索引，冲突时覆盖角色、模式和时间。
func (r *GormMembershipRepository) Upsert(ctx context.Context, membership *domain.RoomMembership) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "mode", "joined_at", "left_at"}),
	}).Create(membership).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert membership (room: %d, user: %d): %w", membership.RoomID, membership.UserID, err)
	}
	// MySQL 在冲突更新时不会回填主键
	stored, err := r.Find(ctx, membership.RoomID, membership.UserID)
	if err != nil {
		return err
	}
	*membership = *stored
	return nil
}

func (r *GormMembershipRepository) Close(ctx context.Context, roomID, userID uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("left_at", at)
	if result.Error != nil {
		return fmt.Errorf("gorm: close membership (room: %d, user: %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMembershipNotFound
	}
	return nil
}

func (r *GormMembershipRepository) UpdateMode(ctx context.Context, roomID, userID uint, mode domain.MemberMode) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("mode", mode)
	if result.Error != nil {
		return fmt.Errorf("gorm: update membership mode (room: %d, user: %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMembershipNotFound
	}
	return nil
}
