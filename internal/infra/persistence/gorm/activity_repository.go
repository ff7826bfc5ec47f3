package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"party-rooms/internal/domain"
)

type GormTraceRepository struct {
	db *gorm.DB
}

func NewGormTraceRepository(db *gorm.DB) *GormTraceRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTraceRepository")
	}
	return &GormTraceRepository{db: db}
}

func (r *GormTraceRepository) Create(ctx context.Context, trace *domain.Trace) error {
	if err := r.db.WithContext(ctx).Create(trace).Error; err != nil {
		return fmt.Errorf("gorm: create trace: %w", err)
	}
	return nil
}

type GormRoomMessageRepository struct {
	db *gorm.DB
}

func NewGormRoomMessageRepository(db *gorm.DB) *GormRoomMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomMessageRepository")
	}
	return &GormRoomMessageRepository{db: db}
}

func (r *GormRoomMessageRepository) Create(ctx context.Context, message *domain.RoomMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("gorm: create message in room %d: %w", message.RoomID, err)
	}
	return nil
}

// List 先按 ID 倒序取最近的 limit 条，再翻转成升序返回。
func (r *GormRoomMessageRepository) List(ctx context.Context, roomID uint, beforeID uint, limit int) ([]domain.RoomMessage, error) {
	messages := []domain.RoomMessage{}
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	if err := query.Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("gorm: list messages of room %d: %w", roomID, err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GormConversationRepository 基于 direct_messages 计算互聊关系
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormConversationRepository")
	}
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) MutualPartnerIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).
		Table("direct_messages AS mine").
		Joins("JOIN direct_messages AS theirs ON theirs.conversation_id = mine.conversation_id").
		Where("mine.sender_id = ? AND theirs.sender_id <> ?", userID, userID).
		Where("mine.deleted_at IS NULL AND theirs.deleted_at IS NULL").
		Distinct("theirs.sender_id").
		Pluck("theirs.sender_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find mutual conversation partners of user %d: %w", userID, err)
	}
	return ids, nil
}

type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAuditRepository")
	}
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Save(ctx context.Context, entry *domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("gorm: save audit log '%s': %w", entry.Action, err)
	}
	return nil
}
