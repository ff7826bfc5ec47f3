package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("gorm: create room '%s': %w", room.Title, err)
	}
	return nil
}

func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Save(room).Error; err != nil {
		return fmt.Errorf("gorm: save room (id: %d): %w", room.ID, err)
	}
	return nil
}

func (r *GormRoomRepository) List(ctx context.Context, filter repository.RoomFilter) ([]domain.Room, error) {
	rooms := []domain.Room{}
	query := r.db.WithContext(ctx).Model(&domain.Room{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.OfficialOnly {
		query = query.Where("is_official = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("gorm: list rooms: %w", err)
	}
	return rooms, nil
}
