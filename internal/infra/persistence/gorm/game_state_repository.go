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

// GormGameStateRepository 是 GameStateRepository 接口的 GORM 实现
type GormGameStateRepository struct {
	db *gorm.DB
}

func NewGormGameStateRepository(db *gorm.DB) *GormGameStateRepository {
	if db == nil {
		panic("database connection cannot be nil for GormGameStateRepository")
	}
	return &GormGameStateRepository{db: db}
}

func (r *GormGameStateRepository) Get(ctx context.Context, roomID uint) (*domain.RoomGameState, error) {
	return r.find(r.db.WithContext(ctx), roomID)
}

// GetForUpdate 使用 SELECT ... FOR UPDATE，只在事务内有意义。
func (r *GormGameStateRepository) GetForUpdate(ctx context.Context, roomID uint) (*domain.RoomGameState, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), roomID)
}

func (r *GormGameStateRepository) find(db *gorm.DB, roomID uint) (*domain.RoomGameState, error) {
	var state domain.RoomGameState
	err := db.Where("room_id = ?", roomID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGameStateNotFound
		}
		return nil, fmt.Errorf("gorm: find game state for room %d: %w", roomID, err)
	}
	return &state, nil
}

func (r *GormGameStateRepository) Create(ctx context.Context, state *domain.RoomGameState) error {
	if err := r.db.WithContext(ctx).Create(state).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create game state for room %d: %w", state.RoomID, err)
	}
	return nil
}

// Save 只在 version 未变化时写入。
func (r *GormGameStateRepository) Save(ctx context.Context, state *domain.RoomGameState) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.RoomGameState{}).
		Where("id = ? AND version = ?", state.ID, state.Version).
		Updates(map[string]interface{}{
			"data":           state.Data,
			"schema_version": state.SchemaVersion,
			"version":        state.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: save game state for room %d: %w", state.RoomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrOptimisticLock
	}
	state.Version++
	state.UpdatedAt = now
	return nil
}
