package repository

import (
	"context"

	"party-rooms/internal/domain"
)

// GameStateRepository 负责 room_game_states 表。
type GameStateRepository interface {
	// Get 读取房间的游戏状态行。不存在时返回 ErrGameStateNotFound。
	Get(ctx context.Context, roomID uint) (*domain.RoomGameState, error)

	// GetForUpdate 与 Get 相同，但在事务内对该行加锁。
	GetForUpdate(ctx context.Context, roomID uint) (*domain.RoomGameState, error)

	// Create 插入新行。房间已有状态时返回 ErrDuplicateEntry。
	Create(ctx context.Context, state *domain.RoomGameState) error

	// Save 以 state.Version 为期望版本写入，成功后 Version 加一。
	// 版本不匹配时返回 ErrOptimisticLock。
	Save(ctx context.Context, state *domain.RoomGameState) error
}
