package repository

import (
	"context"

	"party-rooms/internal/domain"
)

// RoomFilter 是房间列表的查询条件
type RoomFilter struct {
	Statuses     []domain.RoomStatus
	OfficialOnly bool
	Limit        int
	Offset       int
}

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// Create 插入新房间，并回填 ID。
	Create(ctx context.Context, room *domain.Room) error

	// Save 更新已有房间。
	Save(ctx context.Context, room *domain.Room) error

	// List 按创建时间倒序返回满足条件的房间。
	List(ctx context.Context, filter RoomFilter) ([]domain.Room, error)
}
