package repository

import (
	"context"
	"time"

	"party-rooms/internal/domain"
)

// MembershipRepository 负责 room_memberships 表。
// 调用方需要在事务中组合 CloseActiveExcept 与 Upsert，以维持每个用户只有一条活跃记录。
type MembershipRepository interface {
	// Find 返回 (roomID, userID) 对应的记录，不论是否活跃。
	Find(ctx context.Context, roomID, userID uint) (*domain.RoomMembership, error)

	// FindActiveByUser 返回用户当前的活跃记录。没有时返回 ErrMembershipNotFound。
	FindActiveByUser(ctx context.Context, userID uint) (*domain.RoomMembership, error)

	CountActive(ctx context.Context, roomID uint) (int64, error)

	// CountActiveByRooms 返回每个房间的活跃人数，没有成员的房间不出现在结果中。
	CountActiveByRooms(ctx context.Context, roomIDs []uint) (map[uint]int64, error)

	// ListActive 按加入时间返回房间的活跃成员。
	ListActive(ctx context.Context, roomID uint) ([]domain.RoomMembership, error)

	// CloseActiveExcept 关闭用户在 exceptRoomID 以外的所有活跃记录，返回受影响的房间 ID。
	CloseActiveExcept(ctx context.Context, userID, exceptRoomID uint, at time.Time) ([]uint, error)

	// Upsert 按 (RoomID, UserID) 插入或覆盖 Role/Mode/JoinedAt/LeftAt。
	Upsert(ctx context.Context, membership *domain.RoomMembership) error

	// Close 设置 LeftAt。记录不存在时返回 ErrMembershipNotFound。
	Close(ctx context.Context, roomID, userID uint, at time.Time) error

	UpdateMode(ctx context.Context, roomID, userID uint, mode domain.MemberMode) error
}
