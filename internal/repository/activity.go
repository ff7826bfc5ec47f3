package repository

import (
	"context"

	"party-rooms/internal/domain"
)

type TraceRepository interface {
	Create(ctx context.Context, trace *domain.Trace) error
}

type RoomMessageRepository interface {
	Create(ctx context.Context, message *domain.RoomMessage) error
	// List 返回 ID 小于 beforeID 的最近 limit 条消息，按 ID 升序。beforeID 为 0 表示从最新开始。
	List(ctx context.Context, roomID uint, beforeID uint, limit int) ([]domain.RoomMessage, error)
}

// ConversationRepository 提供邀请资格所需的私聊查询。
type ConversationRepository interface {
	// MutualPartnerIDs 返回与 userID 在同一会话中互相发过未删除消息的用户 ID。
	MutualPartnerIDs(ctx context.Context, userID uint) ([]uint, error)
}

type AuditRepository interface {
	Save(ctx context.Context, entry *domain.AuditLog) error
}
