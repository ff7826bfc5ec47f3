package repository

import (
	"context"
	"time"

	"party-rooms/internal/domain"
)

type InviteRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.RoomInvite, error)
	// FindPending 返回同一房间对同一用户的待处理邀请。
	FindPending(ctx context.Context, roomID, inviteeID uint) (*domain.RoomInvite, error)
	ListPendingByInvitee(ctx context.Context, inviteeID uint) ([]domain.RoomInvite, error)
	Create(ctx context.Context, invite *domain.RoomInvite) error
	Save(ctx context.Context, invite *domain.RoomInvite) error
}

type JoinRequestRepository interface {
	Find(ctx context.Context, roomID, userID uint) (*domain.RoomJoinRequest, error)
	FindByID(ctx context.Context, id uint) (*domain.RoomJoinRequest, error)
	// ListByRoom 返回指定状态的申请，status 为空时返回全部。
	ListByRoom(ctx context.Context, roomID uint, status domain.JoinRequestStatus) ([]domain.RoomJoinRequest, error)
	// Upsert 按 (RoomID, UserID) 插入，已存在时重置为 PENDING 并清空审批信息。
	Upsert(ctx context.Context, request *domain.RoomJoinRequest) error
	Save(ctx context.Context, request *domain.RoomJoinRequest) error
}

type ShareLinkRepository interface {
	// Create 插入分享链接，token 冲突时返回 ErrShareTokenTaken。
	Create(ctx context.Context, link *domain.RoomShareLink) error
	FindByToken(ctx context.Context, token string) (*domain.RoomShareLink, error)
	FindByID(ctx context.Context, id uint) (*domain.RoomShareLink, error)
	ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomShareLink, error)
	Revoke(ctx context.Context, id uint, at time.Time) error
	// DeleteStale 删除在 before 之前过期或撤销的链接，返回删除数量。
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
