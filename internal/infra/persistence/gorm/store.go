// Package gormpersistence 提供基于 GORM 的存储实现，支持 MySQL 和 PostgreSQL。
package gormpersistence

import (
	"context"

	"gorm.io/gorm"

	"party-rooms/internal/repository"
)

// GormStore 是 repository.Store 的 GORM 实现。
// 事务内的 GormStore 共享同一个 *gorm.DB 事务句柄。
type GormStore struct {
	db            *gorm.DB
	users         *GormUserRepository
	rooms         *GormRoomRepository
	memberships   *GormMembershipRepository
	gameStates    *GormGameStateRepository
	invites       *GormInviteRepository
	joinRequests  *GormJoinRequestRepository
	shareLinks    *GormShareLinkRepository
	traces        *GormTraceRepository
	messages      *GormRoomMessageRepository
	conversations *GormConversationRepository
	audits        *GormAuditRepository
}

var _ repository.Store = (*GormStore)(nil)

// NewGormStore 创建 GormStore 实例
func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("database connection cannot be nil for GormStore")
	}
	return &GormStore{
		db:            db,
		users:         NewGormUserRepository(db),
		rooms:         NewGormRoomRepository(db),
		memberships:   NewGormMembershipRepository(db),
		gameStates:    NewGormGameStateRepository(db),
		invites:       NewGormInviteRepository(db),
		joinRequests:  NewGormJoinRequestRepository(db),
		shareLinks:    NewGormShareLinkRepository(db),
		traces:        NewGormTraceRepository(db),
		messages:      NewGormRoomMessageRepository(db),
		conversations: NewGormConversationRepository(db),
		audits:        NewGormAuditRepository(db),
	}
}

func (s *GormStore) Users() repository.UserRepository                 { return s.users }
func (s *GormStore) Rooms() repository.RoomRepository                 { return s.rooms }
func (s *GormStore) Memberships() repository.MembershipRepository     { return s.memberships }
func (s *GormStore) GameStates() repository.GameStateRepository       { return s.gameStates }
func (s *GormStore) Invites() repository.InviteRepository             { return s.invites }
func (s *GormStore) JoinRequests() repository.JoinRequestRepository   { return s.joinRequests }
func (s *GormStore) ShareLinks() repository.ShareLinkRepository       { return s.shareLinks }
func (s *GormStore) Traces() repository.TraceRepository               { return s.traces }
func (s *GormStore) Messages() repository.RoomMessageRepository       { return s.messages }
func (s *GormStore) Conversations() repository.ConversationRepository { return s.conversations }
func (s *GormStore) Audits() repository.AuditRepository               { return s.audits }

// Transaction 在一个数据库事务中执行 fn，fn 返回错误时回滚。
func (s *GormStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
