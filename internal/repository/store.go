package repository

import "context"

// Store 聚合所有存储库，并提供事务边界。
// Transaction 回调中的 tx 只在回调期间有效，回调返回错误时所有写入回滚。
type Store interface {
	Users() UserRepository
	Rooms() RoomRepository
	Memberships() MembershipRepository
	GameStates() GameStateRepository
	Invites() InviteRepository
	JoinRequests() JoinRequestRepository
	ShareLinks() ShareLinkRepository
	Traces() TraceRepository
	Messages() RoomMessageRepository
	Conversations() ConversationRepository
	Audits() AuditRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
