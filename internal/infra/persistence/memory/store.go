// Package memorypersistence 提供进程内的 repository.Store 实现，用于本地开发和测试。
package memorypersistence

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

type memoryData struct {
	seq            uint
	users          map[uint]domain.User
	rooms          map[uint]domain.Room
	memberships    map[uint]domain.RoomMembership
	gameStates     map[uint]domain.RoomGameState
	invites        map[uint]domain.RoomInvite
	joinRequests   map[uint]domain.RoomJoinRequest
	shareLinks     map[uint]domain.RoomShareLink
	traces         map[uint]domain.Trace
	messages       map[uint]domain.RoomMessage
	directMessages map[uint]domain.DirectMessage
	audits         map[uint]domain.AuditLog
}

func newMemoryData() *memoryData {
	return &memoryData{
		users:          make(map[uint]domain.User),
		rooms:          make(map[uint]domain.Room),
		memberships:    make(map[uint]domain.RoomMembership),
		gameStates:     make(map[uint]domain.RoomGameState),
		invites:        make(map[uint]domain.RoomInvite),
		joinRequests:   make(map[uint]domain.RoomJoinRequest),
		shareLinks:     make(map[uint]domain.RoomShareLink),
		traces:         make(map[uint]domain.Trace),
		messages:       make(map[uint]domain.RoomMessage),
		directMessages: make(map[uint]domain.DirectMessage),
		audits:         make(map[uint]domain.AuditLog),
	}
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		seq:            d.seq,
		users:          maps.Clone(d.users),
		rooms:          maps.Clone(d.rooms),
		memberships:    maps.Clone(d.memberships),
		gameStates:     maps.Clone(d.gameStates),
		invites:        maps.Clone(d.invites),
		joinRequests:   maps.Clone(d.joinRequests),
		shareLinks:     maps.Clone(d.shareLinks),
		traces:         maps.Clone(d.traces),
		messages:       maps.Clone(d.messages),
		directMessages: maps.Clone(d.directMessages),
		audits:         maps.Clone(d.audits),
	}
}

func (d *memoryData) nextID() uint {
	d.seq++
	return d.seq
}

// sortedByID 按主键升序返回 map 中的值
func sortedByID[V any](m map[uint]V) []V {
	values := make([]V, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		values = append(values, m[id])
	}
	return values
}

// MemoryStore 是 repository.Store 的内存实现。
// 事务持有全局锁并在数据副本上执行，成功后整体替换，失败时丢弃副本。
type MemoryStore struct {
	mu   *sync.Mutex
	data *memoryData
	inTx bool
}

var _ repository.Store = (*MemoryStore)(nil)

// NewMemoryStore 创建一个空的 MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, data: newMemoryData()}
}

// guard 在事务外加锁，事务内锁已由 Transaction 持有。
func (s *MemoryStore) guard() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{mu: s.mu, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) Users() repository.UserRepository                 { return memUsers{s} }
func (s *MemoryStore) Rooms() repository.RoomRepository                 { return memRooms{s} }
func (s *MemoryStore) Memberships() repository.MembershipRepository     { return memMemberships{s} }
func (s *MemoryStore) GameStates() repository.GameStateRepository       { return memGameStates{s} }
func (s *MemoryStore) Invites() repository.InviteRepository             { return memInvites{s} }
func (s *MemoryStore) JoinRequests() repository.JoinRequestRepository   { return memJoinRequests{s} }
func (s *MemoryStore) ShareLinks() repository.ShareLinkRepository       { return memShareLinks{s} }
func (s *MemoryStore) Traces() repository.TraceRepository               { return memTraces{s} }
func (s *MemoryStore) Messages() repository.RoomMessageRepository       { return memMessages{s} }
func (s *MemoryStore) Conversations() repository.ConversationRepository { return memConversations{s} }
func (s *MemoryStore) Audits() repository.AuditRepository               { return memAudits{s} }

// SeedDirectMessage 写入一条私聊消息，供邀请资格计算使用。
func (s *MemoryStore) SeedDirectMessage(msg domain.DirectMessage) domain.DirectMessage {
	defer s.guard()()
	if msg.ID == 0 {
		msg.ID = s.data.nextID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.data.directMessages[msg.ID] = msg
	return msg
}

// AllTraces 返回全部动态，按 ID 升序。
func (s *MemoryStore) AllTraces() []domain.Trace {
	defer s.guard()()
	return sortedByID(s.data.traces)
}

// AllAuditLogs 返回全部审计记录，按 ID 升序。
func (s *MemoryStore) AllAuditLogs() []domain.AuditLog {
	defer s.guard()()
	return sortedByID(s.data.audits)
}

// AllMemberships 返回全部成员记录，按 ID 升序。
func (s *MemoryStore) AllMemberships() []domain.RoomMembership {
	defer s.guard()()
	return sortedByID(s.data.memberships)
}
