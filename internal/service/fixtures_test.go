package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	memorypersistence "party-rooms/internal/infra/persistence/memory"
	"party-rooms/internal/service"
)

// recordingBroadcaster 记录所有广播事件
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []dto.RoomEvent
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, event dto.RoomEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) ofType(eventType string) []dto.RoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []dto.RoomEvent
	for _, e := range b.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// scriptedRandom 依次返回预设的值，用完后返回 0。
type scriptedRandom struct {
	mu     sync.Mutex
	values []int
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

func (r *scriptedRandom) push(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, values...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx        context.Context
	store      *memorypersistence.MemoryStore
	deps       *service.Deps
	events     *recordingBroadcaster
	random     *scriptedRandom
	clock      *fakeClock
	rooms      *service.RoomService
	membership *service.MembershipService
	dice       *service.DiceService
	oneThing   *service.OneThingService
	selection  *service.GameSelectionService
	messages   *service.MessageService
	realtime   *service.RealtimeService
}

func newFixture(t *testing.T, mutate ...func(*service.Deps)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		store:  memorypersistence.NewMemoryStore(),
		events: &recordingBroadcaster{},
		random: &scriptedRandom{},
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)},
	}
	deps := service.Deps{
		Store:        f.store,
		Broadcaster:  f.events,
		Random:       f.random,
		Clock:        f.clock.Now,
		ShareBaseURL: "https://rooms.example.com/s",
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.deps = service.NewDeps(deps)
	f.rooms = service.NewRoomService(f.deps)
	f.membership = service.NewMembershipService(f.deps)
	f.dice = service.NewDiceService(f.deps)
	f.oneThing = service.NewOneThingService(f.deps)
	f.selection = service.NewGameSelectionService(f.deps)
	f.messages = service.NewMessageService(f.deps)
	f.realtime = service.NewRealtimeService(f.deps, f.messages)
	return f
}

func (f *fixture) user(t *testing.T, name string, role domain.UserRole) service.Actor {
	t.Helper()
	user := &domain.User{Username: name, Password: "x", Nickname: name, Role: role}
	require.NoError(t, f.store.Users().Save(f.ctx, user))
	return service.Actor{UserID: user.ID, Role: user.Role}
}

func (f *fixture) users(t *testing.T, n int) []service.Actor {
	t.Helper()
	actors := make([]service.Actor, 0, n)
	for i := 0; i < n; i++ {
		actors = append(actors, f.user(t, fmt.Sprintf("user%d", i), domain.RoleUser))
	}
	return actors
}

func (f *fixture) createRoom(t *testing.T, owner service.Actor, capacity *int) uint {
	t.Helper()
	view, err := f.rooms.CreateRoom(f.ctx, owner, dto.CreateRoomRequest{Title: "Friday night", Capacity: capacity})
	require.NoError(t, err)
	return view.ID
}

func (f *fixture) join(t *testing.T, actor service.Actor, roomID uint) {
	t.Helper()
	_, err := f.rooms.JoinRoom(f.ctx, actor, roomID, domain.MemberModeParticipant)
	require.NoError(t, err)
}

// chat 写入双向私聊，使两人互为邀请候选
func (f *fixture) chat(a, b service.Actor) {
	conversation := a.UserID*1000 + b.UserID
	f.store.SeedDirectMessage(domain.DirectMessage{ConversationID: conversation, SenderID: a.UserID, Content: "hi"})
	f.store.SeedDirectMessage(domain.DirectMessage{ConversationID: conversation, SenderID: b.UserID, Content: "hey"})
}

func (f *fixture) activeRooms(userID uint) []uint {
	var rooms []uint
	for _, m := range f.store.AllMemberships() {
		if m.UserID == userID && m.LeftAt == nil {
			rooms = append(rooms, m.RoomID)
		}
	}
	return rooms
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func countsFor(events []dto.RoomEvent, roomID uint) []int64 {
	var counts []int64
	for _, e := range events {
		if e.RoomID == roomID {
			counts = append(counts, e.Payload.(dto.MemberCountPayload).Count)
		}
	}
	return counts
}
