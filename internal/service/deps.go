package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// Actor 是经过认证的调用方
type Actor struct {
	UserID uint
	Role   domain.UserRole
}

// HostPolicy 集中处理房主与系统角色的权限判断。
type HostPolicy struct {
	// OfficialGating 开启后只有官方房间对普通用户可见可加入，系统角色可以推进任意房间的状态。
	OfficialGating bool
}

// CanHost 房主或系统角色可以主持游戏、选择游戏和发布公告
func (p HostPolicy) CanHost(actor Actor, room *domain.Room) bool {
	return room.IsOwner(actor.UserID) || actor.Role.IsSystem()
}

// CanTransition 判断能否开始或结束房间
func (p HostPolicy) CanTransition(actor Actor, room *domain.Room) bool {
	return room.IsOwner(actor.UserID) || (p.OfficialGating && actor.Role.IsSystem())
}

// CanAccess 判断房间对调用方是否可见、可加入
func (p HostPolicy) CanAccess(actor Actor, room *domain.Room) bool {
	return !p.OfficialGating || room.IsOfficial || room.IsOwner(actor.UserID) || actor.Role.IsSystem()
}

// Randomizer 是随机数来源，Intn 返回 [0, n) 内的整数。
type Randomizer interface {
	Intn(n int) int
}

type defaultRandomizer struct{}

func (defaultRandomizer) Intn(n int) int {
	return rand.IntN(n)
}

// NewRandomizer 返回基于 math/rand/v2 的并发安全实现
func NewRandomizer() Randomizer {
	return defaultRandomizer{}
}

// Clock 返回当前时间
type Clock func() time.Time

// Broadcaster 将事件推送给房间频道的订阅者，投递失败由实现自行记录。
type Broadcaster interface {
	Broadcast(ctx context.Context, event dto.RoomEvent)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, dto.RoomEvent) {}

// AuditSink 接收审计记录，写入失败不影响业务操作。
type AuditSink interface {
	Record(ctx context.Context, entry domain.AuditLog)
}

// StoreAuditSink 直接写入审计表
type StoreAuditSink struct {
	repo repository.AuditRepository
}

func NewStoreAuditSink(repo repository.AuditRepository) *StoreAuditSink {
	if repo == nil {
		panic("AuditRepository cannot be nil for StoreAuditSink")
	}
	return &StoreAuditSink{repo: repo}
}

func (s *StoreAuditSink) Record(ctx context.Context, entry domain.AuditLog) {
	if err := s.repo.Save(ctx, &entry); err != nil {
		logrus.WithError(err).WithField("action", entry.Action).Warn("Failed to write audit log")
	}
}

// RoomLocker 提供按 key 互斥的锁，unlock 可以重复调用。
type RoomLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalRoomLocker 是进程内的 RoomLocker 实现
type LocalRoomLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalRoomLocker() *LocalRoomLocker {
	return &LocalRoomLocker{locks: make(map[string]*keyedLock)}
}

func (l *LocalRoomLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}
}

func (l *LocalRoomLocker) release(key string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func roomLockKey(roomID uint) string { return fmt.Sprintf("room:%d", roomID) }
func userLockKey(userID uint) string { return fmt.Sprintf("user:%d", userID) }
func gameLockKey(roomID uint) string { return fmt.Sprintf("game:%d", roomID) }

// TokenGenerator 生成分享链接 token
type TokenGenerator func() (string, error)

func defaultTokenGenerator() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// DefaultSilenceDuration 是骰子禁言惩罚的默认时长
const DefaultSilenceDuration = 30 * time.Second

// Deps 是各个房间服务共享的依赖。零值字段在 NewDeps 中补上默认实现。
type Deps struct {
	Store           repository.Store
	Locker          RoomLocker
	Broadcaster     Broadcaster
	Audit           AuditSink
	Policy          HostPolicy
	Random          Randomizer
	Clock           Clock
	Tokens          TokenGenerator
	SilenceDuration time.Duration
	ShareBaseURL    string
}

// NewDeps 校验并补全依赖
func NewDeps(d Deps) *Deps {
	if d.Store == nil {
		panic("Store cannot be nil for room services")
	}
	if d.Locker == nil {
		d.Locker = NewLocalRoomLocker()
	}
	if d.Broadcaster == nil {
		d.Broadcaster = nopBroadcaster{}
	}
	if d.Audit == nil {
		d.Audit = NewStoreAuditSink(d.Store.Audits())
	}
	if d.Random == nil {
		d.Random = NewRandomizer()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Tokens == nil {
		d.Tokens = defaultTokenGenerator
	}
	if d.SilenceDuration <= 0 {
		d.SilenceDuration = DefaultSilenceDuration
	}
	return &d
}

func (d *Deps) now() time.Time {
	return d.Clock().UTC()
}

// lock 依次获取多个锁，失败时释放已获取的锁。调用方需按 user -> room -> game 的顺序传入。
func (d *Deps) lock(ctx context.Context, keys ...string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := d.Locker.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}

func (d *Deps) audit(ctx context.Context, actorID uint, action, targetType string, targetID uint, metadata map[string]interface{}) {
	entry := domain.NewAuditLog(actorID, action, targetType, fmt.Sprint(targetID), metadata)
	entry.CreatedAt = d.now()
	d.Audit.Record(ctx, entry)
}

func (d *Deps) broadcast(ctx context.Context, eventType string, roomID uint, payload interface{}) {
	event := dto.NewRoomEvent(eventType, roomID, payload)
	event.At = d.now()
	d.Broadcaster.Broadcast(ctx, event)
}

// broadcastMemberCounts 为每个房间广播最新的活跃人数
func (d *Deps) broadcastMemberCounts(ctx context.Context, roomIDs ...uint) {
	seen := make(map[uint]bool, len(roomIDs))
	for _, roomID := range roomIDs {
		if roomID == 0 || seen[roomID] {
			continue
		}
		seen[roomID] = true
		count, err := d.Store.Memberships().CountActive(ctx, roomID)
		if err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to count members for broadcast")
			continue
		}
		d.broadcast(ctx, dto.EventMemberCount, roomID, dto.MemberCountPayload{Count: count})
	}
}

// broadcastMemberLeft 通知这些房间 userID 已经离开
func (d *Deps) broadcastMemberLeft(ctx context.Context, userID uint, reason string, roomIDs ...uint) {
	for _, roomID := range roomIDs {
		d.broadcast(ctx, dto.EventMemberLeft, roomID, dto.MemberLeftPayload{UserID: userID, Reason: reason})
	}
}

// loadRoom 读取房间，未找到时返回 ErrRoomNotFound
func loadRoom(ctx context.Context, store repository.Store, logCtx *logrus.Entry, roomID uint) (*domain.Room, error) {
	room, err := store.Rooms().FindByID(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, mapRepoError(logCtx, err, "Failed to load room")
	}
	return room, nil
}

// activeMembership 返回用户在房间内的活跃成员记录，不存在或已离开时返回 ErrNotMember
func activeMembership(ctx context.Context, store repository.Store, logCtx *logrus.Entry, roomID, userID uint) (*domain.RoomMembership, error) {
	membership, err := store.Memberships().Find(ctx, roomID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotMember
		}
		return nil, mapRepoError(logCtx, err, "Failed to load membership")
	}
	if !membership.IsActive() {
		return nil, ErrNotMember
	}
	return membership, nil
}
