package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// RoomService 负责房间的创建、查询、加入离开和状态流转。
type RoomService struct {
	deps *Deps
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(deps *Deps) *RoomService {
	if deps == nil {
		panic("Deps cannot be nil for RoomService")
	}
	return &RoomService{deps: deps}
}

// CreateRoom 创建房间并让创建者以 OWNER 身份进入，同时离开其他房间。
func (s *RoomService) CreateRoom(ctx context.Context, actor Actor, req dto.CreateRoomRequest) (*dto.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "operation": "create_room"})

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrInvalidInput
	}
	if req.Capacity != nil && *req.Capacity < domain.MinRoomCapacity {
		logCtx.WithField("capacity", *req.Capacity).Warn("Create room rejected: invalid capacity")
		return nil, ErrInvalidCapacity
	}

	now := s.deps.now()
	room := &domain.Room{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		CreatedByID:     actor.UserID,
		AllowSpectators: true,
		Capacity:        req.Capacity,
	}
	if req.AllowSpectators != nil {
		room.AllowSpectators = *req.AllowSpectators
	}
	if err := room.SetTags(normalizeTags(req.Tags)); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to encode room tags")
	}

	if actor.Role == domain.RoleOfficial {
		if req.Status == nil || *req.Status == "" {
			return nil, ErrStatusRequired
		}
		status := domain.RoomStatus(strings.ToUpper(*req.Status))
		if status != domain.RoomStatusScheduled && status != domain.RoomStatusLive {
			return nil, ErrInvalidStatus
		}
		room.Status = status
		room.IsOfficial = true
		room.StartsAt = req.StartsAt
		room.EndsAt = req.EndsAt
		if status == domain.RoomStatusLive && room.StartsAt == nil {
			room.StartsAt = &now
		}
	} else {
		room.Status = domain.RoomStatusLive
		room.StartsAt = &now
	}

	unlock, err := s.deps.lock(ctx, userLockKey(actor.UserID))
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to acquire user lock")
	}
	defer unlock()

	var vacated []uint
	var owner domain.RoomMembership
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Rooms().Create(ctx, room); err != nil {
			return err
		}
		closed, err := tx.Memberships().CloseActiveExcept(ctx, actor.UserID, room.ID, now)
		if err != nil {
			return err
		}
		vacated = closed
		owner = domain.RoomMembership{
			RoomID:   room.ID,
			UserID:   actor.UserID,
			Role:     domain.MemberRoleOwner,
			Mode:     domain.MemberModeParticipant,
			JoinedAt: now,
		}
		if err := tx.Memberships().Upsert(ctx, &owner); err != nil {
			return err
		}
		state := &domain.RoomGameState{RoomID: room.ID}
		if err := state.SetState(domain.NewGameState()); err != nil {
			return err
		}
		return tx.GameStates().Create(ctx, state)
	})
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to create room")
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "vacated_rooms": vacated}).Info("Room created")
	s.deps.broadcastMemberCounts(ctx, vacated...)
	s.deps.broadcastMemberLeft(ctx, actor.UserID, dto.LeftReasonSwitched, vacated...)
	s.deps.audit(ctx, actor.UserID, "room.create", "room", room.ID, map[string]interface{}{"status": room.Status})

	view := dto.NewRoomView(*room, 1)
	membershipView := dto.NewMembershipView(owner)
	view.Membership = &membershipView
	return &view, nil
}

func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return normalized
}

// ListRooms 列出房间，statuses 为空时返回 SCHEDULED 和 LIVE 的房间。
func (s *RoomService) ListRooms(ctx context.Context, actor Actor, statuses []string, limit, offset int) ([]dto.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "operation": "list_rooms"})

	filter := repository.RoomFilter{
		OfficialOnly: s.deps.Policy.OfficialGating && !actor.Role.IsSystem(),
		Limit:        limit,
		Offset:       offset,
	}
	for _, raw := range statuses {
		status := domain.RoomStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !status.IsValid() {
			return nil, ErrInvalidStatus
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.RoomStatus{domain.RoomStatusScheduled, domain.RoomStatusLive}
	}

	rooms, err := s.deps.Store.Rooms().List(ctx, filter)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list rooms")
	}
	ids := make([]uint, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	counts, err := s.deps.Store.Memberships().CountActiveByRooms(ctx, ids)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to count room members")
	}

	views := make([]dto.RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, dto.NewRoomView(room, counts[room.ID]))
	}
	return views, nil
}

// GetRoom 返回房间详情、人数以及调用方在该房间的成员记录。
func (s *RoomService) GetRoom(ctx context.Context, actor Actor, roomID uint) (*dto.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "get_room"})

	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if !s.deps.Policy.CanAccess(actor, room) {
		return nil, ErrRoomNotAvailable
	}
	count, err := s.deps.Store.Memberships().CountActive(ctx, roomID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to count room members")
	}
	view := dto.NewRoomView(*room, count)

	membership, err := s.deps.Store.Memberships().Find(ctx, roomID, actor.UserID)
	switch {
	case err == nil:
		membershipView := dto.NewMembershipView(*membership)
		view.Membership = &membershipView
	case !isNotFound(err):
		return nil, mapRepoError(logCtx, err, "Failed to load membership")
	}
	return &view, nil
}

// MemberCount 返回房间的活跃人数
func (s *RoomService) MemberCount(ctx context.Context, roomID uint) (int64, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "member_count"})
	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return 0, err
	}
	count, err := s.deps.Store.Memberships().CountActive(ctx, roomID)
	if err != nil {
		return 0, mapRepoError(logCtx, err, "Failed to count room members")
	}
	return count, nil
}

// ListMembers 返回房间的活跃成员及其昵称
func (s *RoomService) ListMembers(ctx context.Context, roomID uint) ([]dto.MembershipView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "list_members"})
	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return nil, err
	}
	memberships, err := s.deps.Store.Memberships().ListActive(ctx, roomID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list members")
	}
	userIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.deps.Store.Users().FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to load member profiles")
	}
	names := make(map[uint]string, len(users))
	for _, user := range users {
		names[user.ID] = user.DisplayName()
	}

	views := make([]dto.MembershipView, 0, len(memberships))
	for _, m := range memberships {
		view := dto.NewMembershipView(m)
		view.Nickname = names[m.UserID]
		views = append(views, view)
	}
	return views, nil
}

// JoinRoom 以指定模式加入房间，并离开用户所在的其他房间。
func (s *RoomService) JoinRoom(ctx context.Context, actor Actor, roomID uint, mode domain.MemberMode) (*dto.MembershipView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "join_room"})

	if mode == "" {
		mode = domain.MemberModeParticipant
	}
	if !mode.IsValid() {
		return nil, ErrInvalidMode
	}

	unlock, err := s.deps.lock(ctx, userLockKey(actor.UserID), roomLockKey(roomID))
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to acquire join locks")
	}
	defer unlock()

	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}
	if !s.deps.Policy.CanAccess(actor, room) {
		return nil, ErrRoomNotAvailable
	}
	if mode == domain.MemberModeObserver && !room.AllowSpectators {
		return nil, ErrSpectatorsNotAllowed
	}

	var result admission
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		result, err = admit(ctx, tx, room, actor.UserID, mode, s.deps.now())
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRoomFull) {
			logCtx.Warn("Join rejected: room is full")
		}
		return nil, mapRepoError(logCtx, err, "Failed to join room")
	}

	afterAdmission(ctx, s.deps, actor.UserID, room.ID, result, "room.join")
	logCtx.WithFields(logrus.Fields{"joined": result.joined, "vacated_rooms": result.vacated}).Info("User joined room")
	view := dto.NewMembershipView(result.membership)
	return &view, nil
}

// admission 是一次入房操作的结果
type admission struct {
	membership domain.RoomMembership
	vacated    []uint
	joined     bool
}

// admit 在事务内让用户进入房间：已在房间内时只关闭其他房间的成员记录，
// 否则检查容量、关闭其他记录并写入新记录。调用方需持有 user 和 room 锁。
func admit(ctx context.Context, tx repository.Store, room *domain.Room, userID uint, mode domain.MemberMode, now time.Time) (admission, error) {
	var result admission
	existing, err := tx.Memberships().Find(ctx, room.ID, userID)
	if err != nil && !isNotFound(err) {
		return result, err
	}
	if existing != nil && existing.IsActive() {
		vacated, err := tx.Memberships().CloseActiveExcept(ctx, userID, room.ID, now)
		if err != nil {
			return result, err
		}
		result.membership = *existing
		result.vacated = vacated
		return result, nil
	}

	count, err := tx.Memberships().CountActive(ctx, room.ID)
	if err != nil {
		return result, err
	}
	if room.IsFull(count) {
		return result, ErrRoomFull
	}

	vacated, err := tx.Memberships().CloseActiveExcept(ctx, userID, room.ID, now)
	if err != nil {
		return result, err
	}
	membership := domain.RoomMembership{
		RoomID:   room.ID,
		UserID:   userID,
		Role:     domain.MemberRoleMember,
		Mode:     mode,
		JoinedAt: now,
	}
	if existing != nil {
		membership.Role = existing.Role
	}
	if err := tx.Memberships().Upsert(ctx, &membership); err != nil {
		return result, err
	}
	result.membership = membership
	result.vacated = vacated
	result.joined = true
	return result, nil
}

// afterAdmission 在事务提交后广播人数变化并记录审计
func afterAdmission(ctx context.Context, deps *Deps, userID, roomID uint, result admission, action string) {
	if result.joined {
		deps.broadcastMemberCounts(ctx, append([]uint{roomID}, result.vacated...)...)
		deps.audit(ctx, userID, action, "room", roomID, map[string]interface{}{"mode": result.membership.Mode})
	} else {
		deps.broadcastMemberCounts(ctx, result.vacated...)
	}
	deps.broadcastMemberLeft(ctx, userID, dto.LeftReasonSwitched, result.vacated...)
	for _, vacated := range result.vacated {
		deps.audit(ctx, userID, "room.leave", "room", vacated, map[string]interface{}{"reason": dto.LeftReasonSwitched})
	}
}

// LeaveRoom 将用户在房间的成员记录标记为离开
func (s *RoomService) LeaveRoom(ctx context.Context, actor Actor, roomID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "leave_room"})

	err := s.deps.Store.Memberships().Close(ctx, roomID, actor.UserID, s.deps.now())
	if err != nil {
		if isNotFound(err) {
			logCtx.Warn("Leave rejected: membership not found")
			return ErrMembershipNotFound
		}
		return mapRepoError(logCtx, err, "Failed to leave room")
	}

	logCtx.Info("User left room")
	s.deps.broadcastMemberCounts(ctx, roomID)
	s.deps.broadcastMemberLeft(ctx, actor.UserID, dto.LeftReasonLeft, roomID)
	s.deps.audit(ctx, actor.UserID, "room.leave", "room", roomID, nil)
	return nil
}

// StartRoom 将房间从 SCHEDULED 推进到 LIVE
func (s *RoomService) StartRoom(ctx context.Context, actor Actor, roomID uint) (*dto.RoomView, error) {
	return s.transition(ctx, actor, roomID, domain.RoomStatusScheduled, domain.RoomStatusLive, ErrRoomNotScheduled)
}

// EndRoom 将房间从 LIVE 推进到 ENDED
func (s *RoomService) EndRoom(ctx context.Context, actor Actor, roomID uint) (*dto.RoomView, error) {
	return s.transition(ctx, actor, roomID, domain.RoomStatusLive, domain.RoomStatusEnded, ErrRoomNotLive)
}

func (s *RoomService) transition(ctx context.Context, actor Actor, roomID uint, from, to domain.RoomStatus, illegal *Error) (*dto.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "transition", "to": to})

	unlock, err := s.deps.lock(ctx, roomLockKey(roomID))
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to acquire room lock")
	}
	defer unlock()

	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if !s.deps.Policy.CanTransition(actor, room) {
		logCtx.Warn("Transition rejected: not allowed")
		return nil, ErrForbidden
	}
	if room.Status != from {
		logCtx.WithField("status", room.Status).Warn("Transition rejected: illegal status")
		return nil, illegal
	}

	now := s.deps.now()
	room.Status = to
	if to == domain.RoomStatusLive {
		room.StartsAt = &now
	} else {
		room.EndsAt = &now
	}
	if err := s.deps.Store.Rooms().Save(ctx, room); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to save room status")
	}
	count, err := s.deps.Store.Memberships().CountActive(ctx, roomID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to count room members")
	}

	logCtx.Info("Room status changed")
	s.deps.broadcast(ctx, dto.EventStatusChanged, roomID, dto.StatusChangedPayload{Status: to, StartsAt: room.StartsAt, EndsAt: room.EndsAt})
	action := "room.start"
	if to == domain.RoomStatusEnded {
		action = "room.end"
	}
	s.deps.audit(ctx, actor.UserID, action, "room", roomID, nil)

	view := dto.NewRoomView(*room, count)
	return &view, nil
}
