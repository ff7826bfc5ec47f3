package service

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// OneThingEmojis 是允许的回应表情
var OneThingEmojis = []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}

const maxOneThingContent = 200

// OneThingService 管理"一件事"分享活动：每人分享一次，其他人可以用表情回应。
type OneThingService struct {
	deps *Deps
}

// NewOneThingService 创建 OneThingService 实例。
func NewOneThingService(deps *Deps) *OneThingService {
	if deps == nil {
		panic("Deps cannot be nil for OneThingService")
	}
	return &OneThingService{deps: deps}
}

type oneThingStep func(actor *domain.RoomMembership, room *domain.Room, state *domain.OneThingState, now time.Time) error

func (s *OneThingService) Get(ctx context.Context, actor Actor, roomID uint) (*domain.OneThingState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "one_thing_get"})

	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return nil, err
	}
	if _, err := memberOrSystem(ctx, s.deps, logCtx, actor, roomID); err != nil {
		return nil, err
	}
	state, err := readGameState(ctx, s.deps, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	return &state.OneThing, nil
}

// Start 由任意活跃成员开启，清空上一次的分享与回应。
func (s *OneThingService) Start(ctx context.Context, actor Actor, roomID uint) (*domain.OneThingState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "one_thing_start"})

	return s.run(ctx, actor, roomID, logCtx, func(_ *domain.RoomMembership, _ *domain.Room, state *domain.OneThingState, now time.Time) error {
		if state.Status == domain.OneThingActive {
			return ErrOneThingAlreadyActive
		}
		starter := actor.UserID
		state.Status = domain.OneThingActive
		state.StartedAt = &now
		state.StartedBy = &starter
		state.Shares = []domain.OneThingShare{}
		state.Reactions = []domain.OneThingReaction{}
		return nil
	})
}

// Share 由参与者提交一次分享，内容去除首尾空白后为 1 到 200 个字符。
func (s *OneThingService) Share(ctx context.Context, actor Actor, roomID uint, content string) (*domain.OneThingState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "one_thing_share"})

	return s.run(ctx, actor, roomID, logCtx, func(member *domain.RoomMembership, _ *domain.Room, state *domain.OneThingState, now time.Time) error {
		if member.Mode != domain.MemberModeParticipant {
			return ErrNotParticipant
		}
		if state.Status != domain.OneThingActive {
			return ErrOneThingNotActive
		}
		if state.HasShared(actor.UserID) {
			return ErrOneThingAlreadyShared
		}
		content = strings.TrimSpace(content)
		if n := utf8.RuneCountInString(content); n == 0 || n > maxOneThingContent {
			return ErrOneThingInvalidContent
		}
		state.Shares = append(state.Shares, domain.OneThingShare{UserID: actor.UserID, Content: content, CreatedAt: now})
		return nil
	})
}

// React 为已有分享追加表情回应，同一对用户可以回应多次。
func (s *OneThingService) React(ctx context.Context, actor Actor, roomID uint, req dto.OneThingReactRequest) (*domain.OneThingState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "one_thing_react"})

	return s.run(ctx, actor, roomID, logCtx, func(_ *domain.RoomMembership, _ *domain.Room, state *domain.OneThingState, now time.Time) error {
		if state.Status != domain.OneThingActive {
			return ErrOneThingNotActive
		}
		if !slices.Contains(OneThingEmojis, req.Emoji) {
			return ErrOneThingInvalidEmoji
		}
		if !state.HasShared(req.TargetUserID) {
			return ErrOneThingTargetNotShare
		}
		state.Reactions = append(state.Reactions, domain.OneThingReaction{
			UserID:       actor.UserID,
			TargetUserID: req.TargetUserID,
			Emoji:        req.Emoji,
			CreatedAt:    now,
		})
		return nil
	})
}

// Finish 由发起人或房主结束活动，分享和回应保留到下一次开始。
func (s *OneThingService) Finish(ctx context.Context, actor Actor, roomID uint) (*domain.OneThingState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "one_thing_finish"})

	return s.run(ctx, actor, roomID, logCtx, func(_ *domain.RoomMembership, room *domain.Room, state *domain.OneThingState, _ time.Time) error {
		if state.Status != domain.OneThingActive {
			return ErrOneThingNotActive
		}
		isStarter := state.StartedBy != nil && *state.StartedBy == actor.UserID
		if !isStarter && !s.deps.Policy.CanHost(actor, room) {
			return ErrForbidden
		}
		state.Status = domain.OneThingIdle
		return nil
	})
}

func (s *OneThingService) run(ctx context.Context, actor Actor, roomID uint, logCtx *logrus.Entry, step oneThingStep) (*domain.OneThingState, error) {
	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}

	state, err := mutateGameState(ctx, s.deps, logCtx, roomID, func(tx repository.Store, state *domain.GameState) error {
		member, err := tx.Memberships().Find(ctx, roomID, actor.UserID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotMember
			}
			return err
		}
		if !member.IsActive() {
			return ErrNotMember
		}
		if err := step(member, room, &state.OneThing, s.deps.now()); err != nil {
			return err
		}
		state.GameType = domain.GameTypeOneThing
		return nil
	})
	if err != nil {
		if code := ErrorCode(err); code != ErrInternalServer.Code && code != ErrConflict.Code {
			logCtx.WithField("code", code).Warn("One-thing action rejected")
		}
		return nil, err
	}

	s.deps.broadcast(ctx, dto.EventOneThingUpdated, roomID, state.OneThing)
	return &state.OneThing, nil
}
