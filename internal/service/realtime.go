package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/dto"
)

// RealtimeService 处理 WebSocket 连接的鉴权、初始快照和客户端上行消息。
type RealtimeService struct {
	deps     *Deps
	messages *MessageService
}

func NewRealtimeService(deps *Deps, messages *MessageService) *RealtimeService {
	if deps == nil {
		panic("Deps cannot be nil for RealtimeService")
	}
	if messages == nil {
		panic("MessageService cannot be nil for RealtimeService")
	}
	return &RealtimeService{deps: deps, messages: messages}
}

// Authorize 确认调用方可以订阅房间频道：活跃成员或系统角色
func (s *RealtimeService) Authorize(ctx context.Context, actor Actor, roomID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "authorize_channel"})
	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return err
	}
	_, err := memberOrSystem(ctx, s.deps, logCtx, actor, roomID)
	return err
}

// Snapshot 返回新连接需要的初始状态
func (s *RealtimeService) Snapshot(ctx context.Context, roomID uint) (dto.RoomEvent, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "snapshot"})

	count, err := s.deps.Store.Memberships().CountActive(ctx, roomID)
	if err != nil {
		return dto.RoomEvent{}, mapRepoError(logCtx, err, "Failed to count members for snapshot")
	}
	state, err := readGameState(ctx, s.deps, logCtx, roomID)
	if err != nil {
		return dto.RoomEvent{}, err
	}
	event := dto.NewRoomEvent(dto.EventSnapshot, roomID, dto.SnapshotPayload{
		MemberCount: count,
		Selected:    dto.NewSelectedGamePayload(state.Selected),
	})
	event.At = s.deps.now()
	return event, nil
}

// HandleClientMessage 处理客户端上行消息。返回的错误只发回给发送者。
func (s *RealtimeService) HandleClientMessage(ctx context.Context, actor Actor, roomID uint, msg dto.ClientMessage) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "client_message", "type": msg.Type})

	switch msg.Type {
	case dto.ClientChat:
		_, err := s.messages.Send(ctx, actor, roomID, msg.Content)
		return err
	case dto.ClientNotice:
		return s.notice(ctx, actor, roomID, msg.Content, logCtx)
	case dto.ClientPing:
		if _, err := activeMembership(ctx, s.deps.Store, logCtx, roomID, actor.UserID); err != nil {
			return err
		}
		if err := ensureNotSilenced(ctx, s.deps, logCtx, roomID, actor.UserID); err != nil {
			return err
		}
		s.deps.broadcast(ctx, dto.EventPing, roomID, dto.PingPayload{UserID: actor.UserID})
		return nil
	default:
		logCtx.Warn("Unknown client message type")
		return ErrUnknownEvent
	}
}

// notice 发布房间公告，仅房主或系统角色可用
func (s *RealtimeService) notice(ctx context.Context, actor Actor, roomID uint, content string, logCtx *logrus.Entry) error {
	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return err
	}
	if !s.deps.Policy.CanHost(actor, room) {
		return ErrForbidden
	}
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxMessageContent {
		return ErrMessageInvalidContent
	}
	if err := ensureNotSilenced(ctx, s.deps, logCtx, roomID, actor.UserID); err != nil {
		return err
	}
	s.deps.broadcast(ctx, dto.EventNotice, roomID, dto.NoticePayload{UserID: actor.UserID, Content: content})
	s.deps.audit(ctx, actor.UserID, "room.notice", "room", roomID, nil)
	return nil
}
