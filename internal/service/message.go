package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
)

const (
	maxMessageContent   = 500
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// MessageService 处理房间内的聊天消息。
type MessageService struct {
	deps *Deps
}

func NewMessageService(deps *Deps) *MessageService {
	if deps == nil {
		panic("Deps cannot be nil for MessageService")
	}
	return &MessageService{deps: deps}
}

// List 返回 beforeID 之前的最近消息，按时间升序
func (s *MessageService) List(ctx context.Context, actor Actor, roomID, beforeID uint, limit int) ([]dto.MessageView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "list_messages"})

	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return nil, err
	}
	if _, err := memberOrSystem(ctx, s.deps, logCtx, actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := s.deps.Store.Messages().List(ctx, roomID, beforeID, limit)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list messages")
	}
	views := make([]dto.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, dto.NewMessageView(m))
	}
	return views, nil
}

// Send 保存并广播一条聊天消息，禁言期间的用户会被拒绝。
func (s *MessageService) Send(ctx context.Context, actor Actor, roomID uint, content string) (*dto.MessageView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "send_message"})

	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}
	if _, err := activeMembership(ctx, s.deps.Store, logCtx, roomID, actor.UserID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxMessageContent {
		return nil, ErrMessageInvalidContent
	}
	if err := ensureNotSilenced(ctx, s.deps, logCtx, roomID, actor.UserID); err != nil {
		return nil, err
	}

	message := &domain.RoomMessage{RoomID: roomID, SenderID: actor.UserID, Content: content, CreatedAt: s.deps.now()}
	if err := s.deps.Store.Messages().Create(ctx, message); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to save message")
	}

	s.deps.broadcast(ctx, dto.EventChat, roomID, dto.ChatPayload{
		MessageID: message.ID,
		UserID:    actor.UserID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	})
	view := dto.NewMessageView(*message)
	return &view, nil
}
