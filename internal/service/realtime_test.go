package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

func TestMessageService_SendAndList(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)

	_, err := f.messages.Send(f.ctx, users[2], roomID, "let me in")
	assert.True(t, errors.Is(err, service.ErrNotMember))

	_, err = f.messages.Send(f.ctx, users[1], roomID, "  ")
	assert.True(t, errors.Is(err, service.ErrMessageInvalidContent))

	for _, content := range []string{"one", "two", "three"} {
		_, err := f.messages.Send(f.ctx, users[1], roomID, content)
		require.NoError(t, err)
	}

	latest, err := f.messages.List(f.ctx, users[0], roomID, 0, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "two", latest[0].Content)
	assert.Equal(t, "three", latest[1].Content)

	older, err := f.messages.List(f.ctx, users[0], roomID, latest[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Content)

	chats := f.events.ofType(dto.EventChat)
	require.Len(t, chats, 3)
	assert.Equal(t, "three", chats[2].Payload.(dto.ChatPayload).Content)
}

func TestRealtimeService_ClientMessages(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)

	require.NoError(t, f.realtime.Authorize(f.ctx, users[1], roomID))
	assert.True(t, errors.Is(f.realtime.Authorize(f.ctx, users[2], roomID), service.ErrNotMember))

	err := f.realtime.HandleClientMessage(f.ctx, users[1], roomID, dto.ClientMessage{Type: dto.ClientNotice, Content: "listen up"})
	assert.True(t, errors.Is(err, service.ErrForbidden), "只有房主可以发公告")

	require.NoError(t, f.realtime.HandleClientMessage(f.ctx, users[0], roomID, dto.ClientMessage{Type: dto.ClientNotice, Content: "welcome"}))
	require.NoError(t, f.realtime.HandleClientMessage(f.ctx, users[1], roomID, dto.ClientMessage{Type: dto.ClientPing}))
	require.NoError(t, f.realtime.HandleClientMessage(f.ctx, users[1], roomID, dto.ClientMessage{Type: dto.ClientChat, Content: "hi all"}))

	err = f.realtime.HandleClientMessage(f.ctx, users[1], roomID, dto.ClientMessage{Type: "dance"})
	assert.True(t, errors.Is(err, service.ErrUnknownEvent))

	assert.Len(t, f.events.ofType(dto.EventNotice), 1)
	assert.Len(t, f.events.ofType(dto.EventPing), 1)
	assert.Len(t, f.events.ofType(dto.EventChat), 1)
}

func TestRealtimeService_Snapshot(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 2)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)
	_, err := f.selection.Set(f.ctx, users[0], roomID, string(domain.GameTypeDice))
	require.NoError(t, err)

	event, err := f.realtime.Snapshot(f.ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, dto.EventSnapshot, event.Type)
	payload := event.Payload.(dto.SnapshotPayload)
	assert.Equal(t, int64(2), payload.MemberCount)
	assert.Equal(t, domain.GameTypeDice, payload.Selected.Type)
}
