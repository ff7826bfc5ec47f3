package service_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

func TestOneThingService_ShareOncePerUser(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)
	f.join(t, users[2], roomID)

	_, err := f.oneThing.Share(f.ctx, users[1], roomID, "too early")
	assert.True(t, errors.Is(err, service.ErrOneThingNotActive))

	state, err := f.oneThing.Start(f.ctx, users[1], roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.OneThingActive, state.Status)
	assert.Equal(t, users[1].UserID, *state.StartedBy)

	_, err = f.oneThing.Start(f.ctx, users[2], roomID)
	assert.True(t, errors.Is(err, service.ErrOneThingAlreadyActive))

	state, err = f.oneThing.Share(f.ctx, users[1], roomID, "  I adopted a cat  ")
	require.NoError(t, err)
	require.Len(t, state.Shares, 1)
	assert.Equal(t, "I adopted a cat", state.Shares[0].Content)

	_, err = f.oneThing.Share(f.ctx, users[1], roomID, "another one")
	assert.True(t, errors.Is(err, service.ErrOneThingAlreadyShared))

	state, err = f.oneThing.React(f.ctx, users[1], roomID, dto.OneThingReactRequest{TargetUserID: users[1].UserID, Emoji: "🔥"})
	require.NoError(t, err, "分享过的用户仍然可以回应")
	state, err = f.oneThing.React(f.ctx, users[2], roomID, dto.OneThingReactRequest{TargetUserID: users[1].UserID, Emoji: "❤️"})
	require.NoError(t, err)
	state, err = f.oneThing.React(f.ctx, users[2], roomID, dto.OneThingReactRequest{TargetUserID: users[1].UserID, Emoji: "❤️"})
	require.NoError(t, err)
	assert.Len(t, state.Reactions, 3)

	assert.Len(t, f.events.ofType(dto.EventOneThingUpdated), 5)
}

func TestOneThingService_Validation(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	_, err := f.rooms.JoinRoom(f.ctx, users[1], roomID, domain.MemberModeObserver)
	require.NoError(t, err)

	_, err = f.oneThing.Start(f.ctx, users[2], roomID)
	assert.True(t, errors.Is(err, service.ErrNotMember))

	_, err = f.oneThing.Start(f.ctx, users[1], roomID)
	require.NoError(t, err, "旁观者也可以开启")

	_, err = f.oneThing.Share(f.ctx, users[1], roomID, "watching")
	assert.True(t, errors.Is(err, service.ErrNotParticipant))

	_, err = f.oneThing.Share(f.ctx, users[0], roomID, "   ")
	assert.True(t, errors.Is(err, service.ErrOneThingInvalidContent))
	_, err = f.oneThing.Share(f.ctx, users[0], roomID, strings.Repeat("好", 201))
	assert.True(t, errors.Is(err, service.ErrOneThingInvalidContent))
	_, err = f.oneThing.Share(f.ctx, users[0], roomID, strings.Repeat("好", 200))
	require.NoError(t, err)

	_, err = f.oneThing.React(f.ctx, users[1], roomID, dto.OneThingReactRequest{TargetUserID: users[0].UserID, Emoji: "🍕"})
	assert.True(t, errors.Is(err, service.ErrOneThingInvalidEmoji))
	_, err = f.oneThing.React(f.ctx, users[1], roomID, dto.OneThingReactRequest{TargetUserID: users[1].UserID, Emoji: "👍"})
	assert.True(t, errors.Is(err, service.ErrOneThingTargetNotShare))
	_, err = f.oneThing.React(f.ctx, users[1], roomID, dto.OneThingReactRequest{TargetUserID: users[0].UserID, Emoji: "👍"})
	require.NoError(t, err, "旁观者可以回应")
}

func TestOneThingService_FinishAndRestart(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)
	f.join(t, users[2], roomID)

	_, err := f.oneThing.Start(f.ctx, users[1], roomID)
	require.NoError(t, err)
	_, err = f.oneThing.Share(f.ctx, users[1], roomID, "hello")
	require.NoError(t, err)

	_, err = f.oneThing.Finish(f.ctx, users[2], roomID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	state, err := f.oneThing.Finish(f.ctx, users[0], roomID)
	require.NoError(t, err, "房主可以结束")
	assert.Equal(t, domain.OneThingIdle, state.Status)
	assert.Len(t, state.Shares, 1, "结束后保留分享")

	state, err = f.oneThing.Start(f.ctx, users[2], roomID)
	require.NoError(t, err)
	assert.Empty(t, state.Shares)
	assert.Empty(t, state.Reactions)

	got, err := f.oneThing.Get(f.ctx, users[1], roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.OneThingActive, got.Status)
}
