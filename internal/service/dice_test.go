package service_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// diceRoom 创建一个房主加两名参与者的房间
func diceRoom(t *testing.T, f *fixture) (uint, []service.Actor) {
	t.Helper()
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.join(t, users[1], roomID)
	f.join(t, users[2], roomID)
	return roomID, users
}

func TestDiceService_FullRound(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, x, y := users[0], users[1], users[2]

	f.random.push(1)
	state, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.DicePhaseAwaitQuestion, state.Phase)
	require.NotNil(t, state.AskerID)
	assert.Equal(t, x.UserID, *state.AskerID)

	_, err = f.dice.Ask(f.ctx, y, roomID, dto.DiceAskRequest{Question: "Truth or dare?", TargetScope: "all"})
	assert.True(t, errors.Is(err, service.ErrDiceNotAsker))

	state, err = f.dice.Ask(f.ctx, x, roomID, dto.DiceAskRequest{Question: "  Truth or dare?  ", TargetScope: "all"})
	require.NoError(t, err)
	assert.Equal(t, domain.DicePhaseAwaitResponse, state.Phase)
	assert.Equal(t, "Truth or dare?", *state.Question)
	assert.Nil(t, state.TargetID)

	_, err = f.dice.Respond(f.ctx, x, roomID, "me")
	assert.True(t, errors.Is(err, service.ErrDiceNotEligible), "提问者不能回答 all 范围的问题")

	state, err = f.dice.Respond(f.ctx, y, roomID, "Truth")
	require.NoError(t, err)
	assert.Equal(t, domain.DicePhaseIdle, state.Phase)
	require.NotNil(t, state.LastOutcome)
	assert.Equal(t, domain.DiceOutcomeAnswered, *state.LastOutcome)
	require.NotNil(t, state.AnsweredBy)
	assert.Equal(t, y.UserID, *state.AnsweredBy)
	assert.Nil(t, state.LastPenalty)

	assert.Len(t, f.events.ofType(dto.EventDiceUpdated), 3)
}

func TestDiceService_StartSingleFlight(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)

	_, err := f.dice.Start(f.ctx, users[1], roomID)
	assert.True(t, errors.Is(err, service.ErrForbidden), "只有房主可以开始")

	_, err = f.dice.Start(f.ctx, users[0], roomID)
	require.NoError(t, err)

	_, err = f.dice.Start(f.ctx, users[0], roomID)
	assert.True(t, errors.Is(err, service.ErrDiceRoundActive))
}

func TestDiceService_StartConcurrentOnlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.dice.Start(f.ctx, users[0], roomID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, service.ErrDiceRoundActive))
	}
	assert.Equal(t, 1, succeeded)
}

func TestDiceService_StartReplacesRoundAbandonedByAsker(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, x, y := users[0], users[1], users[2]

	f.random.push(1)
	state, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	require.Equal(t, x.UserID, *state.AskerID)

	require.NoError(t, f.rooms.LeaveRoom(f.ctx, x, roomID))

	_, err = f.dice.Ask(f.ctx, x, roomID, dto.DiceAskRequest{Question: "still there?", TargetScope: "all"})
	assert.True(t, errors.Is(err, service.ErrNotParticipant))

	f.random.push(1)
	state, err = f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.DicePhaseAwaitQuestion, state.Phase)
	require.NotNil(t, state.AskerID)
	assert.Equal(t, y.UserID, *state.AskerID)

	_, err = f.dice.Start(f.ctx, owner, roomID)
	assert.True(t, errors.Is(err, service.ErrDiceRoundActive), "提问者仍在房间时不能重开")
}

func TestDiceService_StartReplacesRoundWhenAskerSwitchedRooms(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, x := users[0], users[1]

	f.random.push(1)
	_, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)

	f.createRoom(t, x, nil)
	assert.NotContains(t, f.activeRooms(x.UserID), roomID)

	state, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	require.NotNil(t, state.AskerID)
	assert.NotEqual(t, x.UserID, *state.AskerID)
}

func TestDiceService_StartRequiresLiveRoomAndParticipants(t *testing.T) {
	f := newFixture(t)
	official := f.user(t, "official", domain.RoleOfficial)
	status := "SCHEDULED"
	view, err := f.rooms.CreateRoom(f.ctx, official, dto.CreateRoomRequest{Title: "later", Status: &status})
	require.NoError(t, err)

	_, err = f.dice.Start(f.ctx, official, view.ID)
	assert.True(t, errors.Is(err, service.ErrRoomNotLive))

	_, err = f.rooms.StartRoom(f.ctx, official, view.ID)
	require.NoError(t, err)
	require.NoError(t, f.rooms.LeaveRoom(f.ctx, official, view.ID))

	_, err = f.dice.Start(f.ctx, official, view.ID)
	assert.True(t, errors.Is(err, service.ErrNoParticipants))
}

func TestDiceService_AskValidation(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, asker := users[0], users[1]
	observer := f.user(t, "watcher", domain.RoleUser)
	_, err := f.rooms.JoinRoom(f.ctx, observer, roomID, domain.MemberModeObserver)
	require.NoError(t, err)

	_, err = f.dice.Ask(f.ctx, asker, roomID, dto.DiceAskRequest{Question: "early?", TargetScope: "all"})
	assert.True(t, errors.Is(err, service.ErrDiceInvalidPhase))

	f.random.push(1)
	_, err = f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  dto.DiceAskRequest
		want error
	}{
		{"blank question", dto.DiceAskRequest{Question: "   ", TargetScope: "all"}, service.ErrDiceQuestionRequired},
		{"missing target", dto.DiceAskRequest{Question: "q", TargetScope: "single"}, service.ErrDiceInvalidTarget},
		{"self target", dto.DiceAskRequest{Question: "q", TargetScope: "single", TargetID: uintPtr(asker.UserID)}, service.ErrDiceInvalidTarget},
		{"observer target", dto.DiceAskRequest{Question: "q", TargetScope: "single", TargetID: uintPtr(observer.UserID)}, service.ErrDiceInvalidTarget},
		{"unknown scope", dto.DiceAskRequest{Question: "q", TargetScope: "some"}, service.ErrDiceInvalidTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.dice.Ask(f.ctx, asker, roomID, tc.req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	_, err = f.dice.Ask(f.ctx, observer, roomID, dto.DiceAskRequest{Question: "q", TargetScope: "all"})
	assert.True(t, errors.Is(err, service.ErrNotParticipant))
}

func TestDiceService_RefuseWithTracePenalty(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, target, asker := users[0], users[1], users[2]

	f.random.push(2)
	_, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	_, err = f.dice.Ask(f.ctx, asker, roomID, dto.DiceAskRequest{Question: "Who do you like?", TargetScope: "single", TargetID: uintPtr(target.UserID)})
	require.NoError(t, err)

	_, err = f.dice.Refuse(f.ctx, owner, roomID)
	assert.True(t, errors.Is(err, service.ErrDiceNotEligible), "只有被点名的人可以拒绝")

	f.random.push(2, 2)
	state, err := f.dice.Refuse(f.ctx, target, roomID)
	require.NoError(t, err)

	assert.Equal(t, domain.DicePhaseIdle, state.Phase)
	assert.Equal(t, domain.DiceOutcomeRefused, *state.LastOutcome)
	require.NotNil(t, state.LastPenalty)
	assert.Equal(t, domain.PenaltyTrace, state.LastPenalty.Type)
	assert.Equal(t, target.UserID, state.LastPenalty.UserID)
	require.NotNil(t, state.LastPenalty.TraceID)

	traces := f.store.AllTraces()
	require.Len(t, traces, 1)
	assert.Equal(t, *state.LastPenalty.TraceID, traces[0].ID)
	assert.Equal(t, service.PenaltyTraceMessages[2], traces[0].Content)
	assert.Contains(t, service.PenaltyTraceMessages, traces[0].Content)
	assert.Nil(t, traces[0].AuthorID)
	assert.True(t, traces[0].IsPublic)
}

func TestDiceService_RefuseWithMaskPenalty(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)

	f.random.push(1)
	_, err := f.dice.Start(f.ctx, users[0], roomID)
	require.NoError(t, err)
	_, err = f.dice.Ask(f.ctx, users[1], roomID, dto.DiceAskRequest{Question: "q", TargetScope: "all"})
	require.NoError(t, err)

	f.random.push(1, 3)
	state, err := f.dice.Refuse(f.ctx, users[2], roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.PenaltyMask, state.LastPenalty.Type)
	assert.Equal(t, service.MaskPalette[3], state.LastPenalty.Color)
	assert.Equal(t, service.MaskPalette[3], state.MaskColors[users[2].UserID])
}

func TestDiceService_SilenceGatingAndExpiry(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, asker, silenced := users[0], users[1], users[2]

	f.random.push(1)
	_, err := f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	_, err = f.dice.Ask(f.ctx, asker, roomID, dto.DiceAskRequest{Question: "q1", TargetScope: "all"})
	require.NoError(t, err)

	f.random.push(0)
	state, err := f.dice.Refuse(f.ctx, silenced, roomID)
	require.NoError(t, err)
	require.Equal(t, domain.PenaltySilence, state.LastPenalty.Type)
	expectedUntil := f.clock.Now().Add(service.DefaultSilenceDuration)
	assert.True(t, expectedUntil.Equal(*state.LastPenalty.Until))

	f.random.push(1)
	_, err = f.dice.Start(f.ctx, owner, roomID)
	require.NoError(t, err)
	_, err = f.dice.Ask(f.ctx, asker, roomID, dto.DiceAskRequest{Question: "q2", TargetScope: "all"})
	require.NoError(t, err)

	_, err = f.dice.Respond(f.ctx, silenced, roomID, "let me talk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrDiceSilenced))
	var silencedErr *service.SilencedError
	require.True(t, errors.As(err, &silencedErr))
	assert.True(t, expectedUntil.Equal(silencedErr.Until))
	assert.Equal(t, "DICE_SILENCED", service.ErrorCode(err))

	_, err = f.messages.Send(f.ctx, silenced, roomID, "hello")
	assert.True(t, errors.Is(err, service.ErrDiceSilenced))
	err = f.realtime.HandleClientMessage(f.ctx, silenced, roomID, dto.ClientMessage{Type: dto.ClientPing})
	assert.True(t, errors.Is(err, service.ErrDiceSilenced))

	f.clock.Advance(service.DefaultSilenceDuration + time.Second)

	current, err := f.dice.Get(f.ctx, silenced, roomID)
	require.NoError(t, err)
	assert.NotContains(t, current.Silences, silenced.UserID, "过期的禁言应被清理")

	state, err = f.dice.Respond(f.ctx, silenced, roomID, "finally")
	require.NoError(t, err)
	assert.Equal(t, silenced.UserID, *state.AnsweredBy)
}

func TestDiceService_SkipAndProtect(t *testing.T) {
	f := newFixture(t)
	roomID, users := diceRoom(t, f)
	owner, asker, target := users[0], users[1], users[2]

	startAndAsk := func() {
		f.random.push(1)
		_, err := f.dice.Start(f.ctx, owner, roomID)
		require.NoError(t, err)
		_, err = f.dice.Ask(f.ctx, asker, roomID, dto.DiceAskRequest{Question: "q", TargetScope: "single", TargetID: uintPtr(target.UserID)})
		require.NoError(t, err)
	}

	startAndAsk()
	_, err := f.dice.Skip(f.ctx, target, roomID)
	assert.True(t, errors.Is(err, service.ErrDiceNotAsker))
	state, err := f.dice.Skip(f.ctx, asker, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.DiceOutcomeSkipped, *state.LastOutcome)

	startAndAsk()
	_, err = f.dice.Protect(f.ctx, target, roomID, "hide")
	assert.True(t, errors.Is(err, service.ErrDiceInvalidProtect))
	_, err = f.dice.Protect(f.ctx, owner, roomID, service.ProtectSilent)
	assert.True(t, errors.Is(err, service.ErrDiceNotEligible))
	state, err = f.dice.Protect(f.ctx, target, roomID, service.ProtectSilent)
	require.NoError(t, err)
	assert.Equal(t, domain.DiceOutcomeSilentProtected, *state.LastOutcome)
	assert.Contains(t, state.SilentProtectedTargets, target.UserID)
	assert.Nil(t, state.LastPenalty)

	startAndAsk()
	state, err = f.dice.Get(f.ctx, owner, roomID)
	require.NoError(t, err)
	assert.Empty(t, state.SilentProtectedTargets, "新一轮开始时清空保护标记")

	state, err = f.dice.Protect(f.ctx, target, roomID, service.ProtectObserver)
	require.NoError(t, err)
	assert.Equal(t, domain.DiceOutcomeObserver, *state.LastOutcome)
	membership, err := f.store.Memberships().Find(f.ctx, roomID, target.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberModeObserver, membership.Mode)
}

func TestDiceService_GetRequiresMembership(t *testing.T) {
	f := newFixture(t)
	roomID, _ := diceRoom(t, f)
	outsider := f.user(t, "outsider", domain.RoleUser)
	admin := f.user(t, "admin", domain.RoleAdmin)

	_, err := f.dice.Get(f.ctx, outsider, roomID)
	assert.True(t, errors.Is(err, service.ErrNotMember))

	state, err := f.dice.Get(f.ctx, admin, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.DicePhaseIdle, state.Phase)
}
