package service_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

func TestRoomService_CreateRoom_Defaults(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", domain.RoleUser)

	status := "SCHEDULED"
	view, err := f.rooms.CreateRoom(f.ctx, owner, dto.CreateRoomRequest{
		Title:    "  Board games  ",
		Tags:     []string{"games", " ", "chill"},
		Status:   &status,
		EndsAt:   nil,
		Capacity: intPtr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, "Board games", view.Title)
	assert.Equal(t, domain.RoomStatusLive, view.Status, "普通用户创建的房间总是 LIVE")
	assert.False(t, view.IsOfficial)
	assert.Equal(t, []string{"games", "chill"}, view.Tags)
	assert.Equal(t, int64(1), view.MemberCount)
	require.NotNil(t, view.Membership)
	assert.Equal(t, domain.MemberRoleOwner, view.Membership.Role)
	assert.Equal(t, domain.MemberModeParticipant, view.Membership.Mode)

	selected, err := f.selection.Get(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameTypeNone, selected.Type)
	assert.Nil(t, selected.SelectedAt)
	assert.Nil(t, selected.SelectedByID)
}

func TestRoomService_CreateRoom_Validation(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "user", domain.RoleUser)
	official := f.user(t, "official", domain.RoleOfficial)

	_, err := f.rooms.CreateRoom(f.ctx, user, dto.CreateRoomRequest{Title: "tiny", Capacity: intPtr(2)})
	assert.True(t, errors.Is(err, service.ErrInvalidCapacity))

	_, err = f.rooms.CreateRoom(f.ctx, official, dto.CreateRoomRequest{Title: "official"})
	assert.True(t, errors.Is(err, service.ErrStatusRequired))

	status := "SCHEDULED"
	view, err := f.rooms.CreateRoom(f.ctx, official, dto.CreateRoomRequest{Title: "official", Status: &status})
	require.NoError(t, err)
	assert.True(t, view.IsOfficial)
	assert.Equal(t, domain.RoomStatusScheduled, view.Status)
}

func TestRoomService_JoinRoom_SwitchesRoomAndBroadcastsBoth(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 2)
	u, other := users[0], users[1]

	roomA := f.createRoom(t, u, nil)
	roomB := f.createRoom(t, other, nil)
	f.events.reset()

	membership, err := f.rooms.JoinRoom(f.ctx, u, roomB, domain.MemberModeParticipant)
	require.NoError(t, err)
	assert.Nil(t, membership.LeftAt)
	assert.Equal(t, domain.MemberRoleMember, membership.Role)

	assert.Equal(t, []uint{roomB}, f.activeRooms(u.UserID))
	for _, m := range f.store.AllMemberships() {
		if m.UserID == u.UserID && m.RoomID == roomA {
			assert.NotNil(t, m.LeftAt, "离开的房间应设置 leftAt")
		}
	}

	counts := f.events.ofType(dto.EventMemberCount)
	assert.Equal(t, []int64{0}, countsFor(counts, roomA))
	assert.Equal(t, []int64{2}, countsFor(counts, roomB))
}

func TestRoomService_JoinRoom_SameRoomShortCircuits(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", domain.RoleUser)
	roomID := f.createRoom(t, owner, nil)
	f.events.reset()

	membership, err := f.rooms.JoinRoom(f.ctx, owner, roomID, domain.MemberModeObserver)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberRoleOwner, membership.Role)
	assert.Equal(t, domain.MemberModeParticipant, membership.Mode, "已在房间内时返回原记录")
	assert.Empty(t, f.events.ofType(dto.EventMemberCount))
}

func TestRoomService_JoinRoom_Rejections(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 4)
	owner := users[0]

	noSpectators := false
	view, err := f.rooms.CreateRoom(f.ctx, owner, dto.CreateRoomRequest{Title: "players only", AllowSpectators: &noSpectators, Capacity: intPtr(3)})
	require.NoError(t, err)

	_, err = f.rooms.JoinRoom(f.ctx, users[1], view.ID, domain.MemberModeObserver)
	assert.True(t, errors.Is(err, service.ErrSpectatorsNotAllowed))

	_, err = f.rooms.JoinRoom(f.ctx, users[1], view.ID, "DANCER")
	assert.True(t, errors.Is(err, service.ErrInvalidMode))

	_, err = f.rooms.JoinRoom(f.ctx, users[1], 9999, domain.MemberModeParticipant)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))

	f.join(t, users[1], view.ID)
	f.join(t, users[2], view.ID)
	_, err = f.rooms.JoinRoom(f.ctx, users[3], view.ID, domain.MemberModeParticipant)
	assert.True(t, errors.Is(err, service.ErrRoomFull))
	assert.Empty(t, f.activeRooms(users[3].UserID))

	_, err = f.rooms.EndRoom(f.ctx, owner, view.ID)
	require.NoError(t, err)
	require.NoError(t, f.rooms.LeaveRoom(f.ctx, users[2], view.ID))
	_, err = f.rooms.JoinRoom(f.ctx, users[3], view.ID, domain.MemberModeParticipant)
	assert.True(t, errors.Is(err, service.ErrRoomEnded))
}

func TestRoomService_OfficialGating(t *testing.T) {
	f := newFixture(t, func(d *service.Deps) { d.Policy.OfficialGating = true })
	user := f.user(t, "user", domain.RoleUser)
	owner := f.user(t, "owner", domain.RoleUser)
	admin := f.user(t, "admin", domain.RoleAdmin)

	roomID := f.createRoom(t, owner, nil)

	_, err := f.rooms.JoinRoom(f.ctx, user, roomID, domain.MemberModeParticipant)
	assert.True(t, errors.Is(err, service.ErrRoomNotAvailable))

	rooms, err := f.rooms.ListRooms(f.ctx, user, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = f.rooms.EndRoom(f.ctx, admin, roomID)
	require.NoError(t, err, "开启官方限制后系统角色可以推进任意房间")
}

func TestRoomService_StartEndTransitions(t *testing.T) {
	f := newFixture(t)
	official := f.user(t, "official", domain.RoleOfficial)
	stranger := f.user(t, "stranger", domain.RoleUser)

	status := "SCHEDULED"
	view, err := f.rooms.CreateRoom(f.ctx, official, dto.CreateRoomRequest{Title: "launch", Status: &status})
	require.NoError(t, err)

	_, err = f.rooms.StartRoom(f.ctx, stranger, view.ID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	_, err = f.rooms.EndRoom(f.ctx, official, view.ID)
	assert.True(t, errors.Is(err, service.ErrRoomNotLive))

	started, err := f.rooms.StartRoom(f.ctx, official, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusLive, started.Status)
	assert.NotNil(t, started.StartsAt)

	_, err = f.rooms.StartRoom(f.ctx, official, view.ID)
	assert.True(t, errors.Is(err, service.ErrRoomNotScheduled))

	ended, err := f.rooms.EndRoom(f.ctx, official, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusEnded, ended.Status)
	assert.NotNil(t, ended.EndsAt)

	assert.Len(t, f.events.ofType(dto.EventStatusChanged), 2)
}

func TestRoomService_LeaveRoom(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 2)
	roomID := f.createRoom(t, users[0], nil)

	err := f.rooms.LeaveRoom(f.ctx, users[1], roomID)
	assert.True(t, errors.Is(err, service.ErrMembershipNotFound))

	f.join(t, users[1], roomID)
	require.NoError(t, f.rooms.LeaveRoom(f.ctx, users[1], roomID))

	count, err := f.rooms.MemberCount(f.ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	members, err := f.rooms.ListMembers(f.ctx, roomID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "user0", members[0].Nickname)
}

func TestRoomService_LeaveAndSwitchBroadcastMemberLeft(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomA := f.createRoom(t, users[0], nil)
	roomB := f.createRoom(t, users[1], nil)
	f.join(t, users[2], roomA)
	f.events.reset()

	f.join(t, users[2], roomB)
	require.NoError(t, f.rooms.LeaveRoom(f.ctx, users[2], roomB))
	f.createRoom(t, users[1], nil)

	left := f.events.ofType(dto.EventMemberLeft)
	require.Len(t, left, 3)
	assert.Equal(t, roomA, left[0].RoomID)
	assert.Equal(t, dto.MemberLeftPayload{UserID: users[2].UserID, Reason: dto.LeftReasonSwitched}, left[0].Payload)
	assert.Equal(t, roomB, left[1].RoomID)
	assert.Equal(t, dto.MemberLeftPayload{UserID: users[2].UserID, Reason: dto.LeftReasonLeft}, left[1].Payload)
	assert.Equal(t, roomB, left[2].RoomID, "房主新建房间时离开原房间")
	assert.Equal(t, dto.MemberLeftPayload{UserID: users[1].UserID, Reason: dto.LeftReasonSwitched}, left[2].Payload)
}

func TestRoomService_JoinRoom_ConcurrentCapacityIsStrict(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 5)
	roomID := f.createRoom(t, users[0], intPtr(3))
	f.join(t, users[1], roomID)

	joiners := users[2:]
	var wg sync.WaitGroup
	errs := make([]error, len(joiners))
	for i, joiner := range joiners {
		wg.Add(1)
		go func(i int, joiner service.Actor) {
			defer wg.Done()
			_, errs[i] = f.rooms.JoinRoom(f.ctx, joiner, roomID, domain.MemberModeParticipant)
		}(i, joiner)
	}
	wg.Wait()

	succeeded, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, service.ErrRoomFull):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, full)

	count, err := f.rooms.MemberCount(f.ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRoomService_ExclusivityAcrossOperations(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 4)
	u := users[0]

	roomA := f.createRoom(t, users[1], nil)
	roomB := f.createRoom(t, users[2], nil)
	roomC := f.createRoom(t, users[3], nil)
	f.chat(users[3], u)

	f.join(t, u, roomA)
	assert.Len(t, f.activeRooms(u.UserID), 1)

	f.join(t, u, roomB)
	assert.Equal(t, []uint{roomB}, f.activeRooms(u.UserID))

	invite, err := f.membership.CreateInvite(f.ctx, users[3], roomC, u.UserID)
	require.NoError(t, err)
	_, err = f.membership.AcceptInvite(f.ctx, u, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{roomC}, f.activeRooms(u.UserID))

	own := f.createRoom(t, u, nil)
	assert.Equal(t, []uint{own}, f.activeRooms(u.UserID))
}
