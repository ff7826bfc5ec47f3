package service_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

func TestMembershipService_JoinRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	owner, requester, stranger := users[0], users[1], users[2]
	roomID := f.createRoom(t, owner, nil)

	request, err := f.membership.RequestJoin(f.ctx, requester, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestPending, request.Status)

	_, err = f.membership.ListJoinRequests(f.ctx, stranger, roomID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	pending, err := f.membership.ListJoinRequests(f.ctx, owner, roomID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rejected, err := f.membership.RejectJoinRequest(f.ctx, owner, roomID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestRejected, rejected.Status)
	require.NotNil(t, rejected.DecidedByID)
	assert.Equal(t, owner.UserID, *rejected.DecidedByID)

	_, err = f.membership.ApproveJoinRequest(f.ctx, owner, roomID, request.ID)
	assert.True(t, errors.Is(err, service.ErrJoinRequestNotPending))

	again, err := f.membership.RequestJoin(f.ctx, requester, roomID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, again.ID, "重复申请复用同一条记录")
	assert.Equal(t, domain.JoinRequestPending, again.Status)

	approved, err := f.membership.ApproveJoinRequest(f.ctx, owner, roomID, again.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestApproved, approved.Status)
	assert.Equal(t, []uint{roomID}, f.activeRooms(requester.UserID))
	assert.Equal(t, []int64{2}, countsFor(f.events.ofType(dto.EventMemberCount), roomID))

	_, err = f.membership.RequestJoin(f.ctx, requester, roomID)
	assert.True(t, errors.Is(err, service.ErrAlreadyMember))
}

func TestMembershipService_ApproveRejectsRequesterInOtherRoom(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 3)
	roomID := f.createRoom(t, users[0], nil)
	f.createRoom(t, users[1], nil)

	request, err := f.membership.RequestJoin(f.ctx, users[2], roomID)
	require.NoError(t, err)
	f.createRoom(t, users[2], nil)

	_, err = f.membership.ApproveJoinRequest(f.ctx, users[0], roomID, request.ID)
	assert.True(t, errors.Is(err, service.ErrAlreadyInOtherRoom))
}

func TestMembershipService_ApproveRejectsEndedRoom(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 2)
	owner, requester := users[0], users[1]
	roomID := f.createRoom(t, owner, nil)

	request, err := f.membership.RequestJoin(f.ctx, requester, roomID)
	require.NoError(t, err)
	_, err = f.rooms.EndRoom(f.ctx, owner, roomID)
	require.NoError(t, err)

	_, err = f.membership.ApproveJoinRequest(f.ctx, owner, roomID, request.ID)
	assert.True(t, errors.Is(err, service.ErrRoomEnded))
	assert.Empty(t, f.activeRooms(requester.UserID))

	stored, err := f.store.JoinRequests().FindByID(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestPending, stored.Status)
}

func TestMembershipService_CapacityOnApprovalAndInvite(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 5)
	owner := users[0]
	roomID := f.createRoom(t, owner, intPtr(3))
	f.join(t, users[1], roomID)

	request, err := f.membership.RequestJoin(f.ctx, users[3], roomID)
	require.NoError(t, err)

	f.chat(owner, users[4])
	invite, err := f.membership.CreateInvite(f.ctx, owner, roomID, users[4].UserID)
	require.NoError(t, err)

	f.join(t, users[2], roomID)

	_, err = f.membership.ApproveJoinRequest(f.ctx, owner, roomID, request.ID)
	assert.True(t, errors.Is(err, service.ErrRoomFull))

	_, err = f.membership.AcceptInvite(f.ctx, users[4], invite.ID)
	assert.True(t, errors.Is(err, service.ErrRoomFull))

	stored, err := f.store.Invites().FindByID(f.ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusPending, stored.Status, "满员时邀请保持待处理")
	assert.Empty(t, f.activeRooms(users[4].UserID))
}

func TestMembershipService_InviteEligibilityAndResponses(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 4)
	owner, friend, stranger, oneWay := users[0], users[1], users[2], users[3]
	roomID := f.createRoom(t, owner, nil)

	f.chat(owner, friend)
	f.store.SeedDirectMessage(domain.DirectMessage{ConversationID: 77, SenderID: oneWay.UserID, Content: "hello?"})

	candidates, err := f.membership.ListInviteCandidates(f.ctx, owner, roomID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, friend.UserID, candidates[0].UserID)

	_, err = f.membership.CreateInvite(f.ctx, owner, roomID, stranger.UserID)
	assert.True(t, errors.Is(err, service.ErrInviteeNotEligible))
	_, err = f.membership.CreateInvite(f.ctx, owner, roomID, oneWay.UserID)
	assert.True(t, errors.Is(err, service.ErrInviteeNotEligible))
	_, err = f.membership.CreateInvite(f.ctx, friend, roomID, owner.UserID)
	assert.True(t, errors.Is(err, service.ErrForbidden), "只有房主可以邀请")

	invite, err := f.membership.CreateInvite(f.ctx, owner, roomID, friend.UserID)
	require.NoError(t, err)
	duplicate, err := f.membership.CreateInvite(f.ctx, owner, roomID, friend.UserID)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, duplicate.ID)

	mine, err := f.membership.ListMyInvites(f.ctx, friend)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.membership.AcceptInvite(f.ctx, stranger, invite.ID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	declined, err := f.membership.DeclineInvite(f.ctx, friend, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusDeclined, declined.Status)

	_, err = f.membership.AcceptInvite(f.ctx, friend, invite.ID)
	assert.True(t, errors.Is(err, service.ErrInviteNotPending))

	second, err := f.membership.CreateInvite(f.ctx, owner, roomID, friend.UserID)
	require.NoError(t, err)
	canceled, err := f.membership.CancelInvite(f.ctx, owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusCanceled, canceled.Status)
}

func TestMembershipService_ShareLinks(t *testing.T) {
	f := newFixture(t)
	users := f.users(t, 2)
	owner, visitor := users[0], users[1]
	roomID := f.createRoom(t, owner, nil)

	_, err := f.membership.CreateShareLink(f.ctx, visitor, roomID, nil)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	_, err = f.membership.CreateShareLink(f.ctx, owner, roomID, intPtr(0))
	assert.True(t, errors.Is(err, service.ErrInvalidExpiry))

	link, err := f.membership.CreateShareLink(f.ctx, owner, roomID, intPtr(10))
	require.NoError(t, err)
	assert.Equal(t, "https://rooms.example.com/s/"+link.Token, link.URL)

	resolved, err := f.membership.ResolveShareLink(f.ctx, visitor, link.Token)
	require.NoError(t, err)
	assert.Equal(t, roomID, resolved.Room.ID)
	assert.Equal(t, int64(1), resolved.Room.MemberCount)

	png, err := f.membership.ShareLinkQRCode(f.ctx, link.Token, 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	f.clock.Advance(11 * time.Minute)
	_, err = f.membership.ResolveShareLink(f.ctx, visitor, link.Token)
	assert.True(t, errors.Is(err, service.ErrShareLinkExpired))

	permanent, err := f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	require.NoError(t, err)
	_, err = f.membership.RevokeShareLink(f.ctx, owner, roomID, permanent.ID)
	require.NoError(t, err)
	_, err = f.membership.ResolveShareLink(f.ctx, visitor, permanent.Token)
	assert.True(t, errors.Is(err, service.ErrShareLinkRevoked))

	_, err = f.membership.ResolveShareLink(f.ctx, visitor, "missing")
	assert.True(t, errors.Is(err, service.ErrShareLinkNotFound))
}

func TestMembershipService_ShareLinkTokenRetries(t *testing.T) {
	tokens := []string{"dup", "dup", "fresh"}
	f := newFixture(t, func(d *service.Deps) {
		d.Tokens = func() (string, error) {
			token := tokens[0]
			if len(tokens) > 1 {
				tokens = tokens[1:]
			}
			return token, nil
		}
	})
	owner := f.user(t, "owner", domain.RoleUser)
	roomID := f.createRoom(t, owner, nil)

	first, err := f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	require.NoError(t, err)
	assert.Equal(t, "dup", first.Token)

	second, err := f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	require.NoError(t, err, "冲突一次后应重试成功")
	assert.Equal(t, "fresh", second.Token)

	_, err = f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	assert.True(t, errors.Is(err, service.ErrShareLinkGenerationFailed), "连续三次冲突后失败")
}

func TestMembershipService_PurgeStaleShareLinks(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", domain.RoleUser)
	roomID := f.createRoom(t, owner, nil)

	link, err := f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	require.NoError(t, err)
	_, err = f.membership.RevokeShareLink(f.ctx, owner, roomID, link.ID)
	require.NoError(t, err)
	_, err = f.membership.CreateShareLink(f.ctx, owner, roomID, nil)
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	deleted, err := f.membership.PurgeStaleShareLinks(f.ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	links, err := f.membership.ListShareLinks(f.ctx, owner, roomID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
