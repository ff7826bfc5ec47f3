package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// shareTokenAttempts 是分享链接 token 冲突时的最大尝试次数
const shareTokenAttempts = 3

// MembershipService 负责入房申请、邀请和分享链接。
type MembershipService struct {
	deps *Deps
}

// NewMembershipService 创建 MembershipService 实例。
func NewMembershipService(deps *Deps) *MembershipService {
	if deps == nil {
		panic("Deps cannot be nil for MembershipService")
	}
	return &MembershipService{deps: deps}
}

// ownedRoom 读取房间并确认调用方是房主
func (s *MembershipService) ownedRoom(ctx context.Context, actor Actor, roomID uint, logCtx *logrus.Entry) (*domain.Room, error) {
	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(actor.UserID) {
		logCtx.Warn("Rejected: caller is not the room owner")
		return nil, ErrForbidden
	}
	return room, nil
}

// --- Join requests ---

// RequestJoin 提交或重新提交入房申请
func (s *MembershipService) RequestJoin(ctx context.Context, actor Actor, roomID uint) (*dto.JoinRequestView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "request_join"})

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
	if _, err := activeMembership(ctx, s.deps.Store, logCtx, roomID, actor.UserID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrNotMember) {
		return nil, err
	}

	request := &domain.RoomJoinRequest{RoomID: roomID, UserID: actor.UserID}
	if err := s.deps.Store.JoinRequests().Upsert(ctx, request); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to save join request")
	}

	logCtx.WithField("request_id", request.ID).Info("Join request submitted")
	s.deps.audit(ctx, actor.UserID, "room.join_request", "room", roomID, nil)
	view := dto.NewJoinRequestView(*request)
	return &view, nil
}

// ListJoinRequests 返回房间的待审批申请，仅房主可见
func (s *MembershipService) ListJoinRequests(ctx context.Context, actor Actor, roomID uint) ([]dto.JoinRequestView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "list_join_requests"})

	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	requests, err := s.deps.Store.JoinRequests().ListByRoom(ctx, roomID, domain.JoinRequestPending)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list join requests")
	}
	views := make([]dto.JoinRequestView, 0, len(requests))
	for _, request := range requests {
		views = append(views, dto.NewJoinRequestView(request))
	}
	return views, nil
}

// ApproveJoinRequest 批准申请并让申请人以参与者身份进入房间。
// 申请人已在任何房间活跃时拒绝批准。
func (s *MembershipService) ApproveJoinRequest(ctx context.Context, actor Actor, roomID, requestID uint) (*dto.JoinRequestView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "request_id": requestID, "operation": "approve_join_request"})

	request, err := s.findJoinRequest(ctx, roomID, requestID, logCtx)
	if err != nil {
		return nil, err
	}
	room, err := s.ownedRoom(ctx, actor, roomID, logCtx)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		logCtx.Warn("Approval rejected: room has ended")
		return nil, ErrRoomEnded
	}

	unlock, err := s.deps.lock(ctx, userLockKey(request.UserID), roomLockKey(roomID))
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to acquire approval locks")
	}
	defer unlock()

	now := s.deps.now()
	var membership domain.RoomMembership
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.JoinRequests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != domain.JoinRequestPending {
			return ErrJoinRequestNotPending
		}
		// 持有房间锁后重新读取，EndRoom 可能已经完成
		room, err := tx.Rooms().FindByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status == domain.RoomStatusEnded {
			return ErrRoomEnded
		}
		active, err := tx.Memberships().FindActiveByUser(ctx, current.UserID)
		switch {
		case err == nil && active.RoomID == roomID:
			return ErrAlreadyMember
		case err == nil:
			return ErrAlreadyInOtherRoom
		case !isNotFound(err):
			return err
		}
		count, err := tx.Memberships().CountActive(ctx, roomID)
		if err != nil {
			return err
		}
		if room.IsFull(count) {
			return ErrRoomFull
		}

		membership = domain.RoomMembership{
			RoomID:   roomID,
			UserID:   current.UserID,
			Role:     domain.MemberRoleMember,
			Mode:     domain.MemberModeParticipant,
			JoinedAt: now,
		}
		if previous, err := tx.Memberships().Find(ctx, roomID, current.UserID); err == nil {
			membership.Role = previous.Role
		} else if !isNotFound(err) {
			return err
		}
		if err := tx.Memberships().Upsert(ctx, &membership); err != nil {
			return err
		}

		deciderID := actor.UserID
		current.Status = domain.JoinRequestApproved
		current.DecidedByID = &deciderID
		current.DecidedAt = &now
		if err := tx.JoinRequests().Save(ctx, current); err != nil {
			return err
		}
		request = current
		return nil
	})
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to approve join request")
	}

	logCtx.WithField("requester_id", request.UserID).Info("Join request approved")
	afterAdmission(ctx, s.deps, request.UserID, roomID, admission{membership: membership, joined: true}, "room.join")
	s.deps.audit(ctx, actor.UserID, "room.join_request.approve", "join_request", requestID, map[string]interface{}{"room_id": roomID})
	view := dto.NewJoinRequestView(*request)
	return &view, nil
}

// RejectJoinRequest 拒绝待审批的申请
func (s *MembershipService) RejectJoinRequest(ctx context.Context, actor Actor, roomID, requestID uint) (*dto.JoinRequestView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "request_id": requestID, "operation": "reject_join_request"})

	request, err := s.findJoinRequest(ctx, roomID, requestID, logCtx)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	if request.Status != domain.JoinRequestPending {
		return nil, ErrJoinRequestNotPending
	}

	now := s.deps.now()
	deciderID := actor.UserID
	request.Status = domain.JoinRequestRejected
	request.DecidedByID = &deciderID
	request.DecidedAt = &now
	if err := s.deps.Store.JoinRequests().Save(ctx, request); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to reject join request")
	}

	logCtx.Info("Join request rejected")
	s.deps.audit(ctx, actor.UserID, "room.join_request.reject", "join_request", requestID, map[string]interface{}{"room_id": roomID})
	view := dto.NewJoinRequestView(*request)
	return &view, nil
}

func (s *MembershipService) findJoinRequest(ctx context.Context, roomID, requestID uint, logCtx *logrus.Entry) (*domain.RoomJoinRequest, error) {
	request, err := s.deps.Store.JoinRequests().FindByID(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrJoinRequestNotFound
		}
		return nil, mapRepoError(logCtx, err, "Failed to load join request")
	}
	if request.RoomID != roomID {
		return nil, ErrJoinRequestNotFound
	}
	return request, nil
}

// --- Invites ---

// ListInviteCandidates 返回与房主互相聊过天、且当前不在房间内的用户
func (s *MembershipService) ListInviteCandidates(ctx context.Context, actor Actor, roomID uint) ([]dto.InviteCandidate, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "list_invite_candidates"})

	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	partners, err := s.deps.Store.Conversations().MutualPartnerIDs(ctx, actor.UserID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to load conversation partners")
	}
	members, err := s.deps.Store.Memberships().ListActive(ctx, roomID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list members")
	}
	inRoom := make(map[uint]bool, len(members))
	for _, m := range members {
		inRoom[m.UserID] = true
	}
	ids := make([]uint, 0, len(partners))
	for _, id := range partners {
		if !inRoom[id] {
			ids = append(ids, id)
		}
	}
	users, err := s.deps.Store.Users().FindByIDs(ctx, ids)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to load candidate profiles")
	}
	candidates := make([]dto.InviteCandidate, 0, len(users))
	for _, user := range users {
		candidates = append(candidates, dto.InviteCandidate{UserID: user.ID, Nickname: user.DisplayName()})
	}
	return candidates, nil
}

// CreateInvite 邀请互聊用户加入房间，已有待处理邀请时直接返回该邀请。
func (s *MembershipService) CreateInvite(ctx context.Context, actor Actor, roomID, inviteeID uint) (*dto.InviteView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "invitee_id": inviteeID, "operation": "create_invite"})

	room, err := s.ownedRoom(ctx, actor, roomID, logCtx)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}
	if inviteeID == actor.UserID {
		return nil, ErrInviteeNotEligible
	}
	partners, err := s.deps.Store.Conversations().MutualPartnerIDs(ctx, actor.UserID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to load conversation partners")
	}
	if !slices.Contains(partners, inviteeID) {
		logCtx.Warn("Invite rejected: invitee not eligible")
		return nil, ErrInviteeNotEligible
	}

	existing, err := s.deps.Store.Invites().FindPending(ctx, roomID, inviteeID)
	if err == nil {
		view := dto.NewInviteView(*existing)
		return &view, nil
	}
	if !isNotFound(err) {
		return nil, mapRepoError(logCtx, err, "Failed to look up pending invite")
	}

	invite := &domain.RoomInvite{
		RoomID:    roomID,
		InviterID: actor.UserID,
		InviteeID: inviteeID,
		Status:    domain.InviteStatusPending,
	}
	if err := s.deps.Store.Invites().Create(ctx, invite); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to create invite")
	}

	logCtx.WithField("invite_id", invite.ID).Info("Invite created")
	s.deps.audit(ctx, actor.UserID, "room.invite.create", "room_invite", invite.ID, map[string]interface{}{"room_id": roomID, "invitee_id": inviteeID})
	view := dto.NewInviteView(*invite)
	return &view, nil
}

// ListMyInvites 返回调用方收到的待处理邀请
func (s *MembershipService) ListMyInvites(ctx context.Context, actor Actor) ([]dto.InviteView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "operation": "list_my_invites"})
	invites, err := s.deps.Store.Invites().ListPendingByInvitee(ctx, actor.UserID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list invites")
	}
	views := make([]dto.InviteView, 0, len(invites))
	for _, invite := range invites {
		views = append(views, dto.NewInviteView(invite))
	}
	return views, nil
}

// AcceptInvite 接受邀请并进入房间，与直接加入一样维持单房间约束。
func (s *MembershipService) AcceptInvite(ctx context.Context, actor Actor, inviteID uint) (*dto.MembershipView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "invite_id": inviteID, "operation": "accept_invite"})

	invite, err := s.inviteForInvitee(ctx, actor, inviteID, logCtx)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.WithField("room_id", invite.RoomID)

	unlock, err := s.deps.lock(ctx, userLockKey(actor.UserID), roomLockKey(invite.RoomID))
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to acquire invite locks")
	}
	defer unlock()

	room, err := loadRoom(ctx, s.deps.Store, logCtx, invite.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}

	now := s.deps.now()
	var result admission
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Invites().FindByID(ctx, inviteID)
		if err != nil {
			return err
		}
		if current.Status != domain.InviteStatusPending {
			return ErrInviteNotPending
		}
		result, err = admit(ctx, tx, room, actor.UserID, domain.MemberModeParticipant, now)
		if err != nil {
			return err
		}
		current.Status = domain.InviteStatusAccepted
		current.RespondedAt = &now
		return tx.Invites().Save(ctx, current)
	})
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to accept invite")
	}

	logCtx.Info("Invite accepted")
	afterAdmission(ctx, s.deps, actor.UserID, room.ID, result, "room.join")
	s.deps.audit(ctx, actor.UserID, "room.invite.accept", "room_invite", inviteID, nil)
	view := dto.NewMembershipView(result.membership)
	return &view, nil
}

// DeclineInvite 拒绝邀请
func (s *MembershipService) DeclineInvite(ctx context.Context, actor Actor, inviteID uint) (*dto.InviteView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "invite_id": inviteID, "operation": "decline_invite"})

	invite, err := s.inviteForInvitee(ctx, actor, inviteID, logCtx)
	if err != nil {
		return nil, err
	}
	return s.closeInvite(ctx, actor, invite, domain.InviteStatusDeclined, logCtx)
}

// CancelInvite 由邀请人或房主撤回待处理的邀请
func (s *MembershipService) CancelInvite(ctx context.Context, actor Actor, inviteID uint) (*dto.InviteView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "invite_id": inviteID, "operation": "cancel_invite"})

	invite, err := s.findInvite(ctx, inviteID, logCtx)
	if err != nil {
		return nil, err
	}
	if invite.InviterID != actor.UserID {
		room, err := loadRoom(ctx, s.deps.Store, logCtx, invite.RoomID)
		if err != nil {
			return nil, err
		}
		if !room.IsOwner(actor.UserID) {
			return nil, ErrForbidden
		}
	}
	return s.closeInvite(ctx, actor, invite, domain.InviteStatusCanceled, logCtx)
}

func (s *MembershipService) closeInvite(ctx context.Context, actor Actor, invite *domain.RoomInvite, status domain.InviteStatus, logCtx *logrus.Entry) (*dto.InviteView, error) {
	if invite.Status != domain.InviteStatusPending {
		return nil, ErrInviteNotPending
	}
	now := s.deps.now()
	invite.Status = status
	invite.RespondedAt = &now
	if err := s.deps.Store.Invites().Save(ctx, invite); err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to update invite")
	}
	logCtx.WithField("status", status).Info("Invite closed")
	s.deps.audit(ctx, actor.UserID, "room.invite."+strings.ToLower(string(status)), "room_invite", invite.ID, nil)
	view := dto.NewInviteView(*invite)
	return &view, nil
}

func (s *MembershipService) findInvite(ctx context.Context, inviteID uint, logCtx *logrus.Entry) (*domain.RoomInvite, error) {
	invite, err := s.deps.Store.Invites().FindByID(ctx, inviteID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInviteNotFound
		}
		return nil, mapRepoError(logCtx, err, "Failed to load invite")
	}
	return invite, nil
}

func (s *MembershipService) inviteForInvitee(ctx context.Context, actor Actor, inviteID uint, logCtx *logrus.Entry) (*domain.RoomInvite, error) {
	invite, err := s.findInvite(ctx, inviteID, logCtx)
	if err != nil {
		return nil, err
	}
	if invite.InviteeID != actor.UserID {
		logCtx.Warn("Rejected: caller is not the invitee")
		return nil, ErrForbidden
	}
	if invite.Status != domain.InviteStatusPending {
		return nil, ErrInviteNotPending
	}
	return invite, nil
}

// --- Share links ---

// ShareURL 返回分享链接的完整地址
func (s *MembershipService) ShareURL(token string) string {
	if s.deps.ShareBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.deps.ShareBaseURL, "/") + "/" + token
}

// CreateShareLink 创建分享链接，token 冲突时最多尝试三次。
func (s *MembershipService) CreateShareLink(ctx context.Context, actor Actor, roomID uint, expiresInMinutes *int) (*dto.ShareLinkView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "create_share_link"})

	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	var expiresAt *time.Time
	if expiresInMinutes != nil {
		if *expiresInMinutes <= 0 {
			return nil, ErrInvalidExpiry
		}
		at := s.deps.now().Add(time.Duration(*expiresInMinutes) * time.Minute)
		expiresAt = &at
	}

	for attempt := 1; attempt <= shareTokenAttempts; attempt++ {
		token, err := s.deps.Tokens()
		if err != nil {
			return nil, mapRepoError(logCtx, err, "Failed to generate share token")
		}
		link := &domain.RoomShareLink{Token: token, RoomID: roomID, CreatedByID: actor.UserID, ExpiresAt: expiresAt}
		err = s.deps.Store.ShareLinks().Create(ctx, link)
		if errors.Is(err, repository.ErrShareTokenTaken) {
			logCtx.WithField("attempt", attempt).Warn("Share token collision, retrying")
			continue
		}
		if err != nil {
			return nil, mapRepoError(logCtx, err, "Failed to create share link")
		}

		logCtx.WithField("link_id", link.ID).Info("Share link created")
		s.deps.audit(ctx, actor.UserID, "room.share_link.create", "room_share_link", link.ID, map[string]interface{}{"room_id": roomID})
		view := dto.NewShareLinkView(*link, s.ShareURL(link.Token))
		return &view, nil
	}

	logCtx.Error("Share link generation failed after repeated token collisions")
	return nil, ErrShareLinkGenerationFailed
}

// ListShareLinks 返回房间的分享链接，仅房主可见
func (s *MembershipService) ListShareLinks(ctx context.Context, actor Actor, roomID uint) ([]dto.ShareLinkView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "list_share_links"})
	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	links, err := s.deps.Store.ShareLinks().ListByRoom(ctx, roomID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to list share links")
	}
	views := make([]dto.ShareLinkView, 0, len(links))
	for _, link := range links {
		views = append(views, dto.NewShareLinkView(link, s.ShareURL(link.Token)))
	}
	return views, nil
}

// RevokeShareLink 撤销分享链接
func (s *MembershipService) RevokeShareLink(ctx context.Context, actor Actor, roomID, linkID uint) (*dto.ShareLinkView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "link_id": linkID, "operation": "revoke_share_link"})

	if _, err := s.ownedRoom(ctx, actor, roomID, logCtx); err != nil {
		return nil, err
	}
	link, err := s.deps.Store.ShareLinks().FindByID(ctx, linkID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrShareLinkNotFound
		}
		return nil, mapRepoError(logCtx, err, "Failed to load share link")
	}
	if link.RoomID != roomID {
		return nil, ErrShareLinkNotFound
	}
	if !link.IsRevoked() {
		now := s.deps.now()
		if err := s.deps.Store.ShareLinks().Revoke(ctx, linkID, now); err != nil {
			return nil, mapRepoError(logCtx, err, "Failed to revoke share link")
		}
		link.RevokedAt = &now
		logCtx.Info("Share link revoked")
		s.deps.audit(ctx, actor.UserID, "room.share_link.revoke", "room_share_link", linkID, nil)
	}
	view := dto.NewShareLinkView(*link, s.ShareURL(link.Token))
	return &view, nil
}

// ResolveShareLink 解析 token，返回房间摘要。撤销或过期的链接会被拒绝。
func (s *MembershipService) ResolveShareLink(ctx context.Context, actor Actor, token string) (*dto.ResolvedShareLink, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "operation": "resolve_share_link"})

	link, err := s.validLink(ctx, token, logCtx)
	if err != nil {
		return nil, err
	}
	room, err := loadRoom(ctx, s.deps.Store, logCtx, link.RoomID)
	if err != nil {
		return nil, err
	}
	count, err := s.deps.Store.Memberships().CountActive(ctx, room.ID)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to count room members")
	}
	return &dto.ResolvedShareLink{
		Room: dto.NewRoomView(*room, count),
		Link: dto.NewShareLinkView(*link, s.ShareURL(link.Token)),
	}, nil
}

// ShareLinkQRCode 返回分享地址的 PNG 二维码
func (s *MembershipService) ShareLinkQRCode(ctx context.Context, token string, size int) ([]byte, error) {
	logCtx := logrus.WithFields(logrus.Fields{"operation": "share_link_qr"})

	link, err := s.validLink(ctx, token, logCtx)
	if err != nil {
		return nil, err
	}
	content := s.ShareURL(link.Token)
	if content == "" {
		content = link.Token
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, mapRepoError(logCtx, err, "Failed to encode QR code")
	}
	return png, nil
}

func (s *MembershipService) validLink(ctx context.Context, token string, logCtx *logrus.Entry) (*domain.RoomShareLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrShareLinkNotFound
	}
	link, err := s.deps.Store.ShareLinks().FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrShareLinkNotFound
		}
		return nil, mapRepoError(logCtx, err, "Failed to load share link")
	}
	if link.IsRevoked() {
		return nil, ErrShareLinkRevoked
	}
	if link.IsExpired(s.deps.now()) {
		return nil, ErrShareLinkExpired
	}
	return link, nil
}

// PurgeStaleShareLinks 删除过期或撤销超过 retention 的分享链接
func (s *MembershipService) PurgeStaleShareLinks(ctx context.Context, retention time.Duration) (int64, error) {
	logCtx := logrus.WithFields(logrus.Fields{"operation": "purge_share_links"})
	deleted, err := s.deps.Store.ShareLinks().DeleteStale(ctx, s.deps.now().Add(-retention))
	if err != nil {
		return 0, mapRepoError(logCtx, err, "Failed to purge share links")
	}
	logCtx.WithField("deleted", deleted).Info("Stale share links purged")
	return deleted, nil
}
