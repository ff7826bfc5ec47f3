package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// MembershipHandler 处理入房申请、邀请和分享链接
type MembershipHandler struct {
	membershipService *service.MembershipService
}

func NewMembershipHandler(membershipService *service.MembershipService) *MembershipHandler {
	if membershipService == nil {
		panic("MembershipService cannot be nil for MembershipHandler")
	}
	return &MembershipHandler{membershipService: membershipService}
}

// actorAndRoom 读取调用方和 :roomId
func actorAndRoom(c *gin.Context) (service.Actor, uint, bool) {
	actor, ok := currentActor(c)
	if !ok {
		return service.Actor{}, 0, false
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return service.Actor{}, 0, false
	}
	return actor, roomID, true
}

// --- 入房申请 ---

func (h *MembershipHandler) RequestJoin(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	request, err := h.membershipService.RequestJoin(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, request)
}

func (h *MembershipHandler) ListJoinRequests(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	requests, err := h.membershipService.ListJoinRequests(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"requests": requests})
}

func (h *MembershipHandler) ApproveJoinRequest(c *gin.Context) {
	h.decideJoinRequest(c, h.membershipService.ApproveJoinRequest)
}

func (h *MembershipHandler) RejectJoinRequest(c *gin.Context) {
	h.decideJoinRequest(c, h.membershipService.RejectJoinRequest)
}

func (h *MembershipHandler) decideJoinRequest(c *gin.Context, decide func(ctx context.Context, actor service.Actor, roomID, requestID uint) (*dto.JoinRequestView, error)) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	requestID, ok := uintParam(c, "requestId")
	if !ok {
		return
	}
	request, err := decide(c.Request.Context(), actor, roomID, requestID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, request)
}

// --- 邀请 ---

func (h *MembershipHandler) ListInviteCandidates(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	candidates, err := h.membershipService.ListInviteCandidates(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"candidates": candidates})
}

func (h *MembershipHandler) CreateInvite(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req dto.CreateInviteRequest
	if !bindJSON(c, &req) {
		return
	}
	invite, err := h.membershipService.CreateInvite(c.Request.Context(), actor, roomID, req.InviteeID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "invite_id": invite.ID}).Info("Handler.CreateInvite: Invite created")
	SuccessResponse(c, http.StatusCreated, invite)
}

func (h *MembershipHandler) ListMyInvites(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	invites, err := h.membershipService.ListMyInvites(c.Request.Context(), actor)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"invites": invites})
}

func (h *MembershipHandler) AcceptInvite(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	inviteID, ok := uintParam(c, "inviteId")
	if !ok {
		return
	}
	membership, err := h.membershipService.AcceptInvite(c.Request.Context(), actor, inviteID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, membership)
}

func (h *MembershipHandler) DeclineInvite(c *gin.Context) {
	h.closeInvite(c, h.membershipService.DeclineInvite)
}

func (h *MembershipHandler) CancelInvite(c *gin.Context) {
	h.closeInvite(c, h.membershipService.CancelInvite)
}

func (h *MembershipHandler) closeInvite(c *gin.Context, closeFn func(ctx context.Context, actor service.Actor, inviteID uint) (*dto.InviteView, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	inviteID, ok := uintParam(c, "inviteId")
	if !ok {
		return
	}
	invite, err := closeFn(c.Request.Context(), actor, inviteID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, invite)
}

// --- 分享链接 ---

func (h *MembershipHandler) CreateShareLink(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req dto.CreateShareLinkRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	link, err := h.membershipService.CreateShareLink(c.Request.Context(), actor, roomID, req.ExpiresInMinutes)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, link)
}

func (h *MembershipHandler) ListShareLinks(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	links, err := h.membershipService.ListShareLinks(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"links": links})
}

func (h *MembershipHandler) RevokeShareLink(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	linkID, ok := uintParam(c, "linkId")
	if !ok {
		return
	}
	link, err := h.membershipService.RevokeShareLink(c.Request.Context(), actor, roomID, linkID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, link)
}

func (h *MembershipHandler) ResolveShareLink(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	resolved, err := h.membershipService.ResolveShareLink(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, resolved)
}

const maxQRCodeSize = 1024

// ShareLinkQRCode 返回分享链接的二维码 PNG，?size= 为边长像素
func (h *MembershipHandler) ShareLinkQRCode(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	if size > maxQRCodeSize {
		size = maxQRCodeSize
	}
	png, err := h.membershipService.ShareLinkQRCode(c.Request.Context(), c.Param("token"), size)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
