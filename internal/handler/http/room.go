package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// RoomHandler 封装了房间生命周期与游戏选择相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService      *service.RoomService
	selectionService *service.GameSelectionService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, selectionService *service.GameSelectionService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if selectionService == nil {
		panic("GameSelectionService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, selectionService: selectionService}
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), actor, req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": room.ID}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, room)
}

// ListRooms 支持 ?status=LIVE,SCHEDULED&limit=&offset=
func (h *RoomHandler) ListRooms(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rooms, err := h.roomService.ListRooms(c.Request.Context(), actor, statuses, limit, offset)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	room, err := h.roomService.GetRoom(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

func (h *RoomHandler) MemberCount(c *gin.Context) {
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	count, err := h.roomService.MemberCount(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.MemberCountPayload{Count: count})
}

func (h *RoomHandler) ListMembers(c *gin.Context) {
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	members, err := h.roomService.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"members": members})
}

// JoinRoom 请求体可选，缺省以 PARTICIPANT 身份加入
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	var req dto.JoinRoomRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	membership, err := h.roomService.JoinRoom(c.Request.Context(), actor, roomID, domain.MemberMode(strings.ToUpper(strings.TrimSpace(req.Mode))))
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID}).WithError(err).Warn("Handler.JoinRoom: Failed to join room via service")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, membership)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	if err := h.roomService.LeaveRoom(c.Request.Context(), actor, roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) StartRoom(c *gin.Context) {
	h.transition(c, h.roomService.StartRoom)
}

func (h *RoomHandler) EndRoom(c *gin.Context) {
	h.transition(c, h.roomService.EndRoom)
}

func (h *RoomHandler) transition(c *gin.Context, fn func(ctx context.Context, actor service.Actor, roomID uint) (*dto.RoomView, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	room, err := fn(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

func (h *RoomHandler) GetSelectedGame(c *gin.Context) {
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	selected, err := h.selectionService.Get(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, selected)
}

func (h *RoomHandler) SetSelectedGame(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	var req dto.SelectGameRequest
	if !bindJSON(c, &req) {
		return
	}
	selected, err := h.selectionService.Set(c.Request.Context(), actor, roomID, req.Type)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, selected)
}
