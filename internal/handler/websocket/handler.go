package websocket

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	httpHandler "party-rooms/internal/handler/http"
	"party-rooms/internal/hub"
	"party-rooms/internal/middleware"
	"party-rooms/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	realtime *service.RealtimeService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。allowedOrigins 为空或包含 "*" 时允许所有来源。
func NewWebSocketHandler(h *hub.Hub, realtime *service.RealtimeService, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if realtime == nil {
		panic("RealtimeService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return &WebSocketHandler{upgrader: upgrader, hub: h, realtime: realtime}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				return true
			}
		}
		return false
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/room/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	actor := service.Actor{UserID: userID, Role: role}
	logCtx := logrus.WithField("user_id", userID)

	roomIDStr := c.Param("roomId")
	roomIDUint64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil || roomIDUint64 == 0 {
		logCtx.Warnf("WS Handler: Invalid room ID format: %s", roomIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID format", "code": service.ErrInvalidInput.Code})
		return
	}
	roomID := uint(roomIDUint64)
	logCtx = logCtx.WithField("room_id", roomID)

	// 升级前校验：只有活跃成员或系统角色可以订阅房间频道
	if err := h.realtime.Authorize(c.Request.Context(), actor, roomID); err != nil {
		logCtx.WithError(err).Warn("WS Handler: Channel authorization failed")
		httpHandler.HandleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写入了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, roomID, actor)
	if !h.hub.QueueMessage(hub.HubMessage{
		Type:   "register",
		Client: client,
		RoomID: roomID,
		UserID: userID,
	}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.Info("WS Handler: Client read/write pumps started")
}
