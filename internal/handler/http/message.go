package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// MessageHandler 处理房间聊天记录
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	if messageService == nil {
		panic("MessageService cannot be nil for MessageHandler")
	}
	return &MessageHandler{messageService: messageService}
}

// ListMessages 支持 ?before=<messageId>&limit=
func (h *MessageHandler) ListMessages(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	beforeID, _ := strconv.ParseUint(c.Query("before"), 10, 32)
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.messageService.List(c.Request.Context(), actor, roomID, uint(beforeID), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": messages})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	message, err := h.messageService.Send(c.Request.Context(), actor, roomID, req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, message)
}
