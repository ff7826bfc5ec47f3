package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/service"
)

// statusByCode 将业务错误码映射为 HTTP 状态码，未列出的业务错误按 400 处理。
var statusByCode = map[string]int{
	service.ErrAuthenticationFailed.Code: http.StatusUnauthorized,

	service.ErrForbidden.Code:        http.StatusForbidden,
	service.ErrNotMember.Code:        http.StatusForbidden,
	service.ErrNotParticipant.Code:   http.StatusForbidden,
	service.ErrRoomNotAvailable.Code: http.StatusForbidden,
	service.ErrDiceNotAsker.Code:     http.StatusForbidden,
	service.ErrDiceNotEligible.Code:  http.StatusForbidden,
	service.ErrDiceSilenced.Code:     http.StatusForbidden,

	service.ErrUserNotFound.Code:        http.StatusNotFound,
	service.ErrRoomNotFound.Code:        http.StatusNotFound,
	service.ErrMembershipNotFound.Code:  http.StatusNotFound,
	service.ErrJoinRequestNotFound.Code: http.StatusNotFound,
	service.ErrInviteNotFound.Code:      http.StatusNotFound,
	service.ErrShareLinkNotFound.Code:   http.StatusNotFound,

	service.ErrShareLinkRevoked.Code: http.StatusGone,
	service.ErrShareLinkExpired.Code: http.StatusGone,

	service.ErrRegistrationFailed.Code:     http.StatusConflict,
	service.ErrConflict.Code:               http.StatusConflict,
	service.ErrRoomEnded.Code:              http.StatusConflict,
	service.ErrRoomFull.Code:               http.StatusConflict,
	service.ErrRoomNotScheduled.Code:       http.StatusConflict,
	service.ErrRoomNotLive.Code:            http.StatusConflict,
	service.ErrJoinRequestNotPending.Code:  http.StatusConflict,
	service.ErrAlreadyMember.Code:          http.StatusConflict,
	service.ErrAlreadyInOtherRoom.Code:     http.StatusConflict,
	service.ErrInviteNotPending.Code:       http.StatusConflict,
	service.ErrDiceRoundActive.Code:        http.StatusConflict,
	service.ErrNoParticipants.Code:         http.StatusConflict,
	service.ErrDiceInvalidPhase.Code:       http.StatusConflict,
	service.ErrOneThingAlreadyActive.Code:  http.StatusConflict,
	service.ErrOneThingNotActive.Code:      http.StatusConflict,
	service.ErrOneThingAlreadyShared.Code:  http.StatusConflict,
	service.ErrOneThingTargetNotShare.Code: http.StatusConflict,

	service.ErrShareLinkGenerationFailed.Code: http.StatusServiceUnavailable,
	service.ErrInternalServer.Code:            http.StatusInternalServerError,
}

// StatusForCode 返回错误码对应的 HTTP 状态码
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusBadRequest
}

// HandleServiceError 将服务层错误写成 {"error", "code"} 响应，禁言错误附带 until。
func HandleServiceError(c *gin.Context, err error) {
	var silenced *service.SilencedError
	if errors.As(err, &silenced) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": err.Error(),
			"code":  service.ErrDiceSilenced.Code,
			"until": silenced.Until.UTC(),
		})
		return
	}

	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, service.ErrInternalServer.Code, "An unexpected error occurred")
		return
	}
	status := StatusForCode(svcErr.Code)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Handler: Service failure")
	}
	ErrorResponse(c, status, svcErr.Code, svcErr.Message)
}
