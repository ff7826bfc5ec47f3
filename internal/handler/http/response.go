package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/middleware"
	"party-rooms/internal/service"
)

func ErrorResponse(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, gin.H{"error": message, "code": errCode})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentActor 读取 Auth 中间件写入的调用方，缺失时直接写 401 响应。
func currentActor(c *gin.Context) (service.Actor, bool) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Role: role}, true
}

// uintParam 解析路径参数，失败时写 400 响应
func uintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || value == 0 {
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidInput.Code, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}

// bindJSON 绑定请求体，失败时写 400 响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logrus.WithError(err).WithField("path", c.FullPath()).Warn("Handler: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": service.ErrInvalidInput.Code, "details": err.Error()})
		return false
	}
	return true
}
