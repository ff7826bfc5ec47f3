package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
)

// Gin 上下文中保存认证信息的 key
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// ErrMissingAuthHeader 表示请求既没有 Authorization 头也没有 token 参数
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证 JWT token，并把 user_id 与 role 写入上下文。
// WebSocket 连接无法设置请求头，允许通过 ?token= 传递。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "code": "UNAUTHORIZED"})
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format", "code": "UNAUTHORIZED"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Token is expired")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		// JWT 数字默认为 float64，需要安全转换为 uint
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
			logrus.Errorf("Auth middleware: 'user_id' claim is not a valid positive integer number: %v", claims["user_id"])
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}
		userID := uint(userIDFloat)

		// 旧 token 没有 role 时按普通用户处理
		role := domain.RoleUser
		if roleClaim, ok := claims["role"].(string); ok && domain.UserRole(roleClaim).IsValid() {
			role = domain.UserRole(roleClaim)
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		logrus.WithFields(logrus.Fields{"user_id": userID, "role": role}).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// CurrentUser 从上下文读取认证信息，未经过 Auth 中间件时 ok 为 false。
func CurrentUser(c *gin.Context) (userID uint, role domain.UserRole, ok bool) {
	userIDAny, exists := c.Get(ContextUserID)
	if !exists {
		return 0, "", false
	}
	userID, ok = userIDAny.(uint)
	if !ok {
		return 0, "", false
	}
	if roleAny, exists := c.Get(ContextRole); exists {
		role, _ = roleAny.(domain.UserRole)
	}
	if role == "" {
		role = domain.RoleUser
	}
	return userID, role, true
}

// extractToken 从 Authorization 头或 token 查询参数中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
