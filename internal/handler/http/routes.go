package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总所有 HTTP handler，便于一次注册路由
type Handlers struct {
	Auth       *AuthHandler
	Room       *RoomHandler
	Membership *MembershipHandler
	Game       *GameHandler
	Message    *MessageHandler
}

// RegisterRoutes 在 /api 下注册所有路由，auth 为认证中间件
func RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc, h Handlers) {
	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.GET("/me", auth, h.Auth.Me)
	}

	// 二维码图片需要能被 <img> 直接引用，不要求认证
	api.GET("/share/:token/qrcode", h.Membership.ShareLinkQRCode)

	secured := api.Group("", auth)
	{
		secured.GET("/share/:token", h.Membership.ResolveShareLink)
		secured.GET("/invites", h.Membership.ListMyInvites)
		secured.POST("/invites/:inviteId/accept", h.Membership.AcceptInvite)
		secured.POST("/invites/:inviteId/decline", h.Membership.DeclineInvite)
		secured.POST("/invites/:inviteId/cancel", h.Membership.CancelInvite)
	}

	rooms := api.Group("/rooms", auth)
	{
		rooms.POST("", h.Room.CreateRoom)
		rooms.GET("", h.Room.ListRooms)
		rooms.GET("/:roomId", h.Room.GetRoom)
		rooms.GET("/:roomId/member-count", h.Room.MemberCount)
		rooms.GET("/:roomId/members", h.Room.ListMembers)
		rooms.POST("/:roomId/join", h.Room.JoinRoom)
		rooms.POST("/:roomId/leave", h.Room.LeaveRoom)
		rooms.POST("/:roomId/start", h.Room.StartRoom)
		rooms.POST("/:roomId/end", h.Room.EndRoom)
		rooms.GET("/:roomId/game", h.Room.GetSelectedGame)
		rooms.PUT("/:roomId/game", h.Room.SetSelectedGame)

		rooms.POST("/:roomId/join-requests", h.Membership.RequestJoin)
		rooms.GET("/:roomId/join-requests", h.Membership.ListJoinRequests)
		rooms.POST("/:roomId/join-requests/:requestId/approve", h.Membership.ApproveJoinRequest)
		rooms.POST("/:roomId/join-requests/:requestId/reject", h.Membership.RejectJoinRequest)

		rooms.GET("/:roomId/invite-candidates", h.Membership.ListInviteCandidates)
		rooms.POST("/:roomId/invites", h.Membership.CreateInvite)

		rooms.POST("/:roomId/share-links", h.Membership.CreateShareLink)
		rooms.GET("/:roomId/share-links", h.Membership.ListShareLinks)
		rooms.DELETE("/:roomId/share-links/:linkId", h.Membership.RevokeShareLink)

		rooms.GET("/:roomId/messages", h.Message.ListMessages)
		rooms.POST("/:roomId/messages", h.Message.SendMessage)

		rooms.GET("/:roomId/dice", h.Game.GetDice)
		rooms.POST("/:roomId/dice/start", h.Game.StartDice)
		rooms.POST("/:roomId/dice/ask", h.Game.AskDice)
		rooms.POST("/:roomId/dice/respond", h.Game.RespondDice)
		rooms.POST("/:roomId/dice/refuse", h.Game.RefuseDice)
		rooms.POST("/:roomId/dice/skip", h.Game.SkipDice)
		rooms.POST("/:roomId/dice/protect/:kind", h.Game.ProtectDice)

		rooms.GET("/:roomId/one-thing", h.Game.GetOneThing)
		rooms.POST("/:roomId/one-thing/start", h.Game.StartOneThing)
		rooms.POST("/:roomId/one-thing/share", h.Game.ShareOneThing)
		rooms.POST("/:roomId/one-thing/react", h.Game.ReactOneThing)
		rooms.POST("/:roomId/one-thing/finish", h.Game.FinishOneThing)
	}

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
}
