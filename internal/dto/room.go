package dto

import (
	"time"

	"party-rooms/internal/domain"
)

type CreateRoomRequest struct {
	Title           string     `json:"title" binding:"required,max=100"`
	Description     string     `json:"description"`
	Tags            []string   `json:"tags"`
	Status          *string    `json:"status"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
	AllowSpectators *bool      `json:"allowSpectators"`
	Capacity        *int       `json:"capacity"`
}

type JoinRoomRequest struct {
	Mode string `json:"mode"`
}

type MembershipView struct {
	RoomID   uint              `json:"roomId"`
	UserID   uint              `json:"userId"`
	Nickname string            `json:"nickname,omitempty"`
	Role     domain.MemberRole `json:"role"`
	Mode     domain.MemberMode `json:"mode"`
	JoinedAt time.Time         `json:"joinedAt"`
	LeftAt   *time.Time        `json:"leftAt"`
}

func NewMembershipView(m domain.RoomMembership) MembershipView {
	return MembershipView{RoomID: m.RoomID, UserID: m.UserID, Role: m.Role, Mode: m.Mode, JoinedAt: m.JoinedAt, LeftAt: m.LeftAt}
}

type RoomView struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Tags            []string          `json:"tags"`
	Status          domain.RoomStatus `json:"status"`
	StartsAt        *time.Time        `json:"startsAt"`
	EndsAt          *time.Time        `json:"endsAt"`
	CreatedByID     uint              `json:"createdById"`
	IsOfficial      bool              `json:"isOfficial"`
	AllowSpectators bool              `json:"allowSpectators"`
	Capacity        *int              `json:"capacity"`
	MemberCount     int64             `json:"memberCount"`
	Membership      *MembershipView   `json:"membership,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// NewRoomView 构造房间视图，标签解析失败时返回空列表。
func NewRoomView(room domain.Room, memberCount int64) RoomView {
	tags, err := room.TagList()
	if err != nil {
		tags = []string{}
	}
	return RoomView{
		ID:              room.ID,
		Title:           room.Title,
		Description:     room.Description,
		Tags:            tags,
		Status:          room.Status,
		StartsAt:        room.StartsAt,
		EndsAt:          room.EndsAt,
		CreatedByID:     room.CreatedByID,
		IsOfficial:      room.IsOfficial,
		AllowSpectators: room.AllowSpectators,
		Capacity:        room.Capacity,
		MemberCount:     memberCount,
		CreatedAt:       room.CreatedAt,
	}
}

type JoinRequestView struct {
	ID          uint                     `json:"id"`
	RoomID      uint                     `json:"roomId"`
	UserID      uint                     `json:"userId"`
	Status      domain.JoinRequestStatus `json:"status"`
	DecidedByID *uint                    `json:"decidedById"`
	DecidedAt   *time.Time               `json:"decidedAt"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func NewJoinRequestView(r domain.RoomJoinRequest) JoinRequestView {
	return JoinRequestView{
		ID: r.ID, RoomID: r.RoomID, UserID: r.UserID, Status: r.Status,
		DecidedByID: r.DecidedByID, DecidedAt: r.DecidedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type CreateInviteRequest struct {
	InviteeID uint `json:"inviteeId" binding:"required"`
}

type InviteView struct {
	ID          uint                `json:"id"`
	RoomID      uint                `json:"roomId"`
	InviterID   uint                `json:"inviterId"`
	InviteeID   uint                `json:"inviteeId"`
	Status      domain.InviteStatus `json:"status"`
	RespondedAt *time.Time          `json:"respondedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func NewInviteView(i domain.RoomInvite) InviteView {
	return InviteView{
		ID: i.ID, RoomID: i.RoomID, InviterID: i.InviterID, InviteeID: i.InviteeID,
		Status: i.Status, RespondedAt: i.RespondedAt, CreatedAt: i.CreatedAt,
	}
}

type InviteCandidate struct {
	UserID   uint   `json:"userId"`
	Nickname string `json:"nickname"`
}

type CreateShareLinkRequest struct {
	ExpiresInMinutes *int `json:"expiresInMinutes"`
}

type ShareLinkView struct {
	ID        uint       `json:"id"`
	Token     string     `json:"token"`
	URL       string     `json:"url,omitempty"`
	RoomID    uint       `json:"roomId"`
	ExpiresAt *time.Time `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func NewShareLinkView(l domain.RoomShareLink, url string) ShareLinkView {
	return ShareLinkView{
		ID: l.ID, Token: l.Token, URL: url, RoomID: l.RoomID,
		ExpiresAt: l.ExpiresAt, RevokedAt: l.RevokedAt, CreatedAt: l.CreatedAt,
	}
}

// ResolvedShareLink 是解析分享链接后返回的房间摘要
type ResolvedShareLink struct {
	Room RoomView      `json:"room"`
	Link ShareLinkView `json:"link"`
}

type MessageView struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"roomId"`
	SenderID  uint      `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewMessageView(m domain.RoomMessage) MessageView {
	return MessageView{ID: m.ID, RoomID: m.RoomID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt}
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
