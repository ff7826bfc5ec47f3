package domain

import "time"

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusDeclined InviteStatus = "DECLINED"
	InviteStatusCanceled InviteStatus = "CANCELED"
)

// RoomInvite 房主发给互相聊过天的用户的邀请
type RoomInvite struct {
	ID          uint         `gorm:"primaryKey"`
	RoomID      uint         `gorm:"index;not null"`
	InviterID   uint         `gorm:"not null"`
	InviteeID   uint         `gorm:"index;not null"`
	Status      InviteStatus `gorm:"type:varchar(20);not null"`
	RespondedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestApproved JoinRequestStatus = "APPROVED"
	JoinRequestRejected JoinRequestStatus = "REJECTED"
)

// RoomJoinRequest 需要房主审批的入房申请，(RoomID, UserID) 唯一，重复申请会重置为 PENDING。
type RoomJoinRequest struct {
	ID          uint              `gorm:"primaryKey"`
	RoomID      uint              `gorm:"uniqueIndex:idx_join_request_room_user;not null"`
	UserID      uint              `gorm:"uniqueIndex:idx_join_request_room_user;not null"`
	Status      JoinRequestStatus `gorm:"type:varchar(20);not null"`
	DecidedByID *uint
	DecidedAt   *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// RoomShareLink 带随机 token 的分享链接
type RoomShareLink struct {
	ID          uint   `gorm:"primaryKey"`
	Token       string `gorm:"uniqueIndex;size:64;not null"`
	RoomID      uint   `gorm:"index;not null"`
	CreatedByID uint   `gorm:"not null"`
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (l *RoomShareLink) IsRevoked() bool {
	return l.RevokedAt != nil
}

func (l *RoomShareLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}
