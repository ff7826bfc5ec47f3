// Package dto 定义了 HTTP 与 WebSocket 边界上的数据结构。
package dto

import (
	"time"

	"party-rooms/internal/domain"
)

// 房间频道内广播的事件类型
const (
	EventMemberCount     = "room.member_count"
	EventMemberLeft      = "room.member_left"
	EventGameSelected    = "room.game_selected"
	EventDiceUpdated     = "room.dice_updated"
	EventOneThingUpdated = "room.one_thing_updated"
	EventStatusChanged   = "room.status_changed"
	EventChat            = "room.chat"
	EventNotice          = "room.notice"
	EventPing            = "room.ping"
	EventSnapshot        = "room.snapshot"
	EventError           = "error"
)

// RoomEvent 是推送给房间订阅者的消息信封
type RoomEvent struct {
	Type    string      `json:"type"`
	RoomID  uint        `json:"roomId"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

func NewRoomEvent(eventType string, roomID uint, payload interface{}) RoomEvent {
	return RoomEvent{Type: eventType, RoomID: roomID, Payload: payload, At: time.Now().UTC()}
}

type MemberCountPayload struct {
	Count int64 `json:"count"`
}

// MemberLeftPayload 通知房间有成员离开，离开者在本房间的连接随后被断开。
type MemberLeftPayload struct {
	UserID uint   `json:"userId"`
	Reason string `json:"reason"`
}

// 成员离开的原因
const (
	LeftReasonLeft     = "left"
	LeftReasonSwitched = "switched_room"
)

type SelectedGamePayload struct {
	Type         domain.GameType `json:"type"`
	SelectedAt   *time.Time      `json:"selectedAt"`
	SelectedByID *uint           `json:"selectedById"`
}

func NewSelectedGamePayload(selected domain.SelectedGame) SelectedGamePayload {
	return SelectedGamePayload{Type: selected.Type, SelectedAt: selected.SelectedAt, SelectedByID: selected.SelectedByID}
}

type StatusChangedPayload struct {
	Status   domain.RoomStatus `json:"status"`
	StartsAt *time.Time        `json:"startsAt"`
	EndsAt   *time.Time        `json:"endsAt"`
}

type ChatPayload struct {
	MessageID uint      `json:"messageId"`
	UserID    uint      `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type NoticePayload struct {
	UserID  uint   `json:"userId"`
	Content string `json:"content"`
}

type PingPayload struct {
	UserID uint `json:"userId"`
}

// SnapshotPayload 是连接建立后发送给新客户端的初始状态
type SnapshotPayload struct {
	MemberCount int64               `json:"memberCount"`
	Selected    SelectedGamePayload `json:"selected"`
}

// ErrorDTO 表示发送给单个客户端的错误消息
type ErrorDTO struct {
	Type    string     `json:"type"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Until   *time.Time `json:"until,omitempty"`
}

// ClientMessage 是客户端通过 WebSocket 发来的消息
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// 客户端消息类型
const (
	ClientChat   = "chat"
	ClientNotice = "notice"
	ClientPing   = "ping"
)
