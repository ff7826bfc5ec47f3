package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Trace 是大厅里的公开动态。骰子惩罚生成的动态没有作者。
type Trace struct {
	ID        uint   `gorm:"primaryKey"`
	AuthorID  *uint  `gorm:"index"`
	RoomID    *uint  `gorm:"index"`
	Content   string `gorm:"type:text;not null"`
	IsPublic  bool   `gorm:"not null;default:true"`
	Source    string `gorm:"size:32"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// RoomMessage 房间内的聊天消息
type RoomMessage struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"index;not null"`
	SenderID  uint      `gorm:"index;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// DirectMessage 私聊消息，只用于计算"互相聊过天"的邀请资格。
type DirectMessage struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"index;not null"`
	SenderID       uint   `gorm:"index;not null"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// AuditLog 追加写入的审计记录
type AuditLog struct {
	ID         uint  `gorm:"primaryKey"`
	ActorID    *uint `gorm:"index"`
	Action     string `gorm:"size:64;index;not null"`
	TargetType string `gorm:"size:32;not null"`
	TargetID   string `gorm:"size:64"`
	Metadata   datatypes.JSON
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

// NewAuditLog 构造一条审计记录，metadata 序列化失败时忽略元数据。
func NewAuditLog(actorID uint, action, targetType, targetID string, metadata map[string]interface{}) AuditLog {
	entry := AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if actorID != 0 {
		id := actorID
		entry.ActorID = &id
	}
	if len(metadata) > 0 {
		if bytes, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(bytes)
		}
	}
	return entry
}
