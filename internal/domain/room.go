package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// RoomStatus 表示房间的生命周期状态，只能向前推进：SCHEDULED -> LIVE -> ENDED。
type RoomStatus string

const (
	RoomStatusScheduled RoomStatus = "SCHEDULED"
	RoomStatusLive      RoomStatus = "LIVE"
	RoomStatusEnded     RoomStatus = "ENDED"
)

// MinRoomCapacity 是房间容量的下限
const MinRoomCapacity = 3

func (s RoomStatus) IsValid() bool {
	switch s {
	case RoomStatusScheduled, RoomStatusLive, RoomStatusEnded:
		return true
	}
	return false
}

// Room 表示一个可加入的房间。
type Room struct {
	ID              uint           `gorm:"primaryKey"`
	Title           string         `gorm:"size:100;not null"`
	Description     string         `gorm:"type:text"`
	Tags            datatypes.JSON // 有序的字符串数组，见 TagList/SetTags
	Status          RoomStatus     `gorm:"type:varchar(20);index;not null"`
	StartsAt        *time.Time
	EndsAt          *time.Time
	CreatedByID     uint      `gorm:"index;not null"`
	IsOfficial      bool      `gorm:"not null;default:false"`
	AllowSpectators bool      `gorm:"not null;default:true"`
	Capacity        *int      // nil 表示不限人数
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TagList 将 Tags 字段解析为字符串切片。
func (r *Room) TagList() ([]string, error) {
	if len(r.Tags) == 0 || string(r.Tags) == "null" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal(r.Tags, &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// SetTags 将标签序列化后写入 Tags 字段。
func (r *Room) SetTags(tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	bytes, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal room tags: %w", err)
	}
	r.Tags = datatypes.JSON(bytes)
	return nil
}

func (r *Room) IsOwner(userID uint) bool {
	return r.CreatedByID == userID
}

// IsFull 判断在 activeCount 个活跃成员的情况下房间是否已满。
func (r *Room) IsFull(activeCount int64) bool {
	if r.Capacity == nil {
		return false
	}
	return activeCount >= int64(*r.Capacity)
}
