package domain

import "time"

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleMember MemberRole = "MEMBER"
)

// MemberMode 区分参与者和旁观者
type MemberMode string

const (
	MemberModeParticipant MemberMode = "PARTICIPANT"
	MemberModeObserver    MemberMode = "OBSERVER"
)

func (m MemberMode) IsValid() bool {
	return m == MemberModeParticipant || m == MemberModeObserver
}

// RoomMembership 记录用户与房间的关联，(RoomID, UserID) 唯一。
// LeftAt 为 nil 表示当前活跃；同一用户在全系统内最多只有一条活跃记录。
type RoomMembership struct {
	ID       uint       `gorm:"primaryKey"`
	RoomID   uint       `gorm:"uniqueIndex:idx_membership_room_user;not null"`
	UserID   uint       `gorm:"uniqueIndex:idx_membership_room_user;index:idx_membership_user_left;not null"`
	Role     MemberRole `gorm:"type:varchar(20);not null"`
	Mode     MemberMode `gorm:"type:varchar(20);not null"`
	JoinedAt time.Time  `gorm:"not null"`
	LeftAt   *time.Time `gorm:"index:idx_membership_user_left"`
}

func (m *RoomMembership) IsActive() bool {
	return m.LeftAt == nil
}

func (m *RoomMembership) IsParticipant() bool {
	return m.IsActive() && m.Mode == MemberModeParticipant
}
