// Package domain 定义了应用程序中使用的领域模型 (同时也是数据库模型)。
package domain

import "time"

// UserRole 表示用户的系统角色。
type UserRole string

const (
	RoleUser     UserRole = "USER"
	RoleOfficial UserRole = "OFFICIAL"
	RoleAdmin    UserRole = "ADMIN"
)

// IsValid 检查角色是否为已知值。
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleOfficial, RoleAdmin:
		return true
	}
	return false
}

// IsSystem 官方账号和管理员属于系统角色
func (r UserRole) IsSystem() bool {
	return r == RoleOfficial || r == RoleAdmin
}

// User 表示应用程序中的用户。
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password  string    `gorm:"type:text;not null"` // bcrypt 哈希
	Email     string    `gorm:"type:varchar(191);index:idx_email"`
	Nickname  string    `gorm:"type:varchar(64)"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'USER'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// DisplayName 返回昵称，没有昵称时退回用户名
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}
