package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"party-rooms/internal/domain"
)

// MigrateDB 自动迁移所有领域模型对应的表结构。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	models := []interface{}{
		&domain.User{},
		&domain.Room{},
		&domain.RoomMembership{},
		&domain.RoomGameState{},
		&domain.RoomInvite{},
		&domain.RoomJoinRequest{},
		&domain.RoomShareLink{},
		&domain.Trace{},
		&domain.RoomMessage{},
		&domain.DirectMessage{},
		&domain.AuditLog{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			logrus.Errorf("Failed to auto-migrate %T: %v", model, err)
			return fmt.Errorf("failed to auto-migrate %T: %w", model, err)
		}
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
