package database

import (
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Device{},
		&models.DeviceToken{},
		&models.BlockRecord{},
		&models.Alert{},
	)
}
