package postgres

import (
	"github.com/sameboat/backend/internal/models"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Job{})
}
