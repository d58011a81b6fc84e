package config

import (
	"errors"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

// PostgresURI returns POSTGRES_URI, falling back to DATABASE_URL.
func PostgresURI() string {
	if v := os.Getenv("POSTGRES_URI"); v != "" {
		return v
	}
	return os.Getenv("DATABASE_URL")
}

func InitPostgres() error {
	uri := PostgresURI()
	if uri == "" {
		return errors.New("POSTGRES_URI (or DATABASE_URL) environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Connection Pooling settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	PostgresDB = db
	return nil
}
