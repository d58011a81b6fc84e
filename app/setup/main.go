package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/models"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/utils"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("setup")

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := pgrepo.Migrate(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.Info("migrations applied")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := pgrepo.NewUserRepo(config.PostgresDB)
	hasStaff, err := users.HasStaff(ctx)
	if err != nil {
		log.WithError(err).Fatal("staff lookup failed")
	}
	if hasStaff {
		log.Info("staff user already exists")
	} else {
		admin, err := staffUser()
		if err != nil {
			log.WithError(err).Fatal("invalid ADMIN_* settings")
		}
		if err := users.Create(ctx, admin); err != nil {
			log.WithError(err).Fatal("staff user creation failed")
		}
		log.WithField("user_name", admin.UserName).Info("staff user created")
	}

	switch err := config.InitMongo(); {
	case err == nil:
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Fatal("mongo index creation failed")
		}
		log.Info("mongo indexes ensured")
	case errors.Is(err, config.ErrMongoNotConfigured):
		log.Info("MONGO_URI not set; skipping mongo indexes")
	default:
		log.WithError(err).Fatal("MongoDB init error")
	}

	log.Info("setup completed")
}

func staffUser() (*models.User, error) {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return nil, errors.New("ADMIN_PASSWORD is not set")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		UserName:     envOr("ADMIN_USERNAME", "admin"),
		Email:        envOr("ADMIN_EMAIL", "admin@example.com"),
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
