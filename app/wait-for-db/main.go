package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/logger"
)

const (
	maxAttempts   = 30
	retryInterval = 2 * time.Second
)

func main() {
	_ = godotenv.Load()
	log := logger.New("wait-for-db")

	uri := config.PostgresURI()
	if uri == "" {
		log.Fatal("POSTGRES_URI (or DATABASE_URL) environment variable is not set")
	}

	log.Info("waiting for database")
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := ping(uri)
		if err == nil {
			log.Info("database available")
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warnf("database unavailable, retrying in %s", retryInterval)
		time.Sleep(retryInterval)
	}

	log.Error("database connection failed after maximum retries")
	os.Exit(1)
}

func ping(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), retryInterval)
	defer cancel()

	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}
