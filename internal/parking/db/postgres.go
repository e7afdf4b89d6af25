package db

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

// Connect initializes the connection pool
func Connect() (*pgxpool.Pool, error) {
	dsn := os.Getenv("POSTGRES_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	// Try pinging to make sure it's valid
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	DB = pool

	return pool, nil
}

// ClosePool is for graceful shutdown
func ClosePool() {
	if DB != nil {
		DB.Close()
	}
}

// Migrate creates the cards and sessions tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			card_id VARCHAR(50) PRIMARY KEY,
			plate_number VARCHAR(20) DEFAULT '',
			customer_name VARCHAR(100) DEFAULT '',
			is_active BOOLEAN DEFAULT TRUE,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			card_id VARCHAR(50) NOT NULL,
			vehicle_type VARCHAR(20) NOT NULL DEFAULT 'DAY',
			checkin_time TIMESTAMP NOT NULL,
			checkin_img_front TEXT NOT NULL DEFAULT '',
			checkin_img_rear TEXT NOT NULL DEFAULT '',
			checkout_time TIMESTAMP,
			checkout_img_front TEXT NOT NULL DEFAULT '',
			checkout_img_rear TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'OPEN'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_card_open
			ON sessions (card_id) WHERE status = 'OPEN'`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_checkout_time ON sessions (checkout_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_checkin_time ON sessions (checkin_time)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
