package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"couplechat/internal/domain"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: ping postgres: %w", domain.ErrDatabaseConnection, err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT         PRIMARY KEY,
			username   VARCHAR(50)  UNIQUE NOT NULL,
			email      VARCHAR(100),
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name  VARCHAR(100) NOT NULL DEFAULT '',
			avatar     TEXT         NOT NULL DEFAULT ''
		)`,

		// seq breaks created_at ties within the same microsecond.
		`CREATE TABLE IF NOT EXISTS messages (
			id          TEXT        PRIMARY KEY,
			seq         BIGSERIAL,
			sender_id   TEXT        NOT NULL,
			receiver_id TEXT        NOT NULL,
			text        TEXT        NOT NULL DEFAULT '',
			attachments JSONB       NOT NULL DEFAULT '[]'::jsonb,
			is_read     BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id) WHERE NOT is_read`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
