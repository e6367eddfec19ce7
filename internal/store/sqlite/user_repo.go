package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"couplechat/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var (
	_ domain.UserDirectory = (*UserRepo)(nil)
	_ domain.UserWriter    = (*UserRepo)(nil)
)

const userColumns = `id, username, email, first_name, last_name, avatar`

// Upsert inserts the user or refreshes the profile fields of an existing one.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, first_name, last_name, avatar)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar = excluded.avatar
	`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Username, nullString(u.Email), u.FirstName, u.LastName, u.Avatar); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &email, &u.FirstName, &u.LastName, &u.Avatar); err != nil {
		return nil, err
	}
	u.Email = email.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
