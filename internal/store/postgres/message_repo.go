package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"couplechat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.Attachments == nil {
		m.Attachments = []domain.Attachment{}
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	id := uuid.NewString()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, attachments, is_read)
		VALUES ($1, $2, $3, $4, $5::jsonb, FALSE)
		RETURNING created_at
	`, id, m.SenderID, m.ReceiverID, m.Text, string(attachments),
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = id
	m.IsRead = false
	m.CreatedAt = m.CreatedAt.UTC()
	return nil
}

func (r *MessageRepo) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, text, attachments, is_read, created_at
		FROM messages WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) FindByPair(ctx context.Context, a, b string, ascending bool, limit int) ([]*domain.Message, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, attachments, is_read, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at `+order+`, seq `+order+`
		LIMIT $3
	`, a, b, lim)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *MessageRepo) MarkRead(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1 AND NOT is_read`, id)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("get message: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *MessageRepo) MarkReadBatch(ctx context.Context, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE receiver_id = $1 AND NOT is_read`, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*domain.Message, error) {
	var (
		m           domain.Message
		attachments []byte
	)
	if err := s.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &attachments, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if m.Attachments == nil {
		m.Attachments = []domain.Attachment{}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	res := make([]*domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return res, nil
}
