package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"couplechat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB

	mu   sync.Mutex
	last int64
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, receiver_id, text, attachments, is_read, created_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	attachments, err := json.Marshal(nonNil(m.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	id := uuid.NewString()
	createdAt := r.stamp()
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, attachments, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		id,
		m.SenderID,
		m.ReceiverID,
		m.Text,
		string(attachments),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	m.ID = id
	m.IsRead = false
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return nil
}

func (r *MessageRepo) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
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
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ` + order + `, rowid ` + order + `
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, a, b, b, a, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

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

func (r *MessageRepo) MarkRead(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ? AND is_read = 0`, id)
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

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get message: %w", err)
	}
	return false, nil
}

func (r *MessageRepo) MarkReadBatch(ctx context.Context, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND is_read = 0`, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// stamp returns a strictly increasing unix-nano timestamp.
func (r *MessageRepo) stamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= r.last {
		now = r.last + 1
	}
	r.last = now
	return now
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*domain.Message, error) {
	var (
		m           domain.Message
		attachments string
		createdAt   int64
	)
	if err := s.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Text,
		&attachments,
		&m.IsRead,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	m.Attachments = nonNil(m.Attachments)
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return &m, nil
}

func nonNil(a []domain.Attachment) []domain.Attachment {
	if a == nil {
		return []domain.Attachment{}
	}
	return a
}
