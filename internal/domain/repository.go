package domain

import (
	"context"
)

// MessageStore defines persistence operations for direct messages.
//
// Implementations assign ID and CreatedAt in Create. FindByPair returns the
// messages exchanged between a and b in either direction, ordered by
// CreatedAt; limit <= 0 means no limit.
type MessageStore interface {
	Create(ctx context.Context, m *Message) error
	FindByID(ctx context.Context, id string) (*Message, error)
	FindByPair(ctx context.Context, a, b string, ascending bool, limit int) ([]*Message, error)
	// MarkRead sets IsRead on one message. changed is false when the message
	// was already read. Returns ErrNotFound for an unknown id.
	MarkRead(ctx context.Context, id string) (changed bool, err error)
	// MarkReadBatch marks every unread message addressed to receiverID.
	MarkReadBatch(ctx context.Context, receiverID string) (int64, error)
}

// UserDirectory is the read-only view of user profiles.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// UserWriter provisions user profiles. Profiles are owned by an external
// account system; this is used by tooling to sync them in.
type UserWriter interface {
	Upsert(ctx context.Context, u *User) error
}
