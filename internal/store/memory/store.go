// Package memory keeps messages and users in process memory. It backs the
// "memory" store driver and the realtime tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"couplechat/internal/domain"
)

type MessageStore struct {
	mu   sync.RWMutex
	msgs []*domain.Message // insertion order
	byID map[string]*domain.Message
	last time.Time
	now  func() time.Time
}

var _ domain.MessageStore = (*MessageStore)(nil)

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID: make(map[string]*domain.Message),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MessageStore) Create(ctx context.Context, m *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// createdAt must order messages even when two land on the same tick.
	ts := s.now()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Nanosecond)
	}
	s.last = ts

	m.ID = uuid.NewString()
	m.CreatedAt = ts
	m.IsRead = false

	stored := clone(m)
	s.msgs = append(s.msgs, stored)
	s.byID[stored.ID] = stored
	return nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(m), nil
}

func (s *MessageStore) FindByPair(ctx context.Context, a, b string, ascending bool, limit int) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Message, 0)
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, clone(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if m.IsRead {
		return false, nil
	}
	m.IsRead = true
	return true, nil
}

func (s *MessageStore) MarkReadBatch(ctx context.Context, receiverID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.msgs {
		if m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func clone(m *domain.Message) *domain.Message {
	cp := *m
	cp.Attachments = append([]domain.Attachment{}, m.Attachments...)
	return &cp
}

// UserDirectory is a fixed set of users, seeded at startup or in tests.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

var (
	_ domain.UserDirectory = (*UserDirectory)(nil)
	_ domain.UserWriter    = (*UserDirectory)(nil)
)

func NewUserDirectory(users ...*domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]*domain.User)}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

// Put adds or replaces a user.
func (d *UserDirectory) Put(u *domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.users[u.ID] = &cp
}

// Upsert is Put behind the domain.UserWriter signature.
func (d *UserDirectory) Upsert(_ context.Context, u *domain.User) error {
	d.Put(u)
	return nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *UserDirectory) List(ctx context.Context) ([]*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*domain.User, 0, len(d.users))
	for _, u := range d.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
