// Package presence mirrors the local presence registry into Redis so other
// processes can see who is online. Routing still uses the local registry.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"couplechat/internal/domain"
)

// delIfOwner removes the key only while it still names the given connection.
var delIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

var _ domain.PresenceObserver = (*Mirror)(nil)

func NewMirror(client *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *Mirror {
	return &Mirror{client: client, prefix: prefix, ttl: ttl, log: log}
}

// Dial creates a client and checks connectivity.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (m *Mirror) key(userID string) string { return fmt.Sprintf("%s:presence:%s", m.prefix, userID) }

func (m *Mirror) PresenceChanged(ctx context.Context, ev domain.PresenceEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	if ev.Online {
		err = m.client.Set(ctx, m.key(ev.UserID), ev.ConnID, m.ttl).Err()
	} else {
		err = delIfOwner.Run(ctx, m.client, []string{m.key(ev.UserID)}, ev.ConnID).Err()
	}
	if err != nil {
		m.log.Warn("presence mirror update failed",
			zap.String("user_id", ev.UserID),
			zap.Bool("online", ev.Online),
			zap.Error(err),
		)
	}
}

// IsOnline reports whether any process has the user registered.
func (m *Mirror) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}
	return n > 0, nil
}

// Refresh re-writes every entry of snapshot so keys outlive their TTL while
// the connection stays up.
func (m *Mirror) Refresh(ctx context.Context, snapshot map[string]string) error {
	if len(snapshot) == 0 {
		return nil
	}
	pipe := m.client.Pipeline()
	for userID, connID := range snapshot {
		pipe.Set(ctx, m.key(userID), connID, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	return nil
}

// Run refreshes the mirror every ttl/2 until ctx is done.
func (m *Mirror) Run(ctx context.Context, snapshot func() map[string]string) {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx, snapshot()); err != nil {
				m.log.Warn("presence refresh failed", zap.Error(err))
			}
		}
	}
}
