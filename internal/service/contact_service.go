package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"couplechat/internal/domain"
)

const (
	avatarFallbackURL = "https://ui-avatars.com/api/?name="
	mediaPlaceholder  = "Media attachment"
	emptyPlaceholder  = "No messages"
)

// ContactService lists the people a user can chat with.
type ContactService struct {
	users    domain.UserDirectory
	messages *MessageService
	now      func() time.Time
}

func NewContactService(users domain.UserDirectory, messages *MessageService) *ContactService {
	return &ContactService{
		users:    users,
		messages: messages,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type LastMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

type Contact struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Avatar      string      `json:"avatar"`
	LastMessage LastMessage `json:"lastMessage"`
}

// List returns every other user with a preview of the latest message.
func (s *ContactService) List(ctx context.Context, userID string) ([]Contact, error) {
	lctx, cancel := bounded(ctx, s.messages.OpTimeout)
	users, err := s.users.List(lctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", timeoutErr(lctx, err))
	}

	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		last, err := s.messages.Latest(ctx, userID, u.ID)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, Contact{
			ID:          u.ID,
			Name:        u.DisplayName(),
			Avatar:      avatarFor(u),
			LastMessage: s.preview(userID, last),
		})
	}
	return contacts, nil
}

func (s *ContactService) preview(userID string, m *domain.Message) LastMessage {
	if m == nil {
		return LastMessage{Text: emptyPlaceholder, Timestamp: s.now(), IsRead: true}
	}
	text := m.Text
	if text == "" {
		text = mediaPlaceholder
	}
	return LastMessage{
		Text:      text,
		Timestamp: m.CreatedAt,
		IsRead:    m.IsRead || m.SenderID == userID,
	}
}

func avatarFor(u *domain.User) string {
	if u.Avatar != "" {
		return u.Avatar
	}
	// Query values need & and = escaped; spaces stay %20 for the avatar service.
	return avatarFallbackURL + strings.ReplaceAll(url.QueryEscape(u.Username), "+", "%20")
}
