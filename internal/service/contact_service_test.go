package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/events"
	"couplechat/internal/protocol"
	"couplechat/internal/service"
	"couplechat/internal/store/memory"
)

func TestContactService_List(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserDirectory(
		&domain.User{ID: "me", Username: "me"},
		&domain.User{ID: "ann", Username: "ann", FirstName: "Ann", LastName: "Lee", Avatar: "https://cdn.example.com/ann.png"},
		&domain.User{ID: "bo", Username: "bo smith"},
		&domain.User{ID: "cy", Username: "cy"},
		&domain.User{ID: "tj", Username: "tom&jerry=1"},
	)
	store := memory.NewMessageStore()
	messages := service.NewMessageService(store, events.Nop{}, zap.NewNop(), time.Second)

	_, err := messages.Create(ctx, "ann", protocol.SendMessage{ReceiverID: "me", Text: "dinner?"})
	require.NoError(t, err)
	_, err = messages.Create(ctx, "me", protocol.SendMessage{
		ReceiverID:  "bo",
		Attachments: []domain.Attachment{{Kind: domain.AttachmentVideo, URL: "https://cdn.example.com/v.mp4"}},
	})
	require.NoError(t, err)

	contacts, err := service.NewContactService(users, messages).List(ctx, "me")
	require.NoError(t, err)
	require.Len(t, contacts, 4)

	byID := map[string]service.Contact{}
	for _, c := range contacts {
		byID[c.ID] = c
	}
	assert.NotContains(t, byID, "me")

	ann := byID["ann"]
	assert.Equal(t, "Ann Lee", ann.Name)
	assert.Equal(t, "https://cdn.example.com/ann.png", ann.Avatar)
	assert.Equal(t, "dinner?", ann.LastMessage.Text)
	assert.False(t, ann.LastMessage.IsRead)

	bo := byID["bo"]
	assert.Equal(t, "bo smith", bo.Name)
	assert.Equal(t, "https://ui-avatars.com/api/?name=bo%20smith", bo.Avatar)
	assert.Equal(t, "Media attachment", bo.LastMessage.Text)
	assert.True(t, bo.LastMessage.IsRead, "own messages count as read")

	assert.Equal(t, "https://ui-avatars.com/api/?name=tom%26jerry%3D1", byID["tj"].Avatar)

	cy := byID["cy"]
	assert.Equal(t, "No messages", cy.LastMessage.Text)
	assert.True(t, cy.LastMessage.IsRead)
	assert.False(t, cy.LastMessage.Timestamp.IsZero())
}

type slowDirectory struct{}

func (slowDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowDirectory) List(ctx context.Context) ([]*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestContactService_ListTimesOut(t *testing.T) {
	messages := service.NewMessageService(memory.NewMessageStore(), events.Nop{}, zap.NewNop(), 20*time.Millisecond)

	_, err := service.NewContactService(slowDirectory{}, messages).List(context.Background(), "me")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}
