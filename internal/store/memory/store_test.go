package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couplechat/internal/domain"
	"couplechat/internal/store/memory"
)

func TestMessageStore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMessageStore()

	first := &domain.Message{SenderID: "a", ReceiverID: "b", Text: "hi"}
	second := &domain.Message{SenderID: "b", ReceiverID: "a", Text: "hey"}
	other := &domain.Message{SenderID: "a", ReceiverID: "c", Text: "elsewhere"}
	for _, m := range []*domain.Message{first, second, other} {
		require.NoError(t, s.Create(ctx, m))
	}

	t.Run("create assigns id and ordered timestamps", func(t *testing.T) {
		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.True(t, second.CreatedAt.After(first.CreatedAt))
	})

	t.Run("find by pair in both directions", func(t *testing.T) {
		asc, err := s.FindByPair(ctx, "b", "a", true, 0)
		require.NoError(t, err)
		require.Len(t, asc, 2)
		assert.Equal(t, first.ID, asc[0].ID)
		assert.Equal(t, second.ID, asc[1].ID)

		latest, err := s.FindByPair(ctx, "a", "b", false, 1)
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, second.ID, latest[0].ID)
	})

	t.Run("mark read is monotonic", func(t *testing.T) {
		changed, err := s.MarkRead(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.MarkRead(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, changed)

		got, err := s.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)

		_, err = s.MarkRead(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("batch marks only the receiver's unread messages", func(t *testing.T) {
		n, err := s.MarkReadBatch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.MarkReadBatch(ctx, "a")
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := s.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, got.IsRead)
	})

	t.Run("returned messages are copies", func(t *testing.T) {
		got, err := s.FindByID(ctx, other.ID)
		require.NoError(t, err)
		got.Text = "mutated"

		again, err := s.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "elsewhere", again.Text)
	})
}

func TestUserDirectory(t *testing.T) {
	ctx := context.Background()
	d := memory.NewUserDirectory(
		&domain.User{ID: "2", Username: "bob"},
		&domain.User{ID: "1", Username: "alice", FirstName: "Alice", LastName: "Moss"},
	)

	u, err := d.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Moss", u.DisplayName())

	_, err = d.FindByID(ctx, "3")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
}
