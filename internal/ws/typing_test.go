package ws

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingTracker(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTypingTracker(5 * time.Second)
	tr.now = func() time.Time { return now }

	tr.Start("alice", "bob")
	tr.Start("alice", "carol")
	tr.Start("dan", "bob")
	assert.Equal(t, 3, tr.Len())

	now = now.Add(3 * time.Second)
	tr.Start("alice", "bob") // refresh
	assert.Empty(t, tr.Expire())

	now = now.Add(3 * time.Second)
	expired := tr.Expire()
	sort.Slice(expired, func(i, j int) bool { return expired[i].From+expired[i].To < expired[j].From+expired[j].To })
	assert.Equal(t, []TypingPair{{From: "alice", To: "carol"}, {From: "dan", To: "bob"}}, expired)
	assert.Equal(t, 1, tr.Len())

	assert.True(t, tr.Stop("alice", "bob"))
	assert.False(t, tr.Stop("alice", "bob"))

	tr.Start("alice", "bob")
	tr.Start("alice", "carol")
	to := tr.ClearFrom("alice")
	sort.Strings(to)
	assert.Equal(t, []string{"bob", "carol"}, to)
	assert.Zero(t, tr.Len())
}
