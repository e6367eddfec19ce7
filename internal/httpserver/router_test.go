package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/events"
	"couplechat/internal/httpserver"
	"couplechat/internal/metrics"
	"couplechat/internal/protocol"
	"couplechat/internal/security"
	"couplechat/internal/service"
	"couplechat/internal/store/memory"
	"couplechat/internal/ws"
)

type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []protocol.Outbound
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Deliver(ev protocol.Outbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *recordingConn) Events() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Outbound(nil), c.events...)
}

type testEnv struct {
	srv    *httptest.Server
	store  *memory.MessageStore
	hub    *ws.Hub
	tokens *security.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	log := zap.NewNop()
	m := metrics.New()
	store := memory.NewMessageStore()
	users := memory.NewUserDirectory(
		&domain.User{ID: "alice", Username: "alice", FirstName: "Alice", LastName: "Moss"},
		&domain.User{ID: "bob", Username: "bob"},
	)
	hub := ws.NewHub(m)
	msgs := service.NewMessageService(store, events.Nop{}, log, time.Second)
	receipts := service.NewReceiptService(store, hub, events.Nop{}, log, time.Second)
	realtime := ws.NewRouter(hub, msgs, receipts, m, log, ws.RouterConfig{})
	tokens := security.NewTokenService("test-secret", time.Hour)

	handler := httpserver.NewRouter(ctx, httpserver.Dependencies{
		Log:      log,
		Metrics:  m,
		Tokens:   tokens,
		Messages: msgs,
		Receipts: receipts,
		Contacts: service.NewContactService(users, msgs),
		Realtime: realtime,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testEnv{srv: srv, store: store, hub: hub, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if userID != "" {
		token, err := e.tokens.CreateForUser(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","online":0}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ws_active_connections")
}

func TestAPIDocs(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/docs/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "/api/chat", doc.BasePath)
	assert.Contains(t, doc.Paths["/messages"], "get")
	assert.Contains(t, doc.Paths["/messages"], "post")
	assert.Contains(t, doc.Paths["/messages/{messageID}/read"], "put")
	assert.Contains(t, doc.Paths, "/contacts")
	assert.Contains(t, doc.Paths, "/online")

	resp, body = env.do(t, http.MethodGet, "/docs/index.html", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/docs/doc.json")
}

func TestChatRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/chat/contacts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/chat/contacts", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
}

func TestCreateMessage_PersistsWithoutLiveDelivery(t *testing.T) {
	env := newTestEnv(t)
	bob := &recordingConn{id: "bob-conn"}
	env.hub.Register("bob", bob)

	resp, body := env.do(t, http.MethodPost, "/api/chat/messages", "alice", map[string]any{
		"receiverId": "bob",
		"text":       "hello",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created service.MessageResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "alice", created.SenderID)
	assert.Equal(t, "bob", created.ReceiverID)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, bob.Events())

	resp, body = env.do(t, http.MethodPost, "/api/chat/messages", "alice", map[string]any{"receiverId": "bob"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "text or attachments")
}

func TestListMessages_AscendingAndMarksRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "first"}))
	require.NoError(t, env.store.Create(ctx, &domain.Message{SenderID: "bob", ReceiverID: "alice", Text: "second"}))
	require.NoError(t, env.store.Create(ctx, &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "third"}))

	resp, body := env.do(t, http.MethodGet, "/api/chat/messages?contactId=alice", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []service.MessageResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
	assert.Equal(t, "third", got[2].Text)

	stored, err := env.store.FindByPair(ctx, "alice", "bob", true, 0)
	require.NoError(t, err)
	assert.True(t, stored[0].IsRead)
	assert.False(t, stored[1].IsRead, "messages sent by the caller stay untouched")
	assert.True(t, stored[2].IsRead)

	resp, _ = env.do(t, http.MethodGet, "/api/chat/messages", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarkMessageRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	require.NoError(t, env.store.Create(ctx, m))

	alice := &recordingConn{id: "alice-conn"}
	env.hub.Register("alice", alice)

	resp, _ := env.do(t, http.MethodPut, "/api/chat/messages/"+m.ID+"/read", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/chat/messages/missing/read", "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut, "/api/chat/messages/"+m.ID+"/read", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got service.MessageResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.IsRead)
	assert.Equal(t, []protocol.Outbound{protocol.MessageRead{MessageID: m.ID}}, alice.Events())

	resp, _ = env.do(t, http.MethodPut, "/api/chat/messages/"+m.ID+"/read", "bob", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, alice.Events(), 1, "repeat read does not notify")
}

func TestListContacts(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Create(context.Background(), &domain.Message{
		SenderID:    "alice",
		ReceiverID:  "bob",
		Attachments: []domain.Attachment{{Kind: domain.AttachmentImage, URL: "https://cdn.example.com/a.png"}},
	}))

	resp, body := env.do(t, http.MethodGet, "/api/chat/contacts", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var contacts []service.Contact
	require.NoError(t, json.Unmarshal(body, &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "alice", contacts[0].ID)
	assert.Equal(t, "Alice Moss", contacts[0].Name)
	assert.Equal(t, "https://ui-avatars.com/api/?name=alice", contacts[0].Avatar)
	assert.Equal(t, "Media attachment", contacts[0].LastMessage.Text)
	assert.False(t, contacts[0].LastMessage.IsRead)
}

func TestListOnlineUsers(t *testing.T) {
	env := newTestEnv(t)
	env.hub.Register("bob", &recordingConn{id: "b"})
	env.hub.Register("alice", &recordingConn{id: "a"})

	resp, body := env.do(t, http.MethodGet, "/api/chat/online", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"users":["alice","bob"]}`, string(body))
}
