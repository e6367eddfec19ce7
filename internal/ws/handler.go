package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"couplechat/internal/metrics"
	"couplechat/internal/security"
)

type HandlerConfig struct {
	// AllowedOrigins limits browser origins. Empty allows any origin.
	AllowedOrigins []string
	// RequireToken rejects upgrades without a valid bearer token.
	RequireToken bool
	Session      SessionConfig
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

var errNoToken = wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	if _, ok := allowed["*"]; ok {
		return func(r *http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}

	return "", errNoToken
}

// MakeHandler returns an HTTP handler for the /ws endpoint. A bearer token
// (Authorization header, Sec-WebSocket-Protocol "bearer, <token>" or the
// token query parameter) pins the connection to its user; without one the
// client is trusted to announce itself with user_connected.
//
// Sessions stop when ctx is done.
func MakeHandler(
	ctx context.Context,
	router *Router,
	tokens *security.TokenService,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg HandlerConfig,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		var subject string
		tokenStr, err := extractTokenFromWSRequest(r)
		switch {
		case err == nil:
			subject, err = tokens.UserID(tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		case cfg.RequireToken:
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		s := newSession(conn, subject, router, m, log, cfg.Session)
		log.Debug("websocket connected",
			zap.String("conn_id", s.ID()),
			zap.String("remote", r.RemoteAddr),
			zap.Bool("token", subject != ""),
			zap.Stringer("state", s.State()),
		)
		s.Serve(ctx)
	}
}
