package httpserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/metrics"
	"couplechat/internal/security"
	"couplechat/internal/service"
	"couplechat/internal/ws"
)

//go:embed openapi.json
var apiDoc []byte

// Dependencies are the components the HTTP surface is built from.
type Dependencies struct {
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Tokens      *security.TokenService
	Messages    *service.MessageService
	Receipts    *service.ReceiptService
	Contacts    *service.ContactService
	Realtime    *ws.Router
	CORSOrigins []string
	WS          ws.HandlerConfig
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
// Websocket sessions opened through it stop when ctx is done.
func NewRouter(ctx context.Context, d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "couplechat API", "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "healthy",
			"online": d.Realtime.Hub().Online(),
		})
	})

	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// Swagger documentation
	r.Get("/docs/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(apiDoc)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(AuthMiddleware(d.Tokens))

		r.Get("/contacts", handleListContacts(d.Contacts, d.Log))
		r.Get("/online", handleListOnlineUsers(d.Realtime.Hub()))

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", handleListMessages(d.Messages, d.Receipts, d.Log))
			r.Post("/", handleCreateMessage(d.Messages, d.Log))
			r.Put("/{messageID}/read", handleMarkMessageRead(d.Receipts, d.Log))
		})
	})

	// Long-lived, so kept out of the request timeout.
	r.Get("/ws", ws.MakeHandler(ctx, d.Realtime, d.Tokens, d.Metrics, d.Log, d.WS))

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unexpected errors
// are logged and reported as fallback.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "operation timed out")
	default:
		log.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
