package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/events"
	"couplechat/internal/httpserver"
	"couplechat/internal/metrics"
	"couplechat/internal/security"
	"couplechat/internal/service"
	"couplechat/internal/store/presence"
	"couplechat/internal/ws"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	st, err := openStores(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	m := metrics.New()
	observers := []domain.PresenceObserver{m}

	var mirror *presence.Mirror
	if cfg.RedisAddr != "" {
		client, err := presence.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		mirror = presence.NewMirror(client, "couplechat", cfg.PresenceTTL, log)
		observers = append(observers, mirror)
		log.Info("presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	}

	var publisher service.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("closing kafka writer", zap.Error(err))
			}
		}()
		publisher = kp
		log.Info("publishing chat events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set, using an ephemeral secret; issued tokens die with this process")
	}
	tokens := security.NewTokenService(secret, cfg.TokenTTL)

	hub := ws.NewHub(observers...)
	msgs := service.NewMessageService(st.Messages, publisher, log, cfg.OpTimeout)
	receipts := service.NewReceiptService(st.Messages, hub, publisher, log, cfg.OpTimeout)
	contacts := service.NewContactService(st.Users, msgs)
	realtime := ws.NewRouter(hub, msgs, receipts, m, log, ws.RouterConfig{
		ReadOnAnnounce: cfg.ReadOnAnnounce,
		TypingTTL:      cfg.TypingTTL,
	})

	go realtime.Run(ctx)
	if mirror != nil {
		go mirror.Run(ctx, hub.Snapshot)
	}

	handler := httpserver.NewRouter(ctx, httpserver.Dependencies{
		Log:         log,
		Metrics:     m,
		Tokens:      tokens,
		Messages:    msgs,
		Receipts:    receipts,
		Contacts:    contacts,
		Realtime:    realtime,
		CORSOrigins: cfg.CORSOrigins,
		WS: ws.HandlerConfig{
			AllowedOrigins: cfg.CORSOrigins,
			RequireToken:   cfg.WSRequireToken,
			Session: ws.SessionConfig{
				MaxMessageBytes: cfg.WSMaxMessageBytes,
				PingInterval:    cfg.WSPingInterval,
				WriteTimeout:    cfg.WSWriteTimeout,
			},
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting couplechat server", zap.String("addr", cfg.HTTPAddr()), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}
