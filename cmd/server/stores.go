package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"couplechat/internal/config"
	"couplechat/internal/domain"
	"couplechat/internal/store/memory"
	"couplechat/internal/store/mongodb"
	"couplechat/internal/store/postgres"
	"couplechat/internal/store/sqlite"
)

type stores struct {
	Messages domain.MessageStore
	Users    interface {
		domain.UserDirectory
		domain.UserWriter
	}
	close func() error
}

func (s *stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStores connects the configured backend. With migrate set the schema
// (or indexes) is created first.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*stores, error) {
	log = log.With(zap.String("driver", cfg.StoreDriver))

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return &stores{
			Messages: memory.NewMessageStore(),
			Users:    memory.NewUserDirectory(),
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := sqlite.Migrate(db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &stores{
			Messages: sqlite.NewMessageRepo(db),
			Users:    sqlite.NewUserRepo(db),
			close:    db.Close,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &stores{
			Messages: postgres.NewMessageRepo(db),
			Users:    postgres.NewUserRepo(db),
			close:    db.Close,
		}, nil

	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		if migrate {
			if err := mongodb.Migrate(ctx, db); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
		}
		return &stores{
			Messages: mongodb.NewMessageRepo(db),
			Users:    mongodb.NewUserRepo(db),
			close:    func() error { return client.Disconnect(context.Background()) },
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

var errMemoryStore = errors.New("the memory store lives inside the server process; choose a persistent STORE_DRIVER")
