package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coai/contexts/incident-governance/council-engine/adapters/memory"
	postgresadapter "coai/contexts/incident-governance/council-engine/adapters/postgres"
	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	sqliteadapter "coai/contexts/incident-governance/council-engine/adapters/sqlite"
	"coai/contexts/incident-governance/council-engine/ports"
	"coai/internal/platform/config"
	"coai/internal/platform/db"
)

// councilStore is every persistence port the council engine needs; each
// storage driver implements all of them on one handle.
type councilStore interface {
	ports.SessionRepository
	ports.IdempotencyStore
	ports.OutboxWriter
	ports.OutboxRepository
	ports.ReviewQueue
	ports.EventDedupStore
}

type storage struct {
	driver string
	store  councilStore
	clock  ports.Clock
	ids    ports.IDGenerator
	close  func() error
}

func (s storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, db.PostgresOptions{})
		if err != nil {
			return storage{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = pg.Close()
			return storage{}, fmt.Errorf("migrate council schema: %w", err)
		}
		return storage{
			driver: cfg.StoreDriver,
			store:  repo,
			clock:  postgresadapter.SystemClock{},
			ids:    postgresadapter.UUIDGenerator{},
			close:  pg.Close,
		}, nil
	case config.StoreDriverSQLite:
		handle, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		store, err := sqliteadapter.NewStore(ctx, handle, logger)
		if err != nil {
			_ = handle.Close()
			return storage{}, err
		}
		return storage{
			driver: cfg.StoreDriver,
			store:  store,
			clock:  store,
			ids:    store,
			close:  handle.Close,
		}, nil
	default:
		store := memory.NewStore(nil)
		return storage{
			driver: config.StoreDriverMemory,
			store:  store,
			clock:  store,
			ids:    store,
		}, nil
	}
}

// openRoster loads and validates the configured roster file up front so a bad
// file fails the process at start rather than on the first vote.
func openRoster(ctx context.Context, path string) (ports.RosterSource, error) {
	if strings.TrimSpace(path) == "" {
		return rosteradapter.StaticSource{}, nil
	}
	source := rosteradapter.NewFileSource(path)
	if _, err := source.Roster(ctx); err != nil {
		return nil, err
	}
	return source, nil
}
