package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/config"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/ledger/leveldb"
	ledgermem "solana-token-sale/internal/ledger/memory"
	ledgerpg "solana-token-sale/internal/ledger/postgres"
	"solana-token-sale/internal/storage"
	chstore "solana-token-sale/internal/storage/clickhouse"
	"solana-token-sale/internal/storage/memory"
	"solana-token-sale/internal/storage/migrations"
	pgstore "solana-token-sale/internal/storage/postgres"
)

// stores holds the ledger and journal implementations.
type stores struct {
	ledger    ledger.Store
	purchases storage.PurchaseStore
	events    storage.ConfigEventStore
	volume    storage.VolumeStore
}

// openStores opens the configured backends. PostgreSQL pools are shared by
// DSN and migrated once.
func openStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*stores, func(), error) {
	log := logger.WithField("component", "storage")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pools := make(map[string]*pgstore.Pool)
	pool := func(dsn string) (*pgstore.Pool, error) {
		if p, ok := pools[dsn]; ok {
			return p, nil
		}
		p, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		closers = append(closers, p.Close)
		if err := migrations.RunPostgresMigrations(ctx, p, log); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		pools[dsn] = p
		return p, nil
	}

	st := &stores{}

	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		st.ledger = ledgermem.NewStore()
	case config.BackendLevelDB:
		db, err := leveldb.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("close leveldb ledger")
			}
		})
		st.ledger = db
	case config.BackendPostgres:
		p, err := pool(cfg.Ledger.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ledger: %w", err)
		}
		st.ledger = ledgerpg.NewStore(p)
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	switch cfg.Journal.Backend {
	case config.BackendMemory:
		st.purchases = memory.NewPurchaseStore()
		st.events = memory.NewConfigEventStore()
		st.volume = memory.NewVolumeStore()
	case config.BackendPostgres:
		p, err := pool(cfg.Journal.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Journal.ClickHouseDSN, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })

		st.purchases = pgstore.NewPurchaseStore(p)
		st.events = pgstore.NewConfigEventStore(p)
		st.volume = chstore.NewVolumeStore(conn)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}

	log.WithFields(logrus.Fields{
		"ledger":  cfg.Ledger.Backend,
		"journal": cfg.Journal.Backend,
	}).Info("stores ready")
	return st, cleanup, nil
}
