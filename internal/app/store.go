package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/linkpilot/internal/config"
	"github.com/vadim/linkpilot/internal/database"
	campaigndao "github.com/vadim/linkpilot/internal/domain/campaign/dao"
	ledgerdao "github.com/vadim/linkpilot/internal/domain/ledger/dao"
	postdao "github.com/vadim/linkpilot/internal/domain/post/dao"
	ruledao "github.com/vadim/linkpilot/internal/domain/rule/dao"
)

// store bundles the repositories of the configured database driver
type store struct {
	posts     postdao.PostRepository
	campaigns campaigndao.CampaignRepository
	rules     ruledao.RuleRepository
	entries   ledgerdao.EntryRepository

	ping  func(ctx context.Context) error
	close func()
}

// openStore connects to the configured database and applies the schema
func openStore(ctx context.Context, cfg config.Database) (*store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN, database.PoolConfig{
			MaxConns:     int32(cfg.MaxOpenConns),
			MinConns:     int32(cfg.MaxIdleConns),
			ConnLifetime: cfg.ConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		return postgresStore(pool), nil

	case "sqlite":
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		if err := database.MigrateSQLite(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating sqlite: %w", err)
		}
		return sqliteStore(db), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func postgresStore(pool *pgxpool.Pool) *store {
	return &store{
		posts:     postdao.NewPostPostgres(pool),
		campaigns: campaigndao.NewCampaignPostgres(pool),
		rules:     ruledao.NewRulePostgres(pool),
		entries:   ledgerdao.NewEntryPostgres(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}
}

func sqliteStore(db *sql.DB) *store {
	return &store{
		posts:     postdao.NewPostSQLite(db),
		campaigns: campaigndao.NewCampaignSQLite(db),
		rules:     ruledao.NewRuleSQLite(db),
		entries:   ledgerdao.NewEntrySQLite(db),
		ping:      db.PingContext,
		close:     func() { _ = db.Close() },
	}
}

// Migrate applies the schema of the configured database and exits
func Migrate(ctx context.Context, cfg config.Config) error {
	s, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	s.close()
	return nil
}
