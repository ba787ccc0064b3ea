package pairstore

import (
	"context"
	"path/filepath"

	"github.com/sparklost/spacebar-bridge/internal/config"
)

// Open picks the SQLite or Postgres backend for one endpoint's pair store,
// per config.Database.PostgresHost being set. dbName is only used by the
// Postgres branch; fileName is only used by the SQLite branch.
func Open(ctx context.Context, cfg *config.Config, dbName, fileName, name string) (Store, error) {
	retention := Retention{
		CleanupDays:      cfg.Database.CleanupDays,
		PairLifetimeDays: cfg.Database.PairLifetimeDays,
	}

	if cfg.Database.PostgresHost != "" {
		return OpenPostgres(ctx, cfg.Database.PostgresHost, cfg.Database.PostgresUser,
			cfg.Database.PostgresPassword, dbName, retention, name)
	}

	path := filepath.Join(cfg.Database.DirPath, fileName)
	return OpenSQLite(path, retention, name)
}
