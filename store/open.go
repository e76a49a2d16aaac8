package store

import (
	"context"
	"fmt"

	"staking-ledger/config"
)

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store) (KV, error) {
	switch cfg.Driver {
	case config.DriverLevelDB:
		return NewLevelDB(cfg.LevelDBDir)
	case config.DriverPostgres, config.DriverMySQL:
		return OpenSQL(cfg.Driver, cfg.DatabaseURL)
	case config.DriverRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
