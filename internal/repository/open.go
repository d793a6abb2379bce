package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcanechess/arcane-server-go/internal/config"
)

// Open returns the result store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (ResultStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "none":
		logger.Info("match archive disabled")
		return NopStore{}, nil
	case "sqlite":
		store, err := OpenSQLite(cfg.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("match archive opened", zap.String("driver", "sqlite"), zap.String("path", cfg.URL))
		return store, nil
	case "postgres":
		pool, err := NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresResultStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
