package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
	repo "github.com/joseph-ayodele/formscan/internal/repository"
)

// ConnectDB resolves the DSN, opens the store and applies the schema.
func ConnectDB(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repo.DB, error) {
	dsn, err := cfg.ResolveDSN(ctx)
	if err != nil {
		logger.Error("failed to resolve database dsn", "error", err)
		return nil, err
	}

	logger.Info("connecting to database", "driver", cfg.Database.Driver)
	db, err := repo.Open(ctx, repo.ConfigFromCommon(cfg.Database, dsn), logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		logger.Error("failed to migrate database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := db.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully
func CloseDB(db *repo.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing database connections")
	db.Close()
	logger.Info("database connections closed")
}
