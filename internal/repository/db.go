package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/joseph-ayodele/formscan/internal/common"
)

type Config struct {
	Driver           string // sqlite | postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFromCommon maps process configuration; dsn is the resolved DSN.
func ConfigFromCommon(c common.DatabaseConfig, dsn string) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              dsn,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is an ent SQL driver over either SQLite or a pgx pool.
type DB struct {
	Driver *entsql.Driver
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Dialect returns the ent dialect name in use.
func (d *DB) Dialect() string { return d.Driver.Dialect() }

// Open connects to the configured backend and wraps it for ent.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return openSQLite(cfg, logger)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, "unsupported database driver "+cfg.Driver, common.ErrInvalidInput)
	}
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := EnsurePragmas(cfg.DSN, 5000)
	logger.Info("opening sqlite database", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "open sqlite", err)
	}
	if isMemoryDSN(dsn) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	return &DB{Driver: entsql.OpenDB(dialect.SQLite, db), logger: logger}, nil
}

// openPostgres creates a pgx pool and wraps it as *sql.DB for ent.
func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.NewAppError(common.CodeConfig, "parse postgres dsn", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "formscan"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	ctx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "connect postgres", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{Driver: entsql.OpenDB(dialect.Postgres, db), pool: pool, logger: logger}, nil
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.Driver.Close(); err != nil {
		d.logger.Error("failed to close sql driver", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	d.logger.Debug("pinging database")
	var err error
	if d.pool != nil {
		err = d.pool.Ping(ctx)
	} else {
		err = d.Driver.DB().PingContext(ctx)
	}
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "ping", err)
	}
	d.logger.Debug("database ping successful")
	return nil
}

// EnsurePragmas appends the SQLite pragmas the repository relies on when the
// DSN does not set them. Foreign keys are required by the schema migration.
func EnsurePragmas(dsn string, busyTimeoutMS int) string {
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	lower := strings.ToLower(dsn)
	if !strings.Contains(lower, "_pragma=foreign_keys") {
		dsn = addPragma(dsn, "foreign_keys(1)")
	}
	if busyTimeoutMS > 0 && !isMemoryDSN(lower) && !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = addPragma(dsn, fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	}
	return dsn
}

func addPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}

func isMemoryDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, ":memory:") || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}
