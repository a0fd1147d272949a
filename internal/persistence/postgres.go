package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
)

// Postgres holds the primary (write) pool and the replica (read) pool.
// Both point at the same pool when no replica DSN is configured.
type Postgres struct {
	Primary *pgxpool.Pool
	Replica *pgxpool.Pool
}

// NewPostgres opens the primary pool and, when a distinct replica DSN is set,
// the replica pool.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping database connection")
		return &Postgres{}, nil
	}

	primary, err := openPool(ctx, cfg.DSN, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres primary")

	if cfg.ReplicaDSN == "" || cfg.ReplicaDSN == cfg.DSN {
		return &Postgres{Primary: primary, Replica: primary}, nil
	}

	replica, err := openPool(ctx, cfg.ReplicaDSN, cfg)
	if err != nil {
		primary.Close()
		return nil, err
	}
	logger.Info("connected to postgres replica")
	return &Postgres{Primary: primary, Replica: replica}, nil
}

func openPool(ctx context.Context, dsn string, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p == nil {
		return
	}
	if p.Replica != nil && p.Replica != p.Primary {
		p.Replica.Close()
	}
	if p.Primary != nil {
		p.Primary.Close()
	}
}

// Ping verifies the primary pool.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Primary == nil {
		return errNotConfigured("postgres")
	}
	return p.Primary.Ping(ctx)
}
