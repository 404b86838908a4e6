package records

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/log"
)

// Connection retry budget. The delay doubles after each failed attempt
// (2s, 4s, 8s, 16s), then the exhausted budget is fatal.
const (
	connectAttempts = 5
	baseRetryDelay  = 2 * time.Second
)

// Connect builds the bounded connection pool, retrying transient failures
// with exponential backoff. Every connection registers the pgvector types so
// embeddings scan directly into pgvector.Vector.
//
// Exhausting the retry budget returns ErrDatabaseUnavailable: the process
// must not begin serving without a database.
func Connect(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBMinConns)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	delay := baseRetryDelay
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				logger.Info("database pool established",
					"min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		logger.Warn("database connection failed",
			"attempt", attempt, "error", err)

		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrDatabaseUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %w", ErrDatabaseUnavailable, connectAttempts, lastErr)
}
