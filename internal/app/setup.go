package app

import (
	"context"
	"fmt"

	"github.com/clinrag/clinrag/db"
	"github.com/clinrag/clinrag/internal/ai"
	"github.com/clinrag/clinrag/internal/auth"
	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/log"
	"github.com/clinrag/clinrag/internal/queries"
	"github.com/clinrag/clinrag/internal/rag"
	"github.com/clinrag/clinrag/internal/records"
)

// Setup creates and initializes the application. Startup failures are fatal:
// the process must not serve traffic with a partial stack. Call Close to
// release resources.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	// Clean up whatever was already initialized when a later step fails.
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := records.Connect(ctx, cfg, logger.With("component", "pool"))
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	registry, err := queries.Load()
	if err != nil {
		return nil, fmt.Errorf("loading query registry: %w", err)
	}

	a.Store = records.New(pool, registry, logger.With("component", "records"))

	client, err := ai.New(ctx, cfg, logger.With("component", "ai"))
	if err != nil {
		return nil, err
	}
	a.AI = client

	issuer, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	a.Tokens = issuer

	a.Pipeline = rag.New(a.Store, client, client, logger.With("component", "rag"))

	ok = true
	return a, nil
}
