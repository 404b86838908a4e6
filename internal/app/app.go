// Package app wires the process-lifetime components: configuration, the
// database pool, the query registry, the record store, the AI client, and
// the retrieval pipeline. Everything is constructed once at startup and
// injected; no component performs ambient lookup.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrag/clinrag/internal/ai"
	"github.com/clinrag/clinrag/internal/auth"
	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/log"
	"github.com/clinrag/clinrag/internal/rag"
	"github.com/clinrag/clinrag/internal/records"
)

// App holds the initialized application components.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	DBPool   *pgxpool.Pool
	Store    *records.Store
	AI       *ai.Client
	Pipeline *rag.Pipeline
	Tokens   *auth.TokenIssuer
}

// Close releases all resources held by the application.
func (a *App) Close() {
	if a.DBPool != nil {
		a.DBPool.Close()
	}
}
