// Package app assembles the application: tracing, database, Genkit,
// the tool registry, and the HTTP server.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/quill/internal/api"
	"github.com/koopa0/quill/internal/config"
	"github.com/koopa0/quill/internal/log"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool
	Server *api.Server

	otelCleanup func()
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx)
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
