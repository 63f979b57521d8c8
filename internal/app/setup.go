package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/quill/db"
	"github.com/koopa0/quill/internal/agent"
	"github.com/koopa0/quill/internal/api"
	"github.com/koopa0/quill/internal/auth"
	"github.com/koopa0/quill/internal/config"
	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/observability"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/title"
	"github.com/koopa0/quill/internal/tools"
)

// taskModel runs the document sub-tasks. These are internal worker calls,
// so they use a fixed inexpensive model rather than the user's preference.
const taskModel = "gpt-4o-mini"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	client := llm.NewGenkitClient(g, logger)
	st := store.NewPostgres(pool, logger)

	registry := tools.NewRegistry()
	tasks, err := tools.NewTasks(tools.TasksConfig{
		Client: client,
		Store:  st,
		Model:  taskModel,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating document tasks: %w", err)
	}
	if err := tasks.Register(g, registry); err != nil {
		return nil, fmt.Errorf("registering document tools: %w", err)
	}

	runner, err := agent.New(agent.Config{
		Client:   client,
		Registry: registry,
		Store:    st,
		Logger:   logger,
		MaxSteps: cfg.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("creating runner: %w", err)
	}

	srv, err := api.NewServer(api.Config{
		Addr:       cfg.Addr,
		Logger:     logger,
		Resolver:   auth.NewResolver(cfg.HMACSecret),
		Store:      st,
		Runner:     runner,
		Titles:     title.NewGenerator(client, logger),
		Pool:       pool,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Server = srv

	return a, nil
}

// provideOtelShutdown sets up tracing before Genkit initialization so the
// TracerProvider is ready when the first generate call runs.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Tracing.AgentHost,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("setting up tracing, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Fail fast if the database is unreachable.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the OpenAI-compatible plugin.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&openai.OpenAI{APIKey: cfg.OpenAIAPIKey}),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}
	return g, nil
}
