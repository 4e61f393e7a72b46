// Package app wires together gonk's configuration, persistence
// backend, service layer, HTTP server and background worker into a
// single process lifecycle, following the Initialize/Start/
// WaitForShutdown/Shutdown shape the teacher's Application used for
// its own, much larger, dependency graph.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/computeheavy/gonk/internal/api/handlers"
	"github.com/computeheavy/gonk/internal/api/routes"
	domainintegrity "github.com/computeheavy/gonk/internal/domain/integrity"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/internal/domain/services/core"
	"github.com/computeheavy/gonk/internal/infrastructure/config"
	"github.com/computeheavy/gonk/internal/infrastructure/persistence/filesystem"
	"github.com/computeheavy/gonk/internal/infrastructure/persistence/relational"
	"github.com/computeheavy/gonk/internal/infrastructure/resilience"
	"github.com/computeheavy/gonk/internal/infrastructure/security"
	integrityworker "github.com/computeheavy/gonk/internal/workers/integrity"
	"github.com/computeheavy/gonk/pkg/logger"
	"github.com/computeheavy/gonk/pkg/metrics"
)

// Application represents the running gonk process.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	server *http.Server
	svc    *core.Service

	backend repositories.Backend
	worker  *integrityworker.Worker
}

// NewApplication creates a new, uninitialized Application.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration and builds every dependency: the
// persistence backend selected by cfg.Backend, the service layer, the
// HTTP server and the integrity sweep worker.
func (app *Application) Initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.cfg = cfg

	log := logger.New(cfg.LogLevel, cfg.Environment)
	app.log = log

	backend, err := app.initializeBackend()
	if err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	app.backend = resilience.NewBackend(backend, resilience.DefaultConfig(), log.Zap())

	app.svc = core.NewService(app.backend, log.Zap(), metrics.New())

	if err := app.initializeWorker(); err != nil {
		return fmt.Errorf("failed to initialize integrity worker: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

// initializeBackend constructs the filesystem or embedded relational
// backend named by cfg.Backend, loading the signing keyring first
// when the dataset is run in signature integrity mode.
func (app *Application) initializeBackend() (repositories.Backend, error) {
	cfg := app.cfg

	var keys filesystem.Signer
	if cfg.IntegrityMode == config.IntegrityModeSignature {
		ring, err := security.Load(cfg.KeyringPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load keyring: %w", err)
		}
		keys = ring
	}

	mode := domainIntegrityMode(cfg.IntegrityMode)

	switch cfg.Backend {
	case config.BackendFilesystem:
		return filesystem.NewBackend(cfg.StorageRoot, mode, keys)
	case config.BackendSQLite:
		return relational.NewBackend(cfg.StorageRoot, mode, keys)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// initializeWorker builds the cron-scheduled integrity sweep.
func (app *Application) initializeWorker() error {
	w, err := integrityworker.New(app.svc, app.log.Zap(), app.cfg.IntegritySweepCron)
	if err != nil {
		return fmt.Errorf("failed to schedule integrity sweep %q: %w", app.cfg.IntegritySweepCron, err)
	}
	app.worker = w
	return nil
}

// initializeServer builds the gin.Engine and wraps it in an
// http.Server bound to cfg.HTTPAddr.
func (app *Application) initializeServer() error {
	cfg := app.cfg

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	keys, err := security.LoadAPIKeys(cfg.APIKeysPath)
	if err != nil {
		return fmt.Errorf("failed to load api keys: %w", err)
	}

	h := handlers.New(app.svc, cfg)
	router := routes.Setup(h, keys)

	app.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// Start launches the HTTP server and the integrity worker. It returns
// immediately; the server runs on its own goroutine.
func (app *Application) Start() error {
	app.worker.Start()

	go func() {
		app.log.Info("starting http server", "addr", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.Error("http server error", "error", err)
		}
	}()

	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM is received.
func (app *Application) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("shutdown signal received")
}

// Shutdown gracefully stops the worker, the HTTP server and closes
// the persistence backend.
func (app *Application) Shutdown() error {
	app.worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	if err := app.backend.Close(); err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}

	app.log.Info("shutdown complete")
	return nil
}

// domainIntegrityMode translates the configuration's integrity mode
// into the domain integrity.Mode the persistence backends expect.
func domainIntegrityMode(m config.IntegrityMode) domainintegrity.Mode {
	if m == config.IntegrityModeSignature {
		return domainintegrity.ModeSignature
	}
	return domainintegrity.ModeChain
}
