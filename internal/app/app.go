// Package app wires the service together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gopost/internal/ai"
	"github.com/jonesrussell/gopost/internal/api"
	"github.com/jonesrussell/gopost/internal/approval"
	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/database"
	"github.com/jonesrussell/gopost/internal/generate"
	"github.com/jonesrussell/gopost/internal/intake"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/notify"
	"github.com/jonesrussell/gopost/internal/publer"
	"github.com/jonesrussell/gopost/internal/publish"
	"github.com/jonesrussell/gopost/internal/quota"
	"github.com/jonesrussell/gopost/internal/recycle"
	redisconn "github.com/jonesrussell/gopost/internal/redis"
	"github.com/jonesrussell/gopost/internal/worker"
)

// DefaultShutdownTimeout bounds the graceful HTTP shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// App holds the fully wired service.
type App struct {
	config *config.Config
	logger logger.Logger

	db          *sqlx.DB
	redisClient *goredis.Client

	contentRepo *database.ContentRepository
	clientRepo  *database.ClientRepository
	jobRepo     *database.JobRepository

	sweeper   *recycle.Sweeper
	scheduler *recycle.Scheduler
	jobWorker *worker.JobWorker

	httpServer *http.Server
	version    string
}

// Options contains configuration for creating a new App.
type Options struct {
	ConfigPath string
	Version    string
}

// New creates an App with every dependency initialized and wired.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "gopost"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redisconn.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	a := &App{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		contentRepo: database.NewContentRepository(db),
		clientRepo:  database.NewClientRepository(db),
		jobRepo:     database.NewJobRepository(db),
		version:     opts.Version,
	}

	if err := a.buildServices(); err != nil {
		a.closeConnections()
		return nil, err
	}
	return a, nil
}

// buildServices constructs the lifecycle services on top of the repositories.
func (a *App) buildServices() error {
	cfg := a.config
	m := metrics.New()
	notifier := notify.NewRedisNotifier(a.redisClient, a.logger)
	gate := quota.NewGate(a.clientRepo, m, a.logger)

	generator, err := ai.NewClient(
		cfg.Generator.BaseURL, cfg.Generator.APIKey, cfg.Generator.Model,
		cfg.Generator.ImageModel, cfg.Generator.Timeout, a.logger,
	)
	if err != nil {
		return fmt.Errorf("create caption generator: %w", err)
	}

	coordinator := generate.NewCoordinator(
		a.contentRepo, a.clientRepo, a.jobRepo,
		generator, notifier, m, a.logger,
		cfg.Generator.Timeout,
	)

	publerClient, err := publer.NewClient(
		cfg.Publer.BaseURL, cfg.Publer.APIKey, cfg.Publer.WorkspaceID,
		cfg.Publer.Timeout, a.logger,
	)
	if err != nil {
		return fmt.Errorf("create publer client: %w", err)
	}
	registry := publish.NewRegistry(publer.Targets(publerClient)...)

	publishSvc := publish.NewService(
		a.contentRepo, a.clientRepo, registry,
		publish.RetryPolicy{
			MaxAttempts: cfg.Publish.MaxAttempts,
			Delay:       cfg.Publish.RetryDelay,
		},
		notifier, m, a.logger,
		cfg.Publish.Concurrency, cfg.Publish.Timeout,
	)

	gateway := approval.NewGateway(
		a.contentRepo, a.jobRepo, coordinator, notifier, m, a.logger,
		approval.DefaultLeadTime, cfg.Publish.RetryDelay,
	)

	a.sweeper = recycle.NewSweeper(
		a.contentRepo, gate, a.jobRepo, notifier, m, a.logger,
		cfg.Recycling.CooldownDays, cfg.Recycling.BatchSize,
	)

	scheduler, err := recycle.NewScheduler(cfg.Recycling.Schedule, a.sweeper, a.logger)
	if err != nil {
		return fmt.Errorf("create recycling scheduler: %w", err)
	}
	a.scheduler = scheduler

	lease := worker.NewContentLease(a.redisClient, cfg.Worker.LeaseTTL)
	a.jobWorker = worker.NewJobWorker(
		a.jobRepo, a.contentRepo, lease,
		coordinator, gateway, publishSvc,
		m, a.logger,
		worker.JobWorkerConfig{
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			Concurrency:  cfg.Worker.Concurrency,
			RetryDelay:   cfg.Publish.RetryDelay,
		},
	)

	intakeSvc := intake.NewService(a.contentRepo, a.clientRepo, gate, a.jobRepo, m, a.logger)

	router := api.NewRouter(
		intakeSvc, gateway, a.sweeper,
		a.contentRepo, a.clientRepo, a.jobRepo,
		a.db, a.redisClient, m, cfg, a.logger,
	)
	a.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return nil
}

// Run starts the HTTP server, the job worker and the recycling scheduler,
// then blocks until a shutdown signal or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	a.jobWorker.Start(workerCtx)
	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return a.waitForShutdown(workerCancel, serverErr)
}

// RunWorker starts only the background processing (job worker plus recycling
// scheduler) without the HTTP surface.
func (a *App) RunWorker(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	a.jobWorker.Start(workerCtx)
	a.scheduler.Start()

	return a.waitForShutdown(workerCancel, nil)
}

func (a *App) waitForShutdown(workerCancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully", logger.String("signal", sig.String()))
	case err := <-serverErr:
		a.logger.Error("HTTP server error", logger.Error(err))
		shutdownErr = err
	}

	workerCancel()
	a.scheduler.Stop()
	a.jobWorker.Stop()
	a.shutdownHTTPServer()

	a.logger.Info("Service stopped")
	return shutdownErr
}

func (a *App) shutdownHTTPServer() {
	if a.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Sweeper exposes the recycling sweeper for one-shot runs.
func (a *App) Sweeper() *recycle.Sweeper {
	return a.sweeper
}

// Clients exposes the client repository for maintenance commands.
func (a *App) Clients() *database.ClientRepository {
	return a.clientRepo
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

func (a *App) closeConnections() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Close releases all resources.
func (a *App) Close() error {
	a.closeConnections()
	return nil
}
