package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales_pipeline_backend/internal/adapters/storage"
	"sales_pipeline_backend/internal/events"
	apphttp "sales_pipeline_backend/internal/http"
	"sales_pipeline_backend/internal/http/router"
	"sales_pipeline_backend/internal/leads"
	"sales_pipeline_backend/internal/leads/ports"
	leadrepo "sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/internal/notification"
	"sales_pipeline_backend/internal/notification/refresh"
	"sales_pipeline_backend/internal/notification/sse"
	orderclient "sales_pipeline_backend/internal/orders/client"
	"sales_pipeline_backend/internal/reconciliation"
	"sales_pipeline_backend/internal/scheduler"
	"sales_pipeline_backend/platform/config"
	"sales_pipeline_backend/platform/db"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	refreshDeliveryTimeout = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	// Shared validator instance for dependency injection
	val := validator.New()

	stream := sse.New(log)
	defer stream.Close()

	notifier, closeRefresh := initRefreshNotifier(ctx, cfg, stream, log)
	defer closeRefresh()

	incidents, closeIncidents := initIncidentReporter(cfg, log)
	defer closeIncidents()

	archive := initSnapshotArchive(ctx, cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(stream, log)
	notificationModule.RegisterHandlers(eventBus)

	leadsDeps := leads.Deps{
		Repo:      leadrepo.New(pool),
		Orders:    orderclient.New(cfg),
		Notifier:  notifier,
		Bus:       eventBus,
		Stream:    stream,
		Validator: val,
		Log:       log,
	}
	if incidents != nil {
		leadsDeps.Incidents = incidents
	}
	if archive != nil {
		leadsDeps.Archiver = archive
	}
	leadsModule := leads.NewModule(leadsDeps)

	reconciliationSvc := reconciliation.NewService(reconciliation.NewRepository(pool), log)
	if archive != nil {
		reconciliationSvc.WithSnapshots(archive)
	}
	reconciliationModule := reconciliation.NewModule(reconciliationSvc, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			reconciliationModule,
		},
	}

	engine := router.New(app)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// SSE handlers block until their client leaves; close them first.
		stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRefreshNotifier builds the lead-changed fan-out. Local SSE viewers are
// always served. With Redis configured the local hub is fed through the
// pub/sub relay instead, so viewers connected to any API process see every
// change exactly once.
func initRefreshNotifier(ctx context.Context, cfg *config.Config, stream *sse.Service, log *logger.Logger) (ports.RefreshNotifier, func()) {
	var (
		publishers []refresh.Publisher
		closers    []func()
	)

	if cfg.GetRedisURL() == "" {
		publishers = append(publishers, refresh.LocalPublisher{Notifier: stream})
	} else {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			panic("invalid REDIS_URL: " + err.Error())
		}
		client := redis.NewClient(opt)
		closers = append(closers, func() { _ = client.Close() })

		relay := refresh.NewRelay(client, cfg.GetRefreshRedisChannel(), stream, log)
		ready := make(chan struct{})
		go func() {
			if err := relay.Run(ctx, ready); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("refresh relay stopped", "error", err)
			}
		}()
		select {
		case <-ready:
		case <-time.After(refreshDeliveryTimeout):
			log.Warn("refresh relay not ready; remote viewers may miss updates", "channel", cfg.GetRefreshRedisChannel())
		}

		publishers = append(publishers, refresh.NewRedisPublisher(client, cfg.GetRefreshRedisChannel()))
		log.Info("refresh notifier using redis", "channel", cfg.GetRefreshRedisChannel())
	}

	if cfg.GetAMQPURL() != "" {
		amqpPublisher, err := refresh.DialAMQP(cfg.GetAMQPURL(), cfg.GetRefreshAMQPExchange())
		if err != nil {
			log.Error("amqp refresh publisher disabled", "error", err)
		} else {
			publishers = append(publishers, amqpPublisher)
			closers = append(closers, func() { _ = amqpPublisher.Close() })
			log.Info("refresh notifier using amqp", "exchange", cfg.GetRefreshAMQPExchange())
		}
	}

	fanout := refresh.NewFanout(log, refreshDeliveryTimeout, publishers...)
	return fanout, func() {
		fanout.Wait()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func initIncidentReporter(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; partial failures are logged only")
		return nil, func() {}
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize incident queue client", "error", err)
		return nil, func() {}
	}

	return client, func() {
		_ = client.Close()
	}
}

func initSnapshotArchive(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) *storage.SnapshotArchive {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; order snapshots are not archived")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	bucket := cfg.GetMinioBucketOrderSnapshots()
	if err := withRetry(ctx, log, "ensure order-snapshots bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "orderSnapshotsBucket", bucket)

	return storage.NewSnapshotArchive(storageSvc, bucket)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
