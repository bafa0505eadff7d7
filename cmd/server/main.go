// The provenance server verifies the source of wealth declared by clients.
// main wires the stores, the Kafka audit plumbing, the verification engine,
// and the HTTP API together; business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"provenance/internal/agents"
	internalaudit "provenance/internal/audit"
	httpapi "provenance/internal/http"
	"provenance/internal/platform/config"
	"provenance/internal/platform/httpserver"
	"provenance/internal/platform/kafka/admin"
	kafkaconsumer "provenance/internal/platform/kafka/consumer"
	kafkaproducer "provenance/internal/platform/kafka/producer"
	"provenance/internal/platform/logger"
	"provenance/internal/platform/metrics"
	platformredis "provenance/internal/platform/redis"
	recordstore "provenance/internal/record/store"
	reviewhandler "provenance/internal/review/handler"
	"provenance/internal/reviewer"
	reviewerdevice "provenance/internal/reviewer/device"
	reviewerhandler "provenance/internal/reviewer/handler"
	reviewerstore "provenance/internal/reviewer/store"
	"provenance/internal/reviewer/token"
	"provenance/internal/run"
	runhandler "provenance/internal/run/handler"
	runmetrics "provenance/internal/run/metrics"
	audit "provenance/pkg/platform/audit"
	auditconsumer "provenance/pkg/platform/audit/consumer"
	"provenance/pkg/platform/audit/publishers/compliance"
	"provenance/pkg/platform/audit/publishers/ops"
	"provenance/pkg/platform/audit/publishers/security"
	auditpostgres "provenance/pkg/platform/audit/store/postgres"
	"provenance/pkg/platform/audit/worker"
	"provenance/pkg/platform/circuit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server)

	if err := serve(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func serve(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres holds the verification records, reviewer accounts, the audit
	// tables, and the outbox.
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	// Reviewer accounts go through pgx for its native binary protocol; the
	// rest of the schema stays on database/sql.
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open pgx pool: %w", err)
	}
	defer pool.Close()

	// Redis is optional. Without it runs are still durable in Postgres, reads
	// of parked runs just skip the checkpoint cache.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if err := admin.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.Replication, audit.Topics()...); err != nil {
		return fmt.Errorf("ensure kafka topics: %w", err)
	}

	producer, err := kafkaproducer.New(kafkaproducer.Config{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer producer.Close()

	// Audit events fan out by category: compliance writes are synchronous and
	// fail the caller, security events buffer in a ring, ops events are
	// sampled. All three land in the outbox, which the worker relays to Kafka.
	auditStore := auditpostgres.New(db)

	compliancePub := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	securityPub := security.New(auditStore,
		security.WithLogger(log),
		security.WithMetrics(security.NewMetrics()),
	)
	opsTracker := ops.New(auditStore,
		ops.WithSampler(ops.NewSampler(cfg.Audit.OpsSampleRate)),
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics()),
	)
	auditPipeline := internalaudit.NewPipeline(compliancePub, securityPub, opsTracker)

	outbox := worker.NewWorker(auditStore, producer, log,
		worker.WithInterval(cfg.Audit.OutboxInterval),
		worker.WithBatchSize(cfg.Audit.OutboxBatchSize),
	)

	// Two consumer groups over the same topics: one materializes the
	// per-category tables, the other the flat audit_events feed.
	categories := auditconsumer.NewRouter(log, nil)
	categories.Register(audit.TopicCompliance, auditconsumer.NewComplianceHandler(auditStore, log))
	categories.Register(audit.TopicSecurity, auditconsumer.NewSecurityHandler(auditStore, log))
	categories.Register(audit.TopicOps, auditconsumer.NewOpsHandler(auditStore, log))

	categoryConsumer, err := kafkaconsumer.New(kafkaconsumer.Config{
		Brokers:  cfg.Kafka.Brokers,
		Group:    cfg.Kafka.RouterGroup,
		Topics:   audit.Topics(),
		ClientID: cfg.Kafka.ClientID,
	}, categories, log)
	if err != nil {
		return fmt.Errorf("create category consumer: %w", err)
	}
	defer categoryConsumer.Close()

	eventsConsumer, err := kafkaconsumer.New(kafkaconsumer.Config{
		Brokers:  cfg.Kafka.Brokers,
		Group:    cfg.Kafka.EventsGroup,
		Topics:   audit.Topics(),
		ClientID: cfg.Kafka.ClientID,
	}, auditconsumer.NewEventsHandler(auditStore, log), log)
	if err != nil {
		return fmt.Errorf("create events consumer: %w", err)
	}
	defer eventsConsumer.Close()

	records := recordstore.NewPostgresStore(db)

	agentList := []agents.Agent{
		agents.NewIdentityAgent(),
		agents.NewPayslipAgent(),
		agents.NewFinancialReportsAgent(),
		agents.NewWebReferencesAgent(newSearcher(cfg.Search, log)),
	}

	engine, err := run.NewEngine(records, agentList,
		run.WithLogger(log),
		run.WithMetrics(runmetrics.New()),
		run.WithAuditPublisher(auditPipeline),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	var managerOpts []run.ManagerOption
	if redisClient != nil {
		managerOpts = append(managerOpts,
			run.WithCheckpoint(recordstore.NewRedisCheckpoint(redisClient.Client, cfg.Runs.CheckpointTTL)))
	}
	manager, err := run.NewManager(engine, cfg.Runs.MaxConcurrent, managerOpts...)
	if err != nil {
		return fmt.Errorf("create run manager: %w", err)
	}

	// Runs that were in flight when the previous process died stay queued in
	// Postgres. Kick them off again; terminal runs filter themselves out.
	if active, err := records.ListActiveRunIDs(ctx); err != nil {
		log.Warn("listing unfinished runs failed, skipping re-drive", "error", err)
	} else if len(active) > 0 {
		log.Info("re-driving unfinished runs", "count", len(active))
		manager.Redrive(active...)
	}

	tokens := token.NewService(cfg.Reviewer.JWTSecret, cfg.Reviewer.TokenIssuer, cfg.Reviewer.TokenAudience)
	accounts := reviewerstore.NewPostgres(pool)

	httpMetrics := metrics.New()

	reviewerSvc := reviewer.New(accounts, tokens, reviewerdevice.NewService(cfg.Reviewer.DeviceBinding),
		reviewer.WithLogger(log),
		reviewer.WithMetrics(httpMetrics),
		reviewer.WithSecurityAuditor(securityPub),
		reviewer.WithTokenTTL(cfg.Reviewer.TokenTTL),
	)

	if cfg.Reviewer.BootstrapEmail != "" {
		if _, err := reviewerstore.SeedBootstrapReviewer(ctx, accounts, cfg.Reviewer.BootstrapEmail, cfg.Reviewer.BootstrapPassword); err != nil {
			return fmt.Errorf("seed bootstrap reviewer: %w", err)
		}
	}

	checks := map[string]httpapi.HealthCheck{
		"postgres": db.PingContext,
		"kafka":    producer.Ping,
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	validator := token.NewValidator(tokens)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:           log,
		Metrics:          httpMetrics,
		Health:           httpapi.NewHealthHandler(log, checks),
		ParseDeviceLabel: reviewerdevice.ParseUserAgent,
		V1: []httpapi.Registrar{
			runhandler.New(manager, log, validator),
			reviewhandler.New(manager, log, validator),
			reviewerhandler.New(reviewerSvc, log),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := outbox.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := categoryConsumer.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("category consumer: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := eventsConsumer.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("events consumer: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	groupErr := group.Wait()

	// Let in-flight runs park or finish, flush the security buffer, then push
	// whatever reached the outbox after the worker stopped. Events that miss
	// this window stay queued in Postgres for the next start.
	manager.Wait()
	if err := securityPub.Close(); err != nil {
		log.Warn("security publisher close failed", "error", err)
	}
	if err := compliancePub.Close(); err != nil {
		log.Warn("compliance publisher close failed", "error", err)
	}
	if err := opsTracker.Close(); err != nil {
		log.Warn("ops tracker close failed", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDrain()
	if err := outbox.DrainOnce(drainCtx); err != nil {
		log.Warn("final outbox drain failed", "error", err)
	}

	return groupErr
}

// newSearcher builds the web reference searcher. With no search URL
// configured the static fixture searcher serves alone; otherwise the HTTP
// searcher fronts it behind a circuit breaker so a flapping provider
// degrades to fixtures instead of failing runs.
func newSearcher(cfg config.SearchConfig, log *slog.Logger) agents.Searcher {
	static := agents.NewStaticSearcher(nil)
	if cfg.URL == "" {
		return static
	}
	httpSearcher := agents.NewHTTPSearcher(cfg.URL, nil)
	return agents.NewFallbackSearcher(httpSearcher, static, circuit.New("web-search"), log)
}
