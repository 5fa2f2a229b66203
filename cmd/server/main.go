package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"peershield/internal/arbitration"
	"peershield/internal/audit"
	"peershield/internal/compliance"
	"peershield/internal/dispute"
	"peershield/internal/evidence"
	jwttoken "peershield/internal/jwt_token"
	"peershield/internal/ledger"
	"peershield/internal/platform/config"
	"peershield/internal/platform/httpserver"
	"peershield/internal/platform/logger"
	"peershield/internal/platform/metrics"
	platformredis "peershield/internal/platform/redis"
	"peershield/internal/registry"
	"peershield/internal/sandbox"
	httptransport "peershield/internal/transport/http"
	"peershield/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	disputeStore, sandboxStore, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	evidenceStore, closeEvidence, err := buildEvidenceStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeEvidence()

	settlements, err := buildLedgerGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer settlements.Close()

	auditStore := audit.NewInMemoryStore()
	auditInbox := make(chan audit.Event, 256)
	auditPublisher := audit.NewPublisher(auditStore, audit.WithInbox(auditInbox))
	auditWorker := audit.NewWorker(auditStore, auditInbox)

	arbiters, err := arbitration.NewManager(arbitration.NewInMemoryStore(), arbitration.WithLogger(log))
	if err != nil {
		return err
	}

	disputes, err := dispute.NewService(disputeStore, evidenceStore, arbiters,
		dispute.WithLogger(log),
		dispute.WithLedger(settlements),
		dispute.WithAuditPublisher(auditPublisher),
		dispute.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	registrar, err := sandbox.New(sandboxStore,
		sandbox.WithLogger(log),
		sandbox.WithReporter(disputes),
		sandbox.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	profiles := compliance.NewInMemoryProfiles()
	profileService, err := compliance.NewProfileService(profiles, compliance.WithProfileLogger(log))
	if err != nil {
		return err
	}

	engine, err := compliance.NewEngine(profiles,
		compliance.WithLogger(log),
		compliance.WithSandboxGate(registrar),
		compliance.WithSanctions(registry.MockSanctionsClient{}),
		compliance.WithPoolParams(arbiters),
		compliance.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	disputes.SetAuthorizer(engine)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "peershield", "peershield-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httptransport.NewRouter(httptransport.Services{
		Disputes:    disputes,
		Compliance:  engine,
		Profiles:    profileService,
		Arbitration: arbiters,
		Sandbox:     registrar,
	}, validator, log)

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting peershield server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		expireRegistrations(ctx, registrar, log)
		return nil
	})
	g.Go(func() error {
		if err := auditWorker.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStores picks Postgres-backed stores when a DSN is configured and falls
// back to in-memory stores otherwise.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (dispute.Store, sandbox.Store, func(), error) {
	if cfg.Postgres.DSN == "" {
		log.Info("postgres not configured, using in-memory stores")
		return dispute.NewInMemoryStore(), sandbox.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	disputeStore := dispute.NewPostgres(db)
	if err := disputeStore.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	sandboxStore := sandbox.NewPostgresStore(pool)
	if err := sandboxStore.Migrate(ctx); err != nil {
		pool.Close()
		db.Close()
		return nil, nil, nil, err
	}

	closeStores := func() {
		pool.Close()
		if err := db.Close(); err != nil {
			log.Warn("closing postgres", "error", err)
		}
	}
	return disputeStore, sandboxStore, closeStores, nil
}

func buildEvidenceStore(cfg config.Config, log *slog.Logger) (evidence.Store, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("redis not configured, using in-memory evidence store")
		return evidence.NewInMemoryStore(), func() {}, nil
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
	return evidence.NewRedisStore(client), closeClient, nil
}

func buildLedgerGateway(ctx context.Context, cfg config.Config, log *slog.Logger) (ledger.Gateway, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka not configured, settlement requests are recorded in memory")
		return ledger.NewInMemoryGateway(), nil
	}

	gateway, err := ledger.NewKafkaGateway(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic, ledger.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := gateway.EnsureTopic(ctx, 3, 1); err != nil {
		gateway.Close()
		return nil, err
	}
	breaker := circuit.New("settlement", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2))
	return ledger.NewBreakerGateway(gateway, breaker, log), nil
}

// expireRegistrations sweeps sandbox registrations past their end date once a
// day so compliance decisions stop honoring stale enrollments.
func expireRegistrations(ctx context.Context, registrar *sandbox.Registrar, log *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := registrar.ExpireDue(ctx); err != nil {
				log.WarnContext(ctx, "expiring sandbox registrations", "error", err)
			}
		}
	}
}
