package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packdrop-backend/internal/cron"
	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/payouts"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/instance"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/migrate"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.String("job", "", "run a single job by name and exit (ledger-reconcile|payout-stale-sweep|outbox-retention)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Instance:    instance.ID(),
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once string) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.ApplyOnBoot(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := metrics.NewRegistry()
	domainMetrics := metrics.NewDomainMetrics(reg)
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return err
	}
	minimum, err := decimal.NewFromString(cfg.Payouts.MinimumAmount)
	if err != nil {
		return fmt.Errorf("parse %s: %w", config.EnvPayoutMinimum, err)
	}
	payoutRepo := payouts.NewRepository(gormDB)
	payoutSvc, err := payouts.NewService(payouts.Deps{
		Repo: payoutRepo,
		Subjects: []payouts.Subject{
			payouts.NewDriverSubject(drivers.NewRepository(gormDB), ledgerRepo, payoutRepo),
			payouts.NewVendorSubject(vendors.NewRepository(gormDB), ledgerRepo),
		},
		Accounts:      ledgerRepo,
		Ledger:        ledgerSvc,
		Outbox:        emitter,
		Tx:            dbClient,
		Logger:        logg,
		Metrics:       domainMetrics,
		MinimumAmount: minimum,
	})
	if err != nil {
		return err
	}

	jobs, err := buildJobs(cfg, logg, dbClient, ledgerSvc, payoutSvc, emitter, outboxRepo, domainMetrics)
	if err != nil {
		return err
	}

	locker, err := cron.NewRedisLocker(redisClient, 0)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once != "" {
		return service.RunJob(ctx, once)
	}

	go func() {
		if serveErr := metrics.Serve(ctx, net.JoinHostPort("", cfg.App.Port), reg, logg); serveErr != nil {
			logg.Error(ctx, "metrics server failed", serveErr)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func buildJobs(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	ledgerSvc ledger.Service,
	payoutSvc payouts.Service,
	emitter outbox.Emitter,
	outboxRepo *outbox.Repository,
	domainMetrics *metrics.DomainMetrics,
) (*cron.Registry, error) {
	reconcile, err := cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
		Logger:    logg,
		Ledger:    ledgerSvc,
		Outbox:    emitter,
		DB:        dbClient,
		Metrics:   domainMetrics,
		BatchSize: cfg.Cron.ReconcileBatchSize,
	})
	if err != nil {
		return nil, err
	}
	stale, err := cron.NewPayoutStaleJob(cron.PayoutStaleJobParams{
		Logger:     logg,
		Payouts:    payoutSvc,
		StaleAfter: cfg.Payouts.StaleAfter,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
		BatchSize:  cfg.Outbox.PruneBatchSize,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(reconcile, stale, retention), nil
}
