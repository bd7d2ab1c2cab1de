package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packdrop-backend/api/routes"
	"github.com/angelmondragon/packdrop-backend/internal/deliveries"
	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/earnings"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/orders"
	"github.com/angelmondragon/packdrop-backend/internal/payouts"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	"github.com/angelmondragon/packdrop-backend/internal/webhooks/gateway"
	"github.com/angelmondragon/packdrop-backend/pkg/auth"
	"github.com/angelmondragon/packdrop-backend/pkg/auth/session"
	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/instance"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/migrate"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.ID(),
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.ApplyOnBoot(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := metrics.NewRegistry()

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort("", cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(*deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg *prometheus.Registry) (*routes.Deps, error) {
	gormDB := dbClient.DB()
	domainMetrics := metrics.NewDomainMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	minimum, err := decimal.NewFromString(cfg.Payouts.MinimumAmount)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", config.EnvPayoutMinimum, err)
	}

	driverRepo := drivers.NewRepository(gormDB)
	vendorRepo := vendors.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return nil, err
	}

	locations, err := drivers.NewLocationIndex(redisClient)
	if err != nil {
		return nil, err
	}
	driverSvc, err := drivers.NewService(driverRepo, locations, drivers.SearchConfig{
		RadiusKm:      cfg.Dispatch.SearchRadiusKm,
		MaxCandidates: cfg.Dispatch.MaxCandidates,
	}, logg)
	if err != nil {
		return nil, err
	}

	orderSvc, err := orders.NewService(orders.NewRepository(gormDB), vendorRepo, dbClient, logg)
	if err != nil {
		return nil, err
	}

	earningSvc, err := earnings.NewService(earnings.Deps{
		Repo:     earnings.NewRepository(gormDB),
		Drivers:  driverRepo,
		Vendors:  vendorRepo,
		Accounts: ledgerRepo,
		Ledger:   ledgerSvc,
		Outbox:   emitter,
		Tx:       dbClient,
		Logger:   logg,
		Metrics:  domainMetrics,
	})
	if err != nil {
		return nil, err
	}

	deliverySvc, err := deliveries.NewService(deliveries.Deps{
		Repo:     deliveries.NewRepository(gormDB),
		Drivers:  driverRepo,
		Dispatch: driverSvc,
		Vendors:  vendorRepo,
		Orders:   orderSvc,
		Earnings: earningSvc,
		Outbox:   emitter,
		Tx:       dbClient,
		Logger:   logg,
		Metrics:  domainMetrics,
	})
	if err != nil {
		return nil, err
	}

	payoutRepo := payouts.NewRepository(gormDB)
	payoutSvc, err := payouts.NewService(payouts.Deps{
		Repo: payoutRepo,
		Subjects: []payouts.Subject{
			payouts.NewDriverSubject(driverRepo, ledgerRepo, payoutRepo),
			payouts.NewVendorSubject(vendorRepo, ledgerRepo),
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
		return nil, err
	}

	replay, err := gateway.NewReplayGuard(redisClient, cfg.Webhooks.ReplayTTL)
	if err != nil {
		return nil, err
	}
	alerter, err := gateway.NewAlerter(emitter, dbClient, domainMetrics, logg)
	if err != nil {
		return nil, err
	}
	webhookSvc, err := gateway.NewService(gateway.ServiceParams{
		Payouts:           payoutSvc,
		Orders:            orderSvc,
		Accounts:          ledgerRepo,
		Guard:             replay,
		Alerter:           alerter,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewChecker(redisClient)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return nil, err
	}

	return &routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Tokens:      tokens,
		Sessions:    sessions,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Deliveries:  deliverySvc,
		Drivers:     driverSvc,
		Earnings:    earningSvc,
		Payouts:     payoutSvc,
		Orders:      orderSvc,
		Webhooks:    webhookSvc,
	}, nil
}
