package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/app"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/cron"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/instance"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/migrate"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run; all when empty")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg, *once, *only); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
}

// run wires the worker and either runs one cycle or loops until ctx is
// canceled. A failing job in --once mode is an error so schedulers notice.
func run(ctx context.Context, logg *logger.Logger, once bool, only string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	// The cycle lock lives in redis, so the worker cannot run without it.
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient.Close)

	svcs, err := app.NewServices(app.Params{
		DB:      dbClient,
		Config:  cfg,
		Logger:  logg,
		Metrics: metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, svcs)
	if err == nil {
		registry, err = registry.Only(strings.Split(only, ",")...)
	}
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}

	lock, err := cron.NewRedisLock(cron.LockParams{
		Client: redisClient,
		Key:    redisClient.LockKey(serviceName, cmp.Or(cfg.App.Env, "local")),
		Holder: instance.ID(),
	})
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
		"instance":    instance.ID(),
	})

	if once {
		logg.Info(ctx, "running single cron cycle")
		return service.RunOnce(ctx)
	}

	logg.Info(logg.WithField(ctx, "metrics_addr", cfg.Service.MetricsAddr), "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, svcs *app.Services) (*cron.Registry, error) {
	expiry, err := cron.NewPointsExpiryJob(cron.PointsExpiryJobParams{
		Logger:     logg,
		DB:         dbClient,
		Tenants:    svcs.Tenants,
		Loyalty:    svcs.Loyalty,
		Outbox:     svcs.Outbox,
		WindowDays: cfg.Loyalty.ReminderWindowDays,
		ExpireDue:  cfg.Loyalty.ExpireDue,
	})
	if err != nil {
		return nil, fmt.Errorf("points expiry job: %w", err)
	}
	reconcile, err := cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
		Logger:  logg,
		Tenants: svcs.Tenants,
		Stock:   svcs.Stock,
		Loyalty: svcs.Loyalty,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger reconcile job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:              logg,
		DB:                  dbClient,
		Events:              svcs.OutboxRep,
		DeadLetters:         svcs.DeadLetters,
		Retention:           cfg.Outbox.Retention,
		DeadLetterRetention: cfg.Outbox.DLQRetention,
		MaxAttempts:         cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewRegistry(expiry, reconcile, retention), nil
}
