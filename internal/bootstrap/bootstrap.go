// Package bootstrap wires configuration, infrastructure and the billing
// services into one App shared by the worker and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appinvoicing "github.com/wawire/RentCollectionApp-sub000/internal/application/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/event"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/lock"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// Options tunes what New starts
type Options struct {
	// CollectSnapshots refreshes the outstanding/overdue/unallocated gauges periodically
	CollectSnapshots bool
	// AuditEvents subscribes the audit log handler to the event bus
	AuditEvents bool
}

// App holds the wired billing services and everything that must be closed with them
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Clock  shared.Clock

	DB       *persistence.Database
	Redis    *redis.Client
	EventBus *event.InMemoryEventBus
	Metrics  *telemetry.BillingMetrics

	Generation    *appinvoicing.InvoiceGenerationService
	Allocation    *appinvoicing.PaymentAllocationService
	Recalculation *appinvoicing.BalanceRecalculationService
	LateFees      *appinvoicing.LateFeeService

	closers []func(context.Context) error
}

// New builds the App. On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, base *zap.Logger, opts Options) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	log, err := app.initTelemetry(ctx, base)
	if err != nil {
		return nil, err
	}
	app.Logger = log

	loc, err := cfg.Billing.Location()
	if err != nil {
		return nil, err
	}
	app.Clock = shared.NewSystemClock(loc)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	locker, err := app.initLocker()
	if err != nil {
		return nil, err
	}

	app.EventBus = event.NewInMemoryEventBus(log)
	if opts.AuditEvents {
		app.EventBus.Subscribe(event.NewAuditLogHandler(event.NewEventSerializer(), log))
	}
	if err := app.EventBus.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}
	app.closers = append(app.closers, app.EventBus.Stop)

	if err := app.initMetrics(ctx, opts.CollectSnapshots); err != nil {
		return nil, err
	}

	app.initServices(locker)
	return app, nil
}

func (a *App) initTelemetry(ctx context.Context, base *zap.Logger) (*zap.Logger, error) {
	tc := a.Config.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, base)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, base)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log export: %w", err)
	}
	a.closers = append(a.closers, lp.Shutdown)

	return telemetry.Bridge(base, tc.ServiceName, lp), nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := persistence.NewDatabaseWithLogger(&a.Config.Database, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	tc := a.Config.Telemetry
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         tc.Enabled && tc.DBTraceEnabled,
		LogFullSQL:      tc.DBLogFullSQL,
		SlowQueryThresh: tc.DBSlowQueryThresh,
	}, a.Logger)
	if err := tracing.Register(db.DB); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	a.Logger.Info("Database connected",
		zap.String("host", a.Config.Database.Host),
		zap.String("dbname", a.Config.Database.DBName),
	)
	return nil
}

func (a *App) initLocker() (lock.Locker, error) {
	if a.Config.Billing.LockBackend == config.LockBackendRedis {
		client, err := lock.NewRedisClient(a.Config.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}

	var client redis.UniversalClient
	if a.Redis != nil {
		client = a.Redis
	}
	locker, err := lock.NewFromConfig(a.Config.Billing, client, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Tenant lock ready", zap.String("backend", a.Config.Billing.LockBackend))
	return locker, nil
}

func (a *App) initMetrics(ctx context.Context, collectSnapshots bool) error {
	tc := a.Config.Telemetry

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.closers = append(a.closers, mp.Shutdown)

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.SlowQueryThreshold = tc.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, a.DB.DB, mp, dbMetricsCfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}
	if dbMetrics != nil {
		a.closers = append(a.closers, func(context.Context) error { dbMetrics.Stop(); return nil })
	}

	metrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:            mp.Meter("billing"),
		Logger:           a.Logger,
		SnapshotProvider: persistence.NewGormBillingSnapshotProvider(a.DB.DB),
	})
	if err != nil {
		return fmt.Errorf("failed to create billing metrics: %w", err)
	}
	a.Metrics = metrics
	if collectSnapshots && mp.IsEnabled() {
		metrics.StartPeriodicCollection(ctx, tc.SnapshotInterval)
		a.closers = append(a.closers, func(context.Context) error { metrics.Stop(); return nil })
	}
	return nil
}

func (a *App) initServices(locker lock.Locker) {
	db := a.DB.DB
	log := a.Logger

	tenantRepo := persistence.NewGormTenantRepository(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	paymentRepo := persistence.NewGormPaymentRepository(db)
	allocationRepo := persistence.NewGormAllocationRepository(db)
	configRepo := persistence.NewGormUtilityConfigRepository(db)
	readingRepo := persistence.NewGormMeterReadingRepository(db)
	txScope := persistence.NewGormTransactionScope(db)

	utilities := appinvoicing.NewUtilityBillingService(tenantRepo, configRepo, readingRepo, log)

	a.Generation = appinvoicing.NewInvoiceGenerationService(
		tenantRepo, invoiceRepo, allocationRepo, utilities, txScope, a.Clock, log,
	)
	a.Generation.SetEventPublisher(a.EventBus)
	a.Generation.SetBillingMetrics(a.Metrics)

	a.Allocation = appinvoicing.NewPaymentAllocationService(paymentRepo, txScope, locker, a.Clock, log)
	a.Allocation.SetEventPublisher(a.EventBus)
	a.Allocation.SetBillingMetrics(a.Metrics)

	a.Recalculation = appinvoicing.NewBalanceRecalculationService(
		tenantRepo, invoiceRepo, allocationRepo, txScope, locker, a.Clock, log,
	)
	a.Recalculation.SetBatchSize(a.Config.Billing.RecalcBatchSize)
	a.Recalculation.SetEventPublisher(a.EventBus)
	a.Recalculation.SetBillingMetrics(a.Metrics)

	a.LateFees = appinvoicing.NewLateFeeService(tenantRepo, invoiceRepo, paymentRepo, allocationRepo, a.Clock, log)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
