package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/bootstrap"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/logger"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	base, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(base)

	if err := run(cfg, base); err != nil {
		base.Error("Billing worker failed", zap.Error(err))
		logger.Sync(base)
		os.Exit(1)
	}
}

func run(cfg *config.Config, base *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, base, bootstrap.Options{
		CollectSnapshots: true,
		AuditEvents:      true,
	})
	if err != nil {
		return err
	}
	log := app.Logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	log.Info("Starting billing worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("timezone", cfg.Billing.Timezone),
		zap.Int("generation_day", cfg.Billing.GenerationDay),
		zap.Int("generation_hour", cfg.Billing.GenerationHour),
		zap.Int("late_fee_hour", cfg.Billing.LateFeeHour),
	)

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.JobTimeout = cfg.Billing.JobTimeout
	executor := scheduler.NewBillingJobExecutor(app.Generation, app.Recalculation, log)
	sched, err := scheduler.NewScheduler(schedCfg, executor, app.Clock, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	triggerCfg, err := scheduler.BillingTriggerConfigFrom(cfg.Billing)
	if err != nil {
		_ = sched.Stop(context.Background())
		return err
	}
	trigger := scheduler.NewBillingTrigger(triggerCfg, sched, app.Clock, log)
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(context.Background())
		return fmt.Errorf("failed to start billing trigger: %w", err)
	}

	log.Info("Billing worker running")
	<-ctx.Done()
	log.Info("Shutting down billing worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping billing trigger", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping scheduler", zap.Error(err))
	}

	log.Info("Billing worker exited gracefully")
	return nil
}
