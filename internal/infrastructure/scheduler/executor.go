package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appinvoicing "github.com/wawire/RentCollectionApp-sub000/internal/application/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/logger"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// InvoiceGenerator is the part of the generation service the scheduler drives
type InvoiceGenerator interface {
	GenerateMonthlyInvoices(ctx context.Context, year int, month time.Month) (*appinvoicing.GenerationResult, error)
	ApplyLateFees(ctx context.Context, year int, month time.Month) (*appinvoicing.GenerationResult, error)
}

// BalanceRecalculator repairs cached balances across the portfolio
type BalanceRecalculator interface {
	RecalculateAll(ctx context.Context) (int, error)
}

// BillingJobExecutor maps job types onto the billing services
type BillingJobExecutor struct {
	generator    InvoiceGenerator
	recalculator BalanceRecalculator
	logger       *zap.Logger
}

// NewBillingJobExecutor creates a new BillingJobExecutor; recalculator may be nil
func NewBillingJobExecutor(generator InvoiceGenerator, recalculator BalanceRecalculator, l *zap.Logger) *BillingJobExecutor {
	if l == nil {
		l = zap.NewNop()
	}
	return &BillingJobExecutor{generator: generator, recalculator: recalculator, logger: l}
}

// Execute runs one job under its own run ID and span
func (e *BillingJobExecutor) Execute(ctx context.Context, job *Job) (err error) {
	ctx, log := logger.WithRunID(ctx, e.logger, job.ID.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", string(job.Type),
		telemetry.WithAttribute("billing.period", job.Period()),
		telemetry.WithAttribute("job.attempt", job.RetryCount+1),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()

	switch job.Type {
	case JobTypeGenerateInvoices:
		result, err := e.generator.GenerateMonthlyInvoices(ctx, job.Year, job.Month)
		if err != nil {
			return fmt.Errorf("failed to generate invoices for %s: %w", job.Period(), err)
		}
		logGeneration(log, "Monthly invoice generation finished", result)
		return nil

	case JobTypeApplyLateFees:
		result, err := e.generator.ApplyLateFees(ctx, job.Year, job.Month)
		if err != nil {
			return fmt.Errorf("failed to apply late fees for %s: %w", job.Period(), err)
		}
		logGeneration(log, "Late fee pass finished", result)
		return nil

	case JobTypeRecalculateBalances:
		if e.recalculator == nil {
			return fmt.Errorf("%w: %s has no recalculator", ErrUnknownJobType, job.Type)
		}
		changed, err := e.recalculator.RecalculateAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to recalculate balances: %w", err)
		}
		log.Info("Balance recalculation finished", zap.Int("invoices_changed", changed))
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
}

func logGeneration(log *zap.Logger, msg string, r *appinvoicing.GenerationResult) {
	if r == nil {
		return
	}
	log.Info(msg,
		zap.Int("generated", r.Generated),
		zap.Int("skipped", r.Skipped),
		zap.String("summary", r.Message),
	)
}

var _ JobExecutor = (*BillingJobExecutor)(nil)
