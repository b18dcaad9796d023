package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Generation kinds
const (
	GenerationKindMonthly = "monthly"
	GenerationKindLateFee = "late_fee"
)

// Allocation modes
const (
	AllocationModeFIFO     = "fifo"
	AllocationModeTargeted = "targeted"
)

// BillingSnapshot is a point-in-time view of what tenants owe and what is unapplied
type BillingSnapshot struct {
	OutstandingAmount decimal.Decimal
	OverdueInvoices   int64
	UnallocatedAmount decimal.Decimal
}

// SnapshotProvider reads the billing snapshot for periodic gauge collection.
// Implemented by the persistence layer so telemetry does not depend on the domain.
type SnapshotProvider interface {
	BillingSnapshot(ctx context.Context) (*BillingSnapshot, error)
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	SnapshotProvider SnapshotProvider
}

// BillingMetrics records invoice generation, payment allocation and balance
// recalculation activity. A nil *BillingMetrics is never passed around; services
// nil-check their field instead.
type BillingMetrics struct {
	logger *zap.Logger

	invoicesGenerated *Counter
	tenantsSkipped    *Counter
	allocations       *Counter
	allocatedAmount   *FloatCounter
	reversals         *Counter
	reversedAmount    *FloatCounter
	invoicesRepaired  *Counter

	outstandingAmount *FloatGauge
	overdueInvoices   *Gauge
	unallocatedAmount *FloatGauge

	snapshots SnapshotProvider

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewBillingMetrics creates the billing instruments on the given meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		logger:    logger,
		snapshots: cfg.SnapshotProvider,
		stopChan:  make(chan struct{}),
	}

	counters := []struct {
		dst               **Counter
		name, desc, unit string
	}{
		{&bm.invoicesGenerated, "rentpay_invoices_generated_total", "Invoices issued by billing runs", "{invoices}"},
		{&bm.tenantsSkipped, "rentpay_tenants_skipped_total", "Tenants skipped by billing runs", "{tenants}"},
		{&bm.allocations, "rentpay_allocations_total", "Allocation facts created", "{allocations}"},
		{&bm.reversals, "rentpay_allocation_reversals_total", "Allocation facts removed by reversal", "{allocations}"},
		{&bm.invoicesRepaired, "rentpay_invoices_recalculated_total", "Invoices whose cached balance or status changed on recalculation", "{invoices}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	if bm.allocatedAmount, err = NewFloatCounter(cfg.Meter,
		"rentpay_allocated_amount_total", "Money applied to invoices", "{currency}"); err != nil {
		return nil, err
	}
	if bm.reversedAmount, err = NewFloatCounter(cfg.Meter,
		"rentpay_reversed_amount_total", "Money returned to payments by reversal", "{currency}"); err != nil {
		return nil, err
	}
	if bm.outstandingAmount, err = NewFloatGauge(cfg.Meter,
		"rentpay_outstanding_amount", "Sum of live balances of non-void invoices", "{currency}"); err != nil {
		return nil, err
	}
	if bm.overdueInvoices, err = NewGauge(cfg.Meter,
		"rentpay_overdue_invoices", "Invoices currently in OVERDUE status", "{invoices}"); err != nil {
		return nil, err
	}
	if bm.unallocatedAmount, err = NewFloatGauge(cfg.Meter,
		"rentpay_unallocated_amount", "Completed payment funds not yet applied", "{currency}"); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordGeneration records the outcome of a billing run
func (bm *BillingMetrics) RecordGeneration(ctx context.Context, kind string, generated, skipped int) {
	bm.invoicesGenerated.Add(ctx, int64(generated), AttrGenerationKind.String(kind))
	bm.tenantsSkipped.Add(ctx, int64(skipped), AttrGenerationKind.String(kind))
}

// RecordAllocation records newly created allocation facts
func (bm *BillingMetrics) RecordAllocation(ctx context.Context, mode string, amount decimal.Decimal, facts int) {
	bm.allocations.Add(ctx, int64(facts), AttrAllocationMode.String(mode))
	bm.allocatedAmount.Add(ctx, amount.InexactFloat64(), AttrAllocationMode.String(mode))
}

// RecordReversal records allocation facts removed by a reversal
func (bm *BillingMetrics) RecordReversal(ctx context.Context, amount decimal.Decimal, facts int) {
	bm.reversals.Add(ctx, int64(facts))
	bm.reversedAmount.Add(ctx, amount.InexactFloat64())
}

// RecordRecalculation records how many invoices a recalculation repaired
func (bm *BillingMetrics) RecordRecalculation(ctx context.Context, scope string, changed int) {
	bm.invoicesRepaired.Add(ctx, int64(changed), AttrRecalcScope.String(scope))
}

// RecordSnapshot updates the point-in-time gauges
func (bm *BillingMetrics) RecordSnapshot(ctx context.Context, s *BillingSnapshot) {
	bm.outstandingAmount.Record(ctx, s.OutstandingAmount.InexactFloat64())
	bm.overdueInvoices.Record(ctx, s.OverdueInvoices)
	bm.unallocatedAmount.Record(ctx, s.UnallocatedAmount.InexactFloat64())
}

// StartPeriodicCollection refreshes the snapshot gauges every interval
// (default 5 minutes) until Stop is called or ctx is done. Non-blocking.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectSnapshot(ctx)
	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic billing metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectSnapshot(ctx)
		}
	}
}

func (bm *BillingMetrics) collectSnapshot(ctx context.Context) {
	if bm.snapshots == nil {
		bm.logger.Debug("No snapshot provider configured, skipping billing gauges")
		return
	}
	snapshot, err := bm.snapshots.BillingSnapshot(ctx)
	if err != nil {
		bm.logger.Warn("Failed to read billing snapshot", zap.Error(err))
		return
	}
	bm.RecordSnapshot(ctx, snapshot)
}

// Stop stops the periodic collection.
func (bm *BillingMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
