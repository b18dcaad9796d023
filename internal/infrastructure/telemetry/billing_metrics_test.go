package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

func newTestMetrics(t *testing.T, provider telemetry.SnapshotProvider) (*telemetry.BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:            mp.Meter("billing-test"),
		SnapshotProvider: provider,
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func intSum(t *testing.T, data metricdata.Aggregation, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}
	return 0
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBillingMetrics: meter cannot be nil", err.Error())
}

func TestNewBillingMetrics_NoopMeter(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		bm.RecordGeneration(context.Background(), telemetry.GenerationKindMonthly, 3, 1)
	})
}

func TestBillingMetrics_Counters(t *testing.T) {
	bm, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	bm.RecordGeneration(ctx, telemetry.GenerationKindMonthly, 12, 2)
	bm.RecordGeneration(ctx, telemetry.GenerationKindMonthly, 0, 14)
	bm.RecordGeneration(ctx, telemetry.GenerationKindLateFee, 3, 0)
	bm.RecordAllocation(ctx, telemetry.AllocationModeFIFO, decimal.RequireFromString("15000"), 2)
	bm.RecordAllocation(ctx, telemetry.AllocationModeTargeted, decimal.RequireFromString("250.50"), 1)
	bm.RecordReversal(ctx, decimal.RequireFromString("1800"), 2)
	bm.RecordRecalculation(ctx, "all", 5)

	data := collect(t, reader)
	monthly := telemetry.AttrGenerationKind.String(telemetry.GenerationKindMonthly)
	assert.Equal(t, int64(12), intSum(t, data["rentpay_invoices_generated_total"], monthly))
	assert.Equal(t, int64(16), intSum(t, data["rentpay_tenants_skipped_total"], monthly))
	assert.Equal(t, int64(3), intSum(t, data["rentpay_invoices_generated_total"],
		telemetry.AttrGenerationKind.String(telemetry.GenerationKindLateFee)))
	assert.Equal(t, int64(2), intSum(t, data["rentpay_allocations_total"],
		telemetry.AttrAllocationMode.String(telemetry.AllocationModeFIFO)))
	assert.Equal(t, int64(5), intSum(t, data["rentpay_invoices_recalculated_total"],
		telemetry.AttrRecalcScope.String("all")))

	reversed, ok := data["rentpay_reversed_amount_total"].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, reversed.DataPoints, 1)
	assert.InDelta(t, 1800.0, reversed.DataPoints[0].Value, 0.001)
}

type stubSnapshots struct {
	calls atomic.Int32
	err   error
}

func (s *stubSnapshots) BillingSnapshot(context.Context) (*telemetry.BillingSnapshot, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &telemetry.BillingSnapshot{
		OutstandingAmount: decimal.RequireFromString("42500.75"),
		OverdueInvoices:   7,
		UnallocatedAmount: decimal.RequireFromString("1200"),
	}, nil
}

func TestBillingMetrics_PeriodicSnapshot(t *testing.T) {
	stub := &stubSnapshots{}
	bm, reader := newTestMetrics(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	bm.Stop()
	bm.Stop()

	data := collect(t, reader)
	overdue, ok := data["rentpay_overdue_invoices"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(7), overdue.DataPoints[0].Value)

	outstanding, ok := data["rentpay_outstanding_amount"].(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 42500.75, outstanding.DataPoints[0].Value, 0.001)
}

func TestBillingMetrics_SnapshotErrorIsSwallowed(t *testing.T) {
	stub := &stubSnapshots{err: errors.New("db down")}
	bm, reader := newTestMetrics(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool { return stub.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	if data, ok := collect(t, reader)["rentpay_overdue_invoices"]; ok {
		gauge, isGauge := data.(metricdata.Gauge[int64])
		require.True(t, isGauge)
		assert.Empty(t, gauge.DataPoints)
	}
}
