package invoicing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.DomainEvent, 0)
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// keyedLocker is a per-key mutex that remembers which keys were taken
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyedLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

func (l *keyedLocker) taken() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.keys...)
}

type fixture struct {
	store      *memStore
	clock      *shared.FixedClock
	events     *recordingPublisher
	locker     *keyedLocker
	scope      *NoOpTransactionScope
	utilities  *UtilityBillingService
	generation *InvoiceGenerationService
	allocation *PaymentAllocationService
	recalc     *BalanceRecalculationService
	lateFees   *LateFeeService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := newMemStore()
	tenants := memTenantRepo{store}
	invoices := memInvoiceRepo{store}
	payments := memPaymentRepo{store}
	allocations := memAllocationRepo{store}

	f := &fixture{
		store:  store,
		clock:  shared.NewFixedClock(now),
		events: &recordingPublisher{},
		locker: newKeyedLocker(),
		scope:  NewNoOpTransactionScope(invoices, payments, allocations),
	}
	logger := zap.NewNop()

	f.utilities = NewUtilityBillingService(tenants, memConfigRepo{store}, memReadingRepo{store}, logger)
	f.generation = NewInvoiceGenerationService(tenants, invoices, allocations, f.utilities, f.scope, f.clock, logger)
	f.generation.SetEventPublisher(f.events)
	f.allocation = NewPaymentAllocationService(payments, f.scope, f.locker, f.clock, logger)
	f.allocation.SetEventPublisher(f.events)
	f.recalc = NewBalanceRecalculationService(tenants, invoices, allocations, f.scope, f.locker, f.clock, logger)
	f.recalc.SetEventPublisher(f.events)
	f.lateFees = NewLateFeeService(tenants, invoices, payments, allocations, f.clock, logger)
	return f
}

type tenantOpt func(*tenancy.Tenant)

func withProperty(id uuid.UUID) tenantOpt {
	return func(t *tenancy.Tenant) { t.PropertyID = &id }
}

func withLateFee(grace int, pct, fixed string) tenantOpt {
	return func(t *tenancy.Tenant) {
		t.GracePeriodDays = grace
		t.LateFeePercentage = d(pct)
		t.LateFeeFixedAmount = d(fixed)
	}
}

func (f *fixture) addTenant(name, rent string, dueDay int, opts ...tenantOpt) tenancy.Tenant {
	unit, property, landlord := uuid.New(), uuid.New(), uuid.New()
	t := tenancy.Tenant{
		ID:          uuid.New(),
		Name:        name,
		UnitID:      &unit,
		PropertyID:  &property,
		LandlordID:  &landlord,
		MonthlyRent: d(rent),
		RentDueDay:  dueDay,
		Status:      tenancy.TenantStatusActive,
	}
	for _, opt := range opts {
		opt(&t)
	}
	f.store.addTenant(t)
	return t
}

// issueInvoice stores a rent-only invoice for the tenant's month, due on the 5th
func (f *fixture) issueInvoice(t *testing.T, tenant tenancy.Tenant, year int, month time.Month, amount, opening string) *invoicing.Invoice {
	t.Helper()
	start, end := tenancy.BillingPeriod(year, month)
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:       tenant.ID,
		UnitID:         *tenant.UnitID,
		PropertyID:     *tenant.PropertyID,
		LandlordID:     *tenant.LandlordID,
		InvoiceNumber:  invoicing.FormatInvoiceNumber(invoicing.InvoiceNumberPrefix, start, tenant.ID),
		PeriodStart:    start,
		PeriodEnd:      end,
		DueDate:        day(year, month, 5),
		OpeningBalance: d(opening),
		LineItems:      []invoicing.LineItem{invoicing.NewRentLineItem(d(amount), "Rent")},
	}, f.clock.Now())
	require.NoError(t, err)
	f.store.addInvoice(inv)
	return inv
}

func (f *fixture) addPayment(t *testing.T, tenant tenancy.Tenant, amount string, completed bool) *invoicing.Payment {
	t.Helper()
	now := f.clock.Now()
	p, err := invoicing.NewPayment(tenant.ID, d(amount), invoicing.PaymentMethodMobileMoney, "REF-"+uuid.NewString()[:8], now, now)
	require.NoError(t, err)
	if completed {
		require.NoError(t, p.Complete(now))
	}
	f.store.addPayment(p)
	return p
}

// assertInvariants checks balance, conservation and no-over-allocation against stored state
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	facts := f.store.allAllocations()
	for _, inv := range f.store.allInvoices() {
		if inv.IsVoid() {
			continue
		}
		allocated := facts.TotalForInvoice(inv.ID)
		require.True(t, inv.Balance.Equal(inv.TotalObligation().Sub(allocated)),
			"balance invariant broken for %s: balance=%s allocated=%s", inv.InvoiceNumber, inv.Balance, allocated)
		require.True(t, allocated.LessThanOrEqual(inv.TotalObligation()), "over-allocated %s", inv.InvoiceNumber)
	}
	for _, p := range f.store.allPayments() {
		allocated := facts.TotalForPayment(p.ID)
		require.True(t, p.Amount.Equal(p.UnallocatedAmount.Add(allocated)),
			"conservation broken: amount=%s unallocated=%s allocated=%s", p.Amount, p.UnallocatedAmount, allocated)
	}
}
