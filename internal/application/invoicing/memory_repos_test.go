package invoicing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/utility"
)

// memStore is an in-memory stand-in for the database. Reads hand out copies so
// that services only change stored state through Save calls.
type memStore struct {
	mu          sync.Mutex
	tenants     map[uuid.UUID]tenancy.Tenant
	invoices    map[uuid.UUID]invoicing.Invoice
	payments    map[uuid.UUID]invoicing.Payment
	allocations map[uuid.UUID]invoicing.Allocation
	configs     map[uuid.UUID]utility.Config
	readings    []utility.MeterReading

	failConfigsFor map[uuid.UUID]error // property -> error from FindActiveForUnit
}

func newMemStore() *memStore {
	return &memStore{
		tenants:        make(map[uuid.UUID]tenancy.Tenant),
		invoices:       make(map[uuid.UUID]invoicing.Invoice),
		payments:       make(map[uuid.UUID]invoicing.Payment),
		allocations:    make(map[uuid.UUID]invoicing.Allocation),
		configs:        make(map[uuid.UUID]utility.Config),
		failConfigsFor: make(map[uuid.UUID]error),
	}
}

func copyInvoice(inv invoicing.Invoice) *invoicing.Invoice {
	c := inv
	c.ClearDomainEvents()
	c.LineItems = append(invoicing.LineItems{}, inv.LineItems...)
	return &c
}

func copyPayment(p invoicing.Payment) *invoicing.Payment {
	c := p
	c.ClearDomainEvents()
	return &c
}

func (s *memStore) addTenant(t tenancy.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

func (s *memStore) addInvoice(inv *invoicing.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = *copyInvoice(*inv)
}

func (s *memStore) addPayment(p *invoicing.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = *copyPayment(*p)
}

func (s *memStore) invoice(id uuid.UUID) *invoicing.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil
	}
	return copyInvoice(inv)
}

func (s *memStore) payment(id uuid.UUID) *invoicing.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil
	}
	return copyPayment(p)
}

func (s *memStore) allAllocations() invoicing.Allocations {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(invoicing.Allocations, 0, len(s.allocations))
	for _, a := range s.allocations {
		out = append(out, a)
	}
	return out
}

func (s *memStore) allInvoices() []*invoicing.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*invoicing.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, copyInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out
}

func (s *memStore) allPayments() []*invoicing.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*invoicing.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, copyPayment(p))
	}
	return out
}

// tenant repository

type memTenantRepo struct{ s *memStore }

func (r memTenantRepo) FindByID(_ context.Context, id uuid.UUID) (*tenancy.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTenantRepo) FindActive(_ context.Context) ([]tenancy.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]tenancy.Tenant, 0)
	for _, t := range r.s.tenants {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memTenantRepo) CountActiveInProperty(_ context.Context, propertyID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tenants {
		if t.IsActive() && t.PropertyID != nil && *t.PropertyID == propertyID {
			n++
		}
	}
	return n, nil
}

// invoice repository

type memInvoiceRepo struct{ s *memStore }

func (r memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

func (r memInvoiceRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*invoicing.Invoice, 0, len(ids))
	for _, id := range ids {
		if inv, ok := r.s.invoices[id]; ok {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (r memInvoiceRepo) matches(inv *invoicing.Invoice, f invoicing.InvoiceFilter) bool {
	if f.TenantID != nil && inv.TenantID != *f.TenantID {
		return false
	}
	if f.PropertyID != nil && inv.PropertyID != *f.PropertyID {
		return false
	}
	if f.PeriodStart != nil && !inv.PeriodStart.Equal(*f.PeriodStart) {
		return false
	}
	if f.PeriodEnd != nil && !inv.PeriodEnd.Equal(*f.PeriodEnd) {
		return false
	}
	if f.PeriodEndBefore != nil && !inv.PeriodEnd.Before(*f.PeriodEndBefore) {
		return false
	}
	if f.ExcludeVoid && inv.IsVoid() {
		return false
	}
	if f.OnlyOutstanding && !inv.IsOutstanding() {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if inv.Status == st {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r memInvoiceRepo) FindAll(_ context.Context, f invoicing.InvoiceFilter) ([]*invoicing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*invoicing.Invoice, 0)
	for _, inv := range r.s.invoices {
		inv := inv
		if r.matches(&inv, f) {
			out = append(out, copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if f.PageSize > 0 {
		start := f.Offset()
		if start >= len(out) {
			return []*invoicing.Invoice{}, nil
		}
		end := start + f.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (r memInvoiceRepo) Count(ctx context.Context, f invoicing.InvoiceFilter) (int64, error) {
	f.PageSize = 0
	all, err := r.FindAll(ctx, f)
	return int64(len(all)), err
}

func (r memInvoiceRepo) FindOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) ([]*invoicing.Invoice, error) {
	all, err := r.FindAll(ctx, invoicing.InvoiceFilter{TenantID: &tenantID, ExcludeVoid: true, OnlyOutstanding: true})
	if err != nil {
		return nil, err
	}
	return invoicing.OrderForFIFO(all), nil
}

func (r memInvoiceRepo) ExistsForPeriod(_ context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.TenantID == tenantID && inv.PeriodStart.Equal(start) && inv.PeriodEnd.Equal(end) {
			return true, nil
		}
	}
	return false, nil
}

func (r memInvoiceRepo) CreateIfAbsent(_ context.Context, inv *invoicing.Invoice) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invoices {
		if existing.TenantID == inv.TenantID && existing.PeriodStart.Equal(inv.PeriodStart) && existing.PeriodEnd.Equal(inv.PeriodEnd) {
			return false, nil
		}
	}
	r.s.invoices[inv.ID] = *copyInvoice(*inv)
	return true, nil
}

func (r memInvoiceRepo) SaveWithLock(_ context.Context, inv *invoicing.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.invoices[inv.ID]
	if !ok {
		return shared.NewDomainError(shared.CodeNotFound, "invoice not found")
	}
	if stored.Version != inv.Version {
		return shared.ErrConcurrencyConflict
	}
	inv.IncrementVersion()
	r.s.invoices[inv.ID] = *copyInvoice(*inv)
	return nil
}

// payment repository

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, nil
	}
	return copyPayment(p), nil
}

func (r memPaymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r memPaymentRepo) FindByTransactionReference(_ context.Context, ref string) (*invoicing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.TransactionReference == ref {
			return copyPayment(p), nil
		}
	}
	return nil, nil
}

func (r memPaymentRepo) FindAll(_ context.Context, f invoicing.PaymentFilter) ([]*invoicing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*invoicing.Payment, 0)
	for _, p := range r.s.payments {
		if f.TenantID != nil && p.TenantID != *f.TenantID {
			continue
		}
		out = append(out, copyPayment(p))
	}
	return out, nil
}

func (r memPaymentRepo) Save(_ context.Context, p *invoicing.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = *copyPayment(*p)
	return nil
}

func (r memPaymentRepo) SaveWithLock(_ context.Context, p *invoicing.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[p.ID]
	if !ok {
		return shared.NewDomainError(shared.CodeNotFound, "payment not found")
	}
	if stored.Version != p.Version {
		return shared.ErrConcurrencyConflict
	}
	p.IncrementVersion()
	r.s.payments[p.ID] = *copyPayment(*p)
	return nil
}

// allocation repository

type memAllocationRepo struct{ s *memStore }

func (r memAllocationRepo) filter(keep func(a invoicing.Allocation) bool) invoicing.Allocations {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(invoicing.Allocations, 0)
	for _, a := range r.s.allocations {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AllocatedAt.Before(out[j].AllocatedAt) })
	return out
}

func (r memAllocationRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) (invoicing.Allocations, error) {
	return r.filter(func(a invoicing.Allocation) bool { return a.PaymentID == paymentID }), nil
}

func (r memAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) (invoicing.Allocations, error) {
	return r.filter(func(a invoicing.Allocation) bool { return a.InvoiceID == invoiceID }), nil
}

func (r memAllocationRepo) FindByInvoices(_ context.Context, invoiceIDs []uuid.UUID) (invoicing.Allocations, error) {
	set := make(map[uuid.UUID]bool, len(invoiceIDs))
	for _, id := range invoiceIDs {
		set[id] = true
	}
	return r.filter(func(a invoicing.Allocation) bool { return set[a.InvoiceID] }), nil
}

func (r memAllocationRepo) SumByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	allocs, _ := r.FindByInvoices(ctx, invoiceIDs)
	return allocs.TotalsByInvoice(), nil
}

func (r memAllocationRepo) Create(_ context.Context, allocations ...invoicing.Allocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range allocations {
		if _, exists := r.s.allocations[a.ID]; exists {
			return errors.New("duplicate allocation id")
		}
		r.s.allocations[a.ID] = a
	}
	return nil
}

func (r memAllocationRepo) DeleteByPayment(_ context.Context, paymentID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, a := range r.s.allocations {
		if a.PaymentID == paymentID {
			delete(r.s.allocations, id)
			n++
		}
	}
	return n, nil
}

// utility repositories

type memConfigRepo struct{ s *memStore }

func (r memConfigRepo) FindActiveForUnit(_ context.Context, propertyID, unitID uuid.UUID, start, end time.Time) ([]utility.Config, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err, ok := r.s.failConfigsFor[propertyID]; ok {
		return nil, err
	}
	out := make([]utility.Config, 0)
	for _, c := range r.s.configs {
		if c.IsActive && c.AppliesTo(propertyID, unitID) && c.OverlapsPeriod(start, end) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memConfigRepo) FindByID(_ context.Context, id uuid.UUID) (*utility.Config, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.configs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memConfigRepo) Save(_ context.Context, c *utility.Config) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.configs[c.ID] = *c
	return nil
}

type memReadingRepo struct{ s *memStore }

func (r memReadingRepo) FindLatest(_ context.Context, unitID, configID uuid.UUID, atOrBefore time.Time, limit int) ([]utility.MeterReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]utility.MeterReading, 0)
	for _, m := range r.s.readings {
		if m.UnitID == unitID && m.UtilityConfigID == configID && !m.ReadingDate.After(atOrBefore) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadingDate.After(out[j].ReadingDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReadingRepo) Save(_ context.Context, m *utility.MeterReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.readings = append(r.s.readings, *m)
	return nil
}
