package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// InvoiceFilter narrows invoice queries
type InvoiceFilter struct {
	shared.Filter
	TenantID        *uuid.UUID
	PropertyID      *uuid.UUID
	PeriodStart     *time.Time // exact period start
	PeriodEnd       *time.Time // exact period end
	PeriodEndBefore *time.Time // strictly earlier periods
	Statuses        []InvoiceStatus
	ExcludeVoid     bool
	OnlyOutstanding bool // stored balance > 0
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	// FindByID returns the invoice or nil when it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDs returns the invoices found among ids, in no particular order
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Invoice, error)

	// FindAll returns invoices matching the filter; zero PageSize means no paging
	FindAll(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error)

	// Count counts invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// FindOutstandingForTenant returns non-void invoices with balance > 0 ordered
	// by due date then period start
	FindOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) ([]*Invoice, error)

	// ExistsForPeriod reports whether an invoice bills exactly (tenant, start, end)
	ExistsForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (bool, error)

	// CreateIfAbsent inserts the invoice unless one already exists for its
	// (tenant, period start, period end). Reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, invoice *Invoice) (bool, error)

	// SaveWithLock updates an existing invoice with an optimistic version check
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentFilter narrows payment queries
type PaymentFilter struct {
	shared.Filter
	TenantID *uuid.UUID
	Statuses []PaymentStatus
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate loads the payment and holds a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	FindByTransactionReference(ctx context.Context, reference string) (*Payment, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]*Payment, error)

	// Save inserts or fully overwrites the payment
	Save(ctx context.Context, payment *Payment) error

	// SaveWithLock updates an existing payment with an optimistic version check
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// AllocationRepository persists allocation facts. Facts are only ever created
// or deleted, never updated.
type AllocationRepository interface {
	FindByPayment(ctx context.Context, paymentID uuid.UUID) (Allocations, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (Allocations, error)
	FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (Allocations, error)

	// SumByInvoices returns allocated totals keyed by invoice; invoices without allocations are absent
	SumByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)

	Create(ctx context.Context, allocations ...Allocation) error

	// DeleteByPayment hard-deletes every allocation of the payment and returns the deleted count
	DeleteByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
}
