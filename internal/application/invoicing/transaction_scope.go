package invoicing

import (
	"context"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

// TransactionScope provides transactional access to the billing repositories.
// All repository operations performed inside Execute are committed or rolled
// back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
//
// Aggregate boundaries:
//   - InvoiceRepo: Invoice aggregate. Balance and Status are written only after Apply.
//   - PaymentRepo: Payment aggregate. UnallocatedAmount is a cache over allocations.
//   - AllocationRepo: allocation facts; created or hard-deleted, never updated.
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	PaymentRepo() invoicing.PaymentRepository
	AllocationRepo() invoicing.AllocationRepository
}

// NoOpTransactionScope runs the function against plain repositories without a
// transaction. Useful for tests and in-memory wiring.
type NoOpTransactionScope struct {
	invoiceRepo    invoicing.InvoiceRepository
	paymentRepo    invoicing.PaymentRepository
	allocationRepo invoicing.AllocationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	allocationRepo invoicing.AllocationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) InvoiceRepo() invoicing.InvoiceRepository {
	return s.invoiceRepo
}

func (s *NoOpTransactionScope) PaymentRepo() invoicing.PaymentRepository {
	return s.paymentRepo
}

func (s *NoOpTransactionScope) AllocationRepo() invoicing.AllocationRepository {
	return s.allocationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
