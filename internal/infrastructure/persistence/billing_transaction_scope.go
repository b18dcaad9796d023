package persistence

import (
	"context"

	"gorm.io/gorm"

	appinvoicing "github.com/wawire/RentCollectionApp-sub000/internal/application/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Repositories handed to the callback share the transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction, rolling back when it returns an error
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() invoicing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) AllocationRepo() invoicing.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

var _ appinvoicing.TransactionScope = (*GormTransactionScope)(nil)
var _ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
