package invoicing

import (
	"context"

	"github.com/google/uuid"
)

// TenantLocker serializes work on one key across callers. Allocation,
// reversal and confirmation hold the tenant's key for the whole unit of work
// so two FIFO walks never read the same stale outstanding balance.
type TenantLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AllocationLockKey is the lock key guarding a tenant's invoice set
func AllocationLockKey(tenantID uuid.UUID) string {
	return "rentpay:allocation:tenant:" + tenantID.String()
}

// noopLocker is used when no locker is configured; the row lock taken on the
// payment inside the transaction still applies.
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
