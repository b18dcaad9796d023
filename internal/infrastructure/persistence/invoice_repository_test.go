package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
)

func TestGormInvoiceRepository_CreateIfAbsent(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := t.Context()
	tenant := seedTenant(t, db, seedProperty(t, db), tenancy.TenantStatusActive)
	now := day(2024, 3, 1)

	first := newInvoice(t, tenant, time.March, "15000", now)
	inserted, err := repo.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	duplicate := newInvoice(t, tenant, time.March, "15000", now)
	inserted, err = repo.CreateIfAbsent(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.Count(ctx, invoicing.InvoiceFilter{TenantID: &tenant.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	exists, err := repo.ExistsForPeriod(ctx, tenant.ID, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForPeriod(ctx, tenant.ID, day(2024, 4, 1), day(2024, 4, 30))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormInvoiceRepository_RoundTrip(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := t.Context()
	tenant := seedTenant(t, db, seedProperty(t, db), tenancy.TenantStatusActive)

	inv := newInvoice(t, tenant, time.February, "15000", day(2024, 2, 1))
	_, err := repo.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, inv.InvoiceNumber, found.InvoiceNumber)
	assert.Equal(t, tenant.ID, found.TenantID)
	assert.True(t, found.PeriodStart.Equal(day(2024, 2, 1)))
	assert.True(t, found.PeriodEnd.Equal(day(2024, 2, 29)))
	assert.True(t, found.DueDate.Equal(day(2024, 2, 5)))
	assert.Equal(t, invoicing.InvoiceStatusIssued, found.Status)
	assertDecimal(t, "15000", found.Balance)
	require.Len(t, found.LineItems, 1)
	assert.Equal(t, invoicing.LineItemTypeRent, found.LineItems[0].Type)
	assertDecimal(t, "15000", found.LineItems[0].Amount)
	assert.Equal(t, 1, found.Version)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	byIDs, err := repo.FindByIDs(ctx, []uuid.UUID{inv.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := t.Context()
	tenant := seedTenant(t, db, seedProperty(t, db), tenancy.TenantStatusActive)

	inv := newInvoice(t, tenant, time.January, "15000", day(2024, 1, 1))
	_, err := repo.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)

	stale, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	invoicing.Apply(inv, dec("5000"), day(2024, 1, 3))
	require.NoError(t, repo.SaveWithLock(ctx, inv))
	assert.Equal(t, 2, inv.Version)

	reloaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusPartiallyPaid, reloaded.Status)
	assertDecimal(t, "10000", reloaded.Balance)
	assert.Equal(t, 2, reloaded.Version)

	t.Run("stale version conflicts", func(t *testing.T) {
		invoicing.Apply(stale, dec("15000"), day(2024, 1, 3))
		err := repo.SaveWithLock(ctx, stale)
		assert.True(t, shared.HasCode(err, shared.CodeConcurrentModification))
	})

	t.Run("unknown invoice is not found", func(t *testing.T) {
		ghost := newInvoice(t, tenant, time.June, "100", day(2024, 6, 1))
		err := repo.SaveWithLock(ctx, ghost)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestGormInvoiceRepository_Queries(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := t.Context()
	propertyID := seedProperty(t, db)
	tenant := seedTenant(t, db, propertyID, tenancy.TenantStatusActive)
	other := seedTenant(t, db, propertyID, tenancy.TenantStatusActive)
	now := day(2024, 4, 1)

	mar := newInvoice(t, tenant, time.March, "15000", now)
	jan := newInvoice(t, tenant, time.January, "15000", now)
	feb := newInvoice(t, tenant, time.February, "15000", now)
	invoicing.Apply(feb, dec("15000"), now)
	otherJan := newInvoice(t, other, time.January, "9000", now)
	for _, inv := range []*invoicing.Invoice{mar, jan, feb, otherJan} {
		_, err := repo.CreateIfAbsent(ctx, inv)
		require.NoError(t, err)
	}

	t.Run("outstanding ordered by due date", func(t *testing.T) {
		outstanding, err := repo.FindOutstandingForTenant(ctx, tenant.ID)
		require.NoError(t, err)
		require.Len(t, outstanding, 2)
		assert.Equal(t, jan.ID, outstanding[0].ID)
		assert.Equal(t, mar.ID, outstanding[1].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		paid, err := repo.FindAll(ctx, invoicing.InvoiceFilter{TenantID: &tenant.ID, Statuses: []invoicing.InvoiceStatus{invoicing.InvoiceStatusPaid}})
		require.NoError(t, err)
		require.Len(t, paid, 1)
		assert.Equal(t, feb.ID, paid[0].ID)
	})

	t.Run("earlier periods of a tenant", func(t *testing.T) {
		before := day(2024, 3, 1)
		earlier, err := repo.FindAll(ctx, invoicing.InvoiceFilter{TenantID: &tenant.ID, PeriodEndBefore: &before})
		require.NoError(t, err)
		assert.Len(t, earlier, 2)
	})

	t.Run("paging and ordering", func(t *testing.T) {
		page, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			PropertyID: &propertyID,
			Filter:     shared.Filter{Page: 1, PageSize: 2, OrderBy: "period_start", OrderDir: "asc"},
		})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.True(t, page[0].PeriodStart.Equal(day(2024, 1, 1)))
		assert.True(t, page[1].PeriodStart.Equal(day(2024, 1, 1)))

		total, err := repo.Count(ctx, invoicing.InvoiceFilter{PropertyID: &propertyID})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
	})

	t.Run("void invoices are excluded", func(t *testing.T) {
		require.NoError(t, mar.Void("issued in error", dec("0"), now))
		require.NoError(t, repo.SaveWithLock(ctx, mar))

		outstanding, err := repo.FindOutstandingForTenant(ctx, tenant.ID)
		require.NoError(t, err)
		require.Len(t, outstanding, 1)
		assert.Equal(t, jan.ID, outstanding[0].ID)

		nonVoid, err := repo.Count(ctx, invoicing.InvoiceFilter{TenantID: &tenant.ID, ExcludeVoid: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), nonVoid)
	})
}
