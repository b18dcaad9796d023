package persistence

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// setupBillingTestDB opens a private in-memory SQLite database with the billing tables
func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.BillingModels()...))
	return db
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type seededTenant struct {
	tenancy.Tenant
	unitID     uuid.UUID
	propertyID uuid.UUID
	landlordID uuid.UUID
}

// seedProperty inserts a property with a landlord
func seedProperty(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	landlordID := uuid.New()
	p := models.PropertyModel{ID: uuid.New(), Name: "Riverside Court", LandlordID: &landlordID, CreatedAt: day(2024, 1, 1), UpdatedAt: day(2024, 1, 1)}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}

// seedTenant inserts a tenant occupying a fresh unit of the property
func seedTenant(t *testing.T, db *gorm.DB, propertyID uuid.UUID, status tenancy.TenantStatus) seededTenant {
	t.Helper()
	var property models.PropertyModel
	require.NoError(t, db.First(&property, "id = ?", propertyID).Error)

	unit := models.UnitModel{ID: uuid.New(), PropertyID: &propertyID, Label: "A1", CreatedAt: day(2024, 1, 1), UpdatedAt: day(2024, 1, 1)}
	require.NoError(t, db.Create(&unit).Error)

	tenant := tenancy.Tenant{
		ID:              uuid.New(),
		Name:            "Wanjiku Kamau",
		UnitID:          &unit.ID,
		MonthlyRent:     dec("15000"),
		RentDueDay:      5,
		GracePeriodDays: 3,
		Status:          status,
		CreatedAt:       day(2024, 1, 1),
		UpdatedAt:       day(2024, 1, 1),
	}
	require.NoError(t, NewGormTenantRepository(db).Save(t.Context(), &tenant))
	return seededTenant{Tenant: tenant, unitID: unit.ID, propertyID: propertyID, landlordID: *property.LandlordID}
}

func newInvoice(t *testing.T, tenant seededTenant, month time.Month, amount string, now time.Time) *invoicing.Invoice {
	t.Helper()
	start := day(2024, month, 1)
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:      tenant.ID,
		UnitID:        tenant.unitID,
		PropertyID:    tenant.propertyID,
		LandlordID:    tenant.landlordID,
		InvoiceNumber: invoicing.FormatInvoiceNumber(invoicing.InvoiceNumberPrefix, start, tenant.ID),
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, -1),
		DueDate:       day(2024, month, 5),
		LineItems:     []invoicing.LineItem{invoicing.NewRentLineItem(dec(amount), "")},
	}, now)
	require.NoError(t, err)
	return inv
}

func newCompletedPayment(t *testing.T, tenantID uuid.UUID, amount, reference string, now time.Time) *invoicing.Payment {
	t.Helper()
	p, err := invoicing.NewPayment(tenantID, dec(amount), invoicing.PaymentMethodMobileMoney, reference, now, now)
	require.NoError(t, err)
	require.NoError(t, p.Complete(now))
	return p
}
