package invoicing

import (
	"sort"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// OrderForFIFO returns a copy of invoices with the oldest obligation first:
// due date ascending, ties broken by period start ascending. Creation time and
// ID only make the order deterministic for invoices identical on both keys.
func OrderForFIFO(invoices []*Invoice) []*Invoice {
	sorted := make([]*Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if da, db := shared.CivilDate(a.DueDate), shared.CivilDate(b.DueDate); !da.Equal(db) {
			return da.Before(db)
		}
		if !a.PeriodStart.Equal(b.PeriodStart) {
			return a.PeriodStart.Before(b.PeriodStart)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return sorted
}
