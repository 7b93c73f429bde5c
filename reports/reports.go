/*
Package reports computes circulation summary statistics.

PURPOSE:
  Read-only aggregation over the catalog, loan and sanction record sets,
  served to the export endpoint. Export is gated by the reports_export
  capability; the underlying stores are never written.

PRECISION:
  Averages and rates use decimal arithmetic and are rounded to two
  places, so repeated exports of the same data render identically.
*/
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
)

// Summary is the exportable aggregate.
type Summary struct {
	BooksAvailable  int
	BooksRetired    int
	LoansOpen       int
	LoansReturned   int
	LateReturns     int
	AvgLateDays     decimal.Decimal // over late returned loans
	ActiveSanctions int
	ShelfOccupancy  []ShelfOccupancy
}

// ShelfOccupancy is the fill rate of one (shelf, level) pair: occupied
// slots over the highest used slot number.
type ShelfOccupancy struct {
	Shelf    string
	Level    int
	Occupied int
	Capacity int             // highest occupied slot, the shelf's used extent
	Rate     decimal.Decimal // Occupied / Capacity
}

// Reporter aggregates over the read sides of the stores.
type Reporter struct {
	books catalog.Store
	circ  circulation.Store

	// Now anchors the active-sanction count. Tests override it.
	Now func() time.Time
}

// NewReporter creates a Reporter.
func NewReporter(books catalog.Store, circ circulation.Store) *Reporter {
	return &Reporter{books: books, circ: circ, Now: time.Now}
}

// Summary builds the aggregate. Requires the reports_export capability.
func (r *Reporter) Summary(ctx context.Context, auth authz.Authorizer) (*Summary, error) {
	if err := authz.Require(auth, authz.ActionReportsExport); err != nil {
		return nil, err
	}

	books, err := r.books.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{AvgLateDays: decimal.Zero}

	type levelKey struct {
		shelf string
		level int
	}
	levels := make(map[levelKey]*ShelfOccupancy)

	for _, b := range books {
		switch b.Status {
		case catalog.StatusRetired:
			sum.BooksRetired++
			continue
		default:
			sum.BooksAvailable++
		}

		k := levelKey{shelf: b.Shelf, level: b.Level}
		occ := levels[k]
		if occ == nil {
			occ = &ShelfOccupancy{Shelf: b.Shelf, Level: b.Level}
			levels[k] = occ
		}
		occ.Occupied++
		if b.Slot > occ.Capacity {
			occ.Capacity = b.Slot
		}
	}

	for _, occ := range levels {
		occ.Rate = decimal.NewFromInt(int64(occ.Occupied)).
			Div(decimal.NewFromInt(int64(occ.Capacity))).
			Round(2)
		sum.ShelfOccupancy = append(sum.ShelfOccupancy, *occ)
	}
	sort.Slice(sum.ShelfOccupancy, func(i, j int) bool {
		a, b := sum.ShelfOccupancy[i], sum.ShelfOccupancy[j]
		if a.Shelf != b.Shelf {
			return a.Shelf < b.Shelf
		}
		return a.Level < b.Level
	})

	loans, err := r.circ.ListLoans(ctx, circulation.LoanFilter{})
	if err != nil {
		return nil, err
	}

	totalLate := decimal.Zero
	for _, l := range loans {
		switch l.Status {
		case circulation.LoanOpen:
			sum.LoansOpen++
		case circulation.LoanReturned:
			sum.LoansReturned++
			if l.ReturnedAt != nil {
				late := circulation.DaysBetween(l.ExpectedReturn, *l.ReturnedAt)
				if late > 0 {
					sum.LateReturns++
					totalLate = totalLate.Add(decimal.NewFromInt(int64(late)))
				}
			}
		}
	}
	if sum.LateReturns > 0 {
		sum.AvgLateDays = totalLate.Div(decimal.NewFromInt(int64(sum.LateReturns))).Round(2)
	}

	// Flagged is not enough: the window must also contain today.
	flagged, err := r.circ.ListSanctions(ctx, circulation.SanctionFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	today := circulation.DateOf(r.Now())
	for _, s := range flagged {
		if s.Covers(today) {
			sum.ActiveSanctions++
		}
	}

	return sum, nil
}
