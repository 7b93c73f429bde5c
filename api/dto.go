// dto.go - Request/response shapes for the HTTP API.
package api

import (
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
	"github.com/ivbsa-designe/biblioteca-ceprereso/reports"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// BOOKS
// =============================================================================

type RegisterBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Shelf  string `json:"shelf"`
	Level  int    `json:"level"`
	Slot   *int   `json:"slot,omitempty"`
}

type BookDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Shelf      string `json:"shelf"`
	Level      int    `json:"level"`
	Slot       int    `json:"slot"`
	Status     string `json:"status"`
	IngestedAt string `json:"ingested_at"`
}

func toBookDTO(b catalog.Book) BookDTO {
	return BookDTO{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		Genre:      b.Genre,
		Shelf:      b.Shelf,
		Level:      b.Level,
		Slot:       b.Slot,
		Status:     string(b.Status),
		IngestedAt: b.IngestedAt.Format(time.RFC3339),
	}
}

type VacantSlotDTO struct {
	Shelf string `json:"shelf"`
	Level int    `json:"level"`
	Slot  int    `json:"slot"`
	ID    string `json:"id"`
}

// =============================================================================
// BORROWERS
// =============================================================================

type RegisterBorrowerRequest struct {
	Name      string `json:"name"`
	Dormitory string `json:"dormitory"`
	Section   string `json:"section"`
	Cell      string `json:"cell"`
}

type BorrowerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dormitory string `json:"dormitory"`
	Section   string `json:"section"`
	Cell      string `json:"cell"`
	Active    bool   `json:"active"`
}

func toBorrowerDTO(b borrowers.Borrower) BorrowerDTO {
	return BorrowerDTO{
		ID:        b.ID,
		Name:      b.Name,
		Dormitory: b.Dormitory,
		Section:   b.Section,
		Cell:      b.Cell,
		Active:    b.Active,
	}
}

// =============================================================================
// LOANS
// =============================================================================

type OpenLoanRequest struct {
	BorrowerID string `json:"borrower_id"`
	BookID     string `json:"book_id"`
}

type CloseLoanRequest struct {
	Folio string `json:"folio"`
}

type LoanDTO struct {
	ID             string `json:"id"`
	BorrowerID     string `json:"borrower_id"`
	BookID         string `json:"book_id"`
	Folio          string `json:"folio"`
	LoanedAt       string `json:"loaned_at"`
	ExpectedReturn string `json:"expected_return"`
	ReturnedAt     string `json:"returned_at,omitempty"`
	Status         string `json:"status"`
}

func toLoanDTO(l circulation.Loan) LoanDTO {
	dto := LoanDTO{
		ID:             l.ID,
		BorrowerID:     l.BorrowerID,
		BookID:         l.BookID,
		Folio:          l.Folio,
		LoanedAt:       l.LoanedAt.Format(dateLayout),
		ExpectedReturn: l.ExpectedReturn.Format(dateLayout),
		Status:         string(l.Status),
	}
	if l.ReturnedAt != nil {
		dto.ReturnedAt = l.ReturnedAt.Format(dateLayout)
	}
	return dto
}

type ReturnResultDTO struct {
	Loan     LoanDTO      `json:"loan"`
	LateDays int          `json:"late_days"`
	Sanction *SanctionDTO `json:"sanction,omitempty"`
}

// =============================================================================
// SANCTIONS
// =============================================================================

type CreateSanctionRequest struct {
	BorrowerID string `json:"borrower_id"`
	Start      string `json:"start"` // YYYY-MM-DD
	End        string `json:"end"`
	Reason     string `json:"reason"`
}

type RevokeSanctionRequest struct {
	Notes string `json:"notes"`
}

type SanctionDTO struct {
	ID           string `json:"id"`
	BorrowerID   string `json:"borrower_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Reason       string `json:"reason"`
	Kind         string `json:"kind"`
	Active       bool   `json:"active"`
	AuthorizedBy string `json:"authorized_by,omitempty"`
	RevokedAt    string `json:"revoked_at,omitempty"`
	RevokedBy    string `json:"revoked_by,omitempty"`
}

func toSanctionDTO(s circulation.Sanction) SanctionDTO {
	dto := SanctionDTO{
		ID:           s.ID,
		BorrowerID:   s.BorrowerID,
		Start:        s.Start.Format(dateLayout),
		End:          s.End.Format(dateLayout),
		Reason:       s.Reason,
		Kind:         string(s.Kind),
		Active:       s.Active,
		AuthorizedBy: s.AuthorizedBy,
		RevokedBy:    s.RevokedBy,
	}
	if s.RevokedAt != nil {
		dto.RevokedAt = s.RevokedAt.Format(dateLayout)
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

type SummaryDTO struct {
	BooksAvailable  int                 `json:"books_available"`
	BooksRetired    int                 `json:"books_retired"`
	LoansOpen       int                 `json:"loans_open"`
	LoansReturned   int                 `json:"loans_returned"`
	LateReturns     int                 `json:"late_returns"`
	AvgLateDays     string              `json:"avg_late_days"`
	ActiveSanctions int                 `json:"active_sanctions"`
	ShelfOccupancy  []ShelfOccupancyDTO `json:"shelf_occupancy"`
}

type ShelfOccupancyDTO struct {
	Shelf    string `json:"shelf"`
	Level    int    `json:"level"`
	Occupied int    `json:"occupied"`
	Capacity int    `json:"capacity"`
	Rate     string `json:"rate"`
}

func toSummaryDTO(s reports.Summary) SummaryDTO {
	dto := SummaryDTO{
		BooksAvailable:  s.BooksAvailable,
		BooksRetired:    s.BooksRetired,
		LoansOpen:       s.LoansOpen,
		LoansReturned:   s.LoansReturned,
		LateReturns:     s.LateReturns,
		AvgLateDays:     s.AvgLateDays.StringFixed(2),
		ActiveSanctions: s.ActiveSanctions,
	}
	for _, occ := range s.ShelfOccupancy {
		dto.ShelfOccupancy = append(dto.ShelfOccupancy, ShelfOccupancyDTO{
			Shelf:    occ.Shelf,
			Level:    occ.Level,
			Occupied: occ.Occupied,
			Capacity: occ.Capacity,
			Rate:     occ.Rate.StringFixed(2),
		})
	}
	return dto
}
