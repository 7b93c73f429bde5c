/*
handlers.go - HTTP API handlers for the library circulation system

PURPOSE:
  Exposes the catalog, borrower, and circulation engines via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Books:
    GET    /api/books                    List all books
    POST   /api/books                    Register a book (auto or explicit slot)
    GET    /api/books/vacant             List vacant shelf slots
    GET    /api/books/{id}               Get book details
    POST   /api/books/{id}/retire        Retire a book (frees its slot)
    POST   /api/books/{id}/reactivate    Reactivate a retired book

  Borrowers:
    GET    /api/borrowers                List borrowers
    POST   /api/borrowers                Register a borrower
    GET    /api/borrowers/{id}           Get borrower details
    POST   /api/borrowers/{id}/deactivate
    POST   /api/borrowers/{id}/reactivate

  Loans:
    GET    /api/loans                    List loans (filter by borrower/status)
    POST   /api/loans                    Open a loan
    POST   /api/loans/returns            Close a loan by folio

  Sanctions:
    GET    /api/sanctions                List sanctions
    POST   /api/sanctions                Create a manual sanction
    POST   /api/sanctions/{id}/revoke    Revoke a sanction

  Reports:
    GET    /api/reports/summary          Circulation summary

AUTHORIZATION:
  The acting principal is taken from the X-Actor-Role and X-Actor-Id
  headers. Role names map to capability sets in the authz package; the
  engines reject gated operations before any store access.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Missing capability
  - 404: Unknown book, borrower, loan, or sanction
  - 409: Conflict (occupied slot, active sanction, book on loan)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
	"github.com/ivbsa-designe/biblioteca-ceprereso/reports"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Books       *catalog.Manager
	Borrowers   *borrowers.Registry
	Circulation *circulation.Engine
	Sanctions   *circulation.Sanctions
	Reports     *reports.Reporter
}

// NewHandler creates a new handler wired to the given engines.
func NewHandler(books *catalog.Manager, dir *borrowers.Registry, circ *circulation.Engine, sanctions *circulation.Sanctions, rep *reports.Reporter) *Handler {
	return &Handler{
		Books:       books,
		Borrowers:   dir,
		Circulation: circ,
		Sanctions:   sanctions,
		Reports:     rep,
	}
}

// actor builds the capability token from request headers. An absent or
// unknown role yields a token with no capabilities.
func actor(r *http.Request) authz.Role {
	return authz.ParseRole(r.Header.Get("X-Actor-Role"))
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, catalog.ErrInvalidLocation),
		errors.Is(err, borrowers.ErrInvalidBorrower),
		errors.Is(err, circulation.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, catalog.ErrBookNotFound),
		errors.Is(err, borrowers.ErrBorrowerNotFound),
		errors.Is(err, circulation.ErrLoanNotFound),
		errors.Is(err, circulation.ErrSanctionNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case catalog.IsConflict(err),
		errors.Is(err, borrowers.ErrBorrowerExists),
		errors.Is(err, circulation.ErrBookUnavailable),
		errors.Is(err, circulation.ErrSanctionActive):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Books.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}

	dtos := make([]BookDTO, 0, len(books))
	for _, b := range books {
		dtos = append(dtos, toBookDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RegisterBook(w http.ResponseWriter, r *http.Request) {
	var req RegisterBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	book, err := h.Books.Register(r.Context(), actor(r), catalog.RegisterInput{
		Title:  req.Title,
		Author: req.Author,
		Genre:  req.Genre,
		Shelf:  req.Shelf,
		Level:  req.Level,
		Slot:   req.Slot,
	})
	if err != nil {
		writeDomainError(w, "Failed to register book", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookDTO(*book))
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.Books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

func (h *Handler) RetireBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Books.Retire(r.Context(), actor(r), id); err != nil {
		writeDomainError(w, "Failed to retire book", err)
		return
	}

	book, err := h.Books.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

func (h *Handler) ReactivateBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Books.Reactivate(r.Context(), actor(r), id); err != nil {
		writeDomainError(w, "Failed to reactivate book", err)
		return
	}

	book, err := h.Books.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

func (h *Handler) ListVacantSlots(w http.ResponseWriter, r *http.Request) {
	var filter catalog.VacantFilter
	if shelf := r.URL.Query().Get("shelf"); shelf != "" {
		filter.Shelf = &shelf
	}
	if levelStr := r.URL.Query().Get("level"); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid level parameter", err)
			return
		}
		filter.Level = &level
	}

	slots, err := h.Books.ListVacant(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list vacant slots", err)
		return
	}

	dtos := make([]VacantSlotDTO, 0, len(slots))
	for _, s := range slots {
		dtos = append(dtos, VacantSlotDTO{Shelf: s.Shelf, Level: s.Level, Slot: s.Slot, ID: s.ID})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BORROWER HANDLERS
// =============================================================================

func (h *Handler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Borrowers.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list borrowers", err)
		return
	}

	dtos := make([]BorrowerDTO, 0, len(list))
	for _, b := range list {
		dtos = append(dtos, toBorrowerDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RegisterBorrower(w http.ResponseWriter, r *http.Request) {
	var req RegisterBorrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Borrowers.Register(r.Context(), actor(r), borrowers.RegisterInput{
		Name:      req.Name,
		Dormitory: req.Dormitory,
		Section:   req.Section,
		Cell:      req.Cell,
	})
	if err != nil {
		writeDomainError(w, "Failed to register borrower", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBorrowerDTO(*b))
}

func (h *Handler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	b, err := h.Borrowers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get borrower", err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowerDTO(*b))
}

func (h *Handler) DeactivateBorrower(w http.ResponseWriter, r *http.Request) {
	h.setBorrowerActive(w, r, false)
}

func (h *Handler) ReactivateBorrower(w http.ResponseWriter, r *http.Request) {
	h.setBorrowerActive(w, r, true)
}

func (h *Handler) setBorrowerActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if err := h.Borrowers.SetActive(r.Context(), actor(r), id, active); err != nil {
		writeDomainError(w, "Failed to update borrower", err)
		return
	}

	b, err := h.Borrowers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get borrower", err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowerDTO(*b))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	var filter circulation.LoanFilter
	if borrower := r.URL.Query().Get("borrower_id"); borrower != "" {
		filter.BorrowerID = &borrower
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := circulation.LoanStatus(statusStr)
		if status != circulation.LoanOpen && status != circulation.LoanReturned {
			writeError(w, http.StatusBadRequest, "Invalid status parameter", nil)
			return
		}
		filter.Status = &status
	}

	loans, err := h.Circulation.Loans(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanDTO, 0, len(loans))
	for _, l := range loans {
		dtos = append(dtos, toLoanDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) OpenLoan(w http.ResponseWriter, r *http.Request) {
	var req OpenLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loan, err := h.Circulation.OpenLoan(r.Context(), req.BorrowerID, req.BookID)
	if err != nil {
		writeDomainError(w, "Failed to open loan", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanDTO(*loan))
}

func (h *Handler) CloseLoan(w http.ResponseWriter, r *http.Request) {
	var req CloseLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Folio == "" {
		writeError(w, http.StatusBadRequest, "Missing folio", nil)
		return
	}

	result, err := h.Circulation.CloseLoan(r.Context(), req.Folio)
	if err != nil {
		writeDomainError(w, "Failed to close loan", err)
		return
	}

	dto := ReturnResultDTO{
		Loan:     toLoanDTO(result.Loan),
		LateDays: result.LateDays,
	}
	if result.Sanction != nil {
		s := toSanctionDTO(*result.Sanction)
		dto.Sanction = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SANCTION HANDLERS
// =============================================================================

func (h *Handler) ListSanctions(w http.ResponseWriter, r *http.Request) {
	var filter circulation.SanctionFilter
	if borrower := r.URL.Query().Get("borrower_id"); borrower != "" {
		filter.BorrowerID = &borrower
	}
	filter.ActiveOnly = r.URL.Query().Get("active") == "true"

	sanctions, err := h.Sanctions.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sanctions", err)
		return
	}

	dtos := make([]SanctionDTO, 0, len(sanctions))
	for _, s := range sanctions {
		dtos = append(dtos, toSanctionDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSanction(w http.ResponseWriter, r *http.Request) {
	var req CreateSanctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end format (use YYYY-MM-DD)", err)
		return
	}

	s, err := h.Sanctions.Create(r.Context(), actor(r), circulation.CreateInput{
		BorrowerID:   req.BorrowerID,
		Start:        start,
		End:          end,
		Reason:       req.Reason,
		AuthorizedBy: actorID(r),
	})
	if err != nil {
		writeDomainError(w, "Failed to create sanction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSanctionDTO(*s))
}

func (h *Handler) RevokeSanction(w http.ResponseWriter, r *http.Request) {
	var req RevokeSanctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Sanctions.Revoke(r.Context(), actor(r), id, actorID(r), req.Notes); err != nil {
		writeDomainError(w, "Failed to revoke sanction", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked", "id": id})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reports.Summary(r.Context(), actor(r))
	if err != nil {
		writeDomainError(w, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*summary))
}
