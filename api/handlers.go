/*
handlers.go - HTTP API handlers for the fines engine

PURPOSE:
  Exposes the fine accrual and settlement engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic. This
  is the presentation layer: it owns the one-live-session-per-record
  precondition and translates the engine's error taxonomy to HTTP statuses.

ENDPOINTS:
  Fines:
    GET    /api/fines                       Overdue view (runs a
                                            reconciliation pass); ?q= filters
                                            by name, id number, or accession
    POST   /api/fines/{borrowID}/pay        Initiate settlement for a row

  Settlements:
    GET    /api/settlements/{id}            Session state
    POST   /api/settlements/{id}/confirm    Receipt produced signal
    POST   /api/settlements/{id}/abandon    Workflow abandoned signal

ERROR HANDLING:
  - 400: invalid input
  - 404: unknown borrow or session
  - 409: live session already exists / session already resolved
  - 500: store failures (reported, never swallowed)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stacks/fines-engine/fines"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      fines.Store
	Printer    fines.Printer
	Reconciler *fines.Reconciler
	Sessions   *SessionRegistry

	// Now is the clock used for accrual and settlement timestamps.
	// Overridable in tests.
	Now func() time.Time
}

// NewHandler creates a new handler over the given collaborators.
func NewHandler(store fines.Store, printer fines.Printer) *Handler {
	return &Handler{
		Store:      store,
		Printer:    printer,
		Reconciler: fines.NewReconciler(store),
		Sessions:   NewSessionRegistry(),
		Now:        time.Now,
	}
}

// =============================================================================
// FINE VIEW HANDLERS
// =============================================================================

// ListFines runs a reconciliation pass and returns the overdue view.
// Per-row problems come back as warnings; they never fail the request.
func (h *Handler) ListFines(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Reconcile(r.Context(), h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load overdue fines", err)
		return
	}

	views := report.Views
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		views = filterViews(views, q)
	}

	resp := FineListResponse{Fines: make([]FineViewDTO, len(views))}
	for i, v := range views {
		resp.Fines[i] = toFineViewDTO(v)
	}
	for _, p := range report.Problems {
		resp.Warnings = append(resp.Warnings, p.Error())
	}

	writeJSON(w, http.StatusOK, resp)
}

// filterViews matches the search term against borrower name, id number, or
// accession number, case-insensitive.
func filterViews(views []fines.FineView, term string) []fines.FineView {
	term = strings.ToLower(term)
	var out []fines.FineView
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.BorrowerName), term) ||
			strings.Contains(strings.ToLower(v.IDNumber), term) ||
			strings.Contains(strings.ToLower(v.AccessionNumber), term) {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// InitiateSettlement creates a settlement session for one row. The request
// body carries the snapshot the operator saw: the session settles with that
// amount even if a later pass recomputes the fine.
func (h *Handler) InitiateSettlement(w http.ResponseWriter, r *http.Request) {
	borrowID := chi.URLParam(r, "borrowID")

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fine, err := decimal.NewFromString(req.Fine)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fine amount", err)
		return
	}

	// Claim the record before any side effect so a concurrent initiation
	// cannot slip in between the check and the registration.
	if !h.Sessions.Reserve(borrowID) {
		writeError(w, http.StatusConflict, "A settlement is already in flight for this record", nil)
		return
	}

	snap := fines.Snapshot{
		BorrowID:        borrowID,
		BorrowerName:    req.BorrowerName,
		IDNumber:        req.IDNumber,
		AccessionNumber: req.AccessionNumber,
		BookTitle:       req.BookTitle,
		Fine:            fine,
	}

	session, err := fines.Begin(r.Context(), h.Store, h.Printer, snap)
	if err != nil {
		h.Sessions.Release(borrowID)
		writeError(w, http.StatusInternalServerError, "Failed to emit receipt", err)
		return
	}

	sessionID := h.Sessions.Register(borrowID, session)

	dto := SessionDTO{
		SessionID: sessionID,
		BorrowID:  borrowID,
		State:     string(session.State()),
		Receipt:   toReceiptDTO(session.Receipt()),
	}
	if warn := session.ShelfWarning(); warn != nil {
		dto.Warning = warn.Error()
	}

	writeJSON(w, http.StatusCreated, dto)
}

// GetSettlement reports a session's current state.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	session, borrowID, ok := h.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown settlement session", nil)
		return
	}

	writeJSON(w, http.StatusOK, SessionDTO{
		SessionID: chi.URLParam(r, "id"),
		BorrowID:  borrowID,
		State:     string(session.State()),
		Receipt:   toReceiptDTO(session.Receipt()),
	})
}

// ConfirmSettlement delivers the "document produced" signal and clears the
// fine. A failed clear leaves the session Confirmed but the ledger untouched;
// that is surfaced as a 500 for manual follow-up.
func (h *Handler) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, borrowID, ok := h.Sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown settlement session", nil)
		return
	}

	err := session.Confirm(r.Context(), h.Now())
	switch {
	case errors.Is(err, fines.ErrSessionResolved):
		writeError(w, http.StatusConflict, "Session already resolved", err)
		return
	case fines.IsStoreWrite(err):
		writeError(w, http.StatusInternalServerError,
			"Payment confirmed but the ledger was not updated; reconcile manually", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to confirm settlement", err)
		return
	}

	writeJSON(w, http.StatusOK, SessionDTO{
		SessionID: sessionID,
		BorrowID:  borrowID,
		State:     string(session.State()),
		Message:   "Fine settled",
	})
}

// AbandonSettlement delivers the abandonment signal. The fine stays owed and
// reappears on the next reconciliation pass.
func (h *Handler) AbandonSettlement(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, borrowID, ok := h.Sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown settlement session", nil)
		return
	}

	err := session.Abandon()
	if errors.Is(err, fines.ErrSessionResolved) {
		writeError(w, http.StatusConflict, "Session already resolved", err)
		return
	}

	// ErrSettlementAbandoned is the expected user-visible outcome here.
	writeJSON(w, http.StatusOK, SessionDTO{
		SessionID: sessionID,
		BorrowID:  borrowID,
		State:     string(session.State()),
		Message:   err.Error(),
	})
}

// =============================================================================
// HELPERS
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
