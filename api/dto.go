/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/stacks/fines-engine/fines"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// FineViewDTO is one row of the overdue view.
type FineViewDTO struct {
	BorrowID        string `json:"borrow_id"`
	BorrowerName    string `json:"borrower_name"`
	IDNumber        string `json:"id_number"`
	AccessionNumber string `json:"accession_number"`
	BookTitle       string `json:"book_title"`
	DueDate         string `json:"due_date"`
	Fine            string `json:"fine"`
	FineDisplay     string `json:"fine_display"`
	Overdue         bool   `json:"overdue"`
}

// FineListResponse wraps the overdue view with per-row problems from the
// reconciliation pass.
type FineListResponse struct {
	Fines    []FineViewDTO `json:"fines"`
	Warnings []string      `json:"warnings,omitempty"`
}

// PayRequest initiates settlement for one row. The fields mirror the row
// snapshot the operator saw when clicking pay.
type PayRequest struct {
	BorrowerName    string `json:"borrower_name"`
	IDNumber        string `json:"id_number"`
	AccessionNumber string `json:"accession_number"`
	BookTitle       string `json:"book_title"`
	Fine            string `json:"fine"`
}

// ReceiptDTO is the emitted receipt artifact.
type ReceiptDTO struct {
	TransactionID   int    `json:"transaction_id"`
	BorrowerName    string `json:"borrower_name"`
	IDNumber        string `json:"id_number"`
	AccessionNumber string `json:"accession_number"`
	BookTitle       string `json:"book_title"`
	Fine            string `json:"fine"`
	Body            string `json:"body"`
}

// SessionDTO describes a settlement session.
type SessionDTO struct {
	SessionID string      `json:"session_id"`
	BorrowID  string      `json:"borrow_id"`
	State     string      `json:"state"`
	Receipt   *ReceiptDTO `json:"receipt,omitempty"`
	Warning   string      `json:"warning,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toFineViewDTO(v fines.FineView) FineViewDTO {
	return FineViewDTO{
		BorrowID:        v.BorrowID,
		BorrowerName:    v.BorrowerName,
		IDNumber:        v.IDNumber,
		AccessionNumber: v.AccessionNumber,
		BookTitle:       v.BookTitle,
		DueDate:         v.DueDate.Format(time.RFC3339),
		Fine:            v.Fine.StringFixed(2),
		FineDisplay:     fines.FormatMoney(v.Fine),
		Overdue:         v.Overdue,
	}
}

func toReceiptDTO(r fines.Receipt) *ReceiptDTO {
	return &ReceiptDTO{
		TransactionID:   r.TransactionID,
		BorrowerName:    r.BorrowerName,
		IDNumber:        r.IDNumber,
		AccessionNumber: r.AccessionNumber,
		BookTitle:       r.BookTitle,
		Fine:            r.Fine.StringFixed(2),
		Body:            r.Render(),
	}
}
