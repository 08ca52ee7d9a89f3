package fines

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECEIPT - Paper trail for a settled fine
// =============================================================================

// Receipt is the artifact handed to the Printer when a settlement session
// reaches ReceiptEmitted. The transaction id is a random integer unique
// enough for a paper trail, not globally unique.
type Receipt struct {
	TransactionID   int
	BorrowerName    string
	IDNumber        string
	AccessionNumber string
	BookTitle       string
	Fine            decimal.Decimal
}

// NewReceipt builds a receipt for a settlement snapshot with a fresh
// transaction id.
func NewReceipt(snap Snapshot) Receipt {
	return Receipt{
		TransactionID:   rand.Intn(1000000),
		BorrowerName:    snap.BorrowerName,
		IDNumber:        snap.IDNumber,
		AccessionNumber: snap.AccessionNumber,
		BookTitle:       snap.BookTitle,
		Fine:            snap.Fine,
	}
}

// Render returns the printable monospace receipt body.
func (r Receipt) Render() string {
	var b strings.Builder
	b.WriteString("Official Receipt - Overdue\n")
	fmt.Fprintf(&b, "Transaction ID: %d\n", r.TransactionID)
	fmt.Fprintf(&b, "Borrower Name: %s\n", r.BorrowerName)
	fmt.Fprintf(&b, "ID Number: %s\n", r.IDNumber)
	fmt.Fprintf(&b, "Accession Number: %s\n", r.AccessionNumber)
	fmt.Fprintf(&b, "Book Title: %s\n", r.BookTitle)
	fmt.Fprintf(&b, "Overdue Fine: %s\n", FormatMoney(r.Fine))
	return b.String()
}
