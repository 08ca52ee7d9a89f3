package fines

import (
	"context"
	"fmt"
	"io"
)

// =============================================================================
// WRITER PRINTER - Printer backed by an io.Writer
// =============================================================================

// WriterPrinter renders receipts to an io.Writer. This is the "document
// produced" boundary: anything past writing the text (paper, drivers) is out
// of scope.
type WriterPrinter struct {
	W io.Writer
}

func (p WriterPrinter) Print(_ context.Context, receipt Receipt) error {
	if _, err := fmt.Fprint(p.W, receipt.Render()); err != nil {
		return fmt.Errorf("%w: %v", ErrReceiptEmit, err)
	}
	return nil
}
