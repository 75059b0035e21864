// Package pricing holds the pure monetary computations for contracts.
// All arithmetic is decimal; floats never touch money.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrosario/funeraria/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Totals is the computed financial summary of a contract.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ComputeTotals sums the lines and applies the tax rate (a percentage in
// [0,100]). The tax amount is rounded half-up to two places at the final
// multiplication, not per line, so repeated computation never drifts.
// Zero lines is a legal input and yields all-zero totals.
func ComputeTotals(taxRate decimal.Decimal, lines []models.ContractLine) Totals {
	subtotal := decimal.Zero
	for i := range lines {
		subtotal = subtotal.Add(lines[i].Total())
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}
}

// InvoiceNumber derives the invoice number from the contract date and its
// persisted id. Format: NF<year><month><day><zero-padded id>.
// The result is deterministic, so re-deriving it never changes an assigned number.
func InvoiceNumber(contractedAt time.Time, id uint) string {
	return fmt.Sprintf("NF%d%02d%02d%04d", contractedAt.Year(), int(contractedAt.Month()), contractedAt.Day(), id)
}
