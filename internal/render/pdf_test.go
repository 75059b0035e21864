package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/pricing"
)

func testInvoice() Invoice {
	return Invoice{
		InvoiceNumber: "NF202602150001",
		ContractedAt:  time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
		Subject:       Subject{Name: "João Souza", DeathDate: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		Family:        &Family{ResponsibleName: "Maria Souza", Kinship: "daughter", Phone: "11 99999-0000"},
		Lines: []Line{
			{Description: "Standard casket", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Total: decimal.RequireFromString("20.00")},
			{Description: "Floral arrangement", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00"), Total: decimal.RequireFromString("5.00")},
		},
		Totals: pricing.Totals{
			Subtotal:   decimal.RequireFromString("25.00"),
			TaxAmount:  decimal.RequireFromString("2.50"),
			GrandTotal: decimal.RequireFromString("27.50"),
		},
		TaxRate:    decimal.RequireFromString("10.00"),
		Notes:      "wake on Friday",
		PreparedBy: "Staff",
		EmittedAt:  time.Date(2026, 2, 15, 10, 5, 0, 0, time.UTC),
	}
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer(Issuer{Name: "Funerária Teste", TaxID: "00.000.000/0001-00"})
	data, err := r.Render(testInvoice())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty document")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with %%PDF, got %q", data[:8])
	}
}

func TestRenderZeroLines(t *testing.T) {
	r := NewRenderer(Issuer{Name: "Funerária Teste"})
	inv := testInvoice()
	inv.Lines = nil
	inv.Totals = pricing.Totals{Subtotal: decimal.Zero, TaxAmount: decimal.Zero, GrandTotal: decimal.Zero}
	data, err := r.Render(inv)
	if err != nil {
		t.Fatalf("Render with zero lines: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
}

func TestRenderNoFamilyBlock(t *testing.T) {
	r := NewRenderer(Issuer{Name: "Funerária Teste"})
	inv := testInvoice()
	inv.Family = nil
	if _, err := r.Render(inv); err != nil {
		t.Fatalf("Render without family: %v", err)
	}
}

func TestRenderRejectsIncompleteInput(t *testing.T) {
	r := NewRenderer(Issuer{Name: "Funerária Teste"})
	cases := map[string]func(*Invoice){
		"missing invoice number":   func(i *Invoice) { i.InvoiceNumber = "" },
		"missing subject":          func(i *Invoice) { i.Subject.Name = "" },
		"missing line description": func(i *Invoice) { i.Lines[0].Description = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			inv := testInvoice()
			mutate(&inv)
			_, err := r.Render(inv)
			var re *domain.RenderError
			if !errors.As(err, &re) {
				t.Fatalf("expected RenderError, got %v", err)
			}
		})
	}
}
