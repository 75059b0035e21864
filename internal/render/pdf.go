// Package render serializes a contract plus its computed totals into the
// fixed-layout invoice PDF.
package render

import (
	"bytes"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/pricing"
)

// Issuer identifies the funeral home on the invoice header. It is injected
// configuration so tests can vary it without touching globals.
type Issuer struct {
	Name    string
	TaxID   string
	Address string
	Phone   string
	Email   string
}

// Line is one row of the invoice item table.
type Line struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Subject is the person the invoice is drawn up for.
type Subject struct {
	Name      string
	DeathDate time.Time
}

// Family is the optional bereaved-family block; nil omits it from the layout.
type Family struct {
	ResponsibleName string
	Kinship         string
	Phone           string
}

// Invoice bundles everything the renderer needs. EmittedAt is wall-clock at
// render time, so regenerating an unchanged contract changes the bytes.
type Invoice struct {
	InvoiceNumber string
	ContractedAt  time.Time
	Subject       Subject
	Family        *Family
	Lines         []Line
	Totals        pricing.Totals
	TaxRate       decimal.Decimal
	Notes         string
	PreparedBy    string
	EmittedAt     time.Time
}

// Renderer produces invoice PDFs for a fixed issuer.
type Renderer struct {
	issuer Issuer
}

func NewRenderer(issuer Issuer) *Renderer { return &Renderer{issuer: issuer} }

const (
	colDescription = 90.0
	colQuantity    = 20.0
	colUnitPrice   = 40.0
	colLineTotal   = 40.0
)

// Render produces the invoice bytes. A missing invoice number, subject name or
// line description means a referential violation upstream; the renderer fails
// with RenderError rather than emitting a partial document. Zero lines is
// valid and renders an empty table with all-zero totals.
func (r *Renderer) Render(inv Invoice) ([]byte, error) {
	if inv.InvoiceNumber == "" {
		return nil, &domain.RenderError{Msg: "invoice number missing"}
	}
	if inv.Subject.Name == "" {
		return nil, &domain.RenderError{Msg: "subject missing"}
	}
	for _, l := range inv.Lines {
		if l.Description == "" {
			return nil, &domain.RenderError{Msg: "line references a missing catalog item"}
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Issuer block
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, r.issuer.Name, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, s := range []string{r.issuer.TaxID, r.issuer.Address, r.issuer.Phone, r.issuer.Email} {
		if s != "" {
			pdf.CellFormat(0, 4.5, s, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	// Invoice number header
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Invoice "+inv.InvoiceNumber, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Contract date: "+inv.ContractedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// Subject / family block
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, "Deceased", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, inv.Subject.Name, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date of death: "+inv.Subject.DeathDate.Format("2006-01-02"), "", 1, "L", false, 0, "")
	if inv.Family != nil {
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 5, "Responsible family", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		fam := inv.Family.ResponsibleName
		if inv.Family.Kinship != "" {
			fam += " (" + inv.Family.Kinship + ")"
		}
		pdf.CellFormat(0, 5, fam, "", 1, "L", false, 0, "")
		if inv.Family.Phone != "" {
			pdf.CellFormat(0, 5, inv.Family.Phone, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	// Line-item table
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(colDescription, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQuantity, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colUnitPrice, 7, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colLineTotal, 7, "Total", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, l := range inv.Lines {
		pdf.CellFormat(colDescription, 6, l.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQuantity, 6, decimal.NewFromInt(int64(l.Quantity)).String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colUnitPrice, 6, l.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colLineTotal, 6, l.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	// Summary rows
	label := colDescription + colQuantity + colUnitPrice
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(label, 6, "Subtotal", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colLineTotal, 6, inv.Totals.Subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.CellFormat(label, 6, "Tax ("+inv.TaxRate.StringFixed(2)+"%)", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colLineTotal, 6, inv.Totals.TaxAmount.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(label, 7, "Grand total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colLineTotal, 7, inv.Totals.GrandTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	// Free-text notes
	if inv.Notes != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 5, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, inv.Notes, "", "L", false)
		pdf.Ln(2)
	}

	// Emission metadata + fixed footer
	pdf.SetFont("Helvetica", "I", 8)
	emitted := "Emitted " + inv.EmittedAt.Format("2006-01-02 15:04:05")
	if inv.PreparedBy != "" {
		emitted += " by " + inv.PreparedBy
	}
	pdf.CellFormat(0, 5, emitted, "", 1, "L", false, 0, "")
	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "This document is a service invoice issued by "+r.issuer.Name+".", "T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &domain.RenderError{Msg: "pdf output", Err: err}
	}
	return buf.Bytes(), nil
}
