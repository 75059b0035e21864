package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrosario/funeraria/gate"
	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/ledger"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/internal/pricing"
	"github.com/mrosario/funeraria/internal/render"
	"github.com/mrosario/funeraria/internal/storage"
	"github.com/mrosario/funeraria/validation"
)

// Payment terms for receivables generated from contracts.
const receivableDueDays = 30

// LineInput is one submitted line item. UnitPrice zero or omitted means
// "use the catalog price at submission time".
type LineInput struct {
	ServiceItemID uint            `json:"service_item_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// ContractInput is the header + line items of a create or update submission.
type ContractInput struct {
	DeceasedID uint             `json:"deceased_id"`
	Notes      string           `json:"notes"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	Lines      []LineInput      `json:"line_items"`
}

// ContractService orchestrates the contract lifecycle: persistence, pricing,
// invoice-number assignment, document rendering and the ledger side effect,
// all inside one transaction per operation.
type ContractService struct {
	db             *gorm.DB
	renderer       *render.Renderer
	blobs          storage.BlobStore
	ledger         ledger.Recorder
	gate           *gate.Gate[*models.User]
	defaultTaxRate decimal.Decimal
	log            *zap.Logger
	now            func() time.Time
}

func NewContractService(db *gorm.DB, renderer *render.Renderer, blobs storage.BlobStore, rec ledger.Recorder, g *gate.Gate[*models.User], defaultTaxRate decimal.Decimal, log *zap.Logger) *ContractService {
	return &ContractService{
		db:             db,
		renderer:       renderer,
		blobs:          blobs,
		ledger:         rec,
		gate:           g,
		defaultTaxRate: defaultTaxRate,
		log:            log,
		now:            time.Now,
	}
}

// SetClock overrides the wall clock. Intended for tests.
func (s *ContractService) SetClock(now func() time.Time) { s.now = now }

func (s *ContractService) validate(in ContractInput) error {
	v := validation.Violations{}
	if in.DeceasedID == 0 {
		v["deceased_id"] = "required"
	}
	if len(in.Lines) == 0 {
		v["line_items"] = "required"
	}
	if in.TaxRate != nil {
		validation.DecimalRange("tax_rate", *in.TaxRate, decimal.Zero, decimal.NewFromInt(100), v)
	}
	seen := map[uint]bool{}
	for i, l := range in.Lines {
		field := fmt.Sprintf("line_items[%d]", i)
		if l.ServiceItemID == 0 {
			v[field+".service_item_id"] = "required"
			continue
		}
		if seen[l.ServiceItemID] {
			v[field+".service_item_id"] = "duplicate"
		}
		seen[l.ServiceItemID] = true
		validation.PositiveInt(field+".quantity", l.Quantity, v)
		validation.NonNegativeDecimal(field+".unit_price", l.UnitPrice, v)
	}
	if !v.Empty() {
		return &domain.ValidationError{Fields: v}
	}
	return nil
}

// resolveLines turns submitted lines into persisted-shape lines, snapshotting
// the catalog price where the submission left the unit price at zero.
func (s *ContractService) resolveLines(tx *gorm.DB, inputs []LineInput) ([]models.ContractLine, error) {
	ids := make([]uint, 0, len(inputs))
	for _, l := range inputs {
		ids = append(ids, l.ServiceItemID)
	}
	var items []models.ServiceItem
	if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.ServiceItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	lines := make([]models.ContractLine, 0, len(inputs))
	for _, in := range inputs {
		item, ok := byID[in.ServiceItemID]
		if !ok {
			return nil, &domain.NotFoundError{Resource: "service_item", ID: in.ServiceItemID}
		}
		price := in.UnitPrice
		if price.IsZero() {
			price = item.UnitPrice
		}
		it := item
		lines = append(lines, models.ContractLine{
			ServiceItemID: in.ServiceItemID,
			ServiceItem:   &it,
			Quantity:      in.Quantity,
			UnitPrice:     price,
		})
	}
	return lines, nil
}

// assignInvoiceNumber is idempotent: a contract that already carries a number
// keeps it. Requires a persisted id, since the number embeds it.
func (s *ContractService) assignInvoiceNumber(tx *gorm.DB, c *models.Contract) error {
	if c.InvoiceNumber != nil {
		return nil
	}
	if c.ID == 0 {
		return &domain.PreconditionError{Msg: "invoice number requested before contract was persisted"}
	}
	n := pricing.InvoiceNumber(c.ContractedAt, c.ID)
	if err := tx.Model(&models.Contract{}).Where("id = ?", c.ID).Update("invoice_number", n).Error; err != nil {
		return err
	}
	c.InvoiceNumber = &n
	return nil
}

func (s *ContractService) renderInvoice(c *models.Contract, subject *models.Deceased, lines []models.ContractLine, totals pricing.Totals, preparedBy string, emittedAt time.Time) ([]byte, error) {
	if c.InvoiceNumber == nil {
		return nil, &domain.PreconditionError{Msg: "render requested before invoice number assignment"}
	}
	inv := render.Invoice{
		InvoiceNumber: *c.InvoiceNumber,
		ContractedAt:  c.ContractedAt,
		Totals:        totals,
		TaxRate:       c.TaxRate,
		Notes:         c.Notes,
		PreparedBy:    preparedBy,
		EmittedAt:     emittedAt,
	}
	if subject != nil {
		inv.Subject = render.Subject{Name: subject.Name, DeathDate: subject.DeathDate}
		if subject.Family != nil {
			inv.Family = &render.Family{
				ResponsibleName: subject.Family.ResponsibleName,
				Kinship:         subject.Family.Kinship,
				Phone:           subject.Family.Phone,
			}
		}
	}
	for i := range lines {
		desc := ""
		if lines[i].ServiceItem != nil {
			desc = lines[i].ServiceItem.Name
		}
		inv.Lines = append(inv.Lines, render.Line{
			Description: desc,
			Quantity:    lines[i].Quantity,
			UnitPrice:   lines[i].UnitPrice,
			Total:       lines[i].Total(),
		})
	}
	return s.renderer.Render(inv)
}

func documentName(invoiceNumber string) string { return invoiceNumber + ".pdf" }

func actorName(actor *models.User) string {
	if actor == nil {
		return ""
	}
	return actor.Name
}

// CreateAndInvoice persists the contract and its lines, computes totals,
// assigns the invoice number, renders and stores the document, and records
// exactly one receivable, all in one unit of work. Any failure rolls the
// whole operation back, including the stored blob.
func (s *ContractService) CreateAndInvoice(ctx context.Context, in ContractInput, actor *models.User) (*models.Contract, pricing.Totals, error) {
	if err := s.validate(in); err != nil {
		return nil, pricing.Totals{}, err
	}
	var (
		contract   models.Contract
		totals     pricing.Totals
		storedName string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject models.Deceased
		if err := tx.Preload("Family").First(&subject, in.DeceasedID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Resource: "deceased", ID: in.DeceasedID}
			}
			return err
		}
		rate := s.defaultTaxRate
		if in.TaxRate != nil {
			rate = *in.TaxRate
		}
		contract = models.Contract{
			DeceasedID:   subject.ID,
			Notes:        in.Notes,
			TaxRate:      rate,
			ContractedAt: s.now(),
		}
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		lines, err := s.resolveLines(tx, in.Lines)
		if err != nil {
			return err
		}
		for i := range lines {
			lines[i].ContractID = contract.ID
		}
		if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
			return err
		}
		totals = pricing.ComputeTotals(contract.TaxRate, lines)
		if err := s.assignInvoiceNumber(tx, &contract); err != nil {
			return err
		}
		data, err := s.renderInvoice(&contract, &subject, lines, totals, actorName(actor), s.now())
		if err != nil {
			return err
		}
		name := documentName(*contract.InvoiceNumber)
		if err := s.blobs.Put(name, data); err != nil {
			return err
		}
		storedName = name
		if err := tx.Model(&models.Contract{}).Where("id = ?", contract.ID).Update("document_path", name).Error; err != nil {
			return err
		}
		contract.DocumentPath = &name
		due := contract.ContractedAt.AddDate(0, 0, receivableDueDays)
		rec := ledger.Receivable{
			DeceasedID:  subject.ID,
			ContractID:  contract.ID,
			Description: fmt.Sprintf("Funeral services for %s (invoice %s)", subject.Name, *contract.InvoiceNumber),
			Amount:      totals.GrandTotal,
			DueDate:     due,
		}
		if err := s.ledger.InsertReceivable(tx, rec); err != nil {
			return err
		}
		contract.Lines = lines
		contract.Deceased = &subject
		return nil
	})
	if err != nil {
		// the db transaction rolled back; remove the blob so no orphan document survives
		if storedName != "" {
			if rmErr := s.blobs.Remove(storedName); rmErr != nil {
				s.log.Warn("failed to remove orphan document", zap.String("name", storedName), zap.Error(rmErr))
			}
		}
		return nil, pricing.Totals{}, err
	}
	return &contract, totals, nil
}

// UpdateAndReinvoice replaces the submitted line set via reconciliation
// (delete removed, upsert present), updates header fields and re-renders the
// document. It never creates a second ledger entry. On rollback the stored
// document is removed rather than left holding the discarded line set;
// FetchDocument regenerates it from the committed state.
func (s *ContractService) UpdateAndReinvoice(ctx context.Context, id uint, in ContractInput, actor *models.User) (*models.Contract, pricing.Totals, error) {
	if err := s.validate(in); err != nil {
		return nil, pricing.Totals{}, err
	}
	var (
		contract   models.Contract
		totals     pricing.Totals
		storedName string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Lines").First(&contract, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Resource: "contract", ID: id}
			}
			return err
		}
		var subject models.Deceased
		if err := tx.Preload("Family").First(&subject, in.DeceasedID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Resource: "deceased", ID: in.DeceasedID}
			}
			return err
		}
		rate := contract.TaxRate
		if in.TaxRate != nil {
			rate = *in.TaxRate
		}
		updates := map[string]any{"notes": in.Notes, "tax_rate": rate, "deceased_id": subject.ID}
		if err := tx.Model(&models.Contract{}).Where("id = ?", contract.ID).Updates(updates).Error; err != nil {
			return err
		}
		contract.Notes = in.Notes
		contract.TaxRate = rate
		contract.DeceasedID = subject.ID

		desired, err := s.resolveLines(tx, in.Lines)
		if err != nil {
			return err
		}
		existing := make(map[uint]models.ContractLine, len(contract.Lines))
		for _, l := range contract.Lines {
			existing[l.ServiceItemID] = l
		}
		kept := make(map[uint]bool, len(desired))
		newLines := make([]models.ContractLine, 0, len(desired))
		for _, d := range desired {
			kept[d.ServiceItemID] = true
			if ex, ok := existing[d.ServiceItemID]; ok {
				if ex.Quantity != d.Quantity || !ex.UnitPrice.Equal(d.UnitPrice) {
					if err := tx.Model(&models.ContractLine{}).Where("id = ?", ex.ID).
						Updates(map[string]any{"quantity": d.Quantity, "unit_price": d.UnitPrice}).Error; err != nil {
						return err
					}
				}
				ex.Quantity = d.Quantity
				ex.UnitPrice = d.UnitPrice
				ex.ServiceItem = d.ServiceItem
				newLines = append(newLines, ex)
				continue
			}
			nl := d
			nl.ContractID = contract.ID
			if err := tx.Omit(clause.Associations).Create(&nl).Error; err != nil {
				return err
			}
			newLines = append(newLines, nl)
		}
		for _, ex := range contract.Lines {
			if !kept[ex.ServiceItemID] {
				if err := tx.Delete(&models.ContractLine{}, ex.ID).Error; err != nil {
					return err
				}
			}
		}

		totals = pricing.ComputeTotals(rate, newLines)
		if err := s.assignInvoiceNumber(tx, &contract); err != nil {
			return err
		}
		data, err := s.renderInvoice(&contract, &subject, newLines, totals, actorName(actor), s.now())
		if err != nil {
			return err
		}
		name := documentName(*contract.InvoiceNumber)
		if err := s.blobs.Put(name, data); err != nil {
			return err
		}
		storedName = name
		if contract.DocumentPath == nil || *contract.DocumentPath != name {
			if err := tx.Model(&models.Contract{}).Where("id = ?", contract.ID).Update("document_path", name).Error; err != nil {
				return err
			}
			contract.DocumentPath = &name
		}
		contract.Lines = newLines
		contract.Deceased = &subject
		return nil
	})
	if err != nil {
		// the overwritten blob reflects the rolled-back line set; drop it so
		// the next retrieval regenerates from what actually committed
		if storedName != "" {
			if rmErr := s.blobs.Remove(storedName); rmErr != nil {
				s.log.Warn("failed to remove stale document", zap.String("name", storedName), zap.Error(rmErr))
			}
		}
		return nil, pricing.Totals{}, err
	}
	return &contract, totals, nil
}

// Delete removes a contract and its lines. Admin capability only; ledger
// entries created earlier are left untouched.
func (s *ContractService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := s.gate.Authorize(ctx, actor, gate.ActionDelete, "contract", nil); err != nil {
		return &domain.PermissionError{Action: "delete contract"}
	}
	var contract models.Contract
	if err := s.db.WithContext(ctx).First(&contract, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.NotFoundError{Resource: "contract", ID: id}
		}
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contract_id = ?", contract.ID).Delete(&models.ContractLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Contract{}, contract.ID).Error
	})
	if err != nil {
		return err
	}
	if contract.DocumentPath != nil {
		if rmErr := s.blobs.Remove(*contract.DocumentPath); rmErr != nil {
			s.log.Warn("failed to remove document of deleted contract", zap.String("name", *contract.DocumentPath), zap.Error(rmErr))
		}
	}
	return nil
}

// Get loads one contract with its lines and recomputes totals from them.
func (s *ContractService) Get(ctx context.Context, id uint) (*models.Contract, pricing.Totals, error) {
	var contract models.Contract
	err := s.db.WithContext(ctx).
		Preload("Lines.ServiceItem").
		Preload("Deceased.Family").
		First(&contract, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pricing.Totals{}, &domain.NotFoundError{Resource: "contract", ID: id}
		}
		return nil, pricing.Totals{}, err
	}
	return &contract, pricing.ComputeTotals(contract.TaxRate, contract.Lines), nil
}

// List returns contracts newest-first.
func (s *ContractService) List(ctx context.Context, limit, offset int) ([]models.Contract, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Contract{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var contracts []models.Contract
	err := s.db.WithContext(ctx).
		Preload("Lines.ServiceItem").
		Preload("Deceased").
		Order("contracted_at desc, id desc").
		Limit(limit).Offset(offset).
		Find(&contracts).Error
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

// FetchDocument returns the stored invoice document, regenerating and storing
// it first when absent. Regeneration stamps the current time as emission time,
// so retrieval is self-healing but not byte-idempotent.
func (s *ContractService) FetchDocument(ctx context.Context, id uint) ([]byte, string, error) {
	var contract models.Contract
	err := s.db.WithContext(ctx).
		Preload("Lines.ServiceItem").
		Preload("Deceased.Family").
		First(&contract, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", &domain.NotFoundError{Resource: "contract", ID: id}
		}
		return nil, "", err
	}
	if contract.DocumentPath != nil && s.blobs.Exists(*contract.DocumentPath) {
		data, gerr := s.blobs.Get(*contract.DocumentPath)
		if gerr != nil {
			return nil, "", gerr
		}
		return data, *contract.DocumentPath, nil
	}

	// Document missing or lost: regenerate from current persisted state.
	if contract.InvoiceNumber == nil {
		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.assignInvoiceNumber(tx, &contract)
		}); err != nil {
			return nil, "", err
		}
	}
	totals := pricing.ComputeTotals(contract.TaxRate, contract.Lines)
	data, err := s.renderInvoice(&contract, contract.Deceased, contract.Lines, totals, "", s.now())
	if err != nil {
		return nil, "", err
	}
	name := documentName(*contract.InvoiceNumber)
	if err := s.blobs.Put(name, data); err != nil {
		return nil, "", err
	}
	if err := s.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", contract.ID).Update("document_path", name).Error; err != nil {
		return nil, "", err
	}
	return data, name, nil
}
