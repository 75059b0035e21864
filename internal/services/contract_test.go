package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/internal/db"
	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/ledger"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/internal/policy"
	"github.com/mrosario/funeraria/internal/render"
	"github.com/mrosario/funeraria/internal/storage"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	return conn
}

type fixtures struct {
	family  models.Family
	subject models.Deceased
	itemA   models.ServiceItem
	itemB   models.ServiceItem
	admin   models.User
	staff   models.User
}

func seedFixtures(t *testing.T, conn *gorm.DB) fixtures {
	t.Helper()
	f := fixtures{}
	f.family = models.Family{ResponsibleName: "Maria Souza", Kinship: "daughter", Phone: "11 99999-0000"}
	require.NoError(t, conn.Create(&f.family).Error)
	f.subject = models.Deceased{Name: "João Souza", DeathDate: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), FamilyID: &f.family.ID}
	require.NoError(t, conn.Create(&f.subject).Error)
	f.itemA = models.ServiceItem{Name: "Standard casket", UnitPrice: dec("10.00")}
	require.NoError(t, conn.Create(&f.itemA).Error)
	f.itemB = models.ServiceItem{Name: "Floral arrangement", UnitPrice: dec("5.00")}
	require.NoError(t, conn.Create(&f.itemB).Error)
	f.admin = models.User{Email: "admin@test", Password: "x", Name: "Admin", Role: models.RoleAdmin}
	require.NoError(t, conn.Create(&f.admin).Error)
	f.staff = models.User{Email: "staff@test", Password: "x", Name: "Staff", Role: models.RoleStaff}
	require.NoError(t, conn.Create(&f.staff).Error)
	return f
}

func testIssuer() render.Issuer {
	return render.Issuer{Name: "Funerária Teste", TaxID: "00.000.000/0001-00"}
}

func newTestService(t *testing.T, conn *gorm.DB, rec ledger.Recorder) (*ContractService, *storage.FileStore) {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewContractService(conn, render.NewRenderer(testIssuer()), blobs, rec, policy.NewGate(), dec("10.00"), zap.NewNop())
	return svc, blobs
}

func twoLineInput(f fixtures) ContractInput {
	return ContractInput{
		DeceasedID: f.subject.ID,
		Notes:      "wake on Friday",
		Lines: []LineInput{
			{ServiceItemID: f.itemA.ID, Quantity: 2, UnitPrice: dec("10.00")},
			{ServiceItemID: f.itemB.ID, Quantity: 1, UnitPrice: dec("5.00")},
		},
	}
}

func TestCreateAndInvoiceHappyPath(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, blobs := newTestService(t, conn, ledger.NewRecorder())

	contract, totals, err := svc.CreateAndInvoice(context.Background(), twoLineInput(f), &f.staff)
	require.NoError(t, err)
	require.NotZero(t, contract.ID)

	assert.True(t, totals.Subtotal.Equal(dec("25.00")), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.TaxAmount.Equal(dec("2.50")), "tax = %s", totals.TaxAmount)
	assert.True(t, totals.GrandTotal.Equal(dec("27.50")), "grand total = %s", totals.GrandTotal)

	require.NotNil(t, contract.InvoiceNumber)
	want := fmt.Sprintf("NF%d%02d%02d%04d", contract.ContractedAt.Year(), int(contract.ContractedAt.Month()), contract.ContractedAt.Day(), contract.ID)
	assert.Equal(t, want, *contract.InvoiceNumber)

	require.NotNil(t, contract.DocumentPath)
	data, err := blobs.Get(*contract.DocumentPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "stored blob is not a PDF")

	var entries []models.LedgerEntry
	require.NoError(t, conn.Find(&entries).Error)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.EntryTypeReceivable, e.Type)
	assert.Equal(t, models.EntryStatusPending, e.Status)
	assert.True(t, e.Amount.Equal(dec("27.50")), "ledger amount = %s", e.Amount)
	require.NotNil(t, e.ContractID)
	assert.Equal(t, contract.ID, *e.ContractID)
	assert.WithinDuration(t, contract.ContractedAt.AddDate(0, 0, 30), e.DueDate, time.Second)
}

func TestCreateValidation(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	cases := map[string]ContractInput{
		"empty line set": {DeceasedID: f.subject.ID},
		"zero quantity": {DeceasedID: f.subject.ID, Lines: []LineInput{
			{ServiceItemID: f.itemA.ID, Quantity: 0},
		}},
		"negative unit price": {DeceasedID: f.subject.ID, Lines: []LineInput{
			{ServiceItemID: f.itemA.ID, Quantity: 1, UnitPrice: dec("-1.00")},
		}},
		"tax rate above 100": func() ContractInput {
			in := twoLineInput(f)
			rate := dec("150")
			in.TaxRate = &rate
			return in
		}(),
		"duplicate catalog item": {DeceasedID: f.subject.ID, Lines: []LineInput{
			{ServiceItemID: f.itemA.ID, Quantity: 1},
			{ServiceItemID: f.itemA.ID, Quantity: 2},
		}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.CreateAndInvoice(ctx, in, &f.staff)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}

	var count int64
	require.NoError(t, conn.Model(&models.Contract{}).Count(&count).Error)
	assert.Zero(t, count, "validation failures must not persist contracts")
}

func TestCreateMissingCatalogReference(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())

	in := ContractInput{DeceasedID: f.subject.ID, Lines: []LineInput{{ServiceItemID: 9999, Quantity: 1}}}
	_, _, err := svc.CreateAndInvoice(context.Background(), in, &f.staff)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "service_item", nf.Resource)

	var contracts, entries int64
	require.NoError(t, conn.Model(&models.Contract{}).Count(&contracts).Error)
	require.NoError(t, conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, contracts)
	assert.Zero(t, entries)
}

func TestCreateSnapshotsCatalogPrice(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	// zero unit price means "use the catalog price at submission time"
	in := ContractInput{DeceasedID: f.subject.ID, Lines: []LineInput{{ServiceItemID: f.itemA.ID, Quantity: 3}}}
	contract, totals, err := svc.CreateAndInvoice(ctx, in, &f.staff)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(dec("30.00")), "subtotal = %s", totals.Subtotal)

	// a later catalog price change must not leak into the persisted contract
	require.NoError(t, conn.Model(&models.ServiceItem{}).Where("id = ?", f.itemA.ID).Update("unit_price", dec("999.00")).Error)
	_, totalsAfter, err := svc.Get(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, totalsAfter.Subtotal.Equal(dec("30.00")), "subtotal after catalog change = %s", totalsAfter.Subtotal)
}

func TestUpdateRemovesLineAndKeepsLedger(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	contract, _, err := svc.CreateAndInvoice(ctx, twoLineInput(f), &f.staff)
	require.NoError(t, err)
	numberBefore := *contract.InvoiceNumber

	var lineA models.ContractLine
	require.NoError(t, conn.Where("contract_id = ? AND service_item_id = ?", contract.ID, f.itemA.ID).First(&lineA).Error)

	in := ContractInput{
		DeceasedID: f.subject.ID,
		Notes:      contract.Notes,
		Lines:      []LineInput{{ServiceItemID: f.itemA.ID, Quantity: 2, UnitPrice: dec("10.00")}},
	}
	updated, totals, err := svc.UpdateAndReinvoice(ctx, contract.ID, in, &f.staff)
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(dec("20.00")), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.TaxAmount.Equal(dec("2.00")), "tax = %s", totals.TaxAmount)
	assert.True(t, totals.GrandTotal.Equal(dec("22.00")), "grand total = %s", totals.GrandTotal)
	assert.Equal(t, numberBefore, *updated.InvoiceNumber, "invoice number must survive updates")

	var lines []models.ContractLine
	require.NoError(t, conn.Where("contract_id = ?", contract.ID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, lineA.ID, lines[0].ID, "reconciliation must preserve surviving line identity")

	var entries int64
	require.NoError(t, conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.EqualValues(t, 1, entries, "update must not create a second ledger entry")
}

func TestUpdateNotFound(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())

	_, _, err := svc.UpdateAndReinvoice(context.Background(), 4242, twoLineInput(f), &f.staff)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "contract", nf.Resource)
}

func TestAssignInvoiceNumberIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())

	contract, _, err := svc.CreateAndInvoice(context.Background(), twoLineInput(f), &f.staff)
	require.NoError(t, err)
	first := *contract.InvoiceNumber

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.assignInvoiceNumber(tx, contract)
	}))
	assert.Equal(t, first, *contract.InvoiceNumber)

	var reloaded models.Contract
	require.NoError(t, conn.First(&reloaded, contract.ID).Error)
	assert.Equal(t, first, *reloaded.InvoiceNumber)
}

func TestAssignInvoiceNumberRequiresPersistedID(t *testing.T) {
	conn := setupTestDB(t)
	seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())

	draft := &models.Contract{ContractedAt: time.Now()}
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.assignInvoiceNumber(tx, draft)
	})
	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
}

// failingRecorder simulates a ledger insert blowing up after the document was
// already stored, to prove the whole unit of work unwinds.
type failingRecorder struct{}

func (failingRecorder) InsertReceivable(*gorm.DB, ledger.Receivable) error {
	return errors.New("ledger unavailable")
}

func TestCreateRollsBackOnLedgerFailure(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, blobs := newTestService(t, conn, failingRecorder{})

	_, _, err := svc.CreateAndInvoice(context.Background(), twoLineInput(f), &f.staff)
	require.Error(t, err)

	var contracts, lines, entries int64
	require.NoError(t, conn.Model(&models.Contract{}).Count(&contracts).Error)
	require.NoError(t, conn.Model(&models.ContractLine{}).Count(&lines).Error)
	require.NoError(t, conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, contracts, "no contract row may survive the rollback")
	assert.Zero(t, lines, "no line rows may survive the rollback")
	assert.Zero(t, entries, "no ledger rows may survive the rollback")

	// the blob written before the ledger step must have been compensated away
	now := time.Now()
	probe := fmt.Sprintf("NF%d%02d%02d%04d.pdf", now.Year(), int(now.Month()), now.Day(), 1)
	assert.False(t, blobs.Exists(probe), "orphan document survived the rollback")
}

func TestUpdateRollsBackStoredDocument(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, blobs := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	contract, _, err := svc.CreateAndInvoice(ctx, twoLineInput(f), &f.staff)
	require.NoError(t, err)
	docName := *contract.DocumentPath

	// clear the stored path, then block writes to it so the update fails in
	// the transaction after the blob was already overwritten
	require.NoError(t, conn.Exec("UPDATE contracts SET document_path = NULL WHERE id = ?", contract.ID).Error)
	require.NoError(t, conn.Exec(`CREATE TRIGGER block_document_path BEFORE UPDATE OF document_path ON contracts
		BEGIN SELECT RAISE(ABORT, 'document_path locked'); END`).Error)

	in := ContractInput{
		DeceasedID: f.subject.ID,
		Lines:      []LineInput{{ServiceItemID: f.itemA.ID, Quantity: 5, UnitPrice: dec("10.00")}},
	}
	_, _, err = svc.UpdateAndReinvoice(ctx, contract.ID, in, &f.staff)
	require.Error(t, err)

	// the rolled-back line set must survive untouched
	var lines []models.ContractLine
	require.NoError(t, conn.Where("contract_id = ?", contract.ID).Find(&lines).Error)
	assert.Len(t, lines, 2, "original lines must survive the rollback")

	// no document rendered from the discarded line set may remain stored
	assert.False(t, blobs.Exists(docName), "stale document survived the rollback")

	// retrieval self-heals from the committed state
	require.NoError(t, conn.Exec("DROP TRIGGER block_document_path").Error)
	data, name, err := svc.FetchDocument(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, docName, name)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, totals, err := svc.Get(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(dec("25.00")), "totals must reflect the committed lines, got %s", totals.Subtotal)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, blobs := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	contract, _, err := svc.CreateAndInvoice(ctx, twoLineInput(f), &f.staff)
	require.NoError(t, err)
	docName := *contract.DocumentPath

	err = svc.Delete(ctx, contract.ID, &f.staff)
	var pe *domain.PermissionError
	require.ErrorAs(t, err, &pe)

	err = svc.Delete(ctx, contract.ID, nil)
	require.ErrorAs(t, err, &pe, "anonymous actor must be rejected")

	require.NoError(t, svc.Delete(ctx, contract.ID, &f.admin))
	var contracts, lines int64
	require.NoError(t, conn.Model(&models.Contract{}).Count(&contracts).Error)
	require.NoError(t, conn.Model(&models.ContractLine{}).Count(&lines).Error)
	assert.Zero(t, contracts)
	assert.Zero(t, lines, "delete must cascade to lines")
	assert.False(t, blobs.Exists(docName))

	// already-created ledger entries stay untouched
	var entries int64
	require.NoError(t, conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.EqualValues(t, 1, entries)
}

func TestFetchDocumentSelfHealing(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, blobs := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	contract, _, err := svc.CreateAndInvoice(ctx, twoLineInput(f), &f.staff)
	require.NoError(t, err)

	// stored document comes back as-is
	stored, name, err := svc.FetchDocument(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, *contract.DocumentPath, name)
	assert.True(t, bytes.HasPrefix(stored, []byte("%PDF")))

	// losing the blob triggers regeneration under the same name
	require.NoError(t, blobs.Remove(name))
	regenerated, name2, err := svc.FetchDocument(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, name, name2)
	assert.True(t, bytes.HasPrefix(regenerated, []byte("%PDF")))
	assert.True(t, blobs.Exists(name2), "regenerated document must be stored")
}

func TestFetchDocumentNotFound(t *testing.T) {
	conn := setupTestDB(t)
	seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())

	_, _, err := svc.FetchDocument(context.Background(), 777)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTotalsStableAcrossFetches(t *testing.T) {
	conn := setupTestDB(t)
	f := seedFixtures(t, conn)
	svc, _ := newTestService(t, conn, ledger.NewRecorder())
	ctx := context.Background()

	contract, created, err := svc.CreateAndInvoice(ctx, twoLineInput(f), &f.staff)
	require.NoError(t, err)

	_, first, err := svc.Get(ctx, contract.ID)
	require.NoError(t, err)
	_, second, err := svc.Get(ctx, contract.ID)
	require.NoError(t, err)
	for _, totals := range []struct{ a, b decimal.Decimal }{
		{created.Subtotal, first.Subtotal},
		{created.TaxAmount, first.TaxAmount},
		{created.GrandTotal, first.GrandTotal},
		{first.Subtotal, second.Subtotal},
		{first.TaxAmount, second.TaxAmount},
		{first.GrandTotal, second.GrandTotal},
	} {
		assert.True(t, totals.a.Equal(totals.b), "%s != %s", totals.a, totals.b)
	}
}
