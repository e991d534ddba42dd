package importer

import (
	"errors"
	"os"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/spreadsheet"
	"github.com/xelth-com/nfecatalog/internal/testutil"
)

var pg *testutil.Postgres

func TestMain(m *testing.M) {
	testutil.RunWithPostgres(m, 54332, &pg)
}

func newImporter() *Service {
	cfg := &config.CatalogConfig{MinFuzzyScore: 90, AliasConflict: config.AliasConflictIgnore}
	return New(catalog.New(cfg, nil), clients.NewService(nil, nil), cfg, nil)
}

func TestImportRowsRequiresStore(t *testing.T) {
	_, err := newImporter().ImportRows(nil, " ", nil, RowOptions{})
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestImportXML(t *testing.T) {
	db := pg.Fresh(t)
	s := newImporter()
	data, err := os.ReadFile("../nfe/testdata/nfe_proc.xml")
	if err != nil {
		t.Fatal(err)
	}

	var res *XMLResult
	err = db.Transaction(func(tx *gorm.DB) error {
		res, err = s.ImportXML(tx, data, "nota.xml")
		return err
	})
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}

	if res.Status != StatusOK || res.Number != "1234" || res.NfeID == 0 {
		t.Errorf("got %+v", res)
	}
	want := []string{"upsert_by_code", "queued_inbox", "upsert_by_code"}
	if len(res.Items) != len(want) {
		t.Fatalf("got %d items, want %d", len(res.Items), len(want))
	}
	for i, w := range want {
		if res.Items[i].Status != w {
			t.Errorf("item %d: got %s, want %s", i+1, res.Items[i].Status, w)
		}
	}

	var stored models.NfeXml
	if err := db.Preload("Client").First(&stored, res.NfeID).Error; err != nil {
		t.Fatalf("load NFe: %v", err)
	}
	if !stored.TotalValue.Valid || stored.TotalValue.Decimal.StringFixed(2) != "56.50" {
		t.Errorf("got valor_total %v, want 56.50", stored.TotalValue)
	}
	if stored.Client == nil || stored.Client.Document != "98765432000110" {
		t.Errorf("got client %+v", stored.Client)
	}

	var inbox []models.ProductInbox
	if err := db.Find(&inbox).Error; err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 || inbox[0].StoreID != "98765432000110" || inbox[0].RawName != "Alface Crespa" {
		t.Errorf("got inbox %+v", inbox)
	}
	if len(inbox) == 1 && !strings.Contains(string(inbox[0].RawData), "Alface Crespa") {
		t.Errorf("raw line not kept: %s", inbox[0].RawData)
	}

	dup, err := s.ImportXML(db, data, "copia.xml")
	if err != nil {
		t.Fatalf("second ImportXML: %v", err)
	}
	if dup.Status != StatusDuplicated || dup.ClientName != "Mercado Bom Preço Ltda" {
		t.Errorf("got %+v, want duplicated", dup)
	}
	var n int64
	db.Model(&models.ProductInbox{}).Count(&n)
	if n != 1 {
		t.Errorf("duplicate import wrote inbox rows: got %d, want 1", n)
	}
}

func TestImportXMLRequiresRecipient(t *testing.T) {
	db := pg.Fresh(t)
	data := []byte(`<NFe><infNFe><ide><nNF>1</nNF></ide></infNFe></NFe>`)
	_, err := newImporter().ImportXML(db, data, "")
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestImportXMLMalformed(t *testing.T) {
	db := pg.Fresh(t)
	_, err := newImporter().ImportXML(db, []byte("<NFe>"), "")
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestImportRowsSeesEarlierRows(t *testing.T) {
	db := pg.Fresh(t)
	s := newImporter()
	rows := []spreadsheet.Row{
		{Line: 2, Code: "C1", Name: "Cebola Pct"},
		{Line: 3, Name: "CEBOLA PACOTE"},
		{Line: 4, Name: "Repolho Roxo"},
	}

	res, err := s.ImportRows(db, "A", rows, s.DefaultRowOptions())
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	want := []string{"upsert_by_code", "matched_by_alias", "queued_inbox"}
	for i, w := range want {
		if res.Lines[i].Status != w {
			t.Errorf("line %d: got %s, want %s", rows[i].Line, res.Lines[i].Status, w)
		}
	}
	if res.Status != StatusOK || res.Counts["queued_inbox"] != 1 {
		t.Errorf("got %+v", res)
	}
}

func TestImportRowsBatchPolicy(t *testing.T) {
	tooLong := strings.Repeat("9", 80) // exceeds products.code
	rows := []spreadsheet.Row{
		{Line: 2, Code: "OK-1", Name: "Abacaxi"},
		{Line: 3, Code: tooLong, Name: "Codigo Invalido"},
		{Line: 4, Code: "OK-2", Name: "Melancia"},
	}

	t.Run("abort", func(t *testing.T) {
		db := pg.Fresh(t)
		s := newImporter()
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := s.ImportRows(tx, "A", rows, RowOptions{MinFuzzyScore: 90})
			return err
		})
		if err == nil {
			t.Fatal("expected the batch to fail")
		}
		var n int64
		db.Model(&models.Product{}).Count(&n)
		if n != 0 {
			t.Errorf("got %d products after rollback, want 0", n)
		}
	})

	t.Run("continue", func(t *testing.T) {
		db := pg.Fresh(t)
		s := newImporter()
		var res *RowsResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			res, err = s.ImportRows(tx, "A", rows, RowOptions{MinFuzzyScore: 90, ContinueOnError: true})
			return err
		})
		if err != nil {
			t.Fatalf("ImportRows: %v", err)
		}
		if res.Status != StatusPartial || res.Failed != 1 {
			t.Errorf("got status %s failed %d, want partial/1", res.Status, res.Failed)
		}
		if res.Lines[1].Status != StatusError || res.Lines[1].Error == "" {
			t.Errorf("got %+v, want recorded error", res.Lines[1])
		}
		var n int64
		db.Model(&models.Product{}).Count(&n)
		if n != 2 {
			t.Errorf("got %d products, want 2", n)
		}
	})
}
