package spreadsheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
)

func TestReadCSVSemicolon(t *testing.T) {
	src := "\xef\xbb\xbfCódigo;Descrição;NCM;Unidade;CST_ICMS\n" +
		"07096000;Pimentão Verde Pct;07096000;PCT;00\n" +
		";;;;\n" +
		";Alface Crespa;;UN;\n"

	rows, err := Read("produtos.csv", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Code != "07096000" || first.Name != "Pimentão Verde Pct" || first.Unit != "PCT" || first.CSTICMS != "00" {
		t.Errorf("got %+v", first)
	}
	if first.Line != 2 {
		t.Errorf("got line %d, want 2", first.Line)
	}
	if first.Raw["Descrição"] != "Pimentão Verde Pct" {
		t.Errorf("raw cells not kept: %v", first.Raw)
	}

	second := rows[1]
	if second.Code != "" || second.Name != "Alface Crespa" || second.Line != 4 {
		t.Errorf("got %+v", second)
	}
}

func TestReadCSVComma(t *testing.T) {
	src := "code,name\nA1,\"Queijo, Mussarela\"\n"
	rows, err := ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Queijo, Mussarela" {
		t.Errorf("got %+v", rows)
	}
}

func TestReadRequiresNameColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("codigo;ncm\n1;2\n"))
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestReadUnsupportedExtension(t *testing.T) {
	_, err := Read("produtos.pdf", strings.NewReader(""))
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]interface{}{
		{"cProd", "xProd", "uCom"},
		{"C1", "Tomate Italiano", "KG"},
		{"", "Cebola", ""},
	}
	for i, row := range cells {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	rows, err := Read("produtos.xlsx", &buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Code != "C1" || rows[0].Name != "Tomate Italiano" || rows[0].Unit != "KG" {
		t.Errorf("got %+v", rows[0])
	}
	if rows[1].Name != "Cebola" || rows[1].Line != 3 {
		t.Errorf("got %+v", rows[1])
	}
}
