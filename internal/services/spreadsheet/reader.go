// Package spreadsheet reads product rows from .xlsx and .csv uploads.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// Row is one product line. Line is the 1-based row number in the file.
type Row struct {
	Line    int               `json:"line"`
	Code    string            `json:"codigo"`
	Name    string            `json:"nome"`
	NCM     string            `json:"ncm"`
	Unit    string            `json:"unidade"`
	CSTICMS string            `json:"cstIcms"`
	Raw     map[string]string `json:"raw"`
}

type column int

const (
	colIgnored column = iota
	colCode
	colName
	colNCM
	colUnit
	colCST
)

// header names after NormalizeName
var headerAliases = map[string]column{
	"CODIGO":    colCode,
	"CODE":      colCode,
	"CPROD":     colCode,
	"NOME":      colName,
	"NAME":      colName,
	"DESCRICAO": colName,
	"PRODUTO":   colName,
	"XPROD":     colName,
	"NCM":       colNCM,
	"UNIDADE":   colUnit,
	"UNIT":      colUnit,
	"UCOM":      colUnit,
	"CST ICMS":  colCST,
	"CST":       colCST,
	"CSOSN":     colCST,
}

// Read dispatches on the file extension.
func Read(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv", ".txt":
		return ReadCSV(r)
	}
	return nil, catalog.NewValidationError("file", fmt.Sprintf("unsupported spreadsheet type %q", filepath.Ext(filename)))
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, catalog.NewValidationError("file", "workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return toRows(records)
}

// ReadCSV reads a ';' or ',' separated file; the separator is taken from the header line.
func ReadCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(records)
}

func detectDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, catalog.NewValidationError("file", "spreadsheet is empty")
	}

	header := records[0]
	cols := make([]column, len(header))
	hasName := false
	for i, h := range header {
		cols[i] = headerAliases[utils.NormalizeName(h)]
		if cols[i] == colName {
			hasName = true
		}
	}
	if !hasName {
		return nil, catalog.NewValidationError("nome", "spreadsheet has no product name column")
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := Row{Line: n + 2, Raw: make(map[string]string, len(header))}
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if i >= len(header) {
				break
			}
			if name := strings.TrimSpace(header[i]); name != "" {
				row.Raw[name] = cell
			}
			switch cols[i] {
			case colCode:
				row.Code = firstNonEmpty(row.Code, cell)
			case colName:
				row.Name = firstNonEmpty(row.Name, cell)
			case colNCM:
				row.NCM = firstNonEmpty(row.NCM, cell)
			case colUnit:
				row.Unit = firstNonEmpty(row.Unit, cell)
			case colCST:
				row.CSTICMS = firstNonEmpty(row.CSTICMS, cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if !utils.IsBlank(c) {
			return false
		}
	}
	return true
}

func firstNonEmpty(current, next string) string {
	if current != "" {
		return current
	}
	return next
}
