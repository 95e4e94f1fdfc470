package roster

// parse.go decodes an uploaded spreadsheet into raw rows keyed by header.
//
// Supported formats, chosen by file extension:
//
//	.csv   encoding/csv behind BOM removal and UTF-8 sanitizing
//	.xlsx  github.com/xuri/excelize/v2, first worksheet
//	.xls   github.com/extrame/xls, first worksheet
//
// The header is the first row (within Parser.HeaderSearchRows) that names a
// known registration-number or name column; when no row does, the first
// non-empty row is used. Blank rows are dropped. Files that cannot be
// decoded are rejected with ErrMalformedFile.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// DefaultHeaderSearchRows is how many leading rows are scanned for the
// header when Parser.HeaderSearchRows is not set.
const DefaultHeaderSearchRows = 20

// Format is a supported spreadsheet format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a file name to its format by extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .csv, .xls or .xlsx)", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// Sheet is a decoded worksheet.
type Sheet struct {
	Headers []string
	Rows    []RawRow
}

// Parser decodes uploaded spreadsheets. The zero value uses the defaults.
type Parser struct {
	// HeaderSearchRows is how many leading rows are scanned for the header.
	HeaderSearchRows int
}

// ParseFile decodes data with a default Parser.
func ParseFile(fileName string, data []byte) (*Sheet, error) {
	return Parser{}.Parse(fileName, data)
}

// Parse decodes data according to fileName's extension.
func (p Parser) Parse(fileName string, data []byte) (*Sheet, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(bytes.NewReader(data))
	case FormatXLSX:
		records, err = readXLSX(data)
	case FormatXLS:
		records, err = readXLS(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	return recordsToSheet(records, p.headerSearchRows())
}

func (p Parser) headerSearchRows() int {
	if p.HeaderSearchRows <= 0 {
		return DefaultHeaderSearchRows
	}
	return p.HeaderSearchRows
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(WrapCSVReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no worksheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) (records [][]string, err error) {
	// The BIFF decoder panics on some truncated files.
	defer func() {
		if p := recover(); p != nil {
			records, err = nil, fmt.Errorf("decode xls: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no worksheets")
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("first worksheet unreadable")
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		records = append(records, cells)
	}
	return records, nil
}

// recordsToSheet locates the header and keys every following row by it.
func recordsToSheet(records [][]string, searchRows int) (*Sheet, error) {
	headerAt := findHeader(records, searchRows)
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[headerAt]))
	for i, h := range records[headerAt] {
		headers[i] = CleanCell(h)
	}

	sheet := &Sheet{Headers: headers}
	for _, rec := range records[headerAt+1:] {
		if isEmptyRow(rec) {
			continue
		}
		raw := make(RawRow, len(headers))
		for j, cell := range rec {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			if _, exists := raw[headers[j]]; exists {
				continue
			}
			raw[headers[j]] = strings.TrimSpace(cell)
		}
		sheet.Rows = append(sheet.Rows, raw)
	}

	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows after header", ErrEmptyFile)
	}
	return sheet, nil
}

// findHeader returns the index of the header row, or -1 for a sheet with
// no non-empty rows. Only the first searchRows rows are checked for a
// known header name.
func findHeader(records [][]string, searchRows int) int {
	known := make(map[string]bool)
	for _, list := range [][]string{aliasRegNumber, aliasFullName, aliasFirstName} {
		for _, a := range list {
			known[headerKey(a)] = true
		}
	}

	first := -1
	limit := min(len(records), searchRows)
	for i := 0; i < limit; i++ {
		if isEmptyRow(records[i]) {
			continue
		}
		if first < 0 {
			first = i
		}
		for _, cell := range records[i] {
			if known[headerKey(cell)] {
				return i
			}
		}
	}
	if first >= 0 {
		return first
	}

	for i := limit; i < len(records); i++ {
		if !isEmptyRow(records[i]) {
			return i
		}
	}
	return -1
}
