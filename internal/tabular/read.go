// Package tabular converts spreadsheet files to and from document sheets.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetbot/internal/docstore"
)

var (
	// ErrUnsupported is returned for file types the adapter cannot read.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrLegacyFormat is returned for the binary .xls format.
	ErrLegacyFormat = errors.New("legacy .xls workbooks are not supported")
)

// Extensions lists the readable file extensions.
var Extensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm", ".csv"}

// Supported reports whether filename has a readable extension.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read parses the file contents into sheets. The file name selects the
// format and names the sheet of a CSV file.
func Read(filename string, data []byte) ([]docstore.Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readWorkbook(data)
	case ".csv":
		return readCSV(filename, data)
	case ".xls":
		return nil, fmt.Errorf("%s: %w; save it as .xlsx and upload again", filename, ErrLegacyFormat)
	default:
		return nil, fmt.Errorf("%s: %w (supported: %s)", filename, ErrUnsupported, strings.Join(Extensions, ", "))
	}
}

func readWorkbook(data []byte) ([]docstore.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not read spreadsheet data (is this a valid .xlsx file?): %w", err)
	}
	defer f.Close()

	var sheets []docstore.Sheet
	for _, name := range f.GetSheetList() {
		rows, err := readSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
		}
		sheets = append(sheets, docstore.Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readSheet(f *excelize.File, name string) ([]docstore.Row, error) {
	formatted, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	headerIdx := firstNonEmpty(formatted)
	if headerIdx < 0 {
		return []docstore.Row{}, nil
	}
	header := headerNames(formatted[headerIdx:])

	rows := []docstore.Row{}
	for r := headerIdx + 1; r < len(formatted); r++ {
		if isBlank(formatted[r]) {
			continue
		}
		var row docstore.Row
		for c, col := range header {
			var v any
			if c < len(formatted[r]) && formatted[r][c] != "" {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				v, err = cellValue(f, name, cell, formatted[r][c], at(raw, r, c))
				if err != nil {
					return nil, err
				}
			}
			row.Set(col, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cellValue picks the typed value of a non-empty cell. Numeric cells whose
// display text is not a plain number (dates, currency, percentages) keep the
// display text.
func cellValue(f *excelize.File, sheet, cell, formatted, raw string) (any, error) {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeFormula:
		if _, err := strconv.ParseFloat(formatted, 64); err != nil {
			return formatted, nil
		}
		if n, ok := parseNumber(raw); ok {
			return n, nil
		}
		if n, ok := parseNumber(formatted); ok {
			return n, nil
		}
		return formatted, nil
	default:
		return formatted, nil
	}
}

func readCSV(filename string, data []byte) ([]docstore.Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse CSV %s: %w", filename, err)
		}
		records = append(records, rec)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	sheet := docstore.Sheet{Name: SanitizeSheetName(name), Rows: []docstore.Row{}}

	headerIdx := firstNonEmpty(records)
	if headerIdx < 0 {
		return []docstore.Sheet{sheet}, nil
	}
	header := headerNames(records[headerIdx:])
	for _, rec := range records[headerIdx+1:] {
		if isBlank(rec) {
			continue
		}
		var row docstore.Row
		for c, col := range header {
			var v any
			if c < len(rec) {
				v = inferValue(rec[c])
			}
			row.Set(col, v)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return []docstore.Sheet{sheet}, nil
}

// headerNames derives unique column names from the first row, widened to the
// longest row that follows. Blank headers become "Unnamed: N" and repeats get
// a ".N" suffix.
func headerNames(rows [][]string) []string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	used := make(map[string]bool, width)
	suffix := make(map[string]int)
	names := make([]string, width)
	for c := 0; c < width; c++ {
		name := ""
		if c < len(rows[0]) {
			name = strings.TrimSpace(rows[0][c])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", c)
		}
		if used[name] {
			base := name
			for used[name] {
				suffix[base]++
				name = fmt.Sprintf("%s.%d", base, suffix[base])
			}
		}
		used[name] = true
		names[c] = name
	}
	return names
}

func inferValue(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if n, ok := parseNumber(t); ok {
		return n
	}
	switch strings.ToLower(t) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func parseNumber(s string) (any, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func firstNonEmpty(rows [][]string) int {
	for i, r := range rows {
		if !isBlank(r) {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func at(rows [][]string, r, c int) string {
	if r < len(rows) && c < len(rows[r]) {
		return rows[r][c]
	}
	return ""
}
