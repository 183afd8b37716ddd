package tabular

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetbot/internal/docstore"
)

const maxSheetNameLen = 31

// WriteSheet renders rows as a single-sheet .xlsx workbook. The header is the
// union of all row columns in first-seen order; missing and null cells are
// left blank.
func WriteSheet(name string, rows []docstore.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := SanitizeSheetName(name)
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("could not rename sheet: %w", err)
	}

	header := Columns(rows)
	if len(header) > 0 {
		cells := make([]interface{}, len(header))
		for i, h := range header {
			cells[i] = h
		}
		if err := f.SetSheetRow(sheetName, "A1", &cells); err != nil {
			return nil, fmt.Errorf("could not write header: %w", err)
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			end, _ := excelize.CoordinatesToCellName(len(header), 1)
			f.SetCellStyle(sheetName, "A1", end, style)
		}
	}

	for i, row := range rows {
		cells := make([]interface{}, len(header))
		for c, col := range header {
			if v, ok := row.Get(col); ok && v != nil {
				cells[c] = v
			}
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("invalid cell coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, start, &cells); err != nil {
			return nil, fmt.Errorf("could not write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Columns returns the union of row columns in first-seen order.
func Columns(rows []docstore.Row) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, c := range r.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// SanitizeSheetName applies Excel's sheet naming rules: at most 31
// characters, none of : \ / ? * [ ], and no leading or trailing apostrophe.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// ExportFileName returns the download name for an exported sheet.
func ExportFileName(sheet string) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '|', 0:
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, SanitizeSheetName(sheet))
	return base + "_export.xlsx"
}
