package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/klytics/sheetbot/internal/docstore"
)

// Decode turns one raw JSON entry into an Action. It never fails: entries
// that are not objects, name an unknown kind, or lack a required field become
// Unknown with a reason.
func Decode(raw json.RawMessage) Action {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Unknown{Reason: "entry is not a JSON object"}
	}

	var name string
	if v, ok := fields["action"]; ok {
		if err := json.Unmarshal(v, &name); err != nil {
			return Unknown{Reason: "action must be a string"}
		}
	}
	var sheet string
	v, hasSheet := fields["sheet_name"]
	if hasSheet {
		// A non-string sheet_name is treated as empty.
		_ = json.Unmarshal(v, &sheet)
	}

	unknown := func(format string, args ...any) Action {
		return Unknown{SheetName: sheet, Name: name, Reason: fmt.Sprintf(format, args...), HasSheetKey: hasSheet}
	}

	if name == "" {
		return unknown("missing action")
	}
	switch Kind(name) {
	case KindUpdateField, KindAddRow, KindDeleteRow, KindUpdateSheet:
	default:
		return unknown("unsupported action %q", name)
	}
	if sheet == "" {
		return unknown("missing sheet_name")
	}

	switch Kind(name) {
	case KindUpdateField:
		idx, err := rowIndex(fields)
		if err != nil {
			return unknown("%v", err)
		}
		var field string
		if v, ok := fields["field_name"]; ok {
			_ = json.Unmarshal(v, &field)
		}
		if field == "" {
			return unknown("missing field_name")
		}
		v, ok := fields["new_value"]
		if !ok || isNull(v) {
			return unknown("missing new_value")
		}
		value, err := scalar(v)
		if err != nil {
			return unknown("new_value: %v", err)
		}
		return UpdateField{SheetName: sheet, RowIndex: idx, FieldName: field, NewValue: value}

	case KindAddRow:
		v, ok := fields["row_data"]
		if !ok || isNull(v) {
			return unknown("missing row_data")
		}
		var row docstore.Row
		if err := json.Unmarshal(v, &row); err != nil {
			return unknown("row_data: %v", err)
		}
		if row.Len() == 0 {
			return unknown("row_data is empty")
		}
		return AddRow{SheetName: sheet, RowData: row}

	case KindDeleteRow:
		idx, err := rowIndex(fields)
		if err != nil {
			return unknown("%v", err)
		}
		return DeleteRow{SheetName: sheet, RowIndex: idx}

	default: // KindUpdateSheet
		v, ok := fields["sheet_data"]
		if !ok || isNull(v) {
			return unknown("missing sheet_data")
		}
		var rows []docstore.Row
		if err := json.Unmarshal(v, &rows); err != nil {
			return unknown("sheet_data: %v", err)
		}
		if len(rows) == 0 {
			return unknown("sheet_data is empty")
		}
		return UpdateSheet{SheetName: sheet, SheetData: rows}
	}
}

func rowIndex(fields map[string]json.RawMessage) (int, error) {
	v, ok := fields["row_index"]
	if !ok || isNull(v) {
		return 0, fmt.Errorf("missing row_index")
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("row_index must be a number")
	}
	if i, err := strconv.ParseInt(string(n), 10, 0); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("row_index must be an integer, got %s", n)
	}
	return int(f), nil
}

func scalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(json.Delim); ok {
		return nil, fmt.Errorf("value must be a scalar")
	}
	return docstore.NormalizeValue(tok), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
