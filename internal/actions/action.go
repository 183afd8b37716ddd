// Package actions defines the edit operations a model may propose against the
// document and applies them in order.
package actions

import (
	"encoding/json"

	"github.com/klytics/sheetbot/internal/docstore"
)

// Kind names an action variant on the wire.
type Kind string

const (
	KindUpdateField Kind = "update_field"
	KindAddRow      Kind = "add_row"
	KindDeleteRow   Kind = "delete_row"
	KindUpdateSheet Kind = "update_sheet"
	KindUnknown     Kind = "unknown"
)

// Action is one proposed edit. The set of implementations is closed.
type Action interface {
	Kind() Kind
	// Sheet returns the target sheet name, empty when the entry carried none.
	Sheet() string
	isAction()
}

// UpdateField sets one cell of an existing row.
type UpdateField struct {
	SheetName string
	RowIndex  int
	FieldName string
	NewValue  any
}

// AddRow appends a row to a sheet.
type AddRow struct {
	SheetName string
	RowData   docstore.Row
}

// DeleteRow removes a row by position.
type DeleteRow struct {
	SheetName string
	RowIndex  int
}

// UpdateSheet replaces every row of a sheet.
type UpdateSheet struct {
	SheetName string
	SheetData []docstore.Row
}

// Unknown is an entry that could not be understood. It is never applied.
type Unknown struct {
	SheetName string
	// Name is the raw "action" value, possibly empty.
	Name   string
	Reason string
	// HasSheetKey is set when the entry had a sheet_name key, even an empty
	// or non-string one.
	HasSheetKey bool
}

func (UpdateField) Kind() Kind { return KindUpdateField }
func (AddRow) Kind() Kind      { return KindAddRow }
func (DeleteRow) Kind() Kind   { return KindDeleteRow }
func (UpdateSheet) Kind() Kind { return KindUpdateSheet }
func (Unknown) Kind() Kind     { return KindUnknown }

func (a UpdateField) Sheet() string { return a.SheetName }
func (a AddRow) Sheet() string      { return a.SheetName }
func (a DeleteRow) Sheet() string   { return a.SheetName }
func (a UpdateSheet) Sheet() string { return a.SheetName }
func (a Unknown) Sheet() string     { return a.SheetName }

func (UpdateField) isAction() {}
func (AddRow) isAction()      {}
func (DeleteRow) isAction()   {}
func (UpdateSheet) isAction() {}
func (Unknown) isAction()     {}

func (a UpdateField) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    Kind   `json:"action"`
		SheetName string `json:"sheet_name"`
		RowIndex  int    `json:"row_index"`
		FieldName string `json:"field_name"`
		NewValue  any    `json:"new_value"`
	}{KindUpdateField, a.SheetName, a.RowIndex, a.FieldName, a.NewValue})
}

func (a AddRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    Kind         `json:"action"`
		SheetName string       `json:"sheet_name"`
		RowData   docstore.Row `json:"row_data"`
	}{KindAddRow, a.SheetName, a.RowData})
}

func (a DeleteRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    Kind   `json:"action"`
		SheetName string `json:"sheet_name"`
		RowIndex  int    `json:"row_index"`
	}{KindDeleteRow, a.SheetName, a.RowIndex})
}

func (a UpdateSheet) MarshalJSON() ([]byte, error) {
	rows := a.SheetData
	if rows == nil {
		rows = []docstore.Row{}
	}
	return json.Marshal(struct {
		Action    Kind           `json:"action"`
		SheetName string         `json:"sheet_name"`
		SheetData []docstore.Row `json:"sheet_data"`
	}{KindUpdateSheet, a.SheetName, rows})
}

func (a Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    string `json:"action"`
		SheetName string `json:"sheet_name,omitempty"`
		Reason    string `json:"reason"`
	}{a.Name, a.SheetName, a.Reason})
}

// List is an ordered batch of actions as proposed by the model.
type List []Action

// UnmarshalJSON decodes a JSON array of action objects. Any other JSON value
// decodes to an empty list.
func (l *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		*l = List{}
		return nil
	}
	out := make(List, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Decode(raw))
	}
	*l = out
	return nil
}

// FirstSheet returns the sheet name of the first entry with a sheet_name key.
// It is empty when that key holds no usable name.
func FirstSheet(l List) string {
	for _, a := range l {
		if u, ok := a.(Unknown); ok && u.SheetName == "" {
			if u.HasSheetKey {
				return ""
			}
			continue
		}
		return a.Sheet()
	}
	return ""
}

// Actionable reports how many entries in l are known kinds.
func Actionable(l List) int {
	n := 0
	for _, a := range l {
		if _, ok := a.(Unknown); !ok {
			n++
		}
	}
	return n
}
