package actions

import (
	"fmt"

	"github.com/klytics/sheetbot/internal/docstore"
)

// Target is the set of document mutations actions are applied through.
// *docstore.Store satisfies it.
type Target interface {
	UpdateField(sheet string, index int, field string, value any) error
	AddRow(sheet string, row docstore.Row) error
	DeleteRow(sheet string, index int) error
	UpdateSheetData(sheet string, rows []docstore.Row) error
}

// Report summarises an Apply call.
type Report struct {
	Applied []Action
	Skipped []Unknown
}

// ApplyError identifies the action that aborted a batch.
type ApplyError struct {
	Position int
	Kind     Kind
	Sheet    string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("action %d (%s on %q) failed: %v", e.Position+1, e.Kind, e.Sheet, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Apply runs the batch in order, so each action observes the effects of the
// ones before it. Unknown entries are skipped. The first failure stops the
// batch; actions already applied stay committed.
func Apply(t Target, list List) (Report, error) {
	var rep Report
	for i, a := range list {
		var err error
		switch x := a.(type) {
		case UpdateField:
			err = t.UpdateField(x.SheetName, x.RowIndex, x.FieldName, x.NewValue)
		case AddRow:
			err = t.AddRow(x.SheetName, x.RowData)
		case DeleteRow:
			err = t.DeleteRow(x.SheetName, x.RowIndex)
		case UpdateSheet:
			err = t.UpdateSheetData(x.SheetName, x.SheetData)
		case Unknown:
			rep.Skipped = append(rep.Skipped, x)
			continue
		default:
			rep.Skipped = append(rep.Skipped, Unknown{SheetName: a.Sheet(), Reason: fmt.Sprintf("unsupported action type %T", a)})
			continue
		}
		if err != nil {
			return rep, &ApplyError{Position: i, Kind: a.Kind(), Sheet: a.Sheet(), Err: err}
		}
		rep.Applied = append(rep.Applied, a)
	}
	return rep, nil
}
