package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Sheet is a named, ordered sequence of rows.
type Sheet struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// Metadata describes the last import into the document. Timestamps are kept
// as the strings found in the file; the store writes RFC 3339.
type Metadata struct {
	CreatedAt   *string `json:"created_at"`
	LastUpdated *string `json:"last_updated"`
	SourceFile  *string `json:"source_file"`
}

// timestampLayouts are tried in order by FormatTimestamp. The zoneless
// layouts match ISO 8601 as written by other tools.
var timestampLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
}

// FormatTimestamp renders a stored timestamp for display. Strings that are
// not a recognised timestamp are returned unchanged.
func FormatTimestamp(s string) string {
	for _, l := range timestampLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.zoned {
			return t.Format("2006-01-02 15:04:05 MST")
		}
		return t.Format("2006-01-02 15:04:05")
	}
	return s
}

// Document is the persisted aggregate: every sheet known to the bot plus
// import metadata. Sheet order is insertion order and survives a round trip
// through the file.
type Document struct {
	Sheets   []Sheet
	Metadata Metadata
}

// Empty returns a document with no sheets and null metadata.
func Empty() *Document {
	return &Document{Sheets: []Sheet{}}
}

// Sheet returns the rows of the named sheet.
func (d *Document) Sheet(name string) ([]Row, bool) {
	if i := d.index(name); i >= 0 {
		return d.Sheets[i].Rows, true
	}
	return nil, false
}

// SetSheet replaces the rows of the named sheet, appending the sheet when it
// does not exist yet.
func (d *Document) SetSheet(name string, rows []Row) {
	if rows == nil {
		rows = []Row{}
	}
	if i := d.index(name); i >= 0 {
		d.Sheets[i].Rows = rows
		return
	}
	d.Sheets = append(d.Sheets, Sheet{Name: name, Rows: rows})
}

// SheetNames lists sheet names in document order.
func (d *Document) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, s := range d.Sheets {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{Sheets: make([]Sheet, len(d.Sheets)), Metadata: d.Metadata}
	for i, s := range d.Sheets {
		rows := make([]Row, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = r.Clone()
		}
		c.Sheets[i] = Sheet{Name: s.Name, Rows: rows}
	}
	return c
}

func (d *Document) index(name string) int {
	for i := range d.Sheets {
		if d.Sheets[i].Name == name {
			return i
		}
	}
	return -1
}

type documentJSON struct {
	Sheets   sheetMap `json:"sheets"`
	Metadata Metadata `json:"metadata"`
}

// MarshalJSON encodes the document as {"sheets": {...}, "metadata": {...}}.
func (d Document) MarshalJSON() ([]byte, error) {
	return marshalNoEscape(documentJSON{Sheets: sheetMap(d.Sheets), Metadata: d.Metadata})
}

// UnmarshalJSON decodes the persisted layout. A missing "sheets" key yields an
// empty sheet list.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Sheets = []Sheet(raw.Sheets)
	if d.Sheets == nil {
		d.Sheets = []Sheet{}
	}
	d.Metadata = raw.Metadata
	return nil
}

// sheetMap is the JSON object form of an ordered sheet list.
type sheetMap []Sheet

func (m sheetMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(s.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		rows := s.Rows
		if rows == nil {
			rows = []Row{}
		}
		val, err := marshalNoEscape(rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *sheetMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sheets must be a JSON object, got %v", tok)
	}
	var out []Sheet
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected sheet key %v", keyTok)
		}
		var rows []Row
		if err := dec.Decode(&rows); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		if rows == nil {
			rows = []Row{}
		}
		if i, dup := seen[name]; dup {
			out[i].Rows = rows
			continue
		}
		seen[name] = len(out)
		out = append(out, Sheet{Name: name, Rows: rows})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
