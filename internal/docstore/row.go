package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Field is a single column/value pair of a row.
type Field struct {
	Name  string
	Value any
}

// Row is one record of a sheet: an ordered mapping from column name to a scalar
// value (string, int64, float64, bool or nil). Columns keep the order in which
// they were first set, which is also the order they are written back to disk.
type Row struct {
	cols   []string
	values map[string]any
}

// NewRow builds a row from the given fields in order.
func NewRow(fields ...Field) Row {
	var r Row
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Get returns the value stored under col.
func (r Row) Get(col string) (any, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Set stores v under col, appending col to the column order if it is new.
func (r *Row) Set(col string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.values[col] = NormalizeValue(v)
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.cols)
}

// Fields returns the row as an ordered list of fields.
func (r Row) Fields() []Field {
	out := make([]Field, len(r.cols))
	for i, c := range r.cols {
		out[i] = Field{Name: c, Value: r.values[c]}
	}
	return out
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	c := Row{cols: r.Columns()}
	if r.values != nil {
		c.values = make(map[string]any, len(r.values))
		for k, v := range r.values {
			c.values[k] = v
		}
	}
	return c
}

// Equal reports whether both rows hold the same columns in the same order
// with the same values.
func (r Row) Equal(o Row) bool {
	if len(r.cols) != len(o.cols) {
		return false
	}
	for i, c := range r.cols {
		if o.cols[i] != c {
			return false
		}
		if !reflect.DeepEqual(r.values[c], o.values[c]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the row as a JSON object preserving column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalNoEscape(r.values[c])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of scalars, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	row, err := decodeRow(dec)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

func decodeRow(dec *json.Decoder) (Row, error) {
	tok, err := dec.Token()
	if err != nil {
		return Row{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Row{}, fmt.Errorf("row must be a JSON object, got %v", tok)
	}
	row := Row{values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Row{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Row{}, fmt.Errorf("unexpected key token %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return Row{}, err
		}
		if _, ok := valTok.(json.Delim); ok {
			return Row{}, fmt.Errorf("column %q: value must be a scalar", key)
		}
		row.Set(key, valTok)
	}
	if _, err := dec.Token(); err != nil {
		return Row{}, err
	}
	return row, nil
}

// NormalizeValue converts v to one of the scalar representations used by rows:
// string, int64, float64, bool or nil. Go integer and float kinds are widened;
// json.Number becomes int64 when it is an integral literal and float64 otherwise.
// Any other value is returned unchanged.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// IsScalar reports whether v is a value a row cell can hold.
func IsScalar(v any) bool {
	switch NormalizeValue(v).(type) {
	case nil, string, bool, int64, float64:
		return true
	default:
		return false
	}
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
