// Package record holds the single labeled row handed to a model.
package record

import (
	"bytes"
	"fmt"
	"strconv"
)

// Value holds a single cell: either a number or a text label
type Value struct {
	Num    float64
	Text   string
	IsText bool
}

// Number wraps a numeric cell
func Number(v float64) Value {
	return Value{Num: v}
}

// Text wraps a categorical cell
func Text(s string) Value {
	return Value{Text: s, IsText: true}
}

// String renders the value the way it would appear in a CSV row
func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// Record is a single labeled row. Column order is significant and preserved.
type Record struct {
	columns []string
	values  []Value
	index   map[string]int
}

// New builds a record from parallel column and value slices
func New(columns []string, values []Value) (Record, error) {
	if len(columns) != len(values) {
		return Record{}, fmt.Errorf("record has %d columns but %d values", len(columns), len(values))
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return Record{}, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	vals := make([]Value, len(values))
	copy(vals, values)
	return Record{columns: cols, values: vals, index: index}, nil
}

// Len returns the number of columns
func (r Record) Len() int {
	return len(r.columns)
}

// Columns returns a copy of the column names in order
func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Values returns a copy of the cells in column order
func (r Record) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

// Get looks up a cell by column name
func (r Record) Get(column string) (Value, bool) {
	i, ok := r.index[column]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Map returns the record as column -> plain Go value, for JSON encoding
func (r Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.columns))
	for i, c := range r.columns {
		if r.values[i].IsText {
			out[c] = r.values[i].Text
		} else {
			out[c] = r.values[i].Num
		}
	}
	return out
}

// Key returns a canonical encoding of the record. Equal records produce equal keys.
func (r Record) Key() []byte {
	var buf bytes.Buffer
	for i, c := range r.columns {
		buf.WriteString(c)
		if r.values[i].IsText {
			buf.WriteString("=s:")
			buf.WriteString(strconv.Quote(r.values[i].Text))
		} else {
			buf.WriteString("=n:")
			buf.WriteString(strconv.FormatFloat(r.values[i].Num, 'g', -1, 64))
		}
		buf.WriteByte(';')
	}
	return buf.Bytes()
}
