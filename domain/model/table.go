package model

import (
	"fmt"
	"strings"
)

// Table is a dense numeric table with one or more leading label columns.
// Keys names the label columns, Columns names the numeric ones.
type Table struct {
	Name    string      `json:"name"`
	Keys    []string    `json:"keys"`
	Columns []string    `json:"columns"`
	Labels  [][]string  `json:"labels"`
	Values  [][]float64 `json:"values"`
}

// NewTable creates an empty table
func NewTable(name string, keys, columns []string) *Table {
	return &Table{
		Name:    name,
		Keys:    append([]string(nil), keys...),
		Columns: append([]string(nil), columns...),
	}
}

// AppendRow adds one row; labels and values are copied
func (t *Table) AppendRow(labels []string, values []float64) {
	t.Labels = append(t.Labels, append([]string(nil), labels...))
	t.Values = append(t.Values, append([]float64(nil), values...))
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Values)
}

// Shape returns (rows, numeric columns)
func (t *Table) Shape() (int, int) {
	return len(t.Values), len(t.Columns)
}

// RowName joins the row's labels with "/"
func (t *Table) RowName(i int) string {
	return strings.Join(t.Labels[i], "/")
}

// RowNames returns RowName for every row
func (t *Table) RowNames() []string {
	out := make([]string, len(t.Labels))
	for i := range t.Labels {
		out[i] = t.RowName(i)
	}
	return out
}

// ColumnIndex returns the position of a numeric column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column copies out one numeric column
func (t *Table) Column(name string) ([]float64, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("table %s has no column %q", t.Name, name)
	}
	return t.ColumnAt(j), nil
}

// ColumnAt copies out the j-th numeric column
func (t *Table) ColumnAt(j int) []float64 {
	out := make([]float64, len(t.Values))
	for i, row := range t.Values {
		out[i] = row[j]
	}
	return out
}

// Head returns the first rows x cols block. Non-positive limits keep everything.
func (t *Table) Head(rows, cols int) *Table {
	if rows <= 0 || rows > len(t.Values) {
		rows = len(t.Values)
	}
	if cols <= 0 || cols > len(t.Columns) {
		cols = len(t.Columns)
	}
	out := NewTable(t.Name, t.Keys, t.Columns[:cols])
	for i := 0; i < rows; i++ {
		out.AppendRow(t.Labels[i], t.Values[i][:cols])
	}
	return out
}

// SelectRows returns the given rows in the given order
func (t *Table) SelectRows(idx []int) *Table {
	out := NewTable(t.Name, t.Keys, t.Columns)
	for _, i := range idx {
		out.AppendRow(t.Labels[i], t.Values[i])
	}
	return out
}

// SelectColumns returns the named numeric columns in the given order
func (t *Table) SelectColumns(names []string) (*Table, error) {
	idx := make([]int, len(names))
	for k, n := range names {
		j := t.ColumnIndex(n)
		if j < 0 {
			return nil, fmt.Errorf("table %s has no column %q", t.Name, n)
		}
		idx[k] = j
	}
	out := NewTable(t.Name, t.Keys, names)
	row := make([]float64, len(idx))
	for i := range t.Values {
		for k, j := range idx {
			row[k] = t.Values[i][j]
		}
		out.AppendRow(t.Labels[i], row)
	}
	return out, nil
}
