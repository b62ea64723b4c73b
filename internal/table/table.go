// Package table implements the small column-ordered numeric table used for
// candidates, evaluated points and accumulated run data.
package table

import (
	"fmt"
	"sort"
)

// Record is a single row keyed by column name.
type Record map[string]float64

// Table holds rows of float64 values in a fixed column order.
// Rows are stored positionally: Rows[i][j] is the value of Columns[j].
type Table struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Rows    [][]float64 `json:"rows" yaml:"rows"`
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: [][]float64{}}
}

// FromRecords builds a table with the given column order. Every record must
// carry every column.
func FromRecords(columns []string, records ...Record) (*Table, error) {
	t := New(columns...)
	for _, r := range records {
		if err := t.AppendRecord(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromColumns builds a table from column vectors of equal length. When order
// is nil the columns are sorted by name.
func FromColumns(data map[string][]float64, order []string) (*Table, error) {
	if order == nil {
		order = make([]string, 0, len(data))
		for name := range data {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	n := -1
	for _, name := range order {
		col, ok := data[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		if n >= 0 && len(col) != n {
			return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(col), n)
		}
		n = len(col)
	}

	t := New(order...)
	for i := 0; i < n; i++ {
		row := make([]float64, len(order))
		for j, name := range order {
			row[j] = data[name][i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Len returns the number of rows. A nil table has no rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Index returns the position of a column or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every named column is present.
func (t *Table) HasColumns(columns ...string) bool {
	for _, c := range columns {
		if t.Index(c) < 0 {
			return false
		}
	}
	return true
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) Record {
	r := make(Record, len(t.Columns))
	for j, c := range t.Columns {
		r[c] = t.Rows[i][j]
	}
	return r
}

// Records returns every row keyed by column name.
func (t *Table) Records() []Record {
	out := make([]Record, t.Len())
	for i := range out {
		out[i] = t.Record(i)
	}
	return out
}

// Value returns the value at row i for the named column.
func (t *Table) Value(i int, column string) (float64, bool) {
	j := t.Index(column)
	if j < 0 || i < 0 || i >= t.Len() {
		return 0, false
	}
	return t.Rows[i][j], true
}

// Column returns a copy of the named column.
func (t *Table) Column(column string) ([]float64, error) {
	j := t.Index(column)
	if j < 0 {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	out := make([]float64, t.Len())
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// AppendRecord appends one row. Extra keys are ignored; missing columns are an error.
func (t *Table) AppendRecord(r Record) error {
	row := make([]float64, len(t.Columns))
	for j, c := range t.Columns {
		v, ok := r[c]
		if !ok {
			return fmt.Errorf("record is missing column %q", c)
		}
		row[j] = v
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Append adds every row of other. An empty table without columns adopts the
// column order of other; otherwise other must carry all of t's columns.
func (t *Table) Append(other *Table) error {
	if other == nil {
		return nil
	}
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		t.Columns = append([]string{}, other.Columns...)
	}

	idx := make([]int, len(t.Columns))
	for j, c := range t.Columns {
		k := other.Index(c)
		if k < 0 {
			return fmt.Errorf("appended table is missing column %q", c)
		}
		idx[j] = k
	}

	for _, src := range other.Rows {
		row := make([]float64, len(t.Columns))
		for j, k := range idx {
			row[j] = src[k]
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

// Select returns a new table with the given columns in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for j, c := range columns {
		k := t.Index(c)
		if k < 0 {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		idx[j] = k
	}

	out := New(columns...)
	for _, src := range t.Rows {
		row := make([]float64, len(columns))
		for j, k := range idx {
			row[j] = src[k]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Subset returns a new table holding the rows at the given positions.
func (t *Table) Subset(rows []int) *Table {
	out := New(t.Columns...)
	for _, i := range rows {
		out.Rows = append(out.Rows, append([]float64{}, t.Rows[i]...))
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Columns...)
	out.Rows = make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]float64{}, row...)
	}
	return out
}
