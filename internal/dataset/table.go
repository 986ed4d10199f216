package dataset

import (
	"fmt"
	"strconv"
)

// Kind is the physical storage kind of a column.
type Kind int

const (
	// KindText stores cells as strings; the empty string is missing.
	KindText Kind = iota
	// KindNumeric stores cells as float64 with a validity bit per cell.
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Column is a single named column of a Table. Columns are immutable once
// the table is assembled.
type Column struct {
	name string
	kind Kind
	text []string
	nums []float64
	ok   []bool
}

// NewTextColumn builds a text column. Empty strings are missing values.
func NewTextColumn(name string, values []string) *Column {
	return &Column{name: name, kind: KindText, text: values}
}

// NewNumericColumn builds a numeric column. valid marks which cells hold a
// real value; a nil valid slice means every cell is valid.
func NewNumericColumn(name string, values []float64, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Column{name: name, kind: KindNumeric, nums: values, ok: valid}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the storage kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.kind == KindNumeric {
		return len(c.nums)
	}
	return len(c.text)
}

// IsMissing reports whether the cell at row holds no value.
func (c *Column) IsMissing(row int) bool {
	if c.kind == KindNumeric {
		return !c.ok[row]
	}
	return c.text[row] == ""
}

// Float returns the numeric value of a cell. ok is false for missing cells
// and for all cells of text columns.
func (c *Column) Float(row int) (float64, bool) {
	if c.kind != KindNumeric || !c.ok[row] {
		return 0, false
	}
	return c.nums[row], true
}

// String returns the canonical string form of a cell: the verbatim text
// for text columns, the shortest decimal rendering for numeric ones, and
// "" for missing cells. This form is what exports emit and what membership
// predicates compare against.
func (c *Column) String(row int) string {
	if c.kind == KindText {
		return c.text[row]
	}
	if !c.ok[row] {
		return ""
	}
	return FormatFloat(c.nums[row])
}

// FormatFloat renders v in the canonical cell form: shortest decimal
// notation that round-trips, integers without a decimal point.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is an immutable row-per-school table with ordered columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewTable assembles a table from prepared columns. Column names must be
// unique and every column must have the same length.
func NewTable(cols []*Column) (*Table, error) {
	t := &Table{
		cols:  cols,
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), t.rows)
		}
		t.index[c.name] = i
	}
	return t, nil
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Width returns the column count.
func (t *Table) Width() int { return len(t.cols) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Column returns the column at position i.
func (t *Table) Column(i int) *Column { return t.cols[i] }

// Lookup returns the named column, or ok=false when absent.
func (t *Table) Lookup(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// WithColumns returns a new table sharing this table's column storage with
// the given columns added. A column whose name already exists replaces the
// existing one in place, keeping its position; new names append in order.
// Derivation relies on the replace behavior for idempotence.
func (t *Table) WithColumns(cols ...*Column) (*Table, error) {
	merged := make([]*Column, len(t.cols), len(t.cols)+len(cols))
	copy(merged, t.cols)
	for _, c := range cols {
		if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), t.rows)
		}
		if i, ok := t.index[c.name]; ok {
			merged[i] = c
		} else {
			merged = append(merged, c)
		}
	}
	return NewTable(merged)
}
