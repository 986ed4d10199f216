package dataset

// View is an ordered selection of rows from a Table. Views are cheap: they
// hold row indices only and never copy cell data. The zero-predicate view
// over a table is simply every row index in source order.
type View struct {
	table *Table
	rows  []int
}

// AllRows returns the identity view over t in source row order.
func AllRows(t *Table) *View {
	rows := make([]int, t.Rows())
	for i := range rows {
		rows[i] = i
	}
	return &View{table: t, rows: rows}
}

// EmptyView returns a view over t containing no rows.
func EmptyView(t *Table) *View {
	return &View{table: t, rows: []int{}}
}

// Table returns the backing table.
func (v *View) Table() *Table { return v.table }

// Len returns the number of selected rows.
func (v *View) Len() int { return len(v.rows) }

// Row returns the table row index of the i-th selected row.
func (v *View) Row(i int) int { return v.rows[i] }

// Narrow returns a new view keeping, in order, the rows for which keep
// returns true. The receiver is unchanged.
func (v *View) Narrow(keep func(row int) bool) *View {
	kept := make([]int, 0, len(v.rows))
	for _, row := range v.rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	return &View{table: v.table, rows: kept}
}
