// Package dataset provides the in-memory tabular fixture model used for database
// setup, teardown and verification: named tables with an ordered column schema and
// rows, loadable from YAML or CSV files and composable into a single logical dataset.
package dataset

import (
	"fmt"

	"github.com/shibukawa/dbfixture"
)

// Row holds one table row keyed by column name.
type Row = map[string]any

// Table is a named tabular snapshot with an ordered column schema.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table schema declares the column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}

	return false
}

// Project returns a copy of the table restricted to the given columns, preserving
// the table's column order. Unknown columns are ignored.
func (t *Table) Project(columns map[string]bool) *Table {
	out := &Table{Name: t.Name}

	for _, c := range t.Columns {
		if columns[c] {
			out.Columns = append(out.Columns, c)
		}
	}

	for _, row := range t.Rows {
		projected := make(Row, len(out.Columns))
		for _, c := range out.Columns {
			projected[c] = row[c]
		}

		out.Rows = append(out.Rows, projected)
	}

	return out
}

// Dataset is an ordered collection of named tables.
type Dataset struct {
	tables []*Table
	index  map[string]int
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// AddTable appends a table to the dataset. Adding a table whose name is already
// present replaces the existing table in place.
func (d *Dataset) AddTable(t *Table) {
	if i, ok := d.index[t.Name]; ok {
		d.tables[i] = t
		return
	}

	d.index[t.Name] = len(d.tables)
	d.tables = append(d.tables, t)
}

// TableNames returns the table names in declaration order.
func (d *Dataset) TableNames() []string {
	names := make([]string, len(d.tables))
	for i, t := range d.tables {
		names[i] = t.Name
	}

	return names
}

// Table returns the named table.
func (d *Dataset) Table(name string) (*Table, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}

	return d.tables[i], true
}

// MustTable returns the named table or an error wrapping dbfixture.ErrTableNotFound.
func (d *Dataset) MustTable(name string) (*Table, error) {
	t, ok := d.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dbfixture.ErrTableNotFound, name)
	}

	return t, nil
}

// Len returns the number of tables.
func (d *Dataset) Len() int {
	return len(d.tables)
}

// Compose overlays multiple datasets into one logical dataset. Tables keep the order in
// which they are first encountered. When the same table name appears in more than one
// dataset the first dataset's table wins; with combineRows true the later rows are
// appended to the first table's rows instead (columns stay those of the first table).
func Compose(combineRows bool, sets ...*Dataset) *Dataset {
	out := New()

	for _, set := range sets {
		if set == nil {
			continue
		}

		for _, name := range set.TableNames() {
			src, _ := set.Table(name)

			existing, ok := out.Table(name)
			if !ok {
				out.AddTable(&Table{
					Name:    src.Name,
					Columns: append([]string(nil), src.Columns...),
					Rows:    append([]Row(nil), src.Rows...),
				})

				continue
			}

			if combineRows {
				existing.Rows = append(existing.Rows, src.Rows...)
			}
		}
	}

	return out
}
