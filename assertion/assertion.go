// Package assertion implements the expected-vs-actual comparison policy for
// database fixtures: strict and non-strict table comparison, column schema diffing
// and pluggable column filters that decide which columns stay out of comparison.
package assertion

import (
	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/dataset"
)

// TableMetadata is the comparable schema of one table.
type TableMetadata struct {
	Name    string
	Columns []string
}

// ColumnFilter transforms table metadata before comparison. Columns removed by the
// filter are excluded from comparison. Filters must be pure.
type ColumnFilter interface {
	Apply(meta TableMetadata) TableMetadata
}

// ColumnFilterFunc adapts a function to the ColumnFilter interface.
type ColumnFilterFunc func(meta TableMetadata) TableMetadata

func (f ColumnFilterFunc) Apply(meta TableMetadata) TableMetadata {
	return f(meta)
}

// ExcludeColumns returns a filter that removes the named columns from every table.
func ExcludeColumns(names ...string) ColumnFilter {
	excluded := make(map[string]bool, len(names))
	for _, n := range names {
		excluded[n] = true
	}

	return ColumnFilterFunc(func(meta TableMetadata) TableMetadata {
		out := TableMetadata{Name: meta.Name}

		for _, c := range meta.Columns {
			if !excluded[c] {
				out.Columns = append(out.Columns, c)
			}
		}

		return out
	})
}

// ColumnDiff partitions the columns present on only one side of a comparison.
type ColumnDiff struct {
	ExpectedOnly []string
	ActualOnly   []string
}

// DiffColumns computes the column schema diff between expected and actual metadata.
func DiffColumns(expected, actual TableMetadata) ColumnDiff {
	expectedSet := columnSet(expected.Columns)
	actualSet := columnSet(actual.Columns)

	var diff ColumnDiff

	for _, c := range expected.Columns {
		if !actualSet[c] {
			diff.ExpectedOnly = append(diff.ExpectedOnly, c)
		}
	}

	for _, c := range actual.Columns {
		if !expectedSet[c] {
			diff.ActualOnly = append(diff.ActualOnly, c)
		}
	}

	return diff
}

func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}

	return set
}

func metadataOf(t *dataset.Table) TableMetadata {
	return TableMetadata{Name: t.Name, Columns: t.Columns}
}

// ignoredColumns computes the set of column names excluded from comparison.
//
// Strict mode ignores exactly the columns the filters remove from the expected
// metadata. Non-strict mode additionally ignores every column present only in the
// actual metadata; with filters, each filter's view of the expected metadata is
// diffed against the actual metadata independently and the resulting ignore-sets
// are unioned, so a column excluded by any filter stays excluded.
func ignoredColumns(expected, actual TableMetadata, mode dbfixture.AssertionMode, filters []ColumnFilter) map[string]bool {
	ignored := make(map[string]bool)

	switch mode {
	case dbfixture.Strict:
		for _, filter := range filters {
			filtered := columnSet(filter.Apply(expected).Columns)
			for _, c := range expected.Columns {
				if !filtered[c] {
					ignored[c] = true
				}
			}
		}
	case dbfixture.NonStrict:
		if len(filters) == 0 {
			for _, c := range DiffColumns(expected, actual).ActualOnly {
				ignored[c] = true
			}

			break
		}

		for _, filter := range filters {
			filteredExpected := filter.Apply(expected)
			for _, c := range DiffColumns(filteredExpected, actual).ActualOnly {
				ignored[c] = true
			}
		}
	}

	return ignored
}

// CompareTables compares an expected table against an actual table under the given
// assertion mode. A nil return means the tables match; otherwise the returned error
// is a *FailureError wrapping dbfixture.ErrAssertionMismatch.
func CompareTables(expected, actual *dataset.Table, mode dbfixture.AssertionMode, filters []ColumnFilter) error {
	ignored := ignoredColumns(metadataOf(expected), metadataOf(actual), mode, filters)

	expectedCols := remainingColumns(expected.Columns, ignored)
	actualCols := remainingColumns(actual.Columns, ignored)

	diff := DiffColumns(
		TableMetadata{Name: expected.Name, Columns: expectedCols},
		TableMetadata{Name: actual.Name, Columns: actualCols},
	)

	if len(diff.ExpectedOnly) > 0 || len(diff.ActualOnly) > 0 {
		return &FailureError{
			Table:  expected.Name,
			Row:    -1,
			Reason: "column schema mismatch",
			Diff:   &diff,
		}
	}

	if len(expected.Rows) != len(actual.Rows) {
		return &FailureError{
			Table:    expected.Name,
			Row:      -1,
			Reason:   "row count mismatch",
			Expected: len(expected.Rows),
			Actual:   len(actual.Rows),
		}
	}

	for i, expectedRow := range expected.Rows {
		actualRow := actual.Rows[i]

		for _, column := range expectedCols {
			if !dataset.ValueEqual(expectedRow[column], actualRow[column]) {
				return &FailureError{
					Table:    expected.Name,
					Column:   column,
					Row:      i,
					Reason:   "value mismatch",
					Expected: expectedRow[column],
					Actual:   actualRow[column],
				}
			}
		}
	}

	return nil
}

// CompareDataSets compares datasets table by table, driven by the expected dataset's
// table name list. Tables present only in the actual dataset are never examined:
// expectations are expressed in terms of what is declared.
func CompareDataSets(expected, actual *dataset.Dataset, mode dbfixture.AssertionMode, filters []ColumnFilter) error {
	for _, name := range expected.TableNames() {
		expectedTable, _ := expected.Table(name)

		actualTable, ok := actual.Table(name)
		if !ok {
			return &FailureError{
				Table:  name,
				Row:    -1,
				Reason: "table missing from actual dataset",
			}
		}

		if err := CompareTables(expectedTable, actualTable, mode, filters); err != nil {
			return err
		}
	}

	return nil
}

func remainingColumns(columns []string, ignored map[string]bool) []string {
	out := make([]string, 0, len(columns))

	for _, c := range columns {
		if !ignored[c] {
			out = append(out, c)
		}
	}

	return out
}
