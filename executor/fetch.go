package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shibukawa/dbfixture/dataset"
)

// FetchDataSet snapshots the connection's full state as a dataset, one table per
// user table visible on the connection.
func (e *Executor) FetchDataSet(ctx context.Context) (*dataset.Dataset, error) {
	names, err := listTables(ctx, e.db, e.dialect)
	if err != nil {
		return nil, err
	}

	ds := dataset.New()

	for _, name := range names {
		table, err := e.FetchTable(ctx, name)
		if err != nil {
			return nil, err
		}

		ds.AddTable(table)
	}

	return ds, nil
}

// FetchTable snapshots a single table, ordered by primary key when one exists so
// comparisons see deterministic row order.
func (e *Executor) FetchTable(ctx context.Context, tableName string) (*dataset.Table, error) {
	order := ""

	pkCols, err := introspectPrimaryKeys(ctx, e.db, e.dialect, tableName)
	if err == nil && len(pkCols) > 0 {
		quoted := make([]string, len(pkCols))
		for i, pk := range pkCols {
			quoted[i] = e.dialect.QuoteIdentifier(pk)
		}

		order = " ORDER BY " + strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT * FROM %s%s", e.dialect.QuoteIdentifier(tableName), order)

	return e.FetchQueryTable(ctx, tableName, query)
}

// FetchQueryTable executes an arbitrary SELECT and materializes its result set as a
// table with the given name.
func (e *Executor) FetchQueryTable(ctx context.Context, tableName, query string) (*dataset.Table, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get column names: %w", err)
	}

	table := &dataset.Table{Name: tableName, Columns: columns}

	for rows.Next() {
		values := make([]any, len(columns))

		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(dataset.Row, len(columns))

		for i, col := range columns {
			row[col] = normalizeScanned(values[i])
		}

		table.Rows = append(table.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return table, nil
}

// normalizeScanned converts driver scan artifacts to comparable values.
func normalizeScanned(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case sql.RawBytes:
		return string(val)
	default:
		return v
	}
}
