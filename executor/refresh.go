package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/dataset"
)

// refreshRows inserts dataset rows or updates them when their primary key already
// exists, using the dialect's native upsert form.
func (e *Executor) refreshRows(ctx context.Context, ds *dataset.Dataset) error {
	for _, name := range ds.TableNames() {
		table, _ := ds.Table(name)

		pkCols, err := e.primaryKeys(ctx, name)
		if err != nil {
			return err
		}

		for _, row := range table.Rows {
			if err := e.upsertRow(ctx, table, pkCols, row); err != nil {
				return fmt.Errorf("failed to refresh table %s: %w", name, err)
			}
		}
	}

	return nil
}

func (e *Executor) upsertRow(ctx context.Context, table *dataset.Table, pkCols []string, row dataset.Row) error {
	pkSet := make(map[string]bool, len(pkCols))
	for _, pk := range pkCols {
		pkSet[pk] = true

		if _, exists := row[pk]; !exists {
			return fmt.Errorf("%w: %s", dbfixture.ErrPrimaryKeyMissing, pk)
		}
	}

	var (
		quoted       []string
		placeholders []string
		values       []any
		setClauses   []string
	)

	for i, col := range table.Columns {
		quoted = append(quoted, e.dialect.QuoteIdentifier(col))
		placeholders = append(placeholders, e.dialect.Placeholder(i+1))
		values = append(values, row[col])

		if pkSet[col] {
			continue
		}

		qc := e.dialect.QuoteIdentifier(col)

		switch e.dialect {
		case dbfixture.DialectMySQL:
			setClauses = append(setClauses, fmt.Sprintf("%s=VALUES(%s)", qc, qc))
		case dbfixture.DialectPostgres:
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", qc, qc))
		default:
			setClauses = append(setClauses, fmt.Sprintf("%s=excluded.%s", qc, qc))
		}
	}

	quotedPKs := make([]string, len(pkCols))
	for i, pk := range pkCols {
		quotedPKs[i] = e.dialect.QuoteIdentifier(pk)
	}

	var query string

	switch e.dialect {
	case dbfixture.DialectMySQL:
		if len(setClauses) == 0 {
			// all columns are key columns; a plain INSERT IGNORE keeps existing rows
			query = fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)",
				e.dialect.QuoteIdentifier(table.Name),
				strings.Join(quoted, ","),
				strings.Join(placeholders, ","))
		} else {
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
				e.dialect.QuoteIdentifier(table.Name),
				strings.Join(quoted, ","),
				strings.Join(placeholders, ","),
				strings.Join(setClauses, ", "))
		}
	case dbfixture.DialectPostgres, dbfixture.DialectSQLite:
		if len(setClauses) == 0 {
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
				e.dialect.QuoteIdentifier(table.Name),
				strings.Join(quoted, ","),
				strings.Join(placeholders, ","),
				strings.Join(quotedPKs, ","))
		} else {
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
				e.dialect.QuoteIdentifier(table.Name),
				strings.Join(quoted, ","),
				strings.Join(placeholders, ","),
				strings.Join(quotedPKs, ","),
				strings.Join(setClauses, ", "))
		}
	default:
		return fmt.Errorf("%w: refresh on dialect %s", dbfixture.ErrUnsupportedOperation, e.dialect)
	}

	if _, err := e.db.ExecContext(ctx, query, values...); err != nil {
		return err
	}

	return nil
}
