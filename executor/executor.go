// Package executor performs dataset-driven database operations (insert,
// clean-insert, delete, update, refresh, truncate) against a live connection and
// fetches actual database state back as datasets for verification. SQL generation
// is dialect-aware for postgres, mysql and sqlite.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/dataset"
)

// TableInfo carries the schema details the executor needs: primary key columns
// for row-targeted operations and deterministic fetch ordering.
type TableInfo struct {
	Name        string
	PrimaryKeys []string
}

// Executor executes dataset operations against a single database connection.
type Executor struct {
	db        *sql.DB
	dialect   dbfixture.Dialect
	tableInfo map[string]*TableInfo
}

// New creates an executor for the given connection and dialect.
func New(db *sql.DB, dialect dbfixture.Dialect) *Executor {
	return &Executor{
		db:        db,
		dialect:   dialect,
		tableInfo: make(map[string]*TableInfo),
	}
}

// SetTableInfo injects or replaces schema information. Primarily used by tests
// that build an in-memory schema on the fly; normal callers rely on lazy
// introspection instead.
func (e *Executor) SetTableInfo(info map[string]*TableInfo) {
	if info != nil {
		e.tableInfo = info
	}
}

// DB exposes the underlying connection for query-scoped verification.
func (e *Executor) DB() *sql.DB {
	return e.db
}

// Dialect returns the executor's SQL dialect.
func (e *Executor) Dialect() dbfixture.Dialect {
	return e.dialect
}

// Execute applies the named operation to every table of the dataset.
func (e *Executor) Execute(ctx context.Context, op dbfixture.Operation, ds *dataset.Dataset) error {
	switch op {
	case dbfixture.OperationNone:
		return nil
	case dbfixture.OperationInsert:
		return e.insertDataSet(ctx, ds)
	case dbfixture.OperationCleanInsert:
		if err := e.deleteAll(ctx, ds); err != nil {
			return err
		}

		return e.insertDataSet(ctx, ds)
	case dbfixture.OperationDelete:
		return e.deleteRows(ctx, ds)
	case dbfixture.OperationDeleteAll:
		return e.deleteAll(ctx, ds)
	case dbfixture.OperationUpdate:
		return e.updateRows(ctx, ds)
	case dbfixture.OperationRefresh:
		return e.refreshRows(ctx, ds)
	case dbfixture.OperationTruncate:
		return e.truncate(ctx, ds)
	default:
		return fmt.Errorf("%w: %s", dbfixture.ErrUnsupportedOperation, op)
	}
}

func (e *Executor) insertDataSet(ctx context.Context, ds *dataset.Dataset) error {
	for _, name := range ds.TableNames() {
		table, _ := ds.Table(name)

		if err := e.insertData(ctx, table); err != nil {
			return fmt.Errorf("failed to insert into table %s: %w", name, err)
		}
	}

	return nil
}

// insertData inserts all rows of one table through a prepared statement.
func (e *Executor) insertData(ctx context.Context, table *dataset.Table) error {
	if len(table.Rows) == 0 {
		return nil
	}

	quoted := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))

	for i, col := range table.Columns {
		quoted[i] = e.dialect.QuoteIdentifier(col)
		placeholders[i] = e.dialect.Placeholder(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.dialect.QuoteIdentifier(table.Name),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))

	stmt, err := e.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range table.Rows {
		values := make([]any, len(table.Columns))
		for i, col := range table.Columns {
			values[i] = row[col]
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	return nil
}

// deleteAll clears every table of the dataset in reverse declaration order, so
// dependent tables empty before the tables they reference.
func (e *Executor) deleteAll(ctx context.Context, ds *dataset.Dataset) error {
	names := ds.TableNames()

	for i := len(names) - 1; i >= 0; i-- {
		query := "DELETE FROM " + e.dialect.QuoteIdentifier(names[i])
		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", names[i], err)
		}
	}

	return nil
}

// truncate empties every dataset table with TRUNCATE, falling back to DELETE on
// sqlite which has no TRUNCATE statement.
func (e *Executor) truncate(ctx context.Context, ds *dataset.Dataset) error {
	names := ds.TableNames()

	for i := len(names) - 1; i >= 0; i-- {
		var query string
		if e.dialect == dbfixture.DialectSQLite {
			query = "DELETE FROM " + e.dialect.QuoteIdentifier(names[i])
		} else {
			query = "TRUNCATE TABLE " + e.dialect.QuoteIdentifier(names[i])
		}

		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", names[i], err)
		}
	}

	return nil
}

// deleteRows deletes exactly the dataset's rows, matched by primary key.
func (e *Executor) deleteRows(ctx context.Context, ds *dataset.Dataset) error {
	names := ds.TableNames()

	for i := len(names) - 1; i >= 0; i-- {
		table, _ := ds.Table(names[i])

		pkCols, err := e.primaryKeys(ctx, table.Name)
		if err != nil {
			return err
		}

		for _, row := range table.Rows {
			where, values, err := e.pkPredicate(table.Name, pkCols, row, 1)
			if err != nil {
				return err
			}

			query := fmt.Sprintf("DELETE FROM %s WHERE %s", e.dialect.QuoteIdentifier(table.Name), where)
			if _, err := e.db.ExecContext(ctx, query, values...); err != nil {
				return fmt.Errorf("failed to delete from table %s: %w", table.Name, err)
			}
		}
	}

	return nil
}

// updateRows updates the non-key columns of rows matched by primary key.
func (e *Executor) updateRows(ctx context.Context, ds *dataset.Dataset) error {
	for _, name := range ds.TableNames() {
		table, _ := ds.Table(name)

		pkCols, err := e.primaryKeys(ctx, name)
		if err != nil {
			return err
		}

		pkSet := make(map[string]bool, len(pkCols))
		for _, pk := range pkCols {
			pkSet[pk] = true
		}

		for _, row := range table.Rows {
			var (
				setClauses []string
				values     []any
				idx        = 1
			)

			for _, col := range table.Columns {
				if pkSet[col] {
					continue
				}

				setClauses = append(setClauses, fmt.Sprintf("%s = %s", e.dialect.QuoteIdentifier(col), e.dialect.Placeholder(idx)))
				values = append(values, row[col])
				idx++
			}

			if len(setClauses) == 0 {
				continue
			}

			where, pkValues, err := e.pkPredicate(name, pkCols, row, idx)
			if err != nil {
				return err
			}

			values = append(values, pkValues...)

			query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
				e.dialect.QuoteIdentifier(name), strings.Join(setClauses, ", "), where)
			if _, err := e.db.ExecContext(ctx, query, values...); err != nil {
				return fmt.Errorf("failed to update table %s: %w", name, err)
			}
		}
	}

	return nil
}

// pkPredicate builds a WHERE clause matching all primary key columns of a row.
// Placeholder numbering starts at startIdx for dialects with positional parameters.
func (e *Executor) pkPredicate(tableName string, pkCols []string, row dataset.Row, startIdx int) (string, []any, error) {
	var (
		clauses []string
		values  []any
	)

	for i, pk := range pkCols {
		val, exists := row[pk]
		if !exists {
			return "", nil, fmt.Errorf("%w: %s (table %s)", dbfixture.ErrPrimaryKeyMissing, pk, tableName)
		}

		clauses = append(clauses, fmt.Sprintf("%s = %s", e.dialect.QuoteIdentifier(pk), e.dialect.Placeholder(startIdx+i)))
		values = append(values, val)
	}

	return strings.Join(clauses, " AND "), values, nil
}

// primaryKeys returns the primary key columns of a table, introspecting the live
// schema on first use and caching the result for the executor's lifetime.
func (e *Executor) primaryKeys(ctx context.Context, tableName string) ([]string, error) {
	if info, ok := e.tableInfo[tableName]; ok {
		if len(info.PrimaryKeys) == 0 {
			return nil, fmt.Errorf("%w: %s", dbfixture.ErrNoPrimaryKey, tableName)
		}

		return info.PrimaryKeys, nil
	}

	pkCols, err := introspectPrimaryKeys(ctx, e.db, e.dialect, tableName)
	if err != nil {
		return nil, err
	}

	e.tableInfo[tableName] = &TableInfo{Name: tableName, PrimaryKeys: pkCols}

	if len(pkCols) == 0 {
		return nil, fmt.Errorf("%w: %s", dbfixture.ErrNoPrimaryKey, tableName)
	}

	return pkCols, nil
}
