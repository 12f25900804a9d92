package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shibukawa/dbfixture"
)

// introspectPrimaryKeys reads a table's primary key columns from the live schema.
func introspectPrimaryKeys(ctx context.Context, db *sql.DB, dialect dbfixture.Dialect, tableName string) ([]string, error) {
	switch dialect {
	case dbfixture.DialectSQLite:
		return sqlitePrimaryKeys(ctx, db, dialect, tableName)
	case dbfixture.DialectPostgres:
		return queryColumnNames(ctx, db, `
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = $1
			ORDER BY kcu.ordinal_position`, tableName)
	case dbfixture.DialectMySQL:
		return queryColumnNames(ctx, db, `
			SELECT column_name
			FROM information_schema.key_column_usage
			WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
			ORDER BY ordinal_position`, tableName)
	default:
		return nil, fmt.Errorf("%w: schema introspection on dialect %s", dbfixture.ErrUnsupportedOperation, dialect)
	}
}

func sqlitePrimaryKeys(ctx context.Context, db *sql.DB, dialect dbfixture.Dialect, tableName string) ([]string, error) {
	// PRAGMA does not accept bind parameters
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", dialect.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", tableName, err)
	}
	defer rows.Close()

	type pkColumn struct {
		name string
		seq  int
	}

	var pkColumns []pkColumn

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)

		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info row: %w", err)
		}

		if pk > 0 {
			pkColumns = append(pkColumns, pkColumn{name: name, seq: pk})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pkColumns, func(i, j int) bool { return pkColumns[i].seq < pkColumns[j].seq })

	out := make([]string, len(pkColumns))
	for i, c := range pkColumns {
		out[i] = c.name
	}

	return out, nil
}

// listTables returns the user table names visible on the connection.
func listTables(ctx context.Context, db *sql.DB, dialect dbfixture.Dialect) ([]string, error) {
	switch dialect {
	case dbfixture.DialectSQLite:
		return queryColumnNames(ctx, db,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	case dbfixture.DialectPostgres:
		return queryColumnNames(ctx, db,
			`SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename`)
	case dbfixture.DialectMySQL:
		return queryColumnNames(ctx, db,
			`SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`)
	default:
		return nil, fmt.Errorf("%w: table listing on dialect %s", dbfixture.ErrUnsupportedOperation, dialect)
	}
}

func queryColumnNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema metadata: %w", err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema metadata row: %w", err)
		}

		names = append(names, name)
	}

	return names, rows.Err()
}
