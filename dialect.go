package dbfixture

import "fmt"

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// QuoteIdentifier quotes a table or column identifier for the dialect.
func (d Dialect) QuoteIdentifier(identifier string) string {
	switch d {
	case DialectPostgres, DialectSQLite:
		return fmt.Sprintf(`"%s"`, identifier)
	case DialectMySQL:
		return fmt.Sprintf("`%s`", identifier)
	default:
		return identifier
	}
}

// Placeholder returns the bind parameter placeholder for the given 1-based position.
func (d Dialect) Placeholder(position int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", position)
	}

	return "?"
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}
