package runner

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/executor"
)

// Connection is one named database connection with its dialect-aware executor.
type Connection struct {
	Name     string
	Dialect  dbfixture.Dialect
	DB       *sql.DB
	Executor *executor.Executor
}

// ConnectionRegistry owns the database connections of one test execution.
// Connections open lazily on first lookup and are cached by identifier until
// CloseAll releases every one of them exactly once. Each concurrently executing
// test must use its own registry instance.
type ConnectionRegistry struct {
	configs     map[string]dbfixture.Database
	defaultName string
	opened      map[string]*Connection
	closed      bool
}

// NewConnectionRegistry creates a registry over the configured databases.
// defaultName selects the connection used when a directive omits the connection
// identifier; it may be empty when exactly one database is declared.
func NewConnectionRegistry(databases map[string]dbfixture.Database, defaultName string) *ConnectionRegistry {
	return &ConnectionRegistry{
		configs:     databases,
		defaultName: defaultName,
		opened:      make(map[string]*Connection),
	}
}

// Register adds an already-open connection under the given name. Registered
// connections participate in CloseAll like lazily opened ones.
func (r *ConnectionRegistry) Register(name string, dialect dbfixture.Dialect, db *sql.DB) *Connection {
	conn := &Connection{
		Name:     name,
		Dialect:  dialect,
		DB:       db,
		Executor: executor.New(db, dialect),
	}

	r.opened[name] = conn

	if r.defaultName == "" {
		r.defaultName = name
	}

	return conn
}

// Get returns the connection for the identifier, opening it on first use. The
// empty identifier denotes the default connection. An undeclared identifier is a
// configuration defect, never silently ignored.
func (r *ConnectionRegistry) Get(name string) (*Connection, error) {
	if r.closed {
		return nil, dbfixture.ErrRegistryClosed
	}

	if name == "" {
		resolved, err := r.resolveDefault()
		if err != nil {
			return nil, err
		}

		name = resolved
	}

	if conn, ok := r.opened[name]; ok {
		return conn, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dbfixture.ErrUnknownConnection, name)
	}

	dialect := dbfixture.Dialect(cfg.Dialect)

	db, err := sql.Open(dialect.DriverName(), cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection %s: %w", name, err)
	}

	conn := &Connection{
		Name:     name,
		Dialect:  dialect,
		DB:       db,
		Executor: executor.New(db, dialect),
	}

	r.opened[name] = conn

	return conn, nil
}

func (r *ConnectionRegistry) resolveDefault() (string, error) {
	if r.defaultName != "" {
		return r.defaultName, nil
	}

	if len(r.configs) == 1 {
		for name := range r.configs {
			return name, nil
		}
	}

	return "", dbfixture.ErrNoDefaultConnection
}

// CloseAll releases every opened connection. It is idempotent: the first call
// closes and marks the registry closed, later calls are no-ops.
func (r *ConnectionRegistry) CloseAll() error {
	if r.closed {
		return nil
	}

	r.closed = true

	var errs []error

	for name, conn := range r.opened {
		if err := conn.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
