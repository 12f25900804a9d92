package dbfixture

import "errors"

// Common errors used throughout the dbfixture package
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")

	// Dataset errors

	// ErrDatasetLoad indicates a declared dataset location could not be resolved or parsed.
	ErrDatasetLoad = errors.New("failed to load dataset")
	// ErrTableNotFound indicates a named table was not present in a dataset.
	ErrTableNotFound = errors.New("table not found in dataset")
	// ErrInvalidCSVFormat indicates the CSV file lacks a header row.
	ErrInvalidCSVFormat = errors.New("CSV must have at least a header row")
	// ErrUnknownModifier indicates a symbolic modifier reference has no registered factory.
	ErrUnknownModifier = errors.New("unknown dataset modifier")

	// Connection errors

	// ErrUnknownConnection indicates a directive references a connection identifier that is not registered.
	ErrUnknownConnection = errors.New("unknown database connection")
	// ErrNoDefaultConnection indicates no connection is designated as the default.
	ErrNoDefaultConnection = errors.New("no default database connection configured")
	// ErrRegistryClosed indicates a connection lookup after the registry released its connections.
	ErrRegistryClosed = errors.New("connection registry already closed")

	// Executor errors

	// ErrUnsupportedOperation indicates a directive declares an operation with no backing executor.
	ErrUnsupportedOperation = errors.New("unsupported database operation")
	// ErrNoPrimaryKey indicates an operation requires primary key information that the table lacks.
	ErrNoPrimaryKey = errors.New("no primary key defined")
	// ErrPrimaryKeyMissing indicates a dataset row omits a primary key column required by the operation.
	ErrPrimaryKeyMissing = errors.New("primary key column missing in dataset row")

	// Assertion errors

	// ErrAssertionMismatch indicates the expected and actual database state differ.
	ErrAssertionMismatch = errors.New("database assertion mismatch")
	// ErrQueryRequiresTable indicates an expectation declares a query without the mandatory table name.
	ErrQueryRequiresTable = errors.New("table name must be specified when using a SQL query")
	// ErrUnknownColumnFilter indicates a symbolic column filter reference has no registered factory.
	ErrUnknownColumnFilter = errors.New("unknown column filter")

	// Lifecycle errors

	// ErrTeardown indicates an operation failed during the teardown phase.
	ErrTeardown = errors.New("teardown failed")
	// ErrUnknownTestMethod indicates a directive resolution for a method that does not belong to the class.
	ErrUnknownTestMethod = errors.New("test method does not belong to test class")
)
