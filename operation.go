package dbfixture

import "fmt"

// Operation represents a database operation applied to a dataset during setup or teardown.
type Operation string

const (
	// OperationInsert inserts dataset rows, leaving existing rows untouched.
	OperationInsert Operation = "insert"
	// OperationCleanInsert deletes all rows from the dataset's tables, then inserts.
	OperationCleanInsert Operation = "clean-insert"
	// OperationDelete deletes only the rows named by the dataset (matched by primary key).
	OperationDelete Operation = "delete"
	// OperationDeleteAll deletes all rows from the dataset's tables.
	OperationDeleteAll Operation = "delete-all"
	// OperationUpdate updates existing rows matched by primary key.
	OperationUpdate Operation = "update"
	// OperationRefresh inserts rows or updates them when the primary key already exists.
	OperationRefresh Operation = "refresh"
	// OperationTruncate truncates the dataset's tables.
	OperationTruncate Operation = "truncate"
	// OperationNone performs no database mutation.
	OperationNone Operation = "none"
)

// ParseOperation converts a configuration string into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationInsert, OperationCleanInsert, OperationDelete, OperationDeleteAll,
		OperationUpdate, OperationRefresh, OperationTruncate, OperationNone:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOperation, s)
	}
}

// AssertionMode represents the comparison policy for expected database verification.
type AssertionMode int

const (
	// Strict fails on any column or row difference between expected and actual tables.
	Strict AssertionMode = iota
	// NonStrict ignores tables and columns that exist only in the actual database state.
	NonStrict
)

func (m AssertionMode) String() string {
	if m == NonStrict {
		return "non-strict"
	}

	return "strict"
}
