package assertion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/shibukawa/dbfixture"
)

var (
	tableHeaderFmt  = color.New(color.FgBlue, color.Bold).SprintfFunc()
	expectFieldFmt  = color.New(color.FgGreen).SprintfFunc()
	actualFieldFmt  = color.New(color.FgRed).SprintfFunc()
	reasonFieldFmt  = color.New(color.FgYellow).SprintfFunc()
	columnListField = color.New(color.FgCyan).SprintfFunc()
)

// FailureError is the structured comparison failure. Row is -1 for table-level
// failures (schema or row count); Column is empty unless a single cell mismatched.
type FailureError struct {
	Table    string
	Column   string
	Row      int
	Reason   string
	Expected any
	Actual   any
	Diff     *ColumnDiff
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: table %s", e.Reason, e.Table)

	if e.Column != "" {
		fmt.Fprintf(&b, ", column %s", e.Column)
	}

	if e.Row >= 0 {
		fmt.Fprintf(&b, ", row %d", e.Row)
	}

	if e.Diff != nil {
		if len(e.Diff.ExpectedOnly) > 0 {
			fmt.Fprintf(&b, ", expected-only columns [%s]", strings.Join(e.Diff.ExpectedOnly, ", "))
		}

		if len(e.Diff.ActualOnly) > 0 {
			fmt.Fprintf(&b, ", actual-only columns [%s]", strings.Join(e.Diff.ActualOnly, ", "))
		}
	} else {
		fmt.Fprintf(&b, ": expected %v, got %v", e.Expected, e.Actual)
	}

	return b.String()
}

// Unwrap ties every comparison failure to dbfixture.ErrAssertionMismatch.
func (e *FailureError) Unwrap() error {
	return dbfixture.ErrAssertionMismatch
}

// AsFailure attempts to extract a FailureError from the error chain.
func AsFailure(err error) (*FailureError, bool) {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe, true
	}

	return nil, false
}

// FormatFailure renders a FailureError as a colored report ready for CLI output.
func FormatFailure(e *FailureError) string {
	if e == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(tableHeaderFmt("Table: %s\n", e.Table))
	b.WriteString(reasonFieldFmt("%s\n", e.Reason))

	if e.Diff != nil {
		if len(e.Diff.ExpectedOnly) > 0 {
			b.WriteString(columnListField("expected only: %s\n", strings.Join(e.Diff.ExpectedOnly, ", ")))
		}

		if len(e.Diff.ActualOnly) > 0 {
			b.WriteString(columnListField("actual only: %s\n", strings.Join(e.Diff.ActualOnly, ", ")))
		}

		return strings.TrimRight(b.String(), "\n")
	}

	location := ""
	if e.Column != "" {
		location = fmt.Sprintf("%s ", e.Column)
	}

	if e.Row >= 0 {
		location += fmt.Sprintf("(row %d) ", e.Row)
	}

	b.WriteString(expectFieldFmt("- %sexpected: %v\n", location, e.Expected))
	b.WriteString(actualFieldFmt("+ %sactual:   %v\n", location, e.Actual))

	return strings.TrimRight(b.String(), "\n")
}
