// Package directive models the declarative setup, teardown and expectation
// instructions attached to a test class or test method, and resolves which of them
// apply to one test execution. Directives are registered explicitly at
// test-registration time; there is no runtime reflection involved.
package directive

import "github.com/shibukawa/dbfixture"

// Kind discriminates the three directive families.
type Kind int

const (
	// KindSetup loads datasets before the test body.
	KindSetup Kind = iota
	// KindTeardown loads datasets after the test body.
	KindTeardown
	// KindExpectation verifies database state after the test body.
	KindExpectation
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindTeardown:
		return "teardown"
	case KindExpectation:
		return "expectation"
	default:
		return "unknown"
	}
}

// Directive is one declarative fixture instruction. Locations reference datasets
// resolvable by the configured loader; Connection selects a registered database
// connection (empty selects the default). Operation applies to setup and teardown
// directives only; the remaining fields apply to expectation directives only.
type Directive struct {
	Kind          Kind
	Locations     []string
	Connection    string
	Operation     dbfixture.Operation
	Override      bool
	Table         string
	Query         string
	AssertionMode dbfixture.AssertionMode
	ColumnFilters []string
	Modifiers     []string
}

// Setup declares a setup directive applying op to the given dataset locations.
func Setup(op dbfixture.Operation, locations ...string) Directive {
	return Directive{Kind: KindSetup, Operation: op, Locations: locations}
}

// Teardown declares a teardown directive applying op to the given dataset locations.
func Teardown(op dbfixture.Operation, locations ...string) Directive {
	return Directive{Kind: KindTeardown, Operation: op, Locations: locations}
}

// Expect declares an expectation directive verifying the given expected datasets
// in Strict mode against the default connection.
func Expect(locations ...string) Directive {
	return Directive{Kind: KindExpectation, Locations: locations, AssertionMode: dbfixture.Strict}
}

// OnConnection targets the directive at a named connection.
func (d Directive) OnConnection(name string) Directive {
	d.Connection = name
	return d
}

// WithOverride marks a method-level expectation as suppressing class-level expectations.
func (d Directive) WithOverride() Directive {
	d.Override = true
	return d
}

// WithTable scopes an expectation to a single table.
func (d Directive) WithTable(table string) Directive {
	d.Table = table
	return d
}

// WithQuery scopes an expectation to a SQL query result. A table name is still
// required; verification fails otherwise.
func (d Directive) WithQuery(query string) Directive {
	d.Query = query
	return d
}

// WithMode selects the assertion mode for an expectation.
func (d Directive) WithMode(mode dbfixture.AssertionMode) Directive {
	d.AssertionMode = mode
	return d
}

// WithColumnFilters attaches symbolic column filter references, resolved through
// the runner's filter registry at verification time.
func (d Directive) WithColumnFilters(ids ...string) Directive {
	d.ColumnFilters = ids
	return d
}

// WithModifiers attaches symbolic dataset modifier references, resolved through
// the runner's modifier registry at verification time.
func (d Directive) WithModifiers(ids ...string) Directive {
	d.Modifiers = ids
	return d
}

// HasLocations reports whether the directive declares any non-empty dataset location.
// Directives without locations are silently skipped by the applicator and verifier.
func (d Directive) HasLocations() bool {
	for _, loc := range d.Locations {
		if loc != "" {
			return true
		}
	}

	return false
}
