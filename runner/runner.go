// Package runner orchestrates the database fixture lifecycle around one test:
// setup datasets before the body, teardown and expectation verification after it,
// and guaranteed connection release at the end. The host test framework calls
// BeforeTest and AfterTest; everything in between stays outside this package.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/assertion"
	"github.com/shibukawa/dbfixture/dataset"
	"github.com/shibukawa/dbfixture/directive"
)

// TestContext carries the per-test state the lifecycle hooks operate on. The host
// framework fills TestFailure before AfterTest when the test body failed.
type TestContext struct {
	TestClass   string
	TestMethod  string
	TestFailure error
	Connections *ConnectionRegistry
	Loader      dataset.Loader

	executionID string
}

// Runner resolves directives and drives setup, verification and teardown.
// A Runner is safe to share across sequentially executed tests; per-test state
// lives in the TestContext.
type Runner struct {
	directives     *directive.Registry
	loader         dataset.Loader
	filters        map[string]func() assertion.ColumnFilter
	modifiers      map[string]func() dataset.Modifier
	logger         zerolog.Logger
	combineRows    bool
	teardownPolicy string
}

// New creates a Runner over the given directive registry and default dataset loader.
func New(directives *directive.Registry, loader dataset.Loader) *Runner {
	return &Runner{
		directives:     directives,
		loader:         loader,
		filters:        make(map[string]func() assertion.ColumnFilter),
		modifiers:      make(map[string]func() dataset.Modifier),
		logger:         zerolog.Nop(),
		teardownPolicy: dbfixture.TeardownFailFast,
	}
}

// SetLogger replaces the runner's logger. The default discards everything.
func (r *Runner) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// SetCombineRows switches composite dataset collision handling from first-wins to
// row appending.
func (r *Runner) SetCombineRows(combine bool) {
	r.combineRows = combine
}

// SetTeardownPolicy selects fail-fast (default) or best-effort teardown.
func (r *Runner) SetTeardownPolicy(policy string) {
	r.teardownPolicy = policy
}

// RegisterColumnFilter binds a symbolic filter identifier to a constructor, making
// it referencable from expectation directives.
func (r *Runner) RegisterColumnFilter(id string, factory func() assertion.ColumnFilter) {
	r.filters[id] = factory
}

// RegisterModifier binds a symbolic dataset modifier identifier to a constructor.
func (r *Runner) RegisterModifier(id string, factory func() dataset.Modifier) {
	r.modifiers[id] = factory
}

// BeforeTest resolves and applies the setup directives for the test. Any failure
// aborts the remaining directives and must abort the test.
func (r *Runner) BeforeTest(ctx context.Context, tc *TestContext) error {
	tc.executionID = uuid.NewString()

	set, err := r.directives.Resolve(tc.TestClass, tc.TestMethod, directive.KindSetup)
	if err != nil {
		return err
	}

	r.log(tc).Debug().Int("directives", len(set.All())).Msg("applying setup directives")

	return r.apply(ctx, tc, set, true)
}

// AfterTest verifies expectations (unless the test body failed), runs teardown and
// finally releases every connection. Exactly one failure surfaces: a verification
// failure wins over a teardown failure, and a teardown failure after a test body
// failure is demoted to a warning. Connection release always executes and surfaces
// its own error only when nothing else failed.
func (r *Runner) AfterTest(ctx context.Context, tc *TestContext) (err error) {
	defer func() {
		cerr := tc.Connections.CloseAll()
		if cerr == nil {
			return
		}

		if err == nil && tc.TestFailure == nil {
			err = cerr
		} else {
			r.log(tc).Warn().Err(cerr).Msg("connection release failed after earlier failure")
		}
	}()

	verifyErr := r.verifyExpectations(ctx, tc)

	teardownErr := r.runTeardown(ctx, tc)
	if teardownErr != nil {
		if tc.TestFailure != nil || verifyErr != nil {
			r.log(tc).Warn().Err(teardownErr).Msg("suppressing teardown failure due to existing test failure")
		} else {
			return fmt.Errorf("%w: %w", dbfixture.ErrTeardown, teardownErr)
		}
	}

	return verifyErr
}

func (r *Runner) runTeardown(ctx context.Context, tc *TestContext) error {
	set, err := r.directives.Resolve(tc.TestClass, tc.TestMethod, directive.KindTeardown)
	if err != nil {
		return err
	}

	r.log(tc).Debug().Int("directives", len(set.All())).Msg("applying teardown directives")

	return r.apply(ctx, tc, set, false)
}

// apply executes setup or teardown directives in document order: class-level
// declarations first, then method-level. A directive without dataset locations is
// a no-op. During setup the first failure aborts the remaining directives; during
// teardown the configured policy decides between fail-fast and best-effort.
func (r *Runner) apply(ctx context.Context, tc *TestContext, set *directive.DirectiveSet, isSetup bool) error {
	var errs []error

	for _, d := range set.All() {
		if !d.HasLocations() {
			continue
		}

		err := r.applyDirective(ctx, tc, d)
		if err == nil {
			continue
		}

		if isSetup || r.teardownPolicy == dbfixture.TeardownFailFast {
			return err
		}

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (r *Runner) applyDirective(ctx context.Context, tc *TestContext, d directive.Directive) error {
	// connection lookup precedes dataset loading: a misconfigured connection
	// identifier must fail before anything touches the database or the filesystem
	conn, err := tc.Connections.Get(d.Connection)
	if err != nil {
		return err
	}

	ds, err := r.loadDatasets(tc, d.Locations, nil)
	if err != nil {
		return err
	}

	r.log(tc).Debug().
		Str("operation", string(d.Operation)).
		Str("connection", conn.Name).
		Strs("locations", d.Locations).
		Msg("executing dataset operation")

	return conn.Executor.Execute(ctx, d.Operation, ds)
}

// loadDatasets loads every non-empty location and composes the results into one
// dataset, applying the modifier chain when one is supplied.
func (r *Runner) loadDatasets(tc *TestContext, locations []string, modifiers dataset.Modifiers) (*dataset.Dataset, error) {
	loader := tc.Loader
	if loader == nil {
		loader = r.loader
	}

	var sets []*dataset.Dataset

	for _, location := range locations {
		if location == "" {
			continue
		}

		ds, err := loader.LoadDataset(tc.TestClass, location)
		if err != nil {
			return nil, err
		}

		sets = append(sets, ds)
	}

	composed := dataset.Compose(r.combineRows, sets...)

	return modifiers.Modify(composed), nil
}

func (r *Runner) log(tc *TestContext) *zerolog.Logger {
	logger := r.logger.With().
		Str("test_class", tc.TestClass).
		Str("test_method", tc.TestMethod).
		Str("execution_id", tc.executionID).
		Logger()

	return &logger
}
