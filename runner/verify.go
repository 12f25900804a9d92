package runner

import (
	"context"
	"fmt"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/assertion"
	"github.com/shibukawa/dbfixture/dataset"
	"github.com/shibukawa/dbfixture/directive"
)

// verifyExpectations evaluates the expectation directives that apply to the test.
// Verification is skipped entirely when the test body failed: asserting on a
// possibly inconsistent database would only produce misleading secondary failures.
//
// Method-level directives run first in declared order. When any of them declares
// override, class-level directives are not evaluated at all; otherwise each
// class-level directive runs independently afterwards.
func (r *Runner) verifyExpectations(ctx context.Context, tc *TestContext) error {
	if tc.TestFailure != nil {
		r.log(tc).Debug().Err(tc.TestFailure).Msg("skipping expectation verification due to test failure")
		return nil
	}

	set, err := r.directives.Resolve(tc.TestClass, tc.TestMethod, directive.KindExpectation)
	if err != nil {
		return err
	}

	if set.Empty() {
		return nil
	}

	modifiers, err := r.collectModifiers(set)
	if err != nil {
		return err
	}

	override := false

	for _, d := range set.MethodLevel() {
		if err := r.verifyDirective(ctx, tc, d, modifiers); err != nil {
			return err
		}

		override = override || d.Override
	}

	if override {
		return nil
	}

	for _, d := range set.ClassLevel() {
		if err := r.verifyDirective(ctx, tc, d, modifiers); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) verifyDirective(ctx context.Context, tc *TestContext, d directive.Directive, modifiers dataset.Modifiers) error {
	if !d.HasLocations() {
		return nil
	}

	expected, err := r.loadDatasets(tc, d.Locations, modifiers)
	if err != nil {
		return err
	}

	conn, err := tc.Connections.Get(d.Connection)
	if err != nil {
		return err
	}

	filters, err := r.resolveColumnFilters(d.ColumnFilters)
	if err != nil {
		return err
	}

	r.log(tc).Debug().
		Strs("locations", d.Locations).
		Str("mode", d.AssertionMode.String()).
		Str("connection", conn.Name).
		Msg("verifying expected database state")

	switch {
	case d.Query != "":
		if d.Table == "" {
			return dbfixture.ErrQueryRequiresTable
		}

		expectedTable, err := expected.MustTable(d.Table)
		if err != nil {
			return err
		}

		actualTable, err := conn.Executor.FetchQueryTable(ctx, d.Table, d.Query)
		if err != nil {
			return err
		}

		return assertion.CompareTables(expectedTable, actualTable, d.AssertionMode, filters)
	case d.Table != "":
		expectedTable, err := expected.MustTable(d.Table)
		if err != nil {
			return err
		}

		actualTable, err := conn.Executor.FetchTable(ctx, d.Table)
		if err != nil {
			return err
		}

		return assertion.CompareTables(expectedTable, actualTable, d.AssertionMode, filters)
	default:
		actual, err := conn.Executor.FetchDataSet(ctx)
		if err != nil {
			return err
		}

		return assertion.CompareDataSets(expected, actual, d.AssertionMode, filters)
	}
}

// collectModifiers resolves the modifier references declared on every expectation
// directive of the set into one chain, applied to each composite expected dataset.
func (r *Runner) collectModifiers(set *directive.DirectiveSet) (dataset.Modifiers, error) {
	var chain dataset.Modifiers

	for _, d := range set.All() {
		for _, id := range d.Modifiers {
			factory, ok := r.modifiers[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", dbfixture.ErrUnknownModifier, id)
			}

			chain = append(chain, factory())
		}
	}

	return chain, nil
}

func (r *Runner) resolveColumnFilters(ids []string) ([]assertion.ColumnFilter, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	filters := make([]assertion.ColumnFilter, 0, len(ids))

	for _, id := range ids {
		factory, ok := r.filters[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", dbfixture.ErrUnknownColumnFilter, id)
		}

		filters = append(filters, factory())
	}

	return filters, nil
}
