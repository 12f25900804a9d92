package directive

import (
	"fmt"

	"github.com/shibukawa/dbfixture"
)

// Registry is the declarative mapping from test identity to directives. Each scope
// (one test class, or one method of a class) holds at most one directly declared
// directive per kind plus an ordered repeatable group per kind, mirroring a single
// annotation next to its repeatable container.
type Registry struct {
	scopes  map[scopeKey]*scopeEntry
	classes map[string]map[string]bool
}

type scopeKey struct {
	class  string
	method string
}

type scopeEntry struct {
	direct map[Kind]*Directive
	group  map[Kind][]Directive
}

func newScopeEntry() *scopeEntry {
	return &scopeEntry{
		direct: make(map[Kind]*Directive),
		group:  make(map[Kind][]Directive),
	}
}

// NewRegistry creates an empty directive registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes:  make(map[scopeKey]*scopeEntry),
		classes: make(map[string]map[string]bool),
	}
}

// Class declares the single class-level directive of its kind. Declaring a second
// directive of the same kind replaces the first; use ClassGroup for repeatable
// declarations.
func (r *Registry) Class(class string, d Directive) *Registry {
	entry := r.scope(class, "")
	entry.direct[d.Kind] = &d

	return r
}

// ClassGroup appends repeatable class-level directives in declaration order.
func (r *Registry) ClassGroup(class string, ds ...Directive) *Registry {
	entry := r.scope(class, "")
	for _, d := range ds {
		entry.group[d.Kind] = append(entry.group[d.Kind], d)
	}

	return r
}

// Method declares the single method-level directive of its kind.
func (r *Registry) Method(class, method string, d Directive) *Registry {
	entry := r.scope(class, method)
	entry.direct[d.Kind] = &d

	return r
}

// MethodGroup appends repeatable method-level directives in declaration order.
func (r *Registry) MethodGroup(class, method string, ds ...Directive) *Registry {
	entry := r.scope(class, method)
	for _, d := range ds {
		entry.group[d.Kind] = append(entry.group[d.Kind], d)
	}

	return r
}

func (r *Registry) scope(class, method string) *scopeEntry {
	if method != "" {
		methods, ok := r.classes[class]
		if !ok {
			methods = make(map[string]bool)
			r.classes[class] = methods
		}

		methods[method] = true
	}

	key := scopeKey{class: class, method: method}

	entry, ok := r.scopes[key]
	if !ok {
		entry = newScopeEntry()
		r.scopes[key] = entry
	}

	return entry
}

// Resolve discovers the directives of one kind applying to a test execution. The
// directly declared directive of each scope comes first, followed by that scope's
// repeatable group in declaration order. Resolution is pure: the registry is not
// mutated and results are built fresh on every call.
func (r *Registry) Resolve(class, method string, kind Kind) (*DirectiveSet, error) {
	if method != "" {
		if owner, registered := r.methodOwner(method); registered && owner != class {
			return nil, fmt.Errorf("%w: %s declared on %s, resolved for %s", dbfixture.ErrUnknownTestMethod, method, owner, class)
		}
	}

	classLevel := r.flatten(scopeKey{class: class}, kind)
	methodLevel := r.flatten(scopeKey{class: class, method: method}, kind)

	return newDirectiveSet(classLevel, methodLevel), nil
}

func (r *Registry) methodOwner(method string) (string, bool) {
	for class, methods := range r.classes {
		if methods[method] {
			return class, true
		}
	}

	return "", false
}

func (r *Registry) flatten(key scopeKey, kind Kind) []Directive {
	entry, ok := r.scopes[key]
	if !ok {
		return nil
	}

	var out []Directive

	if d := entry.direct[kind]; d != nil {
		out = append(out, *d)
	}

	out = append(out, entry.group[kind]...)

	return out
}

// DirectiveSet is the resolved, read-only collection of directives for one test
// execution, partitioned by declaring scope. The combined view lists class-level
// directives before method-level ones; setup and teardown execute in that order,
// while expectation override resolution walks method-level directives first.
type DirectiveSet struct {
	classLevel  []Directive
	methodLevel []Directive
	all         []Directive
}

func newDirectiveSet(classLevel, methodLevel []Directive) *DirectiveSet {
	all := make([]Directive, 0, len(classLevel)+len(methodLevel))
	all = append(all, classLevel...)
	all = append(all, methodLevel...)

	return &DirectiveSet{
		classLevel:  classLevel,
		methodLevel: methodLevel,
		all:         all,
	}
}

// ClassLevel returns the class-level directives in declaration order.
func (s *DirectiveSet) ClassLevel() []Directive {
	return append([]Directive(nil), s.classLevel...)
}

// MethodLevel returns the method-level directives in declaration order.
func (s *DirectiveSet) MethodLevel() []Directive {
	return append([]Directive(nil), s.methodLevel...)
}

// All returns class-level then method-level directives as a fresh slice.
func (s *DirectiveSet) All() []Directive {
	return append([]Directive(nil), s.all...)
}

// Empty reports whether the set holds no directives at all.
func (s *DirectiveSet) Empty() bool {
	return len(s.all) == 0
}
