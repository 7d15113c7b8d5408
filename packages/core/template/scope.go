package template

import "sort"

// Variable is either a literal JSON value or a generator evaluated each time
// the variable is read.
type Variable struct {
	value    any
	generate func() any
}

// Literal wraps a plain value.
func Literal(v any) Variable {
	return Variable{value: v}
}

// Generator wraps a function evaluated at substitution time.
func Generator(fn func() any) Variable {
	return Variable{generate: fn}
}

// IsGenerator reports whether v is evaluated lazily.
func (v Variable) IsGenerator() bool {
	return v.generate != nil
}

// Value returns the literal value, or a fresh value for generators.
func (v Variable) Value() any {
	if v.generate != nil {
		return v.generate()
	}
	return v.value
}

// Scope is the layered variable bag threaded through execution. Scopes are
// values: every method that changes content works on a copy, so a scope
// handed to a concurrent branch is never mutated behind its back.
type Scope map[string]Variable

// NewScope builds a scope of literals.
func NewScope(values map[string]any) Scope {
	s := make(Scope, len(values))
	for k, v := range values {
		s[k] = Literal(v)
	}
	return s
}

// Clone returns a shallow copy.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a copy of s overlaid with others, later scopes winning.
func (s Scope) Merge(others ...Scope) Scope {
	out := s.Clone()
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// With returns a copy of s overlaid with literal values.
func (s Scope) With(values map[string]any) Scope {
	return s.Merge(NewScope(values))
}

// Set assigns a literal in place. Only call it on a scope the caller owns.
func (s Scope) Set(name string, value any) {
	s[name] = Literal(value)
}

// Lookup returns the current value of name.
func (s Scope) Lookup(name string) (any, bool) {
	v, ok := s[name]
	if !ok {
		return nil, false
	}
	return v.Value(), true
}

// Values evaluates every variable, generators included.
func (s Scope) Values() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v.Value()
	}
	return out
}

// Literals returns only the literal variables.
func (s Scope) Literals() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		if !v.IsGenerator() {
			out[k] = v.value
		}
	}
	return out
}

// Names returns the variable names in sorted order.
func (s Scope) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
