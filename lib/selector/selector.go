// Package selector implements attribute selectors: trees describing which
// attributes of a component (and of the components it holds) take part in an
// operation.
//
// A selector is one of three shapes:
//   - All: every attribute, expanded lazily against a concrete component
//   - None: nothing; absorbing at any depth
//   - a set of named sub-selectors; names that are not listed are excluded
//
// The zero value is None. Selectors are immutable: Set, Union, Intersect and
// Remove return new values.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSelector is returned when a value cannot be normalized into a
// selector.
var ErrInvalidSelector = errors.New("selector: invalid attribute selector")

type kind uint8

const (
	kindNone kind = iota
	kindAll
	kindSome
)

// Selector is an attribute selector. See the package documentation.
type Selector struct {
	kind kind
	sub  map[string]Selector
}

var (
	// All selects every attribute.
	All = Selector{kind: kindAll}
	// None selects nothing.
	None = Selector{}
)

// Empty returns a selector that names no attribute. Unlike None it still
// selects the component itself, so a component serialized with Empty keeps
// its type tag and identifiers.
func Empty() Selector {
	return Selector{kind: kindSome, sub: map[string]Selector{}}
}

// Of builds a selector from named sub-selectors.
func Of(fields map[string]Selector) Selector {
	s := Empty()
	for name, sub := range fields {
		s.sub[name] = sub
	}
	return s
}

// Names builds a selector including each name with All.
func Names(names ...string) Selector {
	s := Empty()
	for _, name := range names {
		s.sub[name] = All
	}
	return s
}

// Bool converts a boolean into All or None.
func Bool(b bool) Selector {
	if b {
		return All
	}
	return None
}

// Normalize canonicalizes shorthand input into a Selector.
//
// Accepted inputs: Selector, bool, nil (None), map[string]bool,
// map[string]Selector, a list of names, and map[string]any whose values are
// themselves accepted inputs.
func Normalize(v any) (Selector, error) {
	switch t := v.(type) {
	case nil:
		return None, nil
	case Selector:
		return t, nil
	case *Selector:
		if t == nil {
			return None, nil
		}
		return *t, nil
	case bool:
		return Bool(t), nil
	case map[string]bool:
		s := Empty()
		for name, b := range t {
			s.sub[name] = Bool(b)
		}
		return s, nil
	case map[string]Selector:
		return Of(t), nil
	case []string:
		return Names(t...), nil
	case []any:
		s := Empty()
		for _, raw := range t {
			name, ok := raw.(string)
			if !ok {
				return None, fmt.Errorf("%w: name list holds %T", ErrInvalidSelector, raw)
			}
			s.sub[name] = All
		}
		return s, nil
	case map[string]any:
		s := Empty()
		for name, raw := range t {
			sub, err := Normalize(raw)
			if err != nil {
				return None, fmt.Errorf("%s: %w", name, err)
			}
			s.sub[name] = sub
		}
		return s, nil
	default:
		return None, fmt.Errorf("%w: unsupported type %T", ErrInvalidSelector, v)
	}
}

// MustNormalize is like Normalize but panics on invalid input.
func MustNormalize(v any) Selector {
	s, err := Normalize(v)
	if err != nil {
		panic(err)
	}
	return s
}

// IsAll reports whether s selects everything.
func (s Selector) IsAll() bool { return s.kind == kindAll }

// IsNone reports whether s selects nothing.
func (s Selector) IsNone() bool { return s.kind == kindNone }

// IsObject reports whether s is a set of named sub-selectors.
func (s Selector) IsObject() bool { return s.kind == kindSome }

// Get returns the sub-selector for name.
//
// None yields None, All yields All, and an object yields the stored
// sub-selector or None when the name is absent.
func (s Selector) Get(name string) Selector {
	switch s.kind {
	case kindAll:
		return All
	case kindSome:
		return s.sub[name]
	default:
		return None
	}
}

// Has reports whether name is selected.
func (s Selector) Has(name string) bool {
	return !s.Get(name).IsNone()
}

// Set returns a copy of s with name mapped to sub.
//
// All already selects every name at every depth, so setting on All returns
// All. Setting on None materializes an object holding only name.
func (s Selector) Set(name string, sub Selector) Selector {
	if s.kind == kindAll {
		return All
	}
	out := s.clone()
	if out.kind != kindSome {
		out = Empty()
	}
	out.sub[name] = sub
	return out
}

// Delete returns a copy of s without name. Deleting from All or None is a
// no-op.
func (s Selector) Delete(name string) Selector {
	if s.kind != kindSome {
		return s
	}
	out := s.clone()
	delete(out.sub, name)
	return out
}

// Keys returns the explicitly listed names in sorted order, including names
// mapped to None.
func (s Selector) Keys() []string {
	if s.kind != kindSome {
		return nil
	}
	keys := make([]string, 0, len(s.sub))
	for name := range s.sub {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of names that are selected (mapped to something
// other than None).
func (s Selector) Len() int {
	n := 0
	for _, sub := range s.sub {
		if !sub.IsNone() {
			n++
		}
	}
	return n
}

// Clean returns s with every name mapped to None removed, recursively.
func (s Selector) Clean() Selector {
	if s.kind != kindSome {
		return s
	}
	out := Empty()
	for name, sub := range s.sub {
		if sub.IsNone() {
			continue
		}
		out.sub[name] = sub.Clean()
	}
	return out
}

// Equal reports whether s and other select the same tree. Names mapped to
// None are ignored.
func (s Selector) Equal(other Selector) bool {
	a, b := s.Clean(), other.Clean()
	if a.kind != b.kind {
		return false
	}
	if a.kind != kindSome {
		return true
	}
	if len(a.sub) != len(b.sub) {
		return false
	}
	for name, sub := range a.sub {
		o, ok := b.sub[name]
		if !ok || !sub.Equal(o) {
			return false
		}
	}
	return true
}

// Includes reports whether every attribute selected by other is also
// selected by s.
func (s Selector) Includes(other Selector) bool {
	switch {
	case other.IsNone():
		return true
	case s.IsNone():
		return false
	case s.IsAll():
		return true
	case other.IsAll():
		return false
	}
	for name, sub := range other.sub {
		if sub.IsNone() {
			continue
		}
		if !s.Get(name).Includes(sub) {
			return false
		}
	}
	return true
}

// Union returns a selector selecting what either a or b selects.
func Union(a, b Selector) Selector {
	switch {
	case a.IsAll() || b.IsAll():
		return All
	case a.IsNone():
		return b
	case b.IsNone():
		return a
	}
	out := a.clone()
	for name, sub := range b.sub {
		out.sub[name] = Union(out.sub[name], sub)
	}
	return out
}

// Intersect returns a selector selecting what both a and b select.
func Intersect(a, b Selector) Selector {
	switch {
	case a.IsNone() || b.IsNone():
		return None
	case a.IsAll():
		return b
	case b.IsAll():
		return a
	}
	out := Empty()
	for name, sub := range a.sub {
		other, ok := b.sub[name]
		if !ok {
			continue
		}
		if joined := Intersect(sub, other); !joined.IsNone() {
			out.sub[name] = joined
		}
	}
	return out
}

// Remove returns a selector selecting what a selects and b does not.
//
// Removing a sub-tree leaves the parent name in place; only a full match
// (b selecting All at that point) drops the name.
func Remove(a, b Selector) Selector {
	switch {
	case b.IsAll():
		return None
	case a.IsNone() || b.IsNone():
		return a
	case a.IsAll():
		// All cannot be expanded without a component; only full removals apply.
		return a
	}
	out := Empty()
	for name, sub := range a.sub {
		rest := Remove(sub, b.Get(name))
		if !rest.IsNone() {
			out.sub[name] = rest
		}
	}
	return out
}

// Traverse calls fn for every selected leaf path of s in sorted order. All
// at a node is reported as a leaf.
func (s Selector) Traverse(fn func(path []string, leaf Selector)) {
	s.traverse(nil, fn)
}

func (s Selector) traverse(path []string, fn func(path []string, leaf Selector)) {
	if s.kind != kindSome {
		if s.kind == kindAll {
			fn(path, s)
		}
		return
	}
	for _, name := range s.Keys() {
		sub := s.sub[name]
		next := append(append([]string(nil), path...), name)
		if sub.kind == kindSome && sub.Len() > 0 {
			sub.traverse(next, fn)
			continue
		}
		if !sub.IsNone() {
			fn(next, sub)
		}
	}
}

// String renders s in a compact form: true, false or {a, b: {c}}.
func (s Selector) String() string {
	switch s.kind {
	case kindAll:
		return "true"
	case kindNone:
		return "false"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, name := range s.Keys() {
		sub := s.sub[name]
		if sub.IsNone() {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(name)
		if sub.IsObject() {
			b.WriteString(": ")
			b.WriteString(sub.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}

func (s Selector) clone() Selector {
	if s.kind != kindSome {
		return s
	}
	out := Selector{kind: kindSome, sub: make(map[string]Selector, len(s.sub))}
	for name, sub := range s.sub {
		out.sub[name] = sub
	}
	return out
}
