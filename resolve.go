package hxmodel

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pthm/hxmodel/lib/selector"
)

// ExposedAttributes keeps the attributes exposed for op.
func ExposedAttributes(op Operation) AttributeFilter {
	return func(_ context.Context, a *Attribute) (bool, error) {
		return a.Exposure().Allows(op), nil
	}
}

// AggregationMode combines the selectors resolved for the items of an
// array of components.
type AggregationMode uint8

const (
	AggregateUnion AggregationMode = iota
	AggregateIntersection
)

// ResolveOptions configures ResolveSelector.
type ResolveOptions struct {
	Filter AttributeFilter
	// SetAttributesOnly drops unset attributes.
	SetAttributesOnly bool
	// IncludeReferencedComponents expands referenced components past their
	// identifiers.
	IncludeReferencedComponents bool
	// SkipPrimaryIdentifier stops the primary identifier of instances from
	// being selected when the input selector leaves it out.
	SkipPrimaryIdentifier bool
	AggregationMode       AggregationMode
	// Depth bounds how many component levels are expanded. Zero means no
	// bound.
	Depth int
}

func normalizeSelector(v any) (selector.Selector, error) {
	if v == nil {
		return selector.All, nil
	}
	sel, err := selector.Normalize(v)
	if err != nil {
		return selector.None, fmt.Errorf("hxmodel: %w", err)
	}
	return sel, nil
}

// ResolveSelector expands sel against the current state of c into a
// concrete selector naming attributes only. Components held by attributes
// are resolved recursively. A component graph cycle closes the branch with
// an empty selector.
func (c *Component) ResolveSelector(ctx context.Context, sel any, opts ResolveOptions) (selector.Selector, error) {
	s, err := normalizeSelector(sel)
	if err != nil {
		return selector.None, err
	}
	r := &resolver{opts: opts, stack: map[*Attribute]bool{}}
	return r.resolve(ctx, c, s, 0)
}

type resolver struct {
	opts  ResolveOptions
	stack map[*Attribute]bool
}

func (r *resolver) resolve(ctx context.Context, c *Component, sel selector.Selector, depth int) (selector.Selector, error) {
	if sel.IsNone() {
		return selector.None, nil
	}

	out := selector.Empty()
	for _, a := range c.Attributes() {
		if r.opts.Filter != nil {
			keep, err := r.opts.Filter(ctx, a)
			if err != nil {
				return selector.None, fmt.Errorf("%s: filter: %w", a.path(), err)
			}
			if !keep {
				continue
			}
		}

		sub := sel.Get(a.Name())
		if sub.IsNone() && a.IsPrimaryIdentifier() && c.IsInstance() && !r.opts.SkipPrimaryIdentifier {
			sub = selector.All
		}
		if sub.IsNone() {
			continue
		}

		value, set, err := a.GetValueIfSet()
		if err != nil {
			return selector.None, err
		}
		if !set {
			if !r.opts.SetAttributesOnly {
				out = out.Set(a.Name(), sub)
			}
			continue
		}

		components := componentsIn(value)
		if len(components) == 0 {
			out = out.Set(a.Name(), selector.All)
			continue
		}

		if r.stack[a] || (r.opts.Depth > 0 && depth+1 >= r.opts.Depth) {
			out = out.Set(a.Name(), selector.Empty())
			continue
		}

		r.stack[a] = true
		resolved, err := r.aggregate(ctx, components, sub, depth+1)
		delete(r.stack, a)
		if err != nil {
			return selector.None, err
		}
		out = out.Set(a.Name(), resolved)
	}
	return out, nil
}

func (r *resolver) aggregate(ctx context.Context, components []*Component, sub selector.Selector, depth int) (selector.Selector, error) {
	var agg selector.Selector
	for i, comp := range components {
		s := sub
		if isReferenced(comp) && !r.opts.IncludeReferencedComponents {
			s = referenceSelector(comp, sub)
		}
		resolved, err := r.resolve(ctx, comp, s, depth)
		if err != nil {
			return selector.None, err
		}
		switch {
		case i == 0:
			agg = resolved
		case r.opts.AggregationMode == AggregateIntersection:
			agg = selector.Intersect(agg, resolved)
		default:
			agg = selector.Union(agg, resolved)
		}
	}
	return agg, nil
}

// isReferenced reports whether c travels by reference: an identifiable
// instance of a non-embedded class.
func isReferenced(c *Component) bool {
	return c.IsInstance() && !c.IsEmbedded() && c.IsIdentifiable()
}

// referenceSelector narrows sub to the identifiers of c: the identifier
// used by its descriptor plus any identifier sub names explicitly.
func referenceSelector(c *Component, sub selector.Selector) selector.Selector {
	descriptor, _ := c.IdentifierDescriptor()
	ref := selector.Empty()
	for _, a := range c.IdentifierAttributes() {
		_, described := descriptor[a.Name()]
		if described || (descriptor == nil && a.IsPrimaryIdentifier()) || (sub.IsObject() && sub.Has(a.Name())) {
			ref = ref.Set(a.Name(), selector.All)
		}
	}
	return ref
}

// componentsIn returns the components held by value, directly or as
// elements of a slice.
func componentsIn(value any) []*Component {
	switch v := value.(type) {
	case nil:
		return nil
	case *Component:
		if v == nil {
			return nil
		}
		return []*Component{v}
	case []*Component:
		return v
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	var out []*Component
	for i := 0; i < rv.Len(); i++ {
		if c, ok := rv.Index(i).Interface().(*Component); ok && c != nil {
			out = append(out, c)
		}
	}
	return out
}
