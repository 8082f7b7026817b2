package hxmodel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/hxmodel/lib/selector"
	"github.com/pthm/hxmodel/lib/valuecodec"
)

// Reserved wire keys.
const (
	componentKey = "__component"
	newKey       = "__new"
)

// SerializeOptions configures Serialize.
type SerializeOptions struct {
	// AttributeSelector limits the serialized attributes. nil selects all.
	AttributeSelector any
	AttributeFilter   AttributeFilter
	// Target skips non-identifier values whose source is Target, so values
	// are not echoed back to the peer they came from.
	Target ValueSource
	// OmitIsNewMarks drops the __new key.
	OmitIsNewMarks bool
	// IncludeReferencedComponents serializes referenced components in full
	// instead of by identifier.
	IncludeReferencedComponents bool
	// ReturnComponentReferences emits referenced components as identifier
	// descriptors and records them in ComponentDependencies.
	ReturnComponentReferences bool
	// ComponentDependencies, when set, collects the class of every
	// serialized component and every component emitted by reference.
	ComponentDependencies *DependencySet
}

// Serialize turns c and the components it holds into a wire tree:
//
//	{"__component": "Movie", "__new": true, "id": "abc123", "title": "Inception"}
//
// Only set attributes are emitted, in declaration order. A referenced
// component met a second time in the same call is emitted as its identifier
// descriptor. Embedded components are always emitted in full.
func (c *Component) Serialize(ctx context.Context, opts SerializeOptions) (map[string]any, error) {
	sel, err := normalizeSelector(opts.AttributeSelector)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer().Start(ctx, "hxmodel.Serialize", trace.WithAttributes(
		attribute.String("component", c.TypeTag()),
	))
	defer span.End()

	resolved, err := c.ResolveSelector(ctx, sel, ResolveOptions{
		Filter:                      opts.AttributeFilter,
		SetAttributesOnly:           true,
		IncludeReferencedComponents: opts.IncludeReferencedComponents,
		AggregationMode:             AggregateIntersection,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s := &serializer{opts: opts, visited: map[*Component]bool{}}
	tree, err := s.component(c, resolved, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return tree, nil
}

type serializer struct {
	opts    SerializeOptions
	visited map[*Component]bool
}

func (s *serializer) component(c *Component, sel selector.Selector, root bool) (map[string]any, error) {
	s.opts.ComponentDependencies.Add(c.Class())

	if isReferenced(c) {
		collapse := s.opts.ReturnComponentReferences && !s.opts.IncludeReferencedComponents
		if !root && (s.visited[c] || collapse) {
			if s.opts.ReturnComponentReferences {
				s.opts.ComponentDependencies.Add(c)
			}
			return s.reference(c)
		}
		s.visited[c] = true
	}

	tree := map[string]any{componentKey: c.TypeTag()}
	if c.IsNew() && !s.opts.OmitIsNewMarks {
		tree[newKey] = true
	}

	for _, a := range c.Attributes() {
		sub := sel.Get(a.Name())
		if sub.IsNone() {
			continue
		}
		if s.opts.Target != "" && !a.IsIdentifier() && a.ValueSource() == s.opts.Target {
			continue
		}
		value, set, err := a.GetValueIfSet()
		if err != nil {
			return nil, err
		}
		if !set {
			continue
		}
		out, err := valuecodec.Serialize(value, s.hook(sub))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.path(), err)
		}
		tree[a.Name()] = out
	}
	return tree, nil
}

func (s *serializer) hook(sel selector.Selector) valuecodec.Hook {
	return func(value any) (any, bool, error) {
		c, ok := value.(*Component)
		if !ok {
			return nil, false, nil
		}
		if c == nil {
			return nil, true, nil
		}
		tree, err := s.component(c, sel, false)
		return tree, true, err
	}
}

func (s *serializer) reference(c *Component) (map[string]any, error) {
	descriptor, err := c.IdentifierDescriptor()
	if err != nil {
		return nil, err
	}
	tree := map[string]any{componentKey: c.TypeTag()}
	if c.IsNew() && !s.opts.OmitIsNewMarks {
		tree[newKey] = true
	}
	for name, value := range descriptor {
		tree[name] = value
	}
	return tree, nil
}

// DependencySet collects components in insertion order without
// duplicates. A nil *DependencySet ignores additions.
type DependencySet struct {
	index map[*Component]bool
	items []*Component
}

// NewDependencySet creates an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{index: map[*Component]bool{}}
}

// Add adds c unless it is already present.
func (d *DependencySet) Add(c *Component) {
	if d == nil || c == nil || d.index[c] {
		return
	}
	if d.index == nil {
		d.index = map[*Component]bool{}
	}
	d.index[c] = true
	d.items = append(d.items, c)
}

// Has reports whether c was added.
func (d *DependencySet) Has(c *Component) bool {
	return d != nil && d.index[c]
}

// Components returns the collected components in insertion order.
func (d *DependencySet) Components() []*Component {
	if d == nil {
		return nil
	}
	return append([]*Component(nil), d.items...)
}

// Len returns the number of collected components.
func (d *DependencySet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}
