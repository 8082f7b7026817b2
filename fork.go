package hxmodel

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/hxmodel/lib/selector"
)

// Fork returns a copy-on-write fork of c in O(1).
//
// A class fork shares the property tables, identity map, provider and
// resolver of its origin until it writes to them. An instance fork belongs
// to the same class and reads through to its origin.
func (c *Component) Fork() *Component {
	if c.IsInstance() {
		return c.ForkInto(c.class)
	}

	f := &Component{
		name:        c.name,
		origin:      c,
		embedded:    c.embedded,
		idGenerator: c.idGenerator,
		provider:    c.provider,
		consumed:    append([]string(nil), c.consumed...),
		resolver:    c.resolver,
	}
	f.properties = newPropertyTable(f, c.properties)
	f.prototype = newPropertyTable(f, c.prototype)

	metricsCollector().RecordFork(c.name, "class")
	log().Debug().Str("component", c.name).Msg("class forked")
	return f
}

// ForkInto forks the instance c as an instance of class, usually a fork of
// the class of c.
func (c *Component) ForkInto(class *Component) *Component {
	if c.IsClass() {
		return c.Fork()
	}

	f := &Component{
		name:   c.name,
		class:  class,
		origin: c,
	}
	f.properties = newPropertyTable(f, c.properties)

	metricsCollector().RecordFork(c.name, "instance")
	log().Debug().Str("component", c.name).Interface("identifiers", c.Identifiers()).Msg("instance forked")
	return f
}

// Ghost returns the canonical fork of c, created once and memoized. The
// ghost of an instance lives in the ghost of its class and is found through
// that class's identity map, so every instance sharing an identity shares
// one ghost.
func (c *Component) Ghost() (*Component, error) {
	if c.ghost != nil {
		return c.ghost, nil
	}
	if c.IsClass() {
		c.ghost = c.Fork()
		log().Debug().Str("component", c.name).Msg("class ghost created")
		return c.ghost, nil
	}

	ghostClass, err := c.class.Ghost()
	if err != nil {
		return nil, err
	}

	ids := c.Identifiers()
	identified := c.IsIdentifiable() && len(ids) > 0
	if identified {
		ghost, err := ghostClass.IdentityMap().GetComponent(ids)
		if err != nil {
			return nil, err
		}
		if ghost != nil {
			c.ghost = ghost
			return ghost, nil
		}
	}

	ghost := c.ForkInto(ghostClass)
	if identified && ghost.IsAttached() {
		if err := ghostClass.IdentityMap().AddComponent(ghost); err != nil {
			return nil, err
		}
	}
	c.ghost = ghost
	log().Debug().Str("component", c.name).Interface("identifiers", ids).Msg("instance ghost created")
	return ghost, nil
}

// MergeOptions configures Merge.
type MergeOptions struct {
	// AttributeSelector limits the merged attributes. nil selects all.
	AttributeSelector any
}

// Merge applies the attribute values of fork to c. Attributes unset in the
// fork are unset in c. Nested forked components are merged into their
// origin, and components created in a forked class are brought back into
// the class it was forked from. Array values are merged index by index.
func (c *Component) Merge(ctx context.Context, fork *Component, opts MergeOptions) error {
	sel, err := normalizeSelector(opts.AttributeSelector)
	if err != nil {
		return err
	}

	ctx, span := tracer().Start(ctx, "hxmodel.Merge", trace.WithAttributes(
		attribute.String("component", c.TypeTag()),
	))
	defer span.End()

	if err := c.merge(ctx, fork, sel); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Component) merge(ctx context.Context, fork *Component, sel selector.Selector) error {
	if sel.IsNone() {
		return nil
	}
	for _, target := range c.Attributes() {
		sub := sel.Get(target.Name())
		if sub.IsNone() || target.HasGetter() {
			continue
		}
		source, err := fork.GetAttribute(target.Name())
		if err != nil {
			return err
		}
		forkValue, set, err := source.GetValueIfSet()
		if err != nil {
			return err
		}
		if !set {
			if target.IsSet() {
				if err := target.UnsetValue(); err != nil {
					return err
				}
			}
			continue
		}
		targetValue, _, err := target.GetValueIfSet()
		if err != nil {
			return err
		}
		merged, err := mergeValue(ctx, targetValue, forkValue, sub)
		if err != nil {
			return fmt.Errorf("%s: %w", target.path(), err)
		}
		if err := target.SetValueWithSource(merged, source.ValueSource()); err != nil {
			return err
		}
	}
	return nil
}

func mergeValue(ctx context.Context, target, fork any, sel selector.Selector) (any, error) {
	switch f := fork.(type) {
	case *Component:
		if f == nil {
			return fork, nil
		}
		return mergeComponent(ctx, target, f, sel)
	case []any:
		targetItems, _ := target.([]any)
		out := make([]any, len(f))
		for i, item := range f {
			var t any
			if i < len(targetItems) {
				t = targetItems[i]
			}
			merged, err := mergeValue(ctx, t, item, sel)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = merged
		}
		return out, nil
	case map[string]any:
		targetMap, _ := target.(map[string]any)
		out := make(map[string]any, len(f))
		for key, item := range f {
			merged, err := mergeValue(ctx, targetMap[key], item, selector.All)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = merged
		}
		return out, nil
	}
	return fork, nil
}

func mergeComponent(ctx context.Context, target any, fork *Component, sel selector.Selector) (*Component, error) {
	if t, ok := target.(*Component); ok && t != nil && t != fork && fork.IsForkOf(t) {
		if err := t.merge(ctx, fork, sel); err != nil {
			return nil, err
		}
		return t, nil
	}

	if fork.IsClass() {
		if fork.origin != nil {
			return fork.origin, nil
		}
		return fork, nil
	}

	if origin := fork.origin; origin != nil {
		if err := origin.merge(ctx, fork, sel); err != nil {
			return nil, err
		}
		return origin, nil
	}

	base := fork.class.origin
	if base == nil {
		return fork, nil
	}

	if ids := fork.Identifiers(); base.IsIdentifiable() && len(ids) > 0 {
		existing, err := base.IdentityMap().GetComponent(ids)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := existing.merge(ctx, fork, sel); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	inst := base.newBare(fork.IsNew())
	if err := inst.merge(ctx, fork, selector.All); err != nil {
		return nil, err
	}
	if err := inst.register(); err != nil {
		return nil, err
	}
	return inst, nil
}

// ProvideComponent makes class available to c and to the classes it
// provides, under its name. The provided class follows the attachment of c.
func (c *Component) ProvideComponent(class *Component) error {
	if !c.IsClass() || !class.IsClass() {
		return fmt.Errorf("%w: only classes provide classes", ErrInvalidDeclaration)
	}
	if c.provided == nil {
		c.provided = map[string]*Component{}
	}
	if _, exists := c.provided[class.name]; !exists {
		c.providedOrder = append(c.providedOrder, class.name)
	}
	c.provided[class.name] = class
	class.provider = c
	return nil
}

// ConsumeComponent declares that c uses the class called name, resolved
// through its provider.
func (c *Component) ConsumeComponent(name string) {
	if slices.Contains(c.consumed, name) {
		return
	}
	c.consumed = append(c.consumed, name)
}

// GetProvidedComponent returns the class provided under name, or nil. A
// fork forks the classes provided by its origin on first access.
func (c *Component) GetProvidedComponent(name string) *Component {
	cls := c.Class()
	if p, ok := cls.provided[name]; ok {
		return p
	}
	if cls.origin == nil {
		return nil
	}
	inherited := cls.origin.GetProvidedComponent(name)
	if inherited == nil {
		return nil
	}
	fork := inherited.Fork()
	fork.provider = cls
	if cls.provided == nil {
		cls.provided = map[string]*Component{}
	}
	cls.provided[name] = fork
	return fork
}

func (c *Component) providedNames() []string {
	cls := c.Class()
	var names []string
	if cls.origin != nil {
		names = cls.origin.providedNames()
	}
	for _, name := range cls.providedOrder {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// ProvidedComponents returns the provided classes in the order they were
// provided.
func (c *Component) ProvidedComponents() []*Component {
	names := c.providedNames()
	out := make([]*Component, 0, len(names))
	for _, name := range names {
		out = append(out, c.GetProvidedComponent(name))
	}
	return out
}

// ConsumedComponents returns the names of the consumed classes.
func (c *Component) ConsumedComponents() []string {
	return append([]string(nil), c.Class().consumed...)
}

// Provider returns the class providing c, or nil.
func (c *Component) Provider() *Component { return c.Class().provider }

// findProvided looks name up among the classes provided by c, then among
// the classes they provide.
func (c *Component) findProvided(name string, seen map[*Component]bool) *Component {
	if seen[c] {
		return nil
	}
	seen[c] = true
	if p := c.GetProvidedComponent(name); p != nil {
		return p
	}
	for _, p := range c.ProvidedComponents() {
		if found := p.findProvided(name, seen); found != nil {
			return found
		}
	}
	return nil
}

// GetComponent resolves a class by name: c itself, a class provided
// directly or transitively, a consumed class through the provider, and
// finally the registry c belongs to.
func (c *Component) GetComponent(name string) (*Component, error) {
	cls := c.Class()
	if name == cls.name {
		return cls, nil
	}
	if p := cls.findProvided(name, map[*Component]bool{}); p != nil {
		return p, nil
	}
	for _, consumed := range cls.consumed {
		if consumed == name && cls.provider != nil && cls.provider != cls {
			return cls.provider.GetComponent(name)
		}
	}
	if cls.resolver != nil {
		return cls.resolver.GetComponent(name)
	}
	return nil, fmt.Errorf("%w: %s cannot resolve %q", ErrUnknownComponent, cls.name, name)
}
