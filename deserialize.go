package hxmodel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/hxmodel/lib/valuecodec"
)

// DeserializeOptions configures Deserialize.
type DeserializeOptions struct {
	// Resolver resolves the type tags of nested components. It defaults to
	// the receiving component, which knows itself, the classes it provides
	// or consumes and its registry.
	Resolver Resolver
	// Source tags every deserialized value. Defaults to ValueSourceLocal.
	Source          ValueSource
	AttributeFilter AttributeFilter
}

// Deserialize resolves the class named by the __component tag of tree and
// deserializes tree into it. opts.Resolver is required.
func Deserialize(ctx context.Context, tree map[string]any, opts DeserializeOptions) (*Component, error) {
	if opts.Resolver == nil {
		return nil, ErrMissingComponentResolver
	}
	tag, ok := tree[componentKey].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrUnexpectedComponentType, componentKey)
	}
	name, _ := parseTypeTag(tag)
	class, err := opts.Resolver.GetComponent(name)
	if err != nil {
		return nil, err
	}
	return class.Deserialize(ctx, tree, opts)
}

// Deserialize applies a wire tree to c and returns the component it
// describes.
//
// On a class, a "typeof X" tag (or no tag) updates the static attributes
// of the class; an "X" tag resolves the instance through the identity map,
// creating it on a miss. On an instance the tree is applied in place.
//
// A tree marked __new cannot target an existing instance that is not new
// (ErrAlreadyNewConflict); a tree without the mark flags the instance as not
// new. New instances get defaults for the attributes the tree leaves out.
func (c *Component) Deserialize(ctx context.Context, tree map[string]any, opts DeserializeOptions) (*Component, error) {
	ctx, span := tracer().Start(ctx, "hxmodel.Deserialize", trace.WithAttributes(
		attribute.String("component", c.TypeTag()),
	))
	defer span.End()

	if opts.Resolver == nil {
		opts.Resolver = c
	}
	if opts.Source == "" {
		opts.Source = ValueSourceLocal
	}

	d := &deserializer{opts: opts}
	out, err := d.component(ctx, c, tree)
	if err != nil {
		d.rollback()
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// parseTypeTag splits "typeof Movie" into ("Movie", true) and "Movie" into
// ("Movie", false).
func parseTypeTag(tag string) (name string, isClass bool) {
	if rest, ok := strings.CutPrefix(tag, "typeof "); ok {
		return strings.TrimSpace(rest), true
	}
	return tag, false
}

type deserializer struct {
	opts DeserializeOptions

	// registered holds the instances this traversal added to identity maps.
	registered []*Component
}

// rollback takes the instances registered by a failed traversal out of
// their identity maps, newest first.
func (d *deserializer) rollback() {
	for i := len(d.registered) - 1; i >= 0; i-- {
		inst := d.registered[i]
		if err := inst.Detach(); err != nil {
			log().Debug().Err(err).Str("component", inst.name).Msg("deserialize rollback")
		}
	}
	d.registered = nil
}

func (d *deserializer) register(inst *Component) error {
	if err := inst.register(); err != nil {
		return err
	}
	if inst.IsAttached() && inst.IsIdentifiable() {
		d.registered = append(d.registered, inst)
	}
	return nil
}

func (d *deserializer) component(ctx context.Context, c *Component, tree map[string]any) (*Component, error) {
	isClassTree := c.IsClass()
	if raw, ok := tree[componentKey]; ok {
		tag, _ := raw.(string)
		name, isClass := parseTypeTag(tag)
		if name != c.name || (isClass && c.IsInstance()) {
			return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnexpectedComponentType, c.TypeTag(), raw)
		}
		isClassTree = isClass
	}

	if c.IsClass() && !isClassTree {
		return d.instance(ctx, c, tree)
	}

	if c.IsInstance() {
		isNew := tree[newKey] == true
		if isNew && !c.IsNew() {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyNewConflict, describeInstance(c))
		}
		if !isNew {
			c.MarkAsNotNew()
		}
	}
	if err := d.attributes(ctx, c, tree); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *deserializer) instance(ctx context.Context, class *Component, tree map[string]any) (*Component, error) {
	isNew := tree[newKey] == true
	if err := checkKeys(class, tree); err != nil {
		return nil, err
	}

	ids := map[string]any{}
	if class.IsIdentifiable() {
		for _, a := range class.IdentifierAttributes() {
			if v, ok := tree[a.Name()]; ok {
				if _, valid := identifierKey(v); valid {
					ids[a.Name()] = v
				}
			}
		}
		if len(ids) == 0 && !isNew {
			return nil, fmt.Errorf("%w: %s payload has no identifier", ErrMissingIdentifier, class.name)
		}
	}

	if len(ids) > 0 {
		existing, err := class.IdentityMap().GetComponent(ids)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log().Debug().Str("component", class.name).Interface("identifiers", ids).Msg("deserialize hit")
			if isNew && !existing.IsNew() {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyNewConflict, describeInstance(existing))
			}
			if !isNew {
				existing.MarkAsNotNew()
			}
			if err := d.attributes(ctx, existing, tree); err != nil {
				return nil, err
			}
			return existing, nil
		}
		log().Debug().Str("component", class.name).Interface("identifiers", ids).Msg("deserialize miss")
	}

	inst := class.newBare(isNew)
	if len(ids) > 0 {
		// Registered before the attributes so nested references to the same
		// identity resolve to inst.
		for _, name := range sortedKeys(ids) {
			if err := inst.Set(name, ids[name]); err != nil {
				return nil, err
			}
		}
		if err := d.register(inst); err != nil {
			return nil, err
		}
	}

	if err := d.attributes(ctx, inst, tree); err != nil {
		return nil, err
	}
	if isNew {
		if err := fillDefaults(inst, tree); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		if err := d.register(inst); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func describeInstance(c *Component) string {
	if descriptor, err := c.IdentifierDescriptor(); err == nil {
		return fmt.Sprintf("%s %v", c.name, descriptor)
	}
	return c.name
}

func checkKeys(c *Component, tree map[string]any) error {
	for _, key := range sortedKeys(tree) {
		if isReservedKey(key) {
			continue
		}
		if _, err := c.prototypeAttribute(key); err != nil {
			return err
		}
	}
	return nil
}

func (d *deserializer) attributes(ctx context.Context, c *Component, tree map[string]any) error {
	for _, key := range sortedKeys(tree) {
		if !isReservedKey(key) {
			if _, err := c.GetAttribute(key); err != nil {
				return err
			}
		}
	}

	for _, a := range c.Attributes() {
		raw, ok := tree[a.Name()]
		if !ok {
			continue
		}
		if a.HasGetter() && !a.HasSetter() {
			continue
		}
		if d.opts.AttributeFilter != nil {
			keep, err := d.opts.AttributeFilter(ctx, a)
			if err != nil {
				return fmt.Errorf("%s: filter: %w", a.path(), err)
			}
			if !keep {
				continue
			}
		}
		value, err := valuecodec.Deserialize(raw, d.hook(ctx))
		if err != nil {
			return fmt.Errorf("%s: %w", a.path(), err)
		}
		if err := a.SetValueWithSource(value, d.opts.Source); err != nil {
			return err
		}
	}
	return nil
}

func (d *deserializer) hook(ctx context.Context) valuecodec.Hook {
	return func(value any) (any, bool, error) {
		tree, ok := value.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		raw, ok := tree[componentKey]
		if !ok {
			return nil, false, nil
		}
		tag, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("%w: %s holds %T", ErrUnexpectedComponentType, componentKey, raw)
		}
		name, _ := parseTypeTag(tag)
		class, err := d.opts.Resolver.GetComponent(name)
		if err != nil {
			return nil, true, err
		}
		c, err := d.component(ctx, class, tree)
		return c, true, err
	}
}

// fillDefaults sets every attribute of a new instance that tree leaves out
// and that is neither controlled, computed nor already set.
func fillDefaults(c *Component, tree map[string]any) error {
	for _, a := range c.Attributes() {
		if _, ok := tree[a.Name()]; ok {
			continue
		}
		if a.IsControlled() || a.HasGetter() || a.IsSet() {
			continue
		}
		v, err := a.EvaluateDefault()
		if err != nil {
			return err
		}
		if err := a.SetValue(v); err != nil {
			return err
		}
	}
	return nil
}
