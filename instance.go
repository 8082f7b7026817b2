package hxmodel

import (
	"fmt"
	"sort"

	"github.com/pthm/hxmodel/lib/valuecodec"
)

// InstantiateOptions configures Instantiate.
type InstantiateOptions struct {
	// IsNew marks a created instance as new. Asking for a new instance when
	// the identity map already holds a persisted one fails with
	// ErrAlreadyNewConflict.
	IsNew bool
}

// newBare creates an instance with no attribute written. The instance is
// explicitly detached until the caller finishes seeding it.
func (c *Component) newBare(isNew bool) *Component {
	inst := &Component{
		name:     c.name,
		class:    c,
		isNew:    boolPtr(isNew),
		attached: boolPtr(false),
	}
	inst.properties = newPropertyTable(inst, c.prototype)
	return inst
}

// New constructs a new instance from attribute values.
//
// Attributes that are not given and not controlled are set to their default
// (nil when there is none). Values for controlled and computed attributes
// are ignored. An identifiable instance must end up with at least one
// identifier, and is registered in the identity map of its class.
func (c *Component) New(values map[string]any) (*Component, error) {
	if !c.IsClass() {
		return nil, fmt.Errorf("hxmodel: New called on instance %s", c.name)
	}
	for _, name := range sortedKeys(values) {
		if _, err := c.prototypeAttribute(name); err != nil {
			return nil, err
		}
	}

	inst := c.newBare(true)
	for _, a := range inst.Attributes() {
		if a.HasGetter() || a.IsControlled() {
			continue
		}
		if v, ok := values[a.Name()]; ok {
			if err := a.SetValue(v); err != nil {
				return nil, err
			}
			continue
		}
		if a.IsSet() {
			continue
		}
		v, err := a.EvaluateDefault()
		if err != nil {
			return nil, err
		}
		if err := a.SetValue(v); err != nil {
			return nil, err
		}
	}

	if err := inst.register(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Instantiate returns the instance with the given identifiers, creating a
// bare one seeded with them on a miss. Non-identifiable classes always get
// a fresh bare instance.
//
// identifiers is a string or number for the primary identifier, or a map of
// identifier attribute names to values.
func (c *Component) Instantiate(identifiers any, opts InstantiateOptions) (*Component, error) {
	if !c.IsClass() {
		return nil, fmt.Errorf("hxmodel: Instantiate called on instance %s", c.name)
	}
	if !c.IsIdentifiable() {
		inst := c.newBare(opts.IsNew)
		inst.attached = nil
		return inst, nil
	}

	ids, err := c.NormalizeIdentifiers(identifiers)
	if err != nil {
		return nil, err
	}

	existing, err := c.IdentityMap().GetComponent(ids)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if opts.IsNew && !existing.IsNew() {
			return nil, fmt.Errorf("%w: %s %v", ErrAlreadyNewConflict, c.name, ids)
		}
		return existing, nil
	}

	inst := c.newBare(opts.IsNew)
	for _, name := range sortedKeys(ids) {
		if err := inst.Set(name, ids[name]); err != nil {
			return nil, err
		}
	}
	if err := inst.register(); err != nil {
		return nil, err
	}
	return inst, nil
}

// register clears the detached flag set by newBare and adds the instance to
// the identity map when it ends up attached.
func (c *Component) register() error {
	if c.IsIdentifiable() && len(c.Identifiers()) == 0 {
		return fmt.Errorf("%w: %s has no identifier value", ErrMissingIdentifier, c.name)
	}
	c.attached = nil
	if !c.IsAttached() || !c.IsIdentifiable() {
		return nil
	}
	if err := c.class.IdentityMap().AddComponent(c); err != nil {
		c.attached = boolPtr(false)
		return err
	}
	return nil
}

// Identifiers returns the set, non-nil identifier values of an instance.
func (c *Component) Identifiers() map[string]any {
	ids := map[string]any{}
	if c.IsClass() {
		return ids
	}
	for _, a := range c.IdentifierAttributes() {
		if v, ok, _ := a.GetValueIfSet(); ok && v != nil {
			ids[a.Name()] = v
		}
	}
	return ids
}

// IdentifierDescriptor returns a single-entry map naming the identifier of
// an instance: the primary identifier when it is set, otherwise the first
// declared secondary identifier with a value.
func (c *Component) IdentifierDescriptor() (map[string]any, error) {
	for _, a := range c.IdentifierAttributes() {
		if v, ok, _ := a.GetValueIfSet(); ok && v != nil && a.IsPrimaryIdentifier() {
			return map[string]any{a.Name(): v}, nil
		}
	}
	for _, a := range c.IdentifierAttributes() {
		if v, ok, _ := a.GetValueIfSet(); ok && v != nil {
			return map[string]any{a.Name(): v}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no identifier value", ErrMissingIdentifier, c.name)
}

// NormalizeIdentifiers converts identifier shorthand into a map of
// identifier attribute names to values. A string or number stands for the
// primary identifier.
func (c *Component) NormalizeIdentifiers(identifiers any) (map[string]any, error) {
	switch v := identifiers.(type) {
	case string:
		return c.primaryShorthand(v)
	case map[string]any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: %s: no identifier given", ErrInvalidIdentifierDescriptor, c.name)
		}
		ids := make(map[string]any, len(v))
		for name, value := range v {
			a, err := c.prototypeAttribute(name)
			if err != nil || !a.IsIdentifier() {
				return nil, fmt.Errorf("%w: %s.%s is not an identifier attribute",
					ErrInvalidIdentifierDescriptor, c.name, name)
			}
			if _, ok := identifierKey(value); !ok {
				return nil, fmt.Errorf("%w: %s.%s must be a string or a number, got %T",
					ErrInvalidIdentifierDescriptor, c.name, name, value)
			}
			ids[name] = value
		}
		return ids, nil
	}
	if valuecodec.IsNumber(identifiers) {
		return c.primaryShorthand(identifiers)
	}
	return nil, fmt.Errorf("%w: %s: unsupported identifiers %T", ErrInvalidIdentifierDescriptor, c.name, identifiers)
}

// NormalizeIdentifierDescriptor is NormalizeIdentifiers restricted to
// exactly one identifier.
func (c *Component) NormalizeIdentifierDescriptor(descriptor any) (map[string]any, error) {
	ids, err := c.NormalizeIdentifiers(descriptor)
	if err != nil {
		return nil, err
	}
	if len(ids) != 1 {
		return nil, fmt.Errorf("%w: %s: expected one identifier, got %d",
			ErrInvalidIdentifierDescriptor, c.name, len(ids))
	}
	return ids, nil
}

func (c *Component) primaryShorthand(value any) (map[string]any, error) {
	primary := c.Class().PrimaryIdentifierAttribute()
	if primary == nil {
		return nil, fmt.Errorf("%w: %s has no primary identifier", ErrInvalidIdentifierDescriptor, c.name)
	}
	return map[string]any{primary.Name(): value}, nil
}

// prototypeAttribute finds an instance attribute from either a class or an
// instance.
func (c *Component) prototypeAttribute(name string) (*Attribute, error) {
	if c.IsInstance() {
		return c.GetAttribute(name)
	}
	p := c.prototype.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingProperty, c.name, name)
	}
	a, ok := p.(*Attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an attribute", ErrWrongPropertyKind, p.Describe())
	}
	return a, nil
}

// IsAttached reports whether the component takes part in identity
// tracking.
//
// An instance follows its fork chain and then its class unless attached or
// detached explicitly. A class follows its provider, then its origin; a
// class with neither is attached.
func (c *Component) IsAttached() bool {
	if c.IsInstance() {
		for x := c; x != nil; x = x.origin {
			if x.attached != nil {
				return *x.attached
			}
		}
		return c.class.IsAttached()
	}
	if c.attached != nil {
		return *c.attached
	}
	if c.provider != nil && c.provider != c {
		return c.provider.IsAttached()
	}
	if c.origin != nil {
		return c.origin.IsAttached()
	}
	return true
}

// IsDetached is the negation of IsAttached.
func (c *Component) IsDetached() bool { return !c.IsAttached() }

// Attach explicitly attaches the component. An identifiable instance is
// added to the identity map of its class.
func (c *Component) Attach() error {
	previous := c.attached
	c.attached = boolPtr(true)
	if c.IsInstance() && c.IsIdentifiable() {
		if err := c.class.IdentityMap().AddComponent(c); err != nil {
			c.attached = previous
			return err
		}
	}
	return nil
}

// Detach explicitly detaches the component, removing an identifiable
// instance from the identity map of its class.
func (c *Component) Detach() error {
	if c.IsInstance() && c.IsIdentifiable() && c.IsAttached() {
		if err := c.class.IdentityMap().RemoveComponent(c); err != nil {
			return err
		}
	}
	c.attached = boolPtr(false)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
