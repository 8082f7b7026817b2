package hxmodel

import (
	"fmt"
	"reflect"

	"github.com/pthm/hxmodel/lib/validation"
)

// ValueSource tags where an attribute value came from.
type ValueSource string

// ValueSourceLocal marks values written by local code.
const ValueSourceLocal ValueSource = "local"

// AttributeOptions configures an attribute declaration.
//
// Default may be a plain value or one of func() any, func() (any, error),
// func(*Component) any and func(*Component) (any, error). A function default
// is evaluated once per instance, on first use.
//
// A Getter makes the attribute computed: it cannot be combined with Value or
// Default, and a Setter requires a Getter.
type AttributeOptions struct {
	ValueType  string
	Value      any
	Default    any
	Getter     func(c *Component) (any, error)
	Setter     func(c *Component, value any) error
	Controlled bool
	Validators []validation.Validator
	Exposure   Exposure
}

type attributeDefinition struct {
	valueType  ValueType
	def        any
	getter     func(c *Component) (any, error)
	setter     func(c *Component, value any) error
	controlled bool
	validators []validation.Validator
}

type attributeState struct {
	value  any
	isSet  bool
	source ValueSource

	defaultValue any
	// defaultFor is the component the default was evaluated for. The memo
	// holds for that component and its forks only.
	defaultFor *Component
}

// Attribute is a property holding a value. Identifier attributes are
// attributes of kind KindPrimaryIdentifier or KindSecondaryIdentifier.
//
// A forked attribute has no state of its own until it is written: reads fall
// through the origin chain.
type Attribute struct {
	property
	def    *attributeDefinition
	origin *Attribute
	state  *attributeState
}

func newAttribute(name string, kind PropertyKind, parent *Component, opts AttributeOptions) (*Attribute, error) {
	if opts.Getter != nil || opts.Setter != nil {
		if opts.Value != nil || opts.Default != nil {
			return nil, fmt.Errorf("%w: %s.%s cannot have a getter or setter and a value or default",
				ErrGetterSetterConfiguration, parent.Name(), name)
		}
		if opts.Getter == nil {
			return nil, fmt.Errorf("%w: %s.%s has a setter but no getter",
				ErrGetterSetterConfiguration, parent.Name(), name)
		}
	}

	typeExpr := opts.ValueType
	if typeExpr == "" && kind.IsIdentifier() {
		typeExpr = "string"
	}
	vt, err := ParseValueType(typeExpr)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", parent.Name(), name, err)
	}
	if kind.IsIdentifier() && !vt.IsIdentifierType() {
		return nil, fmt.Errorf("%w: identifier %s.%s must be a string or a number, not %s",
			ErrInvalidDeclaration, parent.Name(), name, vt)
	}

	if err := checkDefault(opts.Default); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", parent.Name(), name, err)
	}

	a := &Attribute{
		property: property{
			name:     name,
			kind:     kind,
			parent:   parent,
			exposure: opts.Exposure,
		},
		def: &attributeDefinition{
			valueType:  vt,
			def:        opts.Default,
			getter:     opts.Getter,
			setter:     opts.Setter,
			controlled: opts.Controlled,
			validators: opts.Validators,
		},
	}

	if opts.Value != nil {
		if err := a.SetValue(opts.Value); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func checkDefault(def any) error {
	switch def.(type) {
	case func() any, func() (any, error), func(*Component) any, func(*Component) (any, error):
		return nil
	}
	if def != nil && isFunc(def) {
		return fmt.Errorf("%w: unsupported default function %T", ErrInvalidDeclaration, def)
	}
	return nil
}

func (a *Attribute) fork(parent *Component) Property {
	return &Attribute{
		property: property{
			name:     a.name,
			kind:     a.kind,
			parent:   parent,
			exposure: a.exposure,
		},
		def:    a.def,
		origin: a,
	}
}

func (a *Attribute) effectiveState() *attributeState {
	for x := a; x != nil; x = x.origin {
		if x.state != nil {
			return x.state
		}
	}
	return &attributeState{}
}

func (a *Attribute) ownState() *attributeState {
	if a.state == nil {
		s := *a.effectiveState()
		a.state = &s
	}
	return a.state
}

// Describe implements Property.
func (a *Attribute) Describe() string {
	switch a.kind {
	case KindPrimaryIdentifier:
		return "primary identifier attribute " + a.path()
	case KindSecondaryIdentifier:
		return "secondary identifier attribute " + a.path()
	}
	return "attribute " + a.path()
}

// Introspect implements Property. Values are included when they are set and
// the attribute is readable remotely.
func (a *Attribute) Introspect() map[string]any {
	out := a.introspectBase()
	out["valueType"] = a.def.valueType.String()
	if len(a.def.validators) > 0 {
		validators := make([]any, len(a.def.validators))
		for i, v := range a.def.validators {
			validators[i] = map[string]any{"name": v.Name, "args": v.Args}
		}
		out["validators"] = validators
	}
	if a.exposure.Get && a.def.getter == nil {
		if s := a.effectiveState(); s.isSet {
			out["value"] = s.value
		}
	}
	if a.def.def != nil && !isFunc(a.def.def) {
		out["default"] = a.def.def
	}
	return out
}

// ValueType returns the declared value type.
func (a *Attribute) ValueType() ValueType { return a.def.valueType }

// Validators returns the declared validators.
func (a *Attribute) Validators() []validation.Validator { return a.def.validators }

// IsControlled reports whether the attribute is excluded from construction
// values and default filling.
func (a *Attribute) IsControlled() bool { return a.def.controlled }

// IsIdentifier reports whether a is a primary or secondary identifier.
func (a *Attribute) IsIdentifier() bool { return a.kind.IsIdentifier() }

// IsPrimaryIdentifier reports whether a is the primary identifier.
func (a *Attribute) IsPrimaryIdentifier() bool { return a.kind == KindPrimaryIdentifier }

// IsSecondaryIdentifier reports whether a is a secondary identifier.
func (a *Attribute) IsSecondaryIdentifier() bool { return a.kind == KindSecondaryIdentifier }

// HasGetter reports whether the attribute is computed.
func (a *Attribute) HasGetter() bool { return a.def.getter != nil }

// HasSetter reports whether a computed attribute accepts writes.
func (a *Attribute) HasSetter() bool { return a.def.setter != nil }

// HasDefault reports whether a default was declared.
func (a *Attribute) HasDefault() bool { return a.def.def != nil }

// IsSet reports whether the attribute holds a value. Computed attributes are
// always set.
func (a *Attribute) IsSet() bool {
	if a.def.getter != nil {
		return true
	}
	return a.effectiveState().isSet
}

// ValueSource returns the source tag of the current value.
func (a *Attribute) ValueSource() ValueSource {
	return a.effectiveState().source
}

// GetValue returns the value, evaluating the getter if there is one. Reading
// an unset attribute returns ErrUnsetAttributeAccess.
func (a *Attribute) GetValue() (any, error) {
	v, ok, err := a.GetValueIfSet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsetAttributeAccess, a.path())
	}
	return v, nil
}

// GetValueIfSet returns the value and whether it is set. An unset attribute
// yields (nil, false, nil).
func (a *Attribute) GetValueIfSet() (any, bool, error) {
	if a.def.getter != nil {
		v, err := a.def.getter(a.parent)
		if err != nil {
			return nil, false, fmt.Errorf("%s: getter: %w", a.path(), err)
		}
		return v, true, nil
	}
	s := a.effectiveState()
	if !s.isSet {
		return nil, false, nil
	}
	return s.value, true, nil
}

// SetValue sets the value with the local value source.
func (a *Attribute) SetValue(value any) error {
	return a.SetValueWithSource(value, ValueSourceLocal)
}

// SetValueWithSource sets the value and tags it with source.
//
// Computed attributes forward to their setter, or fail with
// ErrReadOnlyAttribute. For identifier attributes of an attached instance the
// identity map is updated first, so a collision leaves the value unchanged.
func (a *Attribute) SetValueWithSource(value any, source ValueSource) error {
	if a.def.getter != nil {
		if a.def.setter == nil {
			return fmt.Errorf("%w: %s", ErrReadOnlyAttribute, a.path())
		}
		if err := a.def.setter(a.parent, value); err != nil {
			return fmt.Errorf("%s: setter: %w", a.path(), err)
		}
		return nil
	}

	if err := a.def.valueType.Check(value); err != nil {
		return fmt.Errorf("%s: %w", a.path(), err)
	}

	s := a.effectiveState()
	if a.kind.IsIdentifier() && a.parent.IsInstance() {
		var previous any
		if s.isSet {
			previous = s.value
		}
		if err := a.parent.class.IdentityMap().UpdateComponent(a.parent, a.name, previous, value); err != nil {
			return err
		}
	}

	own := a.ownState()
	own.value = value
	own.isSet = true
	own.source = source
	return nil
}

// UnsetValue clears the value. Identifier attributes of an attached
// instance are removed from the identity map.
func (a *Attribute) UnsetValue() error {
	if a.def.getter != nil {
		return fmt.Errorf("%w: %s", ErrReadOnlyAttribute, a.path())
	}

	s := a.effectiveState()
	if a.kind.IsIdentifier() && a.parent.IsInstance() && s.isSet {
		if err := a.parent.class.IdentityMap().UpdateComponent(a.parent, a.name, s.value, nil); err != nil {
			return err
		}
	}

	own := a.ownState()
	own.value = nil
	own.isSet = false
	own.source = ""
	return nil
}

// EvaluateDefault returns the default value, calling it when it is a
// function. The result is memoized per component.
func (a *Attribute) EvaluateDefault() (any, error) {
	def := a.def.def
	if def == nil && a.kind == KindPrimaryIdentifier && a.parent.IsInstance() && a.def.valueType.kind == kindString {
		if gen := a.parent.IDGenerator(); gen != nil {
			def = func() any { return gen.New() }
		}
	}
	if !isFunc(def) {
		return def, nil
	}

	if s := a.effectiveState(); s.defaultFor != nil &&
		(s.defaultFor == a.parent || a.parent.IsForkOf(s.defaultFor)) {
		return s.defaultValue, nil
	}

	var (
		v   any
		err error
	)
	switch fn := def.(type) {
	case func() any:
		v = fn()
	case func() (any, error):
		v, err = fn()
	case func(*Component) any:
		v = fn(a.parent)
	case func(*Component) (any, error):
		v, err = fn(a.parent)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: default: %w", a.path(), err)
	}

	own := a.ownState()
	own.defaultValue = v
	own.defaultFor = a.parent
	return v, nil
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
