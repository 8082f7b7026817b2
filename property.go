package hxmodel

import "fmt"

// PropertyKind is the closed set of property variants.
type PropertyKind uint8

const (
	KindAttribute PropertyKind = iota
	KindPrimaryIdentifier
	KindSecondaryIdentifier
	KindMethod
)

func (k PropertyKind) String() string {
	switch k {
	case KindAttribute:
		return "Attribute"
	case KindPrimaryIdentifier:
		return "PrimaryIdentifierAttribute"
	case KindSecondaryIdentifier:
		return "SecondaryIdentifierAttribute"
	case KindMethod:
		return "Method"
	}
	return fmt.Sprintf("PropertyKind(%d)", uint8(k))
}

// IsAttribute reports whether properties of this kind hold a value.
func (k PropertyKind) IsAttribute() bool {
	return k != KindMethod
}

// IsIdentifier reports whether k is a primary or secondary identifier.
func (k PropertyKind) IsIdentifier() bool {
	return k == KindPrimaryIdentifier || k == KindSecondaryIdentifier
}

// Operation is something a remote peer can do with a property.
type Operation string

const (
	OperationGet  Operation = "get"
	OperationSet  Operation = "set"
	OperationCall Operation = "call"
)

// Exposure lists the operations a remote peer may perform on a property.
// The zero value exposes nothing.
type Exposure struct {
	Get  bool `yaml:"get,omitempty"`
	Set  bool `yaml:"set,omitempty"`
	Call bool `yaml:"call,omitempty"`
}

// IsZero reports whether nothing is exposed.
func (e Exposure) IsZero() bool {
	return !e.Get && !e.Set && !e.Call
}

// Allows reports whether op is exposed.
func (e Exposure) Allows(op Operation) bool {
	switch op {
	case OperationGet:
		return e.Get
	case OperationSet:
		return e.Set
	case OperationCall:
		return e.Call
	}
	return false
}

func (e Exposure) introspect() map[string]any {
	out := map[string]any{}
	if e.Get {
		out["get"] = true
	}
	if e.Set {
		out["set"] = true
	}
	if e.Call {
		out["call"] = true
	}
	return out
}

// Property is an attribute or a method of a component class or instance.
type Property interface {
	Name() string
	Kind() PropertyKind
	Parent() *Component
	Exposure() Exposure
	// Describe returns a short human description such as
	// "attribute Movie.title".
	Describe() string
	// Introspect describes the property for a remote peer.
	Introspect() map[string]any

	fork(parent *Component) Property
}

type property struct {
	name     string
	kind     PropertyKind
	parent   *Component
	exposure Exposure
}

func (p *property) Name() string { return p.name }
func (p *property) Kind() PropertyKind { return p.kind }
func (p *property) Parent() *Component { return p.parent }
func (p *property) Exposure() Exposure { return p.exposure }
func (p *property) path() string { return p.parent.Name() + "." + p.name }

func (p *property) introspectBase() map[string]any {
	out := map[string]any{
		"name": p.name,
		"type": p.kind.String(),
	}
	if !p.exposure.IsZero() {
		out["exposure"] = p.exposure.introspect()
	}
	return out
}

// Method is a callable property. It carries exposure only.
type Method struct {
	property
}

func newMethod(name string, parent *Component, exposure Exposure) *Method {
	return &Method{property: property{
		name:     name,
		kind:     KindMethod,
		parent:   parent,
		exposure: exposure,
	}}
}

// Describe implements Property.
func (m *Method) Describe() string {
	return "method " + m.path()
}

// Introspect implements Property.
func (m *Method) Introspect() map[string]any {
	return m.introspectBase()
}

func (m *Method) fork(parent *Component) Property {
	f := *m
	f.parent = parent
	return &f
}
