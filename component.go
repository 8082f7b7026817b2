package hxmodel

import (
	"fmt"

	"github.com/pthm/hxmodel/lib/idgen"
)

// Component is a component class or one of its instances.
//
// A class owns two property tables: its static properties and the prototype
// its instances inherit from. An instance owns a single table layered over
// its class prototype (or, for a fork, over the instance it was forked from).
// Reads fall through the layers; the first write materializes the property in
// the current layer.
//
// Example:
//
//	Movie := hxmodel.NewClass("Movie")
//	Movie.DeclarePrimaryIdentifier("id", hxmodel.AttributeOptions{})
//	Movie.DeclareAttribute("title", hxmodel.AttributeOptions{ValueType: "string"})
//	Movie.DeclareStaticAttribute("limit", hxmodel.AttributeOptions{Value: 100})
//
//	movie, err := Movie.New(map[string]any{"title": "Inception"})
//
// Components are not safe for concurrent use.
type Component struct {
	name     string
	class    *Component // nil for classes
	origin   *Component // set on forks
	embedded bool

	idGenerator idgen.Generator

	properties *propertyTable
	prototype  *propertyTable // classes only

	isNew    *bool
	attached *bool

	identityMap *IdentityMap
	ghost       *Component

	provider      *Component
	provided      map[string]*Component
	providedOrder []string
	consumed      []string
	resolver      Resolver
}

// NewClass creates a component class.
func NewClass(name string) *Component {
	if !isComponentName(name) {
		panic(fmt.Sprintf("hxmodel: invalid component name %q", name))
	}
	c := &Component{name: name}
	c.properties = newPropertyTable(c, nil)
	c.prototype = newPropertyTable(c, nil)
	return c
}

// Embedded marks the class as embedded: its instances have no identity of
// their own and are always serialized by value.
func (c *Component) Embedded() *Component {
	c.embedded = true
	return c
}

// WithIDGenerator sets the generator used for unset primary identifiers.
func (c *Component) WithIDGenerator(g idgen.Generator) *Component {
	c.idGenerator = g
	return c
}

// Name returns the component name. Forks keep the name of their origin.
func (c *Component) Name() string { return c.name }

// IsClass reports whether c is a class.
func (c *Component) IsClass() bool { return c.class == nil }

// IsInstance reports whether c is an instance.
func (c *Component) IsInstance() bool { return c.class != nil }

// Class returns the class of an instance, or c itself for a class.
func (c *Component) Class() *Component {
	if c.class != nil {
		return c.class
	}
	return c
}

// Origin returns the component c was forked from, or nil.
func (c *Component) Origin() *Component { return c.origin }

// IsForkOf reports whether other appears in the fork chain of c.
func (c *Component) IsForkOf(other *Component) bool {
	for x := c.origin; x != nil; x = x.origin {
		if x == other {
			return true
		}
	}
	return false
}

// IsEmbedded reports whether the class of c is embedded.
func (c *Component) IsEmbedded() bool { return c.Class().embedded }

// IDGenerator returns the identifier generator of the class.
func (c *Component) IDGenerator() idgen.Generator {
	if g := c.Class().idGenerator; g != nil {
		return g
	}
	return idgen.Default
}

// TypeTag returns the wire type tag: "Movie" for instances and
// "typeof Movie" for classes.
func (c *Component) TypeTag() string {
	if c.IsClass() {
		return "typeof " + c.name
	}
	return c.name
}

func (c *Component) String() string { return c.TypeTag() }

// DeclareAttribute declares an instance attribute on a class.
func (c *Component) DeclareAttribute(name string, opts AttributeOptions) (*Attribute, error) {
	return c.declareAttribute(c.prototype, name, KindAttribute, opts)
}

// DeclareStaticAttribute declares an attribute on the class itself.
func (c *Component) DeclareStaticAttribute(name string, opts AttributeOptions) (*Attribute, error) {
	return c.declareAttribute(c.properties, name, KindAttribute, opts)
}

// DeclarePrimaryIdentifier declares the primary identifier attribute. A
// string identifier without a default is filled from the class identifier
// generator.
func (c *Component) DeclarePrimaryIdentifier(name string, opts AttributeOptions) (*Attribute, error) {
	if existing := c.PrimaryIdentifierAttribute(); existing != nil && existing.Name() != name {
		return nil, fmt.Errorf("%w: %s already has primary identifier %q",
			ErrInvalidDeclaration, c.name, existing.Name())
	}
	return c.declareAttribute(c.prototype, name, KindPrimaryIdentifier, opts)
}

// DeclareSecondaryIdentifier declares a secondary identifier attribute.
func (c *Component) DeclareSecondaryIdentifier(name string, opts AttributeOptions) (*Attribute, error) {
	return c.declareAttribute(c.prototype, name, KindSecondaryIdentifier, opts)
}

// DeclareMethod declares an instance method.
func (c *Component) DeclareMethod(name string, exposure Exposure) (*Method, error) {
	return c.declareMethod(c.prototype, name, exposure)
}

// DeclareStaticMethod declares a method on the class itself.
func (c *Component) DeclareStaticMethod(name string, exposure Exposure) (*Method, error) {
	return c.declareMethod(c.properties, name, exposure)
}

func (c *Component) checkDeclaration(table *propertyTable, name string) error {
	if !c.IsClass() {
		return fmt.Errorf("%w: cannot declare %q on instance %s", ErrInvalidDeclaration, name, c.name)
	}
	if name == "" || isReservedKey(name) {
		return fmt.Errorf("%w: invalid property name %q on %s", ErrInvalidDeclaration, name, c.name)
	}
	if table.declares(name) {
		return fmt.Errorf("%w: %s.%s is already declared", ErrInvalidDeclaration, c.name, name)
	}
	return nil
}

func (c *Component) declareAttribute(table *propertyTable, name string, kind PropertyKind, opts AttributeOptions) (*Attribute, error) {
	if err := c.checkDeclaration(table, name); err != nil {
		return nil, err
	}
	if kind.IsIdentifier() && c.embedded {
		return nil, fmt.Errorf("%w: embedded component %s cannot declare identifier %q",
			ErrInvalidDeclaration, c.name, name)
	}
	a, err := newAttribute(name, kind, c, opts)
	if err != nil {
		return nil, err
	}
	table.declare(a)
	return a, nil
}

func (c *Component) declareMethod(table *propertyTable, name string, exposure Exposure) (*Method, error) {
	if err := c.checkDeclaration(table, name); err != nil {
		return nil, err
	}
	m := newMethod(name, c, exposure)
	table.declare(m)
	return m, nil
}

// GetProperty returns the named property.
func (c *Component) GetProperty(name string) (Property, error) {
	p := c.properties.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingProperty, c.name, name)
	}
	return p, nil
}

// HasProperty reports whether the named property exists.
func (c *Component) HasProperty(name string) bool {
	return c.properties.has(name)
}

// GetAttribute returns the named attribute.
func (c *Component) GetAttribute(name string) (*Attribute, error) {
	p, err := c.GetProperty(name)
	if err != nil {
		return nil, err
	}
	a, ok := p.(*Attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not an attribute", ErrWrongPropertyKind, p.Describe(), p.Kind())
	}
	return a, nil
}

// GetMethod returns the named method.
func (c *Component) GetMethod(name string) (*Method, error) {
	p, err := c.GetProperty(name)
	if err != nil {
		return nil, err
	}
	m, ok := p.(*Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a method", ErrWrongPropertyKind, p.Describe())
	}
	return m, nil
}

// Properties returns every property in declaration order.
func (c *Component) Properties() []Property {
	names := c.properties.names()
	props := make([]Property, 0, len(names))
	for _, name := range names {
		props = append(props, c.properties.lookup(name))
	}
	return props
}

// Attributes returns every attribute in declaration order.
func (c *Component) Attributes() []*Attribute {
	var attrs []*Attribute
	for _, p := range c.Properties() {
		if a, ok := p.(*Attribute); ok {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// Methods returns every method in declaration order.
func (c *Component) Methods() []*Method {
	var methods []*Method
	for _, p := range c.Properties() {
		if m, ok := p.(*Method); ok {
			methods = append(methods, m)
		}
	}
	return methods
}

// IdentifierAttributes returns the identifier attributes in declaration
// order. For a class they are read from its prototype.
func (c *Component) IdentifierAttributes() []*Attribute {
	table := c.properties
	if c.IsClass() {
		table = c.prototype
	}
	var attrs []*Attribute
	for _, name := range table.names() {
		if a, ok := table.lookup(name).(*Attribute); ok && a.IsIdentifier() {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// PrimaryIdentifierAttribute returns the primary identifier, or nil.
func (c *Component) PrimaryIdentifierAttribute() *Attribute {
	for _, a := range c.IdentifierAttributes() {
		if a.IsPrimaryIdentifier() {
			return a
		}
	}
	return nil
}

// IsIdentifiable reports whether instances of the class have an identity.
func (c *Component) IsIdentifiable() bool {
	return !c.IsEmbedded() && len(c.IdentifierAttributes()) > 0
}

// Get returns the value of the named attribute.
func (c *Component) Get(name string) (any, error) {
	a, err := c.GetAttribute(name)
	if err != nil {
		return nil, err
	}
	return a.GetValue()
}

// Set sets the value of the named attribute.
func (c *Component) Set(name string, value any) error {
	a, err := c.GetAttribute(name)
	if err != nil {
		return err
	}
	return a.SetValue(value)
}

// Unset unsets the named attribute.
func (c *Component) Unset(name string) error {
	a, err := c.GetAttribute(name)
	if err != nil {
		return err
	}
	return a.UnsetValue()
}

// IsNew reports whether the instance has not been persisted yet. Classes
// are never new.
func (c *Component) IsNew() bool {
	for x := c; x != nil; x = x.origin {
		if x.isNew != nil {
			return *x.isNew
		}
	}
	return false
}

// MarkAsNew marks the instance as new.
func (c *Component) MarkAsNew() { c.isNew = boolPtr(true) }

// MarkAsNotNew marks the instance as persisted.
func (c *Component) MarkAsNotNew() { c.isNew = boolPtr(false) }

func boolPtr(b bool) *bool { return &b }

func isReservedKey(name string) bool {
	return name == componentKey || name == newKey
}

type propertyTable struct {
	owner    *Component
	origin   *propertyTable
	props    map[string]Property
	declared map[string]bool
	order    []string
}

func newPropertyTable(owner *Component, origin *propertyTable) *propertyTable {
	return &propertyTable{
		owner:    owner,
		origin:   origin,
		props:    map[string]Property{},
		declared: map[string]bool{},
	}
}

func (t *propertyTable) declares(name string) bool {
	return t.declared[name]
}

// declare adds p to this layer. Names inherited from the origin keep their
// position.
func (t *propertyTable) declare(p Property) {
	name := p.Name()
	t.props[name] = p
	t.declared[name] = true
	if t.origin == nil || !t.origin.has(name) {
		t.order = append(t.order, name)
	}
}

func (t *propertyTable) has(name string) bool {
	for x := t; x != nil; x = x.origin {
		if _, ok := x.props[name]; ok {
			return true
		}
	}
	return false
}

// lookup returns the property owned by this layer, forking the inherited
// one into it first.
func (t *propertyTable) lookup(name string) Property {
	if p, ok := t.props[name]; ok {
		return p
	}
	if t.origin == nil {
		return nil
	}
	inherited := t.origin.lookup(name)
	if inherited == nil {
		return nil
	}
	p := inherited.fork(t.owner)
	t.props[name] = p
	return p
}

func (t *propertyTable) names() []string {
	var names []string
	if t.origin != nil {
		names = t.origin.names()
	}
	return append(names, t.order...)
}
