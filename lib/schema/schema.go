// Package schema declares component classes from YAML documents.
//
// A document describes one class:
//
//	component: Movie
//	idGenerator: ulid
//	attributes:
//	  - { name: id, identifier: primary }
//	  - { name: slug, identifier: secondary }
//	  - name: title
//	    type: string
//	    validators: [{ name: notEmpty }, { name: maxLength, args: [200] }]
//	    expose: { get: true, set: true }
//	  - { name: rating, type: number?, default: 0 }
//	static:
//	  - { name: limit, type: number, value: 100 }
//	methods:
//	  - { name: play, expose: { call: true } }
//	provides: [Person]
//
// Attribute order in the document is the declaration order.
package schema

import "github.com/pthm/hxmodel"

// Document describes a component class.
type Document struct {
	Component string `yaml:"component"`

	// Embedded marks a class whose instances have no identity.
	Embedded bool `yaml:"embedded,omitempty"`

	// IDGenerator selects the generator for unset primary identifiers:
	// uuid (default) or ulid.
	IDGenerator string `yaml:"idGenerator,omitempty"`

	Attributes    []Attribute `yaml:"attributes,omitempty"`
	Static        []Attribute `yaml:"static,omitempty"`
	Methods       []Method    `yaml:"methods,omitempty"`
	StaticMethods []Method    `yaml:"staticMethods,omitempty"`

	// Provides names classes (declared in the same set of documents) made
	// available to this class.
	Provides []string `yaml:"provides,omitempty"`

	// Consumes names classes resolved through the provider.
	Consumes []string `yaml:"consumes,omitempty"`
}

// Attribute describes an attribute declaration.
type Attribute struct {
	Name string `yaml:"name"`

	// Type is a value type expression (string, number?, Movie[], ...).
	Type string `yaml:"type,omitempty"`

	// Identifier is "primary" or "secondary" for identifier attributes.
	Identifier string `yaml:"identifier,omitempty"`

	// Value is the initial value.
	Value any `yaml:"value,omitempty"`

	// Default is the default value for new instances.
	Default any `yaml:"default,omitempty"`

	// Controlled attributes are never filled from construction values or
	// defaults.
	Controlled bool `yaml:"controlled,omitempty"`

	Validators []Validator `yaml:"validators,omitempty"`

	Expose hxmodel.Exposure `yaml:"expose,omitempty"`
}

// Validator names a built-in validator and its arguments.
type Validator struct {
	Name    string `yaml:"name"`
	Args    []any  `yaml:"args,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Method describes a method declaration.
type Method struct {
	Name   string           `yaml:"name"`
	Expose hxmodel.Exposure `yaml:"expose,omitempty"`
}

// Identifier kinds.
const (
	IdentifierPrimary   = "primary"
	IdentifierSecondary = "secondary"
)
