package hxmodel

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pthm/hxmodel/lib/valuecodec"
)

type valueKind uint8

const (
	kindAny valueKind = iota
	kindString
	kindNumber
	kindBoolean
	kindObject
	kindDate
	kindComponent
	kindComponentClass
	kindArray
)

// ValueType describes the values an attribute accepts.
//
// Syntax: any, string, number, boolean, object, Date, a component name
// (Movie), a component class (typeof Movie), arrays (Movie[]) and an
// optional suffix (string?). An empty string means any.
type ValueType struct {
	kind      valueKind
	component string
	elem      *ValueType
	optional  bool
}

// ParseValueType parses a value type expression.
func ParseValueType(s string) (ValueType, error) {
	s = strings.TrimSpace(s)
	var t ValueType
	if strings.HasSuffix(s, "?") {
		t.optional = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "?"))
	}

	switch {
	case s == "" || s == "any":
		t.kind = kindAny
	case strings.HasSuffix(s, "[]"):
		elem, err := ParseValueType(strings.TrimSuffix(s, "[]"))
		if err != nil {
			return ValueType{}, err
		}
		t.kind = kindArray
		t.elem = &elem
	case s == "string":
		t.kind = kindString
	case s == "number":
		t.kind = kindNumber
	case s == "boolean":
		t.kind = kindBoolean
	case s == "object":
		t.kind = kindObject
	case s == "Date":
		t.kind = kindDate
	case strings.HasPrefix(s, "typeof "):
		name := strings.TrimSpace(strings.TrimPrefix(s, "typeof "))
		if !isComponentName(name) {
			return ValueType{}, fmt.Errorf("%w: invalid value type %q", ErrInvalidDeclaration, s)
		}
		t.kind = kindComponentClass
		t.component = name
	default:
		if !isComponentName(s) {
			return ValueType{}, fmt.Errorf("%w: invalid value type %q", ErrInvalidDeclaration, s)
		}
		t.kind = kindComponent
		t.component = s
	}
	return t, nil
}

func isComponentName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// String returns the value type expression.
func (t ValueType) String() string {
	var s string
	switch t.kind {
	case kindAny:
		s = "any"
	case kindString:
		s = "string"
	case kindNumber:
		s = "number"
	case kindBoolean:
		s = "boolean"
	case kindObject:
		s = "object"
	case kindDate:
		s = "Date"
	case kindComponent:
		s = t.component
	case kindComponentClass:
		s = "typeof " + t.component
	case kindArray:
		s = t.elem.String() + "[]"
	}
	if t.optional {
		s += "?"
	}
	return s
}

// IsOptional reports whether nil satisfies the type during validation.
// any is always optional.
func (t ValueType) IsOptional() bool {
	return t.optional || t.kind == kindAny
}

// IsIdentifierType reports whether values of t can identify a component.
func (t ValueType) IsIdentifierType() bool {
	return t.kind == kindString || t.kind == kindNumber
}

// Check reports ErrTypeMismatch when value does not belong to t. nil is
// accepted by every type; requiredness is checked by validation.
func (t ValueType) Check(value any) error {
	if value == nil {
		return nil
	}
	if t.matches(value) {
		return nil
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, t, describeValue(value))
}

func (t ValueType) matches(value any) bool {
	switch t.kind {
	case kindAny:
		return true
	case kindString:
		_, ok := value.(string)
		return ok
	case kindNumber:
		return valuecodec.IsNumber(value)
	case kindBoolean:
		_, ok := value.(bool)
		return ok
	case kindObject:
		rv := reflect.ValueOf(value)
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case kindDate:
		_, ok := value.(time.Time)
		return ok
	case kindComponent:
		c, ok := value.(*Component)
		return ok && c != nil && c.IsInstance() && c.Name() == t.component
	case kindComponentClass:
		c, ok := value.(*Component)
		return ok && c != nil && c.IsClass() && c.Name() == t.component
	case kindArray:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if t.elem.Check(rv.Index(i).Interface()) != nil {
				return false
			}
		}
		return true
	}
	return false
}

func describeValue(value any) string {
	if c, ok := value.(*Component); ok && c != nil {
		return c.TypeTag()
	}
	return fmt.Sprintf("%T", value)
}
