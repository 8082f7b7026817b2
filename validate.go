package hxmodel

import (
	"context"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/hxmodel/lib/selector"
	"github.com/pthm/hxmodel/lib/validation"
)

// Validate runs the validators of the selected, set attributes of c and of
// the components they hold. nil sel selects all. Every failure is collected
// into one *ValidationError; nil means c is valid.
//
// A nil value fails a "required" check unless the value type is optional.
func (c *Component) Validate(ctx context.Context, sel any) error {
	failures, err := c.ValidationFailures(ctx, sel)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		return &ValidationError{Component: c.TypeTag(), Failures: failures}
	}
	return nil
}

// IsValid reports whether Validate finds no failure.
func (c *Component) IsValid(ctx context.Context, sel any) (bool, error) {
	failures, err := c.ValidationFailures(ctx, sel)
	if err != nil {
		return false, err
	}
	return len(failures) == 0, nil
}

// ValidationFailures returns every failed validator with its path.
func (c *Component) ValidationFailures(ctx context.Context, sel any) ([]ValidationFailure, error) {
	ctx, span := tracer().Start(ctx, "hxmodel.Validate", trace.WithAttributes(
		attribute.String("component", c.TypeTag()),
	))
	defer span.End()

	resolved, err := c.ResolveSelector(ctx, sel, ResolveOptions{SetAttributesOnly: true})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	v := &validator{visited: map[*Component]bool{}}
	if err := v.component(c, resolved, ""); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("failures", len(v.failures)))
	return v.failures, nil
}

type validator struct {
	visited  map[*Component]bool
	failures []ValidationFailure
}

func (v *validator) component(c *Component, sel selector.Selector, prefix string) error {
	if v.visited[c] {
		return nil
	}
	v.visited[c] = true

	for _, a := range c.Attributes() {
		sub := sel.Get(a.Name())
		if sub.IsNone() {
			continue
		}
		value, set, err := a.GetValueIfSet()
		if err != nil {
			return err
		}
		if !set {
			continue
		}

		path := validation.JoinPath(prefix, a.Name())
		if value == nil && !a.ValueType().IsOptional() {
			v.failures = append(v.failures, ValidationFailure{Path: path, Validator: validation.Required()})
			continue
		}
		for _, f := range validation.Run(value, a.Validators()) {
			v.failures = append(v.failures, ValidationFailure{Path: appendPath(path, f.Path), Validator: f.Validator})
		}

		if err := v.nested(value, sub, path); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) nested(value any, sel selector.Selector, path string) error {
	if c, ok := value.(*Component); ok {
		if c == nil {
			return nil
		}
		return v.component(c, sel, path)
	}
	rv := reflect.ValueOf(value)
	if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	for i := 0; i < rv.Len(); i++ {
		if c, ok := rv.Index(i).Interface().(*Component); ok && c != nil {
			if err := v.component(c, sel, validation.JoinIndex(path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendPath(base, rel string) string {
	if rel == "" || strings.HasPrefix(rel, "[") {
		return base + rel
	}
	return base + "." + rel
}
