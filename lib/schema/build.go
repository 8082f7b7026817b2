package schema

import (
	"fmt"
	"regexp"

	"github.com/pthm/hxmodel"
	"github.com/pthm/hxmodel/lib/idgen"
	"github.com/pthm/hxmodel/lib/validation"
	"github.com/pthm/hxmodel/lib/valuecodec"
)

// Build declares a class per document, in document order. Provides must
// name classes of the same set of documents.
func Build(docs []Document) ([]*hxmodel.Component, error) {
	classes := make([]*hxmodel.Component, 0, len(docs))
	byName := make(map[string]*hxmodel.Component, len(docs))

	for _, doc := range docs {
		if err := Validate(doc); err != nil {
			return nil, fmt.Errorf("validate component %q: %w", doc.Component, err)
		}
		if _, exists := byName[doc.Component]; exists {
			return nil, fmt.Errorf("%w: component %q is declared twice", ErrInvalidSchema, doc.Component)
		}
		class, err := declare(doc)
		if err != nil {
			return nil, fmt.Errorf("declare component %q: %w", doc.Component, err)
		}
		classes = append(classes, class)
		byName[doc.Component] = class
	}

	for i, doc := range docs {
		for _, name := range doc.Provides {
			provided, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s provides unknown component %q", ErrInvalidSchema, doc.Component, name)
			}
			if err := classes[i].ProvideComponent(provided); err != nil {
				return nil, err
			}
		}
		for _, name := range doc.Consumes {
			classes[i].ConsumeComponent(name)
		}
	}

	return classes, nil
}

func declare(doc Document) (*hxmodel.Component, error) {
	class := hxmodel.NewClass(doc.Component)
	if doc.Embedded {
		class.Embedded()
	}
	switch doc.IDGenerator {
	case "ulid":
		class.WithIDGenerator(idgen.ULID{})
	case "uuid":
		class.WithIDGenerator(idgen.UUID{})
	}

	for _, attr := range doc.Attributes {
		opts, err := attributeOptions(attr)
		if err != nil {
			return nil, err
		}
		switch attr.Identifier {
		case IdentifierPrimary:
			_, err = class.DeclarePrimaryIdentifier(attr.Name, opts)
		case IdentifierSecondary:
			_, err = class.DeclareSecondaryIdentifier(attr.Name, opts)
		default:
			_, err = class.DeclareAttribute(attr.Name, opts)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, m := range doc.Methods {
		if _, err := class.DeclareMethod(m.Name, m.Expose); err != nil {
			return nil, err
		}
	}

	for _, attr := range doc.Static {
		opts, err := attributeOptions(attr)
		if err != nil {
			return nil, err
		}
		if _, err := class.DeclareStaticAttribute(attr.Name, opts); err != nil {
			return nil, err
		}
	}
	for _, m := range doc.StaticMethods {
		if _, err := class.DeclareStaticMethod(m.Name, m.Expose); err != nil {
			return nil, err
		}
	}

	return class, nil
}

func attributeOptions(attr Attribute) (hxmodel.AttributeOptions, error) {
	opts := hxmodel.AttributeOptions{
		ValueType:  attr.Type,
		Value:      attr.Value,
		Default:    attr.Default,
		Controlled: attr.Controlled,
		Exposure:   attr.Expose,
	}
	for _, v := range attr.Validators {
		built, err := buildValidator(v)
		if err != nil {
			return opts, err
		}
		opts.Validators = append(opts.Validators, built)
	}
	return opts, nil
}

// buildValidator maps a named validator to its built-in implementation.
func buildValidator(v Validator) (validation.Validator, error) {
	var (
		built validation.Validator
		err   error
	)

	switch v.Name {
	case "required":
		built, err = noArgs(v, validation.Required())
	case "notEmpty":
		built, err = noArgs(v, validation.NotEmpty())
	case "integer":
		built, err = noArgs(v, validation.Integer())
	case "minLength":
		var n int
		if n, err = intArg(v); err == nil {
			built = validation.MinLength(n)
		}
	case "maxLength":
		var n int
		if n, err = intArg(v); err == nil {
			built = validation.MaxLength(n)
		}
	case "min":
		var n float64
		if n, err = numberArg(v); err == nil {
			built = validation.Min(n)
		}
	case "max":
		var n float64
		if n, err = numberArg(v); err == nil {
			built = validation.Max(n)
		}
	case "match":
		var re *regexp.Regexp
		if re, err = patternArg(v); err == nil {
			built = validation.Match(re)
		}
	case "anyOf":
		if len(v.Args) == 0 {
			err = fmt.Errorf("validator anyOf needs at least one argument")
		} else {
			built = validation.AnyOf(v.Args...)
		}
	default:
		err = fmt.Errorf("unknown validator %q", v.Name)
	}
	if err != nil {
		return validation.Validator{}, err
	}

	if v.Message != "" {
		built = built.WithMessage(v.Message)
	}
	return built, nil
}

func noArgs(v Validator, built validation.Validator) (validation.Validator, error) {
	if len(v.Args) != 0 {
		return validation.Validator{}, fmt.Errorf("validator %s takes no arguments", v.Name)
	}
	return built, nil
}

func numberArg(v Validator) (float64, error) {
	if len(v.Args) != 1 {
		return 0, fmt.Errorf("validator %s needs one number argument", v.Name)
	}
	n, ok := valuecodec.ToFloat64(v.Args[0])
	if !ok {
		return 0, fmt.Errorf("validator %s needs one number argument", v.Name)
	}
	return n, nil
}

func intArg(v Validator) (int, error) {
	n, err := numberArg(v)
	if err != nil {
		return 0, err
	}
	if n != float64(int(n)) || n < 0 {
		return 0, fmt.Errorf("validator %s needs a non-negative integer argument", v.Name)
	}
	return int(n), nil
}

func patternArg(v Validator) (*regexp.Regexp, error) {
	if len(v.Args) != 1 {
		return nil, fmt.Errorf("validator match needs one pattern argument")
	}
	pattern, ok := v.Args[0].(string)
	if !ok {
		return nil, fmt.Errorf("validator match needs one pattern argument")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("validator match: %w", err)
	}
	return re, nil
}
