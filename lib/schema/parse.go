package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm/hxmodel"
)

// ErrInvalidSchema is returned for documents that fail validation.
var ErrInvalidSchema = errors.New("schema: invalid document")

// ParseFile parses component documents from a YAML file.
func ParseFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	docs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Parse parses component documents from YAML bytes. A stream may hold
// several documents separated by "---".
func Parse(data []byte) ([]Document, error) {
	var docs []Document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if err := Validate(doc); err != nil {
			return nil, fmt.Errorf("validate component %q: %w", doc.Component, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// ParseDir parses all component documents from a directory, including
// subdirectories.
func ParseDir(dir string) ([]Document, error) {
	var docs []Document

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		parsed, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}

	return docs, nil
}

// Validate validates a component document.
func Validate(doc Document) error {
	var errs []string

	if doc.Component == "" {
		errs = append(errs, "component name is required")
	} else if !isValidIdentifier(doc.Component) {
		errs = append(errs, fmt.Sprintf("component name %q is not a valid identifier", doc.Component))
	}

	switch doc.IDGenerator {
	case "", "uuid", "ulid":
	default:
		errs = append(errs, fmt.Sprintf("unknown idGenerator %q", doc.IDGenerator))
	}

	seen := map[string]bool{}
	primaries := 0
	for _, attr := range doc.Attributes {
		if err := validateAttribute(attr, seen); err != nil {
			errs = append(errs, err.Error())
		}
		switch attr.Identifier {
		case "":
		case IdentifierPrimary:
			primaries++
		case IdentifierSecondary:
		default:
			errs = append(errs, fmt.Sprintf("attribute %q: unknown identifier kind %q", attr.Name, attr.Identifier))
		}
		if attr.Identifier != "" && doc.Embedded {
			errs = append(errs, fmt.Sprintf("attribute %q: embedded components have no identifiers", attr.Name))
		}
	}
	if primaries > 1 {
		errs = append(errs, "at most one primary identifier is allowed")
	}
	for _, m := range doc.Methods {
		if err := validateMethod(m, seen); err != nil {
			errs = append(errs, err.Error())
		}
	}

	staticSeen := map[string]bool{}
	for _, attr := range doc.Static {
		if err := validateAttribute(attr, staticSeen); err != nil {
			errs = append(errs, "static "+err.Error())
		}
		if attr.Identifier != "" {
			errs = append(errs, fmt.Sprintf("static attribute %q cannot be an identifier", attr.Name))
		}
	}
	for _, m := range doc.StaticMethods {
		if err := validateMethod(m, staticSeen); err != nil {
			errs = append(errs, "static "+err.Error())
		}
	}

	for _, name := range append(append([]string(nil), doc.Provides...), doc.Consumes...) {
		if !isValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("component reference %q is not a valid identifier", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation errors:\n  - %s", ErrInvalidSchema, strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateAttribute(attr Attribute, seen map[string]bool) error {
	if !isValidIdentifier(attr.Name) {
		return fmt.Errorf("attribute name %q is not a valid identifier", attr.Name)
	}
	if seen[attr.Name] {
		return fmt.Errorf("attribute %q is declared twice", attr.Name)
	}
	seen[attr.Name] = true

	if _, err := hxmodel.ParseValueType(attr.Type); err != nil {
		return fmt.Errorf("attribute %q: %v", attr.Name, err)
	}
	for _, v := range attr.Validators {
		if _, err := buildValidator(v); err != nil {
			return fmt.Errorf("attribute %q: %v", attr.Name, err)
		}
	}
	return nil
}

func validateMethod(m Method, seen map[string]bool) error {
	if !isValidIdentifier(m.Name) {
		return fmt.Errorf("method name %q is not a valid identifier", m.Name)
	}
	if seen[m.Name] {
		return fmt.Errorf("property %q is declared twice", m.Name)
	}
	seen[m.Name] = true
	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
