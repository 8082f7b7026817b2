package hxmodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pthm/hxmodel/lib/encoding"
	"github.com/pthm/hxmodel/lib/validation"
)

// Sentinel errors for component operations. Returned errors wrap one of
// these with the component and attribute path involved; test with
// errors.Is.
var (
	ErrMissingProperty             = errors.New("hxmodel: property not found")
	ErrWrongPropertyKind           = errors.New("hxmodel: wrong property kind")
	ErrIdentifierCollision         = errors.New("hxmodel: identifier collision")
	ErrInvalidIdentifierDescriptor = errors.New("hxmodel: invalid identifier descriptor")
	ErrMissingIdentifier           = errors.New("hxmodel: missing identifier")
	ErrUnsetAttributeAccess        = errors.New("hxmodel: access to unset attribute")
	ErrTypeMismatch                = errors.New("hxmodel: value type mismatch")
	ErrValidationFailure           = errors.New("hxmodel: validation failed")
	ErrUnexpectedComponentType     = errors.New("hxmodel: unexpected component type")
	ErrAlreadyNewConflict          = errors.New("hxmodel: cannot mark an existing component as new")
	ErrGetterSetterConfiguration   = errors.New("hxmodel: invalid getter/setter configuration")
	ErrReadOnlyAttribute           = errors.New("hxmodel: attribute has a getter and no setter")
	ErrInvalidDeclaration          = errors.New("hxmodel: invalid property declaration")
	ErrMissingComponentResolver    = errors.New("hxmodel: no component resolver")
	ErrDetachedComponent           = errors.New("hxmodel: component is detached")
	ErrUnknownComponent            = errors.New("hxmodel: unknown component")

	ErrDecryptFailed    = errors.New("hxmodel: payload decryption failed")
	ErrSignatureInvalid = errors.New("hxmodel: signature verification failed")
	ErrInvalidFormat    = errors.New("hxmodel: invalid payload format")
)

// IsIdentifierCollision checks if err is an identifier collision.
func IsIdentifierCollision(err error) bool {
	return errors.Is(err, ErrIdentifierCollision)
}

// IsUnsetAttributeAccess checks if err reports a read of an unset attribute.
func IsUnsetAttributeAccess(err error) bool {
	return errors.Is(err, ErrUnsetAttributeAccess)
}

// IsValidationFailure checks if err is a validation failure.
func IsValidationFailure(err error) bool {
	return errors.Is(err, ErrValidationFailure)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// wrapEncodingError wraps encoding package errors with hxmodel sentinel errors.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if errors.Is(err, encoding.ErrSignatureInvalid) {
		return ErrSignatureInvalid
	}
	if errors.Is(err, encoding.ErrDecryptFailed) {
		return ErrDecryptFailed
	}
	return err
}

// ValidationFailure is one failed validator with the full path of the
// value it ran against (for example "director.name" or "tags[2]").
type ValidationFailure struct {
	Path      string
	Validator validation.Validator
}

// ValidationError aggregates every failed validator of a Validate call.
type ValidationError struct {
	Component string
	Failures  []ValidationFailure
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hxmodel: validation failed for %s (%d failed validator", e.Component, len(e.Failures))
	if len(e.Failures) != 1 {
		b.WriteByte('s')
	}
	b.WriteString(")")

	paths := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		paths = append(paths, f.Path+": "+f.Validator.Describe())
	}
	sort.Strings(paths)
	for _, p := range paths {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrValidationFailure) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailure
}
