// Package validation runs validators against attribute values and reports
// every failure with the path of the offending value.
//
// Validators are values, so they can be declared once on an attribute and
// introspected (name and arguments) by a remote peer. All built-in
// validators except Required accept nil.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pthm/hxmodel/lib/valuecodec"
)

// Validator checks a single value.
type Validator struct {
	Name    string
	Args    []any
	Message string

	check func(value any) bool
	items []Validator
}

// Failure is a validator that did not pass, with the path of the value it
// was run against. Path is relative to the value given to Run: "" for the
// value itself, "[2]" for the third element, and so on.
type Failure struct {
	Validator Validator
	Path      string
}

// Error renders the failure as "path: message".
func (f Failure) Error() string {
	if f.Path == "" {
		return f.Validator.Describe()
	}
	return f.Path + ": " + f.Validator.Describe()
}

// New creates a custom validator.
func New(name string, check func(value any) bool, args ...any) Validator {
	return Validator{Name: name, Args: args, check: check}
}

// WithMessage returns a copy of v reporting message on failure.
func (v Validator) WithMessage(message string) Validator {
	v.Message = message
	return v
}

// Describe returns the failure message, or name(args) when none was set.
func (v Validator) Describe() string {
	if v.Message != "" {
		return v.Message
	}
	if len(v.Args) == 0 {
		return v.Name + "()"
	}
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		args[i] = fmt.Sprint(a)
	}
	return v.Name + "(" + strings.Join(args, ", ") + ")"
}

// Run runs validators against value and returns every failure.
func Run(value any, validators []Validator) []Failure {
	var failures []Failure
	for _, v := range validators {
		if v.items != nil {
			failures = append(failures, runItems(value, v.items)...)
			continue
		}
		if v.check != nil && !v.check(value) {
			failures = append(failures, Failure{Validator: v})
		}
	}
	return failures
}

func runItems(value any, validators []Validator) []Failure {
	rv := reflect.ValueOf(value)
	if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	var failures []Failure
	for i := 0; i < rv.Len(); i++ {
		for _, f := range Run(rv.Index(i).Interface(), validators) {
			f.Path = JoinIndex("", i) + trimDot(f.Path)
			failures = append(failures, f)
		}
	}
	return failures
}

// JoinPath appends an attribute name to a dotted path.
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// JoinIndex appends an index to a path.
func JoinIndex(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}

func trimDot(path string) string {
	if path == "" || strings.HasPrefix(path, "[") {
		return path
	}
	return "." + path
}

// Required fails on nil and on the empty string.
func Required() Validator {
	return New("required", func(v any) bool {
		if v == nil {
			return false
		}
		if s, ok := v.(string); ok {
			return s != ""
		}
		return true
	})
}

// NotEmpty fails on empty strings, slices and maps.
func NotEmpty() Validator {
	return New("notEmpty", func(v any) bool {
		n, ok := length(v)
		return !ok || n > 0
	})
}

// MinLength fails when a string (in runes), slice or map is shorter than n.
func MinLength(n int) Validator {
	return New("minLength", func(v any) bool {
		l, ok := length(v)
		return !ok || l >= n
	}, n)
}

// MaxLength fails when a string (in runes), slice or map is longer than n.
func MaxLength(n int) Validator {
	return New("maxLength", func(v any) bool {
		l, ok := length(v)
		return !ok || l <= n
	}, n)
}

// Min fails when a number is lower than n.
func Min(n float64) Validator {
	return New("min", func(v any) bool {
		f, ok := valuecodec.ToFloat64(v)
		return !ok || f >= n
	}, n)
}

// Max fails when a number is greater than n.
func Max(n float64) Validator {
	return New("max", func(v any) bool {
		f, ok := valuecodec.ToFloat64(v)
		return !ok || f <= n
	}, n)
}

// Integer fails when a number has a fractional part.
func Integer() Validator {
	return New("integer", func(v any) bool {
		f, ok := valuecodec.ToFloat64(v)
		return !ok || f == float64(int64(f))
	})
}

// Match fails when a string does not match re.
func Match(re *regexp.Regexp) Validator {
	return New("match", func(v any) bool {
		s, ok := v.(string)
		return !ok || re.MatchString(s)
	}, re.String())
}

// AnyOf fails when the value is not one of values.
func AnyOf(values ...any) Validator {
	return New("anyOf", func(v any) bool {
		if v == nil {
			return true
		}
		for _, candidate := range values {
			if reflect.DeepEqual(candidate, v) {
				return true
			}
			a, aok := valuecodec.ToFloat64(candidate)
			b, bok := valuecodec.ToFloat64(v)
			if aok && bok && a == b {
				return true
			}
		}
		return false
	}, values...)
}

// Each runs validators against every element of a slice value, reporting
// failures at indexed paths.
func Each(validators ...Validator) Validator {
	return Validator{Name: "each", items: validators}
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
