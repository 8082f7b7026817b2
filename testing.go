package hxmodel

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TestResult holds the outcome of a round trip for testing.
//
// Provides convenience methods for asserting that a component survives
// serialization, encoding and deserialization unchanged.
type TestResult struct {
	// Before is the tree serialized from the original component.
	Before map[string]any
	// After is the tree serialized from the component obtained back.
	After map[string]any
	// Payload is the encoded string, empty for JSON round trips.
	Payload string
	// Component is the component obtained back.
	Component *Component
}

// TestRoundTrip encodes c with the registry, decodes the payload and
// serializes the decoded component again with the same options.
//
// Use this to check that a component graph crosses the process boundary
// intact:
//
//	result, err := hxmodel.TestRoundTrip(ctx, reg, movie, hxmodel.EncodeOptions{})
//	if !result.Equal() {
//	    t.Fatal(result.Diff())
//	}
//
// Decoding resolves instances through the identity maps of the registered
// classes, so an attached identifiable c usually comes back as itself.
func TestRoundTrip(ctx context.Context, reg *Registry, c *Component, opts EncodeOptions) (*TestResult, error) {
	before, err := c.Serialize(ctx, opts.SerializeOptions)
	if err != nil {
		return nil, err
	}

	payload, err := reg.Encode(ctx, c, opts)
	if err != nil {
		return nil, err
	}

	decoded, err := reg.Decode(ctx, payload, DecodeOptions{Sensitive: opts.Sensitive})
	if err != nil {
		return nil, err
	}

	after, err := decoded.Serialize(ctx, opts.SerializeOptions)
	if err != nil {
		return nil, err
	}

	return &TestResult{
		Before:    before,
		After:     after,
		Payload:   payload,
		Component: decoded,
	}, nil
}

// TestJSONRoundTrip serializes c, passes the tree through JSON, deserializes
// it into target and serializes the result again.
//
// target is usually a fresh class declared like the class of c, so the
// round trip does not hit the identity map holding c.
func TestJSONRoundTrip(ctx context.Context, c, target *Component, opts SerializeOptions) (*TestResult, error) {
	before, err := c.Serialize(ctx, opts)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	decoded, err := target.Deserialize(ctx, tree, DeserializeOptions{})
	if err != nil {
		return nil, err
	}

	after, err := decoded.Serialize(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &TestResult{
		Before:    before,
		After:     after,
		Component: decoded,
	}, nil
}

// Equal reports whether both trees render to the same JSON. Numbers are
// compared by value, whatever their Go type.
func (r *TestResult) Equal() bool {
	return canonicalJSON(r.Before) == canonicalJSON(r.After)
}

// Diff returns a line diff between both trees, empty when they are equal.
// Removed lines start with "-", added lines with "+".
func (r *TestResult) Diff() string {
	before, after := canonicalJSON(r.Before), canonicalJSON(r.After)
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}

// Has reports whether the decoded tree holds key.
func (r *TestResult) Has(key string) bool {
	_, ok := r.After[key]
	return ok
}

// IsNew reports whether the decoded tree is marked new.
func (r *TestResult) IsNew() bool {
	return r.After[newKey] == true
}

// TypeTag returns the type tag of the decoded tree.
func (r *TestResult) TypeTag() string {
	tag, _ := r.After[componentKey].(string)
	return tag
}

// canonicalJSON renders a tree as indented JSON with sorted keys. Values
// pass through a JSON round trip first so int64 and float64 compare equal.
func canonicalJSON(tree map[string]any) string {
	data, err := json.Marshal(tree)
	if err != nil {
		return err.Error()
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return err.Error()
	}
	out, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}
