package selector

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToValue converts s into its JSON-compatible form: true, false or a
// map[string]any of sub-selectors.
func (s Selector) ToValue() any {
	switch s.kind {
	case kindAll:
		return true
	case kindNone:
		return false
	}
	out := make(map[string]any, len(s.sub))
	for name, sub := range s.sub {
		out[name] = sub.ToValue()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Selector) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToValue())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	parsed, err := Normalize(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Selector) MarshalYAML() (any, error) {
	return s.ToValue(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Besides booleans and mappings
// it accepts a sequence of names as shorthand for {name: true, ...}.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var names []string
		if err := node.Decode(&names); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
		}
		*s = Names(names...)
		return nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	parsed, err := Normalize(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
