package hxmodel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pthm/hxmodel/lib/encoding"
)

// Registry resolves component names to classes and moves serialized
// components across a process boundary as encoded strings.
type Registry struct {
	mu         sync.RWMutex
	encoder    *encoding.Encoder
	components map[string]*Component // map[name]class
}

// NewRegistry creates a new registry with the given encryption key.
func NewRegistry(encryptionKey []byte) *Registry {
	enc, err := encoding.NewEncoder(encryptionKey)
	if err != nil {
		panic(fmt.Sprintf("hxmodel: failed to create encoder: %v", err))
	}

	return &Registry{
		encoder:    enc,
		components: make(map[string]*Component),
	}
}

// Encoder returns the registry's encoder.
func (reg *Registry) Encoder() *encoding.Encoder {
	return reg.encoder
}

// Add registers classes with the registry, together with the classes they
// provide. Registered classes fall back to the registry when resolving
// names they do not know.
// Panics if a component is not a class or has a name collision.
func (reg *Registry) Add(classes ...*Component) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, class := range classes {
		reg.registerComponent(class)
	}
}

func (reg *Registry) registerComponent(class *Component) {
	if class == nil || !class.IsClass() {
		panic(fmt.Sprintf("hxmodel: cannot register %v: not a class", class))
	}
	if existing, exists := reg.components[class.name]; exists {
		if existing == class {
			return
		}
		panic(fmt.Sprintf("hxmodel: name collision for %q", class.name))
	}
	reg.components[class.name] = class
	class.resolver = reg
	log().Debug().Str("component", class.name).Msg("registry add")

	for _, provided := range class.ProvidedComponents() {
		reg.registerComponent(provided)
	}
}

// GetComponent implements Resolver.
func (reg *Registry) GetComponent(name string) (*Component, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	class, ok := reg.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownComponent, name)
	}
	return class, nil
}

// Names returns the registered component names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.components))
	for name := range reg.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	SerializeOptions
	// Sensitive encrypts the payload instead of signing it.
	Sensitive bool
}

// DecodeOptions configures Decode.
type DecodeOptions struct {
	Sensitive       bool
	Source          ValueSource
	AttributeFilter AttributeFilter
}

// Encode serializes c and packs the tree into a signed (or, when
// sensitive, encrypted) string.
func (reg *Registry) Encode(ctx context.Context, c *Component, opts EncodeOptions) (string, error) {
	tree, err := c.Serialize(ctx, opts.SerializeOptions)
	if err != nil {
		return "", err
	}
	encoded, err := reg.encoder.Encode(tree, opts.Sensitive)
	if err != nil {
		return "", wrapEncodingError(err)
	}
	metricsCollector().RecordEncode(c.name, opts.Sensitive)
	return encoded, nil
}

// Decode unpacks a string produced by Encode and deserializes it, resolving
// type tags through the registry.
func (reg *Registry) Decode(ctx context.Context, payload string, opts DecodeOptions) (*Component, error) {
	tree, err := reg.encoder.Decode(payload, opts.Sensitive)
	if err != nil {
		metricsCollector().RecordDecodeError(opts.Sensitive)
		return nil, wrapEncodingError(err)
	}
	return reg.deserialize(ctx, tree, opts)
}

// EncodeJSON serializes c as plain JSON, for peers that do not share the
// registry key.
func (reg *Registry) EncodeJSON(ctx context.Context, c *Component, opts SerializeOptions) ([]byte, error) {
	tree, err := c.Serialize(ctx, opts)
	if err != nil {
		return nil, err
	}
	data, err := encoding.MarshalJSON(tree)
	if err != nil {
		return nil, err
	}
	metricsCollector().RecordEncode(c.name, false)
	return data, nil
}

// DecodeJSON deserializes a JSON tree, resolving type tags through the
// registry.
func (reg *Registry) DecodeJSON(ctx context.Context, data []byte, opts DecodeOptions) (*Component, error) {
	tree, err := encoding.UnmarshalJSON(data)
	if err != nil {
		metricsCollector().RecordDecodeError(false)
		return nil, wrapEncodingError(err)
	}
	return reg.deserialize(ctx, tree, opts)
}

func (reg *Registry) deserialize(ctx context.Context, tree map[string]any, opts DecodeOptions) (*Component, error) {
	c, err := Deserialize(ctx, tree, DeserializeOptions{
		Resolver:        reg,
		Source:          opts.Source,
		AttributeFilter: opts.AttributeFilter,
	})
	if err != nil {
		return nil, err
	}
	metricsCollector().RecordDecode(c.name, opts.Sensitive)
	return c, nil
}
