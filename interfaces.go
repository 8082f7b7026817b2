package hxmodel

import "context"

// Resolver maps the component name found in a type tag back to its class.
// Deserializing a tree that holds type tags requires one.
//
// *Component implements Resolver: a class knows itself, the classes it
// provides, the classes it consumes (through its provider) and, once added
// to one, its Registry. *Registry implements Resolver for every registered
// class.
//
// Example:
//
//	movie, err := hxmodel.Deserialize(ctx, tree, hxmodel.DeserializeOptions{
//	    Resolver: reg,
//	})
type Resolver interface {
	GetComponent(name string) (*Component, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (*Component, error)

// GetComponent calls f.
func (f ResolverFunc) GetComponent(name string) (*Component, error) {
	return f(name)
}

// AttributeFilter decides whether an attribute takes part in a traversal
// (selector resolution, serialization, deserialization).
//
// A filter may block, for instance to consult an authorization service.
// Traversals call it for one attribute at a time, in declaration order, and
// wait for it before moving to the next attribute:
//
//	filter := func(ctx context.Context, a *hxmodel.Attribute) (bool, error) {
//	    return policy.CanRead(ctx, a.Parent().Name(), a.Name())
//	}
type AttributeFilter func(ctx context.Context, a *Attribute) (bool, error)
