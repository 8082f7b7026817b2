// Package hxmodel provides a runtime object model for typed components:
// classes and instances carrying attributes and methods that can be forked,
// merged, tracked by identity and serialized across a process boundary.
//
// # Core Concepts
//
// A component class declares attributes (values with an optional type,
// default, getter/setter and validators), identifier attributes and methods:
//
//	Movie := hxmodel.NewClass("Movie")
//	Movie.DeclarePrimaryIdentifier("id", hxmodel.AttributeOptions{})
//	Movie.DeclareAttribute("title", hxmodel.AttributeOptions{ValueType: "string"})
//	Movie.DeclareAttribute("rating", hxmodel.AttributeOptions{ValueType: "number?", Default: 0})
//
// Instances are created new with New, or looked up by identity with
// Instantiate:
//
//	movie, err := Movie.New(map[string]any{"title": "Inception"})
//	same, err := Movie.Instantiate(movie.Identifiers(), hxmodel.InstantiateOptions{})
//
// Attributes are read and written explicitly:
//
//	title, err := movie.Get("title")   // ErrUnsetAttributeAccess if unset
//	err = movie.Set("title", "Tenet")
//
// # Identity
//
// Every class owns an identity map from identifier values to attached
// instances. Within a class there is at most one instance per identifier
// value; colliding writes fail with ErrIdentifierCollision. Detach takes an
// instance out of identity tracking.
//
// # Forks and Ghosts
//
// Fork creates a copy-on-write derivative in constant time. Reads fall
// through to the origin until the fork writes:
//
//	ForkedMovie := Movie.Fork()
//	ForkedMovie.Set("limit", 500)  // Movie still reads 100
//
// A ghost is the memoized fork representing the pending next version of a
// component. Ghost instances live in the ghost class, and all instances
// sharing an identity share one ghost. Merge brings the changes of a fork
// back into its origin.
//
// # Attribute Selectors
//
// Traversals accept an attribute selector describing a partial attribute
// tree: true (everything), false (nothing) or a map of names to
// sub-selectors. See package lib/selector.
//
// # Wire Format
//
// Serialize produces a JSON-compatible tree:
//
//	{"__component": "Movie", "__new": true, "id": "abc123", "title": "Inception"}
//
// Classes are tagged "typeof Movie". Identifiable components held by
// attributes travel by reference (their identifier) unless requested in
// full; embedded components always travel by value. Deserialize reverses the
// process and reconciles identity, so two payloads naming the same movie
// converge on one instance.
//
// A Registry resolves type tags to classes and packs trees into signed or
// encrypted strings:
//
//	reg := hxmodel.NewRegistry(secret)
//	reg.Add(Movie, Cinema)
//	payload, err := reg.Encode(ctx, cinema, hxmodel.EncodeOptions{})
//	cinema, err = reg.Decode(ctx, payload, hxmodel.DecodeOptions{})
//
// # Concurrency
//
// Components are single-owner and not safe for concurrent use. Hooks
// (getters, setters, defaults, attribute filters) may block; traversals call
// them one attribute at a time in declaration order.
package hxmodel
