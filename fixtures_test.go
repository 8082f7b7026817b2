package hxmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/hxmodel/lib/idgen"
	"github.com/pthm/hxmodel/lib/validation"
)

// catalog is a small set of classes shared by the tests:
//
//	Person  {id, name}
//	Movie   {id, slug, title, rating, director, status}  static {limit}
//	Cinema  {id, name, movies, address}
//	Address {city, zip} (embedded)
type catalog struct {
	Person  *Component
	Movie   *Component
	Cinema  *Component
	Address *Component
}

func newCatalog(t testing.TB) *catalog {
	t.Helper()

	attr := requireAttribute(t)
	method := requireMethod(t)

	person := NewClass("Person").WithIDGenerator(idgen.NewSequential("p"))
	attr(person.DeclarePrimaryIdentifier("id", AttributeOptions{}))
	attr(person.DeclareAttribute("name", AttributeOptions{
		ValueType:  "string",
		Validators: []validation.Validator{validation.Required()},
		Exposure:   Exposure{Get: true},
	}))

	movie := NewClass("Movie").WithIDGenerator(idgen.NewSequential("m"))
	attr(movie.DeclareStaticAttribute("limit", AttributeOptions{ValueType: "number", Value: 100}))
	attr(movie.DeclarePrimaryIdentifier("id", AttributeOptions{}))
	attr(movie.DeclareSecondaryIdentifier("slug", AttributeOptions{}))
	attr(movie.DeclareAttribute("title", AttributeOptions{
		ValueType:  "string",
		Validators: []validation.Validator{validation.NotEmpty(), validation.MaxLength(30)},
		Exposure:   Exposure{Get: true, Set: true},
	}))
	attr(movie.DeclareAttribute("rating", AttributeOptions{ValueType: "number?", Default: 0}))
	attr(movie.DeclareAttribute("director", AttributeOptions{ValueType: "Person?"}))
	attr(movie.DeclareAttribute("status", AttributeOptions{ValueType: "string", Controlled: true}))
	method(movie.DeclareMethod("play", Exposure{Call: true}))

	address := NewClass("Address").Embedded()
	attr(address.DeclareAttribute("city", AttributeOptions{ValueType: "string"}))
	attr(address.DeclareAttribute("zip", AttributeOptions{ValueType: "string?"}))

	cinema := NewClass("Cinema").WithIDGenerator(idgen.NewSequential("c"))
	attr(cinema.DeclarePrimaryIdentifier("id", AttributeOptions{}))
	attr(cinema.DeclareAttribute("name", AttributeOptions{ValueType: "string"}))
	attr(cinema.DeclareAttribute("movies", AttributeOptions{
		ValueType: "Movie[]",
		Default:   func() any { return []any{} },
	}))
	attr(cinema.DeclareAttribute("address", AttributeOptions{ValueType: "Address?"}))

	require.NoError(t, cinema.ProvideComponent(movie))
	require.NoError(t, cinema.ProvideComponent(address))
	require.NoError(t, movie.ProvideComponent(person))

	return &catalog{Person: person, Movie: movie, Cinema: cinema, Address: address}
}

// requireAttribute returns a checker for declaration results:
//
//	attr := requireAttribute(t)
//	attr(Movie.DeclareAttribute("title", AttributeOptions{}))
func requireAttribute(t testing.TB) func(*Attribute, error) *Attribute {
	return func(a *Attribute, err error) *Attribute {
		t.Helper()
		require.NoError(t, err)
		return a
	}
}

func requireMethod(t testing.TB) func(*Method, error) *Method {
	return func(m *Method, err error) *Method {
		t.Helper()
		require.NoError(t, err)
		return m
	}
}

func mustNew(t testing.TB, class *Component, values map[string]any) *Component {
	t.Helper()
	c, err := class.New(values)
	require.NoError(t, err)
	return c
}

func mustGet(t testing.TB, c *Component, name string) any {
	t.Helper()
	v, err := c.Get(name)
	require.NoError(t, err)
	return v
}
