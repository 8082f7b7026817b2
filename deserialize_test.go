package hxmodel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Scenario: re-applying a new mark is only an error on persisted instances.
func TestDeserialize_NewMark(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	movie := mustNew(t, cat.Movie, nil)

	_, err := movie.Deserialize(ctx, map[string]any{"__new": true}, DeserializeOptions{})
	require.NoError(t, err)
	_, err = movie.Deserialize(ctx, map[string]any{"__new": true}, DeserializeOptions{})
	require.NoError(t, err)
	assert.True(t, movie.IsNew())

	_, err = movie.Deserialize(ctx, map[string]any{}, DeserializeOptions{})
	require.NoError(t, err)
	assert.False(t, movie.IsNew(), "a tree without the mark flags the instance as persisted")

	_, err = movie.Deserialize(ctx, map[string]any{"__new": true}, DeserializeOptions{})
	assert.ErrorIs(t, err, ErrAlreadyNewConflict)
}

func TestDeserialize_IdentityConvergence(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	first, err := cat.Movie.Deserialize(ctx, map[string]any{
		"__component": "Movie",
		"id":          "abc123",
		"title":       "Inception",
	}, DeserializeOptions{})
	require.NoError(t, err)
	assert.False(t, first.IsNew())

	second, err := cat.Movie.Deserialize(ctx, map[string]any{
		"__component": "Movie",
		"id":          "abc123",
		"rating":      9,
	}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Inception", mustGet(t, first, "title"))
	assert.Equal(t, 9, mustGet(t, first, "rating"))

	existing := instantiate(t, cat.Movie, "def456")
	got, err := cat.Movie.Deserialize(ctx, map[string]any{"__component": "Movie", "id": "def456", "title": "Tenet"}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Same(t, existing, got)
	assert.Equal(t, "Tenet", mustGet(t, existing, "title"))

	bySlug := mustNew(t, cat.Movie, map[string]any{"slug": "memento"})
	got, err = cat.Movie.Deserialize(ctx, map[string]any{"__component": "Movie", "slug": "memento", "__new": true}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Same(t, bySlug, got)
}

func TestDeserialize_NestedReferences(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	existing := instantiate(t, cat.Movie, "abc123")

	cinema, err := cat.Cinema.Deserialize(ctx, map[string]any{
		"__component": "Cinema",
		"id":          "rex",
		"movies": []any{
			map[string]any{"__component": "Movie", "id": "abc123", "title": "Inception"},
			map[string]any{
				"__component": "Movie",
				"id":          "def456",
				"director":    map[string]any{"__component": "Person", "id": "nolan", "name": "Nolan"},
			},
		},
		"address": map[string]any{"__component": "Address", "city": "Paris"},
	}, DeserializeOptions{})
	require.NoError(t, err)

	movies, ok := mustGet(t, cinema, "movies").([]any)
	require.True(t, ok)
	require.Len(t, movies, 2)
	assert.Same(t, existing, movies[0])
	assert.Equal(t, "Inception", mustGet(t, existing, "title"))

	tenet, ok := movies[1].(*Component)
	require.True(t, ok)
	assert.Same(t, tenet, instantiate(t, cat.Movie, "def456"))

	nolan := instantiate(t, cat.Person, "nolan")
	assert.Same(t, nolan, mustGet(t, tenet, "director"))
	assert.Equal(t, "Nolan", mustGet(t, nolan, "name"))

	address, ok := mustGet(t, cinema, "address").(*Component)
	require.True(t, ok)
	assert.Equal(t, "Paris", mustGet(t, address, "city"))

	again, err := cat.Cinema.Deserialize(ctx, map[string]any{
		"__component": "Cinema",
		"id":          "rex",
		"address":     map[string]any{"__component": "Address", "city": "Paris"},
	}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Same(t, cinema, again)
	assert.NotSame(t, address, mustGet(t, cinema, "address"), "embedded components are always fresh")
}

func TestDeserialize_SelfReference(t *testing.T) {
	ctx := context.Background()
	node := NewClass("Node")
	attr := requireAttribute(t)
	attr(node.DeclarePrimaryIdentifier("id", AttributeOptions{}))
	attr(node.DeclareAttribute("next", AttributeOptions{ValueType: "Node?"}))

	a, err := node.Deserialize(ctx, map[string]any{
		"__component": "Node",
		"id":          "a",
		"next": map[string]any{
			"__component": "Node",
			"id":          "b",
			"next":        map[string]any{"__component": "Node", "id": "a"},
		},
	}, DeserializeOptions{})
	require.NoError(t, err)

	b, ok := mustGet(t, a, "next").(*Component)
	require.True(t, ok)
	assert.Same(t, a, mustGet(t, b, "next"))
}

func TestDeserialize_NewInstanceDefaults(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	movie, err := cat.Movie.Deserialize(ctx, map[string]any{
		"__component": "Movie",
		"__new":       true,
		"title":       "Inception",
	}, DeserializeOptions{})
	require.NoError(t, err)
	assert.True(t, movie.IsNew())
	assert.Equal(t, "m1", mustGet(t, movie, "id"), "the primary identifier is generated")
	assert.Equal(t, 0, mustGet(t, movie, "rating"))

	status, err := movie.GetAttribute("status")
	require.NoError(t, err)
	assert.False(t, status.IsSet(), "controlled attributes are not defaulted")

	found := instantiate(t, cat.Movie, "m1")
	assert.Same(t, movie, found)
}

func TestDeserialize_Errors(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	persisted := instantiate(t, cat.Movie, "abc123")

	tests := []struct {
		name    string
		target  *Component
		tree    map[string]any
		wantErr error
	}{
		{"unknown attribute", cat.Movie, map[string]any{"__component": "Movie", "id": "x", "year": 2010}, ErrMissingProperty},
		{"wrong tag", cat.Movie, map[string]any{"__component": "Person", "id": "x"}, ErrUnexpectedComponentType},
		{"class tag on an instance", persisted, map[string]any{"__component": "typeof Movie"}, ErrUnexpectedComponentType},
		{"no identifier", cat.Movie, map[string]any{"__component": "Movie", "title": "Inception"}, ErrMissingIdentifier},
		{"new mark on a persisted instance", cat.Movie, map[string]any{"__component": "Movie", "id": "abc123", "__new": true}, ErrAlreadyNewConflict},
		{"type mismatch", cat.Movie, map[string]any{"__component": "Movie", "id": "x", "title": 42}, ErrTypeMismatch},
		{"nested tag not a string", cat.Movie, map[string]any{"__component": "Movie", "id": "x", "director": map[string]any{"__component": 1}}, ErrUnexpectedComponentType},
		{"nested unknown component", cat.Movie, map[string]any{"__component": "Movie", "id": "y", "director": map[string]any{"__component": "Studio", "id": "s"}}, ErrUnknownComponent},
		{"untagged tree on a class", cat.Movie, map[string]any{"id": "x"}, ErrMissingProperty},
		{"static attribute of the wrong type", cat.Movie, map[string]any{"__component": "typeof Movie", "limit": "many"}, ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.target.Deserialize(ctx, tt.tree, DeserializeOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// A failed deserialize leaves no instance it created in the identity maps.
func TestDeserialize_FailureRollsBackIdentityMap(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	_, err := cat.Movie.Deserialize(ctx, map[string]any{"__component": "Movie", "id": "zz", "title": 42}, DeserializeOptions{})
	require.ErrorIs(t, err, ErrTypeMismatch)

	found, err := cat.Movie.IdentityMap().GetComponent("zz")
	require.NoError(t, err)
	assert.Nil(t, found, "the half-built instance must not stay registered")

	_, err = cat.Cinema.Deserialize(ctx, map[string]any{
		"__component": "Cinema",
		"id":          "rex",
		"movies":      []any{map[string]any{"__component": "Movie", "id": "m9", "title": "Heat"}},
		"address":     "Paris",
	}, DeserializeOptions{})
	require.Error(t, err)

	found, err = cat.Cinema.IdentityMap().GetComponent("rex")
	require.NoError(t, err)
	assert.Nil(t, found)
	found, err = cat.Movie.IdentityMap().GetComponent("m9")
	require.NoError(t, err)
	assert.Nil(t, found, "nested instances created by the failed traversal are removed too")
	assert.Equal(t, 0, cat.Movie.IdentityMap().Len())

	movie, err := cat.Movie.Deserialize(ctx, map[string]any{"__component": "Movie", "id": "zz", "title": "Heat"}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Heat", mustGet(t, movie, "title"))
	assert.True(t, movie.IsAttached())
}

func TestDeserialize_PackageLevel(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	_, err := Deserialize(ctx, map[string]any{"__component": "Movie", "id": "x"}, DeserializeOptions{})
	assert.ErrorIs(t, err, ErrMissingComponentResolver)

	_, err = Deserialize(ctx, map[string]any{"id": "x"}, DeserializeOptions{Resolver: cat.Cinema})
	assert.ErrorIs(t, err, ErrUnexpectedComponentType)

	movie, err := Deserialize(ctx, map[string]any{"__component": "Movie", "id": "x"}, DeserializeOptions{Resolver: cat.Cinema})
	require.NoError(t, err)
	assert.Same(t, cat.Movie, movie.Class())

	resolver := ResolverFunc(func(name string) (*Component, error) {
		if name == "Person" {
			return cat.Person, nil
		}
		return nil, errors.New("nope")
	})
	person, err := Deserialize(ctx, map[string]any{"__component": "Person", "id": "p"}, DeserializeOptions{Resolver: resolver})
	require.NoError(t, err)
	assert.Same(t, cat.Person, person.Class())
}

func TestDeserialize_ClassStatics(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	got, err := cat.Movie.Deserialize(ctx, map[string]any{"__component": "typeof Movie", "limit": 250}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Same(t, cat.Movie, got)
	assert.Equal(t, 250, mustGet(t, cat.Movie, "limit"))
}

func TestDeserialize_SourceAndFilter(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)

	movie, err := cat.Movie.Deserialize(ctx, map[string]any{
		"__component": "Movie",
		"id":          "abc123",
		"title":       "Inception",
		"rating":      8,
	}, DeserializeOptions{
		Source: "server",
		AttributeFilter: func(_ context.Context, a *Attribute) (bool, error) {
			return a.Name() != "rating", nil
		},
	})
	require.NoError(t, err)

	title, err := movie.GetAttribute("title")
	require.NoError(t, err)
	assert.Equal(t, ValueSource("server"), title.ValueSource())

	rating, err := movie.GetAttribute("rating")
	require.NoError(t, err)
	assert.False(t, rating.IsSet(), "filtered attributes are skipped")

	boom := errors.New("boom")
	_, err = cat.Movie.Deserialize(ctx, map[string]any{"__component": "Movie", "id": "abc123", "title": "Tenet"}, DeserializeOptions{
		AttributeFilter: func(context.Context, *Attribute) (bool, error) { return false, boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestDeserialize_Dates(t *testing.T) {
	ctx := context.Background()
	event := NewClass("Event")
	_, err := event.DeclareAttribute("at", AttributeOptions{ValueType: "Date"})
	require.NoError(t, err)

	e, err := event.Deserialize(ctx, map[string]any{
		"__component": "Event",
		"__new":       true,
		"at":          map[string]any{"__date": "2010-07-16T20:00:00Z"},
	}, DeserializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 7, 16, 20, 0, 0, 0, time.UTC), mustGet(t, e, "at"))
}

// Round trip: a freshly deserialized graph serializes back to the same tree.
func TestRoundTrip_JSON(t *testing.T) {
	ctx := context.Background()
	source := newCatalog(t)

	nolan := instantiate(t, source.Person, "nolan")
	require.NoError(t, nolan.Set("name", "Nolan"))
	movie := mustNew(t, source.Movie, map[string]any{"title": "Inception", "rating": 8.5, "director": nolan})
	address := mustNew(t, source.Address, map[string]any{"city": "Paris"})
	cinema := mustNew(t, source.Cinema, map[string]any{"name": "Rex", "movies": []any{movie}, "address": address})

	for _, opts := range []SerializeOptions{
		{},
		{IncludeReferencedComponents: true},
		{OmitIsNewMarks: true, IncludeReferencedComponents: true},
	} {
		target := newCatalog(t)
		result, err := TestJSONRoundTrip(ctx, cinema, target.Cinema, opts)
		require.NoError(t, err)
		assert.True(t, result.Equal(), result.Diff())
		assert.Same(t, target.Cinema, result.Component.Class())
	}
}

func TestRoundTrip_JSONProperty(t *testing.T) {
	ctx := context.Background()
	source := newCatalog(t)

	rapid.Check(t, func(rt *rapid.T) {
		values := map[string]any{
			"title":  rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(rt, "title"),
			"rating": float64(rapid.IntRange(0, 20).Draw(rt, "rating")) / 2,
		}
		if rapid.Bool().Draw(rt, "director") {
			person, err := source.Person.New(map[string]any{"name": rapid.StringMatching(`[A-Za-z]{1,10}`).Draw(rt, "name")})
			if err != nil {
				rt.Fatalf("new person: %v", err)
			}
			values["director"] = person
		}
		movie, err := source.Movie.New(values)
		if err != nil {
			rt.Fatalf("new movie: %v", err)
		}

		opts := SerializeOptions{IncludeReferencedComponents: rapid.Bool().Draw(rt, "include")}
		target := newCatalog(t)
		result, err := TestJSONRoundTrip(ctx, movie, target.Movie, opts)
		if err != nil {
			rt.Fatalf("round trip: %v", err)
		}
		if !result.Equal() {
			rt.Fatalf("round trip changed the tree:\n%s", result.Diff())
		}
	})
}
