package hxmodel

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFork_ClassIsolation(t *testing.T) {
	cat := newCatalog(t)

	forked := cat.Movie.Fork()
	assert.Same(t, cat.Movie, forked.Origin())
	assert.True(t, forked.IsForkOf(cat.Movie))
	assert.False(t, cat.Movie.IsForkOf(forked))
	assert.Equal(t, "Movie", forked.Name())
	assert.Equal(t, 100, mustGet(t, forked, "limit"))

	require.NoError(t, forked.Set("limit", 500))
	assert.Equal(t, 100, mustGet(t, cat.Movie, "limit"))
	assert.Equal(t, 500, mustGet(t, forked, "limit"))
}

func TestFork_ReadsFallThroughUntilWritten(t *testing.T) {
	cat := newCatalog(t)

	forked := cat.Movie.Fork()
	require.NoError(t, cat.Movie.Set("limit", 200))
	assert.Equal(t, 200, mustGet(t, forked, "limit"), "unwritten forks see origin writes")

	require.NoError(t, forked.Unset("limit"))
	assert.Equal(t, 200, mustGet(t, cat.Movie, "limit"))
	_, err := forked.Get("limit")
	assert.True(t, IsUnsetAttributeAccess(err))
}

func TestFork_ClassDeclarations(t *testing.T) {
	cat := newCatalog(t)

	forked := cat.Movie.Fork()
	_, err := forked.DeclareAttribute("year", AttributeOptions{ValueType: "number"})
	require.NoError(t, err)

	movie := mustNew(t, forked, map[string]any{"year": 2010})
	assert.Equal(t, 2010, mustGet(t, movie, "year"))
	require.NoError(t, movie.Set("title", "Inception"))
	assert.Equal(t, "Inception", mustGet(t, movie, "title"), "inherited declarations still apply")

	_, err = cat.Movie.New(map[string]any{"year": 2010})
	assert.ErrorIs(t, err, ErrMissingProperty, "the origin does not see declarations of its forks")
}

func TestFork_Instance(t *testing.T) {
	cat := newCatalog(t)
	movie := mustNew(t, cat.Movie, map[string]any{"title": "Inception", "rating": 8})

	fork := movie.Fork()
	assert.Same(t, movie, fork.Origin())
	assert.Same(t, cat.Movie, fork.Class())
	assert.True(t, fork.IsNew(), "forks inherit the new mark")
	assert.Equal(t, "Inception", mustGet(t, fork, "title"))

	require.NoError(t, fork.Set("title", "Tenet"))
	assert.Equal(t, "Inception", mustGet(t, movie, "title"))
	assert.Equal(t, "Tenet", mustGet(t, fork, "title"))

	require.NoError(t, movie.Set("rating", 9))
	assert.Equal(t, 9, mustGet(t, fork, "rating"))

	fork.MarkAsNotNew()
	assert.True(t, movie.IsNew())
	assert.False(t, fork.IsNew())

	found, err := cat.Movie.IdentityMap().GetComponent(movie.Identifiers())
	require.NoError(t, err)
	assert.Same(t, movie, found, "an instance fork does not replace its origin")
}

func TestGhost_Class(t *testing.T) {
	cat := newCatalog(t)

	ghost, err := cat.Movie.Ghost()
	require.NoError(t, err)
	again, err := cat.Movie.Ghost()
	require.NoError(t, err)
	assert.Same(t, ghost, again)
	assert.True(t, ghost.IsForkOf(cat.Movie))
}

func TestGhost_InstanceSharedPerIdentity(t *testing.T) {
	cat := newCatalog(t)
	movie := mustNew(t, cat.Movie, map[string]any{"id": "abc123", "title": "Inception"})

	ghost, err := movie.Ghost()
	require.NoError(t, err)
	assert.True(t, ghost.IsForkOf(movie))

	ghostClass, err := cat.Movie.Ghost()
	require.NoError(t, err)
	assert.Same(t, ghostClass, ghost.Class())

	same, err := cat.Movie.Instantiate("abc123", InstantiateOptions{})
	require.NoError(t, err)
	sameGhost, err := same.Ghost()
	require.NoError(t, err)
	assert.Same(t, ghost, sameGhost)

	viaMap, err := ghostClass.Instantiate("abc123", InstantiateOptions{})
	require.NoError(t, err)
	assert.Same(t, ghost, viaMap)

	fork := movie.Fork()
	forkGhost, err := fork.Ghost()
	require.NoError(t, err)
	assert.Same(t, ghost, forkGhost, "forks sharing the identity share the ghost")

	require.NoError(t, ghost.Set("title", "Tenet"))
	assert.Equal(t, "Inception", mustGet(t, movie, "title"))
}

func TestGhost_EmbeddedInstance(t *testing.T) {
	cat := newCatalog(t)
	address := mustNew(t, cat.Address, map[string]any{"city": "Paris"})

	ghost, err := address.Ghost()
	require.NoError(t, err)
	again, err := address.Ghost()
	require.NoError(t, err)
	assert.Same(t, ghost, again)
	assert.Equal(t, "Paris", mustGet(t, ghost, "city"))
}

func TestMerge_Instance(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	movie := mustNew(t, cat.Movie, map[string]any{"title": "Inception", "rating": 8})

	ghost, err := movie.Ghost()
	require.NoError(t, err)

	rating, err := ghost.GetAttribute("rating")
	require.NoError(t, err)
	require.NoError(t, ghost.Set("title", "Tenet"))
	require.NoError(t, rating.SetValueWithSource(9, "server"))
	require.NoError(t, ghost.Unset("director"))

	require.NoError(t, movie.Merge(ctx, ghost, MergeOptions{}))
	assert.Equal(t, "Tenet", mustGet(t, movie, "title"))
	assert.Equal(t, 9, mustGet(t, movie, "rating"))

	director, err := movie.GetAttribute("director")
	require.NoError(t, err)
	assert.False(t, director.IsSet(), "attributes unset in the fork are unset in the target")

	movieRating, err := movie.GetAttribute("rating")
	require.NoError(t, err)
	assert.Equal(t, ValueSource("server"), movieRating.ValueSource())
}

func TestMerge_Selector(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	movie := mustNew(t, cat.Movie, map[string]any{"title": "Inception", "rating": 8})

	fork := movie.Fork()
	require.NoError(t, fork.Set("title", "Tenet"))
	require.NoError(t, fork.Set("rating", 9))

	require.NoError(t, movie.Merge(ctx, fork, MergeOptions{AttributeSelector: map[string]any{"title": true}}))
	assert.Equal(t, "Tenet", mustGet(t, movie, "title"))
	assert.Equal(t, 8, mustGet(t, movie, "rating"))

	require.NoError(t, movie.Merge(ctx, fork, MergeOptions{AttributeSelector: false}))
	assert.Equal(t, 8, mustGet(t, movie, "rating"))

	err := movie.Merge(ctx, fork, MergeOptions{AttributeSelector: 42})
	assert.Error(t, err)
}

func TestMerge_NestedForks(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	nolan := mustNew(t, cat.Person, map[string]any{"name": "Nolan"})
	movie := mustNew(t, cat.Movie, map[string]any{"title": "Inception", "director": nolan})

	ghost, err := movie.Ghost()
	require.NoError(t, err)
	nolanGhost, err := nolan.Ghost()
	require.NoError(t, err)
	require.NoError(t, nolanGhost.Set("name", "Christopher Nolan"))
	require.NoError(t, ghost.Set("director", nolanGhost))

	require.NoError(t, movie.Merge(ctx, ghost, MergeOptions{}))
	director := mustGet(t, movie, "director")
	assert.Same(t, nolan, director, "forked components merge back into their origin")
	assert.Equal(t, "Christopher Nolan", mustGet(t, nolan, "name"))
}

func TestMerge_InstancesCreatedInForkedClass(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	cinema := mustNew(t, cat.Cinema, map[string]any{"name": "Rex"})
	existing := mustNew(t, cat.Movie, map[string]any{"id": "abc123", "title": "Inception"})

	ghost, err := cinema.Ghost()
	require.NoError(t, err)
	movieGhostClass, err := cat.Movie.Ghost()
	require.NoError(t, err)

	created := mustNew(t, movieGhostClass, map[string]any{"id": "def456", "title": "Tenet"})
	known, err := movieGhostClass.Instantiate("abc123", InstantiateOptions{})
	require.NoError(t, err)
	require.NoError(t, known.Set("title", "Inception (2010)"))
	require.NoError(t, ghost.Set("movies", []any{known, created}))

	require.NoError(t, cinema.Merge(ctx, ghost, MergeOptions{}))

	movies, ok := mustGet(t, cinema, "movies").([]any)
	require.True(t, ok)
	require.Len(t, movies, 2)
	assert.Same(t, existing, movies[0])
	assert.Equal(t, "Inception (2010)", mustGet(t, existing, "title"))

	merged, ok := movies[1].(*Component)
	require.True(t, ok)
	assert.Same(t, cat.Movie, merged.Class())
	assert.Equal(t, "Tenet", mustGet(t, merged, "title"))
	assert.True(t, merged.IsNew())

	found, err := cat.Movie.Instantiate("def456", InstantiateOptions{})
	require.NoError(t, err)
	assert.Same(t, merged, found)
}

func TestMerge_Maps(t *testing.T) {
	ctx := context.Background()
	class := NewClass("Settings")
	_, err := class.DeclareAttribute("values", AttributeOptions{ValueType: "object"})
	require.NoError(t, err)

	settings := mustNew(t, class, map[string]any{"values": map[string]any{"a": 1, "b": 2}})
	fork := settings.Fork()
	require.NoError(t, fork.Set("values", map[string]any{"a": 10, "c": 3}))

	require.NoError(t, settings.Merge(ctx, fork, MergeOptions{}))
	assert.Equal(t, map[string]any{"a": 10, "c": 3}, mustGet(t, settings, "values"))
}

func TestProvidedComponents(t *testing.T) {
	cat := newCatalog(t)

	assert.Same(t, cat.Movie, cat.Cinema.GetProvidedComponent("Movie"))
	assert.Nil(t, cat.Cinema.GetProvidedComponent("Person"))
	assert.Same(t, cat.Cinema, cat.Movie.Provider())
	assert.Equal(t, []*Component{cat.Movie, cat.Address}, cat.Cinema.ProvidedComponents())

	forked := cat.Cinema.Fork()
	movieFork := forked.GetProvidedComponent("Movie")
	require.NotNil(t, movieFork)
	assert.True(t, movieFork.IsForkOf(cat.Movie), "provided classes are forked on first access")
	assert.Same(t, forked, movieFork.Provider())
	assert.Same(t, movieFork, forked.GetProvidedComponent("Movie"))
	assert.Same(t, cat.Movie, cat.Cinema.GetProvidedComponent("Movie"))

	err := cat.Cinema.ProvideComponent(mustNew(t, cat.Movie, nil))
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
}

func TestGetComponent(t *testing.T) {
	cat := newCatalog(t)
	cat.Movie.ConsumeComponent("Address")
	cat.Movie.ConsumeComponent("Address")
	assert.Equal(t, []string{"Address"}, cat.Movie.ConsumedComponents())

	tests := []struct {
		name string
		from *Component
		want string
		same *Component
	}{
		{"itself", cat.Movie, "Movie", cat.Movie},
		{"provided", cat.Cinema, "Movie", cat.Movie},
		{"provided transitively", cat.Cinema, "Person", cat.Person},
		{"consumed through the provider", cat.Movie, "Address", cat.Address},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.GetComponent(tt.want)
			require.NoError(t, err)
			assert.Same(t, tt.same, got)
		})
	}

	movie := mustNew(t, cat.Movie, nil)
	got, err := movie.GetComponent("Person")
	require.NoError(t, err)
	assert.Same(t, cat.Person, got, "instances resolve through their class")

	_, err = cat.Person.GetComponent("Cinema")
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

// Writes to an instance fork never reach its origin.
func TestFork_IsolationProperty(t *testing.T) {
	cat := newCatalog(t)
	names := []string{"title", "rating", "director"}

	rapid.Check(t, func(rt *rapid.T) {
		values := map[string]any{}
		if rapid.Bool().Draw(rt, "hasTitle") {
			values["title"] = rapid.StringMatching(`[A-Za-z ]{0,12}`).Draw(rt, "title")
		}
		if rapid.Bool().Draw(rt, "hasRating") {
			values["rating"] = rapid.IntRange(0, 10).Draw(rt, "rating")
		}
		movie, err := cat.Movie.New(values)
		if err != nil {
			rt.Fatalf("new movie: %v", err)
		}

		type snapshot struct {
			value any
			set   bool
		}
		before := map[string]snapshot{}
		for _, name := range names {
			a, err := movie.GetAttribute(name)
			if err != nil {
				rt.Fatalf("attribute %s: %v", name, err)
			}
			v, set, _ := a.GetValueIfSet()
			before[name] = snapshot{v, set}
		}

		fork := movie.Fork()
		for i, n := 0, rapid.IntRange(1, 8).Draw(rt, "ops"); i < n; i++ {
			name := rapid.SampledFrom(names).Draw(rt, fmt.Sprintf("name%d", i))
			if rapid.Bool().Draw(rt, fmt.Sprintf("unset%d", i)) {
				if err := fork.Unset(name); err != nil {
					rt.Fatalf("unset %s: %v", name, err)
				}
				continue
			}
			var v any
			switch name {
			case "title":
				v = rapid.StringMatching(`[A-Za-z ]{0,12}`).Draw(rt, fmt.Sprintf("v%d", i))
			case "rating":
				v = rapid.IntRange(0, 10).Draw(rt, fmt.Sprintf("v%d", i))
			}
			if err := fork.Set(name, v); err != nil {
				rt.Fatalf("set %s = %v: %v", name, v, err)
			}
		}

		for _, name := range names {
			a, _ := movie.GetAttribute(name)
			v, set, _ := a.GetValueIfSet()
			if set != before[name].set || v != before[name].value {
				rt.Fatalf("origin %s changed from %v (set=%v) to %v (set=%v)",
					name, before[name].value, before[name].set, v, set)
			}
		}
	})
}
