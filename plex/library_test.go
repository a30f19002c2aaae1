package plex

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibraryServer(t *testing.T, handler http.HandlerFunc) *Server {
	t.Helper()
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/library/sections" {
			xmlResponse(t, w, sectionsXML)
			return
		}
		if handler != nil {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	})
	return srv
}

func TestLibrarySections(t *testing.T) {
	srv := newLibraryServer(t, nil)
	ctx := context.Background()

	sections, err := srv.Library().Sections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	movies := sections[0]
	assert.Equal(t, 1, movies.Key)
	assert.Equal(t, "Movies", movies.Title)
	assert.Equal(t, "movie", movies.Type)
	assert.Equal(t, "tv.plex.agents.movie", movies.Agent)
	assert.Equal(t, "Plex Movie", movies.Scanner)
	assert.Equal(t, "en-US", movies.Language)
	assert.Equal(t, "aaaa-bbbb", movies.UUID)
	assert.True(t, movies.AllowSync)
	assert.True(t, movies.Filters)
	assert.False(t, movies.Refreshing)
	assert.Equal(t, int64(42), movies.ContentChangedAt)
	assert.Equal(t, time.Unix(1600000000, 0), movies.CreatedAt)
	assert.Equal(t, []string{"/data/movies"}, movies.Locations)

	shows := sections[1]
	assert.Equal(t, "show", shows.Type)
	assert.Equal(t, []string{"/data/tv", "/data/tv2"}, shows.Locations)
}

func TestLibrarySectionLookup(t *testing.T) {
	srv := newLibraryServer(t, nil)
	ctx := context.Background()

	sec, err := srv.Library().Section(ctx, "tv shows")
	require.NoError(t, err)
	assert.Equal(t, 2, sec.Key)

	_, err = srv.Library().Section(ctx, "Photos")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	sec, err = srv.Library().SectionByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Movies", sec.Title)

	_, err = srv.Library().SectionByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseSectionMissingKey(t *testing.T) {
	el, err := ParseElement(strings.NewReader(`<Directory type="movie" title="Broken"/>`))
	require.NoError(t, err)

	_, err = parseSection(nil, el)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "key")
}

func TestSectionAll(t *testing.T) {
	srv := newLibraryServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/library/sections/1/all", r.URL.Path)
		xmlResponse(t, w, `<MediaContainer size="2" totalSize="2">
  <Video ratingKey="1" key="/library/metadata/1" type="movie" title="Up" year="2009"/>
  <Video ratingKey="2" key="/library/metadata/2" type="movie" title="Brave" year="2012"/>
</MediaContainer>`)
	})
	ctx := context.Background()

	sec, err := srv.Library().SectionByID(ctx, 1)
	require.NoError(t, err)

	items, err := sec.All(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = sec.All(ctx, Match{"year__gt": "2010"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	movie, ok := items[0].(*Movie)
	require.True(t, ok)
	assert.Equal(t, "Brave", movie.Title)
}

func TestSectionGet(t *testing.T) {
	var gotTitle string
	srv := newLibraryServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.URL.Query().Get("title")
		xmlResponse(t, w, `<MediaContainer size="2" totalSize="2">
  <Video ratingKey="1" key="/library/metadata/1" type="movie" title="Up in the Air" year="2009"/>
  <Video ratingKey="2" key="/library/metadata/2" type="movie" title="Up" year="2009"/>
</MediaContainer>`)
	})
	ctx := context.Background()

	sec, err := srv.Library().SectionByID(ctx, 1)
	require.NoError(t, err)

	// Server-side title search is a substring match, so the exact title is
	// picked out of the result client-side.
	item, err := sec.Get(ctx, "up")
	require.NoError(t, err)
	assert.Equal(t, "up", gotTitle)
	assert.Equal(t, "2", item.RatingKey())

	_, err = sec.Get(ctx, "Down")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSectionSearch(t *testing.T) {
	var gotQuery map[string]string
	srv := newLibraryServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"type":  q.Get("type"),
			"sort":  q.Get("sort"),
			"genre": q.Get("genre"),
			"title": q.Get("title"),
		}
		xmlResponse(t, w, `<MediaContainer size="3" totalSize="3">
  <Video ratingKey="1" key="/library/metadata/1" type="movie" title="Alien" year="1979"/>
  <Video ratingKey="2" key="/library/metadata/2" type="movie" title="Aliens" year="1986"/>
  <Video ratingKey="3" key="/library/metadata/3" type="movie" title="Prometheus" year="2012"/>
</MediaContainer>`)
	})
	ctx := context.Background()

	sec, err := srv.Library().SectionByID(ctx, 1)
	require.NoError(t, err)

	items, err := sec.Search(ctx, SearchOptions{
		Title:   "alien",
		Libtype: "movie",
		Sort:    "year:asc",
		Filters: map[string][]string{"genre": {"horror"}},
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "1", gotQuery["type"])
	assert.Equal(t, "year:asc", gotQuery["sort"])
	assert.Equal(t, "horror", gotQuery["genre"])
	assert.Equal(t, "alien", gotQuery["title"])

	_, err = sec.Search(ctx, SearchOptions{Libtype: "podcast"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "podcast")
}

func TestSectionMaintenance(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call
	srv := newLibraryServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{method: r.Method, path: r.URL.Path})
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	sec, err := srv.Library().SectionByID(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, sec.Update(ctx))
	require.NoError(t, sec.CancelUpdate(ctx))
	require.NoError(t, sec.EmptyTrash(ctx))

	want := []call{
		{method: http.MethodGet, path: "/library/sections/1/refresh"},
		{method: http.MethodDelete, path: "/library/sections/1/refresh"},
		{method: http.MethodPut, path: "/library/sections/1/emptyTrash"},
	}
	assert.Equal(t, want, calls)
}

func TestLibraryListings(t *testing.T) {
	var paths []string
	srv := newLibraryServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		xmlResponse(t, w, `<MediaContainer size="1" totalSize="1">
  <Video ratingKey="1" key="/library/metadata/1" type="movie" title="Coco"/>
</MediaContainer>`)
	})
	ctx := context.Background()
	lib := srv.Library()

	items, err := lib.All(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = lib.RecentlyAdded(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = lib.OnDeck(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.Equal(t, []string{"/library/all", "/library/recentlyAdded", "/library/onDeck"}, paths)
}
