package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Library is the handle for a server's media library.
type Library struct {
	srv *Server
}

// Library returns the handle for the server's library endpoints.
func (s *Server) Library() *Library {
	return &Library{srv: s}
}

// Sections lists the library's sections.
func (l *Library) Sections(ctx context.Context) ([]*LibrarySection, error) {
	cont, err := l.srv.Query(ctx, http.MethodGet, "/library/sections", nil)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, nil
	}
	sections := make([]*LibrarySection, 0, len(cont.Children))
	for _, ch := range cont.Children {
		sec, err := parseSection(l.srv, ch)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

// Section returns the library section with the given title.
func (l *Library) Section(ctx context.Context, title string) (*LibrarySection, error) {
	sections, err := l.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		if strings.EqualFold(sec.Title, title) {
			return sec, nil
		}
	}
	return nil, fmt.Errorf("%w: no library section named %q", ErrNotFound, title)
}

// SectionByID returns the library section with the given id.
func (l *Library) SectionByID(ctx context.Context, id int) (*LibrarySection, error) {
	sections, err := l.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		if sec.Key == id {
			return sec, nil
		}
	}
	return nil, fmt.Errorf("%w: no library section with id %d", ErrNotFound, id)
}

// All lists every item across all sections, optionally filtered.
func (l *Library) All(ctx context.Context, match Match) ([]Item, error) {
	return fetchItems(ctx, l.srv, "/library/all", nil, match)
}

// RecentlyAdded lists recently added items across all sections.
func (l *Library) RecentlyAdded(ctx context.Context) ([]Item, error) {
	return fetchItems(ctx, l.srv, "/library/recentlyAdded", nil, nil)
}

// OnDeck lists the in-progress items the server surfaces for continuing.
func (l *Library) OnDeck(ctx context.Context) ([]Item, error) {
	return fetchItems(ctx, l.srv, "/library/onDeck", nil, nil)
}

// LibrarySection is one section of the library: a movie, show, music or
// photo collection sharing an agent and scanner.
type LibrarySection struct {
	srv *Server

	Key              int
	UUID             string
	Title            string
	Type             string
	Agent            string
	Scanner          string
	Language         string
	Composite        string
	Thumb            string
	Art              string
	AllowSync        bool
	Filters          bool
	Refreshing       bool
	Content          bool
	Directory        bool
	Hidden           int
	ContentChangedAt int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ScannedAt        time.Time
	Locations        []string
}

func parseSection(srv *Server, el *Element) (*LibrarySection, error) {
	if _, ok := el.Attrs["key"]; !ok {
		return nil, fmt.Errorf("%w: <%s> section fragment carries no key", ErrSchemaMismatch, el.Tag)
	}
	d := DecodeAttrs(el)
	sec := &LibrarySection{
		srv:              srv,
		Key:              d.Int("key"),
		UUID:             d.String("uuid"),
		Title:            d.String("title"),
		Type:             d.String("type"),
		Agent:            d.String("agent"),
		Scanner:          d.String("scanner"),
		Language:         d.String("language"),
		Composite:        d.String("composite"),
		Thumb:            d.String("thumb"),
		Art:              d.String("art"),
		AllowSync:        d.Bool("allowSync"),
		Filters:          d.Bool("filters"),
		Refreshing:       d.Bool("refreshing"),
		Content:          d.Bool("content"),
		Directory:        d.Bool("directory"),
		Hidden:           d.Int("hidden"),
		ContentChangedAt: d.Int64("contentChangedAt"),
		CreatedAt:        d.UnixTime("createdAt"),
		UpdatedAt:        d.UnixTime("updatedAt"),
		ScannedAt:        d.UnixTime("scannedAt"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	sec.Locations = decodeChildren(el).Locations()
	return sec, nil
}

func (s *LibrarySection) path(sub string) string {
	return fmt.Sprintf("/library/sections/%d%s", s.Key, sub)
}

// All lists the section's items, optionally filtered client-side.
func (s *LibrarySection) All(ctx context.Context, match Match) ([]Item, error) {
	return fetchItems(ctx, s.srv, s.path("/all"), nil, match)
}

// Get returns the section item with the given title.
func (s *LibrarySection) Get(ctx context.Context, title string) (Item, error) {
	params := url.Values{}
	params.Set("title", title)
	return fetchOne[Item](ctx, s.srv, s.path("/all"), params, Match{"title__iexact": title})
}

// SearchOptions narrows a section search. The zero value lists everything.
type SearchOptions struct {
	// Title matches item titles server-side.
	Title string
	// Libtype restricts results to one item kind: movie, show, season,
	// episode, artist, album, track, photo or collection.
	Libtype string
	// Sort is a server-side sort order such as "addedAt:desc".
	Sort string
	// Limit caps the number of returned items when positive.
	Limit int
	// Filters carries extra server-side query parameters, e.g.
	// "year=2010" or "genre=action".
	Filters url.Values
	// Match filters results client-side by raw attribute.
	Match Match
}

// Search lists section items matching the given options.
func (s *LibrarySection) Search(ctx context.Context, opts SearchOptions) ([]Item, error) {
	params := url.Values{}
	for k, vs := range opts.Filters {
		params[k] = vs
	}
	if opts.Title != "" {
		params.Set("title", opts.Title)
	}
	if opts.Libtype != "" {
		n, err := searchType(opts.Libtype)
		if err != nil {
			return nil, err
		}
		params.Set("type", strconv.Itoa(n))
	}
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}
	items, err := fetchItems(ctx, s.srv, s.path("/all"), params, opts.Match)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

// RecentlyAdded lists the section's recently added items.
func (s *LibrarySection) RecentlyAdded(ctx context.Context) ([]Item, error) {
	return fetchItems(ctx, s.srv, s.path("/recentlyAdded"), nil, nil)
}

// Update starts a scan of the section's source directories.
func (s *LibrarySection) Update(ctx context.Context) error {
	_, err := s.srv.Query(ctx, http.MethodGet, s.path("/refresh"), nil)
	return err
}

// CancelUpdate aborts a running section scan.
func (s *LibrarySection) CancelUpdate(ctx context.Context) error {
	_, err := s.srv.Query(ctx, http.MethodDelete, s.path("/refresh"), nil)
	return err
}

// EmptyTrash deletes the section's trashed items from its metadata store.
func (s *LibrarySection) EmptyTrash(ctx context.Context) error {
	_, err := s.srv.Query(ctx, http.MethodPut, s.path("/emptyTrash"), nil)
	return err
}
