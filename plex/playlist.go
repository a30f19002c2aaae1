package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Playlist is a server playlist. Playlists live outside the library
// metadata tree, so reloads go through /playlists.
type Playlist struct {
	object

	Title             string
	TitleSort         string
	Type              string
	GUID              string
	Summary           string
	PlaylistType      string
	Icon              string
	Composite         string
	Smart             bool
	AllowSync         bool
	Duration          time.Duration
	DurationInSeconds int
	LeafCount         int
	ViewCount         int
	AddedAt           time.Time
	UpdatedAt         time.Time
	LastViewedAt      time.Time
	LibrarySectionID  int
}

func (p *Playlist) populate(srv *Server, el *Element, sourceKey string) error {
	p.object.init(srv, el, sourceKey, p)
	// Listings hand out the items endpoint as the playlist's key.
	p.object.key = strings.TrimSuffix(p.object.key, "/items")
	if p.object.ratingKey != "" {
		p.object.details = "/playlists/" + p.object.ratingKey
	}
	p.object.computePartial()

	d := DecodeAttrs(el)
	p.Title = d.String("title")
	p.TitleSort = d.String("titleSort")
	p.Type = d.String("type")
	p.GUID = d.String("guid")
	p.Summary = d.String("summary")
	p.PlaylistType = d.String("playlistType")
	p.Icon = d.String("icon")
	p.Composite = d.String("composite")
	p.Smart = d.Bool("smart")
	p.AllowSync = d.Bool("allowSync")
	p.Duration = d.Millis("duration")
	p.DurationInSeconds = d.Int("durationInSeconds")
	p.LeafCount = d.Int("leafCount")
	p.ViewCount = d.Int("viewCount")
	p.AddedAt = d.UnixTime("addedAt")
	p.UpdatedAt = d.UnixTime("updatedAt")
	p.LastViewedAt = d.UnixTime("lastViewedAt")
	p.LibrarySectionID = d.Int("librarySectionID")
	return d.Err()
}

// Items lists the playlist's entries in playlist order. Entries carry a
// playlistItemID attribute identifying their slot for removal.
func (p *Playlist) Items(ctx context.Context) ([]Item, error) {
	return fetchItems(ctx, p.srv, p.detailsKey()+"/items", nil, nil)
}

// AddItems appends items to the playlist. Smart playlists derive their
// content from a filter and reject manual additions.
func (p *Playlist) AddItems(ctx context.Context, items ...Item) error {
	if p.Smart {
		return fmt.Errorf("cannot add items to smart playlist %q", p.Title)
	}
	uri, err := p.srv.libraryURI(items)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("uri", uri)
	_, err = p.srv.Query(ctx, http.MethodPut, p.detailsKey()+"/items", params)
	return err
}

// RemoveItem removes one entry from the playlist. The item should come from
// Items so it carries its slot id; otherwise the playlist is listed to
// locate the entry by rating key.
func (p *Playlist) RemoveItem(ctx context.Context, item Item) error {
	if p.Smart {
		return fmt.Errorf("cannot remove items from smart playlist %q", p.Title)
	}
	slot, ok := item.Attr("playlistItemID")
	if !ok {
		entries, err := p.Items(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.RatingKey() != "" && e.RatingKey() == item.RatingKey() {
				slot, ok = e.Attr("playlistItemID")
				break
			}
		}
	}
	if !ok || slot == "" {
		return fmt.Errorf("%w: item is not part of playlist %q", ErrNotFound, p.Title)
	}
	_, err := p.srv.Query(ctx, http.MethodDelete, p.detailsKey()+"/items/"+slot, nil)
	return err
}

// Edit updates the playlist's title and summary. Empty arguments leave the
// corresponding field unchanged.
func (p *Playlist) Edit(ctx context.Context, title, summary string) error {
	params := url.Values{}
	if title != "" {
		params.Set("title", title)
	}
	if summary != "" {
		params.Set("summary", summary)
	}
	if len(params) == 0 {
		return nil
	}
	_, err := p.srv.Query(ctx, http.MethodPut, p.detailsKey(), params)
	return err
}

// Delete removes the playlist from the server.
func (p *Playlist) Delete(ctx context.Context) error {
	_, err := p.srv.Query(ctx, http.MethodDelete, p.detailsKey(), nil)
	return err
}

// Playlists lists the server's playlists, all of them or those of one
// playlist type (audio, video, photo).
func (s *Server) Playlists(ctx context.Context, playlistType string) ([]*Playlist, error) {
	params := url.Values{}
	if playlistType != "" {
		params.Set("playlistType", playlistType)
	}
	return fetchTyped[*Playlist](ctx, s, "/playlists", params, nil)
}

// Playlist returns the playlist with the given title.
func (s *Server) Playlist(ctx context.Context, title string) (*Playlist, error) {
	return fetchOne[*Playlist](ctx, s, "/playlists", nil, Match{"title__iexact": title})
}

// CreatePlaylist creates a regular playlist holding the given items, all of
// which must live on this server.
func (s *Server) CreatePlaylist(ctx context.Context, title string, items []Item) (*Playlist, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: playlist title is required", ErrInvalidConfig)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: playlist needs at least one item", ErrInvalidConfig)
	}
	uri, err := s.libraryURI(items)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("uri", uri)
	params.Set("title", title)
	params.Set("smart", "0")
	params.Set("type", listType(items[0]))

	cont, err := s.Query(ctx, http.MethodPost, "/playlists", params)
	if err != nil {
		return nil, err
	}
	if cont == nil || len(cont.Children) == 0 {
		return nil, fmt.Errorf("%w: create playlist response carries no playlist", ErrSchemaMismatch)
	}
	pl := &Playlist{}
	if err := pl.populate(s, cont.Children[0], "/playlists"); err != nil {
		return nil, err
	}
	return pl, nil
}

// libraryURI builds the server:// URI addressing items for playlist
// operations.
func (s *Server) libraryURI(items []Item) (string, error) {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		rk := it.RatingKey()
		if rk == "" {
			return "", fmt.Errorf("%w: item <%s> carries no ratingKey", ErrInvalidConfig, it.Tag())
		}
		keys = append(keys, rk)
	}
	return fmt.Sprintf("server://%s/%s/library/metadata/%s",
		s.Info.MachineIdentifier, plexIdentifier, strings.Join(keys, ",")), nil
}

// listType derives the playlist type bucket an item belongs to.
func listType(it Item) string {
	switch it.(type) {
	case *Artist, *Album, *Track:
		return "audio"
	default:
		return "video"
	}
}
