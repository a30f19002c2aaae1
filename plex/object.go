package plex

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// object is the base embedded by every typed wrapper parsed from a server
// response. It keeps a non-owning reference to the session, the raw wire
// attributes of the fragment the wrapper was built from, and the population
// state driving lazy reloads.
//
// A wrapper is partial when it was parsed from a listing (summary fragments
// omit attributes the item detail carries). The first access through
// FetchAttr that misses on a partial wrapper triggers exactly one reload;
// whether or not that reload helps, later misses never refetch. Reload may
// always be called explicitly.
//
// Wrappers are not safe for concurrent use; the Server they point at is.
type object struct {
	srv       *Server
	owner     Item
	tag       string
	attrs     map[string]string
	children  []*Element
	key       string
	ratingKey string
	sourceKey string
	details   string
	partial   bool
	reloaded  bool
}

// Item is implemented by every typed wrapper. Field access beyond the
// declared typed fields goes through the raw attribute map.
type Item interface {
	// Attr returns the raw wire value of an attribute without I/O.
	Attr(name string) (string, bool)
	// FetchAttr returns the raw value, reloading a partial wrapper at
	// most once if the attribute is missing.
	FetchAttr(ctx context.Context, name string) (string, bool, error)
	// Reload refetches the item by key and repopulates every field.
	Reload(ctx context.Context) error
	// IsPartial reports whether the wrapper came from a summary listing
	// and has not been reloaded.
	IsPartial() bool
	// Tag returns the wire element tag the wrapper was parsed from.
	Tag() string
	// Key returns the endpoint path identifying the item.
	Key() string
	// RatingKey returns the item's stable identifier, empty for items
	// that carry none.
	RatingKey() string
	// Tags lists the tag values of child elements with the given name
	// (Genre, Collection, Label, ...).
	Tags(name string) []string
	// Element rebuilds the wire fragment the wrapper was populated from.
	Element() *Element

	obj() *object
	populate(srv *Server, el *Element, sourceKey string) error
}

// Playable is satisfied by items that carry playable media (movies,
// episodes, tracks).
type Playable interface {
	Item
	AllMedia() []Media
}

func (o *object) obj() *object { return o }

// init resets the base from a parsed fragment. owner points back at the
// embedding wrapper so a reload can repopulate its typed fields.
func (o *object) init(srv *Server, el *Element, sourceKey string, owner Item) {
	o.srv = srv
	o.owner = owner
	o.tag = el.Tag
	o.attrs = maps.Clone(el.Attrs)
	if o.attrs == nil {
		o.attrs = make(map[string]string)
	}
	o.children = el.Children
	o.key = el.Attrs["key"]
	o.ratingKey = el.Attrs["ratingKey"]
	o.sourceKey = sourceKey
	o.details = ""
	o.computePartial()
}

// computePartial decides whether the wrapper came from a summary fragment.
// Wrappers adjusting key or details after init call it again.
func (o *object) computePartial() {
	o.partial = o.key != "" && o.sourceKey != o.key && o.sourceKey != o.detailsKey()
}

// detailsKey is the endpoint serving the full fragment for this item.
// Directory items list their children under key, so the metadata endpoint
// derived from ratingKey takes precedence unless the wrapper pinned an
// explicit details path (playlists live outside /library/metadata).
func (o *object) detailsKey() string {
	if o.details != "" {
		return o.details
	}
	if o.ratingKey != "" {
		return "/library/metadata/" + o.ratingKey
	}
	return o.key
}

// childrenKey is the endpoint listing an item's direct children (seasons of
// a show, albums of an artist).
func (o *object) childrenKey() string { return o.detailsKey() + "/children" }

// leavesKey is the endpoint listing an item's leaf descendants (episodes of
// a show, tracks of an artist).
func (o *object) leavesKey() string { return o.detailsKey() + "/allLeaves" }

// ImageURL resolves an image attribute (thumb, art, banner) into an
// absolute URL signed with the session token, for handing to image
// consumers.
func (o *object) ImageURL(name string) string {
	v, ok := o.attrs[name]
	if !ok || v == "" || o.srv == nil {
		return ""
	}
	return o.srv.URL(v, true)
}

// Tag returns the wire element tag this wrapper was parsed from.
func (o *object) Tag() string { return o.tag }

// Server returns the session the wrapper was fetched through.
func (o *object) Server() *Server { return o.srv }

// IsPartial reports whether the wrapper was built from a summary fragment
// and has not yet been reloaded.
func (o *object) IsPartial() bool { return o.partial }

// Key returns the endpoint path identifying the item.
func (o *object) Key() string { return o.key }

// RatingKey returns the item's stable identifier.
func (o *object) RatingKey() string { return o.ratingKey }

// Attr returns the raw wire value of the named attribute.
func (o *object) Attr(name string) (string, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

// Tags lists the tag attribute of every child element with the given name.
// Genre, Collection, Label and the other flat tag children all answer here.
func (o *object) Tags(name string) []string {
	var out []string
	for _, ch := range o.children {
		if ch.Tag == name {
			if v, ok := ch.Attrs["tag"]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// Element rebuilds the wire fragment the wrapper was populated from. The
// returned tree shares child nodes with the wrapper and must not be
// mutated.
func (o *object) Element() *Element {
	return &Element{Tag: o.tag, Attrs: maps.Clone(o.attrs), Children: o.children}
}

// FetchAttr returns the raw value of the named attribute. When the
// attribute is absent from a partial wrapper it reloads the item once and
// looks again; an attribute still absent after that is reported missing
// without further requests.
func (o *object) FetchAttr(ctx context.Context, name string) (string, bool, error) {
	if v, ok := o.attrs[name]; ok {
		return v, true, nil
	}
	if !o.partial || o.reloaded {
		return "", false, nil
	}
	o.reloaded = true
	if err := o.reload(ctx); err != nil {
		return "", false, err
	}
	v, ok := o.attrs[name]
	return v, ok, nil
}

// FetchIntAttr is FetchAttr for integer attributes.
func (o *object) FetchIntAttr(ctx context.Context, name string) (int, bool, error) {
	v, ok, err := o.FetchAttr(ctx, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("%w: attribute %q: %q is not a valid integer", ErrSchemaMismatch, name, v)
	}
	return n, true, nil
}

// FetchFloatAttr is FetchAttr for numeric attributes.
func (o *object) FetchFloatAttr(ctx context.Context, name string) (float64, bool, error) {
	v, ok, err := o.FetchAttr(ctx, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: attribute %q: %q is not a valid number", ErrSchemaMismatch, name, v)
	}
	return f, true, nil
}

// FetchBoolAttr is FetchAttr for 0/1 flag attributes.
func (o *object) FetchBoolAttr(ctx context.Context, name string) (bool, bool, error) {
	v, ok, err := o.FetchAttr(ctx, name)
	if err != nil || !ok {
		return false, ok, err
	}
	switch v {
	case "0":
		return false, true, nil
	case "1":
		return true, true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, true, fmt.Errorf("%w: attribute %q: %q is not a valid boolean", ErrSchemaMismatch, name, v)
	}
	return b, true, nil
}

// FetchTimeAttr is FetchAttr for epoch-seconds attributes.
func (o *object) FetchTimeAttr(ctx context.Context, name string) (time.Time, bool, error) {
	v, ok, err := o.FetchAttr(ctx, name)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("%w: attribute %q: %q is not a valid unix timestamp", ErrSchemaMismatch, name, v)
	}
	return time.Unix(n, 0), true, nil
}

// Reload refetches the item's full fragment and repopulates all fields.
func (o *object) Reload(ctx context.Context) error {
	o.reloaded = true
	return o.reload(ctx)
}

func (o *object) reload(ctx context.Context) error {
	key := o.detailsKey()
	if key == "" {
		return fmt.Errorf("cannot reload <%s> item: fragment carries no key", o.tag)
	}
	if o.srv == nil {
		return fmt.Errorf("cannot reload <%s> item: no session attached", o.tag)
	}
	cont, err := o.srv.Query(ctx, http.MethodGet, key, nil)
	if err != nil {
		return fmt.Errorf("reload %s: %w", key, err)
	}
	el := o.matchFragment(cont)
	if el == nil {
		return fmt.Errorf("reload %s: %w: response carries no matching fragment", key, ErrNotFound)
	}
	return o.owner.populate(o.srv, el, key)
}

// matchFragment picks this item's element out of a detail response,
// preferring an exact identifier match over positional fallback.
func (o *object) matchFragment(cont *Container) *Element {
	for _, ch := range cont.Children {
		if o.ratingKey != "" && ch.Attrs["ratingKey"] == o.ratingKey {
			return ch
		}
		if o.ratingKey == "" && o.key != "" && ch.Attrs["key"] == o.key {
			return ch
		}
	}
	if len(cont.Children) > 0 {
		return cont.Children[0]
	}
	return nil
}

// Rate submits a user rating between 0 and 10 for the item.
func (o *object) Rate(ctx context.Context, rating float64) error {
	if rating < 0 || rating > 10 {
		return fmt.Errorf("rating %v out of range 0-10", rating)
	}
	params := url.Values{}
	params.Set("key", o.ratingKey)
	params.Set("identifier", plexIdentifier)
	params.Set("rating", strconv.FormatFloat(rating, 'f', -1, 64))
	_, err := o.srv.Query(ctx, http.MethodPut, "/:/rate", params)
	return err
}

// MarkPlayed sets the item's view count as if it had been watched through.
func (o *object) MarkPlayed(ctx context.Context) error {
	return o.scrobble(ctx, "/:/scrobble")
}

// MarkUnplayed clears the item's watched state.
func (o *object) MarkUnplayed(ctx context.Context) error {
	return o.scrobble(ctx, "/:/unscrobble")
}

func (o *object) scrobble(ctx context.Context, key string) error {
	params := url.Values{}
	params.Set("key", o.ratingKey)
	params.Set("identifier", plexIdentifier)
	_, err := o.srv.Query(ctx, http.MethodGet, key, params)
	return err
}
