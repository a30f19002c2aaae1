package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Pagination parameters accepted by listing endpoints. PMS also honors them
// as headers, but query parameters survive redirects.
const (
	paramContainerStart = "X-Plex-Container-Start"
	paramContainerSize  = "X-Plex-Container-Size"

	defaultContainerSize = 100
)

// Match filters listing entries client-side by raw attribute value. Keys
// name an attribute, optionally followed by a double-underscore operator
// suffix:
//
//	Match{"title": "Dune"}                 // exact
//	Match{"title__iexact": "dune"}         // case-insensitive
//	Match{"year__gte": "2010"}             // numeric comparison
//	Match{"viewCount__exists": "true"}     // attribute presence
//
// Supported operators: exact (default), iexact, contains, icontains, ne,
// gt, gte, lt, lte, startswith, istartswith, endswith, iendswith, exists
// and regex. An unknown operator is an error, not a silent non-match.
type Match map[string]string

// matchElement reports whether an element satisfies every clause of m.
func matchElement(el *Element, m Match) (bool, error) {
	for key, want := range m {
		attr, op := key, "exact"
		if i := strings.LastIndex(key, "__"); i > 0 {
			attr, op = key[:i], key[i+2:]
		}
		got, ok := el.Attrs[attr]
		if op == "exists" {
			wantPresent, err := strconv.ParseBool(want)
			if err != nil {
				return false, fmt.Errorf("filter %s: %q is not a boolean", key, want)
			}
			if ok != wantPresent {
				return false, nil
			}
			continue
		}
		if !ok {
			return false, nil
		}
		hit, err := applyOperator(op, got, want)
		if err != nil {
			return false, fmt.Errorf("filter %s: %w", key, err)
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func applyOperator(op, got, want string) (bool, error) {
	switch op {
	case "exact":
		return got == want, nil
	case "iexact":
		return strings.EqualFold(got, want), nil
	case "contains":
		return strings.Contains(got, want), nil
	case "icontains":
		return strings.Contains(strings.ToLower(got), strings.ToLower(want)), nil
	case "ne":
		return got != want, nil
	case "startswith":
		return strings.HasPrefix(got, want), nil
	case "istartswith":
		return strings.HasPrefix(strings.ToLower(got), strings.ToLower(want)), nil
	case "endswith":
		return strings.HasSuffix(got, want), nil
	case "iendswith":
		return strings.HasSuffix(strings.ToLower(got), strings.ToLower(want)), nil
	case "gt", "gte", "lt", "lte":
		return compareOrdered(op, got, want), nil
	case "regex":
		return regexp.MatchString(want, got)
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// compareOrdered compares numerically when both sides parse as numbers and
// lexicographically otherwise.
func compareOrdered(op, got, want string) bool {
	gf, gerr := strconv.ParseFloat(got, 64)
	wf, werr := strconv.ParseFloat(want, 64)
	var cmp int
	if gerr == nil && werr == nil {
		switch {
		case gf < wf:
			cmp = -1
		case gf > wf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(got, want)
	}
	switch op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	}
	return cmp <= 0
}

// itemFromElement builds the typed wrapper for a listing fragment. Video and
// Directory elements are containers for several item kinds and must carry a
// type discriminator; fragments of a kind this package has no wrapper for
// come back as a raw-attribute item rather than an error.
func itemFromElement(srv *Server, el *Element, sourceKey string) (Item, error) {
	var it Item
	switch el.Tag {
	case "Video":
		typ, ok := el.Attrs["type"]
		if !ok {
			return nil, fmt.Errorf("%w: <Video> fragment carries no type attribute", ErrSchemaMismatch)
		}
		switch typ {
		case "movie":
			it = &Movie{}
		case "episode":
			it = &Episode{}
		default:
			it = &genericItem{}
		}
	case "Directory":
		typ, ok := el.Attrs["type"]
		if !ok {
			return nil, fmt.Errorf("%w: <Directory> fragment carries no type attribute", ErrSchemaMismatch)
		}
		switch typ {
		case "show":
			it = &Show{}
		case "season":
			it = &Season{}
		case "artist":
			it = &Artist{}
		case "album":
			it = &Album{}
		default:
			it = &genericItem{}
		}
	case "Track":
		it = &Track{}
	case "Playlist":
		it = &Playlist{}
	default:
		it = &genericItem{}
	}
	if err := it.populate(srv, el, sourceKey); err != nil {
		return nil, err
	}
	return it, nil
}

// BuildItem constructs the typed wrapper for an already parsed fragment.
// sourceKey is the endpoint path the fragment came from and decides whether
// the wrapper counts as partial. Items built with a nil server cannot
// reload, which suits fragments arriving out of band (webhook payloads).
func BuildItem(srv *Server, el *Element, sourceKey string) (Item, error) {
	return itemFromElement(srv, el, sourceKey)
}

// genericItem carries fragments this package has no typed wrapper for. All
// access goes through the raw attribute map.
type genericItem struct {
	object
}

func (g *genericItem) populate(srv *Server, el *Element, sourceKey string) error {
	g.object.init(srv, el, sourceKey, g)
	return nil
}

// fetchItems lists the items under key, paging through the result with the
// session's container size and filtering each fragment against match.
func fetchItems(ctx context.Context, srv *Server, key string, params url.Values, match Match) ([]Item, error) {
	pageSize := srv.containerSize
	if pageSize <= 0 {
		pageSize = defaultContainerSize
	}
	page := url.Values{}
	for k, vs := range params {
		page[k] = vs
	}

	var items []Item
	start := 0
	for {
		page.Set(paramContainerStart, strconv.Itoa(start))
		page.Set(paramContainerSize, strconv.Itoa(pageSize))
		cont, err := srv.Query(ctx, http.MethodGet, key, page)
		if err != nil {
			return nil, err
		}
		if cont == nil {
			return items, nil
		}
		for _, ch := range cont.Children {
			ok, err := matchElement(ch, match)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			it, err := itemFromElement(srv, ch, key)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		start += len(cont.Children)
		if len(cont.Children) == 0 || start >= cont.TotalSize() {
			return items, nil
		}
	}
}

// fetchTyped lists items under key and keeps those of the wrapper type T.
func fetchTyped[T Item](ctx context.Context, srv *Server, key string, params url.Values, match Match) ([]T, error) {
	items, err := fetchItems(ctx, srv, key, params, match)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if v, ok := it.(T); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// fetchOne returns the first item of type T under key satisfying match.
func fetchOne[T Item](ctx context.Context, srv *Server, key string, params url.Values, match Match) (T, error) {
	var zero T
	items, err := fetchTyped[T](ctx, srv, key, params, match)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%w: no item at %s matches %v", ErrNotFound, key, match)
	}
	return items[0], nil
}

// Media item type numbers used by section search and timeline events.
var searchTypes = map[string]int{
	"movie":      1,
	"show":       2,
	"season":     3,
	"episode":    4,
	"trailer":    5,
	"artist":     8,
	"album":      9,
	"track":      10,
	"photo":      13,
	"playlist":   15,
	"collection": 18,
}

// searchType maps a libtype name onto the numeric type PMS expects in
// search and filter parameters.
func searchType(libtype string) (int, error) {
	if n, ok := searchTypes[libtype]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("unknown libtype %q", libtype)
}
