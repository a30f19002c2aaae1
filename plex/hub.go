package plex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Hub is one row of a server search or discovery response, grouping items
// of a single kind.
type Hub struct {
	Title         string
	Type          string
	HubIdentifier string
	Context       string
	Size          int
	More          bool
	Style         string
	Items         []Item
}

// HubSearchOptions narrows a server-wide search.
type HubSearchOptions struct {
	// Limit caps the number of results per hub when positive.
	Limit int
	// SectionID restricts the search to one library section.
	SectionID int
}

// Search runs a server-wide search and returns the result hubs in server
// order. Hubs carrying item kinds this package has no wrapper for still
// appear, holding raw-attribute items.
func (s *Server) Search(ctx context.Context, query string, opts HubSearchOptions) ([]*Hub, error) {
	params := url.Values{}
	params.Set("query", query)
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.SectionID > 0 {
		params.Set("sectionId", strconv.Itoa(opts.SectionID))
	}

	cont, err := s.Query(ctx, http.MethodGet, "/hubs/search", params)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, nil
	}
	hubs := make([]*Hub, 0, len(cont.Children))
	for _, ch := range cont.Children {
		if ch.Tag != "Hub" {
			continue
		}
		h, err := parseHub(s, ch)
		if err != nil {
			return nil, err
		}
		hubs = append(hubs, h)
	}
	return hubs, nil
}

func parseHub(srv *Server, el *Element) (*Hub, error) {
	d := DecodeAttrs(el)
	h := &Hub{
		Title:         d.String("title"),
		Type:          d.String("type"),
		HubIdentifier: d.String("hubIdentifier"),
		Context:       d.String("context"),
		Size:          d.Int("size"),
		More:          d.Bool("more"),
		Style:         d.String("style"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	for _, ch := range el.Children {
		it, err := itemFromElement(srv, ch, "/hubs/search")
		if err != nil {
			return nil, err
		}
		h.Items = append(h.Items, it)
	}
	return h, nil
}
