package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SessionUser identifies the account a play session belongs to.
type SessionUser struct {
	ID    int
	Title string
	Thumb string
}

// Player describes the client device driving a play session.
type Player struct {
	Address             string
	Device              string
	MachineIdentifier   string
	Model               string
	Platform            string
	PlatformVersion     string
	Product             string
	Profile             string
	RemotePublicAddress string
	State               string
	Title               string
	Vendor              string
	Version             string
	Local               bool
	Relayed             bool
	Secure              bool
	UserID              int
}

// SessionInfo carries the transcode-relevant session attributes.
type SessionInfo struct {
	ID        string
	Bandwidth int
	Location  string
}

// PlaySession is one active playback on the server: the item being played
// plus who and what is playing it.
type PlaySession struct {
	srv *Server

	// Item is the item under playback. Its fragment carries session
	// attributes (sessionKey, viewOffset) on top of the usual item
	// attributes.
	Item       Item
	User       SessionUser
	Player     Player
	Session    SessionInfo
	SessionKey int
	ViewOffset time.Duration
}

// Sessions lists the playbacks currently active on the server.
func (s *Server) Sessions(ctx context.Context) ([]*PlaySession, error) {
	cont, err := s.Query(ctx, http.MethodGet, "/status/sessions", nil)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, nil
	}
	sessions := make([]*PlaySession, 0, len(cont.Children))
	for _, ch := range cont.Children {
		ps, err := parsePlaySession(s, ch)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ps)
	}
	return sessions, nil
}

func parsePlaySession(srv *Server, el *Element) (*PlaySession, error) {
	item, err := itemFromElement(srv, el, "/status/sessions")
	if err != nil {
		return nil, err
	}
	d := DecodeAttrs(el)
	ps := &PlaySession{
		srv:        srv,
		Item:       item,
		SessionKey: d.Int("sessionKey"),
		ViewOffset: d.Millis("viewOffset"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	if u, ok := el.Find("User"); ok {
		ud := DecodeAttrs(u)
		ps.User = SessionUser{
			ID:    ud.Int("id"),
			Title: ud.String("title"),
			Thumb: ud.String("thumb"),
		}
		if err := ud.Err(); err != nil {
			return nil, err
		}
	}
	if p, ok := el.Find("Player"); ok {
		pd := DecodeAttrs(p)
		ps.Player = Player{
			Address:             pd.String("address"),
			Device:              pd.String("device"),
			MachineIdentifier:   pd.String("machineIdentifier"),
			Model:               pd.String("model"),
			Platform:            pd.String("platform"),
			PlatformVersion:     pd.String("platformVersion"),
			Product:             pd.String("product"),
			Profile:             pd.String("profile"),
			RemotePublicAddress: pd.String("remotePublicAddress"),
			State:               pd.String("state"),
			Title:               pd.String("title"),
			Vendor:              pd.String("vendor"),
			Version:             pd.String("version"),
			Local:               pd.Bool("local"),
			Relayed:             pd.Bool("relayed"),
			Secure:              pd.Bool("secure"),
			UserID:              pd.Int("userID"),
		}
		if err := pd.Err(); err != nil {
			return nil, err
		}
	}
	if si, ok := el.Find("Session"); ok {
		sd := DecodeAttrs(si)
		ps.Session = SessionInfo{
			ID:        sd.String("id"),
			Bandwidth: sd.Int("bandwidth"),
			Location:  sd.String("location"),
		}
		if err := sd.Err(); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// Stop terminates the session, showing reason to the interrupted client.
// The server only honors termination for sessions it can reach.
func (ps *PlaySession) Stop(ctx context.Context, reason string) error {
	if ps.Session.ID == "" {
		return fmt.Errorf("%w: session carries no id", ErrSchemaMismatch)
	}
	params := url.Values{}
	params.Set("sessionId", ps.Session.ID)
	params.Set("reason", reason)
	_, err := ps.srv.Query(ctx, http.MethodGet, "/status/sessions/terminate", params)
	return err
}

// HistoryEntry is one watched-history record.
type HistoryEntry struct {
	srv *Server

	HistoryKey       string
	Key              string
	RatingKey        string
	ParentKey        string
	GrandparentKey   string
	Title            string
	GrandparentTitle string
	Type             string
	Thumb            string
	LibrarySectionID int
	AccountID        int
	DeviceID         int
	ViewedAt         time.Time
}

// HistoryOptions narrows a history listing. The zero value lists all
// history, newest first.
type HistoryOptions struct {
	// MaxResults caps the number of returned entries when positive.
	MaxResults int
	// MinDate drops entries viewed before it.
	MinDate time.Time
	// AccountID restricts entries to one account.
	AccountID int
	// LibrarySectionID restricts entries to one library section.
	LibrarySectionID int
}

// History lists watched-history records, newest first.
func (s *Server) History(ctx context.Context, opts HistoryOptions) ([]*HistoryEntry, error) {
	params := url.Values{}
	params.Set("sort", "viewedAt:desc")
	if opts.AccountID > 0 {
		params.Set("accountID", strconv.Itoa(opts.AccountID))
	}
	if opts.LibrarySectionID > 0 {
		params.Set("librarySectionID", strconv.Itoa(opts.LibrarySectionID))
	}
	if !opts.MinDate.IsZero() {
		params.Set("viewedAt>", strconv.FormatInt(opts.MinDate.Unix(), 10))
	}

	pageSize := s.containerSize
	if pageSize <= 0 {
		pageSize = defaultContainerSize
	}
	var entries []*HistoryEntry
	start := 0
	for {
		params.Set(paramContainerStart, strconv.Itoa(start))
		params.Set(paramContainerSize, strconv.Itoa(pageSize))
		cont, err := s.Query(ctx, http.MethodGet, "/status/sessions/history/all", params)
		if err != nil {
			return nil, err
		}
		if cont == nil {
			return entries, nil
		}
		for _, ch := range cont.Children {
			e, err := parseHistoryEntry(s, ch)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			if opts.MaxResults > 0 && len(entries) >= opts.MaxResults {
				return entries, nil
			}
		}
		start += len(cont.Children)
		if len(cont.Children) == 0 || start >= cont.TotalSize() {
			return entries, nil
		}
	}
}

func parseHistoryEntry(srv *Server, el *Element) (*HistoryEntry, error) {
	d := DecodeAttrs(el)
	e := &HistoryEntry{
		srv:              srv,
		HistoryKey:       d.String("historyKey"),
		Key:              d.String("key"),
		RatingKey:        d.String("ratingKey"),
		ParentKey:        d.String("parentKey"),
		GrandparentKey:   d.String("grandparentKey"),
		Title:            d.String("title"),
		GrandparentTitle: d.String("grandparentTitle"),
		Type:             d.String("type"),
		Thumb:            d.String("thumb"),
		LibrarySectionID: d.Int("librarySectionID"),
		AccountID:        d.Int("accountID"),
		DeviceID:         d.Int("deviceID"),
		ViewedAt:         d.UnixTime("viewedAt"),
	}
	return e, d.Err()
}

// Source fetches the item the entry records, which fails with ErrNotFound
// once the item has been deleted from the library.
func (h *HistoryEntry) Source(ctx context.Context) (Item, error) {
	if h.Key == "" {
		return nil, fmt.Errorf("%w: history entry carries no key", ErrNotFound)
	}
	return fetchOne[Item](ctx, h.srv, h.Key, nil, nil)
}

// Delete removes the entry from the server's history.
func (h *HistoryEntry) Delete(ctx context.Context) error {
	if h.HistoryKey == "" {
		return fmt.Errorf("%w: history entry carries no historyKey", ErrSchemaMismatch)
	}
	_, err := h.srv.Query(ctx, http.MethodDelete, h.HistoryKey, nil)
	return err
}
