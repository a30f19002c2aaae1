package plextv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nesati/goplex/plex"
)

// connectConcurrency caps how many candidate addresses are probed at once
// when opening a session against a resource or device.
const connectConcurrency = 8

// SchemePreference selects which connection schemes Connect and
// PreferredConnections consider.
type SchemePreference int

const (
	// PreferAny tries https addresses before http ones.
	PreferAny SchemePreference = iota
	// PreferSecure only considers https addresses.
	PreferSecure
	// PreferInsecure only considers plain http addresses.
	PreferInsecure
)

func (p SchemePreference) schemes() []string {
	switch p {
	case PreferSecure:
		return []string{"https"}
	case PreferInsecure:
		return []string{"http"}
	default:
		return []string{"https", "http"}
	}
}

// Connection is one advertised address of a resource.
type Connection struct {
	Protocol string
	Address  string
	Port     int
	URI      string
	Local    bool
	Relay    bool
	IPv6     bool
}

// Location classifies the address as local, remote or relay.
func (c Connection) Location() string {
	switch {
	case c.Relay:
		return "relay"
	case c.Local:
		return "local"
	default:
		return "remote"
	}
}

// httpURI rewrites the address as a plain http URL. The advertised URI of a
// connection is the https form (a *.plex.direct name), which only resolves
// with the certificate plumbing Plex clients carry; the raw address works
// everywhere.
func (c Connection) httpURI() string {
	return fmt.Sprintf("http://%s:%d", c.Address, c.Port)
}

// Resource is an entry of the account's resource list: a media server,
// player or controller that has connected to plex.tv with this account.
type Resource struct {
	account *Account

	Name                 string
	Product              string
	ProductVersion       string
	Platform             string
	PlatformVersion      string
	Device               string
	ClientIdentifier     string
	CreatedAt            time.Time
	LastSeenAt           time.Time
	Provides             []string
	OwnerID              int
	SourceTitle          string
	PublicAddressMatches bool
	Presence             bool
	Owned                bool
	Home                 bool
	Synced               bool
	Relay                bool
	HTTPSRequired        bool
	AccessToken          string
	Connections          []Connection
}

// Resources lists everything linked to the account, servers and clients
// alike. Shared servers appear with the access token their owner granted.
func (a *Account) Resources(ctx context.Context) ([]*Resource, error) {
	params := url.Values{}
	params.Set("includeHttps", "1")
	params.Set("includeRelay", "1")

	root, err := a.query(ctx, http.MethodGet, "/api/v2/resources", params)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: resource listing returned an empty body", plex.ErrSchemaMismatch)
	}

	var resources []*Resource
	for _, el := range root.FindAll("resource") {
		r, err := a.parseResource(el)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	a.logger.Debug().Int("count", len(resources)).Msg("fetched plex.tv resources")
	return resources, nil
}

// Resource finds one resource by name or client identifier.
func (a *Account) Resource(ctx context.Context, name string) (*Resource, error) {
	resources, err := a.Resources(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		if strings.EqualFold(r.Name, name) || r.ClientIdentifier == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: resource %q", plex.ErrNotFound, name)
}

func (a *Account) parseResource(el *plex.Element) (*Resource, error) {
	d := plex.DecodeAttrs(el)
	r := &Resource{
		account:              a,
		Name:                 d.String("name"),
		Product:              d.String("product"),
		ProductVersion:       d.String("productVersion"),
		Platform:             d.String("platform"),
		PlatformVersion:      d.String("platformVersion"),
		Device:               d.String("device"),
		ClientIdentifier:     d.String("clientIdentifier"),
		CreatedAt:            d.Timestamp("createdAt"),
		LastSeenAt:           d.Timestamp("lastSeenAt"),
		Provides:             d.List("provides"),
		OwnerID:              d.Int("ownerId"),
		SourceTitle:          d.String("sourceTitle"),
		PublicAddressMatches: d.Bool("publicAddressMatches"),
		Presence:             d.Bool("presence"),
		Owned:                d.Bool("owned"),
		Home:                 d.Bool("home"),
		Synced:               d.Bool("synced"),
		Relay:                d.Bool("relay"),
		HTTPSRequired:        d.Bool("httpsRequired"),
		AccessToken:          d.String("accessToken"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	if conns, ok := el.Find("connections"); ok {
		for _, ch := range conns.FindAll("connection") {
			cd := plex.DecodeAttrs(ch)
			conn := Connection{
				Protocol: cd.String("protocol"),
				Address:  cd.String("address"),
				Port:     cd.Int("port"),
				URI:      cd.String("uri"),
				Local:    cd.Bool("local"),
				Relay:    cd.Bool("relay"),
				IPv6:     cd.Bool("IPv6"),
			}
			if err := cd.Err(); err != nil {
				return nil, err
			}
			r.Connections = append(r.Connections, conn)
		}
	}
	return r, nil
}

// PreferredConnections orders the candidate addresses for this resource:
// local before remote before relay, and within each location https before
// http (subject to pref). Local addresses of servers shared by someone else
// are skipped, they point into the owner's network.
func (r *Resource) PreferredConnections(pref SchemePreference) []string {
	var candidates []string
	for _, location := range []string{"local", "remote", "relay"} {
		for _, scheme := range pref.schemes() {
			for _, conn := range r.Connections {
				if !r.Owned && conn.Local {
					continue
				}
				if conn.Location() != location {
					continue
				}
				switch scheme {
				case "https":
					candidates = append(candidates, conn.URI)
				case "http":
					candidates = append(candidates, conn.httpURI())
				}
			}
		}
	}
	return candidates
}

// Connect opens a plex.Server session against this resource. Every
// candidate address is probed in parallel and the first success in
// preference order wins, so one unreachable address costs no time as long
// as another answers.
func (r *Resource) Connect(ctx context.Context, pref SchemePreference, opts ...plex.ServerOption) (*plex.Server, error) {
	candidates := r.PreferredConnections(pref)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: resource %q advertises no usable addresses", plex.ErrNoConnection, r.Name)
	}
	return raceConnect(ctx, r.account.logger, "resource", r.Name, candidates, r.AccessToken, opts)
}

// raceConnect probes every candidate address in parallel and returns the
// first successful session in candidate order, not arrival order. Probe
// failures are collected rather than aborting the group; only a fully
// failed slate is an error.
func raceConnect(ctx context.Context, logger zerolog.Logger, kind, name string, candidates []string, token string, opts []plex.ServerOption) (*plex.Server, error) {
	logger.Debug().
		Str(kind, name).
		Int("addresses", len(candidates)).
		Msg("probing connection candidates")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(connectConcurrency)

	var mu sync.Mutex
	servers := make([]*plex.Server, len(candidates))
	errs := make([]error, len(candidates))

	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			// Each probe is bounded by the session timeout; a cancelled
			// context stops queued probes from launching.
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
				return nil
			}
			srv, err := plex.NewServer(candidate, token, logger, opts...)
			mu.Lock()
			servers[i], errs[i] = srv, err
			mu.Unlock()
			if err != nil {
				logger.Debug().Err(err).Str("address", candidate).Msg("connection probe failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, srv := range servers {
		if srv != nil {
			logger.Debug().Str("address", candidates[i]).Msg("connected")
			return srv, nil
		}
	}

	var lastErr error
	for _, err := range errs {
		if err != nil {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("%w: all %d addresses for %s %q failed: %v",
		plex.ErrNoConnection, len(candidates), kind, name, lastErr)
}
