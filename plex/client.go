package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	defaultProduct = "goplex"
	defaultVersion = "0.8.0"

	// plexIdentifier is the provider identifier PMS expects on rating,
	// scrobble and playlist requests.
	plexIdentifier = "com.plexapp.plugins.library"
)

// ServerInfo carries the capability attributes the server advertises on its
// root endpoint. It is populated once when the session connects.
type ServerInfo struct {
	FriendlyName       string
	MachineIdentifier  string
	Version            string
	Platform           string
	PlatformVersion    string
	AllowSync          bool
	Multiuser          bool
	MyPlex             bool
	MyPlexUsername     string
	MyPlexSubscription bool
	PushNotifications  bool
	TranscoderAudio    bool
	TranscoderVideo    bool
	UpdatedAt          time.Time
}

func (i *ServerInfo) populate(el *Element) error {
	d := DecodeAttrs(el)
	i.FriendlyName = d.String("friendlyName")
	i.MachineIdentifier = d.String("machineIdentifier")
	i.Version = d.String("version")
	i.Platform = d.String("platform")
	i.PlatformVersion = d.String("platformVersion")
	i.AllowSync = d.Bool("allowSync")
	i.Multiuser = d.Bool("multiuser")
	i.MyPlex = d.Bool("myPlex")
	i.MyPlexUsername = d.String("myPlexUsername")
	i.MyPlexSubscription = d.Bool("myPlexSubscription")
	i.PushNotifications = d.Bool("pushNotifications")
	i.TranscoderAudio = d.Bool("transcoderAudio")
	i.TranscoderVideo = d.Bool("transcoderVideo")
	i.UpdatedAt = d.UnixTime("updatedAt")
	return d.Err()
}

// Server is a session against one Plex Media Server. The base URL, token and
// client identity are immutable after construction, so a Server is safe for
// concurrent use; rotate credentials by constructing a new session.
type Server struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	logger        zerolog.Logger
	identifier    string
	product       string
	version       string
	device        string
	platform      string
	containerSize int

	// Info holds the capability attributes fetched at connect time.
	Info ServerInfo
}

// ServerOption configures optional session behavior.
type ServerOption func(*Server)

// WithTimeout sets a custom timeout for all requests.
func WithTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client, for custom TLS
// configuration or transports.
func WithHTTPClient(client *http.Client) ServerOption {
	return func(s *Server) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithClientIdentifier pins the X-Plex-Client-Identifier header. Without it
// every session generates a fresh identifier, which shows up as a new device
// in the server's device list.
func WithClientIdentifier(identifier string) ServerOption {
	return func(s *Server) {
		if identifier != "" {
			s.identifier = identifier
		}
	}
}

// WithProduct sets the X-Plex-Product and X-Plex-Version headers reported to
// the server.
func WithProduct(product, version string) ServerOption {
	return func(s *Server) {
		if product != "" {
			s.product = product
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithDeviceName sets the X-Plex-Device-Name header, defaulting to the
// hostname.
func WithDeviceName(name string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.device = name
		}
	}
}

// WithContainerSize makes item listings paginate in pages of n instead of
// fetching results in a single request.
func WithContainerSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.containerSize = n
		}
	}
}

// NewServer connects to the Plex Media Server at baseURL and returns a
// session. The token may be empty for unclaimed servers on the local
// network. The constructor performs one request against the server root to
// verify reachability and capture its capability attributes.
func NewServer(baseURL, token string, logger zerolog.Logger, opts ...ServerOption) (*Server, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: server base URL is required", ErrInvalidConfig)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: base URL %q is not an http(s) URL", ErrInvalidConfig, baseURL)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = defaultProduct
	}

	s := &Server{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		identifier: uuid.NewString(),
		product:    defaultProduct,
		version:    defaultVersion,
		device:     hostname,
		platform:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.connect(context.Background()); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("server", s.Info.FriendlyName).
		Str("version", s.Info.Version).
		Msg("connected to plex server")

	return s, nil
}

func (s *Server) connect(ctx context.Context) error {
	cont, err := s.Query(ctx, http.MethodGet, "/", nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) || errors.Is(err, ErrSchemaMismatch) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	if cont == nil {
		return fmt.Errorf("%w: server root returned an empty body", ErrSchemaMismatch)
	}
	return s.Info.populate(cont.Element)
}

// BaseURL returns the normalized base URL of the session.
func (s *Server) BaseURL() string { return s.baseURL }

// URL builds an absolute URL for a key, optionally signing it with the
// session token for handing to external players or image consumers.
func (s *Server) URL(key string, includeToken bool) string {
	endpoint := s.baseURL + key
	if includeToken && s.token != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "X-Plex-Token=" + url.QueryEscape(s.token)
	}
	return endpoint
}

// Query issues a request against the server and parses the MediaContainer
// response. Endpoints answering with an empty body (most PUT and DELETE
// operations) yield a nil container.
//
// Failures map onto the package error taxonomy: transport errors are
// wrapped, HTTP statuses become an *APIError matching the sentinels through
// errors.Is, and an unparseable body is an ErrSchemaMismatch.
func (s *Server) Query(ctx context.Context, method, key string, params url.Values) (*Container, error) {
	data, err := s.doRequest(ctx, method, key, params)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	return ParseContainer(strings.NewReader(string(data)))
}

func (s *Server) doRequest(ctx context.Context, method, key string, params url.Values) ([]byte, error) {
	endpoint := s.baseURL + key
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		endpoint = key
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.applyHeaders(req)

	s.logger.Trace().Str("method", method).Str("key", key).Msg("plex request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func (s *Server) applyHeaders(req *http.Request) {
	for k, vs := range s.headers() {
		req.Header[k] = vs
	}
}

// headers builds the identity headers sent on every request, HTTP and
// websocket alike.
func (s *Server) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/xml")
	h.Set("X-Plex-Product", s.product)
	h.Set("X-Plex-Version", s.version)
	h.Set("X-Plex-Client-Identifier", s.identifier)
	h.Set("X-Plex-Platform", s.platform)
	h.Set("X-Plex-Device-Name", s.device)
	if s.token != "" {
		h.Set("X-Plex-Token", s.token)
	}
	return h
}
