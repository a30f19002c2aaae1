package plextv

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

	"github.com/nesati/goplex/plex"
)

// DefaultBaseURL is the public plex.tv API endpoint.
const DefaultBaseURL = "https://plex.tv"

const (
	defaultTimeout = 30 * time.Second
	defaultProduct = "goplex"
	defaultVersion = "0.8.0"
)

// Subscription describes the Plex Pass state of an account.
type Subscription struct {
	Active         bool
	Status         string
	Plan           string
	PaymentService string
	Features       []string
}

// Account is a session against the plex.tv API for one signed-in account.
// Profile fields are populated at construction from /api/v2/user and refresh
// on Reload. Like plex.Server, the credentials are immutable afterwards, so
// an Account is safe for concurrent use.
type Account struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	identifier string
	product    string
	version    string
	device     string
	platform   string

	ID                int
	UUID              string
	Username          string
	Title             string
	Email             string
	FriendlyName      string
	Locale            string
	Country           string
	Thumb             string
	JoinedAt          time.Time
	RememberExpiresAt time.Time
	Home              bool
	HomeAdmin         bool
	HomeSize          int
	MaxHomeSize       int
	Guest             bool
	Restricted        bool
	Protected         bool
	HasPassword       bool
	TwoFactorEnabled  bool
	Subscription      Subscription
	Roles             []string
	Entitlements      []string
}

// AccountOption configures optional account session behavior.
type AccountOption func(*Account)

// WithBaseURL points the session at a different API endpoint, for proxies or
// test servers.
func WithBaseURL(baseURL string) AccountOption {
	return func(a *Account) {
		if baseURL != "" {
			a.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets a custom timeout for all requests.
func WithTimeout(timeout time.Duration) AccountOption {
	return func(a *Account) {
		a.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) AccountOption {
	return func(a *Account) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithClientIdentifier pins the X-Plex-Client-Identifier header. Without it
// every session generates a fresh identifier, which shows up as a new device
// in the account's device list.
func WithClientIdentifier(identifier string) AccountOption {
	return func(a *Account) {
		if identifier != "" {
			a.identifier = identifier
		}
	}
}

// WithProduct sets the X-Plex-Product and X-Plex-Version headers.
func WithProduct(product, version string) AccountOption {
	return func(a *Account) {
		if product != "" {
			a.product = product
		}
		if version != "" {
			a.version = version
		}
	}
}

// WithDeviceName sets the X-Plex-Device-Name header, defaulting to the
// hostname.
func WithDeviceName(name string) AccountOption {
	return func(a *Account) {
		if name != "" {
			a.device = name
		}
	}
}

// NewAccount opens a plex.tv session with an existing account token. The
// constructor performs one request against /api/v2/user to validate the
// token and populate the profile fields.
func NewAccount(token string, logger zerolog.Logger, opts ...AccountOption) (*Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: plex.tv account token is required", plex.ErrInvalidConfig)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = defaultProduct
	}

	a := &Account{
		baseURL:    DefaultBaseURL,
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
		opt(a)
	}

	if err := a.Reload(context.Background()); err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("username", a.Username).
		Bool("subscription", a.Subscription.Active).
		Msg("signed in to plex.tv")

	return a, nil
}

// Token returns the account token the session was opened with.
func (a *Account) Token() string { return a.token }

// Reload refetches the account profile from plex.tv.
func (a *Account) Reload(ctx context.Context) error {
	root, err := a.query(ctx, http.MethodGet, "/api/v2/user", nil)
	if err != nil {
		var apiErr *plex.APIError
		if errors.As(err, &apiErr) || errors.Is(err, plex.ErrSchemaMismatch) {
			return err
		}
		return fmt.Errorf("%w: %v", plex.ErrNoConnection, err)
	}
	return a.populate(root)
}

// Ping touches /api/v2/ping so plex.tv keeps the token active.
func (a *Account) Ping(ctx context.Context) error {
	if _, err := a.doRequest(ctx, http.MethodGet, "/api/v2/ping", nil, nil); err != nil {
		return err
	}
	a.logger.Trace().Msg("pinged plex.tv")
	return nil
}

func (a *Account) populate(el *plex.Element) error {
	if el == nil || el.Tag != "user" {
		tag := "nothing"
		if el != nil {
			tag = "<" + el.Tag + ">"
		}
		return fmt.Errorf("%w: expected <user> root, got %s", plex.ErrSchemaMismatch, tag)
	}

	d := plex.DecodeAttrs(el)
	a.ID = d.Int("id")
	a.UUID = d.String("uuid")
	a.Username = d.String("username")
	a.Title = d.String("title")
	a.Email = d.String("email")
	a.FriendlyName = d.String("friendlyName")
	a.Locale = d.String("locale")
	a.Country = d.String("country")
	a.Thumb = d.String("thumb")
	a.JoinedAt = d.UnixTime("joinedAt")
	a.RememberExpiresAt = d.UnixTime("rememberExpiresAt")
	a.Home = d.Bool("home")
	a.HomeAdmin = d.Bool("homeAdmin")
	a.HomeSize = d.Int("homeSize")
	a.MaxHomeSize = d.Int("maxHomeSize")
	a.Guest = d.Bool("guest")
	a.Restricted = d.Bool("restricted")
	a.Protected = d.Bool("protected")
	a.HasPassword = d.Bool("hasPassword")
	a.TwoFactorEnabled = d.Bool("twoFactorEnabled")
	if err := d.Err(); err != nil {
		return err
	}

	a.Subscription = Subscription{}
	if sub, ok := el.Find("subscription"); ok {
		sd := plex.DecodeAttrs(sub)
		a.Subscription.Active = sd.Bool("active")
		a.Subscription.Status = sd.String("status")
		a.Subscription.Plan = sd.String("plan")
		a.Subscription.PaymentService = sd.String("paymentService")
		if err := sd.Err(); err != nil {
			return err
		}
		a.Subscription.Features = idList(sub, "features", "feature")
	}
	a.Roles = idList(el, "roles", "role")
	a.Entitlements = idList(el, "entitlements", "entitlement")
	return nil
}

// idList collects the id attributes of <wrapper><tag id=.../></wrapper>
// children, the list shape plex.tv uses for roles and entitlements.
func idList(el *plex.Element, wrapper, tag string) []string {
	parent, ok := el.Find(wrapper)
	if !ok {
		return nil
	}
	var ids []string
	for _, ch := range parent.FindAll(tag) {
		if id, ok := ch.Attr("id"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// query issues a request and parses the XML response body. Endpoints that
// answer with an empty body yield a nil element.
func (a *Account) query(ctx context.Context, method, path string, params url.Values) (*plex.Element, error) {
	data, err := a.doRequest(ctx, method, path, params, nil)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return nil, nil
	}
	return plex.ParseElement(strings.NewReader(body))
}

// doRequest issues a request against the plex.tv API. A non-nil form is sent
// urlencoded in the body; params always travel in the query string. Failures
// share the plex package taxonomy.
func (a *Account) doRequest(ctx context.Context, method, path string, params, form url.Values) ([]byte, error) {
	endpoint := a.baseURL + path
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range a.headers() {
		req.Header[k] = vs
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	a.logger.Trace().Str("method", method).Str("path", path).Msg("plex.tv request")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &plex.APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func (a *Account) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/xml")
	h.Set("X-Plex-Product", a.product)
	h.Set("X-Plex-Version", a.version)
	h.Set("X-Plex-Client-Identifier", a.identifier)
	h.Set("X-Plex-Platform", a.platform)
	h.Set("X-Plex-Device-Name", a.device)
	h.Set("X-Plex-Token", a.token)
	return h
}
