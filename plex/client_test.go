package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRootXML = `<MediaContainer size="0" friendlyName="Test PMS" machineIdentifier="abc123" version="1.40.2.8395-c67dce28e" platform="Linux" platformVersion="6.1" allowSync="1" multiuser="1" myPlex="1" myPlexUsername="owner@example.com" myPlexSubscription="1" pushNotifications="0" transcoderAudio="1" transcoderVideo="1" updatedAt="1700000000"/>`

// newTestServer wires an httptest server that answers the connect handshake
// on / and hands everything else to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...ServerOption) (*httptest.Server, *Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, testRootXML)
			return
		}
		if handler != nil {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)

	srv, err := NewServer(ts.URL, "test-token", zerolog.Nop(), opts...)
	require.NoError(t, err)
	return ts, srv
}

func xmlResponse(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/xml")
	_, err := fmt.Fprint(w, body)
	require.NoError(t, err)
}

func TestNewServer(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		baseURL string
		wantErr error
	}{
		{name: "missing URL", baseURL: "", wantErr: ErrInvalidConfig},
		{name: "not a URL", baseURL: "::bogus::", wantErr: ErrInvalidConfig},
		{name: "wrong scheme", baseURL: "ftp://192.168.1.10:32400", wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.baseURL, "token", logger)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("valid config", func(t *testing.T) {
		_, srv := newTestServer(t, nil)
		assert.Equal(t, "Test PMS", srv.Info.FriendlyName)
		assert.Equal(t, "abc123", srv.Info.MachineIdentifier)
		assert.Equal(t, "1.40.2.8395-c67dce28e", srv.Info.Version)
		assert.True(t, srv.Info.AllowSync)
		assert.True(t, srv.Info.MyPlexSubscription)
		assert.False(t, srv.Info.PushNotifications)
		assert.Equal(t, time.Unix(1700000000, 0), srv.Info.UpdatedAt)
	})

	t.Run("unauthorized", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "401 Unauthorized", http.StatusUnauthorized)
		}))
		defer ts.Close()

		_, err := NewServer(ts.URL, "bad-token", logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		_, err := NewServer(ts.URL, "token", logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoConnection)
	})

	t.Run("non-plex server", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html><body>nginx</body></html>")
		}))
		defer ts.Close()

		_, err := NewServer(ts.URL, "token", logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

func TestNewServerHeaders(t *testing.T) {
	var rootHeaders http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rootHeaders = r.Header.Clone()
		xmlResponse(t, w, testRootXML)
	}))
	defer ts.Close()

	_, err := NewServer(ts.URL, "secret", zerolog.Nop(),
		WithClientIdentifier("goplex-test"),
		WithProduct("myapp", "1.2.3"),
		WithDeviceName("unit-test"),
	)
	require.NoError(t, err)

	assert.Equal(t, "application/xml", rootHeaders.Get("Accept"))
	assert.Equal(t, "secret", rootHeaders.Get("X-Plex-Token"))
	assert.Equal(t, "goplex-test", rootHeaders.Get("X-Plex-Client-Identifier"))
	assert.Equal(t, "myapp", rootHeaders.Get("X-Plex-Product"))
	assert.Equal(t, "1.2.3", rootHeaders.Get("X-Plex-Version"))
	assert.Equal(t, "unit-test", rootHeaders.Get("X-Plex-Device-Name"))
	assert.NotEmpty(t, rootHeaders.Get("X-Plex-Platform"))
}

func TestServerOptions(t *testing.T) {
	t.Run("with timeout", func(t *testing.T) {
		_, srv := newTestServer(t, nil, WithTimeout(5*time.Second))
		assert.Equal(t, 5*time.Second, srv.httpClient.Timeout)
	})

	t.Run("with custom http client", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		_, srv := newTestServer(t, nil, WithHTTPClient(custom))
		assert.Equal(t, custom, srv.httpClient)
	})

	t.Run("with container size", func(t *testing.T) {
		_, srv := newTestServer(t, nil, WithContainerSize(25))
		assert.Equal(t, 25, srv.containerSize)
	})

	t.Run("generated identifier", func(t *testing.T) {
		_, a := newTestServer(t, nil)
		_, b := newTestServer(t, nil)
		assert.NotEmpty(t, a.identifier)
		assert.NotEqual(t, a.identifier, b.identifier)
	})
}

func TestQueryErrors(t *testing.T) {
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "404 Not Found", http.StatusNotFound)
		case "/boom":
			http.Error(w, "internal error", http.StatusInternalServerError)
		case "/invalid-token":
			http.Error(w, `{"errors":[{"code":1001,"message":"Invalid token"}]}`, http.StatusUnprocessableEntity)
		case "/garbage":
			fmt.Fprint(w, "not xml at all")
		case "/empty":
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := srv.Query(ctx, http.MethodGet, "/missing", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, IsNotFound(err))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Contains(t, apiErr.URL, "/missing")
	})

	t.Run("server error", func(t *testing.T) {
		_, err := srv.Query(ctx, http.MethodGet, "/boom", nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "internal error")
		assert.False(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrUnauthorized))
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := srv.Query(ctx, http.MethodGet, "/invalid-token", nil)
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("schema mismatch", func(t *testing.T) {
		_, err := srv.Query(ctx, http.MethodGet, "/garbage", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("empty body yields nil container", func(t *testing.T) {
		cont, err := srv.Query(ctx, http.MethodGet, "/empty", nil)
		require.NoError(t, err)
		assert.Nil(t, cont)
	})
}

func TestQueryParams(t *testing.T) {
	var gotQuery url.Values
	var gotMethod string
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})

	params := url.Values{}
	params.Set("type", "1")
	params.Set("title", "dune part two")
	_, err := srv.Query(context.Background(), http.MethodPut, "/library/sections/1/all", params)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "1", gotQuery.Get("type"))
	assert.Equal(t, "dune part two", gotQuery.Get("title"))
}

func TestServerURL(t *testing.T) {
	_, srv := newTestServer(t, nil)

	t.Run("unsigned", func(t *testing.T) {
		u := srv.URL("/library/metadata/1/thumb", false)
		assert.Equal(t, srv.BaseURL()+"/library/metadata/1/thumb", u)
	})

	t.Run("signed", func(t *testing.T) {
		u := srv.URL("/library/metadata/1/thumb", true)
		assert.Equal(t, srv.BaseURL()+"/library/metadata/1/thumb?X-Plex-Token=test-token", u)
	})

	t.Run("signed with existing query", func(t *testing.T) {
		u := srv.URL("/photo/:/transcode?width=100", true)
		assert.Contains(t, u, "width=100&X-Plex-Token=test-token")
	})
}

func TestClients(t *testing.T) {
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/clients", r.URL.Path)
		xmlResponse(t, w, `<MediaContainer size="2">
  <Server name="Living Room" host="192.168.1.20" address="192.168.1.20" port="32500" machineIdentifier="client-1" version="8.5" protocol="plex" product="Plex for Apple TV" deviceClass="stb" protocolVersion="1" protocolCapabilities="timeline,playback,navigation,playqueues"/>
  <Server name="bedroom-tv" host="192.168.1.21" address="192.168.1.21" port="32500" machineIdentifier="client-2" version="8.5" protocol="plex" product="Plex for Android" deviceClass="tv" protocolVersion="1" protocolCapabilities="timeline,playback"/>
</MediaContainer>`)
	})
	ctx := context.Background()

	clients, err := srv.Clients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, "Living Room", clients[0].Name)
	assert.Equal(t, 32500, clients[0].Port)
	assert.Equal(t, "client-1", clients[0].MachineIdentifier)
	assert.Equal(t, []string{"timeline", "playback", "navigation", "playqueues"}, clients[0].ProtocolCapabilities)
	assert.True(t, clients[0].Supports("playback"))
	assert.False(t, clients[1].Supports("playqueues"))

	c, err := srv.Client(ctx, "BEDROOM-TV")
	require.NoError(t, err)
	assert.Equal(t, "client-2", c.MachineIdentifier)

	_, err = srv.Client(ctx, "kitchen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHubSearch(t *testing.T) {
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/hubs/search", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		xmlResponse(t, w, `<MediaContainer size="3">
  <Hub title="Movies" type="movie" hubIdentifier="movie" size="1" more="0">
    <Video ratingKey="1" key="/library/metadata/1" type="movie" title="Dune" year="2021"/>
  </Hub>
  <Hub title="Shows" type="show" hubIdentifier="show" size="0" more="0"/>
  <Hub title="Tags" type="tag" hubIdentifier="tag" size="1" more="0">
    <Directory id="9" type="tag" tag="Dune-esque" title="Dune-esque"/>
  </Hub>
</MediaContainer>`)
	})

	hubs, err := srv.Search(context.Background(), "dune", HubSearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, hubs, 3)

	assert.Equal(t, "Movies", hubs[0].Title)
	require.Len(t, hubs[0].Items, 1)
	movie, ok := hubs[0].Items[0].(*Movie)
	require.True(t, ok)
	assert.Equal(t, "Dune", movie.Title)

	assert.Empty(t, hubs[1].Items)

	// Hubs of kinds without a wrapper still surface raw items.
	require.Len(t, hubs[2].Items, 1)
	assert.Equal(t, "Directory", hubs[2].Items[0].Tag())
	tag, ok := hubs[2].Items[0].Attr("tag")
	require.True(t, ok)
	assert.Equal(t, "Dune-esque", tag)
}
