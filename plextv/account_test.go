package plextv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesati/goplex/plex"
)

const testAccountXML = `<user id="1234" uuid="uuid-1" username="megan" title="megan" email="megan@example.com" friendlyName="Megan" locale="en" country="US" thumb="https://plex.tv/users/1234/avatar" joinedAt="1420070400" rememberExpiresAt="1800000000" home="1" homeAdmin="1" homeSize="2" maxHomeSize="15" guest="0" restricted="0" protected="1" hasPassword="1" twoFactorEnabled="1" authToken="test-token">
  <subscription active="1" status="Active" plan="lifetime" paymentService="">
    <features>
      <feature id="webhooks"/>
      <feature id="sync"/>
    </features>
  </subscription>
  <roles>
    <role id="plexpass"/>
  </roles>
  <entitlements>
    <entitlement id="android"/>
    <entitlement id="roku"/>
  </entitlements>
</user>`

// newTestAccount wires an httptest server that answers the profile fetch on
// /api/v2/user and hands everything else to handler.
func newTestAccount(t *testing.T, handler http.HandlerFunc, opts ...AccountOption) (*httptest.Server, *Account) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/user" {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, testAccountXML)
			return
		}
		if handler != nil {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)

	opts = append([]AccountOption{WithBaseURL(ts.URL)}, opts...)
	account, err := NewAccount("test-token", zerolog.Nop(), opts...)
	require.NoError(t, err)
	return ts, account
}

func xmlResponse(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/xml")
	_, err := fmt.Fprint(w, body)
	require.NoError(t, err)
}

func TestNewAccount(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("missing token", func(t *testing.T) {
		_, err := NewAccount("", logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, plex.ErrInvalidConfig)
	})

	t.Run("profile fields", func(t *testing.T) {
		_, account := newTestAccount(t, nil)

		assert.Equal(t, 1234, account.ID)
		assert.Equal(t, "uuid-1", account.UUID)
		assert.Equal(t, "megan", account.Username)
		assert.Equal(t, "megan@example.com", account.Email)
		assert.Equal(t, "Megan", account.FriendlyName)
		assert.Equal(t, "US", account.Country)
		assert.Equal(t, time.Unix(1420070400, 0), account.JoinedAt)
		assert.True(t, account.Home)
		assert.True(t, account.HomeAdmin)
		assert.Equal(t, 2, account.HomeSize)
		assert.Equal(t, 15, account.MaxHomeSize)
		assert.False(t, account.Guest)
		assert.True(t, account.Protected)
		assert.True(t, account.TwoFactorEnabled)
		assert.Equal(t, "test-token", account.Token())

		assert.True(t, account.Subscription.Active)
		assert.Equal(t, "Active", account.Subscription.Status)
		assert.Equal(t, "lifetime", account.Subscription.Plan)
		assert.Equal(t, []string{"webhooks", "sync"}, account.Subscription.Features)

		assert.Equal(t, []string{"plexpass"}, account.Roles)
		assert.Equal(t, []string{"android", "roku"}, account.Entitlements)
	})

	t.Run("unauthorized", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "401 Unauthorized", http.StatusUnauthorized)
		}))
		defer ts.Close()

		_, err := NewAccount("bad-token", logger, WithBaseURL(ts.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, plex.ErrUnauthorized)
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		_, err := NewAccount("token", logger, WithBaseURL(ts.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, plex.ErrNoConnection)
	})

	t.Run("wrong root element", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<MediaContainer size="0"/>`)
		}))
		defer ts.Close()

		_, err := NewAccount("token", logger, WithBaseURL(ts.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, plex.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "<MediaContainer>")
	})
}

func TestNewAccountHeaders(t *testing.T) {
	var gotHeaders http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		xmlResponse(t, w, testAccountXML)
	}))
	defer ts.Close()

	_, err := NewAccount("secret", zerolog.Nop(),
		WithBaseURL(ts.URL),
		WithClientIdentifier("goplex-test"),
		WithProduct("myapp", "1.2.3"),
		WithDeviceName("unit-test"),
	)
	require.NoError(t, err)

	assert.Equal(t, "application/xml", gotHeaders.Get("Accept"))
	assert.Equal(t, "secret", gotHeaders.Get("X-Plex-Token"))
	assert.Equal(t, "goplex-test", gotHeaders.Get("X-Plex-Client-Identifier"))
	assert.Equal(t, "myapp", gotHeaders.Get("X-Plex-Product"))
	assert.Equal(t, "1.2.3", gotHeaders.Get("X-Plex-Version"))
	assert.Equal(t, "unit-test", gotHeaders.Get("X-Plex-Device-Name"))
	assert.NotEmpty(t, gotHeaders.Get("X-Plex-Platform"))
}

func TestAccountReload(t *testing.T) {
	profile := testAccountXML
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(t, w, profile)
	}))
	defer ts.Close()

	account, err := NewAccount("test-token", zerolog.Nop(), WithBaseURL(ts.URL))
	require.NoError(t, err)
	require.Equal(t, "Megan", account.FriendlyName)

	profile = `<user id="1234" uuid="uuid-1" username="megan" title="megan" friendlyName="Captain" homeSize="3"/>`
	require.NoError(t, account.Reload(context.Background()))

	assert.Equal(t, "Captain", account.FriendlyName)
	assert.Equal(t, 3, account.HomeSize)
	// Children absent from the refreshed profile reset rather than linger.
	assert.False(t, account.Subscription.Active)
	assert.Empty(t, account.Subscription.Features)
}

func TestPing(t *testing.T) {
	var pings int
	_, account := newTestAccount(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/ping", r.URL.Path)
		pings++
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, account.Ping(context.Background()))
	assert.Equal(t, 1, pings)
}

func TestPingExpiredToken(t *testing.T) {
	_, account := newTestAccount(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":1001,"message":"Invalid token"}]}`, http.StatusUnprocessableEntity)
	})

	err := account.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, plex.ErrUnauthorized)
}
