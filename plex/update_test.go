package plex

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const updateStatusXML = `<MediaContainer size="1" canInstall="1" checkDate="2024-01-11" checkedAt="1705000000" downloadURL="https://plex.tv/downloads" status="0">
  <Release key="https://plex.tv/release/1" version="1.41.0.8994-f2c27da23" added="New HDR tone mapping" fixed="(Transcoder) Fixed a crash" downloadURL="https://plex.tv/release/1/download" state="available"/>
</MediaContainer>`

func TestCheckForUpdate(t *testing.T) {
	type call struct {
		method   string
		path     string
		download string
	}
	var calls []call
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{method: r.Method, path: r.URL.Path, download: r.URL.Query().Get("download")})
		switch r.URL.Path {
		case "/updater/check":
			w.WriteHeader(http.StatusOK)
		case "/updater/status":
			xmlResponse(t, w, updateStatusXML)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	rel, err := srv.CheckForUpdate(ctx, true, true)
	require.NoError(t, err)
	require.NotNil(t, rel)

	want := []call{
		{method: http.MethodPut, path: "/updater/check", download: "1"},
		{method: http.MethodGet, path: "/updater/status"},
	}
	assert.Equal(t, want, calls)

	assert.Equal(t, "1.41.0.8994-f2c27da23", rel.Version)
	assert.Equal(t, "New HDR tone mapping", rel.Added)
	assert.Equal(t, "(Transcoder) Fixed a crash", rel.Fixed)
	assert.Equal(t, "https://plex.tv/release/1/download", rel.DownloadURL)
	assert.Equal(t, "available", rel.State)
	assert.True(t, rel.CanInstall)
	assert.Equal(t, time.Unix(1705000000, 0), rel.CheckedAt)

	// Without force the cached status is read directly.
	calls = nil
	_, err = srv.CheckForUpdate(ctx, false, false)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "/updater/status", calls[0].path)
}

func TestCheckForUpdateUpToDate(t *testing.T) {
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(t, w, `<MediaContainer size="0" canInstall="0" checkedAt="1705000000" status="0"></MediaContainer>`)
	})

	rel, err := srv.CheckForUpdate(context.Background(), false, false)
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestIsLatest(t *testing.T) {
	status := `<MediaContainer size="0"></MediaContainer>`
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/updater/status" {
			xmlResponse(t, w, status)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	// No release offered means the server is current.
	latest, err := srv.IsLatest(ctx)
	require.NoError(t, err)
	assert.True(t, latest)

	// The connected server runs 1.40.2; a 1.41 release is newer.
	status = updateStatusXML
	latest, err = srv.IsLatest(ctx)
	require.NoError(t, err)
	assert.False(t, latest)

	// A release matching the running version is not an upgrade.
	status = `<MediaContainer size="1" canInstall="0" checkedAt="1705000000">
  <Release key="https://plex.tv/release/0" version="1.40.2.8395-c67dce28e" state="available"/>
</MediaContainer>`
	latest, err = srv.IsLatest(ctx)
	require.NoError(t, err)
	assert.True(t, latest)
}

func TestInstallUpdate(t *testing.T) {
	var gotMethod, gotPath string
	_, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		assert.Equal(t, "0", r.URL.Query().Get("tonight"))
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, srv.InstallUpdate(context.Background()))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/updater/apply", gotPath)
}

func TestVersionAtLeast(t *testing.T) {
	_, srv := newTestServer(t, nil)

	tests := []struct {
		version string
		want    bool
	}{
		{version: "1.40.2.8395-c67dce28e", want: true},
		{version: "1.40.2", want: true},
		{version: "1.39.0", want: true},
		{version: "1.40.3", want: false},
		{version: "1.41.0.8994-f2c27da23", want: false},
		{version: "2.0", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := srv.VersionAtLeast(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := srv.VersionAtLeast("not a version")
	require.Error(t, err)
}

func TestReleaseNewerThan(t *testing.T) {
	rel := &Release{Version: "1.41.0.8994-f2c27da23"}
	assert.True(t, rel.NewerThan("1.40.2.8395-c67dce28e"))
	assert.False(t, rel.NewerThan("1.41.0.8994-f2c27da23"))
	assert.False(t, rel.NewerThan("1.42.0"))

	// Unparseable versions fall back to plain inequality.
	odd := &Release{Version: "nightly"}
	assert.True(t, odd.NewerThan("1.40.2"))
	assert.False(t, odd.NewerThan("nightly"))
}
