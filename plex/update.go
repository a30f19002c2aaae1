package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blang/semver"
)

// Release describes a server update offered by the updater.
type Release struct {
	Key         string
	Version     string
	Added       string
	Fixed       string
	DownloadURL string
	State       string
	CanInstall  bool
	CheckedAt   time.Time
}

// CheckForUpdate asks the updater for an available release, or nil when the
// server is up to date. force makes the server re-check against plex.tv
// instead of answering from its last check; download additionally makes it
// start fetching the release in the background.
func (s *Server) CheckForUpdate(ctx context.Context, force, download bool) (*Release, error) {
	if force {
		params := url.Values{}
		params.Set("download", "0")
		if download {
			params.Set("download", "1")
		}
		if _, err := s.Query(ctx, http.MethodPut, "/updater/check", params); err != nil {
			return nil, err
		}
	}

	cont, err := s.Query(ctx, http.MethodGet, "/updater/status", nil)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, nil
	}
	rel, ok := cont.Find("Release")
	if !ok {
		return nil, nil
	}

	d := DecodeAttrs(rel)
	r := &Release{
		Key:         d.String("key"),
		Version:     d.String("version"),
		Added:       d.String("added"),
		Fixed:       d.String("fixed"),
		DownloadURL: d.String("downloadURL"),
		State:       d.String("state"),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	cd := DecodeAttrs(cont.Element)
	r.CanInstall = cd.Bool("canInstall")
	r.CheckedAt = cd.UnixTime("checkedAt")
	return r, cd.Err()
}

// IsLatest reports whether the server is on the newest available release.
func (s *Server) IsLatest(ctx context.Context) (bool, error) {
	rel, err := s.CheckForUpdate(ctx, true, false)
	if err != nil {
		return false, err
	}
	if rel == nil {
		return true, nil
	}
	return !rel.NewerThan(s.Info.Version), nil
}

// InstallUpdate applies a downloaded release. The server restarts during
// installation, invalidating this session.
func (s *Server) InstallUpdate(ctx context.Context) error {
	params := url.Values{}
	params.Set("tonight", "0")
	params.Set("skip", "0")
	_, err := s.Query(ctx, http.MethodPut, "/updater/apply", params)
	return err
}

// VersionAtLeast reports whether the server runs at least the given
// version, for gating endpoints added in newer releases.
func (s *Server) VersionAtLeast(version string) (bool, error) {
	cur, err := parseServerVersion(s.Info.Version)
	if err != nil {
		return false, fmt.Errorf("server version %q: %w", s.Info.Version, err)
	}
	want, err := parseServerVersion(version)
	if err != nil {
		return false, fmt.Errorf("version %q: %w", version, err)
	}
	return cur.GTE(want), nil
}

// NewerThan reports whether the release is newer than the given version.
// Versions that do not parse fall back to inequality.
func (r *Release) NewerThan(version string) bool {
	rv, err := parseServerVersion(r.Version)
	if err != nil {
		return r.Version != version
	}
	cv, err := parseServerVersion(version)
	if err != nil {
		return r.Version != version
	}
	return rv.GT(cv)
}

// parseServerVersion parses the four-segment versions PMS reports
// (1.41.0.8994-f2c27da23) down to their semver core.
func parseServerVersion(v string) (semver.Version, error) {
	v, _, _ = strings.Cut(v, "-")
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.ParseTolerant(strings.Join(parts, "."))
}
