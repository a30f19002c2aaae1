// Package plex provides a client for the Plex Media Server HTTP API.
//
// The server speaks attribute-heavy XML: every endpoint answers with a
// MediaContainer element whose children describe items, sections, sessions
// or devices. This package keeps that shape visible instead of hiding it:
// responses parse into a raw element tree, and typed wrappers (Movie, Show,
// Track, Playlist, ...) are populated from the tree without discarding
// attributes they do not declare.
//
// # Architecture
//
// The package is organized into several layers:
//
//   - Server: the session against one PMS instance, carrying base URL,
//     token and the X-Plex identity headers
//   - Element/Container: the parsed XML tree every response reduces to
//   - Item wrappers: typed views over a fragment with lazy reloading of
//     attributes a summary listing omitted
//   - Library, sessions, playlists, hubs: the endpoint surfaces built on
//     the wrappers
//   - AlertListener: the websocket notification stream
//
// # Usage
//
// Connect with the server address and an account token:
//
//	logger := zerolog.New(os.Stdout)
//	srv, err := plex.NewServer(
//		"http://192.168.1.10:32400",
//		"your-token",
//		logger,
//		plex.WithTimeout(15*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	section, err := srv.Library().Section(ctx, "Movies")
//	if err != nil {
//		log.Fatal(err)
//	}
//	items, err := section.All(ctx, plex.Match{"year__gte": "2010"})
//
// # Partial items and reloading
//
// Listings return summary fragments that omit attributes the item detail
// carries. Typed fields parse whatever the fragment had; raw access through
// FetchAttr reloads a partial item at most once when an attribute is
// missing:
//
//	year, ok, err := item.FetchIntAttr(ctx, "year")
//
// A second miss after that reload answers from memory. Reload refetches
// explicitly at any time.
//
// # Error Handling
//
// Failures map onto sentinel errors matched with errors.Is:
//
//   - ErrInvalidConfig: unusable base URL or options
//   - ErrNoConnection: the server could not be reached
//   - ErrUnauthorized: missing or expired token
//   - ErrNotFound: the identifier does not exist
//   - ErrSchemaMismatch: a response did not look like PMS output
//
// HTTP failures carry their status and body as an *APIError, which matches
// the sentinels above through errors.Is.
package plex
