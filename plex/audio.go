package plex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Artist is a music artist from a music library. Its key lists children, so
// album and track navigation needs no extra lookups.
type Artist struct {
	object

	Title                string
	TitleSort            string
	Type                 string
	GUID                 string
	Summary              string
	Index                int
	AlbumSort            int
	Rating               float64
	AudienceRating       float64
	UserRating           float64
	ViewCount            int
	SkipCount            int
	LastViewedAt         time.Time
	LastRatedAt          time.Time
	Thumb                string
	Art                  string
	Theme                string
	AddedAt              time.Time
	UpdatedAt            time.Time
	MusicAnalysisVersion int
	LibrarySectionID     int
	LibrarySectionTitle  string
	LibrarySectionKey    string

	Genres      []MediaTag
	Countries   []MediaTag
	Collections []MediaTag
	Styles      []MediaTag
	Moods       []MediaTag
	Labels      []MediaTag
	Similar     []MediaTag
	Guids       []Guid
	Fields      []Field
	Locations   []string
}

func (a *Artist) populate(srv *Server, el *Element, sourceKey string) error {
	a.object.init(srv, el, sourceKey, a)
	a.object.key = strings.TrimSuffix(a.object.key, "/children")
	a.object.computePartial()

	d := DecodeAttrs(el)
	a.Title = d.String("title")
	a.TitleSort = d.String("titleSort")
	a.Type = d.String("type")
	a.GUID = d.String("guid")
	a.Summary = d.String("summary")
	a.Index = d.Int("index")
	a.AlbumSort = d.Int("albumSort")
	a.Rating = d.Float("rating")
	a.AudienceRating = d.Float("audienceRating")
	a.UserRating = d.Float("userRating")
	a.ViewCount = d.Int("viewCount")
	a.SkipCount = d.Int("skipCount")
	a.LastViewedAt = d.UnixTime("lastViewedAt")
	a.LastRatedAt = d.UnixTime("lastRatedAt")
	a.Thumb = d.String("thumb")
	a.Art = d.String("art")
	a.Theme = d.String("theme")
	a.AddedAt = d.UnixTime("addedAt")
	a.UpdatedAt = d.UnixTime("updatedAt")
	a.MusicAnalysisVersion = d.Int("musicAnalysisVersion")
	a.LibrarySectionID = d.Int("librarySectionID")
	a.LibrarySectionTitle = d.String("librarySectionTitle")
	a.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	a.Genres = c.Tags("Genre")
	a.Countries = c.Tags("Country")
	a.Collections = c.Tags("Collection")
	a.Styles = c.Tags("Style")
	a.Moods = c.Tags("Mood")
	a.Labels = c.Tags("Label")
	a.Similar = c.Tags("Similar")
	a.Guids = c.Guids()
	a.Fields = c.Fields()
	a.Locations = c.Locations()
	return c.Err()
}

// Albums lists the artist's albums, optionally filtered.
func (a *Artist) Albums(ctx context.Context, match Match) ([]*Album, error) {
	return fetchTyped[*Album](ctx, a.srv, a.childrenKey(), nil, match)
}

// Album returns the artist's album with the given title.
func (a *Artist) Album(ctx context.Context, title string) (*Album, error) {
	return fetchOne[*Album](ctx, a.srv, a.childrenKey(), nil, Match{"title__iexact": title})
}

// Tracks lists every track of the artist across all albums.
func (a *Artist) Tracks(ctx context.Context, match Match) ([]*Track, error) {
	return fetchTyped[*Track](ctx, a.srv, a.leavesKey(), nil, match)
}

// Track returns the artist's track with the given title.
func (a *Artist) Track(ctx context.Context, title string) (*Track, error) {
	return fetchOne[*Track](ctx, a.srv, a.leavesKey(), nil, Match{"title__iexact": title})
}

// TrackAt returns the track at the given position of the named album.
func (a *Artist) TrackAt(ctx context.Context, album string, number int) (*Track, error) {
	match := Match{
		"parentTitle__iexact": album,
		"index":               strconv.Itoa(number),
	}
	return fetchOne[*Track](ctx, a.srv, a.leavesKey(), nil, match)
}

// HasSonicAnalysis reports whether the server has sonic analysis data for
// the artist.
func (a *Artist) HasSonicAnalysis() bool { return a.MusicAnalysisVersion == 1 }

// SonicallySimilar lists artists the server considers sonically similar.
// limit and maxDistance bound the result when positive; zero keeps the
// server defaults.
func (a *Artist) SonicallySimilar(ctx context.Context, limit int, maxDistance float64) ([]*Artist, error) {
	return fetchTyped[*Artist](ctx, a.srv, a.detailsKey()+"/nearest", nearestParams(limit, maxDistance), nil)
}

// Album is a music album.
type Album struct {
	object

	Title                   string
	TitleSort               string
	Type                    string
	GUID                    string
	Summary                 string
	Index                   int
	Studio                  string
	Rating                  float64
	AudienceRating          float64
	UserRating              float64
	ViewCount               int
	SkipCount               int
	LastViewedAt            time.Time
	LastRatedAt             time.Time
	Year                    int
	Thumb                   string
	Art                     string
	AddedAt                 time.Time
	UpdatedAt               time.Time
	OriginallyAvailableAt   time.Time
	LeafCount               int
	ViewedLeafCount         int
	LoudnessAnalysisVersion int
	MusicAnalysisVersion    int
	ParentGUID              string
	ParentKey               string
	ParentRatingKey         string
	ParentTheme             string
	ParentThumb             string
	ParentTitle             string
	LibrarySectionID        int
	LibrarySectionTitle     string
	LibrarySectionKey       string

	Genres      []MediaTag
	Collections []MediaTag
	Styles      []MediaTag
	Moods       []MediaTag
	Labels      []MediaTag
	Formats     []MediaTag
	Subformats  []MediaTag
	Guids       []Guid
	Fields      []Field
}

func (a *Album) populate(srv *Server, el *Element, sourceKey string) error {
	a.object.init(srv, el, sourceKey, a)
	a.object.key = strings.TrimSuffix(a.object.key, "/children")
	a.object.computePartial()

	d := DecodeAttrs(el)
	a.Title = d.String("title")
	a.TitleSort = d.String("titleSort")
	a.Type = d.String("type")
	a.GUID = d.String("guid")
	a.Summary = d.String("summary")
	a.Index = d.Int("index")
	a.Studio = d.String("studio")
	a.Rating = d.Float("rating")
	a.AudienceRating = d.Float("audienceRating")
	a.UserRating = d.Float("userRating")
	a.ViewCount = d.Int("viewCount")
	a.SkipCount = d.Int("skipCount")
	a.LastViewedAt = d.UnixTime("lastViewedAt")
	a.LastRatedAt = d.UnixTime("lastRatedAt")
	a.Year = d.Int("year")
	a.Thumb = d.String("thumb")
	a.Art = d.String("art")
	a.AddedAt = d.UnixTime("addedAt")
	a.UpdatedAt = d.UnixTime("updatedAt")
	a.OriginallyAvailableAt = d.Date("originallyAvailableAt")
	a.LeafCount = d.Int("leafCount")
	a.ViewedLeafCount = d.Int("viewedLeafCount")
	a.LoudnessAnalysisVersion = d.Int("loudnessAnalysisVersion")
	a.MusicAnalysisVersion = d.Int("musicAnalysisVersion")
	a.ParentGUID = d.String("parentGuid")
	a.ParentKey = d.String("parentKey")
	a.ParentRatingKey = d.String("parentRatingKey")
	a.ParentTheme = d.String("parentTheme")
	a.ParentThumb = d.String("parentThumb")
	a.ParentTitle = d.String("parentTitle")
	a.LibrarySectionID = d.Int("librarySectionID")
	a.LibrarySectionTitle = d.String("librarySectionTitle")
	a.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	a.Genres = c.Tags("Genre")
	a.Collections = c.Tags("Collection")
	a.Styles = c.Tags("Style")
	a.Moods = c.Tags("Mood")
	a.Labels = c.Tags("Label")
	a.Formats = c.Tags("Format")
	a.Subformats = c.Tags("Subformat")
	a.Guids = c.Guids()
	a.Fields = c.Fields()
	return c.Err()
}

// Tracks lists the album's tracks, optionally filtered.
func (a *Album) Tracks(ctx context.Context, match Match) ([]*Track, error) {
	return fetchTyped[*Track](ctx, a.srv, a.childrenKey(), nil, match)
}

// Track returns the album's track with the given title.
func (a *Album) Track(ctx context.Context, title string) (*Track, error) {
	return fetchOne[*Track](ctx, a.srv, a.childrenKey(), nil, Match{"title__iexact": title})
}

// TrackAt returns the track at the given position on the album.
func (a *Album) TrackAt(ctx context.Context, number int) (*Track, error) {
	return fetchOne[*Track](ctx, a.srv, a.childrenKey(), nil, Match{"index": strconv.Itoa(number)})
}

// Artist fetches the album's artist.
func (a *Album) Artist(ctx context.Context) (*Artist, error) {
	if a.ParentKey == "" {
		return nil, fmt.Errorf("%w: album fragment carries no parentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Artist](ctx, a.srv, a.ParentKey, nil, nil)
}

// HasSonicAnalysis reports whether the server has sonic analysis data for
// the album.
func (a *Album) HasSonicAnalysis() bool { return a.MusicAnalysisVersion == 1 }

// SonicallySimilar lists albums the server considers sonically similar.
func (a *Album) SonicallySimilar(ctx context.Context, limit int, maxDistance float64) ([]*Album, error) {
	return fetchTyped[*Album](ctx, a.srv, a.detailsKey()+"/nearest", nearestParams(limit, maxDistance), nil)
}

// Track is a single song.
type Track struct {
	object

	Title                string
	TitleSort            string
	OriginalTitle        string
	Type                 string
	GUID                 string
	Summary              string
	Index                int
	Duration             time.Duration
	Rating               float64
	RatingCount          int
	AudienceRating       float64
	UserRating           float64
	ViewCount            int
	SkipCount            int
	ViewOffset           time.Duration
	LastViewedAt         time.Time
	LastRatedAt          time.Time
	Year                 int
	Thumb                string
	Art                  string
	AddedAt              time.Time
	UpdatedAt            time.Time
	ChapterSource        string
	PrimaryExtraKey      string
	MusicAnalysisVersion int
	ParentGUID           string
	ParentKey            string
	ParentRatingKey      string
	ParentThumb          string
	ParentTitle          string
	ParentIndex          int
	GrandparentGUID      string
	GrandparentKey       string
	GrandparentRatingKey string
	GrandparentArt       string
	GrandparentThumb     string
	GrandparentTitle     string
	LibrarySectionID     int
	LibrarySectionTitle  string
	LibrarySectionKey    string

	Media       []Media
	Genres      []MediaTag
	Collections []MediaTag
	Moods       []MediaTag
	Labels      []MediaTag
	Guids       []Guid
	Fields      []Field
}

func (t *Track) populate(srv *Server, el *Element, sourceKey string) error {
	t.object.init(srv, el, sourceKey, t)
	d := DecodeAttrs(el)
	t.Title = d.String("title")
	t.TitleSort = d.String("titleSort")
	t.OriginalTitle = d.String("originalTitle")
	t.Type = d.String("type")
	t.GUID = d.String("guid")
	t.Summary = d.String("summary")
	t.Index = d.Int("index")
	t.Duration = d.Millis("duration")
	t.Rating = d.Float("rating")
	t.RatingCount = d.Int("ratingCount")
	t.AudienceRating = d.Float("audienceRating")
	t.UserRating = d.Float("userRating")
	t.ViewCount = d.Int("viewCount")
	t.SkipCount = d.Int("skipCount")
	t.ViewOffset = d.Millis("viewOffset")
	t.LastViewedAt = d.UnixTime("lastViewedAt")
	t.LastRatedAt = d.UnixTime("lastRatedAt")
	t.Year = d.Int("year")
	t.Thumb = d.String("thumb")
	t.Art = d.String("art")
	t.AddedAt = d.UnixTime("addedAt")
	t.UpdatedAt = d.UnixTime("updatedAt")
	t.ChapterSource = d.String("chapterSource")
	t.PrimaryExtraKey = d.String("primaryExtraKey")
	t.MusicAnalysisVersion = d.Int("musicAnalysisVersion")
	t.ParentGUID = d.String("parentGuid")
	t.ParentKey = d.String("parentKey")
	t.ParentRatingKey = d.String("parentRatingKey")
	t.ParentThumb = d.String("parentThumb")
	t.ParentTitle = d.String("parentTitle")
	t.ParentIndex = d.Int("parentIndex")
	t.GrandparentGUID = d.String("grandparentGuid")
	t.GrandparentKey = d.String("grandparentKey")
	t.GrandparentRatingKey = d.String("grandparentRatingKey")
	t.GrandparentArt = d.String("grandparentArt")
	t.GrandparentThumb = d.String("grandparentThumb")
	t.GrandparentTitle = d.String("grandparentTitle")
	t.LibrarySectionID = d.Int("librarySectionID")
	t.LibrarySectionTitle = d.String("librarySectionTitle")
	t.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	t.Media = c.Media()
	t.Genres = c.Tags("Genre")
	t.Collections = c.Tags("Collection")
	t.Moods = c.Tags("Mood")
	t.Labels = c.Tags("Label")
	t.Guids = c.Guids()
	t.Fields = c.Fields()
	return c.Err()
}

// AllMedia returns the track's renditions.
func (t *Track) AllMedia() []Media { return t.Media }

// TrackNumber returns the track's position on its album.
func (t *Track) TrackNumber() int { return t.Index }

// DiscNumber returns the disc the track belongs to.
func (t *Track) DiscNumber() int { return t.ParentIndex }

// Album fetches the track's album.
func (t *Track) Album(ctx context.Context) (*Album, error) {
	if t.ParentKey == "" {
		return nil, fmt.Errorf("%w: track fragment carries no parentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Album](ctx, t.srv, t.ParentKey, nil, nil)
}

// Artist fetches the track's artist.
func (t *Track) Artist(ctx context.Context) (*Artist, error) {
	if t.GrandparentKey == "" {
		return nil, fmt.Errorf("%w: track fragment carries no grandparentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Artist](ctx, t.srv, t.GrandparentKey, nil, nil)
}

// HasSonicAnalysis reports whether the server has sonic analysis data for
// the track.
func (t *Track) HasSonicAnalysis() bool { return t.MusicAnalysisVersion == 1 }

// SonicallySimilar lists tracks the server considers sonically similar.
func (t *Track) SonicallySimilar(ctx context.Context, limit int, maxDistance float64) ([]*Track, error) {
	return fetchTyped[*Track](ctx, t.srv, t.detailsKey()+"/nearest", nearestParams(limit, maxDistance), nil)
}

func nearestParams(limit int, maxDistance float64) url.Values {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if maxDistance > 0 {
		params.Set("maxDistance", strconv.FormatFloat(maxDistance, 'f', -1, 64))
	}
	return params
}
