package plex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Movie is a video item from a movie library.
type Movie struct {
	object

	Title                 string
	TitleSort             string
	OriginalTitle         string
	Type                  string
	GUID                  string
	Slug                  string
	Studio                string
	ContentRating         string
	Summary               string
	Tagline               string
	Rating                float64
	RatingImage           string
	AudienceRating        float64
	AudienceRatingImage   string
	UserRating            float64
	ViewCount             int
	SkipCount             int
	ViewOffset            time.Duration
	LastViewedAt          time.Time
	LastRatedAt           time.Time
	Year                  int
	Thumb                 string
	Art                   string
	Theme                 string
	Duration              time.Duration
	OriginallyAvailableAt time.Time
	AddedAt               time.Time
	UpdatedAt             time.Time
	ChapterSource         string
	PrimaryExtraKey       string
	EditionTitle          string
	LibrarySectionID      int
	LibrarySectionTitle   string
	LibrarySectionKey     string

	Media       []Media
	Genres      []MediaTag
	Directors   []MediaTag
	Writers     []MediaTag
	Producers   []MediaTag
	Roles       []MediaTag
	Countries   []MediaTag
	Collections []MediaTag
	Labels      []MediaTag
	Guids       []Guid
	Fields      []Field
}

func (m *Movie) populate(srv *Server, el *Element, sourceKey string) error {
	m.object.init(srv, el, sourceKey, m)
	d := DecodeAttrs(el)
	m.Title = d.String("title")
	m.TitleSort = d.String("titleSort")
	m.OriginalTitle = d.String("originalTitle")
	m.Type = d.String("type")
	m.GUID = d.String("guid")
	m.Slug = d.String("slug")
	m.Studio = d.String("studio")
	m.ContentRating = d.String("contentRating")
	m.Summary = d.String("summary")
	m.Tagline = d.String("tagline")
	m.Rating = d.Float("rating")
	m.RatingImage = d.String("ratingImage")
	m.AudienceRating = d.Float("audienceRating")
	m.AudienceRatingImage = d.String("audienceRatingImage")
	m.UserRating = d.Float("userRating")
	m.ViewCount = d.Int("viewCount")
	m.SkipCount = d.Int("skipCount")
	m.ViewOffset = d.Millis("viewOffset")
	m.LastViewedAt = d.UnixTime("lastViewedAt")
	m.LastRatedAt = d.UnixTime("lastRatedAt")
	m.Year = d.Int("year")
	m.Thumb = d.String("thumb")
	m.Art = d.String("art")
	m.Theme = d.String("theme")
	m.Duration = d.Millis("duration")
	m.OriginallyAvailableAt = d.Date("originallyAvailableAt")
	m.AddedAt = d.UnixTime("addedAt")
	m.UpdatedAt = d.UnixTime("updatedAt")
	m.ChapterSource = d.String("chapterSource")
	m.PrimaryExtraKey = d.String("primaryExtraKey")
	m.EditionTitle = d.String("editionTitle")
	m.LibrarySectionID = d.Int("librarySectionID")
	m.LibrarySectionTitle = d.String("librarySectionTitle")
	m.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	m.Media = c.Media()
	m.Genres = c.Tags("Genre")
	m.Directors = c.Tags("Director")
	m.Writers = c.Tags("Writer")
	m.Producers = c.Tags("Producer")
	m.Roles = c.Tags("Role")
	m.Countries = c.Tags("Country")
	m.Collections = c.Tags("Collection")
	m.Labels = c.Tags("Label")
	m.Guids = c.Guids()
	m.Fields = c.Fields()
	return c.Err()
}

// AllMedia returns the movie's renditions.
func (m *Movie) AllMedia() []Media { return m.Media }

// Show is a series from a TV library. Its key lists children, so navigation
// to seasons and episodes needs no extra lookups.
type Show struct {
	object

	Title                 string
	TitleSort             string
	Type                  string
	GUID                  string
	Slug                  string
	Studio                string
	ContentRating         string
	Summary               string
	Tagline               string
	Index                 int
	Rating                float64
	AudienceRating        float64
	AudienceRatingImage   string
	UserRating            float64
	ViewCount             int
	SkipCount             int
	LastViewedAt          time.Time
	Year                  int
	Thumb                 string
	Art                   string
	Banner                string
	Theme                 string
	Duration              time.Duration
	OriginallyAvailableAt time.Time
	AddedAt               time.Time
	UpdatedAt             time.Time
	LeafCount             int
	ViewedLeafCount       int
	ChildCount            int
	SeasonCount           int
	LibrarySectionID      int
	LibrarySectionTitle   string
	LibrarySectionKey     string

	Genres      []MediaTag
	Roles       []MediaTag
	Countries   []MediaTag
	Collections []MediaTag
	Labels      []MediaTag
	Similar     []MediaTag
	Guids       []Guid
	Fields      []Field
	Locations   []string
}

func (s *Show) populate(srv *Server, el *Element, sourceKey string) error {
	s.object.init(srv, el, sourceKey, s)
	// Listings hand out the children endpoint as the show's key.
	s.object.key = strings.TrimSuffix(s.object.key, "/children")
	s.object.computePartial()

	d := DecodeAttrs(el)
	s.Title = d.String("title")
	s.TitleSort = d.String("titleSort")
	s.Type = d.String("type")
	s.GUID = d.String("guid")
	s.Slug = d.String("slug")
	s.Studio = d.String("studio")
	s.ContentRating = d.String("contentRating")
	s.Summary = d.String("summary")
	s.Tagline = d.String("tagline")
	s.Index = d.Int("index")
	s.Rating = d.Float("rating")
	s.AudienceRating = d.Float("audienceRating")
	s.AudienceRatingImage = d.String("audienceRatingImage")
	s.UserRating = d.Float("userRating")
	s.ViewCount = d.Int("viewCount")
	s.SkipCount = d.Int("skipCount")
	s.LastViewedAt = d.UnixTime("lastViewedAt")
	s.Year = d.Int("year")
	s.Thumb = d.String("thumb")
	s.Art = d.String("art")
	s.Banner = d.String("banner")
	s.Theme = d.String("theme")
	s.Duration = d.Millis("duration")
	s.OriginallyAvailableAt = d.Date("originallyAvailableAt")
	s.AddedAt = d.UnixTime("addedAt")
	s.UpdatedAt = d.UnixTime("updatedAt")
	s.LeafCount = d.Int("leafCount")
	s.ViewedLeafCount = d.Int("viewedLeafCount")
	s.ChildCount = d.Int("childCount")
	s.SeasonCount = d.Int("seasonCount")
	s.LibrarySectionID = d.Int("librarySectionID")
	s.LibrarySectionTitle = d.String("librarySectionTitle")
	s.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	s.Genres = c.Tags("Genre")
	s.Roles = c.Tags("Role")
	s.Countries = c.Tags("Country")
	s.Collections = c.Tags("Collection")
	s.Labels = c.Tags("Label")
	s.Similar = c.Tags("Similar")
	s.Guids = c.Guids()
	s.Fields = c.Fields()
	s.Locations = c.Locations()
	return c.Err()
}

// Seasons lists the show's seasons, optionally filtered.
func (s *Show) Seasons(ctx context.Context, match Match) ([]*Season, error) {
	return fetchTyped[*Season](ctx, s.srv, s.childrenKey(), nil, match)
}

// Season returns the season with the given title.
func (s *Show) Season(ctx context.Context, title string) (*Season, error) {
	return fetchOne[*Season](ctx, s.srv, s.childrenKey(), nil, Match{"title__iexact": title})
}

// SeasonByNumber returns the season with the given index, counting specials
// as season zero.
func (s *Show) SeasonByNumber(ctx context.Context, number int) (*Season, error) {
	return fetchOne[*Season](ctx, s.srv, s.childrenKey(), nil, Match{"index": strconv.Itoa(number)})
}

// Episodes lists every episode of the show across all seasons.
func (s *Show) Episodes(ctx context.Context, match Match) ([]*Episode, error) {
	return fetchTyped[*Episode](ctx, s.srv, s.leavesKey(), nil, match)
}

// Episode returns the episode with the given title.
func (s *Show) Episode(ctx context.Context, title string) (*Episode, error) {
	return fetchOne[*Episode](ctx, s.srv, s.leavesKey(), nil, Match{"title__iexact": title})
}

// EpisodeAt returns the episode at the given season and episode number.
func (s *Show) EpisodeAt(ctx context.Context, season, episode int) (*Episode, error) {
	match := Match{
		"parentIndex": strconv.Itoa(season),
		"index":       strconv.Itoa(episode),
	}
	return fetchOne[*Episode](ctx, s.srv, s.leavesKey(), nil, match)
}

// Season is one season of a show.
type Season struct {
	object

	Title               string
	TitleSort           string
	Type                string
	GUID                string
	Summary             string
	Index               int
	UserRating          float64
	ViewCount           int
	SkipCount           int
	LastViewedAt        time.Time
	Year                int
	Thumb               string
	Art                 string
	AddedAt             time.Time
	UpdatedAt           time.Time
	LeafCount           int
	ViewedLeafCount     int
	ParentGUID          string
	ParentKey           string
	ParentRatingKey     string
	ParentStudio        string
	ParentTheme         string
	ParentThumb         string
	ParentTitle         string
	ParentIndex         int
	LibrarySectionID    int
	LibrarySectionTitle string
	LibrarySectionKey   string

	Collections []MediaTag
	Labels      []MediaTag
	Guids       []Guid
	Fields      []Field
}

func (s *Season) populate(srv *Server, el *Element, sourceKey string) error {
	s.object.init(srv, el, sourceKey, s)
	s.object.key = strings.TrimSuffix(s.object.key, "/children")
	s.object.computePartial()

	d := DecodeAttrs(el)
	s.Title = d.String("title")
	s.TitleSort = d.String("titleSort")
	s.Type = d.String("type")
	s.GUID = d.String("guid")
	s.Summary = d.String("summary")
	s.Index = d.Int("index")
	s.UserRating = d.Float("userRating")
	s.ViewCount = d.Int("viewCount")
	s.SkipCount = d.Int("skipCount")
	s.LastViewedAt = d.UnixTime("lastViewedAt")
	s.Year = d.Int("year")
	s.Thumb = d.String("thumb")
	s.Art = d.String("art")
	s.AddedAt = d.UnixTime("addedAt")
	s.UpdatedAt = d.UnixTime("updatedAt")
	s.LeafCount = d.Int("leafCount")
	s.ViewedLeafCount = d.Int("viewedLeafCount")
	s.ParentGUID = d.String("parentGuid")
	s.ParentKey = d.String("parentKey")
	s.ParentRatingKey = d.String("parentRatingKey")
	s.ParentStudio = d.String("parentStudio")
	s.ParentTheme = d.String("parentTheme")
	s.ParentThumb = d.String("parentThumb")
	s.ParentTitle = d.String("parentTitle")
	s.ParentIndex = d.Int("parentIndex")
	s.LibrarySectionID = d.Int("librarySectionID")
	s.LibrarySectionTitle = d.String("librarySectionTitle")
	s.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	s.Collections = c.Tags("Collection")
	s.Labels = c.Tags("Label")
	s.Guids = c.Guids()
	s.Fields = c.Fields()
	return c.Err()
}

// Episodes lists the season's episodes, optionally filtered.
func (s *Season) Episodes(ctx context.Context, match Match) ([]*Episode, error) {
	return fetchTyped[*Episode](ctx, s.srv, s.childrenKey(), nil, match)
}

// Episode returns the episode with the given number within the season.
func (s *Season) Episode(ctx context.Context, number int) (*Episode, error) {
	return fetchOne[*Episode](ctx, s.srv, s.childrenKey(), nil, Match{"index": strconv.Itoa(number)})
}

// Show fetches the season's parent show.
func (s *Season) Show(ctx context.Context) (*Show, error) {
	if s.ParentKey == "" {
		return nil, fmt.Errorf("%w: season fragment carries no parentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Show](ctx, s.srv, s.ParentKey, nil, nil)
}

// Episode is a single episode of a show.
type Episode struct {
	object

	Title                 string
	TitleSort             string
	Type                  string
	GUID                  string
	Summary               string
	Index                 int
	AbsoluteIndex         int
	ContentRating         string
	Rating                float64
	AudienceRating        float64
	AudienceRatingImage   string
	UserRating            float64
	ViewCount             int
	SkipCount             int
	ViewOffset            time.Duration
	LastViewedAt          time.Time
	Year                  int
	Thumb                 string
	Art                   string
	Duration              time.Duration
	OriginallyAvailableAt time.Time
	AddedAt               time.Time
	UpdatedAt             time.Time
	ChapterSource         string
	ParentGUID            string
	ParentKey             string
	ParentRatingKey       string
	ParentThumb           string
	ParentTitle           string
	ParentIndex           int
	GrandparentGUID       string
	GrandparentKey        string
	GrandparentRatingKey  string
	GrandparentArt        string
	GrandparentTheme      string
	GrandparentThumb      string
	GrandparentTitle      string
	GrandparentSlug       string
	LibrarySectionID      int
	LibrarySectionTitle   string
	LibrarySectionKey     string

	Media     []Media
	Directors []MediaTag
	Writers   []MediaTag
	Roles     []MediaTag
	Labels    []MediaTag
	Guids     []Guid
	Fields    []Field
}

func (e *Episode) populate(srv *Server, el *Element, sourceKey string) error {
	e.object.init(srv, el, sourceKey, e)
	d := DecodeAttrs(el)
	e.Title = d.String("title")
	e.TitleSort = d.String("titleSort")
	e.Type = d.String("type")
	e.GUID = d.String("guid")
	e.Summary = d.String("summary")
	e.Index = d.Int("index")
	e.AbsoluteIndex = d.Int("absoluteIndex")
	e.ContentRating = d.String("contentRating")
	e.Rating = d.Float("rating")
	e.AudienceRating = d.Float("audienceRating")
	e.AudienceRatingImage = d.String("audienceRatingImage")
	e.UserRating = d.Float("userRating")
	e.ViewCount = d.Int("viewCount")
	e.SkipCount = d.Int("skipCount")
	e.ViewOffset = d.Millis("viewOffset")
	e.LastViewedAt = d.UnixTime("lastViewedAt")
	e.Year = d.Int("year")
	e.Thumb = d.String("thumb")
	e.Art = d.String("art")
	e.Duration = d.Millis("duration")
	e.OriginallyAvailableAt = d.Date("originallyAvailableAt")
	e.AddedAt = d.UnixTime("addedAt")
	e.UpdatedAt = d.UnixTime("updatedAt")
	e.ChapterSource = d.String("chapterSource")
	e.ParentGUID = d.String("parentGuid")
	e.ParentKey = d.String("parentKey")
	e.ParentRatingKey = d.String("parentRatingKey")
	e.ParentThumb = d.String("parentThumb")
	e.ParentTitle = d.String("parentTitle")
	e.ParentIndex = d.Int("parentIndex")
	e.GrandparentGUID = d.String("grandparentGuid")
	e.GrandparentKey = d.String("grandparentKey")
	e.GrandparentRatingKey = d.String("grandparentRatingKey")
	e.GrandparentArt = d.String("grandparentArt")
	e.GrandparentTheme = d.String("grandparentTheme")
	e.GrandparentThumb = d.String("grandparentThumb")
	e.GrandparentTitle = d.String("grandparentTitle")
	e.GrandparentSlug = d.String("grandparentSlug")
	e.LibrarySectionID = d.Int("librarySectionID")
	e.LibrarySectionTitle = d.String("librarySectionTitle")
	e.LibrarySectionKey = d.String("librarySectionKey")
	if err := d.Err(); err != nil {
		return err
	}

	c := decodeChildren(el)
	e.Media = c.Media()
	e.Directors = c.Tags("Director")
	e.Writers = c.Tags("Writer")
	e.Roles = c.Tags("Role")
	e.Labels = c.Tags("Label")
	e.Guids = c.Guids()
	e.Fields = c.Fields()
	return c.Err()
}

// AllMedia returns the episode's renditions.
func (e *Episode) AllMedia() []Media { return e.Media }

// SeasonNumber returns the episode's season number.
func (e *Episode) SeasonNumber() int { return e.ParentIndex }

// Season fetches the episode's parent season.
func (e *Episode) Season(ctx context.Context) (*Season, error) {
	if e.ParentKey == "" {
		return nil, fmt.Errorf("%w: episode fragment carries no parentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Season](ctx, e.srv, e.ParentKey, nil, nil)
}

// Show fetches the episode's grandparent show.
func (e *Episode) Show(ctx context.Context) (*Show, error) {
	if e.GrandparentKey == "" {
		return nil, fmt.Errorf("%w: episode fragment carries no grandparentKey", ErrSchemaMismatch)
	}
	return fetchOne[*Show](ctx, e.srv, e.GrandparentKey, nil, nil)
}
