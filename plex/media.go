package plex

import "time"

// Stream type discriminators carried by MediaStream.StreamType.
const (
	StreamTypeVideo    = 1
	StreamTypeAudio    = 2
	StreamTypeSubtitle = 3
	StreamTypeLyrics   = 4
)

// Media is one playable rendition of an item. An item may carry several
// renditions (a 4K original next to an optimized version), each split into
// one or more file parts.
type Media struct {
	ID                    int64
	Duration              time.Duration
	Bitrate               int
	Width                 int
	Height                int
	AspectRatio           float64
	AudioChannels         int
	AudioCodec            string
	AudioProfile          string
	VideoCodec            string
	VideoProfile          string
	VideoResolution       string
	VideoFrameRate        string
	Container             string
	OptimizedForStreaming bool
	Has64bitOffsets       bool
	Parts                 []MediaPart
}

// MediaPart is one file of a rendition.
type MediaPart struct {
	ID                    int64
	Key                   string
	File                  string
	Size                  int64
	Duration              time.Duration
	Container             string
	AudioProfile          string
	VideoProfile          string
	Indexes               string
	HasThumbnail          bool
	OptimizedForStreaming bool
	Streams               []MediaStream
}

// MediaStream is a single video, audio, subtitle or lyrics stream inside a
// part.
type MediaStream struct {
	ID                   int64
	StreamType           int
	Default              bool
	Selected             bool
	Forced               bool
	HearingImpaired      bool
	VisualImpaired       bool
	Codec                string
	Index                int
	Bitrate              int
	Channels             int
	AudioChannelLayout   string
	SamplingRate         int
	Width                int
	Height               int
	Language             string
	LanguageTag          string
	LanguageCode         string
	Title                string
	DisplayTitle         string
	ExtendedDisplayTitle string
}

// MediaTag is one entry of an item's flat tag lists: genres, directors,
// writers, cast, collections, countries, similar artists, styles, moods and
// labels all share this shape. Role and Thumb are set on cast entries only.
type MediaTag struct {
	ID     int64
	Tag    string
	Filter string
	TagKey string
	Role   string
	Thumb  string
}

// Guid is one external identifier mapping, e.g. imdb://tt0120737.
type Guid struct {
	ID string
}

// Field marks an attribute locked against being overwritten by metadata
// refreshes.
type Field struct {
	Name   string
	Locked bool
}

// childDecoder reads the typed child lists out of an item fragment. Like
// AttrDecoder it collects the first malformed-child error and keeps going,
// so populate methods read all lists and check Err once.
type childDecoder struct {
	el  *Element
	err error
}

func decodeChildren(el *Element) *childDecoder {
	return &childDecoder{el: el}
}

// Err returns the first malformed-child error encountered, if any.
func (c *childDecoder) Err() error {
	return c.err
}

func (c *childDecoder) keep(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

// Tags decodes the children with the given tag name into MediaTag entries.
func (c *childDecoder) Tags(name string) []MediaTag {
	var out []MediaTag
	for _, ch := range c.el.FindAll(name) {
		d := DecodeAttrs(ch)
		out = append(out, MediaTag{
			ID:     d.Int64("id"),
			Tag:    d.String("tag"),
			Filter: d.String("filter"),
			TagKey: d.String("tagKey"),
			Role:   d.String("role"),
			Thumb:  d.String("thumb"),
		})
		c.keep(d.Err())
	}
	return out
}

// Guids decodes the external identifier children.
func (c *childDecoder) Guids() []Guid {
	var out []Guid
	for _, ch := range c.el.FindAll("Guid") {
		out = append(out, Guid{ID: ch.Attrs["id"]})
	}
	return out
}

// Fields decodes the locked-field children.
func (c *childDecoder) Fields() []Field {
	var out []Field
	for _, ch := range c.el.FindAll("Field") {
		d := DecodeAttrs(ch)
		out = append(out, Field{
			Name:   d.String("name"),
			Locked: d.Bool("locked"),
		})
		c.keep(d.Err())
	}
	return out
}

// Locations decodes the filesystem path children carried by directory items
// and library sections.
func (c *childDecoder) Locations() []string {
	var out []string
	for _, ch := range c.el.FindAll("Location") {
		if v, ok := ch.Attrs["path"]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Media decodes the rendition children including their parts and streams.
func (c *childDecoder) Media() []Media {
	var out []Media
	for _, m := range c.el.FindAll("Media") {
		d := DecodeAttrs(m)
		md := Media{
			ID:                    d.Int64("id"),
			Duration:              d.Millis("duration"),
			Bitrate:               d.Int("bitrate"),
			Width:                 d.Int("width"),
			Height:                d.Int("height"),
			AspectRatio:           d.Float("aspectRatio"),
			AudioChannels:         d.Int("audioChannels"),
			AudioCodec:            d.String("audioCodec"),
			AudioProfile:          d.String("audioProfile"),
			VideoCodec:            d.String("videoCodec"),
			VideoProfile:          d.String("videoProfile"),
			VideoResolution:       d.String("videoResolution"),
			VideoFrameRate:        d.String("videoFrameRate"),
			Container:             d.String("container"),
			OptimizedForStreaming: d.Bool("optimizedForStreaming"),
			Has64bitOffsets:       d.Bool("has64bitOffsets"),
		}
		c.keep(d.Err())
		for _, p := range m.FindAll("Part") {
			md.Parts = append(md.Parts, c.part(p))
		}
		out = append(out, md)
	}
	return out
}

func (c *childDecoder) part(el *Element) MediaPart {
	d := DecodeAttrs(el)
	part := MediaPart{
		ID:                    d.Int64("id"),
		Key:                   d.String("key"),
		File:                  d.String("file"),
		Size:                  d.Int64("size"),
		Duration:              d.Millis("duration"),
		Container:             d.String("container"),
		AudioProfile:          d.String("audioProfile"),
		VideoProfile:          d.String("videoProfile"),
		Indexes:               d.String("indexes"),
		HasThumbnail:          d.Bool("hasThumbnail"),
		OptimizedForStreaming: d.Bool("optimizedForStreaming"),
	}
	c.keep(d.Err())
	for _, s := range el.FindAll("Stream") {
		part.Streams = append(part.Streams, c.stream(s))
	}
	return part
}

func (c *childDecoder) stream(el *Element) MediaStream {
	d := DecodeAttrs(el)
	st := MediaStream{
		ID:                   d.Int64("id"),
		StreamType:           d.Int("streamType"),
		Default:              d.Bool("default"),
		Selected:             d.Bool("selected"),
		Forced:               d.Bool("forced"),
		HearingImpaired:      d.Bool("hearingImpaired"),
		VisualImpaired:       d.Bool("visualImpaired"),
		Codec:                d.String("codec"),
		Index:                d.Int("index"),
		Bitrate:              d.Int("bitrate"),
		Channels:             d.Int("channels"),
		AudioChannelLayout:   d.String("audioChannelLayout"),
		SamplingRate:         d.Int("samplingRate"),
		Width:                d.Int("width"),
		Height:               d.Int("height"),
		Language:             d.String("language"),
		LanguageTag:          d.String("languageTag"),
		LanguageCode:         d.String("languageCode"),
		Title:                d.String("title"),
		DisplayTitle:         d.String("displayTitle"),
		ExtendedDisplayTitle: d.String("extendedDisplayTitle"),
	}
	c.keep(d.Err())
	return st
}
