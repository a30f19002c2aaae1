package plex

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Element is a single node of a parsed server response. The Plex API carries
// nearly all data in XML attributes, so the tree keeps the raw attribute map
// exactly as received; typed wrappers are populated from it without losing
// attributes they do not declare.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Children []*Element
}

// Attr returns the raw value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Find returns the first direct child with the given tag.
func (e *Element) Find(tag string) (*Element, bool) {
	for _, ch := range e.Children {
		if ch.Tag == tag {
			return ch, true
		}
	}
	return nil, false
}

// FindAll returns all direct children with the given tag.
func (e *Element) FindAll(tag string) []*Element {
	var out []*Element
	for _, ch := range e.Children {
		if ch.Tag == tag {
			out = append(out, ch)
		}
	}
	return out
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	cp := &Element{Tag: e.Tag, Attrs: maps.Clone(e.Attrs)}
	if cp.Attrs == nil {
		cp.Attrs = make(map[string]string)
	}
	for _, ch := range e.Children {
		cp.Children = append(cp.Children, ch.Clone())
	}
	return cp
}

// ParseElement decodes the first XML element of r into a tree. Character
// data is discarded: the API transports values as attributes only.
func ParseElement(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty response body", ErrSchemaMismatch)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid XML: %v", ErrSchemaMismatch, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeTree(dec, start)
		}
	}
}

func decodeTree(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{
		Tag:   start.Name.Local,
		Attrs: make(map[string]string, len(start.Attr)),
	}
	for _, a := range start.Attr {
		el.Attrs[a.Name.Local] = a.Value
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated XML inside <%s>: %v", ErrSchemaMismatch, el.Tag, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeTree(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.EndElement:
			return el, nil
		}
	}
}

// EncodeElement writes the tree back out as XML. Attributes are emitted in
// sorted order so output is deterministic; re-parsing the output yields a
// tree with identical attribute values and child structure.
func EncodeElement(w io.Writer, el *Element) error {
	enc := xml.NewEncoder(w)
	if err := encodeTree(enc, el); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeTree(enc *xml.Encoder, el *Element) error {
	start := xml.StartElement{Name: xml.Name{Local: el.Tag}}
	names := make([]string, 0, len(el.Attrs))
	for name := range el.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: el.Attrs[name]})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, ch := range el.Children {
		if err := encodeTree(enc, ch); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Container is the MediaContainer root element every PMS endpoint responds
// with.
type Container struct {
	*Element
}

// ParseContainer decodes a PMS response body. A body whose root element is
// not a MediaContainer is a schema mismatch.
func ParseContainer(r io.Reader) (*Container, error) {
	el, err := ParseElement(r)
	if err != nil {
		return nil, err
	}
	if el.Tag != "MediaContainer" {
		return nil, fmt.Errorf("%w: expected <MediaContainer> root, got <%s>", ErrSchemaMismatch, el.Tag)
	}
	return &Container{Element: el}, nil
}

// Size returns the number of entries the container reports.
func (c *Container) Size() int {
	n, _ := strconv.Atoi(c.Attrs["size"])
	return n
}

// TotalSize returns the total number of matching entries on the server when
// the response is a page of a larger result, falling back to Size.
func (c *Container) TotalSize() int {
	if v, ok := c.Attrs["totalSize"]; ok {
		n, _ := strconv.Atoi(v)
		return n
	}
	return c.Size()
}

// Offset returns the page offset of a paginated response.
func (c *Container) Offset() int {
	n, _ := strconv.Atoi(c.Attrs["offset"])
	return n
}

// AttrDecoder reads typed values out of an element's attributes. Missing
// attributes yield zero values; present-but-malformed values record a schema
// mismatch carrying the attribute name. The first error wins.
type AttrDecoder struct {
	el  *Element
	err error
}

// DecodeAttrs returns a decoder over el's attributes.
func DecodeAttrs(el *Element) *AttrDecoder {
	return &AttrDecoder{el: el}
}

func (d *AttrDecoder) fail(name, value, kind string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: <%s> attribute %q: %q is not a valid %s: %v",
			ErrSchemaMismatch, d.el.Tag, name, value, kind, err)
	}
}

// Err returns the first malformed-attribute error encountered, if any.
func (d *AttrDecoder) Err() error {
	return d.err
}

func (d *AttrDecoder) String(name string) string {
	return d.el.Attrs[name]
}

func (d *AttrDecoder) Int(name string) int {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(name, v, "integer", err)
		return 0
	}
	return n
}

func (d *AttrDecoder) Int64(name string) int64 {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		d.fail(name, v, "integer", err)
		return 0
	}
	return n
}

func (d *AttrDecoder) Float(name string) float64 {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.fail(name, v, "number", err)
		return 0
	}
	return f
}

// Bool accepts the 0/1 flags the API uses alongside true/false.
func (d *AttrDecoder) Bool(name string) bool {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return false
	}
	switch v {
	case "0":
		return false
	case "1":
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(name, v, "boolean", err)
		return false
	}
	return b
}

// UnixTime decodes an epoch-seconds attribute (addedAt, updatedAt, ...).
func (d *AttrDecoder) UnixTime(name string) time.Time {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		d.fail(name, v, "unix timestamp", err)
		return time.Time{}
	}
	return time.Unix(n, 0)
}

// Date decodes a YYYY-MM-DD attribute (originallyAvailableAt).
func (d *AttrDecoder) Date(name string) time.Time {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		d.fail(name, v, "date", err)
		return time.Time{}
	}
	return t
}

// Timestamp decodes an RFC 3339 attribute (plex.tv createdAt and friends).
func (d *AttrDecoder) Timestamp(name string) time.Time {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		d.fail(name, v, "timestamp", err)
		return time.Time{}
	}
	return t
}

// Millis decodes a duration attribute expressed in milliseconds.
func (d *AttrDecoder) Millis(name string) time.Duration {
	return time.Duration(d.Int64(name)) * time.Millisecond
}

// List decodes a comma-separated attribute into its parts.
func (d *AttrDecoder) List(name string) []string {
	v, ok := d.el.Attrs[name]
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
