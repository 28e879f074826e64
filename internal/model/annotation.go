package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Annotation is one page-scoped annotation (highlight, note, reply...)
// attached to a Paperless document. The fixed fields below are the ones
// this system interprets; everything else the viewer sends is carried in
// Extra so that annotation shapes can evolve without data loss.
type Annotation struct {
	Created   string  // ISO-8601 when the viewer behaves, kept verbatim otherwise
	Author    string
	Type      int     // annotation kind discriminator, opaque here
	PageIndex int     // zero-based
	DBID      *int64  // storage-assigned id (note id or row id), nil until persisted
	Contents  *string
	Extra     map[string]any // unrecognized fields, preserved across the storage round trip
}

// reserved JSON keys mapped onto fixed fields.
const (
	keyCreated   = "created"
	keyAuthor    = "author"
	keyType      = "type"
	keyPageIndex = "pageIndex"
	keyDBID      = "db_id"
	keyContents  = "contents"
)

// Map returns the annotation as a flat map, extension fields included.
// This is the form handed to serializers.
func (a *Annotation) Map() map[string]any {
	m := make(map[string]any, len(a.Extra)+6)
	for k, v := range a.Extra {
		m[k] = v
	}
	m[keyCreated] = a.Created
	m[keyAuthor] = a.Author
	m[keyType] = a.Type
	m[keyPageIndex] = a.PageIndex
	if a.DBID != nil {
		m[keyDBID] = *a.DBID
	} else {
		m[keyDBID] = nil
	}
	if a.Contents != nil {
		m[keyContents] = *a.Contents
	} else {
		m[keyContents] = nil
	}
	return m
}

// AnnotationFromMap builds an Annotation from a decoded field map, keeping
// unrecognized keys in Extra.
func AnnotationFromMap(m map[string]any) (*Annotation, error) {
	a := &Annotation{}
	for k, v := range m {
		switch k {
		case keyCreated:
			s, ok := v.(string)
			if !ok && v != nil {
				return nil, fmt.Errorf("annotation field %q: expected string, got %T", k, v)
			}
			a.Created = s
		case keyAuthor:
			if s, ok := v.(string); ok {
				a.Author = s
			}
		case keyType:
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("annotation field %q: %w", k, err)
			}
			a.Type = n
		case keyPageIndex:
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("annotation field %q: %w", k, err)
			}
			a.PageIndex = n
		case keyDBID:
			if v == nil {
				continue
			}
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("annotation field %q: %w", k, err)
			}
			id := int64(n)
			a.DBID = &id
		case keyContents:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("annotation field %q: expected string, got %T", k, v)
			}
			a.Contents = &s
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[k] = v
		}
	}
	return a, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func (a *Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Map())
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := AnnotationFromMap(m)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

// DomainID is the viewer-assigned annotation identity, distinct from DBID.
// Replies point at it via the inReplyToId extension field.
func (a *Annotation) DomainID() string {
	return extraString(a.Extra, "id")
}

// InReplyToID returns the domain id of the annotation this one replies to,
// or "" if it is not a reply.
func (a *Annotation) InReplyToID() string {
	return extraString(a.Extra, "inReplyToId")
}

// Text returns the optional "text" extension field used in note headers.
func (a *Annotation) Text() string {
	return extraString(a.Extra, "text")
}

func extraString(extra map[string]any, key string) string {
	v, ok := extra[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Clone returns a deep-enough copy for the fixed fields and a fresh Extra
// map (extension values themselves are shared).
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.DBID != nil {
		id := *a.DBID
		c.DBID = &id
	}
	if a.Contents != nil {
		s := *a.Contents
		c.Contents = &s
	}
	if a.Extra != nil {
		c.Extra = make(map[string]any, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
