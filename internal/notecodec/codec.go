// Package notecodec embeds serialized annotations inside Paperless note
// text. A note carries a human-readable header followed by a delimited
// machine section naming the serializer that wrote the payload, so notes
// authored by people and notes holding annotations can share the same
// field.
package notecodec

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/serializer"
)

// Delimiters around the machine section. These exact strings are reserved:
// content that contains them cannot be encoded.
const (
	BeginDelimiter = "------------ DATA BEGIN ------------"
	EndDelimiter   = "------------ DATA END ------------"
)

// ErrReservedDelimiter is returned when a rendered header or serialized
// payload contains one of the delimiter literals. Encoding aborts before
// anything is written; truncating silently would corrupt the record.
var ErrReservedDelimiter = errors.New("content contains a reserved data delimiter")

//go:embed default_header.tmpl
var defaultHeaderTemplate string

// HeaderContext is the data handed to the header template.
type HeaderContext struct {
	Author    string
	Page      int // 1-based, for people
	PageIndex int // 0-based, as stored
	Created   string
	Comment   string
	Text      string
	Type      int
	Annotation *model.Annotation
}

// Codec encodes annotations into note text and back. The serializer is the
// default for new writes only; decoding honors whatever serializer each
// note declares.
type Codec struct {
	serializer serializer.Serializer
	header     *template.Template
}

// New builds a Codec. An empty headerTemplate selects the embedded default.
func New(defaultSerializer serializer.Serializer, headerTemplate string) (*Codec, error) {
	if headerTemplate == "" {
		headerTemplate = defaultHeaderTemplate
	}
	tmpl, err := template.New("note_header").Parse(headerTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse header template: %w", err)
	}
	return &Codec{serializer: defaultSerializer, header: tmpl}, nil
}

// Encode renders the note text for an annotation: header, BEGIN delimiter,
// serializer name, payload, END delimiter.
func (c *Codec) Encode(a *model.Annotation) (string, error) {
	serialized, err := c.serializer.Serialize(a.Map())
	if err != nil {
		return "", err
	}
	serialized += "\n"

	header, err := c.renderHeader(a)
	if err != nil {
		return "", err
	}

	if strings.Contains(header, BeginDelimiter) || strings.Contains(header, EndDelimiter) {
		return "", fmt.Errorf("annotation header: %w", ErrReservedDelimiter)
	}
	if strings.Contains(serialized, BeginDelimiter) || strings.Contains(serialized, EndDelimiter) {
		return "", fmt.Errorf("serialized annotation: %w", ErrReservedDelimiter)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n" + BeginDelimiter + "\n")
	b.WriteString(c.serializer.Name() + "\n")
	b.WriteString(serialized)
	b.WriteString(EndDelimiter)
	return b.String(), nil
}

// Decode recovers an annotation from note text.
//
// A note without both delimiters is not an annotation record at all and
// decodes to (nil, nil): the note field is shared with arbitrary human
// text, so skipping those silently is normal operation. A note that does
// carry the delimiters but names an unknown serializer or holds an
// undecodable payload is a real corruption signal and returns an error.
func (c *Codec) Decode(note string) (*model.Annotation, error) {
	beginIdx := strings.Index(note, BeginDelimiter)
	endIdx := strings.Index(note, EndDelimiter)
	if beginIdx == -1 || endIdx == -1 || endIdx < beginIdx+len(BeginDelimiter) {
		return nil, nil
	}

	dataArea := strings.TrimSpace(note[beginIdx+len(BeginDelimiter) : endIdx])
	name, payload, _ := strings.Cut(dataArea, "\n")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	ser, err := serializer.Get(name)
	if err != nil {
		return nil, err
	}
	fields, err := ser.Deserialize(payload)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, nil
	}
	return model.AnnotationFromMap(fields)
}

func (c *Codec) renderHeader(a *model.Annotation) (string, error) {
	comment := ""
	if a.Contents != nil {
		comment = *a.Contents
	}
	ctx := HeaderContext{
		Author:     a.Author,
		Page:       a.PageIndex + 1,
		PageIndex:  a.PageIndex,
		Created:    formatCreated(a.Created),
		Comment:    comment,
		Text:       a.Text(),
		Type:       a.Type,
		Annotation: a,
	}

	var b strings.Builder
	if err := c.header.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("render header template: %w", err)
	}
	rendered := strings.ReplaceAll(b.String(), "\n\n", "\n")
	return strings.TrimRight(rendered, "\n"), nil
}

// formatCreated renders an ISO-8601 timestamp as "YYYY.MM.DD HH:MM" for
// the header. Unparseable values pass through verbatim.
func formatCreated(created string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, created); err == nil {
			return t.Format("2006.01.02 15:04")
		}
	}
	return created
}
