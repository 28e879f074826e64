package notecodec

import (
	"errors"
	"strings"
	"testing"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/serializer"
)

func sampleAnnotation() *model.Annotation {
	contents := "see note"
	return &model.Annotation{
		Created:   "2024-03-01T10:00:00Z",
		Author:    "alice",
		Type:      1,
		PageIndex: 2,
		Contents:  &contents,
		Extra:     map[string]any{"id": "anno-1"},
	}
}

func newCodec(t *testing.T, name, tmpl string) *Codec {
	t.Helper()
	ser, err := serializer.Get(name)
	if err != nil {
		t.Fatalf("get serializer: %v", err)
	}
	c, err := New(ser, tmpl)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newCodec(t, "85gj", "")

	note, err := c.Encode(sampleAnnotation())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := c.Decode(note)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded == nil {
		t.Fatal("decode returned nil for an annotation note")
	}
	if decoded.PageIndex != 2 {
		t.Errorf("pageIndex = %d, want 2", decoded.PageIndex)
	}
	if decoded.Contents == nil || *decoded.Contents != "see note" {
		t.Errorf("contents = %v, want %q", decoded.Contents, "see note")
	}
	if decoded.Author != "alice" {
		t.Errorf("author = %q, want %q", decoded.Author, "alice")
	}
	if got := decoded.DomainID(); got != "anno-1" {
		t.Errorf("domain id = %q, want %q", got, "anno-1")
	}
}

func TestEncodeLayout(t *testing.T) {
	c := newCodec(t, "85gj", "{{.Author}} - p. {{.Page}}")

	note, err := c.Encode(sampleAnnotation())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	headerIdx := strings.Index(note, "alice - p. 3")
	beginIdx := strings.Index(note, BeginDelimiter)
	endIdx := strings.Index(note, EndDelimiter)
	if headerIdx == -1 || beginIdx == -1 || endIdx == -1 {
		t.Fatalf("note missing header or delimiters:\n%s", note)
	}
	if headerIdx > beginIdx {
		t.Error("header must come before the BEGIN delimiter")
	}
	if beginIdx > endIdx {
		t.Error("BEGIN delimiter must come before END")
	}

	// The serializer name sits on its own line immediately after BEGIN.
	after := note[beginIdx+len(BeginDelimiter):]
	firstLine := strings.TrimSpace(strings.SplitN(strings.TrimLeft(after, "\n"), "\n", 2)[0])
	if firstLine != "85gj" {
		t.Errorf("serializer line = %q, want %q", firstLine, "85gj")
	}
}

func TestEncodeHeaderTimestampFormat(t *testing.T) {
	c := newCodec(t, "ji2", "{{.Created}}")

	note, err := c.Encode(sampleAnnotation())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(note, "2024.03.01 10:00") {
		t.Errorf("header = %q, want %q prefix", note[:20], "2024.03.01 10:00")
	}

	// Unparseable timestamps pass through verbatim.
	a := sampleAnnotation()
	a.Created = "sometime last week"
	note, err = c.Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(note, "sometime last week") {
		t.Errorf("header = %q, want original timestamp", note[:30])
	}
}

func TestEncodeRejectsDelimiterInHeader(t *testing.T) {
	c := newCodec(t, "85gj", "")

	a := sampleAnnotation()
	a.Author = "eve " + BeginDelimiter
	if _, err := c.Encode(a); !errors.Is(err, ErrReservedDelimiter) {
		t.Errorf("err = %v, want ErrReservedDelimiter", err)
	}
}

func TestEncodeRejectsDelimiterInPayload(t *testing.T) {
	// The indented JSON serializer carries contents verbatim, so a
	// delimiter inside the comment body lands in the payload.
	c := newCodec(t, "ji2", "{{.Author}}")

	a := sampleAnnotation()
	contents := "sneaky " + EndDelimiter
	a.Contents = &contents
	if _, err := c.Encode(a); !errors.Is(err, ErrReservedDelimiter) {
		t.Errorf("err = %v, want ErrReservedDelimiter", err)
	}
}

func TestDecodeHumanNote(t *testing.T) {
	c := newCodec(t, "85gj", "")

	for _, note := range []string{
		"just a plain note someone typed",
		"",
		"mentions " + BeginDelimiter + " only",
		"mentions " + EndDelimiter + " only",
	} {
		a, err := c.Decode(note)
		if err != nil {
			t.Errorf("Decode(%q) err = %v, want nil", note, err)
		}
		if a != nil {
			t.Errorf("Decode(%q) = %+v, want nil", note, a)
		}
	}
}

func TestDecodeEmptySerializerName(t *testing.T) {
	c := newCodec(t, "85gj", "")

	note := "header\n" + BeginDelimiter + "\n\n\n" + EndDelimiter
	a, err := c.Decode(note)
	if err != nil || a != nil {
		t.Errorf("Decode = (%v, %v), want (nil, nil)", a, err)
	}
}

func TestDecodeUnknownSerializer(t *testing.T) {
	c := newCodec(t, "85gj", "")

	note := "header\n" + BeginDelimiter + "\nzz9\npayload\n" + EndDelimiter
	_, err := c.Decode(note)

	var unknownErr *serializer.UnknownSerializerError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want UnknownSerializerError", err)
	}
}

func TestDecodeCorruptPayload(t *testing.T) {
	c := newCodec(t, "85gj", "")

	note := "header\n" + BeginDelimiter + "\nji2\n{not json\n" + EndDelimiter
	if _, err := c.Decode(note); err == nil {
		t.Error("expected error for corrupt payload")
	}
}

func TestDecodePreservesExtensionFields(t *testing.T) {
	c := newCodec(t, "85gj", "")

	a := sampleAnnotation()
	a.Extra["quadPoints"] = []any{float64(10), float64(20)}
	a.Extra["inReplyToId"] = "anno-0"

	note, err := c.Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := c.Decode(note)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.InReplyToID() != "anno-0" {
		t.Errorf("inReplyToId = %q, want %q", decoded.InReplyToID(), "anno-0")
	}
	if _, ok := decoded.Extra["quadPoints"]; !ok {
		t.Error("quadPoints extension field dropped during round trip")
	}
}
