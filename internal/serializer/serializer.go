// Package serializer holds the named codecs used to turn annotation field
// maps into strings and back. Every stored record self-declares the codec
// that wrote it, so codecs registered here must stay readable forever;
// only the default used for new writes is a configuration choice.
package serializer

import (
	"bytes"
	"compress/gzip"
	"encoding/ascii85"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Serializer is a stateless bidirectional codec registered under a short
// symbolic name.
type Serializer interface {
	Name() string
	Serialize(fields map[string]any) (string, error)
	Deserialize(s string) (map[string]any, error)
}

// registry is deliberately a static table rather than any kind of dynamic
// discovery: the set of supported codecs is auditable at compile time.
var registry = map[string]Serializer{
	JSONIndent{}.Name():   JSONIndent{},
	Base85Gzip{}.Name():   Base85Gzip{},
}

// UnknownSerializerError is returned when a stored record names a codec
// this build does not know. It signals corruption or version skew, never
// a benign condition.
type UnknownSerializerError struct {
	Name  string
	Known []string
}

func (e *UnknownSerializerError) Error() string {
	return fmt.Sprintf("serializer %q not found, known serializers: %s",
		e.Name, strings.Join(e.Known, ", "))
}

// Get looks up a serializer by name.
func Get(name string) (Serializer, error) {
	s, ok := registry[name]
	if !ok {
		return nil, &UnknownSerializerError{Name: name, Known: Names()}
	}
	return s, nil
}

// Names lists all registered serializer names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSONIndent writes human-inspectable indented JSON. Larger than the
// compressed codec, useful when notes are read by people.
type JSONIndent struct{}

func (JSONIndent) Name() string { return "ji2" }

func (JSONIndent) Serialize(fields map[string]any) (string, error) {
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal annotation: %w", err)
	}
	return string(data), nil
}

func (JSONIndent) Deserialize(s string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal annotation: %w", err)
	}
	return fields, nil
}

// Base85Gzip writes ascii85-encoded gzipped JSON. The default for new
// records: Paperless note fields are length-limited and the encoded form
// stays binary-safe inside free text.
type Base85Gzip struct{}

func (Base85Gzip) Name() string { return "85gj" }

func (Base85Gzip) Serialize(fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal annotation: %w", err)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("compress annotation: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress annotation: %w", err)
	}

	var encoded strings.Builder
	enc := ascii85.NewEncoder(&encoded)
	if _, err := enc.Write(compressed.Bytes()); err != nil {
		return "", fmt.Errorf("encode annotation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode annotation: %w", err)
	}
	return encoded.String(), nil
}

func (Base85Gzip) Deserialize(s string) (map[string]any, error) {
	compressed, err := io.ReadAll(ascii85.NewDecoder(strings.NewReader(s)))
	if err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress annotation: %w", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress annotation: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("decompress annotation: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal annotation: %w", err)
	}
	return fields, nil
}
