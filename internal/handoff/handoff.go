// Package handoff serialises the canonical barcode list at session end and
// reads it back for the review surface. Decoding is strict: any malformed
// record fails the whole document.
package handoff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/matrixscan/internal/results"
)

// ErrMalformedRecord marks a document that is not a valid barcode list.
var ErrMalformedRecord = errors.New("handoff: malformed record")

// RecordError locates a malformed record. Index is -1 for document-level problems.
type RecordError struct {
	Index  int
	Reason string
}

func (e *RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedRecord, e.Reason)
	}
	return fmt.Sprintf("%s %d: %s", ErrMalformedRecord, e.Index, e.Reason)
}

// Unwrap allows errors.Is(err, ErrMalformedRecord).
func (e *RecordError) Unwrap() error { return ErrMalformedRecord }

func malformed(index int, format string, args ...any) error {
	return &RecordError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

// Format is a hand-off encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("handoff: unknown format %q", s)
}

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// record mirrors one list entry with pointer fields so missing and null
// values can be told apart from empty strings.
type record struct {
	Type  *string `json:"type"  yaml:"type"`
	Value *string `json:"value" yaml:"value"`
}

// Encode writes list as a flat sequence of {type, value} records.
func Encode(w io.Writer, list []results.Barcode, f Format) error {
	if list == nil {
		list = []results.Barcode{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("handoff: encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("handoff: unknown format %q", f)
}

// Decode reads a list written by Encode. Field names must match exactly.
// Unknown fields, missing or null fields, non-string values, an empty type,
// duplicate entries and trailing data or documents are all rejected with
// ErrMalformedRecord.
func Decode(r io.Reader, f Format) ([]results.Barcode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("handoff: read: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed(-1, "empty document")
	}

	var recs []record
	switch f {
	case FormatJSON:
		recs, err = decodeJSON(data)
	case FormatYAML:
		recs, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("handoff: unknown format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return validate(recs)
}

func decodeJSON(data []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed(-1, "not a JSON array: %v", err)
	}
	if raw == nil {
		return nil, malformed(-1, "null document")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed(-1, "trailing data after list")
	}

	recs := make([]record, len(raw))
	for i, msg := range raw {
		// encoding/json matches field names case-insensitively; keys must
		// be spelled exactly.
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(msg, &fields); err != nil {
			return nil, malformed(i, "%v", err)
		}
		if fields == nil {
			return nil, malformed(i, "null record")
		}
		for key := range fields {
			if key != "type" && key != "value" {
				return nil, malformed(i, "unknown field %q", key)
			}
		}
		rd := json.NewDecoder(bytes.NewReader(msg))
		rd.DisallowUnknownFields()
		if err := rd.Decode(&recs[i]); err != nil {
			return nil, malformed(i, "%v", err)
		}
	}
	return recs, nil
}

func decodeYAML(data []byte) ([]record, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		return nil, malformed(-1, "invalid YAML: %v", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, malformed(-1, "trailing data after list")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.SequenceNode {
		return nil, malformed(-1, "not a YAML sequence")
	}
	items := root.Content[0].Content
	recs := make([]record, len(items))
	for i, item := range items {
		if item.Kind != yaml.MappingNode {
			return nil, malformed(i, "not a mapping")
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			key, val := item.Content[j], item.Content[j+1]
			if key.Value != "type" && key.Value != "value" {
				return nil, malformed(i, "unknown field %q", key.Value)
			}
			if val.Kind != yaml.ScalarNode || val.ShortTag() != "!!str" {
				return nil, malformed(i, "field %q is not a string", key.Value)
			}
		}
		if err := item.Decode(&recs[i]); err != nil {
			return nil, malformed(i, "%v", err)
		}
	}
	return recs, nil
}

func validate(recs []record) ([]results.Barcode, error) {
	out := make([]results.Barcode, 0, len(recs))
	seen := make(map[results.Barcode]struct{}, len(recs))
	for i, r := range recs {
		switch {
		case r.Type == nil:
			return nil, malformed(i, "missing type")
		case r.Value == nil:
			return nil, malformed(i, "missing value")
		case *r.Type == "":
			return nil, malformed(i, "empty type")
		}
		b := results.Barcode{Type: *r.Type, Value: *r.Value}
		if _, dup := seen[b]; dup {
			return nil, malformed(i, "duplicate entry %s/%q", b.Type, b.Value)
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}

// WriteFile encodes list to path in the format implied by its extension.
func WriteFile(path string, list []results.Barcode) error {
	var buf bytes.Buffer
	if err := Encode(&buf, list, FormatForPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("handoff: write %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the list stored at path.
func ReadFile(path string) ([]results.Barcode, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("handoff: open: %w", err)
	}
	defer func() { _ = f.Close() }()
	list, err := Decode(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}
