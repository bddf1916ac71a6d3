// Package yaml reads datasets stored as a top-level YAML sequence.
package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	goio "github.com/hed1ad/goanomaly/pkg/io"
)

// Reader converts each element of a YAML sequence to a JSON record.
type Reader struct {
	dec *yaml.Decoder
}

var _ goio.Reader = (*Reader)(nil)

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: yaml.NewDecoder(r)}
}

// Read returns every sequence element in order. Only the first document of
// a multi-document stream is read.
func (r *Reader) Read() ([]goio.Record, error) {
	var doc yaml.Node
	if err := r.dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty input")
		}
		return nil, err
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a top-level sequence at line %d", root.Line)
	}

	records := make([]goio.Record, 0, len(root.Content))
	for i, item := range root.Content {
		var v any
		if err := item.Decode(&v); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		data, err := json.Marshal(normalize(v))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, goio.Record(data))
	}
	return records, nil
}

// normalize rewrites maps with non-string keys so they can be encoded as
// JSON objects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
