// Package json reads datasets stored as a top-level JSON array.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goio "github.com/hed1ad/goanomaly/pkg/io"
)

// Reader reads the elements of a JSON array as opaque records.
type Reader struct {
	dec *json.Decoder
}

var _ goio.Reader = (*Reader)(nil)

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Read returns every array element in order.
func (r *Reader) Read() ([]goio.Record, error) {
	tok, err := r.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty input")
	}
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected a top-level array, found %v", describe(tok))
	}

	records := []goio.Record{}
	for r.dec.More() {
		var raw json.RawMessage
		if err := r.dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, goio.Record(raw))
	}

	// closing bracket
	if _, err := r.dec.Token(); err != nil {
		return nil, err
	}
	if _, err := r.dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("unexpected data after top-level array")
	}

	return records, nil
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return "an object"
		}
		return string(v)
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
