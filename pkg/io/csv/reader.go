// Package csv provides CSV reading for tabular data.
package csv

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	goio "github.com/hed1ad/goanomaly/pkg/io"
)

// Reader reads data from CSV input. With a header each row becomes a JSON
// object keyed by column name; without one each row becomes a JSON array.
type Reader struct {
	reader    *csv.Reader
	hasHeader bool
	headers   []string
}

var (
	_ goio.Reader       = (*Reader)(nil)
	_ goio.FeatureNamer = (*Reader)(nil)
)

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// NewReader creates a new CSV reader over src.
func NewReader(src io.Reader, opts ...Option) (*Reader, error) {
	r := &Reader{
		reader:    csv.NewReader(src),
		hasHeader: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		if err != nil {
			return nil, err
		}
		r.headers = headers
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// FeatureNames implements io.FeatureNamer.
func (r *Reader) FeatureNames() []string {
	return r.headers
}

// Read returns every row as a record.
func (r *Reader) Read() ([]goio.Record, error) {
	records := []goio.Record{}

	for {
		row, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := r.toRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *Reader) toRecord(row []string) (goio.Record, error) {
	if !r.hasHeader {
		values := make([]any, len(row))
		for i, cell := range row {
			values[i] = parseCell(cell)
		}
		data, err := json.Marshal(values)
		return goio.Record(data), err
	}

	fields := make([]goio.Field, len(row))
	for i, cell := range row {
		fields[i] = goio.Field{Name: r.headers[i], Value: parseCell(cell)}
	}
	return goio.Object(fields...)
}

// parseCell keeps numeric cells as JSON numbers and everything else as
// strings.
func parseCell(cell string) any {
	if _, err := strconv.ParseFloat(cell, 64); err == nil && json.Valid([]byte(cell)) {
		return json.RawMessage(cell)
	}
	return cell
}
