// Package io provides the record model and reader contracts for dataset
// ingestion.
package io

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a single dataset element. It is kept as raw JSON and never
// decoded into a schema.
type Record = json.RawMessage

// Reader is the interface for reading records from a source.
type Reader interface {
	// Read returns the complete dataset in source order.
	Read() ([]Record, error)
}

// FeatureNamer is implemented by readers whose records carry named fields.
type FeatureNamer interface {
	// FeatureNames returns the field names of produced records.
	FeatureNames() []string
}

// Field is one named value of an object record.
type Field struct {
	Name  string
	Value any
}

// Object encodes fields as a JSON object, keeping their order.
func Object(fields ...Field) (Record, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return Record(buf.Bytes()), nil
}
