package io

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		want    string
		wantErr bool
	}{
		{
			name: "empty",
			want: `{}`,
		},
		{
			name:   "keeps field order",
			fields: []Field{{Name: "z", Value: 1}, {Name: "a", Value: "x"}},
			want:   `{"z":1,"a":"x"}`,
		},
		{
			name:   "raw values pass through",
			fields: []Field{{Name: "n", Value: json.RawMessage(`1e3`)}},
			want:   `{"n":1e3}`,
		},
		{
			name:   "escapes names",
			fields: []Field{{Name: `a"b`, Value: true}},
			want:   `{"a\"b":true}`,
		},
		{
			name:    "unencodable value",
			fields:  []Field{{Name: "bad", Value: math.Inf(1)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Object(tt.fields...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.True(t, json.Valid(got))
		})
	}
}
