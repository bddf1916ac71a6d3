package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/goanomaly/pkg/dataset"
	"github.com/hed1ad/goanomaly/pkg/detectors"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := parse(t, "--data", "in.json", "--output", "out.json")
	require.NoError(t, err)

	assert.Equal(t, "in.json", cfg.Data)
	assert.Equal(t, "out.json", cfg.Output)
	assert.Equal(t, detectors.IsolationForest, cfg.Method)
	assert.Equal(t, 0.1, cfg.Contamination)
	assert.Nil(t, cfg.Features)
	assert.Equal(t, dataset.FormatAuto, cfg.Format)
	assert.Equal(t, int64(0), cfg.Seed)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.CSVHeader)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := parse(t,
		"--data", "in.csv",
		"--output", "out/result.json",
		"--method", "local_outlier_factor",
		"--contamination", "0.05",
		"--features", "cpu, mem,,disk",
		"--format", "csv",
		"--seed", "1234",
		"--csv-header=false",
		"-v",
	)
	require.NoError(t, err)

	assert.Equal(t, detectors.LocalOutlierFactor, cfg.Method)
	assert.Equal(t, 0.05, cfg.Contamination)
	assert.Equal(t, []string{"cpu", "mem", "disk"}, cfg.Features)
	assert.Equal(t, dataset.FormatCSV, cfg.Format)
	assert.Equal(t, int64(1234), cfg.Seed)
	assert.False(t, cfg.CSVHeader)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GOANOMALY_DATA", "env.json")
	t.Setenv("GOANOMALY_OUTPUT", "env-out.json")
	t.Setenv("GOANOMALY_METHOD", "one_class_svm")
	t.Setenv("GOANOMALY_CONTAMINATION", "0.2")
	t.Setenv("GOANOMALY_LOG_LEVEL", "warn")

	cfg, err := parse(t, "--output", "flag-out.json")
	require.NoError(t, err)

	assert.Equal(t, "env.json", cfg.Data)
	assert.Equal(t, "flag-out.json", cfg.Output, "flags take precedence over env")
	assert.Equal(t, detectors.OneClassSVM, cfg.Method)
	assert.Equal(t, 0.2, cfg.Contamination)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goanomaly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data: file.json
output: file-out.json
method: local_outlier_factor
contamination: 0.3
seed: 99
`), 0o644))

	cfg, err := parse(t, "--config", path, "--contamination", "0.4")
	require.NoError(t, err)

	assert.Equal(t, "file.json", cfg.Data)
	assert.Equal(t, "file-out.json", cfg.Output)
	assert.Equal(t, detectors.LocalOutlierFactor, cfg.Method)
	assert.Equal(t, 0.4, cfg.Contamination)
	assert.Equal(t, int64(99), cfg.Seed)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		env       map[string]string
		wantField string
	}{
		{
			name:      "missing data",
			args:      []string{"--output", "out.json"},
			wantField: FlagData,
		},
		{
			name:      "missing output",
			args:      []string{"--data", "in.json"},
			wantField: FlagOutput,
		},
		{
			name:      "unknown method",
			args:      []string{"--data", "in.json", "--output", "out.json", "--method", "dbscan"},
			wantField: FlagMethod,
		},
		{
			name:      "contamination above one",
			args:      []string{"--data", "in.json", "--output", "out.json", "--contamination", "1.5"},
			wantField: FlagContamination,
		},
		{
			name:      "negative contamination",
			args:      []string{"--data", "in.json", "--output", "out.json", "--contamination=-0.1"},
			wantField: FlagContamination,
		},
		{
			name:      "unknown format",
			args:      []string{"--data", "in.json", "--output", "out.json", "--format", "parquet"},
			wantField: FlagFormat,
		},
		{
			name:      "garbage contamination from env",
			args:      []string{"--data", "in.json", "--output", "out.json"},
			env:       map[string]string{"GOANOMALY_CONTAMINATION": "lots"},
			wantField: FlagContamination,
		},
		{
			name:      "garbage seed from env",
			args:      []string{"--data", "in.json", "--output", "out.json"},
			env:       map[string]string{"GOANOMALY_SEED": "1.5x"},
			wantField: FlagSeed,
		},
		{
			name:      "unknown log level",
			args:      []string{"--data", "in.json", "--output", "out.json", "--log-level", "bogus"},
			wantField: FlagLogLevel,
		},
		{
			name:      "unknown log level with verbose",
			args:      []string{"--data", "in.json", "--output", "out.json", "--log-level", "loud", "-v"},
			wantField: FlagLogLevel,
		},
		{
			name:      "garbage csv header from env",
			args:      []string{"--data", "in.json", "--output", "out.json"},
			env:       map[string]string{"GOANOMALY_CSV_HEADER": "maybe"},
			wantField: FlagCSVHeader,
		},
		{
			name:      "missing config file",
			args:      []string{"--config", "/nonexistent/goanomaly.yaml"},
			wantField: FlagConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := parse(t, tt.args...)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, IsArgumentError(err))

			argErr := err.(*ArgumentError)
			assert.Equal(t, tt.wantField, argErr.Field)
			assert.Contains(t, err.Error(), "--"+tt.wantField)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Data, cfg.Output = "in.json", "out.json"
	assert.NoError(t, cfg.Validate())

	for _, c := range []float64{0, 1} {
		cfg.Contamination = c
		assert.NoError(t, cfg.Validate())
	}

	cfg.Contamination = math.NaN()
	assert.Error(t, cfg.Validate())

	cfg.Contamination = 0.1
	cfg.LogLevel = "trace"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, FlagLogLevel, err.(*ArgumentError).Field)
}

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: "a", want: []string{"a"}},
		{input: "a,b,c", want: []string{"a", "b", "c"}},
		{input: " a , b ", want: []string{"a", "b"}},
		{input: ",,", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFeatures(tt.input))
		})
	}
}

func TestArgumentErrorMessage(t *testing.T) {
	assert.Equal(t, "--data: required", (&ArgumentError{Field: "data", Message: "required"}).Error())
	assert.Equal(t, "bad", (&ArgumentError{Message: "bad"}).Error())
}
