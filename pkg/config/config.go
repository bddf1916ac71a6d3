// Package config resolves run options from flags, environment variables and
// an optional config file.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hed1ad/goanomaly/pkg/dataset"
	"github.com/hed1ad/goanomaly/pkg/detectors"
)

// EnvPrefix prefixes environment variables, e.g. GOANOMALY_DATA.
const EnvPrefix = "GOANOMALY"

// Flag names.
const (
	FlagData          = "data"
	FlagMethod        = "method"
	FlagContamination = "contamination"
	FlagFeatures      = "features"
	FlagOutput        = "output"
	FlagFormat        = "format"
	FlagCSVHeader     = "csv-header"
	FlagSeed          = "seed"
	FlagConfig        = "config"
	FlagLogLevel      = "log-level"
	FlagVerbose       = "verbose"
)

// Config holds the options of one detection run.
type Config struct {
	Data          string
	Method        detectors.Method
	Contamination float64
	// Features is parsed and reported but does not affect detection.
	Features []string
	Output   string
	Format   dataset.Format
	// CSVHeader reports whether the first CSV row names the columns.
	CSVHeader bool
	// Seed of 0 means derive one at run time.
	Seed     int64
	LogLevel string
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		Method:        detectors.DefaultMethod,
		Contamination: 0.1,
		Format:        dataset.FormatAuto,
		CSVHeader:     true,
		LogLevel:      "info",
	}
}

// ArgumentError reports an invalid or missing option.
type ArgumentError struct {
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("--%s: %s", e.Field, e.Message)
}

// IsArgumentError reports whether err is or wraps an *ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// RegisterFlags adds every option to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String(FlagData, "", "Path to input data file (JSON array; YAML, CSV and PCAP also accepted)")
	fs.String(FlagMethod, string(def.Method), "Anomaly detection method: "+methodNames())
	fs.Float64(FlagContamination, def.Contamination, "Expected proportion of outliers in the data, within [0, 1]")
	fs.String(FlagFeatures, "", "Comma-separated list of feature columns")
	fs.String(FlagOutput, "", "Output file path")
	fs.String(FlagFormat, string(def.Format), "Input format: auto, json, yaml, csv, pcap or pcapng")
	fs.Bool(FlagCSVHeader, def.CSVHeader, "Treat the first CSV row as column names; false reads every row as data")
	fs.Int64(FlagSeed, 0, "Random seed; 0 picks one at run time")
	fs.String(FlagConfig, "", "Optional config file (JSON, YAML or TOML)")
	fs.String(FlagLogLevel, def.LogLevel, "Log level: debug, info, warn or error")
	fs.BoolP(FlagVerbose, "v", false, "Shorthand for --log-level=debug")
}

// Load resolves a Config from parsed flags. Flags override environment
// variables, which override the config file, which overrides defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ArgumentError{Field: FlagConfig, Message: err.Error()}
		}
	}

	cfg := Default()
	cfg.Data = v.GetString(FlagData)
	cfg.Output = v.GetString(FlagOutput)
	cfg.Features = ParseFeatures(v.GetString(FlagFeatures))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(v.GetString(FlagLogLevel)))
	if !validLogLevel(cfg.LogLevel) {
		return nil, &ArgumentError{
			Field:   FlagLogLevel,
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn or error)", cfg.LogLevel),
		}
	}
	if v.GetBool(FlagVerbose) {
		cfg.LogLevel = "debug"
	}

	method, err := detectors.ParseMethod(v.GetString(FlagMethod))
	if err != nil {
		return nil, &ArgumentError{Field: FlagMethod, Message: err.Error()}
	}
	cfg.Method = method

	format, err := dataset.ParseFormat(v.GetString(FlagFormat))
	if err != nil {
		return nil, &ArgumentError{Field: FlagFormat, Message: err.Error()}
	}
	cfg.Format = format

	csvHeader, err := boolValue(v, FlagCSVHeader)
	if err != nil {
		return nil, &ArgumentError{Field: FlagCSVHeader, Message: err.Error()}
	}
	cfg.CSVHeader = csvHeader

	contamination, err := floatValue(v, FlagContamination)
	if err != nil {
		return nil, &ArgumentError{Field: FlagContamination, Message: err.Error()}
	}
	cfg.Contamination = contamination

	seed, err := intValue(v, FlagSeed)
	if err != nil {
		return nil, &ArgumentError{Field: FlagSeed, Message: err.Error()}
	}
	cfg.Seed = seed

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required options and value ranges.
func (c *Config) Validate() error {
	if c.Data == "" {
		return &ArgumentError{Field: FlagData, Message: "required"}
	}
	if c.Output == "" {
		return &ArgumentError{Field: FlagOutput, Message: "required"}
	}
	if _, err := detectors.ParseMethod(string(c.Method)); err != nil {
		return &ArgumentError{Field: FlagMethod, Message: err.Error()}
	}
	if math.IsNaN(c.Contamination) || c.Contamination < 0 || c.Contamination > 1 {
		return &ArgumentError{
			Field:   FlagContamination,
			Message: fmt.Sprintf("must be within [0, 1], got %v", c.Contamination),
		}
	}
	if !validLogLevel(c.LogLevel) {
		return &ArgumentError{
			Field:   FlagLogLevel,
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn or error)", c.LogLevel),
		}
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

// ParseFeatures splits a comma-separated list, trimming blanks and dropping
// empty names. It returns nil for an empty list.
func ParseFeatures(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// floatValue reads a float strictly; viper's GetFloat64 maps garbage to 0.
func floatValue(v *viper.Viper, key string) (float64, error) {
	switch raw := v.Get(key).(type) {
	case float64:
		return raw, nil
	case int:
		return float64(raw), nil
	case int64:
		return float64(raw), nil
	default:
		s := strings.TrimSpace(fmt.Sprint(raw))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", s)
		}
		return f, nil
	}
}

func boolValue(v *viper.Viper, key string) (bool, error) {
	if raw, ok := v.Get(key).(bool); ok {
		return raw, nil
	}
	s := strings.TrimSpace(fmt.Sprint(v.Get(key)))
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return b, nil
}

func intValue(v *viper.Viper, key string) (int64, error) {
	switch raw := v.Get(key).(type) {
	case int64:
		return raw, nil
	case int:
		return int64(raw), nil
	case float64:
		if raw != math.Trunc(raw) {
			return 0, fmt.Errorf("invalid integer %v", raw)
		}
		return int64(raw), nil
	default:
		s := strings.TrimSpace(fmt.Sprint(raw))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	}
}

func methodNames() string {
	names := make([]string, 0, len(detectors.Methods()))
	for _, m := range detectors.Methods() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}
