// Package dataset loads input records from disk.
package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	goio "github.com/hed1ad/goanomaly/pkg/io"
	"github.com/hed1ad/goanomaly/pkg/io/csv"
	"github.com/hed1ad/goanomaly/pkg/io/json"
	"github.com/hed1ad/goanomaly/pkg/io/pcap"
	"github.com/hed1ad/goanomaly/pkg/io/yaml"
)

// Format identifies the on-disk encoding of a dataset.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatCSV    Format = "csv"
	FormatPCAP   Format = "pcap"
	FormatPCAPNG Format = "pcapng"
)

// Formats returns the accepted format names.
func Formats() []Format {
	return []Format{FormatAuto, FormatJSON, FormatYAML, FormatCSV, FormatPCAP, FormatPCAPNG}
}

// ParseFormat validates a format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatAuto, nil
	}
	for _, f := range Formats() {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// DetectFormat picks a format from the file name. A trailing .gz is ignored.
// Unknown extensions are read as JSON.
func DetectFormat(path string) Format {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	case ".pcap", ".cap":
		return FormatPCAP
	case ".pcapng":
		return FormatPCAPNG
	default:
		return FormatJSON
	}
}

// Dataset is an ordered sequence of opaque records.
type Dataset struct {
	Path    string
	Format  Format
	Records []goio.Record
	// Fields lists record field names when the format defines them.
	Fields []string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// LoadError reports a failure to read or parse the dataset.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader reads datasets.
type Loader struct {
	format  Format
	csvOpts []csv.Option
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFormat forces a format instead of detecting it from the file name.
func WithFormat(f Format) Option {
	return func(l *Loader) {
		l.format = f
	}
}

// WithCSVOptions passes options to the CSV reader.
func WithCSVOptions(opts ...csv.Option) Option {
	return func(l *Loader) {
		l.csvOpts = append(l.csvOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		format: FormatAuto,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads all records from path. Every failure is a *LoadError.
func (l *Loader) Load(path string) (*Dataset, error) {
	format := l.format
	if format == FormatAuto || format == "" {
		format = DetectFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	src, closeSrc, err := decompress(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer closeSrc()

	reader, err := l.newReader(format, src)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s: %w", format, err)}
	}

	records, err := reader.Read()
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s: %w", format, err)}
	}

	ds := &Dataset{
		Path:    path,
		Format:  format,
		Records: records,
	}
	if namer, ok := reader.(goio.FeatureNamer); ok {
		ds.Fields = namer.FeatureNames()
	}

	l.logger.Info(fmt.Sprintf("loaded data with %d records", ds.Len()),
		zap.String("path", path),
		zap.String("format", string(format)))

	return ds, nil
}

// Load reads path with a default Loader.
func Load(path string) (*Dataset, error) {
	return NewLoader().Load(path)
}

var gzipMagic = []byte{0x1f, 0x8b}

// decompress transparently unwraps gzip streams.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if !bytes.Equal(head, gzipMagic) {
		return br, func() {}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("gzip: %w", err)
	}
	return zr, func() { zr.Close() }, nil
}

func (l *Loader) newReader(format Format, r io.Reader) (goio.Reader, error) {
	switch format {
	case FormatJSON:
		return json.NewReader(r), nil
	case FormatYAML:
		return yaml.NewReader(r), nil
	case FormatCSV:
		return csv.NewReader(r, l.csvOpts...)
	case FormatPCAP:
		return pcap.NewReader(r)
	case FormatPCAPNG:
		return pcap.NewNgReader(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
