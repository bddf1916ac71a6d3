// Package report builds and persists detection artifacts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hed1ad/goanomaly/pkg/detectors"
)

// Report is the JSON artifact written for one run.
type Report struct {
	IsAnomaly    []bool    `json:"is_anomaly"`
	AnomalyScore []float64 `json:"anomaly_score"`
	Metadata     Metadata  `json:"metadata"`
}

// Metadata describes how a report was produced.
type Metadata struct {
	Timestamp     time.Time        `json:"timestamp"`
	Method        detectors.Method `json:"method"`
	Contamination float64          `json:"contamination"`
	RecordCount   int              `json:"record_count"`
	AnomalyCount  int              `json:"anomaly_count"`
	RunID         string           `json:"run_id,omitempty"`
	Seed          int64            `json:"seed"`
}

// New assembles a report from a detection result.
func New(res *detectors.Result, meta Metadata) *Report {
	meta.RecordCount = len(res.IsAnomaly)
	meta.AnomalyCount = res.AnomalyCount()
	return &Report{
		IsAnomaly:    res.IsAnomaly,
		AnomalyScore: res.AnomalyScore,
		Metadata:     meta,
	}
}

// Validate checks the structural invariants of a report.
func (r *Report) Validate() error {
	if len(r.IsAnomaly) != len(r.AnomalyScore) {
		return fmt.Errorf("is_anomaly has %d entries, anomaly_score has %d", len(r.IsAnomaly), len(r.AnomalyScore))
	}
	if r.Metadata.RecordCount != len(r.IsAnomaly) {
		return fmt.Errorf("record_count %d does not match %d entries", r.Metadata.RecordCount, len(r.IsAnomaly))
	}
	flagged := (&detectors.Result{IsAnomaly: r.IsAnomaly}).AnomalyCount()
	if r.Metadata.AnomalyCount != flagged {
		return fmt.Errorf("anomaly_count %d does not match %d flagged entries", r.Metadata.AnomalyCount, flagged)
	}
	return nil
}

// WriteError reports a failure to persist a report.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Write saves the report to path. The parent directory is created if
// needed. Data goes to a temporary file in the same directory which is
// renamed over path once complete, so readers never observe a partial file.
// Every failure is a *WriteError.
func Write(path string, r *Report) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := json.NewEncoder(tmp).Encode(r); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if r.IsAnomaly == nil || r.AnomalyScore == nil {
		return nil, errors.New("report is missing is_anomaly or anomaly_score")
	}
	return &r, nil
}
