// Package detectors defines the anomaly detection methods and the result
// shape every detector produces.
package detectors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Method names an anomaly detection strategy.
type Method string

const (
	IsolationForest    Method = "isolation_forest"
	OneClassSVM        Method = "one_class_svm"
	LocalOutlierFactor Method = "local_outlier_factor"
)

// DefaultMethod is used when no method is requested.
const DefaultMethod = IsolationForest

// Methods returns every supported method in a stable order.
func Methods() []Method {
	return []Method{IsolationForest, OneClassSVM, LocalOutlierFactor}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q (want one of %s)", s, methodList())
}

// Describe returns the human-readable name of the method.
func (m Method) Describe() string {
	switch m {
	case IsolationForest:
		return "Isolation Forest"
	case OneClassSVM:
		return "One-Class SVM"
	case LocalOutlierFactor:
		return "Local Outlier Factor"
	default:
		return string(m)
	}
}

func methodList() string {
	names := make([]string, 0, len(Methods()))
	for _, m := range Methods() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// Detector flags anomalous records in a dataset.
type Detector interface {
	// Method reports which strategy the detector implements.
	Method() Method

	// Detect returns one flag and one score per record, in record order.
	Detect(records []json.RawMessage) (*Result, error)
}

// Result holds per-record detection output.
type Result struct {
	// IsAnomaly has one entry per input record.
	IsAnomaly []bool
	// AnomalyScore has one entry per input record. Its direction is
	// method dependent.
	AnomalyScore []float64
}

// AnomalyCount returns the number of flagged records.
func (r *Result) AnomalyCount() int {
	n := 0
	for _, a := range r.IsAnomaly {
		if a {
			n++
		}
	}
	return n
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the fraction of records flagged as anomalous.
	Contamination float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.1,
		RandomSeed:    42,
	}
}
