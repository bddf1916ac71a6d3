// Package simulated implements placeholder detectors for the supported
// methods. They place a fixed number of anomaly flags at random positions and
// draw scores from a method-specific distribution. Record contents are never
// inspected.
package simulated

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/hed1ad/goanomaly/pkg/detectors"
)

// Profile describes how scores are drawn for one method.
type Profile struct {
	// Mean and StdDev of the base normal distribution.
	Mean   float64
	StdDev float64
	// Shift is added to the score of every flagged record.
	Shift float64
}

// ProfileFor returns the score profile of a method.
func ProfileFor(m detectors.Method) (Profile, bool) {
	switch m {
	case detectors.IsolationForest, detectors.OneClassSVM:
		// more negative means more anomalous
		return Profile{Mean: 0, StdDev: 1, Shift: -2}, true
	case detectors.LocalOutlierFactor:
		// higher means more anomalous
		return Profile{Mean: 1, StdDev: 0.3, Shift: 1}, true
	default:
		return Profile{}, false
	}
}

// Detector is a simulated anomaly detector.
type Detector struct {
	method        detectors.Method
	profile       Profile
	contamination float64
	rng           *rand.Rand
	logger        *zap.Logger
}

var _ detectors.Detector = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithContamination sets the fraction of records to flag.
func WithContamination(c float64) Option {
	return func(d *Detector) {
		d.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(d *Detector) {
		d.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand injects a random source. It takes precedence over WithSeed when
// given later.
func WithRand(rng *rand.Rand) Option {
	return func(d *Detector) {
		d.rng = rng
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// New creates a simulated detector for the given method.
func New(method detectors.Method, opts ...Option) (*Detector, error) {
	profile, ok := ProfileFor(method)
	if !ok {
		return nil, fmt.Errorf("simulated: unsupported method %q", method)
	}

	cfg := detectors.DefaultConfig()
	d := &Detector{
		method:        method,
		profile:       profile,
		contamination: cfg.Contamination,
		rng:           rand.New(rand.NewSource(cfg.RandomSeed)),
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := validateContamination(d.contamination); err != nil {
		return nil, err
	}

	return d, nil
}

// Method implements detectors.Detector.
func (d *Detector) Method() detectors.Method {
	return d.method
}

// Contamination returns the configured contamination.
func (d *Detector) Contamination() float64 {
	return d.contamination
}

// Detect flags floor(contamination*N) records chosen uniformly at random
// and draws one score per record.
func (d *Detector) Detect(records []json.RawMessage) (*detectors.Result, error) {
	d.logger.Info("using " + d.method.Describe() + " for anomaly detection")

	n := len(records)
	k, err := anomalyCount(d.contamination, n)
	if err != nil {
		return nil, err
	}

	// Indices are drawn before scores.
	indices := d.rng.Perm(n)[:k]
	isAnomaly := make([]bool, n)
	for _, idx := range indices {
		isAnomaly[idx] = true
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = d.profile.Mean + d.profile.StdDev*d.rng.NormFloat64()
	}
	for _, idx := range indices {
		scores[idx] += d.profile.Shift
	}

	d.logger.Debug("flagged records",
		zap.Int("record_count", n),
		zap.Int("anomaly_count", k))

	return &detectors.Result{
		IsAnomaly:    isAnomaly,
		AnomalyScore: scores,
	}, nil
}

// anomalyCount returns floor(contamination*n).
func anomalyCount(contamination float64, n int) (int, error) {
	if err := validateContamination(contamination); err != nil {
		return 0, err
	}
	k := int(math.Floor(contamination * float64(n)))
	if k > n {
		return 0, fmt.Errorf("simulated: cannot select %d of %d records", k, n)
	}
	return k, nil
}

var errContamination = errors.New("contamination must be within [0, 1]")

func validateContamination(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("simulated: %w, got %v", errContamination, c)
	}
	return nil
}
