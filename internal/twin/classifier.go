package twin

import (
	"errors"
	"math"
	"time"
)

// Status of a classified sample.
type Status string

const (
	StatusOK    Status = "OK"
	StatusAlert Status = "ALERT"
	// StatusUndefined marks samples whose deviation cannot be expressed as a
	// meaningful percentage (expected power is zero) under the undefined
	// zero-denominator policy. Such samples never alert.
	StatusUndefined Status = "UNDEFINED"
)

// ZeroDenominatorPolicy selects how a zero expected power is handled when
// computing the deviation percentage.
type ZeroDenominatorPolicy string

const (
	// ZeroDenominatorLegacy substitutes 1 for a zero expected power, keeping
	// strict parity with the historical behavior. The resulting percentage
	// equals 100*actual and is numerically meaningless.
	ZeroDenominatorLegacy ZeroDenominatorPolicy = "legacy"
	// ZeroDenominatorUndefined reports such samples as deviation-undefined
	// and excludes them from threshold classification.
	ZeroDenominatorUndefined ZeroDenominatorPolicy = "undefined"
)

// DefaultAlertThresholdPct is the default absolute deviation threshold.
const DefaultAlertThresholdPct = 10.0

// ErrInvalidPolicy indicates an unknown zero-denominator policy.
var ErrInvalidPolicy = errors.New("twin: unknown zero-denominator policy")

// IsValid reports whether the policy is one of the supported values.
func (p ZeroDenominatorPolicy) IsValid() bool {
	switch p {
	case ZeroDenominatorLegacy, ZeroDenominatorUndefined:
		return true
	default:
		return false
	}
}

// DeviationRecord is the classification of one sample.
type DeviationRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	InverterID   string    `json:"inverter_id"`
	ActualW      float64   `json:"actual_w"`
	ExpectedW    float64   `json:"expected_w"`
	DeviationPct float64   `json:"deviation_pct"` // meaningless when Status is UNDEFINED
	Status       Status    `json:"status"`
}

// Classifier computes signed percentage deviation and OK/ALERT status.
type Classifier struct {
	thresholdPct float64
	policy       ZeroDenominatorPolicy
}

// NewClassifier constructs a Classifier. A non-positive threshold would alert
// on every sample, so it is rejected.
func NewClassifier(thresholdPct float64, policy ZeroDenominatorPolicy) (*Classifier, error) {
	if thresholdPct <= 0 {
		return nil, errors.New("twin: alert threshold must be positive")
	}
	if !policy.IsValid() {
		return nil, ErrInvalidPolicy
	}
	return &Classifier{thresholdPct: thresholdPct, policy: policy}, nil
}

// Classify computes the deviation record for one sample. A deviation whose
// magnitude equals the threshold exactly is an ALERT, not OK.
func (c *Classifier) Classify(ts time.Time, inverterID string, actual, expected float64) DeviationRecord {
	record := DeviationRecord{
		Timestamp:  ts,
		InverterID: inverterID,
		ActualW:    actual,
		ExpectedW:  expected,
	}

	if expected == 0 && c.policy == ZeroDenominatorUndefined {
		record.Status = StatusUndefined
		return record
	}

	denom := expected
	if denom == 0 {
		denom = 1
	}
	record.DeviationPct = 100 * (actual - expected) / denom
	if math.Abs(record.DeviationPct) >= c.thresholdPct {
		record.Status = StatusAlert
	} else {
		record.Status = StatusOK
	}
	return record
}

// ThresholdPct returns the configured alert threshold.
func (c *Classifier) ThresholdPct() float64 { return c.thresholdPct }

// Policy returns the configured zero-denominator policy.
func (c *Classifier) Policy() ZeroDenominatorPolicy { return c.policy }
