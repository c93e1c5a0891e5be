// Package notify publishes alert summaries to external sinks. Sinks are
// optional; failures are reported to the caller for logging and never abort
// an analysis.
package notify

import (
	"context"
	"time"

	"inverter-twin/internal/alerts"
)

// Summary is the notification payload for one analysis invocation.
type Summary struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	PlantName        string         `json:"plant_name,omitempty"`
	TotalAlerts      int            `json:"total_alerts"`
	AlertsByInverter map[string]int `json:"alerts_by_inverter"`
	Events           []alerts.Event `json:"events"`
}

// Notifier publishes an alert summary.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// MultiNotifier fans a summary out to several sinks, returning the first
// error after all sinks have been attempted.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the summary to all sinks.
func (m *MultiNotifier) Notify(ctx context.Context, summary Summary) error {
	if m == nil {
		return nil
	}
	var firstErr error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
