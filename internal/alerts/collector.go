// Package alerts filters classified records into an ordered alert stream.
package alerts

import "inverter-twin/internal/twin"

// Event is a deviation record whose status is ALERT.
type Event struct {
	twin.DeviationRecord
}

// Collector extracts alert events from classified records.
type Collector struct{}

// NewCollector constructs a Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect filters records with ALERT status, preserving the input's
// chronological order. No deduplication is applied: every alerting sample is
// its own event.
func (c *Collector) Collect(records []twin.DeviationRecord) []Event {
	var events []Event
	for _, record := range records {
		if record.Status == twin.StatusAlert {
			events = append(events, Event{DeviationRecord: record})
		}
	}
	return events
}

// GroupByInverter splits events per inverter id, keeping each group's
// chronological order.
func GroupByInverter(events []Event) map[string][]Event {
	groups := make(map[string][]Event)
	for _, event := range events {
		groups[event.InverterID] = append(groups[event.InverterID], event)
	}
	return groups
}

// CountByInverter returns the number of events per inverter id.
func CountByInverter(events []Event) map[string]int {
	counts := make(map[string]int)
	for _, event := range events {
		counts[event.InverterID]++
	}
	return counts
}
