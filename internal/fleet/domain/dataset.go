package fleet

import (
	"time"

	telemetry "inverter-twin/internal/telemetry/domain"
)

// Record is one inverter-tagged sample inside a fleet dataset.
type Record struct {
	InverterID string
	Sample     telemetry.TelemetrySample
}

// Dataset is the time-ordered union of several inverters' samples. Records
// with equal timestamps are ordered by inverter id so the dataset is
// deterministic regardless of upload order.
type Dataset struct {
	records []Record
}

// NewDataset wraps already ordered records.
func NewDataset(records []Record) Dataset {
	owned := make([]Record, len(records))
	copy(owned, records)
	return Dataset{records: owned}
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.records) }

// Record returns the i-th record.
func (d Dataset) Record(i int) Record { return d.records[i] }

// Records returns a copy of the underlying records.
func (d Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// InverterIDs returns the distinct inverter ids in first-appearance order.
func (d Dataset) InverterIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, record := range d.records {
		if !seen[record.InverterID] {
			seen[record.InverterID] = true
			ids = append(ids, record.InverterID)
		}
	}
	return ids
}

// ByInverter returns the records belonging to one inverter, in time order.
func (d Dataset) ByInverter(inverterID string) []Record {
	var out []Record
	for _, record := range d.records {
		if record.InverterID == inverterID {
			out = append(out, record)
		}
	}
	return out
}

// Span returns the earliest and latest timestamps in the dataset.
func (d Dataset) Span() (start, end time.Time, ok bool) {
	if len(d.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.records[0].Sample.Timestamp, d.records[len(d.records)-1].Sample.Timestamp, true
}
