package fleet

import (
	"fmt"
	"time"
)

// EmptyRangeError reports a date-range selection that left no rows.
type EmptyRangeError struct {
	InverterID string
	Start      time.Time
	End        time.Time
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("fleet: no samples for %s between %s and %s",
		e.InverterID, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}
