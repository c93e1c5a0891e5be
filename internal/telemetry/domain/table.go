package telemetry

// Table is an already-decoded tabular extract: one header row and the data
// records beneath it. Format adapters (CSV upload, local files) produce
// tables; the validator is their only consumer.
type Table struct {
	Source  string
	Header  []string
	Records [][]string
}

// ColumnIndex maps header names to their positions. Later duplicates of a
// header name are ignored.
func (t Table) ColumnIndex() map[string]int {
	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	return index
}
