package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	telemetry "inverter-twin/internal/telemetry/domain"
)

// ErrEmptyFile indicates an upload without a header row.
var ErrEmptyFile = errors.New("csvfile: empty file")

// Decode reads a CSV document into a table. The first row is the header.
// A UTF-8 byte order mark on the first header cell is stripped.
func Decode(source string, r io.Reader) (telemetry.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return telemetry.Table{}, fmt.Errorf("csvfile: read %s: %w", source, err)
	}
	if len(rows) == 0 {
		return telemetry.Table{}, ErrEmptyFile
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return telemetry.Table{Source: source, Header: header, Records: rows[1:]}, nil
}
