package csvfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	input := "Time,Irradiance,P_ac\n2025-06-01 10:00:00,800,4000\n"
	table, err := Decode("inv-1.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "inv-1.csv", table.Source)
	assert.Equal(t, []string{"Time", "Irradiance", "P_ac"}, table.Header)
	require.Len(t, table.Records, 1)
	assert.Equal(t, []string{"2025-06-01 10:00:00", "800", "4000"}, table.Records[0])
}

func TestDecode_StripsBOM(t *testing.T) {
	input := "\ufeffTime,P_ac\n2025-06-01 10:00:00,4000\n"
	table, err := Decode("inv-1.csv", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "P_ac"}, table.Header)
}

func TestDecode_TrimsHeaderWhitespace(t *testing.T) {
	input := "Time , Irradiance ,P_ac\n"
	table, err := Decode("inv-1.csv", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Irradiance", "P_ac"}, table.Header)
	assert.Empty(t, table.Records)
}

func TestDecode_EmptyFile(t *testing.T) {
	_, err := Decode("inv-1.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestDecode_RaggedRowsAllowed(t *testing.T) {
	input := "Time,Irradiance,P_ac\n2025-06-01 10:00:00,800\n"
	table, err := Decode("inv-1.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Len(t, table.Records[0], 2)
}
