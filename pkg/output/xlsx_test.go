package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vignelab/vignelab/pkg/ingest"
)

func TestWriteXLSX(t *testing.T) {
	tbl, err := ingest.IngestBytes([]byte("Temps;Temp;NDVI\n0;21,5;0,61\n10;22;0,58\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(tbl, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{dataSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(dataSheet)
	require.NoError(t, err)
	require.Equal(t, []string{"Temps", "Temp", "NDVI"}, rows[0])
	require.Equal(t, []string{"0", "21.5", "0.61"}, rows[1])
	require.Len(t, rows, 3)

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Equal(t, "Column", summary[0][0])
	require.Len(t, summary, 4)
	require.Equal(t, "Temp", summary[2][0])
	require.Equal(t, "2", summary[2][1])
}
