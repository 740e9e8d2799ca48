package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Enrollment Roster",
		Headers: []string{"Student", "Course"},
		Rows: [][]string{
			{"Ada (Domestic)", "Mathematics"},
			{"Lin (International)", "Physics"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Student", "Course"}, {"Ada (Domestic)", "Mathematics"}, {"Lin (International)", "Physics"}}, records)
}

func TestExportersRejectBadDatasets(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)

	ragged := Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"only one"}}}
	_, err = NewPDFExporter().Render(ragged)
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(ragged)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	title, err := f.GetCellValue("Enrollment Roster", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Enrollment Roster", title)

	header, err := f.GetCellValue("Enrollment Roster", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Course", header)

	last, err := f.GetCellValue("Enrollment Roster", "A5")
	require.NoError(t, err)
	assert.Equal(t, "Lin (International)", last)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", sheetName(""))
	assert.Equal(t, "a-b", sheetName("a/b"))
	assert.Len(t, []rune(sheetName("an extremely long roster title that overflows")), 31)
}
