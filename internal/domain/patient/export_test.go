package patient

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func TestWriteRoster(t *testing.T) {
	phone := "081-234-5678"
	dob := "1990-01-01"
	photo := "aGVsbG8="
	ts := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	patients := []*Patient{
		{HN: "HN000002", FullName: "นางสาวสมหญิง รักเรียน", Gender: GenderFemale, Age: 36, DateOfBirth: &dob, Phone: &phone, Photo: &photo, CreatedAt: ts, UpdatedAt: ts},
		{HN: "HN000001", FullName: "John Doe", Gender: GenderMale, Age: 40, CreatedAt: ts, UpdatedAt: ts},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRoster(&buf, patients))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "patients", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "HN", sheet.Rows[0].Cells[0].Value)
	assert.Len(t, sheet.Rows[0].Cells, len(exportHeader))

	first := sheet.Rows[1].Cells
	assert.Equal(t, "HN000002", first[0].Value)
	assert.Equal(t, "นางสาวสมหญิง รักเรียน", first[1].Value)
	assert.Equal(t, "081-234-5678", first[4].Value)
	assert.Equal(t, "1990-01-01", first[6].Value)
	assert.Equal(t, "2026-01-02T03:04:05Z", first[7].Value)

	second := sheet.Rows[2].Cells
	assert.Equal(t, "John Doe", second[1].Value)

	for _, row := range sheet.Rows {
		for _, cell := range row.Cells {
			assert.NotEqual(t, photo, cell.Value)
		}
	}
}

func TestWriteRoster_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoster(&buf, nil))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Len(t, file.Sheets[0].Rows, 1)
}
