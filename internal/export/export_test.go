package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/provider-cli/internal/model"
)

func outcomes() []model.RecordOutcome {
	return []model.RecordOutcome{
		{
			Record:     model.ProviderRecord{Identifier: "1234567890", FirstName: "Jane", LastName: "Doe"},
			Validation: model.ValidationOutcome{Valid: true, RegistryName: "JANE DOE", Classification: "Family Medicine"},
			Enrichment: &model.Enrichment{Specialties: []string{"Family Medicine", "Geriatrics"}},
			Score:      0.9,
			Issues:     []string{"Website unreachable: https://doe.example"},
			Status:     model.RecordStatusValid,
		},
		{
			Record: model.ProviderRecord{LastName: "Roe"},
			Score:  0,
			Issues: []string{"Invalid identifier or API Error", "extra"},
			Status: model.RecordStatusNeedsReview,
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(outcomes())
	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		Identifier:     "1234567890",
		Name:           "Jane Doe",
		Status:         "Valid",
		Score:          0.9,
		Issues:         "Website unreachable: https://doe.example",
		RegistryName:   "JANE DOE",
		Classification: "Family Medicine",
		Specialties:    "Family Medicine, Geriatrics",
	}, rows[0])
	assert.Equal(t, "Roe", rows[1].Name)
	assert.Equal(t, "Invalid identifier or API Error; extra", rows[1].Issues)
	assert.Empty(t, rows[1].Specialties)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, Rows(outcomes())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "0.90", records[1][3])
	assert.Equal(t, "0.00", records[2][3])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, Rows(outcomes())))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "identifier", sheet.Rows[0].Cells[0].String())
	score, err := sheet.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)
	assert.Equal(t, "Family Medicine, Geriatrics", sheet.Rows[1].Cells[7].String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = ParseFormat("json")
	assert.Error(t, err)
}
