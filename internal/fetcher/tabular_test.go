package fetcher

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSV(t *testing.T) {
	in := "\xEF\xBB\xBFnpi, full_name ,website\n1234567890.0,Dr. Jane Doe,doe.example\n42,\"Roe, Sam\"\n7,Extra,x,y\n"

	header, rows, err := ReadCSV(strings.NewReader(in), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"npi", "full_name", "website"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"42", "Roe, Sam"}, rows[1])
	assert.Len(t, rows[2], 4)
}

func TestReadCSV_Limit(t *testing.T) {
	_, rows, err := ReadCSV(strings.NewReader("a\n1\n2\n3\n"), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), 0)
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Providers")
	require.NoError(t, err)
	for _, r := range [][]string{{"NPI", "Name"}, {"", ""}, {"1234567890", " Dr. Jane Doe "}, {"42", "Sam Roe"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	header, rows, err := ReadXLSX(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"NPI", "Name"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1234567890", "Dr. Jane Doe"}, rows[0])

	_, rows, err = ReadXLSX(path, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadXLSX_Missing(t *testing.T) {
	_, _, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), 0)
	assert.Error(t, err)
}
