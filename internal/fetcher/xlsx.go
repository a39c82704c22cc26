package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads the first non-empty sheet of an XLSX workbook. The first
// row is the header; up to maxRows data rows follow (maxRows <= 0 reads all).
// Fully blank rows are skipped.
func ReadXLSX(path string, maxRows int) (header []string, rows [][]string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: open xlsx")
	}

	var sheet *xlsx.Sheet
	for _, s := range f.Sheets {
		if len(s.Rows) > 0 {
			sheet = s
			break
		}
	}
	if sheet == nil {
		return nil, nil, eris.New("fetcher: xlsx has no rows")
	}

	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		rows = append(rows, cells)
		if maxRows > 0 && len(rows) == maxRows {
			break
		}
	}
	if header == nil {
		return nil, nil, eris.New("fetcher: xlsx has no header row")
	}
	return header, rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
