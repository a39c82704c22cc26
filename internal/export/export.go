// Package export flattens record outcomes into tabular rows and writes them
// as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/provider-cli/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" (the default for empty input) or "xlsx".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Header lists the export columns in order.
var Header = []string{
	"identifier",
	"name",
	"status",
	"confidence_score",
	"issues",
	"registry_name",
	"classification",
	"specialties",
}

// Row is one flattened record outcome.
type Row struct {
	Identifier     string  `json:"identifier"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	Score          float64 `json:"confidence_score"`
	Issues         string  `json:"issues"`
	RegistryName   string  `json:"registry_name"`
	Classification string  `json:"classification"`
	Specialties    string  `json:"specialties"`
}

// Rows flattens outcomes in order.
func Rows(outcomes []model.RecordOutcome) []Row {
	rows := make([]Row, 0, len(outcomes))
	for _, o := range outcomes {
		var specialties string
		if o.Enrichment != nil {
			specialties = strings.Join(o.Enrichment.Specialties, ", ")
		}
		rows = append(rows, Row{
			Identifier:     o.Record.Identifier,
			Name:           o.Record.DisplayName(),
			Status:         string(o.Status),
			Score:          o.Score,
			Issues:         strings.Join(o.Issues, "; "),
			RegistryName:   o.Validation.RegistryName,
			Classification: o.Validation.Classification,
			Specialties:    specialties,
		})
	}
	return rows
}

func (r Row) values() []string {
	return []string{
		r.Identifier,
		r.Name,
		r.Status,
		strconv.FormatFloat(r.Score, 'f', 2, 64),
		r.Issues,
		r.RegistryName,
		r.Classification,
		r.Specialties,
	}
}

// Write writes rows to w in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// WriteCSV writes a header line and one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a single-sheet workbook. The score column is numeric.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for i, v := range r.values() {
			cell := row.AddCell()
			if i == 3 {
				cell.SetFloat(r.Score)
				continue
			}
			cell.SetString(v)
		}
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
