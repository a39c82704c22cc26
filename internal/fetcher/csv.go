package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads up to maxRows data rows after the header. maxRows <= 0 reads
// everything. Rows may have differing field counts; fields are trimmed.
func ReadCSV(r io.Reader, maxRows int) (header []string, rows [][]string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: read csv")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "fetcher: parse csv row")
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
		if maxRows > 0 && len(rows) == maxRows {
			break
		}
	}

	if header == nil {
		return nil, nil, eris.New("fetcher: csv has no header row")
	}
	return header, rows, nil
}
