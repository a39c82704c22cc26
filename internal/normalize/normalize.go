// Package normalize turns heterogeneous ingested rows into canonical
// provider records. Normalization never drops rows.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/provider-cli/internal/model"
)

// Target fields of a column mapping.
const (
	FieldIdentifier = "npi"
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldWebsite    = "website"
	FieldPhone      = "phone"
)

// Table is a header row plus data rows read from a tabular source.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnMapping maps target fields to source column names.
type ColumnMapping map[string]string

// SanitizeMapping converts a loosely typed mapping (as decoded from oracle
// JSON) into a ColumnMapping. String values are kept, lists contribute their
// first string element, everything else is dropped.
func SanitizeMapping(raw map[string]any) ColumnMapping {
	m := ColumnMapping{}
	for field, v := range raw {
		switch val := v.(type) {
		case string:
			if val != "" {
				m[field] = val
			}
		case []any:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok && s != "" {
					m[field] = s
				}
			}
		case []string:
			if len(val) > 0 && val[0] != "" {
				m[field] = val[0]
			}
		}
	}
	return m
}

// Normalizer builds provider records from tables or extracted candidates.
type Normalizer struct {
	rules Rules
	limit int
}

// New returns a Normalizer. A limit of zero or less means no limit.
func New(rules Rules, limit int) *Normalizer {
	return &Normalizer{rules: rules, limit: limit}
}

// Tabular normalizes table rows using the column mapping, falling back to
// column-name heuristics when the mapping leaves the identifier or both name
// fields unresolved.
func (n *Normalizer) Tabular(t Table, m ColumnMapping) []model.ProviderRecord {
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}

	idCol := firstColumn(t.Columns, n.rules.IdentifierTokens)
	nameCol := firstColumn(t.Columns, n.rules.FullNameTokens)

	rows := t.Rows
	if n.limit > 0 && len(rows) > n.limit {
		rows = rows[:n.limit]
	}

	records := make([]model.ProviderRecord, 0, len(rows))
	for i, row := range rows {
		get := func(field string) string {
			col, ok := m[field]
			if !ok {
				return ""
			}
			idx, ok := index[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return n.clean(row[idx])
		}
		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return n.clean(row[idx])
		}

		rec := model.ProviderRecord{
			Index:     i,
			FirstName: get(FieldFirstName),
			LastName:  get(FieldLastName),
			Website:   get(FieldWebsite),
			Phone:     get(FieldPhone),
		}

		id := get(FieldIdentifier)
		if id == "" {
			id = cell(idCol)
		}
		rec.Identifier = Identifier(id)

		if rec.FirstName == "" && rec.LastName == "" {
			rec.FirstName, rec.LastName = n.SplitFullName(cell(nameCol))
		}

		records = append(records, rec)
	}
	return records
}

// Documents accepts oracle-extracted candidates as-is. Absent fields become
// empty strings; no heuristics apply.
func (n *Normalizer) Documents(cands []model.CandidateRecord) []model.ProviderRecord {
	if n.limit > 0 && len(cands) > n.limit {
		cands = cands[:n.limit]
	}
	records := make([]model.ProviderRecord, 0, len(cands))
	for i, c := range cands {
		records = append(records, model.ProviderRecord{
			Index:      i,
			Identifier: Identifier(n.clean(c.Identifier.Or(""))),
			FirstName:  n.clean(c.FirstName.Or("")),
			LastName:   n.clean(c.LastName.Or("")),
			Website:    n.clean(c.Website.Or("")),
			Phone:      n.clean(c.Phone.Or("")),
		})
	}
	return records
}

// SplitFullName strips honorific prefixes and splits on whitespace: the first
// token is the first name, the rest joined is the last name.
func (n *Normalizer) SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	for len(parts) > 0 && n.isHonorific(parts[0]) {
		parts = parts[1:]
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func (n *Normalizer) isHonorific(tok string) bool {
	for _, h := range n.rules.Honorifics {
		if strings.EqualFold(tok, h) {
			return true
		}
	}
	return false
}

// clean trims, collapses internal whitespace and blanks sentinel values.
func (n *Normalizer) clean(v string) string {
	if n.rules.isSentinel(v) {
		return ""
	}
	return strings.Join(strings.Fields(v), " ")
}

var trailingZeroFraction = regexp.MustCompile(`^(\d+)\.0+$`)

// Identifier normalizes float-formatted identifiers to their integer string.
// "1234567890.0" and "1.23456789E+09" both yield "1234567890". Anything else
// is returned trimmed and unchanged.
func Identifier(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := trailingZeroFraction.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if strings.ContainsAny(raw, "eE") {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && f >= 0 && f == math.Trunc(f) && f < 1e15 {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return raw
}
