package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// InputKind describes how a source artifact is ingested.
type InputKind string

const (
	InputKindTabular  InputKind = "tabular"  // CSV or XLSX with a header row
	InputKindDocument InputKind = "document" // scanned PDF, image, or plain text
)

// Valid reports whether k is a known input kind.
func (k InputKind) Valid() bool {
	return k == InputKindTabular || k == InputKindDocument
}

// ProviderRecord is the canonical unit entering the validation pipeline.
// It is created by the normalizer and never mutated afterwards.
type ProviderRecord struct {
	Index      int    `json:"index"`
	Identifier string `json:"npi"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Website    string `json:"website,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// DisplayName joins first and last name the way reports show a provider.
func (r ProviderRecord) DisplayName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}

// CandidateRecord is a provisional record produced by ingestion before
// normalization. Every field may be absent; consumers check Set.
type CandidateRecord struct {
	Identifier OptString `json:"npi"`
	FirstName  OptString `json:"first_name"`
	LastName   OptString `json:"last_name"`
	Website    OptString `json:"website"`
	Phone      OptString `json:"phone"`
}

// OptString is an optional string decoded leniently from JSON. Numbers are
// kept in their literal form; null and missing keys leave Set false.
type OptString struct {
	Value string
	Set   bool
}

// Some returns a set OptString.
func Some(v string) OptString {
	return OptString{Value: v, Set: true}
}

// Or returns the value when set, otherwise def.
func (o OptString) Or(def string) string {
	if !o.Set {
		return def
	}
	return o.Value
}

// UnmarshalJSON accepts strings, numbers, booleans, and null.
func (o *OptString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == "":
		*o = OptString{}
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode optional string")
		}
		*o = Some(s)
		return nil
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		return eris.Errorf("model: expected scalar, got %s", raw)
	default:
		*o = Some(raw)
		return nil
	}
}

// MarshalJSON writes null for unset values.
func (o OptString) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
