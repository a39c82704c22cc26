package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateRecord_UnmarshalMixedTypes(t *testing.T) {
	raw := `[
		{"npi": "1234567890", "first_name": "Jane", "last_name": "Doe", "website": null},
		{"npi": 1987654321.0, "first_name": "Sam"},
		{}
	]`

	var got []CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Len(t, got, 3)

	assert.Equal(t, Some("1234567890"), got[0].Identifier)
	assert.Equal(t, "Jane", got[0].FirstName.Value)
	assert.False(t, got[0].Website.Set)

	assert.Equal(t, "1987654321.0", got[1].Identifier.Value)
	assert.True(t, got[1].Identifier.Set)
	assert.False(t, got[1].LastName.Set)

	assert.False(t, got[2].Identifier.Set)
	assert.Equal(t, "fallback", got[2].FirstName.Or("fallback"))
}

func TestOptString_RejectsObjects(t *testing.T) {
	var c CandidateRecord
	err := json.Unmarshal([]byte(`{"npi": {"number": 1}}`), &c)
	assert.Error(t, err)
}

func TestOptString_MarshalRoundTrip(t *testing.T) {
	c := CandidateRecord{Identifier: Some("42")}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"npi":"42","first_name":null,"last_name":null,"website":null,"phone":null}`, string(data))
}

func TestProviderRecord_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		rec  ProviderRecord
		want string
	}{
		{"both", ProviderRecord{FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{"first only", ProviderRecord{FirstName: "Jane"}, "Jane"},
		{"last only", ProviderRecord{LastName: "Doe"}, "Doe"},
		{"neither", ProviderRecord{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.DisplayName())
		})
	}
}

func TestInputKind_Valid(t *testing.T) {
	assert.True(t, InputKindTabular.Valid())
	assert.True(t, InputKindDocument.Valid())
	assert.False(t, InputKind("pdf").Valid())
}
