package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/oracle"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Complete(ctx context.Context, p oracle.Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

var valid = model.ValidationOutcome{
	Valid:          true,
	Identifier:     "1234567890",
	Classification: "Internal Medicine",
	Raw:            []byte(`{"basic":{"first_name":"JANE"}}`),
}

func TestEnrich_Success(t *testing.T) {
	m := &mockOracle{}
	m.On("Complete", mock.Anything, mock.MatchedBy(func(p oracle.Prompt) bool {
		return p.JSON && p.System == systemPrompt
	})).Return("```json\n{\"specialties\":[\"Cardiology\",\" cardiology \",\"Nephrology\",\"Oncology\",\"Extra\"],\"certification\":\" ABIM \"}\n```", nil)

	got := New(m).Enrich(context.Background(), valid)

	assert.Equal(t, []string{"Cardiology", "Nephrology", "Oncology"}, got.Specialties)
	assert.Equal(t, "ABIM", got.Certification)
	assert.Empty(t, got.Fallback)
	assert.False(t, got.Skipped)
}

func TestEnrich_SkipsInvalid(t *testing.T) {
	m := &mockOracle{}
	got := New(m).Enrich(context.Background(), model.InvalidValidation("Identifier not found in registry"))

	assert.True(t, got.Skipped)
	assert.True(t, got.Empty())
	m.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestEnrich_MalformedOutput(t *testing.T) {
	m := &mockOracle{}
	m.On("Complete", mock.Anything, mock.Anything).Return("I think they are a doctor.", nil)

	got := New(m).Enrich(context.Background(), valid)
	assert.True(t, got.Empty())
	assert.Contains(t, got.Fallback, oracle.FallbackInvalidJSON)
}

func TestEnrich_OracleError(t *testing.T) {
	m := &mockOracle{}
	m.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("context deadline exceeded"))

	got := New(m).Enrich(context.Background(), valid)
	assert.True(t, got.Empty())
	assert.Contains(t, got.Fallback, oracle.FallbackUnavailable)
	assert.NotNil(t, got.Specialties)
}

func TestBuildPrompt_FallsBackWithoutRaw(t *testing.T) {
	p := buildPrompt(model.ValidationOutcome{RegistryName: "JANE DOE", Classification: "Pediatrics"})
	assert.Contains(t, p, `"name": "JANE DOE"`)
	assert.Contains(t, p, "Primary taxonomy: Pediatrics")
}
