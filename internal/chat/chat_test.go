package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

func result(items int) *model.JobResult {
	r := &model.JobResult{Report: model.BatchReport{Total: 10, Valid: 10 - items, Flagged: items, Accuracy: 0.95}}
	for i := 0; i < items; i++ {
		r.Report.ActionItems = append(r.Report.ActionItems, model.ActionItem{
			Provider: fmt.Sprintf("Provider %d", i),
			Issues:   []string{"Name mismatch with Registry"},
			Priority: model.PriorityMedium,
		})
	}
	return r
}

func TestBuildContext_CapsItems(t *testing.T) {
	ctx := BuildContext(result(8).Report)
	assert.Contains(t, ctx, "10 processed, 2 valid, 8 flagged, accuracy 95%")
	assert.Contains(t, ctx, "Provider 4")
	assert.NotContains(t, ctx, "Provider 5")
	assert.Equal(t, MaxContextItems, strings.Count(ctx, "[Medium]"))
}

func TestBuildContext_NoItems(t *testing.T) {
	assert.Contains(t, BuildContext(result(0).Report), "No flagged providers.")
}

func TestAnswer(t *testing.T) {
	o := &mockOracle{}
	o.On("Complete", mock.Anything, mock.MatchedBy(func(p oracle.Prompt) bool {
		return strings.HasSuffix(p.User, "Question: How many were flagged?") && !p.JSON
	})).Return("  Two providers were flagged.\n", nil)

	answer, err := New(o).Answer(context.Background(), result(2), " How many were flagged? ")
	require.NoError(t, err)
	assert.Equal(t, "Two providers were flagged.", answer)
}

func TestAnswer_Errors(t *testing.T) {
	o := &mockOracle{}
	o.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("down"))
	a := New(o)

	_, err := a.Answer(context.Background(), result(1), "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuestion))

	_, err = a.Answer(context.Background(), nil, "q")
	assert.Error(t, err)

	_, err = a.Answer(context.Background(), result(1), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat: ask oracle")
}
