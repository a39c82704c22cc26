package review

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-cli/internal/model"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *mockNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func report() model.BatchReport {
	return model.BatchReport{
		Total: 2,
		ActionItems: []model.ActionItem{
			{Provider: "Jane Doe", Issues: []string{"Name mismatch with Registry"}, Priority: model.PriorityMedium},
			{Provider: "", Issues: []string{"Invalid identifier or API Error"}, Priority: model.PriorityHigh},
		},
	}
}

func TestPush_CreatesPages(t *testing.T) {
	mc := &mockNotion{}
	mc.On("QueryDatabase", mock.Anything, "db", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}}, nil)

	var titles []string
	mc.On("CreatePage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(*notionapi.PageCreateRequest)
		title := req.Properties[PropProvider].(notionapi.TitleProperty)
		titles = append(titles, title.Title[0].Text.Content)
		assert.Equal(t, "job-1", req.Properties[PropJob].(notionapi.RichTextProperty).RichText[0].Text.Content)
	}).Return(&notionapi.Page{ID: "p"}, nil)

	n, err := New(mc, "db").Push(context.Background(), "job-1", report())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Jane Doe", "(unnamed)"}, titles)
}

func TestPush_SkipsAlreadySyncedJob(t *testing.T) {
	mc := &mockNotion{}
	mc.On("QueryDatabase", mock.Anything, "db", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "old"}}}, nil)

	n, err := New(mc, "db").Push(context.Background(), "job-1", report())
	require.NoError(t, err)
	assert.Zero(t, n)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}

func TestPush_NoItems(t *testing.T) {
	mc := &mockNotion{}
	n, err := New(mc, "db").Push(context.Background(), "job-1", model.BatchReport{})
	require.NoError(t, err)
	assert.Zero(t, n)
	mc.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
}

func TestPush_CreateError(t *testing.T) {
	mc := &mockNotion{}
	mc.On("QueryDatabase", mock.Anything, "db", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{}, nil)
	mc.On("CreatePage", mock.Anything, mock.Anything).Return(&notionapi.Page{ID: "p"}, nil).Once()
	mc.On("CreatePage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	n, err := New(mc, "db").Push(context.Background(), "job-1", report())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), `review: create page for ""`)
}
