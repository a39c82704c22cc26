package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page matching req, following pagination cursors.
func QueryAll(ctx context.Context, c Client, dbID string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	all := []notionapi.Page{}

	next := &notionapi.DatabaseQueryRequest{}
	if req != nil {
		next.Filter = req.Filter
		next.Sorts = req.Sorts
		next.PageSize = req.PageSize
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, next)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		next = &notionapi.DatabaseQueryRequest{
			Filter:      next.Filter,
			Sorts:       next.Sorts,
			PageSize:    next.PageSize,
			StartCursor: resp.NextCursor,
		}
	}
}

// QueryByText returns pages whose rich-text property equals value.
func QueryByText(ctx context.Context, c Client, dbID, property, value string) ([]notionapi.Page, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query %s = %q", property, value)
	}
	return pages, nil
}

// CreateInDatabase creates a page with props in dbID.
func CreateInDatabase(ctx context.Context, c Client, dbID string, props notionapi.Properties) (*notionapi.Page, error) {
	return c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
}
