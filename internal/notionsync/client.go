package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page Notion returns per query.
const queryPageSize = 100

// NotionClient talks to the ledger's Notion databases through the
// jomei/notionapi SDK.
type NotionClient struct {
	api *notionapi.Client
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient returns a client authorised with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{api: notionapi.NewClient(notionapi.Token(token))}
}

// CreatePage adds a row to the database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

// UpdatePage overwrites the given properties of a page; others are untouched.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: properties})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: page %s: %w", pageID, err)
	}
	return page, nil
}

func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}

// DeletePage archives a page. Notion has no hard delete.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	if _, err := n.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("DeletePage: page %s: %w", pageID, err)
	}
	return nil
}

// queryPages returns every page of the database matching filter, following
// cursors. A nil filter selects all pages.
func queryPages(ctx context.Context, svc NotionService, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:      filter,
			StartCursor: cursor,
			PageSize:    queryPageSize,
		}
		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// entryPagesFilter selects the entry pages a sync over [start, end] may
// touch: pages dated within those days, undated pages and pages that lost
// their entry id.
func entryPagesFilter(start, end time.Time) notionapi.Filter {
	from := notionapi.Date(startOfDay(start))
	until := notionapi.Date(startOfDay(end).AddDate(0, 0, 1))

	return notionapi.OrCompoundFilter{
		notionapi.AndCompoundFilter{
			&notionapi.PropertyFilter{Property: PropDate, Date: &notionapi.DateFilterCondition{OnOrAfter: &from}},
			&notionapi.PropertyFilter{Property: PropDate, Date: &notionapi.DateFilterCondition{Before: &until}},
		},
		&notionapi.PropertyFilter{Property: PropDate, Date: &notionapi.DateFilterCondition{IsEmpty: true}},
		&notionapi.PropertyFilter{Property: PropEntryID, RichText: &notionapi.TextFilterCondition{IsEmpty: true}},
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
