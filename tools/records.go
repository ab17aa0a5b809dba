package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RecordView is a search record as returned by the browsing tools.
// Content is the record text with padding newlines trimmed.
type RecordView struct {
	Position int    `json:"position"`
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
	URL      string `json:"url"`
}

func newRecordView(pos int, r searchindex.Record) RecordView {
	return RecordView{
		Position: pos,
		Location: r.Location,
		Page:     r.Page,
		Title:    r.Title,
		Category: r.Category,
		Content:  indexing.CleanText(r.Text),
		URL:      indexing.BuildURL(settings.BaseURL, r.Location),
	}
}

// collectViews returns views of the records matching keep, in original order
func collectViews(c *searchindex.Collection, keep func(searchindex.Record) bool) []RecordView {
	views := []RecordView{}
	for i, r := range c.Records() {
		if keep(r) {
			views = append(views, newRecordView(i, r))
		}
	}
	return views
}

// PageSummary describes one documentation page
type PageSummary struct {
	Page       string         `json:"page"`
	Records    int            `json:"records"`
	ByCategory map[string]int `json:"by_category"`
	URL        string         `json:"url,omitempty"`
}

// ListPagesInput defines input for list_pages tool
type ListPagesInput struct{}

// ListPagesOutput defines output for list_pages tool
type ListPagesOutput struct {
	Pages        []PageSummary `json:"pages"`
	TotalRecords int           `json:"total_records"`
	Source       string        `json:"source"`
}

// ListPages lists the documentation pages in first-seen order
func ListPages(ctx context.Context, req *mcp.CallToolRequest, input ListPagesInput) (*mcp.CallToolResult, ListPagesOutput, error) {
	snap, release, err := acquireSnapshot()
	if err != nil {
		return nil, ListPagesOutput{}, err
	}
	defer release()

	summaries := make(map[string]*PageSummary)
	for _, r := range snap.records.Records() {
		s, ok := summaries[r.Page]
		if !ok {
			s = &PageSummary{Page: r.Page, ByCategory: make(map[string]int)}
			summaries[r.Page] = s
		}
		s.Records++
		s.ByCategory[r.Category]++
		if r.Category == searchindex.CategoryPage && s.URL == "" {
			s.URL = indexing.BuildURL(settings.BaseURL, r.Location)
		}
	}

	output := ListPagesOutput{
		Pages:        []PageSummary{},
		TotalRecords: snap.records.Len(),
		Source:       snap.source,
	}
	for _, page := range snap.records.Pages() {
		output.Pages = append(output.Pages, *summaries[page])
	}
	return nil, output, nil
}

// GetPageInput defines input for get_page tool
type GetPageInput struct {
	Page     string `json:"page" jsonschema:"Page name exactly as listed by list_pages"`
	Category string `json:"category,omitempty" jsonschema:"Only return records of this category (optional)"`
}

// GetPageOutput defines output for get_page tool
type GetPageOutput struct {
	Page    string       `json:"page"`
	Found   bool         `json:"found"`
	Records []RecordView `json:"records"`
}

// GetPage returns all records of one page
func GetPage(ctx context.Context, req *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, GetPageOutput, error) {
	if input.Page == "" {
		return nil, GetPageOutput{}, fmt.Errorf("page must not be empty")
	}

	snap, release, err := acquireSnapshot()
	if err != nil {
		return nil, GetPageOutput{}, err
	}
	defer release()

	views := collectViews(snap.records, func(r searchindex.Record) bool {
		return r.Page == input.Page
	})
	output := GetPageOutput{Page: input.Page, Found: len(views) > 0, Records: views}

	if input.Category != "" {
		filtered := []RecordView{}
		for _, v := range views {
			if v.Category == input.Category {
				filtered = append(filtered, v)
			}
		}
		output.Records = filtered
	}
	return nil, output, nil
}

// LookupLocationInput defines input for lookup_location tool
type LookupLocationInput struct {
	Location string `json:"location" jsonschema:"Location of the record, e.g. #NiLang.SWAP or man/guide/#Guide. A bare name is also tried as a #anchor"`
}

// LookupLocationOutput defines output for lookup_location tool
type LookupLocationOutput struct {
	Location string       `json:"location"`
	Records  []RecordView `json:"records"`
}

// LookupLocation returns the records stored under an anchor
func LookupLocation(ctx context.Context, req *mcp.CallToolRequest, input LookupLocationInput) (*mcp.CallToolResult, LookupLocationOutput, error) {
	if strings.TrimSpace(input.Location) == "" {
		return nil, LookupLocationOutput{}, fmt.Errorf("location must not be empty")
	}

	snap, release, err := acquireSnapshot()
	if err != nil {
		return nil, LookupLocationOutput{}, err
	}
	defer release()

	location := input.Location
	views := collectViews(snap.records, func(r searchindex.Record) bool {
		return r.Location == location
	})
	if len(views) == 0 && !strings.HasPrefix(location, "#") {
		anchor := "#" + location
		if found := collectViews(snap.records, func(r searchindex.Record) bool {
			return r.Location == anchor
		}); len(found) > 0 {
			location, views = anchor, found
		}
	}
	return nil, LookupLocationOutput{Location: location, Records: views}, nil
}

// RegisterRecordTools registers the page and anchor browsing tools
func RegisterRecordTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_pages",
			Description: "List documentation pages with record counts per category",
		},
		ListPages,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_page",
			Description: "Return every search record of a documentation page in original order",
		},
		GetPage,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "lookup_location",
			Description: "Return the search records stored under an anchor such as #NiLang.SWAP",
		},
		LookupLocation,
	)

	return nil
}
