package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	schemaResourceURI = "docsearch://schema/search-index.json"
	pagesResourceURI  = "docsearch://pages"
)

func readSchemaResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      schemaResourceURI,
			MIMEType: "application/schema+json",
			Text:     string(searchindex.SchemaJSON()),
		}},
	}, nil
}

func readPagesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	_, pages, err := ListPages(ctx, nil, ListPagesInput{})
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode pages: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      pagesResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// RegisterResources registers the schema and page listing resources
func RegisterResources(server *mcp.Server) int {
	server.AddResource(&mcp.Resource{
		URI:         schemaResourceURI,
		Name:        "search-index-schema",
		Description: "JSON Schema of the documentation search index document",
		MIMEType:    "application/schema+json",
	}, readSchemaResource)

	server.AddResource(&mcp.Resource{
		URI:         pagesResourceURI,
		Name:        "pages",
		Description: "Documentation pages with record counts per category",
		MIMEType:    "application/json",
	}, readPagesResource)

	return 2
}
