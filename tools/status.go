package tools

import (
	"context"
	"os"
	"time"

	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IndexStatusInput defines input for index_status tool
type IndexStatusInput struct{}

// IndexStatusOutput describes the loaded index and the local cache
type IndexStatusOutput struct {
	Initialized   bool           `json:"initialized"`
	Source        string         `json:"source,omitempty"` // "embedded", "cache" or "download"
	OnDisk        bool           `json:"on_disk"`
	Documents     uint64         `json:"documents"`
	Records       int            `json:"records"`
	Pages         int            `json:"pages"`
	ByCategory    map[string]int `json:"by_category,omitempty"`
	LoadedAt      *time.Time     `json:"loaded_at,omitempty"`
	CacheUpdated  *time.Time     `json:"cache_updated,omitempty"`
	NeedsRefresh  bool           `json:"needs_refresh"`
	HoldsLock     bool           `json:"holds_lock"`
	SchemaVersion int            `json:"schema_version"`
	DataDir       string         `json:"data_dir"`
	SourceURL     string         `json:"source_url"`
}

// IndexStatus reports what the documentation tools are serving from. It
// never triggers initialization.
func IndexStatus(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (*mcp.CallToolResult, IndexStatusOutput, error) {
	output := IndexStatusOutput{
		NeedsRefresh:  needsRefresh(),
		HoldsLock:     holdsLock(),
		SchemaVersion: indexing.IndexSchemaVersion,
		DataDir:       settings.DataDir,
		SourceURL:     settings.SourceURL,
	}

	if info, err := os.Stat(cacheMetaPath()); err == nil {
		updated := info.ModTime()
		output.CacheUpdated = &updated
	}

	snap := indexMgr.acquire()
	if snap == nil {
		return nil, output, nil
	}
	defer snap.release()

	stats := snap.records.Stats()
	output.Initialized = true
	output.Source = snap.source
	output.OnDisk = snap.onDisk
	output.Records = stats.Records
	output.Pages = stats.Pages
	output.ByCategory = stats.ByCategory
	loadedAt := snap.loadedAt
	output.LoadedAt = &loadedAt
	if count, err := snap.index.DocCount(); err == nil {
		output.Documents = count
	}
	return nil, output, nil
}

// RegisterStatusTools registers the index status tool
func RegisterStatusTools(server *mcp.Server) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "index_status",
			Description: "Reports where the documentation index was loaded from (embedded, cache or download), record and page counts, cache age and whether a refresh is due.",
		},
		IndexStatus,
	)
}
