package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/docsearch/mcp-server/internal/config"
	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/docsearch/mcp-server/internal/logging"
	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const (
	indexDir         = "index"
	indexVersionFile = ".index_version"
)

var (
	settings = config.Default()
	logger   = logging.For("docsearch")
)

// Configure replaces the settings used by the documentation tools. It must
// be called before any tool is registered.
func Configure(cfg *config.Config) {
	settings = cfg
}

func indexPath() string {
	return filepath.Join(settings.SearchPath(), indexDir)
}

// SearchResult represents a search result with score
type SearchResult struct {
	Record indexing.IndexedRecord `json:"record"`
	Score  float64                `json:"score"`
}

// SearchDocumentationInput defines input for search_documentation tool
type SearchDocumentationInput struct {
	Query      string `json:"query" jsonschema:"Search query for documentation"`
	Category   string `json:"category,omitempty" jsonschema:"Only return records of this category: page, section or method (optional)"`
	Page       string `json:"page,omitempty" jsonschema:"Only return records of this page (optional)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to 10, at most 20)"`
}

// SearchDocumentationOutput defines output for search_documentation tool
type SearchDocumentationOutput struct {
	Results    []SearchResult `json:"results"`
	Query      string         `json:"query"`
	TotalHits  int            `json:"total_hits"`
	SourceURLs []string       `json:"source_urls"`
}

// indexHolder manages concurrent access to the current snapshot
type indexHolder struct {
	// current holds the active snapshot (atomic access for lock-free reads)
	current atomic.Pointer[snapshot]

	// refreshMu serializes initialization and refresh
	// NOT used for searches - they are lock-free via atomic pointer
	refreshMu sync.Mutex

}

// acquire returns the current snapshot with a read reference held, or nil
// when none is installed.
func (h *indexHolder) acquire() *snapshot {
	for {
		snap := h.current.Load()
		if snap == nil {
			return nil
		}
		// A failed acquire means snap was retired after Load; reload.
		if snap.tryAcquire() {
			return snap
		}
	}
}

// install makes snap current and drops the holder's reference on the
// previous one.
func (h *indexHolder) install(snap *snapshot) {
	if old := h.current.Swap(snap); old != nil {
		old.release()
	}
}

var indexMgr = &indexHolder{}

// indexStamp identifies what an on-disk index was built from.
type indexStamp struct {
	Version int
	Digest  string
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readIndexStamp reads the schema version and source digest from disk
func readIndexStamp() indexStamp {
	data, err := os.ReadFile(filepath.Join(settings.SearchPath(), indexVersionFile))
	if err != nil {
		return indexStamp{} // No version file = v0
	}

	var stamp indexStamp
	fmt.Sscanf(string(data), "%d %s", &stamp.Version, &stamp.Digest)
	return stamp
}

// writeIndexStamp records the current schema version and source digest
func writeIndexStamp(digest string) error {
	path := filepath.Join(settings.SearchPath(), indexVersionFile)
	content := fmt.Sprintf("%d %s\n", indexing.IndexSchemaVersion, digest)
	return os.WriteFile(path, []byte(content), 0644)
}

// loadCollection returns the newest usable search index: the download cache
// if present and valid, otherwise the embedded copy.
func loadCollection() (*searchindex.Collection, string, string, error) {
	data, err := readCache()
	switch {
	case err == nil:
		c, report, perr := searchindex.Parse(data)
		if perr == nil {
			logSkipped(report)
			return c, sourceCache, digestOf(data), nil
		}
		logger.Warnf("Cached search index unusable (%v), falling back to embedded copy", perr)
	case !errors.Is(err, os.ErrNotExist):
		logger.Warnf("Failed to read cached search index: %v", err)
	}

	data, err = defaultDataProvider.ReadFile(embeddedIndexFile)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read embedded search index: %w", err)
	}
	c, report, err := searchindex.Parse(data)
	if err != nil {
		return nil, "", "", fmt.Errorf("embedded search index is invalid: %w", err)
	}
	logSkipped(report)
	return c, sourceEmbedded, digestOf(data), nil
}

func logSkipped(report *searchindex.LoadReport) {
	if report == nil || len(report.Skipped) == 0 {
		return
	}
	logger.WithField("skipped", len(report.Skipped)).Warnf("Skipped %d malformed record(s) of %d", len(report.Skipped), report.Total)
	for _, s := range report.Skipped {
		logger.Debugf("  docs[%d]: %s", s.Position, s.Reason)
	}
}

// InitializeDocSearch initializes the documentation search system
// Priority: local index (if schema and source match) > rebuild from cache > rebuild from embedded
func InitializeDocSearch() error {
	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	if indexMgr.current.Load() != nil {
		return nil
	}

	startTime := time.Now()
	logger.Info("Initializing documentation search...")

	records, source, digest, err := loadCollection()
	if err != nil {
		return err
	}

	snap, err := openSnapshot(records, source, digest)
	if err != nil {
		return err
	}
	indexMgr.current.Store(snap)

	count, _ := snap.index.DocCount()
	logger.WithFields(logrus.Fields{
		"records":   records.Len(),
		"documents": count,
		"source":    source,
		"on_disk":   snap.onDisk,
	}).Infof("✓ Documentation search initialized in %v", time.Since(startTime).Round(time.Millisecond))

	if source == sourceEmbedded {
		logger.Info("ℹ️  Using embedded search index (build-time). Use refresh_documentation_index to get the latest docs.")
	} else if needsRefresh() {
		logger.Infof("ℹ️  Cached search index is older than %v. Consider using refresh_documentation_index to update.", settings.CacheTTL)
	}
	return nil
}

// openSnapshot opens or builds the index for records. The on-disk index is
// reused only when its stamp matches; a process that cannot take the index
// lock serves from memory instead.
func openSnapshot(records *searchindex.Collection, source, digest string) (*snapshot, error) {
	lockStart := time.Now()
	if err := acquireLock(); err != nil {
		if errors.Is(err, errLockTimeout) {
			logger.Warnf("%v; serving from an in-memory index", err)
			return buildSnapshot(records, source, digest)
		}
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	logger.Debugf("Lock acquired in %v", time.Since(lockStart).Round(time.Millisecond))

	path := indexPath()
	if _, err := os.Stat(path); err == nil {
		stamp := readIndexStamp()
		switch {
		case stamp.Version != indexing.IndexSchemaVersion:
			logger.Infof("Index schema version mismatch (have: v%d, want: v%d), rebuilding...",
				stamp.Version, indexing.IndexSchemaVersion)
		case stamp.Digest != digest:
			logger.Info("Local index was built from a different search index, rebuilding...")
		default:
			openStart := time.Now()
			index, err := bleve.Open(path)
			if err == nil {
				logger.Debugf("Index opened in %v", time.Since(openStart).Round(time.Millisecond))
				return newSnapshot(NewBleveIndexWrapper(index), records, source, true), nil
			}
			logger.Warnf("Local index corrupted (%v), rebuilding...", err)
		}
	}

	return buildSnapshot(records, source, digest)
}

// buildSnapshot indexes records on disk when this process holds the index
// lock and in memory otherwise.
func buildSnapshot(records *searchindex.Collection, source, digest string) (*snapshot, error) {
	docs := indexing.BuildDocuments(records, settings.BaseURL)

	if !holdsLock() {
		index, err := indexing.NewMemIndex(docs)
		if err != nil {
			return nil, err
		}
		return newSnapshot(NewBleveIndexWrapper(index), records, source, false), nil
	}

	index, err := buildDiskIndex(docs, digest)
	if err != nil {
		return nil, err
	}
	return newSnapshot(NewBleveIndexWrapper(index), records, source, true), nil
}

// buildDiskIndex writes docs to a temp index, swaps it into place and opens it
func buildDiskIndex(docs []indexing.IndexedRecord, digest string) (bleve.Index, error) {
	startTime := time.Now()
	path := indexPath()
	tempPath := path + ".tmp"

	// Clean up any leftover temp index from previous crash
	os.RemoveAll(tempPath)

	if err := os.MkdirAll(filepath.Dir(tempPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	newIndex, err := bleve.New(tempPath, indexing.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create temp index: %w", err)
	}

	if err := indexing.IndexDocuments(newIndex, docs, func(done int) {
		logger.Debugf("Indexed %d/%d documents...", done, len(docs))
	}); err != nil {
		newIndex.Close()
		os.RemoveAll(tempPath)
		return nil, err
	}

	// Close temp index before moving
	if err := newIndex.Close(); err != nil {
		os.RemoveAll(tempPath)
		return nil, fmt.Errorf("failed to close temp index: %w", err)
	}

	// Remove old index directory; open handles keep their files until closed
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		os.RemoveAll(tempPath)
		return nil, fmt.Errorf("failed to remove old index: %w", err)
	}

	// Rename temp to final location (atomic operation on POSIX)
	if err := os.Rename(tempPath, path); err != nil {
		os.RemoveAll(tempPath)
		return nil, fmt.Errorf("failed to rename temp index: %w", err)
	}

	finalIndex, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open new index: %w", err)
	}

	if err := writeIndexStamp(digest); err != nil {
		logger.Warnf("Failed to write index version: %v", err)
	}

	logger.Infof("✓ Indexed %d documents in %v", len(docs), time.Since(startTime).Round(time.Millisecond))
	return finalIndex, nil
}

// swapSnapshot installs snap. The previous index is closed by whichever of
// the swap or its last in-flight read finishes later.
func swapSnapshot(snap *snapshot) {
	indexMgr.install(snap)
}

// acquireSnapshot returns the current snapshot, initializing on first use.
// The returned release func must be called when the caller is done reading.
func acquireSnapshot() (*snapshot, func(), error) {
	snap := indexMgr.acquire()
	if snap == nil {
		logger.Info("Doc index not initialized, initializing now...")
		if err := InitializeDocSearch(); err != nil {
			return nil, func() {}, fmt.Errorf("failed to initialize documentation index: %w", err)
		}
		snap = indexMgr.acquire()
		if snap == nil {
			return nil, func() {}, fmt.Errorf("index still nil after initialization")
		}
	}
	return snap, snap.release, nil
}

// SearchDocumentation runs a full-text search over the search records
func SearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentationInput) (*mcp.CallToolResult, SearchDocumentationOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("query must not be empty")
	}

	snap, release, err := acquireSnapshot()
	if err != nil {
		return nil, SearchDocumentationOutput{}, err
	}
	defer release()

	size := input.MaxResults
	if size <= 0 {
		size = settings.MaxResults
	}

	searchResults, err := snap.index.Search(indexing.NewSearchRequest(indexing.SearchOptions{
		Query:    input.Query,
		Category: input.Category,
		Page:     input.Page,
		Size:     size,
	}))
	if err != nil {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		results = append(results, SearchResult{
			Record: indexing.HitToRecord(hit),
			Score:  hit.Score,
		})
	}

	return nil, SearchDocumentationOutput{
		Results:    results,
		Query:      input.Query,
		TotalHits:  int(searchResults.Total),
		SourceURLs: []string{settings.BaseURL},
	}, nil
}

// RegisterDocSearchTools registers documentation search tools
func RegisterDocSearchTools(server *mcp.Server) error {
	// Initialize doc search synchronously
	if err := InitializeDocSearch(); err != nil {
		logger.Warnf("Documentation search initialization failed: %v", err)
		logger.Warn("Documentation search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_documentation",
			Description: "Full-text search over the documentation search index (pages, sections and documented methods). Returns the most relevant records with links.",
		},
		SearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_documentation_index",
			Description: fmt.Sprintf("Re-download and re-index the documentation search index (skipped while the cache is younger than %v unless force is set)", settings.CacheTTL),
		},
		RefreshDocumentationIndex,
	)

	return nil
}

// CloseDocSearch closes the documentation search index and releases the lock
func CloseDocSearch() error {
	var closeErr error

	// Atomically swap index to nil (prevents new searches)
	if snap := indexMgr.current.Swap(nil); snap != nil {
		logger.Debug("Waiting for in-flight searches to complete before closing...")

		snap.release()
		<-snap.closed
		closeErr = snap.closeErr
	}

	// Always attempt to release inter-process lock, even if close failed
	if err := releaseLock(); err != nil {
		logger.Errorf("Error releasing lock: %v", err)
		if closeErr == nil {
			closeErr = err
		}
	}

	return closeErr
}
