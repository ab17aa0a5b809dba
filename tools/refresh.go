package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/klauspost/compress/zstd"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	cacheFile     = "search_index.js.zst"
	cacheMetaFile = "cache.meta"

	// maxDownloadBytes bounds a downloaded search index
	maxDownloadBytes = 64 << 20
)

// RefreshDocumentationIndexInput defines input for refresh tool
type RefreshDocumentationIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Force refresh even if cache is fresh"`
}

// RefreshDocumentationIndexOutput defines output for refresh tool
type RefreshDocumentationIndexOutput struct {
	Updated        bool      `json:"updated"`
	LastUpdate     time.Time `json:"last_update"`
	RecordsIndexed int       `json:"records_indexed"`
	Skipped        int       `json:"skipped"`
	Message        string    `json:"message"`
}

func cachePath() string {
	return filepath.Join(settings.DocsPath(), cacheFile)
}

func cacheMetaPath() string {
	return filepath.Join(settings.DocsPath(), cacheMetaFile)
}

// needsRefresh checks if the downloaded search index is missing or older than cache_ttl
func needsRefresh() bool {
	info, err := os.Stat(cacheMetaPath())
	if err != nil {
		return true // No cache, needs refresh
	}

	age := time.Since(info.ModTime())
	return age > settings.CacheTTL
}

// downloadSearchIndex fetches the search index from settings.SourceURL
func downloadSearchIndex(ctx context.Context) ([]byte, error) {
	logger.Infof("Downloading search index from %s", settings.SourceURL)

	ctx, cancel := context.WithTimeout(ctx, settings.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, settings.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("search index exceeds %d bytes", maxDownloadBytes)
	}
	return data, nil
}

// writeCache stores data zstd-compressed and stamps the cache metadata.
// The cache file is replaced by rename so readers never see a partial write.
func writeCache(data []byte) error {
	if err := os.MkdirAll(settings.DocsPath(), 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	tmp, err := os.CreateTemp(settings.DocsPath(), cacheFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpName := tmp.Name()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, cachePath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move cache into place: %w", err)
	}

	meta := fmt.Sprintf("last_update: %s\nsource_url: %s\n", time.Now().Format(time.RFC3339), settings.SourceURL)
	if err := os.WriteFile(cacheMetaPath(), []byte(meta), 0644); err != nil {
		return fmt.Errorf("failed to write meta file: %w", err)
	}
	return nil
}

// readCache returns the decompressed cached search index
func readCache() ([]byte, error) {
	f, err := os.Open(cachePath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cache: %w", err)
	}
	return data, nil
}

// refreshResult describes a completed refresh
type refreshResult struct {
	updated bool
	records int
	skipped int
}

// refreshDocumentationIndex downloads and re-indexes the search index
func refreshDocumentationIndex(ctx context.Context, force bool) (refreshResult, error) {
	startTime := time.Now()

	if !force && !needsRefresh() {
		logger.Info("Search index cache is fresh, skipping refresh")
		return refreshResult{}, nil
	}

	// Serialize refresh operations (prevent concurrent refreshes)
	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	// Re-check after acquiring lock (double-checked locking pattern)
	// Another goroutine may have already refreshed while we were waiting
	if !force && !needsRefresh() {
		logger.Info("Search index was refreshed by another goroutine, skipping")
		return refreshResult{}, nil
	}

	logger.Infof("Starting search index refresh (force=%v)...", force)

	// Without the lock the rebuilt index lives in memory only
	if err := acquireLock(); err != nil && !errors.Is(err, errLockTimeout) {
		return refreshResult{}, fmt.Errorf("failed to acquire lock for refresh: %w", err)
	}

	downloadStart := time.Now()
	data, err := downloadSearchIndex(ctx)
	if err != nil {
		return refreshResult{}, fmt.Errorf("download failed: %w", err)
	}
	logger.Debugf("Download completed in %v", time.Since(downloadStart).Round(time.Millisecond))

	// Parse before touching the cache so a bad download never replaces a good one
	records, report, err := searchindex.Parse(data)
	if err != nil {
		return refreshResult{}, fmt.Errorf("downloaded search index is invalid: %w", err)
	}
	logSkipped(report)

	if err := writeCache(data); err != nil {
		return refreshResult{}, err
	}

	snap, err := buildSnapshot(records, sourceDownload, digestOf(data))
	if err != nil {
		return refreshResult{}, fmt.Errorf("indexing failed: %w", err)
	}
	swapSnapshot(snap)

	logger.Infof("✓ Search index refresh completed in %v", time.Since(startTime).Round(time.Millisecond))
	return refreshResult{updated: true, records: records.Len(), skipped: len(report.Skipped)}, nil
}

// RefreshDocumentationIndex forces refresh of documentation index
func RefreshDocumentationIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshDocumentationIndexInput) (*mcp.CallToolResult, RefreshDocumentationIndexOutput, error) {
	output := RefreshDocumentationIndexOutput{
		Updated: false,
	}

	// Check if refresh needed
	if !input.Force && !needsRefresh() {
		if info, err := os.Stat(cacheMetaPath()); err == nil {
			output.LastUpdate = info.ModTime()
			output.Message = fmt.Sprintf("Cache is fresh (last updated: %s)", info.ModTime().Format(time.RFC3339))
			return nil, output, nil
		}
	}

	result, err := refreshDocumentationIndex(ctx, input.Force)
	if err != nil {
		return nil, output, fmt.Errorf("refresh failed: %w", err)
	}
	if !result.updated {
		if info, err := os.Stat(cacheMetaPath()); err == nil {
			output.LastUpdate = info.ModTime()
		}
		output.Message = "Cache was refreshed concurrently, nothing to do"
		return nil, output, nil
	}

	output.Updated = true
	output.LastUpdate = time.Now()
	output.RecordsIndexed = result.records
	output.Skipped = result.skipped
	output.Message = fmt.Sprintf("Search index refreshed successfully, %d records indexed", result.records)
	if result.skipped > 0 {
		output.Message += fmt.Sprintf(" (%d malformed records skipped)", result.skipped)
	}

	return nil, output, nil
}
