package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/gofrs/flock"
)

const refreshedIndex = `var documenterSearchIndex = {"docs":[
{"location":"#","page":"Guide","title":"Guide","text":"Quantum teleportation walkthrough.","category":"page"},
{"location":"#Guide.teleport","page":"Guide","title":"Guide.teleport","text":"teleport(q) moves a qubit.","category":"method"},
{"location":"#broken","page":"Guide"}
]}
`

// newIndexServer serves whatever body currently holds
func newIndexServer(t *testing.T, body *atomic.Value, status *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := status.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		fmt.Fprint(w, body.Load().(string))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// --- Index holder tests with mocks ---

func TestIndexHolderConcurrentReads(t *testing.T) {
	holder := &indexHolder{}
	holder.install(mockSnapshot(newMockIndex(1)))

	const numReaders = 50
	errChan := make(chan error, numReaders)
	doneChan := make(chan bool, numReaders)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			snap := holder.acquire()
			if snap == nil {
				errChan <- fmt.Errorf("goroutine %d: got nil snapshot", id)
				return
			}
			defer snap.release()

			count, err := snap.index.DocCount()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: DocCount failed: %v", id, err)
				return
			}
			if count != 18 {
				errChan <- fmt.Errorf("goroutine %d: expected 18, got %d", id, count)
			}
		}(i)
	}

	for i := 0; i < numReaders; i++ {
		<-doneChan
	}
	close(errChan)

	for err := range errChan {
		t.Error(err)
	}

	if refs := holder.current.Load().refs.Load(); refs != 1 {
		t.Errorf("refs = %d after all reads, want 1", refs)
	}
}

func TestIndexHolderConcurrentSwapAndRead(t *testing.T) {
	holder := &indexHolder{}
	holder.install(mockSnapshot(newMockIndex(0)))

	const numReaders = 8
	const iterations = 500
	const swaps = 200

	errChan := make(chan error, numReaders)
	doneChan := make(chan bool, numReaders+1)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			for j := 0; j < iterations; j++ {
				snap := holder.acquire()
				if snap == nil {
					errChan <- fmt.Errorf("reader %d iteration %d: got nil", id, j)
					return
				}

				_, err := snap.index.DocCount()
				snap.release()
				if err != nil {
					errChan <- fmt.Errorf("reader %d iteration %d: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	retired := make([]*mockIndex, 0, swaps)
	go func() {
		defer func() { doneChan <- true }()
		for i := 0; i < swaps; i++ {
			idx := newMockIndex(i + 1)
			old := holder.current.Load().index.(*mockIndex)
			holder.install(mockSnapshot(idx))
			retired = append(retired, old)
		}
	}()

	for i := 0; i < numReaders+1; i++ {
		<-doneChan
	}
	close(errChan)

	for err := range errChan {
		t.Error(err)
	}
	for _, idx := range retired {
		if !idx.IsClosed() {
			t.Errorf("Index %d was not closed after its readers finished", idx.id)
		}
	}
	if holder.current.Load().index.(*mockIndex).IsClosed() {
		t.Error("Current index must stay open")
	}
}

func TestIndexHolderClosesOldIndexUnderLoad(t *testing.T) {
	holder := &indexHolder{}
	oldIdx := newMockIndex(1)
	holder.install(mockSnapshot(oldIdx))

	oldRead := holder.acquire()
	holder.install(mockSnapshot(newMockIndex(2)))

	// A reader of the new snapshot must not delay closing the old one.
	newRead := holder.acquire()
	defer newRead.release()

	if oldIdx.IsClosed() {
		t.Fatal("Old index closed while a read was still in flight")
	}
	oldRead.release()
	if !oldIdx.IsClosed() {
		t.Error("Old index should close with its last read")
	}
}

func TestSnapshotAcquireAfterClose(t *testing.T) {
	idx := newMockIndex(1)
	snap := mockSnapshot(idx)
	snap.release()

	if !idx.IsClosed() {
		t.Fatal("Index should close when the last reference is dropped")
	}
	if snap.tryAcquire() {
		t.Error("A closed snapshot must not hand out new reads")
	}
	select {
	case <-snap.closed:
	default:
		t.Error("closed channel should be closed")
	}
}

func TestIndexHolderRefreshMutexSerialization(t *testing.T) {
	holder := &indexHolder{}

	const numGoroutines = 10
	counter := 0
	doneChan := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer func() { doneChan <- true }()

			holder.refreshMu.Lock()
			defer holder.refreshMu.Unlock()

			oldCounter := counter
			for j := 0; j < 1000; j++ {
				_ = j * j
			}
			counter = oldCounter + 1
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-doneChan
	}

	if counter != numGoroutines {
		t.Errorf("Expected counter=%d, got %d (mutex not properly serializing)", numGoroutines, counter)
	}
}

func TestSwapSnapshotClosesOldAfterReadsDrain(t *testing.T) {
	useTestSettings(t)

	oldIdx := newMockIndex(1)
	indexMgr.current.Store(mockSnapshot(oldIdx))

	snap, release, err := acquireSnapshot()
	if err != nil {
		t.Fatalf("acquireSnapshot failed: %v", err)
	}
	if snap.index != Index(oldIdx) {
		t.Fatal("Expected the first snapshot")
	}

	newIdx := newMockIndex(2)
	swapSnapshot(mockSnapshot(newIdx))

	time.Sleep(50 * time.Millisecond)
	if oldIdx.IsClosed() {
		t.Fatal("Old index closed while a read was still in flight")
	}

	release()

	deadline := time.Now().Add(2 * time.Second)
	for !oldIdx.IsClosed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !oldIdx.IsClosed() {
		t.Error("Old index was not closed after reads drained")
	}
	if newIdx.IsClosed() {
		t.Error("New index must stay open")
	}
}

func TestCloseDocSearch(t *testing.T) {
	useTestSettings(t)

	if err := CloseDocSearch(); err != nil {
		t.Errorf("Closing without an index should succeed, got %v", err)
	}

	idx := newMockIndex(1)
	indexMgr.current.Store(mockSnapshot(idx))
	if err := CloseDocSearch(); err != nil {
		t.Fatalf("CloseDocSearch failed: %v", err)
	}
	if !idx.IsClosed() {
		t.Error("Index should be closed")
	}
	if indexMgr.current.Load() != nil {
		t.Error("Holder should be empty after close")
	}
}

// --- Search tool ---

func TestSearchDocumentation_EmptyQuery(t *testing.T) {
	useTestSettings(t)

	for _, q := range []string{"", "   "} {
		if _, _, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: q}); err == nil {
			t.Errorf("Expected error for query %q", q)
		}
	}
}

func TestSearchDocumentation_SearchError(t *testing.T) {
	useTestSettings(t)

	idx := newMockIndex(1)
	idx.searchError = errors.New("boom")
	indexMgr.current.Store(mockSnapshot(idx))

	_, _, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "swap"})
	if err == nil || !strings.Contains(err.Error(), "search failed") {
		t.Errorf("Expected search failure, got %v", err)
	}
}

func TestSearchDocumentation_InitializesOnFirstUse(t *testing.T) {
	cfg := useTestSettings(t)

	_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "SWAP"})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if out.TotalHits == 0 {
		t.Fatal("Expected hits for SWAP")
	}

	found := false
	for _, r := range out.Results {
		if r.Record.Title == "NiLang.SWAP" {
			found = true
			if want := cfg.BaseURL + "#NiLang.SWAP-Tuple{Number,Number}"; r.Record.URL != want {
				t.Errorf("URL = %q, want %q", r.Record.URL, want)
			}
			if r.Record.Category != "method" {
				t.Errorf("Category = %q, want method", r.Record.Category)
			}
		}
	}
	if !found {
		t.Errorf("NiLang.SWAP not among results: %+v", out.Results)
	}
	if len(out.SourceURLs) != 1 || out.SourceURLs[0] != cfg.BaseURL {
		t.Errorf("SourceURLs = %v", out.SourceURLs)
	}
}

func TestSearchDocumentation_Filters(t *testing.T) {
	useTestSettings(t)

	tests := []struct {
		name     string
		input    SearchDocumentationInput
		wantHits bool
	}{
		{"method filter keeps methods", SearchDocumentationInput{Query: "shift", Category: "method"}, true},
		{"page filter excludes methods", SearchDocumentationInput{Query: "shift", Category: "page"}, false},
		{"known page", SearchDocumentationInput{Query: "slack", Page: "Home"}, true},
		{"unknown page", SearchDocumentationInput{Query: "slack", Page: "Nowhere"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := SearchDocumentation(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatalf("SearchDocumentation failed: %v", err)
			}
			if got := len(out.Results) > 0; got != tt.wantHits {
				t.Errorf("hits = %d, wantHits %v", len(out.Results), tt.wantHits)
			}
			for _, r := range out.Results {
				if tt.input.Category != "" && r.Record.Category != tt.input.Category {
					t.Errorf("result %s has category %q", r.Record.ID, r.Record.Category)
				}
			}
		})
	}
}

func TestSearchDocumentation_MaxResults(t *testing.T) {
	cfg := useTestSettings(t)
	cfg.MaxResults = 2

	_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "shift"})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if len(out.Results) != 2 {
		t.Errorf("Expected 2 results from configured default, got %d", len(out.Results))
	}

	_, out, err = SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "shift", MaxResults: 1})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if len(out.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(out.Results))
	}
}

// --- Initialization ---

func TestInitializeDocSearch_BuildsOnDiskIndex(t *testing.T) {
	useTestSettings(t)

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch failed: %v", err)
	}

	snap := indexMgr.current.Load()
	if snap == nil {
		t.Fatal("No snapshot after initialization")
	}
	if snap.source != sourceEmbedded {
		t.Errorf("source = %q, want %q", snap.source, sourceEmbedded)
	}
	if !snap.onDisk {
		t.Error("Expected an on-disk index while holding the lock")
	}
	if snap.records.Len() != 18 {
		t.Errorf("records = %d, want 18", snap.records.Len())
	}
	if _, err := os.Stat(indexPath()); err != nil {
		t.Errorf("Index directory missing: %v", err)
	}

	data, err := defaultDataProvider.ReadFile(embeddedIndexFile)
	if err != nil {
		t.Fatal(err)
	}
	stamp := readIndexStamp()
	if stamp.Version != indexing.IndexSchemaVersion {
		t.Errorf("stamp version = %d, want %d", stamp.Version, indexing.IndexSchemaVersion)
	}
	if stamp.Digest != digestOf(data) {
		t.Errorf("stamp digest = %q, want digest of embedded index", stamp.Digest)
	}

	// Second call is a no-op
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("Second InitializeDocSearch failed: %v", err)
	}
	if indexMgr.current.Load() != snap {
		t.Error("Second initialization replaced the snapshot")
	}
}

func TestInitializeDocSearch_ReopensAndRebuilds(t *testing.T) {
	useTestSettings(t)

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch failed: %v", err)
	}
	if err := CloseDocSearch(); err != nil {
		t.Fatalf("CloseDocSearch failed: %v", err)
	}

	// Reopen with a matching stamp
	indexMgr = &indexHolder{}
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	count, err := indexMgr.current.Load().index.DocCount()
	if err != nil || count != 18 {
		t.Errorf("DocCount = %d, %v; want 18", count, err)
	}
	CloseDocSearch()

	// Stale schema version forces a rebuild
	if err := os.WriteFile(filepath.Join(settings.SearchPath(), indexVersionFile), []byte("0 stale\n"), 0644); err != nil {
		t.Fatal(err)
	}
	indexMgr = &indexHolder{}
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if stamp := readIndexStamp(); stamp.Version != indexing.IndexSchemaVersion || stamp.Digest == "stale" {
		t.Errorf("Stamp not rewritten after rebuild: %+v", stamp)
	}
}

func TestInitializeDocSearch_FallsBackToMemoryWhenLocked(t *testing.T) {
	cfg := useTestSettings(t)

	if err := os.MkdirAll(cfg.SearchPath(), 0755); err != nil {
		t.Fatal(err)
	}
	other := flock.New(filepath.Join(cfg.SearchPath(), lockFile))
	if locked, err := other.TryLock(); err != nil || !locked {
		t.Fatalf("Failed to take lock for other holder: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch failed: %v", err)
	}
	snap := indexMgr.current.Load()
	if snap.onDisk {
		t.Error("Expected an in-memory index when the lock is held elsewhere")
	}
	if _, err := os.Stat(indexPath()); !os.IsNotExist(err) {
		t.Errorf("On-disk index should not be touched, stat err = %v", err)
	}

	_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "rotate"})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if out.TotalHits == 0 {
		t.Error("Expected hits from the in-memory index")
	}
}

func TestInitializeDocSearch_CorruptCacheFallsBackToEmbedded(t *testing.T) {
	cfg := useTestSettings(t)

	if err := os.MkdirAll(cfg.DocsPath(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cachePath(), []byte("not zstd"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch failed: %v", err)
	}
	if src := indexMgr.current.Load().source; src != sourceEmbedded {
		t.Errorf("source = %q, want %q", src, sourceEmbedded)
	}
}

func TestInitializeDocSearch_InvalidEmbeddedIndex(t *testing.T) {
	useTestSettings(t)

	mock := NewMockDataProvider()
	mock.AddFile(embeddedIndexFile, []byte(`{"pages": []}`))
	SetDefaultDataProvider(mock)
	defer ResetDefaultDataProvider()

	err := InitializeDocSearch()
	if err == nil || !strings.Contains(err.Error(), "embedded search index is invalid") {
		t.Errorf("Expected invalid embedded index error, got %v", err)
	}
	if indexMgr.current.Load() != nil {
		t.Error("No snapshot should be stored on failure")
	}
}

// --- Refresh ---

func TestRefreshDocumentationIndex(t *testing.T) {
	cfg := useTestSettings(t)

	var body atomic.Value
	var status atomic.Int32
	body.Store(refreshedIndex)
	srv := newIndexServer(t, &body, &status)
	cfg.SourceURL = srv.URL + "/dev/search_index.js"

	ctx := context.Background()

	// Embedded index knows nothing about teleportation
	_, out, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "teleport"})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if out.TotalHits != 0 {
		t.Fatalf("Expected no hits before refresh, got %d", out.TotalHits)
	}

	_, refreshOut, err := RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{})
	if err != nil {
		t.Fatalf("RefreshDocumentationIndex failed: %v", err)
	}
	if !refreshOut.Updated {
		t.Errorf("Expected Updated, got %+v", refreshOut)
	}
	if refreshOut.RecordsIndexed != 2 || refreshOut.Skipped != 1 {
		t.Errorf("RecordsIndexed = %d, Skipped = %d; want 2, 1", refreshOut.RecordsIndexed, refreshOut.Skipped)
	}

	snap := indexMgr.current.Load()
	if snap.source != sourceDownload {
		t.Errorf("source = %q, want %q", snap.source, sourceDownload)
	}

	_, out, err = SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "teleport"})
	if err != nil {
		t.Fatalf("SearchDocumentation failed: %v", err)
	}
	if out.TotalHits == 0 {
		t.Error("Expected hits after refresh")
	}

	cached, err := readCache()
	if err != nil {
		t.Fatalf("readCache failed: %v", err)
	}
	if string(cached) != refreshedIndex {
		t.Error("Cache does not hold the downloaded index")
	}
	meta, err := os.ReadFile(cacheMetaPath())
	if err != nil || !strings.Contains(string(meta), "last_update: ") {
		t.Errorf("Cache metadata missing: %q, %v", meta, err)
	}

	t.Run("fresh cache is not refreshed", func(t *testing.T) {
		_, out, err := RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{})
		if err != nil {
			t.Fatalf("RefreshDocumentationIndex failed: %v", err)
		}
		if out.Updated || !strings.Contains(out.Message, "Cache is fresh") {
			t.Errorf("Expected fresh cache, got %+v", out)
		}
	})

	t.Run("invalid download keeps cache", func(t *testing.T) {
		body.Store("var documenterSearchIndex = {\"docs\": [")
		_, _, err := RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{Force: true})
		if err == nil || !strings.Contains(err.Error(), "invalid") {
			t.Fatalf("Expected invalid index error, got %v", err)
		}
		cached, err := readCache()
		if err != nil || string(cached) != refreshedIndex {
			t.Error("Cache was replaced by an invalid download")
		}
		if indexMgr.current.Load() != snap {
			t.Error("Snapshot was replaced by an invalid download")
		}
	})

	t.Run("server error", func(t *testing.T) {
		status.Store(http.StatusInternalServerError)
		defer status.Store(0)

		_, _, err := RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{Force: true})
		if err == nil || !strings.Contains(err.Error(), "status: 500") {
			t.Errorf("Expected status error, got %v", err)
		}
	})

	t.Run("restart loads cache", func(t *testing.T) {
		if err := CloseDocSearch(); err != nil {
			t.Fatalf("CloseDocSearch failed: %v", err)
		}
		indexMgr = &indexHolder{}

		if err := InitializeDocSearch(); err != nil {
			t.Fatalf("InitializeDocSearch failed: %v", err)
		}
		snap := indexMgr.current.Load()
		if snap.source != sourceCache {
			t.Errorf("source = %q, want %q", snap.source, sourceCache)
		}
		if snap.records.Len() != 2 {
			t.Errorf("records = %d, want 2", snap.records.Len())
		}
	})
}

func TestNeedsRefresh(t *testing.T) {
	cfg := useTestSettings(t)

	if !needsRefresh() {
		t.Error("Missing cache should need refresh")
	}

	if err := writeCache([]byte(refreshedIndex)); err != nil {
		t.Fatalf("writeCache failed: %v", err)
	}
	if needsRefresh() {
		t.Error("Fresh cache should not need refresh")
	}

	old := time.Now().Add(-2 * cfg.CacheTTL)
	if err := os.Chtimes(cacheMetaPath(), old, old); err != nil {
		t.Fatal(err)
	}
	if !needsRefresh() {
		t.Error("Cache older than cache_ttl should need refresh")
	}
}
