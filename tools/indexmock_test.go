package tools

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/docsearch/mcp-server/internal/config"
	"github.com/docsearch/mcp-server/internal/searchindex"
)

// mockIndex is a simple in-memory mock of the Index interface for testing
type mockIndex struct {
	id          int
	docCount    uint64
	searchError error
	closeError  error
	closed      atomic.Bool
}

// newMockIndex creates a new mock index with the given ID
func newMockIndex(id int) *mockIndex {
	return &mockIndex{
		id:       id,
		docCount: 18, // Records in the embedded sample
	}
}

func (m *mockIndex) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("index closed")
	}
	if m.searchError != nil {
		return nil, m.searchError
	}
	// Return minimal valid search result (nil hits is valid)
	return &bleve.SearchResult{
		Request: req,
		Total:   m.docCount,
	}, nil
}

func (m *mockIndex) DocCount() (uint64, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("index closed")
	}
	return m.docCount, nil
}

func (m *mockIndex) Close() error {
	if m.closed.Load() {
		return fmt.Errorf("already closed")
	}
	m.closed.Store(true)
	return m.closeError
}

// IsClosed returns true if the index has been closed
func (m *mockIndex) IsClosed() bool {
	return m.closed.Load()
}

// mockSnapshot wraps idx in a snapshot over an empty collection
func mockSnapshot(idx Index) *snapshot {
	return newSnapshot(idx, searchindex.NewCollection("", nil), sourceEmbedded, false)
}

// useTestSettings points the package at a fresh data dir and index holder
// for the duration of the test
func useTestSettings(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.BaseURL = "https://docs.example.org/dev/"
	cfg.LockTimeout = 200 * time.Millisecond
	cfg.HTTPTimeout = 5 * time.Second

	oldSettings, oldMgr := settings, indexMgr
	settings = cfg
	indexMgr = &indexHolder{}

	t.Cleanup(func() {
		CloseDocSearch()
		settings = oldSettings
		indexMgr = oldMgr
	})
	return cfg
}
