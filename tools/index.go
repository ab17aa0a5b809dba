package tools

import (
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/docsearch/mcp-server/internal/searchindex"
)

// Index is an interface that abstracts bleve.Index operations
// This allows for easier testing with mocks
type Index interface {
	// Search executes a search request
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)

	// DocCount returns the number of documents in the index
	DocCount() (uint64, error)

	// Close closes the index
	Close() error
}

// bleveIndexWrapper wraps a bleve.Index to implement our Index interface
type bleveIndexWrapper struct {
	index bleve.Index
}

// NewBleveIndexWrapper wraps a bleve.Index
func NewBleveIndexWrapper(index bleve.Index) Index {
	return &bleveIndexWrapper{index: index}
}

func (w *bleveIndexWrapper) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return w.index.Search(req)
}

func (w *bleveIndexWrapper) DocCount() (uint64, error) {
	return w.index.DocCount()
}

func (w *bleveIndexWrapper) Close() error {
	return w.index.Close()
}

// Where a snapshot's records came from
const (
	sourceEmbedded = "embedded"
	sourceCache    = "cache"
	sourceDownload = "download"
)

// snapshot pairs a full-text index with the collection it was built from.
// Snapshots are immutable and replaced as a whole on refresh.
type snapshot struct {
	index    Index
	records  *searchindex.Collection
	source   string
	onDisk   bool
	loadedAt time.Time

	// refs counts readers plus one for the holder while installed. The
	// index is closed when it drops to zero and never reopened.
	refs     atomic.Int64
	closed   chan struct{}
	closeErr error
}

func newSnapshot(index Index, records *searchindex.Collection, source string, onDisk bool) *snapshot {
	s := &snapshot{
		index:    index,
		records:  records,
		source:   source,
		onDisk:   onDisk,
		loadedAt: time.Now(),
		closed:   make(chan struct{}),
	}
	s.refs.Store(1)
	return s
}

// tryAcquire takes a read reference. It fails once the index is closed.
func (s *snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and closes the index with the last one
func (s *snapshot) release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	s.closeErr = s.index.Close()
	if s.closeErr != nil {
		logger.Warnf("Error closing index: %v", s.closeErr)
	} else {
		logger.Debugf("✓ Index loaded at %s closed", s.loadedAt.Format(time.RFC3339))
	}
	close(s.closed)
}
