package tools

import (
	"embed"
)

// The search index shipped with the binary, so the server answers queries
// offline before the first refresh.
//
//go:embed data/search_index.js
var embeddedFS embed.FS

const embeddedIndexFile = "data/search_index.js"

// embeddedDataProvider implements DataProvider using embed.FS.
type embeddedDataProvider struct {
	fs embed.FS
}

// NewEmbeddedDataProvider creates a production DataProvider that uses embedded files.
func NewEmbeddedDataProvider() DataProvider {
	return &embeddedDataProvider{fs: embeddedFS}
}

// ReadFile reads the named file from the embedded filesystem.
func (p *embeddedDataProvider) ReadFile(name string) ([]byte, error) {
	return p.fs.ReadFile(name)
}

// Default provider used by package-level functions
var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
