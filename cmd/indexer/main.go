package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/docsearch/mcp-server/internal/config"
	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/docsearch/mcp-server/internal/logging"
	"github.com/docsearch/mcp-server/internal/searchindex"
	"golang.org/x/sync/errgroup"
)

var log = logging.For("indexer")

type parsed struct {
	records *searchindex.Collection
	report  *searchindex.LoadReport
	digest  string
}

func parseAll(ctx context.Context, files []string) ([]parsed, error) {
	results := make([]parsed, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			c, report, err := searchindex.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			sum := sha256.Sum256(data)
			results[i] = parsed{records: c, report: report, digest: hex.EncodeToString(sum[:])}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <index-dir> <search_index.js>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s search/index tools/data/search_index.js\n", os.Args[0])
		os.Exit(1)
	}

	indexDir := os.Args[1]
	files := os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("Invalid log_level %q: %v", cfg.LogLevel, err)
	}

	log.Infof("Documentation Indexer v%d", indexing.IndexSchemaVersion)
	log.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// Step 1: Parse search indexes
	startTime := time.Now()
	results, err := parseAll(context.Background(), files)
	if err != nil {
		log.Fatalf("Failed to parse search index: %v", err)
	}

	var all []searchindex.Record
	skipped := 0
	for i, r := range results {
		log.Infof("✓ Parsed %s: %d records (%d skipped)", files[i], r.records.Len(), len(r.report.Skipped))
		for _, s := range r.report.Skipped {
			log.Debugf("  docs[%d]: %s", s.Position, s.Reason)
		}
		all = append(all, r.records.Records()...)
		skipped += len(r.report.Skipped)
	}

	// Positions continue across files so document IDs stay unique
	merged := searchindex.NewCollection(results[0].records.Variable, all)
	docs := indexing.BuildDocuments(merged, cfg.BaseURL)

	totalTokens := 0
	for _, doc := range docs {
		totalTokens += doc.TokenCount
	}
	avgTokens := 0
	if len(docs) > 0 {
		avgTokens = totalTokens / len(docs)
	}
	log.Infof("✓ %d records -> %d documents (avg: %d tokens) in %v",
		merged.Len(), len(docs), avgTokens, time.Since(startTime).Round(time.Millisecond))

	// Step 2: Remove existing index
	if err := os.RemoveAll(indexDir); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove old index: %v", err)
	}

	// Create parent directory
	if err := os.MkdirAll(filepath.Dir(indexDir), 0755); err != nil {
		log.Fatalf("Failed to create index directory: %v", err)
	}

	// Step 3: Create new index
	log.Infof("Creating search index: %s", indexDir)
	index, err := bleve.New(indexDir, indexing.NewIndexMapping())
	if err != nil {
		log.Fatalf("Failed to create index: %v", err)
	}

	// Step 4: Index documents in batches
	log.Infof("Indexing %d documents...", len(docs))
	err = indexing.IndexDocuments(index, docs, func(done int) {
		log.Infof("  Indexed %d/%d documents...", done, len(docs))
	})
	if err != nil {
		index.Close()
		log.Fatalf("Failed to index documents: %v", err)
	}

	if err := index.Close(); err != nil {
		log.Fatalf("Failed to close index: %v", err)
	}

	// Step 5: Write version file. The digest lets the server reuse this
	// index for the same single input.
	digest := ""
	if len(results) == 1 {
		digest = results[0].digest
	}
	versionFile := filepath.Join(filepath.Dir(indexDir), ".index_version")
	versionContent := fmt.Sprintf("%d %s\n", indexing.IndexSchemaVersion, digest)
	if err := os.WriteFile(versionFile, []byte(versionContent), 0644); err != nil {
		log.Warnf("Failed to write version file: %v", err)
	} else {
		log.Infof("✓ Index schema version: v%d", indexing.IndexSchemaVersion)
	}

	log.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info("✓ Indexing complete!")
	log.Info("")
	log.Info("Index details:")
	log.Infof("  Location:   %s", indexDir)
	log.Infof("  Inputs:     %d file(s)", len(files))
	log.Infof("  Records:    %d (%d skipped)", merged.Len(), skipped)
	log.Infof("  Documents:  %d", len(docs))
	log.Infof("  Avg size:   %d tokens (~%d chars)", avgTokens, avgTokens*indexing.CharsPerToken)
}
