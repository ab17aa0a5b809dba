package indexing

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
)

// IndexDocuments adds docs to index in batches of BatchSize. progress, when
// non-nil, is called after each submitted batch with the running total.
func IndexDocuments(index bleve.Index, docs []IndexedRecord, progress func(done int)) error {
	batch := index.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to add document %s to batch: %w", doc.ID, err)
		}

		if (i+1)%BatchSize == 0 {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
			if progress != nil {
				progress(i + 1)
			}
		}
	}

	// Submit remaining
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
		if progress != nil {
			progress(len(docs))
		}
	}
	return nil
}

// NewMemIndex builds an in-memory index holding docs.
func NewMemIndex(docs []IndexedRecord) (bleve.Index, error) {
	index, err := bleve.NewMemOnly(NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	if err := IndexDocuments(index, docs, nil); err != nil {
		index.Close()
		return nil, err
	}
	return index, nil
}
