package indexing

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// NewIndexMapping returns the bleve mapping for IndexedRecord documents.
// category, page and location are indexed verbatim so they can be used as
// exact filters; title, content and keywords are analyzed for full-text search.
func NewIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	keyword := bleve.NewKeywordFieldMapping()

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.IncludeInAll = false

	number := bleve.NewNumericFieldMapping()
	number.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("keywords", text)
	doc.AddFieldMappingsAt("category", keyword)
	doc.AddFieldMappingsAt("page", keyword)
	doc.AddFieldMappingsAt("location", keyword)
	doc.AddFieldMappingsAt("id", storedOnly)
	doc.AddFieldMappingsAt("url", storedOnly)
	doc.AddFieldMappingsAt("breadcrumb", storedOnly)
	doc.AddFieldMappingsAt("position", number)
	doc.AddFieldMappingsAt("token_count", number)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}
