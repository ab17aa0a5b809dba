package indexing

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Result limits
const (
	DefaultResults = 10
	MaxResults     = 20
)

// SearchOptions describes a full-text query with optional exact filters.
type SearchOptions struct {
	Query    string
	Category string
	Page     string
	Size     int
}

// ClampSize maps a requested result count to [1, MaxResults], using
// DefaultResults for zero or negative values.
func ClampSize(size int) int {
	if size <= 0 {
		return DefaultResults
	}
	if size > MaxResults {
		return MaxResults
	}
	return size
}

// NewSearchRequest builds the bleve request for opts. Title matches weigh
// most, then keywords, then content.
func NewSearchRequest(opts SearchOptions) *bleve.SearchRequest {
	title := bleve.NewMatchQuery(opts.Query)
	title.SetField("title")
	title.SetBoost(3)

	keywords := bleve.NewMatchQuery(opts.Query)
	keywords.SetField("keywords")
	keywords.SetBoost(2)

	content := bleve.NewMatchQuery(opts.Query)
	content.SetField("content")

	var q query.Query = bleve.NewDisjunctionQuery(title, keywords, content)

	var filters []query.Query
	if opts.Category != "" {
		tq := bleve.NewTermQuery(opts.Category)
		tq.SetField("category")
		filters = append(filters, tq)
	}
	if opts.Page != "" {
		tq := bleve.NewTermQuery(opts.Page)
		tq.SetField("page")
		filters = append(filters, tq)
	}
	if len(filters) > 0 {
		q = bleve.NewConjunctionQuery(append([]query.Query{q}, filters...)...)
	}

	req := bleve.NewSearchRequestOptions(q, ClampSize(opts.Size), 0, false)
	req.Fields = []string{"*"}
	return req
}

// HitToRecord rebuilds an IndexedRecord from the stored fields of a hit.
func HitToRecord(hit *search.DocumentMatch) IndexedRecord {
	rec := IndexedRecord{ID: hit.ID}

	if v, ok := hit.Fields["location"].(string); ok {
		rec.Location = v
	}
	if v, ok := hit.Fields["page"].(string); ok {
		rec.Page = v
	}
	if v, ok := hit.Fields["title"].(string); ok {
		rec.Title = v
	}
	if v, ok := hit.Fields["category"].(string); ok {
		rec.Category = v
	}
	if v, ok := hit.Fields["content"].(string); ok {
		rec.Content = v
	}
	if v, ok := hit.Fields["url"].(string); ok {
		rec.URL = v
	}
	if v, ok := hit.Fields["breadcrumb"].(string); ok {
		rec.Breadcrumb = v
	}
	if v, ok := hit.Fields["position"].(float64); ok {
		rec.Position = int(v)
	}
	if v, ok := hit.Fields["token_count"].(float64); ok {
		rec.TokenCount = int(v)
	}

	// A single-valued array comes back as a plain string.
	switch kw := hit.Fields["keywords"].(type) {
	case string:
		rec.Keywords = []string{kw}
	case []interface{}:
		rec.Keywords = make([]string, 0, len(kw))
		for _, k := range kw {
			if s, ok := k.(string); ok {
				rec.Keywords = append(rec.Keywords, s)
			}
		}
	}

	return rec
}

// Snippet returns the first line of content, shortened to max runes.
func Snippet(content string, max int) string {
	line, _, _ := strings.Cut(content, "\n")
	r := []rune(line)
	if max > 0 && len(r) > max {
		return string(r[:max]) + "…"
	}
	return line
}
