package indexing

// IndexedRecord is the document stored in the bleve index for one search
// record, or one part of a record whose text was split.
type IndexedRecord struct {
	ID         string   `json:"id"`
	Position   int      `json:"position"` // Index of the source record in its collection
	Location   string   `json:"location"`
	Page       string   `json:"page"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Content    string   `json:"content"`               // Record text with padding newlines removed
	URL        string   `json:"url,omitempty"`
	Breadcrumb string   `json:"breadcrumb,omitempty"`  // "Page > Title"
	Keywords   []string `json:"keywords,omitempty"`
	TokenCount int      `json:"token_count,omitempty"`
}
