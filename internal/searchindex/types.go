package searchindex

// Record categories emitted by the documentation generator. Other values are
// kept verbatim.
const (
	CategoryPage    = "page"
	CategorySection = "section"
	CategoryMethod  = "method"
)

// DefaultVariable is the variable the generator binds the index to.
const DefaultVariable = "documenterSearchIndex"

// recordFields lists the required record keys in emission order.
var recordFields = [...]string{"location", "page", "title", "text", "category"}

// Record is a single search entry: a page, a section heading or a documented
// symbol.
type Record struct {
	Location string `json:"location" yaml:"location"` // "#anchor" on the root page, or "path/#anchor"
	Page     string `json:"page" yaml:"page"`
	Title    string `json:"title" yaml:"title"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category" yaml:"category"`
}

// Collection is an ordered, read-only set of records. A record's identity is
// its position.
type Collection struct {
	Variable string
	records  []Record
}

// NewCollection copies records into a new collection bound to variable.
// An empty variable name falls back to DefaultVariable.
func NewCollection(variable string, records []Record) *Collection {
	if variable == "" {
		variable = DefaultVariable
	}
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Collection{Variable: variable, records: cp}
}

// Len returns the number of records.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// At returns the record at position i.
func (c *Collection) At(i int) Record {
	return c.records[i]
}

// Records returns a copy of all records in order.
func (c *Collection) Records() []Record {
	if c == nil {
		return nil
	}
	cp := make([]Record, len(c.records))
	copy(cp, c.records)
	return cp
}

// SkippedEntry describes an entry of the docs array that was not accepted.
type SkippedEntry struct {
	Position int    `json:"position" yaml:"position"`
	Reason   string `json:"reason" yaml:"reason"`
}

// LoadReport summarizes a lenient load.
type LoadReport struct {
	Total    int            `json:"total" yaml:"total"`
	Accepted int            `json:"accepted" yaml:"accepted"`
	Skipped  []SkippedEntry `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}
