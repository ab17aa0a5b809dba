package indexing

// Document sizing constants
const (
	// TargetRecordTokens is the preferred size of a split part (~2000 chars)
	TargetRecordTokens = 500

	// MaxRecordTokens is the size above which a record's text is split (~3200 chars)
	MaxRecordTokens = 800

	// OverlapTokens is the overlap between consecutive forced splits (~400 chars)
	OverlapTokens = 100

	// CharsPerToken is the approximation for token estimation
	CharsPerToken = 4

	// BatchSize is the number of documents submitted per bleve batch
	BatchSize = 100

	// IndexSchemaVersion increments when the indexed document shape or mapping changes
	// v1: records with keyword category/page/location fields
	IndexSchemaVersion = 1
)
