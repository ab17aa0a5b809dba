package indexing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docsearch/mcp-server/internal/searchindex"
)

// SplitText splits text by character count at word boundaries. Consecutive
// parts share overlapChars characters. Cuts never fall inside a UTF-8 sequence.
func SplitText(text string, maxChars, overlapChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if overlapChars > maxChars/2 {
		overlapChars = maxChars / 2
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxChars {
			parts = append(parts, text)
			break
		}

		cut := maxChars
		// Look back for space or newline
		for i := cut; i > cut-100 && i > 0; i-- {
			if text[i] == ' ' || text[i] == '\n' {
				cut = i
				break
			}
		}
		for cut > 1 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		parts = append(parts, text[:cut])

		next := cut - overlapChars
		if next <= 0 {
			next = cut
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		text = text[next:]
	}

	return parts
}

// splitContent groups paragraphs into parts of about TargetRecordTokens.
// Paragraphs that are too large on their own are force-split.
func splitContent(content string) []string {
	maxChars := MaxRecordTokens * CharsPerToken
	overlapChars := OverlapTokens * CharsPerToken

	var parts []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if EstimateTokens(para) > MaxRecordTokens {
			flush()
			parts = append(parts, SplitText(para, maxChars, overlapChars)...)
			continue
		}

		if current.Len() > 0 && EstimateTokens(current.String())+EstimateTokens(para) > TargetRecordTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return parts
}

// RecordID returns the document ID of the record at position.
func RecordID(position int) string {
	return fmt.Sprintf("rec_%d", position)
}

// BuildDocuments converts a collection into index documents. Records whose
// text exceeds MaxRecordTokens become several documents with "_sub<n>" IDs.
func BuildDocuments(c *searchindex.Collection, baseURL string) []IndexedRecord {
	docs := make([]IndexedRecord, 0, c.Len())

	for i := 0; i < c.Len(); i++ {
		rec := c.At(i)
		base := IndexedRecord{
			ID:       RecordID(i),
			Position: i,
			Location: rec.Location,
			Page:     rec.Page,
			Title:    rec.Title,
			Category: rec.Category,
			Content:  CleanText(rec.Text),
		}

		if EstimateTokens(base.Content) <= MaxRecordTokens {
			EnrichMetadata(&base, baseURL)
			docs = append(docs, base)
			continue
		}

		for n, part := range splitContent(base.Content) {
			sub := base
			sub.ID = fmt.Sprintf("%s_sub%d", base.ID, n)
			sub.Content = part
			EnrichMetadata(&sub, baseURL)
			docs = append(docs, sub)
		}
	}

	return docs
}
