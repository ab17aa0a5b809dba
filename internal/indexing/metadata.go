package indexing

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var blankRunRegex = regexp.MustCompile(`\n{3,}`)

// CleanText trims the trailing blank lines the generator pads docstrings
// with and collapses longer blank runs to a single empty line.
// Example: "CONJ(a!) -> a!'\n\n\n\n\n\n" -> "CONJ(a!) -> a!'"
func CleanText(text string) string {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	return blankRunRegex.ReplaceAllString(text, "\n\n")
}

// EstimateTokens estimates the token count for a text string
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "as": true, "by": true, "is": true,
	"it": true, "be": true, "with": true, "from": true, "that": true,
	"can": true, "our": true, "this": true,
}

// splitWords breaks s on anything but letters and digits, so that qualified
// names like "NiLang.arshift" yield "nilang" and "arshift".
func splitWords(s string) []string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ExtractKeywords extracts key terms from the title and the start of the
// content. Title terms come first and order is stable.
func ExtractKeywords(title, content string) []string {
	words := splitWords(title)

	contentPreview := content
	if len(contentPreview) > 200 {
		contentPreview = contentPreview[:200]
	}
	words = append(words, splitWords(contentPreview)...)

	seen := make(map[string]bool)
	keywords := make([]string, 0, 10)
	for _, word := range words {
		if len([]rune(word)) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == 10 {
			break
		}
	}

	return keywords
}

// BuildURL joins the documentation base URL and a record location. An anchor
// is appended to the base URL; any other location is a path relative to it.
// Example: ("https://example.org/dev/", "#NiLang.NEG-Tuple{Number}") -> "https://example.org/dev/#NiLang.NEG-Tuple{Number}"
// Example: ("https://example.org/dev", "man/guide/#Guide") -> "https://example.org/dev/man/guide/#Guide"
func BuildURL(baseURL, location string) string {
	if baseURL == "" {
		return location
	}
	baseURL = strings.TrimRight(baseURL, "#")
	if location == "" || location == "#" {
		return baseURL
	}
	if strings.HasPrefix(location, "#") {
		return baseURL + location
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(location, "/")
}

// Breadcrumb renders "Page > Title", dropping empty or repeated parts.
func Breadcrumb(page, title string) string {
	var parts []string
	if page != "" {
		parts = append(parts, page)
	}
	if title != "" && title != page {
		parts = append(parts, title)
	}
	return strings.Join(parts, " > ")
}

// EnrichMetadata adds breadcrumb, keywords, URL, and token count to a document
func EnrichMetadata(doc *IndexedRecord, baseURL string) {
	doc.Breadcrumb = Breadcrumb(doc.Page, doc.Title)
	doc.URL = BuildURL(baseURL, doc.Location)
	doc.Keywords = ExtractKeywords(doc.Title, doc.Content)
	doc.TokenCount = EstimateTokens(doc.Content)
}
