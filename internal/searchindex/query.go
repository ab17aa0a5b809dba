package searchindex

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Pages returns the distinct page names in first-seen order.
func (c *Collection) Pages() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var pages []string
	for _, r := range c.records {
		if _, ok := seen[r.Page]; ok {
			continue
		}
		seen[r.Page] = struct{}{}
		pages = append(pages, r.Page)
	}
	return pages
}

// ByPage returns the records of page in order.
func (c *Collection) ByPage(page string) []Record {
	return c.filter(func(r Record) bool { return r.Page == page })
}

// ByCategory returns the records with the given category in order.
func (c *Collection) ByCategory(category string) []Record {
	return c.filter(func(r Record) bool { return r.Category == category })
}

// Lookup returns the records whose location equals location. When nothing
// matches and location has no leading "#", it is retried as a same-page
// anchor.
func (c *Collection) Lookup(location string) []Record {
	found := c.filter(func(r Record) bool { return r.Location == location })
	if len(found) > 0 || strings.HasPrefix(location, "#") {
		return found
	}
	anchor := "#" + location
	return c.filter(func(r Record) bool { return r.Location == anchor })
}

// Find returns records whose title or text contains query, ignoring case and
// Unicode compatibility differences. An empty query matches nothing.
func (c *Collection) Find(query string) []Record {
	needle := fold(query)
	if needle == "" {
		return nil
	}
	return c.filter(func(r Record) bool {
		return strings.Contains(fold(r.Title), needle) || strings.Contains(fold(r.Text), needle)
	})
}

func (c *Collection) filter(keep func(Record) bool) []Record {
	if c == nil {
		return nil
	}
	var out []Record
	for _, r := range c.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Stats holds record counts.
type Stats struct {
	Records    int            `json:"records" yaml:"records"`
	Pages      int            `json:"pages" yaml:"pages"`
	ByCategory map[string]int `json:"by_category" yaml:"by_category"`
	ByPage     map[string]int `json:"by_page" yaml:"by_page"`
}

// Stats counts records per category and per page.
func (c *Collection) Stats() Stats {
	s := Stats{
		Records:    c.Len(),
		ByCategory: make(map[string]int),
		ByPage:     make(map[string]int),
	}
	if c == nil {
		return s
	}
	for _, r := range c.records {
		s.ByCategory[r.Category]++
		s.ByPage[r.Page]++
	}
	s.Pages = len(s.ByPage)
	return s
}
