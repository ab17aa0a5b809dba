package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/docsearch/mcp-server/internal/indexing"
	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a search index against its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			violations, err := searchindex.Validate(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				c, _, err := searchindex.Parse(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: valid (%d records)\n", args[0], c.Len())
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(out, "%s: %s\n", args[0], v)
			}
			return fmt.Errorf("%s: %d schema violation(s)", args[0], len(violations))
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Count records per category and page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, report, err := loadFile(args[0])
			if err != nil {
				return err
			}
			stats := c.Stats()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "variable\t%s\n", c.Variable)
			fmt.Fprintf(w, "records\t%d\n", stats.Records)
			fmt.Fprintf(w, "skipped\t%d\n", len(report.Skipped))
			fmt.Fprintf(w, "pages\t%d\n", stats.Pages)
			for _, cat := range sortedKeys(stats.ByCategory) {
				fmt.Fprintf(w, "category %s\t%d\n", cat, stats.ByCategory[cat])
			}
			return w.Flush()
		},
	}
}

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <file>",
		Short: "List pages in first-seen order with their record counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadFile(args[0])
			if err != nil {
				return err
			}
			stats := c.Stats()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, page := range c.Pages() {
				fmt.Fprintf(w, "%s\t%d\n", page, stats.ByPage[page])
			}
			return w.Flush()
		},
	}
}

type searchOptions struct {
	category string
	page     string
	limit    int
	exact    bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Full-text search a search index",
		Example: `  docsearch search search_index.js shift
  docsearch search search_index.js rotate --category method --limit 3
  docsearch search search_index.js NiLang.SWAP --exact`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.exact {
				return printExact(out, c, args[1], opts, root.baseURL)
			}
			return printFullText(out, c, args[1], opts, root.baseURL)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "only records of this category")
	cmd.Flags().StringVar(&opts.page, "page", "", "only records of this page")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", indexing.DefaultResults, fmt.Sprintf("maximum number of results (0 means %d, at most %d)", indexing.DefaultResults, indexing.MaxResults))
	cmd.Flags().BoolVar(&opts.exact, "exact", false, "case-insensitive substring match on titles and texts instead of ranked search")
	return cmd
}

// printExact lists substring matches in record order
func printExact(out io.Writer, c *searchindex.Collection, query string, opts *searchOptions, baseURL string) error {
	limit := indexing.ClampSize(opts.limit)
	n := 0
	for _, r := range c.Find(query) {
		if opts.category != "" && r.Category != opts.category {
			continue
		}
		if opts.page != "" && r.Page != opts.page {
			continue
		}
		if n >= limit {
			break
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.Category, indexing.Breadcrumb(r.Page, r.Title), indexing.BuildURL(baseURL, r.Location))
		n++
	}
	if n == 0 {
		fmt.Fprintln(out, "no matches")
	}
	return nil
}

// printFullText ranks matches with an in-memory bleve index
func printFullText(out io.Writer, c *searchindex.Collection, query string, opts *searchOptions, baseURL string) error {
	index, err := indexing.NewMemIndex(indexing.BuildDocuments(c, baseURL))
	if err != nil {
		return err
	}
	defer index.Close()

	res, err := index.Search(indexing.NewSearchRequest(indexing.SearchOptions{
		Query:    query,
		Category: opts.category,
		Page:     opts.page,
		Size:     opts.limit,
	}))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(res.Hits) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}

	for _, hit := range res.Hits {
		rec := indexing.HitToRecord(hit)
		fmt.Fprintf(out, "%.3f\t%s\t%s\t%s\n", hit.Score, rec.Category, rec.Breadcrumb, rec.URL)
		if snippet := indexing.Snippet(rec.Content, 120); snippet != "" {
			fmt.Fprintf(out, "\t%s\n", strings.ReplaceAll(snippet, "\n", " "))
		}
	}
	return nil
}

func newConvertCmd() *cobra.Command {
	var to, output string

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Re-encode a search index as JSON, a script assignment or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch to {
			case "json", "js", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want json, js or yaml)", to)
			}

			c, _, err := loadFile(args[0])
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return encodeAs(cmd.OutOrStdout(), c, to)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := writeAndClose(f, c, to); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "json", "output format: json, js or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	return cmd
}

func encodeAs(w io.Writer, c *searchindex.Collection, format string) error {
	switch format {
	case "json":
		return c.Encode(w)
	case "js":
		return c.WriteScript(w)
	default:
		return c.EncodeYAML(w)
	}
}

// writeAndClose encodes c to wc and closes it. A close error is reported
// when the encode succeeded.
func writeAndClose(wc io.WriteCloser, c *searchindex.Collection, format string) error {
	err := encodeAs(wc, c, format)
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	return err
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
