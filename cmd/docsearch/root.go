package main

import (
	"github.com/docsearch/mcp-server/internal/config"
	"github.com/docsearch/mcp-server/internal/logging"
	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/spf13/cobra"
)

var log = logging.For("cli")

type rootOptions struct {
	verbose bool
	baseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "docsearch",
		Short:        "Inspect, validate, search and convert documentation search indexes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if opts.verbose {
				level = "debug"
			}
			if err := logging.Setup(level); err != nil {
				return err
			}
			if opts.baseURL == "" {
				opts.baseURL = cfg.BaseURL
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging (shows skipped records)")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "documentation base URL for result links (default from config)")

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newPagesCmd())
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newConvertCmd())

	return cmd
}

// loadFile parses a search index leniently and logs what was skipped
func loadFile(path string) (*searchindex.Collection, *searchindex.LoadReport, error) {
	c, report, err := searchindex.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range report.Skipped {
		log.Debugf("%s: docs[%d] skipped: %s", path, s.Position, s.Reason)
	}
	if len(report.Skipped) > 0 {
		log.Warnf("%s: skipped %d of %d records", path, len(report.Skipped), report.Total)
	}
	return c, report, nil
}
