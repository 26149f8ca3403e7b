package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/trustlens/evidence-verifier/internal/analysis"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/sources"
	"github.com/trustlens/evidence-verifier/internal/storage"
)

func ingestCommand() *cobra.Command {
	var (
		limit  int
		store  bool
		out    string
		pretty bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ingest SOURCE TARGET",
		Short: "Fetch a discussion thread and analyze its comments",
		Long: `Fetch the comments of a Reddit or Hacker News thread and run them as one batch.

TARGET is a thread URL, a permalink or a bare thread id.`,
		Example: `  trustlens ingest reddit https://www.reddit.com/r/science/comments/abc123/
  trustlens ingest hackernews 8863 --limit 50 --store`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			opts := []analysis.Option{analysis.WithSources(sources.FromConfig(cfg)...)}
			if store {
				backend, err := storage.New(cfg)
				if err != nil {
					return err
				}
				opts = append(opts, analysis.WithStorage(backend))
			}

			service, err := newAnalysisService(cfg, opts...)
			if err != nil {
				return err
			}

			report, err := service.Ingest(cmd.Context(), args[0], args[1], limit)
			if err != nil {
				return err
			}

			if asJSON || out != "" {
				return writeJSON(cmd.OutOrStdout(), out, pretty, report)
			}
			renderReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of comments (default: MAX_SOURCE_COMMENTS)")
	cmd.Flags().BoolVar(&store, "store", false, "persist the report to the configured storage backend")
	cmd.Flags().StringVar(&out, "out", "", "write the report as JSON to this path")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON instead of a summary")
	return cmd
}

func renderReport(cmd *cobra.Command, report *models.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Report %s from %s: %d comments in %s\n", report.ID, report.Source, report.TotalComments, report.Duration)

	t := newTable(w, table.Row{"Status", "Comments"})
	statuses := make([]string, 0, len(report.Summary.StatusCounts))
	for status := range report.Summary.StatusCounts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		t.AppendRow(table.Row{status, report.Summary.StatusCounts[models.EvidenceStatus(status)]})
	}
	t.AppendFooter(table.Row{"URLs verified", fmt.Sprintf("%d/%d", report.Summary.URLsVerified, report.Summary.URLsChecked)})
	t.Render()

	for _, category := range report.Summary.TopCategories {
		fmt.Fprintf(w, "  %s\n", category)
	}
}
