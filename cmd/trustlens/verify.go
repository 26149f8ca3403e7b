package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/verify"
)

func verifyCommand() *cobra.Command {
	var (
		out    string
		pretty bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "verify URL...",
		Short: "Check that URLs are public, reachable and classify them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			results := verify.NewFromConfig(cfg).VerifyAll(cmd.Context(), args)

			if asJSON || out != "" {
				return writeJSON(cmd.OutOrStdout(), out, pretty, results)
			}
			renderResults(cmd, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write JSON output to this path")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderResults(cmd *cobra.Command, results []models.VerificationResult) {
	t := newTable(cmd.OutOrStdout(), table.Row{"URL", "Verified", "Status", "Category", "Confidence", "Reason"})

	verified := 0
	for _, r := range results {
		if r.Verified {
			verified++
		}
		status := "-"
		if r.StatusCode > 0 {
			status = fmt.Sprint(r.StatusCode)
		}
		t.AppendRow(table.Row{
			r.InputURL,
			r.Verified,
			status,
			r.Category,
			fmt.Sprintf("%.2f", r.Confidence),
			r.Reason,
		})
	}
	t.AppendFooter(table.Row{"Verified", fmt.Sprintf("%d/%d", verified, len(results))})
	t.Render()
}
