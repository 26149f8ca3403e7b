package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/trustlens/evidence-verifier/internal/analysis"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/toxicity"
	"github.com/trustlens/evidence-verifier/internal/verify"
)

func analyzeCommand() *cobra.Command {
	var (
		flags inputFlags
		tone  string
	)

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Run the full evidence pipeline on comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := flags.load(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			service, err := newAnalysisService(cfg)
			if err != nil {
				return err
			}

			comments := make([]models.Comment, len(texts))
			tones := make([]models.Tone, len(texts))
			for i, text := range texts {
				comments[i] = models.Comment{ID: fmt.Sprintf("c%d", i+1), Text: text}
				tones[i] = models.Tone(tone)
			}

			analyses, err := service.AnalyzeComments(cmd.Context(), comments)
			if err != nil {
				return err
			}
			service.ApplyToxicity(cmd.Context(), analyses, tones)

			if flags.table {
				renderAnalyses(cmd, analyses)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), flags.out, flags.pretty, analyses)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&tone, "tone", "", "toxicity tone for every text (red, yellow, green)")
	return cmd
}

func newAnalysisService(cfg *config.Config, opts ...analysis.Option) (*analysis.Service, error) {
	scorer := toxicity.NewClient(cfg.ToxicityURL, 30*time.Second, toxicity.Banding{
		Red:    cfg.ToxicityRedThreshold,
		Yellow: cfg.ToxicityYellowThreshold,
	})
	if scorer.IsEnabled() {
		opts = append(opts, analysis.WithToxicity(scorer))
	}

	return analysis.NewService(cfg, verify.NewFromConfig(cfg), opts...)
}

func renderAnalyses(cmd *cobra.Command, analyses []models.CommentAnalysis) {
	t := newTable(cmd.OutOrStdout(), table.Row{"ID", "Status", "Badge", "Heuristic", "Detail", "Text"})
	for _, a := range analyses {
		badge := ""
		if a.Badge != nil {
			badge = string(a.Badge.Color)
		}
		t.AppendRow(table.Row{
			a.CommentID,
			a.Status,
			badge,
			fmt.Sprintf("%.2f", a.Heuristics.Score),
			a.TooltipDetail,
			preview(a.Text),
		})
	}
	t.AppendFooter(table.Row{"Total", len(analyses)})
	t.Render()
}
