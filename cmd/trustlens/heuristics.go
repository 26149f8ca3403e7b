package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/trustlens/evidence-verifier/internal/heuristics"
	"github.com/trustlens/evidence-verifier/internal/models"
)

type heuristicItem struct {
	Text string `json:"text"`
	models.HeuristicScore
}

type heuristicOutput struct {
	Count   int             `json:"count"`
	Results []heuristicItem `json:"results"`
}

func heuristicsCommand() *cobra.Command {
	var flags inputFlags

	cmd := &cobra.Command{
		Use:   "heuristics [text...]",
		Short: "Score texts for evidence cues without network access",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := flags.load(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			scorer := heuristics.NewScorer()
			output := heuristicOutput{Results: make([]heuristicItem, 0, len(texts))}
			for _, text := range texts {
				output.Results = append(output.Results, heuristicItem{Text: text, HeuristicScore: scorer.Score(text)})
			}
			output.Count = len(output.Results)

			if flags.table {
				renderHeuristics(cmd, output)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), flags.out, flags.pretty, output)
		},
	}

	flags.register(cmd)
	return cmd
}

func renderHeuristics(cmd *cobra.Command, output heuristicOutput) {
	t := newTable(cmd.OutOrStdout(), table.Row{"#", "Score", "Links", "Tips", "Text"})
	for i, item := range output.Results {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%.2f", item.Score),
			item.Raw["linksCount"],
			fmt.Sprint(item.Tips),
			preview(item.Text),
		})
	}
	t.AppendFooter(table.Row{"Total", output.Count})
	t.Render()
}
