package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	app "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/policy"
)

func newLeaderboardCommand(e *env) *cobra.Command {
	var (
		population string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the overall leaderboard",
		Long: `Print the overall leaderboard across every frozen or evaluated round.

Use --population active to rank only teams still in the competition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pop, err := leaderboard.ParsePopulation(population)
			if err != nil {
				return err
			}
			return e.withService(cmd.Context(), func(svc *app.Service) error {
				standings, err := svc.Leaderboard(cmd.Context(), policy.System, pop)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(standings)
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tTEAM\tNAME\tSTATUS\tSCORE\tROUNDS")
				for _, s := range standings {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%d\n", s.Rank, s.TeamKey, s.TeamName, s.Status, s.Overall, s.RoundsCounted)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&population, "population", string(leaderboard.PopulationAll), "Teams to rank: all or active")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
