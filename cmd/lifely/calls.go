package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lifely/lifely/internal/database"
)

func callsCmd() *cobra.Command {
	var (
		query  database.CallQuery
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Show recorded inference calls and their cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()
			if a.db == nil {
				return errNoDatabase
			}

			repo := database.NewInferenceLogRepository(a.db)
			stats, err := repo.GetStats(ctx, query.RunID)
			if err != nil {
				return err
			}
			calls, err := repo.List(ctx, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"stats": stats, "calls": calls})
			}

			fmt.Fprintf(out, "calls: %d (%d ok, %d failed)  tokens: %d in / %d out  cost: $%.4f  avg latency: %.0fms\n\n",
				stats.TotalCalls, stats.SuccessfulCalls, stats.FailedCalls,
				stats.InputTokens, stats.OutputTokens, stats.TotalCostUSD, stats.AvgLatencyMs)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRUN\tOPERATION\tMODEL\tATTEMPT\tSTATUS\tLATENCY")
			for _, c := range calls {
				status := c.Status
				if c.ErrorKind != "" {
					status += " (" + c.ErrorKind + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%dms\n",
					c.CreatedAt.Format("2006-01-02 15:04:05"), shortID(c.RunID), c.Operation, c.Model, c.Attempt, status, c.LatencyMs)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&query.RunID, "run", "", "only calls from this run id")
	cmd.Flags().StringVar(&query.Model, "model", "", "only calls to this model")
	cmd.Flags().StringVar(&query.Operation, "operation", "", "only calls for this operation")
	cmd.Flags().StringVar(&query.Status, "status", "", "only calls with this status (success or error)")
	cmd.Flags().IntVar(&query.Limit, "limit", 50, "maximum calls to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
