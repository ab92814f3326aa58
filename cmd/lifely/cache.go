package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the enrichment cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show how many answers are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			cache, err := a.cache(cmd.Context())
			if err != nil {
				return err
			}
			s := cache.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "driver:          %s\n", a.cfg.Cache.Driver)
			fmt.Fprintf(cmd.OutOrStdout(), "locations:       %d\n", s.Locations)
			fmt.Fprintf(cmd.OutOrStdout(), "classifications: %d\n", s.Classifications)
			fmt.Fprintf(cmd.OutOrStdout(), "insights:        %d\n", s.Insights)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every cached answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			cache, err := a.cache(cmd.Context())
			if err != nil {
				return err
			}
			if err := cache.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})

	return cmd
}
