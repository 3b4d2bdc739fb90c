package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"forum-admission/internal/config"
)

func newRulesCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the normalized admission rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			routes, err := cfg.RateLimit.Routes()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RULE\tMETHOD\tPATTERN\tSTRATEGY\tLIMIT\tINTERVAL\tPER")
			for _, rt := range routes {
				per := "identity"
				if rt.ExtraParam != "" {
					per = "identity+" + rt.ExtraParam
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					rt.Rule.Name, rt.Method, rt.Pattern, rt.Rule.Strategy, rt.Rule.Limit, rt.Rule.Interval, per)
			}
			return tw.Flush()
		},
	}
}
