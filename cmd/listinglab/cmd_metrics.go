package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

func newCollectCmd(g *globalOptions) *cobra.Command {
	var simulate bool

	cmd := &cobra.Command{
		Use:   "collect <experiment-id>",
		Short: "Pull the latest cumulative metrics of a running experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{simulate: simulate}, runCollect)
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false,
		"substitute synthetic counters when the fetch fails (non-production)")
	return cmd
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <experiment-id>",
		Short: "Run the significance test and record the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{}, runAnalyze)
		},
	}
}

func runCollect(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment) error {
	summary, err := a.engine.CollectMetrics(ctx, exp)
	if err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}

	out := cmd.OutOrStdout()
	if summary.Simulated {
		fmt.Fprintln(out, "WARNING: metrics are SIMULATED, do not base decisions on them")
	}
	fmt.Fprintf(out, "Collected %s: %d impressions, %d clicks, %d conversions, $%.2f revenue (%d variants updated)\n",
		exp.ID, summary.Impressions, summary.Clicks, summary.Conversions, summary.Revenue, summary.VariantsUpdated)
	a.console.PrintExperiment(exp)
	return nil
}

func runAnalyze(ctx context.Context, _ *cobra.Command, a *app, exp *domain.Experiment) error {
	ev, err := a.engine.Evaluate(exp)
	if err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	if err := a.store.SaveEvaluation(ctx, ev); err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	a.console.PrintEvaluation(ev)
	return nil
}
