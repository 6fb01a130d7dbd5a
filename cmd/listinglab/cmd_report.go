package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, g, status)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: DRAFT|RUNNING|COMPLETED|CANCELLED")
	return cmd
}

func newShowCmd(g *globalOptions) *cobra.Command {
	var historyDays int

	cmd := &cobra.Command{
		Use:   "show <experiment-id>",
		Short: "Show an experiment, its variants and recent evaluations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, g, args[0], historyDays)
		},
	}
	cmd.Flags().IntVar(&historyDays, "history-days", 30, "days of evaluation history to print")
	return cmd
}

func runList(cmd *cobra.Command, g *globalOptions, rawStatus string) error {
	status, err := parseStatus(rawStatus)
	if err != nil {
		return err
	}

	a, err := openApp(g, cmd.OutOrStdout(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exps, err := a.store.ListExperiments(cmd.Context(), status)
	if err != nil {
		return fmt.Errorf("list experiments: %w", err)
	}
	a.console.PrintExperiments(exps)
	return nil
}

func runShow(cmd *cobra.Command, g *globalOptions, id string, historyDays int) error {
	a, err := openApp(g, cmd.OutOrStdout(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exp, err := a.store.GetExperiment(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load experiment %s: %w", id, err)
	}
	a.console.PrintExperiment(exp)

	since := time.Now().AddDate(0, 0, -historyDays)
	history, err := a.store.GetEvaluations(cmd.Context(), exp.ID, since)
	if err != nil {
		return fmt.Errorf("load evaluations: %w", err)
	}
	a.console.PrintHistory(history)
	return nil
}

func parseStatus(s string) (domain.ExperimentStatus, error) {
	status := domain.ExperimentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case "", domain.StatusDraft, domain.StatusRunning, domain.StatusCompleted, domain.StatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
