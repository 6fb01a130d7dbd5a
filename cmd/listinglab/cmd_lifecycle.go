package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/listinglab/config"
	"github.com/alejandrodnm/listinglab/internal/domain"
)

func newCreateCmd(g *globalOptions) *cobra.Command {
	var file, user string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT experiment from a YAML definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd, g, file, user)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "experiment definition (YAML, required)")
	f.StringVar(&user, "user", "", "owner user id (overrides the file)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newProvisionCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <experiment-id>",
		Short: "Create the experiment in the marketplace experimentation service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{}, runProvision)
		},
	}
}

func newStartCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <experiment-id>",
		Short: "Start a DRAFT experiment, provisioning it first if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{}, runStart)
		},
	}
}

func newStopCmd(g *globalOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop <experiment-id>",
		Short: "Cancel an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{},
				func(ctx context.Context, c *cobra.Command, a *app, exp *domain.Experiment) error {
					return runStop(ctx, c, a, exp, reason)
				})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "stopped by user", "reason sent to the marketplace")
	return cmd
}

func newApplyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <experiment-id>",
		Short: "Publish the winning variant to the listing and complete the experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExperiment(cmd, g, args[0], appOptions{}, runApply)
		},
	}
}

func runCreate(cmd *cobra.Command, g *globalOptions, file, user string) error {
	a, err := openApp(g, cmd.OutOrStdout(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exp, err := config.LoadExperiment(file)
	if err != nil {
		return err
	}
	if user != "" {
		exp.UserID = user
	}
	if err := a.engine.Validate(exp); err != nil {
		return err
	}
	if err := a.store.CreateExperiment(cmd.Context(), exp); err != nil {
		return fmt.Errorf("create experiment: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created experiment %s (%s, %d variants, %s)\n",
		exp.ID, exp.Type, len(exp.Variants), exp.Status)
	return nil
}

func runProvision(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment) error {
	if err := a.engine.Provision(ctx, exp); err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Provisioned %s as %s (product %s)\n",
		exp.ID, exp.RemoteExperimentID, exp.ProductRef)
	return nil
}

func runStart(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment) error {
	if exp.Status == domain.StatusDraft && !exp.Provisioned() {
		if err := a.engine.Provision(ctx, exp); err != nil {
			return err
		}
		if err := a.store.UpdateExperiment(ctx, exp); err != nil {
			return fmt.Errorf("save experiment: %w", err)
		}
	}
	if err := a.engine.Start(ctx, exp); err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started %s, runs until %s\n",
		exp.ID, exp.EndDate.Format("2006-01-02 15:04 MST"))
	return nil
}

func runStop(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment, reason string) error {
	if err := a.engine.Stop(ctx, exp, reason); err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s (%s)\n", exp.ID, exp.Status)
	return nil
}

func runApply(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment) error {
	if err := a.engine.ApplyWinner(ctx, exp); err != nil {
		return err
	}
	if err := a.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied variant %s to %s (%s)\n",
		exp.Winner().Name, exp.SKU, exp.Status)
	return nil
}

// experimentFunc opera sobre un experimento ya cargado.
type experimentFunc func(ctx context.Context, cmd *cobra.Command, a *app, exp *domain.Experiment) error

// withExperiment abre la app, carga el experimento y ejecuta fn sobre él.
func withExperiment(cmd *cobra.Command, g *globalOptions, id string, opts appOptions, fn experimentFunc) error {
	a, err := openApp(g, cmd.OutOrStdout(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	exp, err := a.store.GetExperiment(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load experiment %s: %w", id, err)
	}
	return fn(cmd.Context(), cmd, a, exp)
}
