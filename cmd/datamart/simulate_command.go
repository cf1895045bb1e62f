package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"datamart/internal/api"
	"datamart/internal/fulfillment"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var complete bool
	var plain bool
	var unit time.Duration

	cmd := &cobra.Command{
		Use:   "simulate <item|order>",
		Short: "Build and drive a fulfillment pipeline locally",
		Long: "Build the reference pipeline for a transaction kind and drive it in-process " +
			"with simulated lane work, printing every lane transition. No daemon is needed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := fulfillment.ParseKind(args[0])
			if err != nil {
				return fmt.Errorf("%w (expected item or order)", err)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			timing := cfg.Timing()
			if unit > 0 {
				timing.Unit = unit
			}
			phases, err := fulfillment.NewBuilder(timing).Build(kind, complete)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d phases\n", kind.Title(), len(phases))
			var renderer progressRenderer = newLineRenderer(out)
			if !plain && isTerminal(out) {
				renderer = newTrackerRenderer(out, phases)
			}

			start := fulfillment.NewProgress(phases)
			if complete {
				start = fulfillment.Restore(phases, len(phases))
			}
			renderer.Start(start)
			final, driveErr := fulfillment.Drive(runCtx, start, renderer.Observe)
			renderer.Finish(final, driveErr)

			grid, _ := api.FromProgress(final)
			fmt.Fprintln(out, renderPhaseTable(grid, final.Cursor()))
			if runCtx.Err() != nil && errors.Is(driveErr, runCtx.Err()) {
				return fmt.Errorf("simulation interrupted: %w", driveErr)
			}
			return driveErr
		},
	}

	cmd.Flags().BoolVar(&complete, "complete", false, "Build the pipeline already complete (a finished transaction)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print plain progress lines even on a terminal")
	cmd.Flags().DurationVar(&unit, "unit", 0, "Duration of one lane time unit (defaults to simulation.time_unit_ms)")
	return cmd
}
