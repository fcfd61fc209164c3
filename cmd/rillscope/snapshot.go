package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rillscope/internal/core/ports"
	"rillscope/internal/core/services"
	"rillscope/internal/infrastructure/repositories"
	"rillscope/internal/infrastructure/webrtc"
	"rillscope/internal/ui"

	"github.com/spf13/cobra"
)

type snapshotOptions struct {
	samples int
	timeout time.Duration
	asJSON   bool
	export   bool
	loopback bool
}

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	opts := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll a room and print its dashboard summary",
		Long: `Poll the configured room until the requested number of samples has
been collected, then print the dashboard summary.

Examples:
  rillscope snapshot --room standup
  rillscope snapshot --samples 10 --json
  rillscope snapshot --export
  rillscope snapshot --loopback --samples 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.samples, "samples", "n", 1, "number of poll ticks to collect")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the view as JSON")
	cmd.Flags().BoolVar(&opts.export, "export", false, "deliver an export to the configured sink when done")
	cmd.Flags().BoolVar(&opts.loopback, "loopback", false, "measure a local loopback call instead of the stats endpoint's connection")
	return cmd
}

func runSnapshot(cmd *cobra.Command, root *rootOptions, opts *snapshotOptions) error {
	if opts.samples < 1 {
		return fmt.Errorf("--samples must be >= 1")
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	// keep the terminal for the summary
	cfg.Logging.Format = "console"
	if root.logLevel == "" {
		cfg.Logging.Level = "warn"
	}
	zapLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	stats, err := buildStats(cfg, log)
	if err != nil {
		return err
	}

	var ctlOpts []services.ControllerOption
	if opts.export {
		factory := repositories.NewRepositoryFactory(cfg, log)
		defer factory.Close()
		if ctlOpts, err = exportOptions(cfg, factory, log); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(parentOrBackground(cmd.Context()), opts.timeout)
	defer cancel()

	var provider ports.StatsProvider = stats.provider
	if opts.loopback {
		loop, err := webrtc.NewLoopback(ctx, stats.provider, log)
		if err != nil {
			return fmt.Errorf("loopback: %w", err)
		}
		defer loop.Close()
		provider = loop.Provider()
	}

	controller, err := services.NewDashboardController(controllerConfig(cfg), provider, log, ctlOpts...)
	if err != nil {
		return err
	}

	ticks := make(chan uint64, 1)
	unsubscribe := controller.OnUpdate(func(v services.DashboardView) {
		select {
		case ticks <- v.Generation:
		default:
		}
	})
	defer unsubscribe()

	if err := controller.Mount(ctx); err != nil {
		return err
	}
	defer controller.Unmount()

	var (
		bandwidth []float64
		lastGen   uint64
	)
	for len(bandwidth) < opts.samples {
		select {
		case <-ctx.Done():
			return fmt.Errorf("collected %d of %d samples: %w", len(bandwidth), opts.samples, ctx.Err())
		case gen := <-ticks:
			if gen == 0 || gen == lastGen {
				continue
			}
			lastGen = gen
			bandwidth = append(bandwidth, controller.State().Snapshot.TotalBandwidth())
		}
	}

	view := controller.View(cfg.Dashboard.IsAdmin)
	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, ui.RenderSummary(view, bandwidth))
	}

	if opts.export {
		name, err := controller.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "export delivered: %s\n", name)
	}
	return nil
}
