package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/zeusync/btcore/internal/core/events/bus"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

var runCmd = &cobra.Command{
	Use:   "run <template>",
	Short: "Spawn agents from a template and tick them",
	Long: `Builds the template (a file path or a stored template name), spawns the configured
number of agents and ticks them. With --ticks the run is a batch of that many frames;
otherwise it runs in real time until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().Int("agents", 0, "number of agents (overrides config)")
	runCmd.Flags().Int("ticks", 0, "frames to run, 0 for real time (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	sim := &app.Config.Simulation
	if cmd.Flags().Changed("agents") {
		sim.Agents, _ = cmd.Flags().GetInt("agents")
	}
	if cmd.Flags().Changed("ticks") {
		sim.Ticks, _ = cmd.Flags().GetInt("ticks")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmpl, err := resolveTemplate(ctx, app.Store, args[0])
	if err != nil {
		return err
	}
	tree, err := tmpl.Build(app.Registry)
	if err != nil {
		return err
	}

	sub := app.Bus.Subscribe(bus.Wildcard, func(e bus.Event) error {
		app.Logger.Debug("agent event", log.String("event", e.Type), log.Any("data", e.Data))
		return nil
	})
	defer sub.Cancel()

	for i := range sim.Agents {
		if _, err = app.Manager.Spawn(fmt.Sprintf("%s-%d", tmpl.Name, i), tree); err != nil {
			return err
		}
	}

	if addr := app.Config.Metrics.Addr; addr != "" {
		srv := serveMetrics(addr, app.Logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	app.Logger.Info("simulation started",
		log.String("template", tmpl.Name),
		log.Int("agents", app.Manager.Len()),
		log.Int("workers", sim.Workers),
		log.Int("ticks", sim.Ticks),
	)
	start := time.Now()
	if sim.Ticks > 0 {
		for range sim.Ticks {
			if err = app.Manager.Tick(ctx, sim.Delta); err != nil {
				break
			}
		}
	} else {
		err = app.Manager.Run(ctx, sim.Interval, sim.Delta)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := app.Bus.Stats()
	app.Logger.Info("simulation finished",
		log.Uint64("frames", app.Manager.Frames()),
		log.Uint64("events_published", stats.Published),
		log.Uint64("events_delivered", stats.Delivered),
		log.Uint64("handler_errors", stats.Errors),
	)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d agents, %d frames in %s\n",
		app.Manager.Len(), app.Manager.Frames(), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "%d events published, %d delivered, %d handler errors\n",
		stats.Published, stats.Delivered, stats.Errors)
	return nil
}

func serveMetrics(addr string, logger log.Log) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics endpoint listening", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", log.Error(err))
		}
	}()
	return srv
}
