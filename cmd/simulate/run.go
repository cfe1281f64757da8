// cmd/simulate/run.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wallace/internal/adapter/events"
	"wallace/internal/adapter/export"
	"wallace/internal/adapter/storage"
	"wallace/internal/bootstrap"
	"wallace/internal/config"
	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/simulation"
	"wallace/internal/service/pipeline"
	"wallace/internal/service/report"
)

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if outFormat != "" {
		cfg.Output.Format = outFormat
	}
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	scope, err := geo.NewScope(geoCode, geoName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store pipeline.Store
	if cfg.Database.Enabled {
		db, err := bootstrap.InitDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		simulationStore := storage.NewSimulationStore(db)
		if err := simulationStore.EnsureSchema(ctx); err != nil {
			return err
		}
		store = simulationStore
	}

	var publisher pipeline.Publisher
	if cfg.NATS.Enabled {
		natsConn, err := bootstrap.InitNATS(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer natsConn.Close()
		publisher = events.NewPublisher(natsConn, cfg.Simulation.EventsTopic)
	}

	caller := bootstrap.NewCaller(cfg.Trends, logger)
	runner := pipeline.NewSimulationRunner(
		bootstrap.NewTrendsClient(cfg.Trends),
		caller,
		store,
		publisher,
		logger,
		pipeline.RunnerConfig{
			MaxDepth:       cfg.Simulation.MaxDepth,
			BatchSize:      cfg.Simulation.BatchSize,
			PartialVolumes: cfg.Simulation.PartialVolumes,
		},
	)
	exporter := export.NewExporter(cfg.Output.Dir, format, logger)

	var builder *report.Builder
	if withSearch {
		builder = report.NewBuilder(bootstrap.NewSearchClient(cfg.Search), caller, logger)
	}

	for _, term := range terms {
		run, err := runner.Run(ctx, simulation.Request{
			Seed:           term,
			Scope:          scope,
			TrendsWindow:   keyword.Window{Start: trendsStart, End: trendsEnd},
			TimelineWindow: keyword.Window{Start: timelineStart, End: timelineEnd},
			MaxDepth:       maxDepth,
		})
		if err != nil {
			return fmt.Errorf("simulation for %q failed: %w", term, err)
		}

		if err := writeRun(ctx, cmd, exporter, builder, run); err != nil {
			return err
		}
	}
	return nil
}

func writeRun(ctx context.Context, cmd *cobra.Command, exporter *export.Exporter, builder *report.Builder, run *simulation.Run) error {
	queries, err := exporter.WriteQueries(run.ID, run.Seed, run.Scope, run.TrendsWindow, run.Rows)
	if err != nil {
		return err
	}
	volumes, err := exporter.WriteVolumes(run.ID, run.Scope, run.Volumes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\t%s\tqueries=%d\tvolumes=%d\tfailures=%d\n", run.ID, run.Seed, len(run.Rows), len(run.Volumes), len(run.Failures))
	fmt.Fprintf(out, "  %s\n  %s\n", queries, volumes)

	if builder == nil {
		return nil
	}
	rows, err := builder.Build(ctx, run.Seed, run.Volumes)
	if err != nil {
		slog.Warn("Site report is incomplete", "seed", run.Seed, "rows", len(rows), "error", err)
	}
	sites, err := exporter.WriteSiteReport(run.ID, run.Scope, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s\n", sites)
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, code := range args {
		scope, err := geo.NewScope(code, "")
		if err != nil {
			return err
		}
		level, _ := scope.Level()
		timeline, err := scope.TimelineRestriction()
		if err != nil {
			return err
		}
		discovery := scope.DiscoveryRestriction()
		fmt.Fprintf(out, "%s\t%s\t%s=%s\t%s=%s\n", scope.Code, level, discovery.Param, discovery.Value, timeline.Param, timeline.Value)
	}
	return nil
}
