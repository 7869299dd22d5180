package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/Kent-Rush/lightcurve"
	"github.com/Kent-Rush/lightcurve/store"
)

// Simulates the lightcurve of a spacecraft passing over a ground site.

const defaultScenario = "~~unset~~"

var (
	scenario string
	quiet    bool
	trace    bool
	name     string
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "simulation scenario TOML file (defaults are used when unset)")
	flag.BoolVar(&quiet, "quiet", false, "do not print the loading bars")
	flag.BoolVar(&trace, "trace", false, "print the spans of each phase to stderr")
	flag.StringVar(&name, "name", "", "run name, overrides output.name")
}

func main() {
	flag.Parse()
	cfg := lightcurve.DefaultConfig()
	if scenario != defaultScenario {
		var err error
		if cfg, err = lightcurve.LoadConfig(scenario); err != nil {
			log.Fatalf("%s: %s", scenario, err)
		}
	}
	if name != "" {
		cfg.Output.Name = name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, cfg, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// run simulates the scenario and writes the configured outputs, listing them
// on stdout. Nothing is written when the simulation fails.
func run(ctx context.Context, cfg lightcurve.Config, stdout, stderr io.Writer) error {
	logger := lightcurve.NewLogger(stdout)
	if trace {
		shutdown, err := lightcurve.InitTracing(stderr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	opts := []lightcurve.Option{lightcurve.WithLogger(logger)}
	if !quiet {
		opts = append(opts, lightcurve.WithProgress(lightcurve.NewLoadingBar(stderr)))
	}
	var metrics *lightcurve.Metrics
	if cfg.Output.Metrics != "" {
		metrics = lightcurve.NewMetrics()
		opts = append(opts, lightcurve.WithMetrics(metrics))
	}

	sim, err := lightcurve.NewSimulation(cfg, opts...)
	if err != nil {
		return err
	}
	res, err := sim.Run(ctx)
	if err != nil {
		logger.Log("level", "critical", "subsys", "lcsim", "err", err)
		return err
	}

	files, err := lightcurve.Export(res, cfg.Output)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if cfg.Output.SQLite != "" {
		db, err := store.Open(cfg.Output.SQLite)
		if err != nil {
			return err
		}
		id, err := db.Save(cfg.Output.Name, res)
		db.Close()
		if err != nil {
			return err
		}
		logger.Log("level", "info", "subsys", "lcsim", "sqlite", cfg.Output.SQLite, "run", id)
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.Output.Metrics); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		files = append(files, cfg.Output.Metrics)
	}
	for _, f := range files {
		fmt.Fprintln(stdout, f)
	}
	return nil
}
