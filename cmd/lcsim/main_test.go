package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kent-Rush/lightcurve"
	"go.opentelemetry.io/otel"
)

func testConfig(t *testing.T) lightcurve.Config {
	dir := t.TempDir()
	cfg := lightcurve.DefaultConfig()
	cfg.DT = 10
	cfg.Pass = 100
	cfg.Output = lightcurve.OutputConfig{
		Dir:     filepath.Join(dir, "out"),
		Name:    "pass",
		CSV:     true,
		SQLite:  filepath.Join(dir, "runs.db"),
		Metrics: filepath.Join(dir, "lightcurve.prom"),
	}
	return cfg
}

func TestRun(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev); trace = false })
	trace = true

	cfg := testConfig(t)
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{filepath.Join(cfg.Output.Dir, "pass.csv"), cfg.Output.SQLite, cfg.Output.Metrics} {
		if _, err := os.Stat(f); err != nil {
			t.Fatal(err)
		}
	}
	if !strings.Contains(stdout.String(), "pass.csv") || !strings.Contains(stdout.String(), "status=finished") {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), `"Name": "simulation"`) {
		t.Fatal("simulation span not exported")
	}
}

func TestRunFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.OrbitAltitude = -10
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, &stdout, &stderr)
	if !errors.Is(err, lightcurve.ErrInvalidInitialState) {
		t.Fatalf("expected ErrInvalidInitialState, got %v", err)
	}
	for _, f := range []string{cfg.Output.Dir, cfg.Output.SQLite, cfg.Output.Metrics} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("%s written after a failure", f)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, testConfig(t), &stdout, &stderr); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
