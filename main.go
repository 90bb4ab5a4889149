package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cepro/flexarea/config"
	"github.com/cepro/flexarea/dataplatform"
	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/metrics"
	"github.com/cepro/flexarea/repository"
	"github.com/cepro/flexarea/study"
	"github.com/cepro/flexarea/supabase"
)

type flags struct {
	scenarioPath string
	networkPath  string
	dbPath       string
	outDir       string
	metricsAddr  string
	progress     bool
}

func main() {
	scenarioPath := flag.String("scenario", "", "scenario settings file (YAML or JSON)")
	networkPath := flag.String("network", "", "network file, overrides the network of the scenario")
	dbPath := flag.String("db", "flexarea.sqlite", "sqlite file buffering results for the data platform")
	outDir := flag.String("out", "results", "directory for the CSV and plot of the flexibility area")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	progress := flag.Bool("progress", false, "show a progress bar while sweeping")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	var level slog.Level
	err := level.UnmarshalText([]byte(*logLevel))
	if err != nil {
		slog.Error("Invalid log level", "log_level", *logLevel, "error", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *scenarioPath == "" {
		slog.Error("No scenario given, use -scenario")
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(flags{
		scenarioPath: *scenarioPath,
		networkPath:  *networkPath,
		dbPath:       *dbPath,
		outDir:       *outDir,
		metricsAddr:  *metricsAddr,
		progress:     *progress,
	}))
}

// run executes the study and returns the exit code, so that deferred clean up happens before exiting.
func run(f flags) int {
	slog.Info("Starting flexibility area study...", "scenario", f.scenarioPath)

	settings, err := config.Read(f.scenarioPath)
	if err != nil {
		slog.Error("Failed to read scenario settings", "error", err)
		return 1
	}
	if f.networkPath != "" {
		settings.Scenario.Network = f.networkPath
	}

	net, err := grid.Read(settings.Scenario.Network)
	if err != nil {
		slog.Error("Failed to read network", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	m := metrics.New()
	if f.metricsAddr != "" {
		server := &http.Server{Addr: f.metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		defer server.Close()
	}

	repo, err := repository.New(f.dbPath)
	if err != nil {
		slog.Error("Failed to create repository", "error", err)
		return 1
	}
	defer repo.Close()

	opts := study.Options{
		OutputDir:  f.outDir,
		Repository: repo,
		Metrics:    m,
	}
	if f.progress {
		opts.Progress = os.Stderr
	}
	if dp := settings.DataPlatform; dp != nil {
		// the key is kept out of the settings file
		supabaseKey := os.Getenv("SUPABASE_KEY")
		if supabaseKey == "" {
			slog.Warn("SUPABASE_KEY is not set, results are only stored locally")
		} else {
			client := supabase.New(dp.Supabase.Url, supabaseKey, os.Getenv("SUPABASE_USER_KEY"), dp.Supabase.Schema)
			opts.Uploader = dataplatform.New(client, repo, dp.UploadChunkSize)
		}
	}

	report, err := study.Run(ctx, net, settings, opts)
	if err != nil {
		slog.Error("Study failed", "error", err)
		return 1
	}

	slog.Info(
		"Study completed",
		"run_id", report.RunID,
		"pcc_p_mw", report.PccPMw,
		"pcc_q_mvar", report.PccQMvar,
		"feasible", len(report.Outcome.Feasible),
		"infeasible", len(report.Outcome.Infeasible),
		"skipped", len(report.Outcome.Skipped),
		"hull_area", report.HullArea,
		"outputs", strings.Join(nonEmpty(report.CSVPath, report.PlotPath), ", "),
	)
	return 0
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
