package study

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cepro/flexarea/cartesian"
	"github.com/cepro/flexarea/config"
	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/metrics"
	"github.com/cepro/flexarea/montecarlo"
	"github.com/cepro/flexarea/powerflow"
	"github.com/cepro/flexarea/repository"
	"github.com/cepro/flexarea/results"
	"github.com/cepro/flexarea/sampler"
	"github.com/cepro/flexarea/telemetry"
	"github.com/google/uuid"
)

// minSamples is the smallest batch worth sweeping, fewer samples cannot describe an area.
const minSamples = 2

// Uploader pushes the stored results to the data platform.
type Uploader interface {
	Flush(ctx context.Context) error
}

type Options struct {
	OutputDir  string                 // CSV and plot files are written here, nothing is written when empty
	Solver     montecarlo.Solver      // defaults to a Newton-Raphson solver
	Repository *repository.Repository // optional
	Uploader   Uploader               // optional, requires a repository
	Metrics    *metrics.Metrics       // optional
	Progress   io.Writer              // progress bar output, optional
}

// Report is everything a study found out about the flexibility of a network.
type Report struct {
	RunID     uuid.UUID
	Selection config.Selection

	// PCC operating point of the studied network, after any scenario shift
	PccPMw   float64
	PccQMvar float64

	Changes  []Change // effect of the scenario shift, empty without one
	Batch    sampler.Batch
	Outcome  montecarlo.Outcome
	HullArea float64 // area of the convex hull around the feasible PQ points

	CSVPath  string
	PlotPath string
}

// Run studies the flexibility area of the network for the given settings. The network is not modified.
//
// The base case is solved first to find the operating point at the PCC, then the scenario shift (if any) is applied
// and solved again. The FSP profiles are then sampled and swept, and the results stored and written out.
func Run(ctx context.Context, base *grid.Network, settings config.Settings, opts Options) (Report, error) {
	logger := slog.Default().With("study", settings.Name)
	sc := settings.Scenario
	started := time.Now().UTC()

	solver := opts.Solver
	if solver == nil {
		solver = powerflow.New(powerflow.Options{})
	}

	net := base.Clone()
	net.ScaleGeneration(sc.ScalePV, sc.ScaleWT)

	sel, err := sc.Resolve(net)
	if err != nil {
		return Report{}, fmt.Errorf("resolve FSPs: %w", err)
	}
	if sc.FSPs.IncludesLoads() && len(sel.FlexLoads) == 0 {
		return Report{}, fmt.Errorf("%w: FSPs %q needs at least one flexible load", config.ErrInvalidSettings, sc.FSPs)
	}
	report := Report{RunID: uuid.New(), Selection: sel}

	err = solver.Solve(net)
	if err != nil {
		return Report{}, fmt.Errorf("solve base case: %w", err)
	}
	logger.Info("Solved base case", "pcc_p_mw", net.Results.ExtGridPMw, "pcc_q_mvar", net.Results.ExtGridQMvar)

	if !sc.ScenarioType.IsEmpty() {
		logger.Info("Applying scenario shift", "scenario", sc.ScenarioType.Label())
		before := net.Results
		err = net.ApplyShift(sc.ScenarioType)
		if err != nil {
			return Report{}, fmt.Errorf("apply scenario %q: %w", sc.ScenarioType.Label(), err)
		}
		err = solver.Solve(net)
		if err != nil {
			return Report{}, fmt.Errorf("solve scenario %q: %w", sc.ScenarioType.Label(), err)
		}
		report.Changes = compare(before, net.Results, sel)
		logChanges(logger, report.Changes)
	}
	report.PccPMw = net.Results.ExtGridPMw
	report.PccQMvar = net.Results.ExtGridQMvar

	if sc.NoSamples < minSamples {
		logger.Warn("Too few samples for a flexibility area, skipping the Monte Carlo simulation", "no_samples", sc.NoSamples)
		return report, record(ctx, logger, settings, report, started, opts)
	}

	var flexLoads []int
	if sc.FSPs.IncludesLoads() {
		flexLoads = sel.FlexLoads
	}
	report.Batch, err = sampler.New(sc.Seed).Profiles(net, sampler.Request{
		Samples:      sc.NoSamples,
		Distribution: sc.Distribution,
		KeepMP:       sc.KeepMP,
		Services:     sc.FSPs,
		FlexLoads:    flexLoads,
	})
	if err != nil {
		return Report{}, fmt.Errorf("sample profiles: %w", err)
	}
	opts.Metrics.Sampling(report.Batch.Duration)

	if !sc.MonteCarlo {
		logger.Info("Monte Carlo simulation disabled, profiles are not swept", "profiles", len(report.Batch.Profiles))
		return report, record(ctx, logger, settings, report, started, opts)
	}

	sweep, err := montecarlo.New(solver, montecarlo.Config{
		Limits:         sc.Limits(),
		FlexGenerators: sel.FlexGenerators,
		FlexLoads:      flexLoads,
		Progress:       opts.Progress,
		Metrics:        opts.Metrics,
	})
	if err != nil {
		return Report{}, fmt.Errorf("create sweep: %w", err)
	}
	report.Outcome, err = sweep.Run(net.Clone(), report.Batch.Profiles)
	if err != nil {
		return Report{}, fmt.Errorf("sweep profiles: %w", err)
	}

	if sc.PlotSettings.ConvexHull {
		report.HullArea = cartesian.HullArea(montecarlo.PQ(report.Outcome.Feasible))
		logger.Info("Flexibility area", "hull_area", report.HullArea, "feasible", len(report.Outcome.Feasible))
	}

	report, err = write(settings, report, opts.OutputDir)
	if err != nil {
		return Report{}, err
	}
	return report, record(ctx, logger, settings, report, started, opts)
}

// write saves the samples as CSV and, if enabled, the plot of the flexibility area.
func write(settings config.Settings, report Report, dir string) (Report, error) {
	if dir == "" {
		return report, nil
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return Report{}, fmt.Errorf("create output directory: %w", err)
	}

	report.CSVPath = filepath.Join(dir, settings.FileName()+".csv")
	err = results.WriteCSVFile(report.CSVPath, report.Outcome)
	if err != nil {
		return Report{}, fmt.Errorf("write samples: %w", err)
	}

	plotSettings := settings.Scenario.PlotSettings
	if plotSettings.Plot {
		report.PlotPath = filepath.Join(dir, settings.FileName()+"."+plotSettings.OutputType)
		err = results.PlotArea(report.PlotPath, settings.Name, report.Outcome, report.PccPMw, report.PccQMvar)
		if err != nil {
			return Report{}, fmt.Errorf("plot flexibility area: %w", err)
		}
	}
	return report, nil
}

// record stores the run and its samples, then attempts an upload. A failed upload is logged and retried by the next
// study as the rows stay in the repository.
func record(ctx context.Context, logger *slog.Logger, settings config.Settings, report Report, started time.Time, opts Options) error {
	if opts.Repository == nil {
		return nil
	}
	sc := settings.Scenario
	outcome := report.Outcome

	err := opts.Repository.AddRun(telemetry.Run{
		ID:              report.RunID,
		Time:            started,
		Name:            settings.Name,
		Scenario:        sc.ScenarioType.Label(),
		Distribution:    string(sc.Distribution),
		Services:        string(sc.FSPs),
		KeepMP:          sc.KeepMP,
		Samples:         len(report.Batch.Profiles),
		Feasible:        len(outcome.Feasible),
		Infeasible:      len(outcome.Infeasible),
		Skipped:         len(outcome.Skipped),
		SamplingSeconds: report.Batch.Duration.Seconds(),
		SweepSeconds:    outcome.Duration.Seconds(),
		HullArea:        report.HullArea,
		PccPMw:          report.PccPMw,
		PccQMvar:        report.PccQMvar,
	})
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}

	samples, err := telemetry.NewSamples(report.RunID, started, outcome)
	if err != nil {
		return fmt.Errorf("convert samples: %w", err)
	}
	err = opts.Repository.AddSamples(samples)
	if err != nil {
		return fmt.Errorf("store samples: %w", err)
	}
	logger.Info("Stored run", "run_id", report.RunID, "samples", len(samples))

	if opts.Uploader == nil {
		return nil
	}
	err = opts.Uploader.Flush(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		logger.Error("Failed to upload results, they will be retried", "error", err)
	}
	return nil
}
