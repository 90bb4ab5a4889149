package montecarlo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/metrics"
	"github.com/cepro/flexarea/powerflow"
	"github.com/cepro/flexarea/sampler"
	"gopkg.in/cheggaaa/pb.v1"
)

// ErrProfileShape is returned when the profiles do not address the FSPs the sweep was configured with.
var ErrProfileShape = errors.New("profile does not match the flexibility service providers")

// Solver runs a power flow on the network, storing the results on it. A failure to converge must be signalled with an
// error wrapping powerflow.ErrNotConverged so it can be told apart from other failures.
type Solver interface {
	Solve(net *grid.Network) error
}

// SkipReason explains why a sample was discarded.
type SkipReason string

const (
	SkipReasonNotConverged     SkipReason = metrics.OutcomeNotConverged
	SkipReasonSolverError      SkipReason = metrics.OutcomeSolverError
	SkipReasonDefectiveProfile SkipReason = metrics.OutcomeDefective
)

// Result is one classified sample: the P/Q exchanged with the upstream grid and the profile that caused it.
type Result struct {
	Index   int // position of the profile in the batch
	PMw     float64
	QMvar   float64
	Profile sampler.Profile
}

// Skip is a sample that was discarded without being classified.
type Skip struct {
	Index   int
	Profile sampler.Profile
	Reason  SkipReason
	Err     error
}

// Outcome of a sweep. Every profile of the batch ends up in exactly one of Feasible, Infeasible or Skipped.
type Outcome struct {
	Feasible   []Result
	Infeasible []Result
	Skipped    []Skip
	Duration   time.Duration
}

// PQ splits results into their P and Q values, index aligned with the results.
func PQ(results []Result) (p []float64, q []float64) {
	p = make([]float64, len(results))
	q = make([]float64, len(results))
	for i, r := range results {
		p[i] = r.PMw
		q[i] = r.QMvar
	}
	return p, q
}

// Profiles returns the profiles of the results, index aligned with the results.
func Profiles(results []Result) []sampler.Profile {
	profiles := make([]sampler.Profile, len(results))
	for i, r := range results {
		profiles[i] = r.Profile
	}
	return profiles
}

type Config struct {
	Limits Limits

	// FlexGenerators are the indices of the generators whose profile entries are applied. The entries of the other
	// generators are ignored and they keep their setpoint.
	FlexGenerators []int
	// FlexLoads are the network indices of the loads addressed by the profile entries after the generators, in
	// profile order. Empty when profiles only address generators.
	FlexLoads []int

	Progress io.Writer // progress bar output, no bar when nil
	Metrics  *metrics.Metrics
}

// Sweep applies profiles to a network one at a time, solves it and classifies the result.
type Sweep struct {
	solver    Solver
	limits    Limits
	flexGen   map[int]bool
	flexLoads []int
	progress  io.Writer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(solver Solver, config Config) (*Sweep, error) {
	err := config.Limits.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}

	flexGen := make(map[int]bool, len(config.FlexGenerators))
	for _, i := range config.FlexGenerators {
		flexGen[i] = true
	}

	return &Sweep{
		solver:    solver,
		limits:    config.Limits,
		flexGen:   flexGen,
		flexLoads: append([]int(nil), config.FlexLoads...),
		progress:  config.Progress,
		metrics:   config.Metrics,
		logger:    slog.Default().With("component", "sweep"),
	}, nil
}

// checkShape makes sure every profile addresses every generator followed by the flexible loads, and that those
// elements exist in the network.
func (s *Sweep) checkShape(net *grid.Network, profiles []sampler.Profile) error {
	for i := range s.flexGen {
		if i < 0 || i >= len(net.Generators) {
			return fmt.Errorf("%w: no generator with index %d", ErrProfileShape, i)
		}
	}
	for _, i := range s.flexLoads {
		if i < 0 || i >= len(net.Loads) {
			return fmt.Errorf("%w: no load with index %d", ErrProfileShape, i)
		}
	}
	expected := len(net.Generators) + len(s.flexLoads)
	for i, profile := range profiles {
		if len(profile.Setpoints) != expected {
			return fmt.Errorf("%w: profile %d has %d setpoints, expected %d", ErrProfileShape, i, len(profile.Setpoints), expected)
		}
	}
	return nil
}

// apply writes the profile onto the network FSPs. Every flexible FSP is fully re-specified so nothing needs undoing
// before the next profile.
func (s *Sweep) apply(net *grid.Network, profile sampler.Profile) {
	nGen := len(net.Generators)
	for i, setpoint := range profile.Setpoints {
		if i < nGen {
			if s.flexGen[i] {
				net.Generators[i].PMw = setpoint.PMw
				net.Generators[i].QMvar = setpoint.QMvar
			}
			continue
		}
		load := s.flexLoads[i-nGen]
		net.Loads[load].PMw = setpoint.PMw
		net.Loads[load].QMvar = setpoint.QMvar
	}
}

// Run sweeps every profile in order. Per-sample failures (non-convergence, solver errors, defective profiles) discard
// that sample and never stop the sweep; only a batch that does not fit the configured FSPs returns an error.
//
// The network is owned by the sweep for the duration of the call and is left holding the last applied profile.
func (s *Sweep) Run(net *grid.Network, profiles []sampler.Profile) (Outcome, error) {
	err := s.checkShape(net, profiles)
	if err != nil {
		return Outcome{}, err
	}

	bar := pb.New(len(profiles)).Prefix("Power flows completed ")
	bar.Output = s.progress
	if s.progress == nil {
		bar.Output = io.Discard
		bar.NotPrint = true
	}
	bar.Start()

	var outcome Outcome
	start := time.Now()
	for i, profile := range profiles {
		s.step(net, i, profile, &outcome)
		bar.Increment()
	}
	outcome.Duration = time.Since(start)
	bar.Finish()

	s.metrics.Sweep(outcome.Duration)
	s.logger.Info(
		"Monte Carlo sweep completed",
		"profiles", len(profiles),
		"feasible", len(outcome.Feasible),
		"infeasible", len(outcome.Infeasible),
		"skipped", len(outcome.Skipped),
		"duration", outcome.Duration,
	)
	return outcome, nil
}

// step moves one profile from pending to either classified or discarded.
func (s *Sweep) step(net *grid.Network, index int, profile sampler.Profile, outcome *Outcome) {
	skip := func(reason SkipReason, err error) {
		outcome.Skipped = append(outcome.Skipped, Skip{Index: index, Profile: profile, Reason: reason, Err: err})
		s.metrics.Sample(string(reason))
	}

	if profile.Defect != nil {
		s.logger.Error("Discarding defective profile", "profile_index", index, "error", profile.Defect)
		skip(SkipReasonDefectiveProfile, profile.Defect)
		return
	}

	s.apply(net, profile)

	solveStart := time.Now()
	err := s.solver.Solve(net)
	s.metrics.PowerFlow(time.Since(solveStart))
	if errors.Is(err, powerflow.ErrInvalidSetpoint) {
		s.logger.Error("Discarding profile with invalid setpoint", "profile_index", index, "profile", profile.Setpoints, "error", err)
		skip(SkipReasonDefectiveProfile, err)
		return
	}
	if errors.Is(err, powerflow.ErrNotConverged) {
		s.logger.Warn("Power flow did not converge", "profile_index", index, "profile", profile.Setpoints, "error", err)
		skip(SkipReasonNotConverged, err)
		return
	}
	if err != nil {
		s.logger.Error("Power flow failed", "profile_index", index, "profile", profile.Setpoints, "error", err)
		skip(SkipReasonSolverError, err)
		return
	}
	if net.Results == nil {
		err = errors.New("solver returned no results")
		s.logger.Error("Power flow failed", "profile_index", index, "error", err)
		skip(SkipReasonSolverError, err)
		return
	}

	result := Result{
		Index:   index,
		PMw:     net.Results.ExtGridPMw,
		QMvar:   net.Results.ExtGridQMvar,
		Profile: profile,
	}
	if s.limits.Feasible(net.Results) {
		outcome.Feasible = append(outcome.Feasible, result)
		s.metrics.Sample(metrics.OutcomeFeasible)
	} else {
		outcome.Infeasible = append(outcome.Infeasible, result)
		s.metrics.Sample(metrics.OutcomeInfeasible)
	}
}
