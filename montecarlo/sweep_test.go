package montecarlo

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/metrics"
	"github.com/cepro/flexarea/powerflow"
	"github.com/cepro/flexarea/sampler"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSolver reports the total generation as the PCC active power and fails on chosen calls.
type stubSolver struct {
	calls   int
	failOn  map[int]error
	voltage float64
}

func (s *stubSolver) Solve(net *grid.Network) error {
	call := s.calls
	s.calls++
	net.Results = nil
	if err, ok := s.failOn[call]; ok {
		return err
	}
	res := &grid.Results{
		Buses: []grid.BusResult{{VmPu: 1, Energized: true}, {VmPu: s.voltage, Energized: true}},
		Lines: []grid.BranchResult{{LoadingPercent: 50}},
	}
	for _, gen := range net.Generators {
		res.ExtGridPMw -= gen.PMw
		res.ExtGridQMvar -= gen.QMvar
	}
	for _, load := range net.Loads {
		res.ExtGridPMw += load.PMw
		res.ExtGridQMvar += load.QMvar
	}
	// more than 0.5 MW of generation pushes the far bus voltage up
	if -res.ExtGridPMw > 0.5 {
		res.Buses[1].VmPu = 1.1
	}
	net.Results = res
	return nil
}

func testNetwork() *grid.Network {
	return &grid.Network{
		Buses:      []grid.Bus{{Index: 0}, {Index: 1}},
		Generators: []grid.Generator{{Index: 0, PMw: 0.1, SnMva: 1}, {Index: 1, PMw: 0.1, SnMva: 1}},
		Loads:      []grid.Load{{Index: 0, PMw: 0.05}, {Index: 1, PMw: 0.02}},
	}
}

func profile(setpoints ...float64) sampler.Profile {
	var p sampler.Profile
	for _, v := range setpoints {
		p.Setpoints = append(p.Setpoints, sampler.Setpoint{PMw: v})
	}
	return p
}

func TestRunClassifies(t *testing.T) {
	m := metrics.New()
	sweep, err := New(&stubSolver{voltage: 1}, Config{
		Limits:         DefaultLimits,
		FlexGenerators: []int{0, 1},
		Metrics:        m,
	})
	require.NoError(t, err)

	profiles := []sampler.Profile{
		profile(0.1, 0.1),
		profile(0.4, 0.3),
		profile(0.2, 0.2),
	}
	outcome, err := sweep.Run(testNetwork(), profiles)
	require.NoError(t, err)

	require.Len(t, outcome.Feasible, 2)
	require.Len(t, outcome.Infeasible, 1)
	assert.Empty(t, outcome.Skipped)
	assert.Equal(t, 1, outcome.Infeasible[0].Index)
	assert.InDelta(t, 0.07-0.7, outcome.Infeasible[0].PMw, 1e-12)
	assert.Equal(t, []int{0, 2}, []int{outcome.Feasible[0].Index, outcome.Feasible[1].Index})

	expected := `
# HELP flexarea_samples_total Monte Carlo samples processed, by outcome.
# TYPE flexarea_samples_total counter
flexarea_samples_total{outcome="feasible"} 2
flexarea_samples_total{outcome="infeasible"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "flexarea_samples_total"))
}

func TestRunIsComplete(t *testing.T) {
	solver := &stubSolver{
		voltage: 1,
		failOn: map[int]error{
			1: fmt.Errorf("%w: singular jacobian", powerflow.ErrNotConverged),
			3: errors.New("out of memory"),
		},
	}
	sweep, err := New(solver, Config{Limits: DefaultLimits, FlexGenerators: []int{0, 1}})
	require.NoError(t, err)

	defective := profile(0.1, 0.1)
	defective.Defect = sampler.ErrReactiveBudgetNaN
	profiles := []sampler.Profile{
		profile(0.1, 0.1),
		profile(0.1, 0.1),
		profile(0.1, 0.1),
		profile(0.1, 0.1),
		defective,
		profile(0.3, 0.3),
	}

	outcome, err := sweep.Run(testNetwork(), profiles)
	require.NoError(t, err)
	assert.Equal(t, len(profiles), len(outcome.Feasible)+len(outcome.Infeasible)+len(outcome.Skipped))
	assert.Equal(t, 5, solver.calls)

	require.Len(t, outcome.Skipped, 3)
	assert.Equal(t, SkipReasonNotConverged, outcome.Skipped[0].Reason)
	assert.Equal(t, 1, outcome.Skipped[0].Index)
	assert.Equal(t, SkipReasonSolverError, outcome.Skipped[1].Reason)
	assert.Equal(t, SkipReasonDefectiveProfile, outcome.Skipped[2].Reason)
	assert.ErrorIs(t, outcome.Skipped[2].Err, sampler.ErrReactiveBudgetNaN)
	assert.Len(t, outcome.Infeasible, 1)
}

func TestRunInvalidSetpointIsDefective(t *testing.T) {
	net := &grid.Network{
		SnMva: 1,
		FHz:   50,
		Buses: []grid.Bus{
			{Index: 0, VnKv: 20, InService: true},
			{Index: 1, VnKv: 20, InService: true},
		},
		Lines: []grid.Line{
			{Index: 0, FromBus: 0, ToBus: 1, LengthKm: 1, ROhmPerKm: 0.5, XOhmPerKm: 0.4, MaxIKa: 0.1, InService: true},
		},
		Generators: []grid.Generator{{Index: 0, Bus: 1, Kind: grid.GeneratorKindPV, PMw: 0.1, SnMva: 0.5, InService: true}},
		Loads:      []grid.Load{{Index: 0, Bus: 1, PMw: 0.2, QMvar: 0.1, SnMva: 0.3, InService: true}},
		ExtGrid:    grid.ExtGrid{Bus: 0, VmPu: 1},
	}
	sweep, err := New(powerflow.New(powerflow.Options{}), Config{
		Limits:         DefaultLimits,
		FlexGenerators: []int{0},
		FlexLoads:      []int{0},
	})
	require.NoError(t, err)

	valid := sampler.Profile{Setpoints: []sampler.Setpoint{{PMw: 0.1}, {PMw: 0.2, QMvar: 0.1}}}
	invalid := sampler.Profile{Setpoints: []sampler.Setpoint{{PMw: 0.1}, {PMw: 0.2, QMvar: math.NaN()}}}

	outcome, err := sweep.Run(net, []sampler.Profile{valid, invalid})
	require.NoError(t, err)
	assert.Len(t, outcome.Feasible, 1)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, 1, outcome.Skipped[0].Index)
	assert.Equal(t, SkipReasonDefectiveProfile, outcome.Skipped[0].Reason)
	assert.ErrorIs(t, outcome.Skipped[0].Err, powerflow.ErrInvalidSetpoint)
	assert.NotErrorIs(t, outcome.Skipped[0].Err, powerflow.ErrNotConverged)
}

func TestRunAppliesOnlyFlexibleFSPs(t *testing.T) {
	sweep, err := New(&stubSolver{voltage: 1}, Config{
		Limits:         DefaultLimits,
		FlexGenerators: []int{1},
		FlexLoads:      []int{1},
	})
	require.NoError(t, err)

	net := testNetwork()
	outcome, err := sweep.Run(net, []sampler.Profile{profile(0.9, 0.2, 0.3)})
	require.NoError(t, err)

	assert.Equal(t, 0.1, net.Generators[0].PMw, "generator 0 is not flexible")
	assert.Equal(t, 0.2, net.Generators[1].PMw)
	assert.Equal(t, 0.05, net.Loads[0].PMw, "load 0 is not flexible")
	assert.Equal(t, 0.3, net.Loads[1].PMw)
	require.Len(t, outcome.Feasible, 1)
	assert.InDelta(t, 0.35-0.3, outcome.Feasible[0].PMw, 1e-12)
}

func TestRunShapeMismatch(t *testing.T) {

	subTests := []struct {
		name     string
		config   Config
		profiles []sampler.Profile
	}{
		{
			name:     "too few setpoints",
			config:   Config{Limits: DefaultLimits, FlexGenerators: []int{0}},
			profiles: []sampler.Profile{profile(0.1)},
		},
		{
			name:     "loads missing from profile",
			config:   Config{Limits: DefaultLimits, FlexLoads: []int{0}},
			profiles: []sampler.Profile{profile(0.1, 0.1)},
		},
		{
			name:     "unknown generator",
			config:   Config{Limits: DefaultLimits, FlexGenerators: []int{2}},
			profiles: []sampler.Profile{profile(0.1, 0.1)},
		},
		{
			name:     "unknown load",
			config:   Config{Limits: DefaultLimits, FlexLoads: []int{7}},
			profiles: []sampler.Profile{profile(0.1, 0.1, 0.1)},
		},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			solver := &stubSolver{voltage: 1}
			sweep, err := New(solver, subTest.config)
			require.NoError(t, err)
			_, err = sweep.Run(testNetwork(), subTest.profiles)
			assert.ErrorIs(t, err, ErrProfileShape)
			assert.Equal(t, 0, solver.calls)
		})
	}
}

func TestRunEmptyBatch(t *testing.T) {
	sweep, err := New(&stubSolver{voltage: 1}, Config{Limits: DefaultLimits, Progress: io.Discard})
	require.NoError(t, err)

	outcome, err := sweep.Run(testNetwork(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcome.Feasible)
	assert.Empty(t, outcome.Infeasible)
	assert.Empty(t, outcome.Skipped)
}

func TestNewRejectsInvalidLimits(t *testing.T) {
	_, err := New(&stubSolver{}, Config{Limits: Limits{MaxLoadingPercent: 100, MaxVoltagePu: 0.9, MinVoltagePu: 1}})
	assert.Error(t, err)
}

func TestLimits(t *testing.T) {
	nan := math.NaN()

	subTests := []struct {
		name     string
		res      grid.Results
		expected bool
	}{
		{
			name:     "within limits",
			res:      grid.Results{Buses: []grid.BusResult{{VmPu: 1.05, Energized: true}, {VmPu: 0.95, Energized: true}}, Lines: []grid.BranchResult{{LoadingPercent: 100}}},
			expected: true,
		},
		{
			name:     "overvoltage",
			res:      grid.Results{Buses: []grid.BusResult{{VmPu: 1.051, Energized: true}}},
			expected: false,
		},
		{
			name:     "undervoltage",
			res:      grid.Results{Buses: []grid.BusResult{{VmPu: 0.94, Energized: true}}},
			expected: false,
		},
		{
			name:     "de-energized bus is ignored",
			res:      grid.Results{Buses: []grid.BusResult{{VmPu: 1, Energized: true}, {VmPu: nan}}},
			expected: true,
		},
		{
			name:     "NaN voltage on an energized bus",
			res:      grid.Results{Buses: []grid.BusResult{{VmPu: nan, Energized: true}}},
			expected: false,
		},
		{
			name:     "overloaded line",
			res:      grid.Results{Lines: []grid.BranchResult{{LoadingPercent: 100.5}}},
			expected: false,
		},
		{
			name:     "overloaded trafo",
			res:      grid.Results{Trafos: []grid.BranchResult{{LoadingPercent: 120}}},
			expected: false,
		},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			got := DefaultLimits.Feasible(&subTest.res)
			if got != subTest.expected {
				t.Errorf("Got %t, expected %t", got, subTest.expected)
			}
		})
	}
}
