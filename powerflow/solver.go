package powerflow

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cepro/flexarea/grid"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotConverged is returned when the Newton-Raphson iterations do not reach the mismatch tolerance.
	ErrNotConverged = errors.New("power flow did not converge")
	// ErrInvalidSetpoint is returned, before any iteration, for a generator or load with a NaN or infinite setpoint.
	ErrInvalidSetpoint = errors.New("invalid setpoint")
)

const (
	defaultTolerancePU   = 1e-8
	defaultMaxIterations = 10
	degreesPerRadian     = 180 / math.Pi
	sqrt3                = 1.7320508075688772
)

type Options struct {
	TolerancePU   float64 // maximum power mismatch in per-unit on the system base
	MaxIterations int
}

// Solver runs AC power flows with the Newton-Raphson method in polar coordinates. The ext grid bus is the slack bus,
// every other energized bus is a PQ bus.
type Solver struct {
	tolerance     float64
	maxIterations int
}

func New(opts Options) *Solver {
	s := &Solver{
		tolerance:     opts.TolerancePU,
		maxIterations: opts.MaxIterations,
	}
	if s.tolerance <= 0 {
		s.tolerance = defaultTolerancePU
	}
	if s.maxIterations <= 0 {
		s.maxIterations = defaultMaxIterations
	}
	return s
}

// Solve runs a power flow on the network and stores the results on it. Errors wrapping ErrNotConverged mean the
// operating point has no solution the method could find, any other error means the network could not be solved at all.
func (s *Solver) Solve(net *grid.Network) error {
	net.Results = nil

	err := checkSetpoints(net)
	if err != nil {
		return err
	}

	m := newModel(net)
	if !m.energized[net.ExtGrid.Bus] {
		return fmt.Errorf("ext grid bus %d is out of service", net.ExtGrid.Bus)
	}

	slack := net.ExtGrid.Bus
	var pq []int
	for b := range net.Buses {
		if b != slack && m.energized[b] {
			pq = append(pq, b)
		}
	}

	vm := make([]float64, len(net.Buses))
	va := make([]float64, len(net.Buses))
	for b := range net.Buses {
		vm[b] = 1
		va[b] = net.ExtGrid.VaDegree / degreesPerRadian
	}
	vm[slack] = net.ExtGrid.VmPu

	iterations, err := s.iterate(m, pq, vm, va)
	if err != nil {
		return err
	}

	net.Results = m.results(net, vm, va, iterations)
	return nil
}

func checkSetpoints(net *grid.Network) error {
	for _, gen := range net.Generators {
		if math.IsNaN(gen.PMw) || math.IsNaN(gen.QMvar) || math.IsInf(gen.PMw, 0) || math.IsInf(gen.QMvar, 0) {
			return fmt.Errorf("%w: generator %d has non-finite setpoint (%v, %v)", ErrInvalidSetpoint, gen.Index, gen.PMw, gen.QMvar)
		}
	}
	for _, load := range net.Loads {
		if math.IsNaN(load.PMw) || math.IsNaN(load.QMvar) || math.IsInf(load.PMw, 0) || math.IsInf(load.QMvar, 0) {
			return fmt.Errorf("%w: load %d has non-finite setpoint (%v, %v)", ErrInvalidSetpoint, load.Index, load.PMw, load.QMvar)
		}
	}
	return nil
}

func voltages(vm, va []float64) []complex128 {
	v := make([]complex128, len(vm))
	for i := range vm {
		v[i] = cmplx.Rect(vm[i], va[i])
	}
	return v
}

// iterate updates vm and va in place until the mismatch at the PQ buses is within tolerance, returning the number of
// iterations that were needed.
func (s *Solver) iterate(m *model, pq []int, vm, va []float64) (int, error) {
	n := len(pq)
	if n == 0 {
		return 0, nil
	}

	mismatch := mat.NewVecDense(2*n, nil)
	jacobian := mat.NewDense(2*n, 2*n, nil)
	var dx mat.VecDense

	for iteration := 0; ; iteration++ {
		v := voltages(vm, va)
		sCalc := make([]complex128, len(v))
		maxMismatch := 0.0
		for r, i := range pq {
			sCalc[i] = m.injection(v, i)
			d := m.sSpec[i] - sCalc[i]
			mismatch.SetVec(r, real(d))
			mismatch.SetVec(n+r, imag(d))
			maxMismatch = math.Max(maxMismatch, math.Max(math.Abs(real(d)), math.Abs(imag(d))))
		}
		if math.IsNaN(maxMismatch) {
			return iteration, fmt.Errorf("%w: mismatch is NaN after %d iterations", ErrNotConverged, iteration)
		}
		if maxMismatch < s.tolerance {
			return iteration, nil
		}
		if iteration == s.maxIterations {
			return iteration, fmt.Errorf("%w: mismatch %.3g pu after %d iterations", ErrNotConverged, maxMismatch, iteration)
		}

		m.fillJacobian(jacobian, pq, vm, va, sCalc)
		err := dx.SolveVec(jacobian, mismatch)
		if err != nil {
			return iteration, fmt.Errorf("%w: solve jacobian: %w", ErrNotConverged, err)
		}
		for r, i := range pq {
			va[i] += dx.AtVec(r)
			vm[i] += dx.AtVec(n + r)
		}
	}
}

// fillJacobian writes the partial derivatives of P and Q at the PQ buses with respect to their voltage angles and
// magnitudes, laid out as [dP/dθ dP/dV; dQ/dθ dQ/dV].
func (m *model) fillJacobian(j *mat.Dense, pq []int, vm, va []float64, sCalc []complex128) {
	n := len(pq)
	j.Zero()
	for r, i := range pq {
		pi, qi := real(sCalc[i]), imag(sCalc[i])
		for c, k := range pq {
			y := m.ybus[i][k]
			g, b := real(y), imag(y)
			if i == k {
				j.Set(r, c, -qi-b*vm[i]*vm[i])
				j.Set(r, n+c, pi/vm[i]+g*vm[i])
				j.Set(n+r, c, pi-g*vm[i]*vm[i])
				j.Set(n+r, n+c, qi/vm[i]-b*vm[i])
				continue
			}
			if y == 0 {
				continue
			}
			sin, cos := math.Sincos(va[i] - va[k])
			j.Set(r, c, vm[i]*vm[k]*(g*sin-b*cos))
			j.Set(r, n+c, vm[i]*(g*cos+b*sin))
			j.Set(n+r, c, -vm[i]*vm[k]*(g*cos+b*sin))
			j.Set(n+r, n+c, vm[i]*(g*sin-b*cos))
		}
	}
}

// results converts the solved voltages into bus, branch and ext grid results in physical units.
func (m *model) results(net *grid.Network, vm, va []float64, iterations int) *grid.Results {
	v := voltages(vm, va)
	res := &grid.Results{
		Buses:      make([]grid.BusResult, len(net.Buses)),
		Lines:      make([]grid.BranchResult, len(net.Lines)),
		Trafos:     make([]grid.BranchResult, len(net.Trafos)),
		Iterations: iterations,
	}

	for b := range net.Buses {
		if !m.energized[b] {
			res.Buses[b] = grid.BusResult{VmPu: math.NaN(), VaDegree: math.NaN(), PMw: math.NaN(), QMvar: math.NaN()}
			continue
		}
		s := m.injection(v, b) * complex(net.SnMva, 0)
		res.Buses[b] = grid.BusResult{
			VmPu:      vm[b],
			VaDegree:  va[b] * degreesPerRadian,
			PMw:       real(s),
			QMvar:     imag(s),
			Energized: true,
		}
	}

	// the slack bus injection less whatever is connected there is supplied by the ext grid
	slackBus := net.ExtGrid.Bus
	slack := (m.injection(v, slackBus) - m.sSpec[slackBus]) * complex(net.SnMva, 0)
	res.ExtGridPMw = real(slack)
	res.ExtGridQMvar = imag(slack)

	for i, line := range net.Lines {
		br := m.lines[i]
		if br.z == 0 || !m.energized[br.from] {
			continue
		}
		flow, iFrom, iTo := branchFlow(br, v, net.SnMva)
		iBaseKa := net.SnMva / (sqrt3 * net.Buses[line.FromBus].VnKv)
		flow.LoadingPercent = math.Max(iFrom, iTo) * iBaseKa / line.MaxIKa * 100
		res.Lines[i] = flow
	}
	for i, trafo := range net.Trafos {
		br := m.trafos[i]
		if br.z == 0 || !m.energized[br.from] {
			continue
		}
		flow, _, _ := branchFlow(br, v, net.SnMva)
		sHV := cmplx.Abs(complex(flow.PFromMw, flow.QFromMvar))
		sLV := cmplx.Abs(complex(flow.PToMw, flow.QToMvar))
		flow.LoadingPercent = math.Max(sHV, sLV) / trafo.SnMva * 100
		res.Trafos[i] = flow
	}
	return res
}

// branchFlow returns the flows into the branch at both ends and the per-unit current magnitudes at both ends.
func branchFlow(br branch, v []complex128, snMva float64) (grid.BranchResult, float64, float64) {
	y := 1 / br.z
	iFrom := (v[br.from]-v[br.to])*y + v[br.from]*br.ySh/2
	iTo := (v[br.to]-v[br.from])*y + v[br.to]*br.ySh/2
	sFrom := v[br.from] * cmplx.Conj(iFrom) * complex(snMva, 0)
	sTo := v[br.to] * cmplx.Conj(iTo) * complex(snMva, 0)
	return grid.BranchResult{
		PFromMw:   real(sFrom),
		QFromMvar: imag(sFrom),
		PToMw:     real(sTo),
		QToMvar:   imag(sTo),
	}, cmplx.Abs(iFrom), cmplx.Abs(iTo)
}
