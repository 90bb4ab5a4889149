package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/cepro/flexarea/grid"
)

// branch is a line or transformer reduced to its per-unit series impedance and total shunt admittance.
type branch struct {
	from, to int
	z        complex128
	ySh      complex128
}

// model is the per-unit view of a network that the Newton-Raphson iterations work on.
type model struct {
	ybus      [][]complex128
	lines     []branch // index aligned with net.Lines, zero value when out of service
	trafos    []branch // index aligned with net.Trafos, zero value when out of service
	energized []bool
	sSpec     []complex128 // specified net injection per bus
}

func linePU(net *grid.Network, line grid.Line) branch {
	zBase := net.Buses[line.FromBus].VnKv * net.Buses[line.FromBus].VnKv / net.SnMva
	z := complex(line.ROhmPerKm*line.LengthKm, line.XOhmPerKm*line.LengthKm) / complex(zBase, 0)
	b := 2 * math.Pi * net.FHz * line.CNfPerKm * 1e-9 * line.LengthKm * zBase
	return branch{from: line.FromBus, to: line.ToBus, z: z, ySh: complex(0, b)}
}

func trafoPU(net *grid.Network, trafo grid.Trafo) branch {
	// short circuit impedance on the transformer rating, converted to the system base
	zk := trafo.VkPercent / 100 * net.SnMva / trafo.SnMva
	rk := trafo.VkrPercent / 100 * net.SnMva / trafo.SnMva
	xk := math.Sqrt(zk*zk - rk*rk)
	return branch{from: trafo.HVBus, to: trafo.LVBus, z: complex(rk, xk)}
}

func branchConnected(net *grid.Network, from, to int) bool {
	return net.Buses[from].InService && net.Buses[to].InService
}

// newModel builds the admittance matrix and specified injections for the network.
func newModel(net *grid.Network) *model {
	n := len(net.Buses)
	m := &model{
		ybus:      make([][]complex128, n),
		lines:     make([]branch, len(net.Lines)),
		trafos:    make([]branch, len(net.Trafos)),
		energized: make([]bool, n),
		sSpec:     make([]complex128, n),
	}
	for i := range m.ybus {
		m.ybus[i] = make([]complex128, n)
	}

	adjacency := make([][]int, n)
	stamp := func(br branch) {
		y := 1 / br.z
		m.ybus[br.from][br.from] += y + br.ySh/2
		m.ybus[br.to][br.to] += y + br.ySh/2
		m.ybus[br.from][br.to] -= y
		m.ybus[br.to][br.from] -= y
		adjacency[br.from] = append(adjacency[br.from], br.to)
		adjacency[br.to] = append(adjacency[br.to], br.from)
	}
	for i, line := range net.Lines {
		if !line.InService || !branchConnected(net, line.FromBus, line.ToBus) {
			continue
		}
		m.lines[i] = linePU(net, line)
		stamp(m.lines[i])
	}
	for i, trafo := range net.Trafos {
		if !trafo.InService || !branchConnected(net, trafo.HVBus, trafo.LVBus) {
			continue
		}
		m.trafos[i] = trafoPU(net, trafo)
		stamp(m.trafos[i])
	}

	// buses that cannot be reached from the slack are left out of the solution
	slack := net.ExtGrid.Bus
	if net.Buses[slack].InService {
		queue := []int{slack}
		m.energized[slack] = true
		for len(queue) > 0 {
			b := queue[0]
			queue = queue[1:]
			for _, next := range adjacency[b] {
				if !m.energized[next] {
					m.energized[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	for _, gen := range net.Generators {
		if gen.InService {
			m.sSpec[gen.Bus] += complex(gen.PMw, gen.QMvar) / complex(net.SnMva, 0)
		}
	}
	for _, load := range net.Loads {
		if load.InService {
			m.sSpec[load.Bus] -= complex(load.PMw, load.QMvar) / complex(net.SnMva, 0)
		}
	}
	return m
}

// injection returns the complex power injected at bus i for the voltage vector v.
func (m *model) injection(v []complex128, i int) complex128 {
	var current complex128
	for k, y := range m.ybus[i] {
		if y != 0 {
			current += y * v[k]
		}
	}
	return v[i] * cmplx.Conj(current)
}
