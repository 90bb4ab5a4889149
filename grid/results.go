package grid

// BusResult holds the solved state of one bus. Buses that are not energized from the ext grid have NaN voltages.
type BusResult struct {
	VmPu      float64
	VaDegree  float64
	PMw       float64 // net injection, generator convention
	QMvar     float64
	Energized bool
}

// BranchResult holds the solved flow through a line or transformer.
type BranchResult struct {
	PFromMw        float64
	QFromMvar      float64
	PToMw          float64
	QToMvar        float64
	LoadingPercent float64
}

// Results of a converged power flow, addressed by the same indices as the network elements.
type Results struct {
	Buses        []BusResult
	Lines        []BranchResult
	Trafos       []BranchResult
	ExtGridPMw   float64 // active power drawn from the upstream grid
	ExtGridQMvar float64
	Iterations   int
}

func (r *Results) clone() *Results {
	c := *r
	c.Buses = append([]BusResult(nil), r.Buses...)
	c.Lines = append([]BranchResult(nil), r.Lines...)
	c.Trafos = append([]BranchResult(nil), r.Trafos...)
	return &c
}

// BusVoltages returns the voltage magnitude and angle of each of the given buses.
func (r *Results) BusVoltages(buses []int) (vm []float64, va []float64) {
	for _, b := range buses {
		if b < 0 || b >= len(r.Buses) {
			continue
		}
		vm = append(vm, r.Buses[b].VmPu)
		va = append(va, r.Buses[b].VaDegree)
	}
	return vm, va
}

// BusPowers returns the net active and reactive injection of each of the given buses.
func (r *Results) BusPowers(buses []int) (p []float64, q []float64) {
	for _, b := range buses {
		if b < 0 || b >= len(r.Buses) {
			continue
		}
		p = append(p, r.Buses[b].PMw)
		q = append(q, r.Buses[b].QMvar)
	}
	return p, q
}

// LinePowers returns the from-side active and reactive flow of each of the given lines.
func (r *Results) LinePowers(lines []int) (p []float64, q []float64) {
	for _, l := range lines {
		if l < 0 || l >= len(r.Lines) {
			continue
		}
		p = append(p, r.Lines[l].PFromMw)
		q = append(q, r.Lines[l].QFromMvar)
	}
	return p, q
}
