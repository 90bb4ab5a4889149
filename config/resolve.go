package config

import (
	"fmt"

	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/montecarlo"
)

// Selection is the scenario's index lists resolved against a concrete network.
type Selection struct {
	FlexGenerators     []int // PV and WT FSPs, ascending
	FlexLoads          []int
	ObservableBuses    []int
	NonObservableBuses []int
	ObservableLines    []int
	NonObservableLines []int
}

// Resolve expands the [-1] index lists and checks every index against the network. A [-1] WT or PV list selects every
// generator of that kind.
func (s ScenarioSettings) Resolve(net *grid.Network) (Selection, error) {
	var sel Selection

	wt, err := resolveIndices("FSP_WT_indices", s.FSPWTIndices, net.GeneratorsOfKind(grid.GeneratorKindWT), len(net.Generators))
	if err != nil {
		return Selection{}, err
	}
	pv, err := resolveIndices("FSP_PV_indices", s.FSPPVIndices, net.GeneratorsOfKind(grid.GeneratorKindPV), len(net.Generators))
	if err != nil {
		return Selection{}, err
	}
	sel.FlexGenerators = union(len(net.Generators), wt, pv)

	sel.FlexLoads, err = resolveIndices("FSP_load_indices", s.FSPLoadIndices, count(len(net.Loads)), len(net.Loads))
	if err != nil {
		return Selection{}, err
	}

	sel.ObservableBuses, err = resolveIndices("observable_buses_indices", s.ObservableBuses, count(len(net.Buses)), len(net.Buses))
	if err != nil {
		return Selection{}, err
	}
	sel.NonObservableBuses = complement(len(net.Buses), sel.ObservableBuses)

	sel.ObservableLines, err = resolveIndices("observable_lines_indices", s.ObservableLines, count(len(net.Lines)), len(net.Lines))
	if err != nil {
		return Selection{}, err
	}
	sel.NonObservableLines = complement(len(net.Lines), sel.ObservableLines)

	return sel, nil
}

// Limits returns the operating limits a feasible sample must respect.
func (s ScenarioSettings) Limits() montecarlo.Limits {
	return montecarlo.Limits{
		MaxLoadingPercent: s.MaxCurrPercent,
		MaxVoltagePu:      s.MaxVoltPu,
		MinVoltagePu:      s.MinVoltPu,
	}
}

func resolveIndices(field string, indices []int, everything []int, size int) ([]int, error) {
	if isAll(indices) {
		return everything, nil
	}
	for _, i := range indices {
		if i < 0 || i >= size {
			return nil, fmt.Errorf("%w: %s: index %d out of range, the network has %d", ErrInvalidSettings, field, i, size)
		}
	}
	return append([]int(nil), indices...), nil
}

func count(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// union merges index lists into one ascending list without duplicates.
func union(size int, lists ...[]int) []int {
	in := make([]bool, size)
	for _, list := range lists {
		for _, i := range list {
			in[i] = true
		}
	}
	var indices []int
	for i, ok := range in {
		if ok {
			indices = append(indices, i)
		}
	}
	return indices
}

func complement(size int, indices []int) []int {
	in := make([]bool, size)
	for _, i := range indices {
		in[i] = true
	}
	var rest []int
	for i, ok := range in {
		if !ok {
			rest = append(rest, i)
		}
	}
	return rest
}
