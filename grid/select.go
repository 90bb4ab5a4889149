package grid

import "fmt"

// SelectLoads returns the loads with the given indices, in the given order, or every load if no indices are given.
func (n *Network) SelectLoads(indices []int) ([]Load, error) {
	if len(indices) == 0 {
		return append([]Load(nil), n.Loads...), nil
	}
	loads := make([]Load, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(n.Loads) {
			return nil, fmt.Errorf("%w: no load with index %d", ErrInvalidNetwork, i)
		}
		loads = append(loads, n.Loads[i])
	}
	return loads, nil
}

// GeneratorsOfKind returns the indices of all generators of the given kind.
func (n *Network) GeneratorsOfKind(kind GeneratorKind) []int {
	var indices []int
	for _, gen := range n.Generators {
		if gen.Kind == kind {
			indices = append(indices, gen.Index)
		}
	}
	return indices
}
