package sampler

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrUnknownDistribution = errors.New("unknown sampling distribution")

// Distribution selects how raw perturbation values are drawn.
type Distribution string

const (
	DistributionNormal               Distribution = "Normal"                 // tight perturbation around "no change"
	DistributionUniform              Distribution = "Uniform"                // anywhere between nothing and everything
	DistributionNormalLimitsOriented Distribution = "Normal_Limits_Oriented" // wide spread, biased towards the limits of each FSP
	DistributionNoChange             Distribution = "No_change"              // every raw value is exactly 1
)

// Distributions lists every supported distribution.
var Distributions = []Distribution{
	DistributionNormal,
	DistributionUniform,
	DistributionNormalLimitsOriented,
	DistributionNoChange,
}

// Valid returns an error wrapping ErrUnknownDistribution if d is not one of the supported distributions.
func (d Distribution) Valid() error {
	for _, known := range Distributions {
		if d == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q, choose one of %q", ErrUnknownDistribution, d, Distributions)
}

// Draw returns an n x dof matrix of raw values from the sampler's random stream. Values are drawn row by row, except
// for the two dimensional Normal_Limits_Oriented case which draws each quarter of the rows column by column.
// A nil matrix is returned when n is zero.
func (s *Sampler) Draw(dist Distribution, n, dof int) (*mat.Dense, error) {
	if err := dist.Valid(); err != nil {
		return nil, err
	}
	if dof != 1 && dof != 2 {
		return nil, fmt.Errorf("degrees of freedom must be 1 or 2, got %d", dof)
	}
	if n < 0 {
		return nil, fmt.Errorf("number of draws must not be negative, got %d", n)
	}
	if n == 0 {
		return nil, nil
	}

	raw := mat.NewDense(n, dof, nil)
	switch dist {
	case DistributionNormal:
		s.fill(raw, distuv.Normal{Mu: 1, Sigma: 0.02, Src: s.rng})
	case DistributionUniform:
		s.fill(raw, distuv.Uniform{Min: 0, Max: 1, Src: s.rng})
	case DistributionNormalLimitsOriented:
		if dof == 1 {
			s.fill(raw, distuv.Normal{Mu: 1, Sigma: 1, Src: s.rng})
			break
		}
		s.fillLimitsOriented(raw)
	case DistributionNoChange:
		for r := 0; r < n; r++ {
			for c := 0; c < dof; c++ {
				raw.Set(r, c, 1)
			}
		}
	}
	return raw, nil
}

func (s *Sampler) fill(raw *mat.Dense, dist distuv.Rander) {
	rows, cols := raw.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			raw.Set(r, c, dist.Rand())
		}
	}
}

// fillLimitsOriented splits the rows into four blocks with different means for the two dimensions:
// low/low, low/high, high/low and medium/medium. The last block absorbs the remainder of the division.
func (s *Sampler) fillLimitsOriented(raw *mat.Dense) {
	n, _ := raw.Dims()
	quarter := n / 4
	means := [4][2]float64{{0, 0}, {0, 1}, {1, 0}, {0.5, 0.5}}

	start := 0
	for block, mean := range means {
		size := quarter
		if block == len(means)-1 {
			size = n - 3*quarter
		}
		if size == 0 {
			continue
		}
		view := raw.Slice(start, start+size, 0, 2).(*mat.Dense)
		if block == 0 {
			s.fill(view, distuv.Normal{Mu: mean[0], Sigma: 1, Src: s.rng})
		} else {
			for c := 0; c < 2; c++ {
				s.fill(view.Slice(0, size, c, c+1).(*mat.Dense), distuv.Normal{Mu: mean[c], Sigma: 1, Src: s.rng})
			}
		}
		start += size
	}
}
