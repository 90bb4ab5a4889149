package sampler

import (
	"errors"
	"fmt"
	"math"

	"github.com/cepro/flexarea/grid"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEnvelopeViolation means a raw draw asked for more active power than the apparent power rating allows while
	// keeping the rating fixed, i.e. the distribution does not suit the power-factor-only mode.
	ErrEnvelopeViolation = errors.New("active power outside of apparent power rating")
	// ErrReactiveBudgetNaN flags inconsistent load data: the rating leaves no valid reactive power budget.
	ErrReactiveBudgetNaN = errors.New("reactive power budget is NaN")
)

// alternatingSign returns +1 on even iterations and -1 on odd ones, so both leading and lagging power factors are
// explored across a batch.
func alternatingSign(iteration int) float64 {
	if iteration%2 == 0 {
		return 1
	}
	return -1
}

// clampFraction maps a raw fraction onto [0, limit]: 1 or more gives the limit, 0 or less gives zero.
func clampFraction(fraction, limit float64) float64 {
	if fraction >= 1 {
		return limit
	}
	if fraction <= 0 {
		return 0
	}
	return limit * fraction
}

func checkDraws(raw mat.Matrix, needed, dof int) error {
	if needed == 0 {
		return nil
	}
	if raw == nil {
		return fmt.Errorf("need %d draws, got none", needed)
	}
	rows, cols := raw.Dims()
	if rows < needed || cols < dof {
		return fmt.Errorf("need %d x %d draws, got %d x %d", needed, dof, rows, cols)
	}
	return nil
}

// PowerFactorPoints projects one dimensional draws onto generator setpoints that keep the apparent power at the
// generator rating: P is the rating scaled by the draw and Q takes up the rest, alternating its sign every iteration.
func PowerFactorPoints(gens []grid.Generator, raw mat.Matrix, samples int) ([]Profile, error) {
	err := checkDraws(raw, samples*len(gens), 1)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, samples)
	for j := 0; j < samples; j++ {
		setpoints := make([]Setpoint, len(gens))
		for i, gen := range gens {
			p := gen.SnMva * raw.At(len(gens)*j+i, 0)
			if math.Abs(p) > gen.SnMva {
				return nil, fmt.Errorf("%w: sample %d generator %d asks for %.6g MW of %.6g MVA", ErrEnvelopeViolation, j, gen.Index, p, gen.SnMva)
			}
			q := alternatingSign(j) * math.Sqrt(gen.SnMva*gen.SnMva-p*p)
			setpoints[i] = Setpoint{PMw: p, QMvar: q}
		}
		profiles[j] = Profile{Setpoints: setpoints}
	}
	return profiles, nil
}

// FreePoints projects two dimensional draws onto generator setpoints where both P and Q may change: P is clamped to
// [0, rating] and Q is limited to whatever the rating leaves, alternating its sign every iteration.
func FreePoints(gens []grid.Generator, raw mat.Matrix, samples int) ([]Profile, error) {
	err := checkDraws(raw, samples*len(gens), 2)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, samples)
	for j := 0; j < samples; j++ {
		setpoints := make([]Setpoint, len(gens))
		for i, gen := range gens {
			row := len(gens)*j + i
			p := clampFraction(raw.At(row, 0), gen.SnMva)
			qMax := math.Sqrt(gen.SnMva*gen.SnMva - p*p)
			q := gen.SnMva * raw.At(row, 1)
			if math.Abs(q) > qMax {
				q = qMax
			}
			setpoints[i] = Setpoint{PMw: p, QMvar: alternatingSign(j) * q}
		}
		profiles[j] = Profile{Setpoints: setpoints}
	}
	return profiles, nil
}

// LoadPoints projects two dimensional draws onto load setpoints. P is clamped to [0, current consumption] and Q,
// a fraction of the current reactive consumption, is limited by the load rating. loadChange scales the whole load and
// is 1 unless an aggregate load change is being studied.
//
// A load whose rating leaves a NaN reactive budget marks the profile as defective rather than failing the batch.
func LoadPoints(loads []grid.Load, raw mat.Matrix, samples int, loadChange float64) ([]Profile, error) {
	err := checkDraws(raw, samples*len(loads), 2)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, samples)
	for j := 0; j < samples; j++ {
		setpoints := make([]Setpoint, len(loads))
		var defects []error
		for i, load := range loads {
			row := len(loads)*j + i
			p := loadChange * clampFraction(raw.At(row, 0), load.PMw)
			qMax := math.Sqrt(loadChange*loadChange*load.SnMva*load.SnMva - p*p)
			if math.IsNaN(qMax) {
				defects = append(defects, fmt.Errorf("%w: sample %d load %d has sn_mva %.6g below p_mw %.6g", ErrReactiveBudgetNaN, j, load.Index, load.SnMva, p))
				setpoints[i] = Setpoint{PMw: p, QMvar: math.NaN()}
				continue
			}
			q := loadChange * load.QMvar * raw.At(row, 1)
			if math.Abs(q) > qMax {
				q = qMax
			}
			setpoints[i] = Setpoint{PMw: p, QMvar: q}
		}
		profiles[j] = Profile{Setpoints: setpoints, Defect: errors.Join(defects...)}
	}
	return profiles, nil
}
