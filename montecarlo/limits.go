package montecarlo

import (
	"errors"
	"fmt"
	"math"

	"github.com/cepro/flexarea/grid"
)

// Limits are the operating limits every feasible sample must respect.
type Limits struct {
	MaxLoadingPercent float64 // maximum loading of any line or transformer
	MaxVoltagePu      float64
	MinVoltagePu      float64
}

// DefaultLimits are the limits used when a scenario does not set its own.
var DefaultLimits = Limits{
	MaxLoadingPercent: 100,
	MaxVoltagePu:      1.05,
	MinVoltagePu:      0.95,
}

func (l Limits) Validate() error {
	var errs []error
	if !(l.MaxLoadingPercent > 0) {
		errs = append(errs, fmt.Errorf("maximum loading must be positive, got %v", l.MaxLoadingPercent))
	}
	if !(l.MinVoltagePu > 0) {
		errs = append(errs, fmt.Errorf("minimum voltage must be positive, got %v", l.MinVoltagePu))
	}
	if !(l.MaxVoltagePu >= l.MinVoltagePu) {
		errs = append(errs, fmt.Errorf("maximum voltage %v is below minimum voltage %v", l.MaxVoltagePu, l.MinVoltagePu))
	}
	return errors.Join(errs...)
}

// VoltagesWithin returns true if every energized bus has a voltage magnitude within [lower, upper].
func VoltagesWithin(buses []grid.BusResult, upper, lower float64) bool {
	for _, bus := range buses {
		if !bus.Energized {
			continue
		}
		if !(bus.VmPu <= upper && bus.VmPu >= lower) {
			return false
		}
	}
	return true
}

// LoadingWithin returns true if no branch is loaded beyond the given percentage.
func LoadingWithin(branches []grid.BranchResult, upper float64) bool {
	for _, branch := range branches {
		if !(math.Abs(branch.LoadingPercent) <= upper) {
			return false
		}
	}
	return true
}

// Feasible returns true if the power flow results respect the voltage, line and transformer limits.
func (l Limits) Feasible(res *grid.Results) bool {
	return VoltagesWithin(res.Buses, l.MaxVoltagePu, l.MinVoltagePu) &&
		LoadingWithin(res.Lines, l.MaxLoadingPercent) &&
		LoadingWithin(res.Trafos, l.MaxLoadingPercent)
}
