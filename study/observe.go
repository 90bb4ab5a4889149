package study

import (
	"log/slog"
	"math"

	"github.com/cepro/flexarea/config"
	"github.com/cepro/flexarea/grid"
)

// Change is how much one quantity of one network element moved when the scenario shift was applied.
type Change struct {
	Element       string // "bus" or "line"
	Index         int
	Observable    bool
	Quantity      string // "vm_pu", "p_mw" or "q_mvar"
	Before        float64
	After         float64
	PercentChange float64 // NaN when the quantity was zero or the element is not energized
}

func percentChange(before, after float64) float64 {
	if before == 0 {
		return math.NaN()
	}
	return (after - before) / math.Abs(before) * 100
}

// compare lists the changes of every bus and line between two power flow results, observable elements first.
func compare(before, after *grid.Results, sel config.Selection) []Change {
	var changes []Change
	add := func(element string, index int, observable bool, quantity string, b, a float64) {
		changes = append(changes, Change{
			Element:       element,
			Index:         index,
			Observable:    observable,
			Quantity:      quantity,
			Before:        b,
			After:         a,
			PercentChange: percentChange(b, a),
		})
	}

	buses := func(indices []int, observable bool) {
		for _, i := range indices {
			b, a := before.Buses[i], after.Buses[i]
			add("bus", i, observable, "vm_pu", b.VmPu, a.VmPu)
			add("bus", i, observable, "p_mw", b.PMw, a.PMw)
			add("bus", i, observable, "q_mvar", b.QMvar, a.QMvar)
		}
	}
	lines := func(indices []int, observable bool) {
		for _, i := range indices {
			b, a := before.Lines[i], after.Lines[i]
			add("line", i, observable, "p_mw", b.PFromMw, a.PFromMw)
			add("line", i, observable, "q_mvar", b.QFromMvar, a.QFromMvar)
		}
	}

	buses(sel.ObservableBuses, true)
	lines(sel.ObservableLines, true)
	buses(sel.NonObservableBuses, false)
	lines(sel.NonObservableLines, false)
	return changes
}

func logChanges(logger *slog.Logger, changes []Change) {
	for _, c := range changes {
		logger.Info(
			"Scenario shift changed network state",
			"element", c.Element,
			"index", c.Index,
			"observable", c.Observable,
			"quantity", c.Quantity,
			"before", c.Before,
			"after", c.After,
			"percent_change", c.PercentChange,
		)
	}
}
