package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cepro/flexarea/montecarlo"
	"github.com/google/uuid"
)

// Run summarises one flexibility study.
type Run struct {
	ID              uuid.UUID
	Time            time.Time
	Name            string
	Scenario        string // name of the scenario shift, empty when the initial network was studied
	Distribution    string
	Services        string
	KeepMP          bool
	Samples         int
	Feasible        int
	Infeasible      int
	Skipped         int
	SamplingSeconds float64
	SweepSeconds    float64
	HullArea        float64 // area of the convex hull of the feasible PQ points, in MW*Mvar
	PccPMw          float64 // operating point before sampling
	PccQMvar        float64
}

// Sample is one classified Monte Carlo sample.
type Sample struct {
	ID          uuid.UUID
	Time        time.Time
	RunID       uuid.UUID
	SampleIndex int // position of the profile in the batch
	Feasible    bool
	PMw         float64
	QMvar       float64
	Profile     string // JSON encoded setpoints
}

// NewSamples converts the classified samples of a sweep into records. Discarded samples have no PQ point and are not
// recorded.
func NewSamples(runID uuid.UUID, t time.Time, outcome montecarlo.Outcome) ([]Sample, error) {
	samples := make([]Sample, 0, len(outcome.Feasible)+len(outcome.Infeasible))
	add := func(results []montecarlo.Result, feasible bool) error {
		for _, result := range results {
			profile, err := json.Marshal(result.Profile)
			if err != nil {
				return fmt.Errorf("encode profile %d: %w", result.Index, err)
			}
			samples = append(samples, Sample{
				ID:          uuid.New(),
				Time:        t,
				RunID:       runID,
				SampleIndex: result.Index,
				Feasible:    feasible,
				PMw:         result.PMw,
				QMvar:       result.QMvar,
				Profile:     string(profile),
			})
		}
		return nil
	}

	err := add(outcome.Feasible, true)
	if err != nil {
		return nil, err
	}
	err = add(outcome.Infeasible, false)
	if err != nil {
		return nil, err
	}
	return samples, nil
}
