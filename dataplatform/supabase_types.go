package dataplatform

import (
	"encoding/json"
	"time"

	"github.com/cepro/flexarea/repository"
	"github.com/google/uuid"
)

const (
	runsTable    = "flex_runs"
	samplesTable = "flex_samples"
)

// supabaseRun holds the json encoding schema for a study run in supabase.
type supabaseRun struct {
	ID              uuid.UUID `json:"id"`
	Time            time.Time `json:"time"`
	Name            string    `json:"name"`
	Scenario        string    `json:"scenario"`
	Distribution    string    `json:"distribution"`
	Services        string    `json:"services"`
	KeepMP          bool      `json:"keep_mp"`
	Samples         int       `json:"samples"`
	Feasible        int       `json:"feasible"`
	Infeasible      int       `json:"infeasible"`
	Skipped         int       `json:"skipped"`
	SamplingSeconds float64   `json:"sampling_seconds"`
	SweepSeconds    float64   `json:"sweep_seconds"`
	HullArea        float64   `json:"hull_area"`
	PccPMw          float64   `json:"pcc_p_mw"`
	PccQMvar        float64   `json:"pcc_q_mvar"`
}

// supabaseSample holds the json encoding schema for a Monte Carlo sample in supabase.
type supabaseSample struct {
	ID          uuid.UUID       `json:"id"`
	Time        time.Time       `json:"time"`
	RunID       uuid.UUID       `json:"run_id"`
	SampleIndex int             `json:"sample_index"`
	Feasible    bool            `json:"feasible"`
	PMw         float64         `json:"p_mw"`
	QMvar       float64         `json:"q_mvar"`
	Profile     json.RawMessage `json:"profile"` // stored as jsonb
}

func convertRuns(runs []repository.StoredRun) []supabaseRun {
	supabaseRuns := make([]supabaseRun, 0, len(runs))
	for _, run := range runs {
		supabaseRuns = append(supabaseRuns, supabaseRun(run.Run))
	}
	return supabaseRuns
}

func convertSamples(samples []repository.StoredSample) []supabaseSample {
	supabaseSamples := make([]supabaseSample, 0, len(samples))
	for _, sample := range samples {
		supabaseSamples = append(supabaseSamples, supabaseSample{
			ID:          sample.ID,
			Time:        sample.Time,
			RunID:       sample.RunID,
			SampleIndex: sample.SampleIndex,
			Feasible:    sample.Feasible,
			PMw:         sample.PMw,
			QMvar:       sample.QMvar,
			Profile:     json.RawMessage(sample.Profile),
		})
	}
	return supabaseSamples
}
