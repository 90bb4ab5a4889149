package repository

import "github.com/cepro/flexarea/telemetry"

// StoredRun represents a study run that is persisted to the SQLite database, and includes a count of upload attempts.
type StoredRun struct {
	telemetry.Run
	UploadAttemptCount uint
}

// StoredSample represents a sample that is persisted to the SQLite database, and includes a count of upload attempts.
type StoredSample struct {
	telemetry.Sample
	UploadAttemptCount uint
}

func newStoredRun(run telemetry.Run) StoredRun {
	return StoredRun{
		Run:                run,
		UploadAttemptCount: 0,
	}
}

func newStoredSamples(samples []telemetry.Sample) []StoredSample {
	stored := make([]StoredSample, len(samples))
	for i, sample := range samples {
		stored[i] = StoredSample{Sample: sample}
	}
	return stored
}
