package dataplatform

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cepro/flexarea/repository"
	"github.com/cepro/flexarea/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInserter struct {
	fail       bool
	failTables map[string]bool
	attempts   map[string]int
	inserted   map[string]int
}

func (f *fakeInserter) Insert(ctx context.Context, table string, rows interface{}) error {
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[table]++
	if f.fail || f.failTables[table] {
		return errors.New("connection refused")
	}
	if f.inserted == nil {
		f.inserted = make(map[string]int)
	}
	switch r := rows.(type) {
	case []supabaseRun:
		f.inserted[table] += len(r)
	case []supabaseSample:
		f.inserted[table] += len(r)
	}
	return nil
}

func newTestRepository(t *testing.T, samples int) *repository.Repository {
	repo, err := repository.New(filepath.Join(t.TempDir(), "buffer.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	runID := uuid.New()
	require.NoError(t, repo.AddRun(telemetry.Run{ID: runID, Time: time.Now(), Name: "test"}))
	rows := make([]telemetry.Sample, samples)
	for i := range rows {
		rows[i] = telemetry.Sample{ID: uuid.New(), Time: time.Now(), RunID: runID, SampleIndex: i, Profile: "{}"}
	}
	require.NoError(t, repo.AddSamples(rows))
	return repo
}

func TestFlushUploadsEverything(t *testing.T) {
	repo := newTestRepository(t, 230)
	client := &fakeInserter{}

	err := New(client, repo, 0).Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, client.inserted[runsTable])
	assert.Equal(t, 230, client.inserted[samplesTable])

	left, err := repo.GetSamples(1000, true)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestFlushKeepsFailedRowsForRetry(t *testing.T) {
	repo := newTestRepository(t, 30)
	client := &fakeInserter{fail: true}
	platform := New(client, repo, 10)

	err := platform.Flush(context.Background())
	assert.Error(t, err)

	// the run failed so no sample was tried
	assert.Equal(t, 1, client.attempts[runsTable])
	assert.Zero(t, client.attempts[samplesTable])
	retryRuns, err := repo.GetRuns(1000, false)
	require.NoError(t, err)
	assert.Len(t, retryRuns, 1)
	fresh, err := repo.GetSamples(1000, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 30)

	client.fail = false
	require.NoError(t, platform.Flush(context.Background()))
	assert.Equal(t, 30, client.inserted[samplesTable])
	assert.Equal(t, 1, client.inserted[runsTable])
}

func TestFlushRetriesFailedSampleChunk(t *testing.T) {
	repo := newTestRepository(t, 30)
	client := &fakeInserter{failTables: map[string]bool{samplesTable: true}}
	platform := New(client, repo, 10)

	err := platform.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, client.inserted[runsTable])

	// only the first chunk of samples was tried
	assert.Equal(t, 1, client.attempts[samplesTable])
	retry, err := repo.GetSamples(1000, false)
	require.NoError(t, err)
	assert.Len(t, retry, 10)
	fresh, err := repo.GetSamples(1000, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 20)

	client.failTables = nil
	require.NoError(t, platform.Flush(context.Background()))
	assert.Equal(t, 30, client.inserted[samplesTable])
	assert.Equal(t, 1, client.inserted[runsTable])
}

func TestFlushCancelled(t *testing.T) {
	repo := newTestRepository(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(&fakeInserter{}, repo, 10).Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertSamples(t *testing.T) {
	id := uuid.New()
	stored := []repository.StoredSample{{
		Sample: telemetry.Sample{ID: id, SampleIndex: 3, Feasible: true, PMw: 1.5, QMvar: -0.5, Profile: `{"setpoints":[]}`},
	}}

	converted := convertSamples(stored)
	require.Len(t, converted, 1)
	assert.Equal(t, id, converted[0].ID)
	assert.Equal(t, 3, converted[0].SampleIndex)
	assert.True(t, converted[0].Feasible)
	assert.JSONEq(t, `{"setpoints":[]}`, string(converted[0].Profile))
}
