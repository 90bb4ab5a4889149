package dataplatform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cepro/flexarea/repository"
)

// DefaultUploadChunkSize defines how many rows we upload in one supabase HTTP request.
const DefaultUploadChunkSize = 100

// Inserter uploads rows into a remote table.
type Inserter interface {
	Insert(ctx context.Context, table string, rows interface{}) error
}

// DataPlatform uploads study results that are buffered in the local repository, deleting them once uploaded.
type DataPlatform struct {
	repository *repository.Repository
	client     Inserter
	chunkSize  int
	logger     *slog.Logger
}

func New(client Inserter, repository *repository.Repository, chunkSize int) *DataPlatform {
	if chunkSize <= 0 {
		chunkSize = DefaultUploadChunkSize
	}
	return &DataPlatform{
		repository: repository,
		client:     client,
		chunkSize:  chunkSize,
		logger:     slog.Default().With("component", "dataplatform"),
	}
}

// Flush attempts to upload everything in the repository. Runs go first so the samples can reference them, and samples
// are not attempted while runs fail to upload.
// Rows that fail to upload stay in the repository with an incremented attempt count and are retried on the next Flush.
func (d *DataPlatform) Flush(ctx context.Context) error {
	runs := &table[repository.StoredRun]{
		name:      runsTable,
		get:       d.repository.GetRuns,
		convert:   func(runs []repository.StoredRun) interface{} { return convertRuns(runs) },
		increment: d.repository.IncrementRunUploadAttemptCount,
		delete:    d.repository.DeleteRuns,
	}
	samples := &table[repository.StoredSample]{
		name:      samplesTable,
		get:       d.repository.GetSamples,
		convert:   func(samples []repository.StoredSample) interface{} { return convertSamples(samples) },
		increment: d.repository.IncrementSampleUploadAttemptCount,
		delete:    d.repository.DeleteSamples,
	}

	err := flushTable(ctx, d, runs)
	if err != nil {
		return fmt.Errorf("flush runs, samples skipped: %w", err)
	}
	return flushTable(ctx, d, samples)
}

// table binds the repository operations of one kind of row.
type table[T any] struct {
	name      string
	get       func(limit int, fresh bool) ([]T, error)
	convert   func([]T) interface{}
	increment func([]T) error
	delete    func([]T) error
}

// flushTable uploads the fresh rows first, chunk by chunk, then the rows that already failed an upload at least once.
// It stops at the first failed chunk, the platform is most likely unreachable.
func flushTable[T any](ctx context.Context, d *DataPlatform, t *table[T]) error {
	for _, fresh := range []bool{true, false} {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := t.get(d.chunkSize, fresh)
			if err != nil {
				return fmt.Errorf("query %s (fresh: %t): %w", t.name, fresh, err)
			}
			if len(rows) == 0 {
				break
			}
			err = handleRows(ctx, d, t, rows)
			if err != nil {
				d.logger.Error("Failed to upload rows", "db_table", t.name, "fresh", fresh, "error", err)
				return err
			}
		}
	}
	return nil
}

// handleRows attempts to upload the given rows. If successful, it deletes the rows from the database, if
// unsuccessful, it increments the 'upload attempt count' column and leaves the rows in the database for another time.
func handleRows[T any](ctx context.Context, d *DataPlatform, t *table[T], rows []T) error {

	uploadErr := d.client.Insert(ctx, t.name, t.convert(rows))
	if uploadErr != nil {
		uploadErr := fmt.Errorf("upload failed: %w", uploadErr)
		errInc := t.increment(rows)
		if errInc != nil {
			return fmt.Errorf("%w: increment upload attempt count: %w", uploadErr, errInc)
		}
		return uploadErr
	}

	// an upload that succeeds followed by a failed delete will upload the rows again, the ids make the duplicate
	// insert fail rather than create copies
	deleteErr := t.delete(rows)
	if deleteErr != nil {
		return fmt.Errorf("delete %d %s: %w", len(rows), t.name, deleteErr)
	}

	d.logger.Info("Uploaded rows", "db_table", t.name, "db_records", len(rows))
	return nil
}
