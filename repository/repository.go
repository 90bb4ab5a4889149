package repository

import (
	"fmt"

	"github.com/cepro/flexarea/telemetry"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// insertBatchSize bounds the number of rows per INSERT statement, sqlite limits the number of bound variables.
const insertBatchSize = 100

// Repository stores study results to the local file system (sqlite) before they are uploaded to Supabase.
type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&StoredRun{}, &StoredSample{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// Close releases the underlying database connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) AddRun(run telemetry.Run) error {
	stored := newStoredRun(run)
	result := r.db.Create(&stored)
	return result.Error
}

// AddSamples stores all samples in one transaction.
func (r *Repository) AddSamples(samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	stored := newStoredSamples(samples)
	result := r.db.CreateInBatches(&stored, insertBatchSize)
	return result.Error
}

// GetRuns returns up to limit runs. Fresh runs have never been part of a failed upload, the others have.
func (r *Repository) GetRuns(limit int, fresh bool) ([]StoredRun, error) {
	var runs []StoredRun
	result := pending(r.db, limit, fresh).Order("time desc").Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// GetSamples returns up to limit samples. Fresh samples have never been part of a failed upload, the others have.
func (r *Repository) GetSamples(limit int, fresh bool) ([]StoredSample, error) {
	var samples []StoredSample
	result := pending(r.db, limit, fresh).Order("time desc, sample_index asc").Find(&samples)
	if result.Error != nil {
		return nil, result.Error
	}
	return samples, nil
}

func pending(db *gorm.DB, limit int, fresh bool) *gorm.DB {
	query := db.Limit(limit).Order("upload_attempt_count asc")
	if fresh {
		return query.Where("upload_attempt_count = ?", 0)
	}
	// TODO: give up on rows after a maximum number of upload attempts
	return query.Where("upload_attempt_count > ?", 0)
}

func (r *Repository) IncrementRunUploadAttemptCount(runs []StoredRun) error {
	if len(runs) == 0 {
		return nil
	}
	result := r.db.Model(&runs).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

func (r *Repository) IncrementSampleUploadAttemptCount(samples []StoredSample) error {
	if len(samples) == 0 {
		return nil
	}
	result := r.db.Model(&samples).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

func (r *Repository) DeleteRuns(runs []StoredRun) error {
	if len(runs) == 0 {
		return nil
	}
	result := r.db.Delete(&runs)
	return result.Error
}

func (r *Repository) DeleteSamples(samples []StoredSample) error {
	if len(samples) == 0 {
		return nil
	}
	result := r.db.Delete(&samples)
	return result.Error
}
