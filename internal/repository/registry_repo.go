package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dkaiser/batchline/internal/domain"
)

// BatchRecord is the registry row for one batch. It is a lookup accelerator
// only; the manifest file remains the source of truth.
type BatchRecord struct {
	BatchID       string    `gorm:"type:text;primaryKey" json:"batch_id"`
	RunID         string    `gorm:"type:text;not null;index" json:"run_id"`
	ManifestPath  string    `gorm:"type:text;not null" json:"manifest_path"`
	TotalJobs     int       `gorm:"default:0" json:"total_jobs"`
	CompletedJobs int       `gorm:"default:0" json:"completed_jobs"`
	FailedJobs    int       `gorm:"default:0" json:"failed_jobs"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for BatchRecord.
func (BatchRecord) TableName() string {
	return "batch_records"
}

// BatchRegistry reads and writes batch records.
type BatchRegistry struct {
	db *gorm.DB
}

// NewBatchRegistry creates a registry repository.
func NewBatchRegistry(db *gorm.DB) *BatchRegistry {
	return &BatchRegistry{db: db}
}

// Upsert inserts or refreshes the record for a manifest.
func (r *BatchRegistry) Upsert(ctx context.Context, m *domain.Manifest, manifestPath string) error {
	rec := BatchRecord{
		BatchID:       m.BatchID,
		RunID:         m.RunID,
		ManifestPath:  manifestPath,
		TotalJobs:     m.TotalJobs,
		CompletedJobs: m.CompletedJobs,
		FailedJobs:    m.FailedJobs,
		UpdatedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// Find returns the record for batchID, or nil when absent.
func (r *BatchRegistry) Find(ctx context.Context, batchID string) (*BatchRecord, error) {
	var rec BatchRecord
	err := r.db.WithContext(ctx).First(&rec, "batch_id = ?", batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records for a run, most recently updated first.
func (r *BatchRegistry) List(ctx context.Context, runID string) ([]BatchRecord, error) {
	var recs []BatchRecord
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
