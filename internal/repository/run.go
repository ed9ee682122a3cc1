package repository

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunContext identifies the current process run and resolves every path under
// its run directory. It is passed explicitly rather than held as global state
// so independent batches and tests can use separate runs in one process.
type RunContext struct {
	RunID    string
	RunsRoot string
}

// NewRunContext allocates a fresh run id rooted at runsRoot.
func NewRunContext(runsRoot string) RunContext {
	id := fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	return RunContext{RunID: id, RunsRoot: runsRoot}
}

// RunDir returns this run's directory.
func (rc RunContext) RunDir() string {
	return filepath.Join(rc.RunsRoot, rc.RunID)
}

// BatchDir returns the directory holding one batch's files.
func (rc RunContext) BatchDir(batchID string) string {
	return filepath.Join(rc.RunDir(), batchID)
}

// ManifestPath returns the manifest file path for a batch.
func (rc RunContext) ManifestPath(batchID string) string {
	return filepath.Join(rc.BatchDir(batchID), "manifest.json")
}

// JobsDir returns the per-job files area for a batch.
func (rc RunContext) JobsDir(batchID string) string {
	return filepath.Join(rc.BatchDir(batchID), "jobs")
}

// JobPath returns the per-job file path.
func (rc RunContext) JobPath(batchID, jobID string) string {
	return filepath.Join(rc.JobsDir(batchID), jobID+".json")
}

// ArtifactsDir returns the artifact directory for one job.
func (rc RunContext) ArtifactsDir(batchID, jobID string) string {
	return filepath.Join(rc.BatchDir(batchID), "artifacts", jobID)
}

// SummaryPath returns the summary file path for a batch.
func (rc RunContext) SummaryPath(batchID string) string {
	return filepath.Join(rc.BatchDir(batchID), "summary.json")
}

// FailedRowsPath returns the failed-rows export path for a batch.
func (rc RunContext) FailedRowsPath(batchID string) string {
	return filepath.Join(rc.BatchDir(batchID), "failed_rows.csv")
}
