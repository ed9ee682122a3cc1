package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
)

// ManifestRepository persists batch manifests and per-job files under a run
// tree. One writer per batch is assumed; there is no cross-process locking.
type ManifestRepository struct {
	run      RunContext
	registry *BatchRegistry // optional lookup accelerator, may be nil
}

// NewManifestRepository creates a repository bound to a run context. registry
// may be nil to disable the database index.
func NewManifestRepository(run RunContext, registry *BatchRegistry) *ManifestRepository {
	return &ManifestRepository{run: run, registry: registry}
}

// Run returns the repository's run context.
func (r *ManifestRepository) Run() RunContext {
	return r.run
}

// CreateJobs allocates a new batch, builds one pending job per row in row
// order, writes each job to its own file, and persists the manifest. Nothing
// is written if any step fails before the first file write.
func (r *ManifestRepository) CreateJobs(ctx context.Context, inputPath string, rows []*domain.RowData) (*domain.Manifest, error) {
	if len(rows) == 0 {
		return nil, &domain.ValidationError{Field: "rows", Message: "no rows to create jobs from"}
	}

	now := time.Now().UTC()
	batchID := fmt.Sprintf("batch_%s_%s", now.Format("20060102T150405"), uuid.NewString()[:8])

	m := &domain.Manifest{
		BatchID:   batchID,
		RunID:     r.run.RunID,
		InputPath: inputPath,
		TotalJobs: len(rows),
		CreatedAt: now,
		Jobs:      make([]*domain.Job, 0, len(rows)),
	}
	for i, row := range rows {
		m.Jobs = append(m.Jobs, domain.NewJob(r.run.RunID, batchID, i+1, row, now))
	}

	// Per-job files are written once, at creation time. The manifest stays
	// authoritative for state afterwards.
	for _, j := range m.Jobs {
		if err := WriteJSON(r.run.JobPath(batchID, j.JobID), j); err != nil {
			return nil, fmt.Errorf("write job file: %w", err)
		}
	}
	if err := r.Save(ctx, m); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: batchID,
		logger.FieldCount:   len(rows),
	}).Info("Batch created")
	return m, nil
}

// Save persists the manifest atomically and refreshes the registry record.
// Registry failures are logged and never fail the save.
func (r *ManifestRepository) Save(ctx context.Context, m *domain.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	path := r.run.ManifestPath(m.BatchID)
	if m.RunID != r.run.RunID {
		// Batch belongs to an earlier run; persist it where it was found.
		found, err := r.locate(ctx, m.BatchID)
		if err == nil {
			path = found
		}
	}
	if err := WriteJSON(path, m); err != nil {
		return fmt.Errorf("save manifest %s: %w", m.BatchID, err)
	}

	if r.registry != nil {
		if err := r.registry.Upsert(ctx, m, path); err != nil {
			logger.CtxWarn(ctx, "batch registry update failed for %s: %v", m.BatchID, err)
		}
	}
	return nil
}

// Load reads the manifest for batchID, checking the active run first and then
// scanning the run tree. Returns NotFoundError when no manifest matches.
func (r *ManifestRepository) Load(ctx context.Context, batchID string) (*domain.Manifest, error) {
	path, err := r.locate(ctx, batchID)
	if err != nil {
		return nil, err
	}
	var m domain.Manifest
	if err := ReadJSON(path, &m); err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", batchID, err)
	}
	return &m, nil
}

// FindContaining returns the manifest owning jobID. Job ids embed the run id,
// not the batch id, so several manifests can match; the most recently modified
// one wins, mirroring locate.
func (r *ManifestRepository) FindContaining(ctx context.Context, jobID string) (*domain.Manifest, error) {
	manifests, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	var best *domain.Manifest
	var bestMod time.Time
	for _, path := range manifests {
		var m domain.Manifest
		if err := ReadJSON(path, &m); err != nil {
			logger.CtxWarn(ctx, "skipping unreadable manifest %s: %v", path, err)
			continue
		}
		if m.Job(jobID) == nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if best == nil || info.ModTime().After(bestMod) {
			cp := m
			best = &cp
			bestMod = info.ModTime()
		}
	}
	if best == nil {
		return nil, &domain.NotFoundError{Kind: "job", ID: jobID}
	}
	return best, nil
}

// BatchDirFor returns the directory a batch's files live in, resolving
// batches created by earlier runs to their original location.
func (r *ManifestRepository) BatchDirFor(ctx context.Context, m *domain.Manifest) string {
	if m.RunID == r.run.RunID {
		return r.run.BatchDir(m.BatchID)
	}
	if path, err := r.locate(ctx, m.BatchID); err == nil {
		return filepath.Dir(path)
	}
	return r.run.BatchDir(m.BatchID)
}

// locate resolves the manifest path for a batch: active run first, then the
// registry, then a run-tree scan where the most recently modified match wins.
func (r *ManifestRepository) locate(ctx context.Context, batchID string) (string, error) {
	active := r.run.ManifestPath(batchID)
	if _, err := os.Stat(active); err == nil {
		return active, nil
	}

	if r.registry != nil {
		if rec, err := r.registry.Find(ctx, batchID); err == nil && rec != nil {
			if _, err := os.Stat(rec.ManifestPath); err == nil {
				return rec.ManifestPath, nil
			}
		}
	}

	candidates, err := r.scan(ctx)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, path := range candidates {
		var m domain.Manifest
		if err := ReadJSON(path, &m); err != nil {
			continue
		}
		if m.BatchID != batchID {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = path
			bestMod = info.ModTime()
		}
	}
	if best == "" {
		return "", &domain.NotFoundError{Kind: "batch", ID: batchID}
	}
	return best, nil
}

// scan lists every manifest file in the run tree, the active run's first.
func (r *ManifestRepository) scan(ctx context.Context) ([]string, error) {
	var out []string

	appendRun := func(runDir string) {
		entries, err := os.ReadDir(runDir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(runDir, e.Name(), "manifest.json")
			if _, err := os.Stat(path); err == nil {
				out = append(out, path)
			}
		}
	}

	appendRun(r.run.RunDir())

	runs, err := os.ReadDir(r.run.RunsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read runs directory %s: %w", r.run.RunsRoot, err)
	}
	for _, e := range runs {
		if !e.IsDir() || e.Name() == r.run.RunID {
			continue
		}
		appendRun(filepath.Join(r.run.RunsRoot, e.Name()))
	}
	return out, nil
}
