// Package service implements the batch engine: batch creation from a tabular
// input, sequential job execution with bounded backoff retry, stop and retry
// operations, summaries, and failed-row exports.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/executor"
	"github.com/dkaiser/batchline/internal/ingest"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
	"github.com/dkaiser/batchline/internal/storage"
)

// ProgressFunc is invoked after each job resolves with the number of resolved
// jobs and the batch total. Failures inside the callback never abort the
// batch.
type ProgressFunc func(completed, total int)

// BatchService drives the lifecycle of batches. All mutation of one batch's
// manifest happens on the goroutine executing that batch; different batches
// are independent.
type BatchService struct {
	parser   *ingest.Parser
	repo     *repository.ManifestRepository
	executor executor.Executor
	mirror   storage.ObjectStorage // optional artifact mirror, may be nil
	logger   *logger.Logger

	// sleep is the backoff wait; injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	stopFlags map[string]chan struct{} // batch id -> closed when stop requested
}

// NewBatchService creates a batch service. mirror may be nil to disable
// artifact mirroring.
func NewBatchService(
	parser *ingest.Parser,
	repo *repository.ManifestRepository,
	exec executor.Executor,
	mirror storage.ObjectStorage,
	log *logger.Logger,
) *BatchService {
	return &BatchService{
		parser:    parser,
		repo:      repo,
		executor:  exec,
		mirror:    mirror,
		logger:    log,
		sleep:     ctxSleep,
		stopFlags: make(map[string]chan struct{}),
	}
}

// log returns a logger from context if available, otherwise the service's
// default.
func (s *BatchService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// CreateBatch parses the input file and persists a new batch with one pending
// job per row. No file is written when ingestion fails.
func (s *BatchService) CreateBatch(ctx context.Context, inputPath string) (*domain.Manifest, error) {
	rows, err := s.parser.Parse(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	m, err := s.repo.CreateJobs(ctx, inputPath, rows)
	if err != nil {
		return nil, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: m.BatchID,
		logger.FieldRunID:   m.RunID,
		logger.FieldCount:   m.TotalJobs,
	}).Info("Batch ready for execution")
	return m, nil
}

// Load returns the manifest for batchID.
func (s *BatchService) Load(ctx context.Context, batchID string) (*domain.Manifest, error) {
	return s.repo.Load(ctx, batchID)
}

// ctxSleep waits for d without blocking other goroutines, returning early if
// the context is cancelled.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopChan returns the stop flag channel for a batch, creating it if needed.
func (s *BatchService) stopChan(batchID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.stopFlags[batchID]
	if !ok {
		ch = make(chan struct{})
		s.stopFlags[batchID] = ch
	}
	return ch
}

// raiseStop marks a batch as stop-requested. Idempotent.
func (s *BatchService) raiseStop(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.stopFlags[batchID]
	if !ok {
		ch = make(chan struct{})
		s.stopFlags[batchID] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// clearStop resets the stop flag after an execution loop finishes.
func (s *BatchService) clearStop(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stopFlags, batchID)
}

func stopRequested(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
