package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/executor"
	"github.com/dkaiser/batchline/internal/ingest"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
)

// harness wires a BatchService against a temp run tree with an injectable
// executor and no real backoff waits.
type harness struct {
	svc  *BatchService
	repo *repository.ManifestRepository
}

func newHarness(t *testing.T, exec executor.Executor) *harness {
	t.Helper()

	run := repository.NewRunContext(filepath.Join(t.TempDir(), "runs"))
	repo := repository.NewManifestRepository(run, nil)
	parser := ingest.NewParser(config.EngineConfig{
		MaxInputSizeMB:     10,
		ChunkSize:          100,
		Encoding:           "utf-8",
		FallbackDelimiter:  ",",
		AllowPathTraversal: true,
		ValidateHeaders:    true,
		SkipEmptyRows:      true,
		RunsDir:            run.RunsRoot,
	})
	svc := NewBatchService(parser, repo, exec, nil, logger.New(nil))
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return &harness{svc: svc, repo: repo}
}

func (h *harness) createBatch(t *testing.T, content string) *domain.Manifest {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	m, err := h.svc.CreateBatch(context.Background(), path)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return m
}

func (h *harness) reload(t *testing.T, batchID string) *domain.Manifest {
	t.Helper()
	m, err := h.repo.Load(context.Background(), batchID)
	if err != nil {
		t.Fatalf("reload manifest: %v", err)
	}
	return m
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
}

// succeedAll resolves every row.
var succeedAll = executor.Func(func(ctx context.Context, row *domain.RowData) error {
	return nil
})

// failWhere fails rows whose column equals value, permanently.
func failWhere(column, value string) executor.Executor {
	return executor.Func(func(ctx context.Context, row *domain.RowData) error {
		if v, _ := row.Get(column); v == value {
			return &domain.ExecutionError{Kind: "http_status", Message: "upstream returned 500"}
		}
		return nil
	})
}

const threeRowInput = "name,url\nalice,https://a.example\nbob,https://b.example\ncarol,https://c.example\n"
