package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/repository"
)

func TestSummarizeBatch(t *testing.T) {
	h := newHarness(t, failWhere("name", "bob"))
	ctx := context.Background()
	m := h.createBatch(t, threeRowInput)

	if _, err := h.svc.ExecuteBatch(ctx, m.BatchID, testPolicy(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	summary, err := h.svc.Summarize(ctx, m.BatchID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalJobs != 3 || summary.CompletedJobs != 2 || summary.FailedJobs != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	want := float64(2) / float64(3) * 100
	if summary.SuccessRate != want {
		t.Errorf("success rate = %g, want %g", summary.SuccessRate, want)
	}
	if summary.CompletedAt == nil {
		t.Error("resolved batch should carry a completion time")
	}
}

func TestExportFailedRowsContents(t *testing.T) {
	h := newHarness(t, failWhere("name", "bob"))
	ctx := context.Background()
	m := h.createBatch(t, threeRowInput)

	if _, err := h.svc.ExecuteBatch(ctx, m.BatchID, testPolicy(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	loaded := h.reload(t, m.BatchID)
	path := filepath.Join(h.repo.BatchDirFor(ctx, loaded), "failed_rows.csv")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one failed row, got %d records", len(records))
	}

	header := records[0]
	wantHeader := []string{"name", "url", "error_message", "job_id", "failed_at"}
	if len(header) != len(wantHeader) {
		t.Fatalf("header = %v", header)
	}
	for i := range wantHeader {
		if header[i] != wantHeader[i] {
			t.Errorf("header[%d] = %s, want %s", i, header[i], wantHeader[i])
		}
	}

	row := records[1]
	if row[0] != "bob" || row[1] != "https://b.example" {
		t.Errorf("original row fields = %v", row[:2])
	}
	if !strings.Contains(row[2], "failed after 3 attempts") {
		t.Errorf("error_message = %q", row[2])
	}
	if row[3] != loaded.Jobs[1].JobID {
		t.Errorf("job_id = %s, want %s", row[3], loaded.Jobs[1].JobID)
	}
	if row[4] == "" {
		t.Error("failed_at is empty")
	}
}

func TestExportFailedRowsNoFailures(t *testing.T) {
	h := newHarness(t, succeedAll)
	ctx := context.Background()
	m := h.createBatch(t, threeRowInput)

	if _, err := h.svc.ExecuteBatch(ctx, m.BatchID, testPolicy(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	loaded := h.reload(t, m.BatchID)
	if err := h.svc.ExportFailedRows(ctx, loaded); err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(h.repo.BatchDirFor(ctx, loaded), "failed_rows.csv")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("export should not exist without failures: %v", err)
	}
}

func TestSummaryOverwrittenAfterRetry(t *testing.T) {
	h := newHarness(t, failWhere("name", "bob"))
	ctx := context.Background()
	m := h.createBatch(t, threeRowInput)

	if _, err := h.svc.ExecuteBatch(ctx, m.BatchID, testPolicy(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	first, err := h.svc.Summarize(ctx, m.BatchID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if first.FailedJobs != 1 {
		t.Fatalf("first summary = %+v", first)
	}

	loaded := h.reload(t, m.BatchID)
	failedID := loaded.Jobs[1].JobID
	if _, err := h.svc.RetryJobs(ctx, m.BatchID, []string{failedID}, testPolicy()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.svc.executor = succeedAll
	if _, err := h.svc.ExecuteBatch(ctx, m.BatchID, testPolicy(), nil); err != nil {
		t.Fatalf("re-execute: %v", err)
	}

	var persisted domain.Summary
	loaded = h.reload(t, m.BatchID)
	path := filepath.Join(h.repo.BatchDirFor(ctx, loaded), "summary.json")
	if err := repository.ReadJSON(path, &persisted); err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if persisted.CompletedJobs != 3 || persisted.SuccessRate != 100 {
		t.Errorf("persisted summary = %+v", persisted)
	}
}
