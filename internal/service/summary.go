package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
)

// Summarize computes the summary for a batch without touching job state.
func (s *BatchService) Summarize(ctx context.Context, batchID string) (*domain.Summary, error) {
	m, err := s.repo.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return domain.Summarize(m), nil
}

// WriteSummary computes the summary and persists it next to the manifest.
func (s *BatchService) WriteSummary(ctx context.Context, m *domain.Manifest) (*domain.Summary, error) {
	summary := domain.Summarize(m)
	path := filepath.Join(s.repo.BatchDirFor(ctx, m), "summary.json")
	if err := repository.WriteJSON(path, summary); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: m.BatchID,
		"success_rate":      summary.SuccessRate,
	}).Info("Summary written")
	return summary, nil
}

// ExportFailedRows writes a CSV of every failed job's original row plus
// error_message, job_id, and failed_at columns, in job order. A no-op when no
// job failed.
func (s *BatchService) ExportFailedRows(ctx context.Context, m *domain.Manifest) error {
	var failed []*domain.Job
	for _, j := range m.Jobs {
		if j.Status == domain.JobStatusFailed {
			failed = append(failed, j)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	// header: union of the original row columns, in first-seen order
	var columns []string
	seen := make(map[string]bool)
	for _, j := range failed {
		for _, key := range j.RowData.Keys() {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	header := append(append([]string{}, columns...), "error_message", "job_id", "failed_at")

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, j := range failed {
		record := make([]string, 0, len(header))
		for _, key := range columns {
			value, _ := j.RowData.Get(key)
			record = append(record, value)
		}
		failedAt := ""
		if j.CompletedAt != nil {
			failedAt = j.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		record = append(record, j.ErrorMessage, j.JobID, failedAt)
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}

	path := filepath.Join(s.repo.BatchDirFor(ctx, m), "failed_rows.csv")
	if err := repository.WriteBytes(path, []byte(buf.String())); err != nil {
		return fmt.Errorf("write failed rows export: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: m.BatchID,
		logger.FieldCount:   len(failed),
	}).Info("Failed rows exported")
	return nil
}
