package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "golang.org/x/image/webp"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
)

// AddArtifact attaches a side-output file to a job: it locates the owning
// manifest, writes content under the job's artifact directory, appends the
// artifact record, and persists the manifest. When ext is empty it is
// inferred from the content. Returns the written file's path.
func (s *BatchService) AddArtifact(ctx context.Context, jobID, artifactType string, content []byte, ext string, meta map[string]any) (string, error) {
	if jobID == "" {
		return "", &domain.ValidationError{Field: "job_id", Message: "must not be empty"}
	}
	if artifactType == "" {
		return "", &domain.ValidationError{Field: "type", Message: "must not be empty"}
	}

	m, err := s.repo.FindContaining(ctx, jobID)
	if err != nil {
		return "", err
	}
	job := m.Job(jobID)

	if ext == "" {
		ext = inferExtension(content)
	}
	now := time.Now().UTC()
	name := fmt.Sprintf("%s_%s.%s", artifactType, now.Format("20060102T150405.000000000"), ext)
	dir := filepath.Join(s.repo.BatchDirFor(ctx, m), "artifacts", jobID)
	path := filepath.Join(dir, name)

	if err := repository.WriteBytes(path, content); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	job.Artifacts = append(job.Artifacts, domain.Artifact{
		Type:      artifactType,
		Path:      path,
		CreatedAt: now,
		Meta:      meta,
	})
	if err := s.repo.Save(ctx, m); err != nil {
		return "", err
	}

	s.mirrorArtifact(ctx, m.BatchID, jobID, name, content)

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID: jobID,
		"artifact_type":   artifactType,
	}).Debug("Artifact recorded")
	return path, nil
}

// mirrorArtifact uploads a copy to object storage when a mirror is
// configured. Failures are logged and never affect job processing.
func (s *BatchService) mirrorArtifact(ctx context.Context, batchID, jobID, name string, content []byte) {
	if s.mirror == nil {
		return
	}
	key := fmt.Sprintf("%s/%s/%s", batchID, jobID, name)
	if err := s.mirror.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), contentTypeFor(name)); err != nil {
		s.log(ctx).WithError(err).Warn("Artifact mirror upload failed")
	}
}

// inferExtension picks an extension from the content shape: structured JSON,
// a recognizable image, arbitrary binary, or plain text.
func inferExtension(content []byte) string {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return "json"
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(content)); err == nil {
		switch format {
		case "jpeg":
			return "jpg"
		default:
			return format
		}
	}
	if !utf8.Valid(content) || bytes.ContainsRune(content, 0) {
		return "bin"
	}
	return "txt"
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
