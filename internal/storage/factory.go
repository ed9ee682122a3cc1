package storage

import "strings"

// NewStorage creates an ObjectStorage from an endpoint. Endpoints starting
// with "file://" (or a bare path) use local-directory storage; anything else
// is treated as an S3-compatible service.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if dir, ok := strings.CutPrefix(cfg.Endpoint, "file://"); ok {
		return NewLocalStorage(dir)
	}
	if strings.HasPrefix(cfg.Endpoint, "/") || strings.HasPrefix(cfg.Endpoint, "./") {
		return NewLocalStorage(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}
