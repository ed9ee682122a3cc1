package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkaiser/batchline/internal/domain"
)

func TestResolvePathTraversalPolicy(t *testing.T) {
	workDir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "outside.csv")
	if err := os.WriteFile(outside, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(workDir, "inside.csv")
	if err := os.WriteFile(inside, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(workDir)

	t.Run("outside cwd denied", func(t *testing.T) {
		_, err := ResolvePath(outside, false)
		var secErr *domain.SecurityError
		if !errors.As(err, &secErr) {
			t.Errorf("expected SecurityError, got %v", err)
		}
	})

	t.Run("inside cwd allowed", func(t *testing.T) {
		abs, err := ResolvePath("inside.csv", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !filepath.IsAbs(abs) {
			t.Errorf("expected absolute path, got %s", abs)
		}
	})

	t.Run("outside cwd allowed with traversal", func(t *testing.T) {
		if _, err := ResolvePath(outside, true); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("relative escape denied", func(t *testing.T) {
		_, err := ResolvePath(filepath.Join("..", "escape.csv"), false)
		var secErr *domain.SecurityError
		if !errors.As(err, &secErr) {
			t.Errorf("expected SecurityError, got %v", err)
		}
	})
}

func TestResolvePathDeniedDirs(t *testing.T) {
	for _, path := range []string{"/etc/passwd", "/proc/self/environ", "/sys/kernel/x"} {
		t.Run(path, func(t *testing.T) {
			_, err := ResolvePath(path, true)
			var secErr *domain.SecurityError
			if !errors.As(err, &secErr) {
				t.Errorf("expected SecurityError for %s, got %v", path, err)
			}
		})
	}
}
