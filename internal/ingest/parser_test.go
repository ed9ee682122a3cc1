package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
)

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxInputSizeMB:     10,
		ChunkSize:          100,
		Encoding:           "utf-8",
		FallbackDelimiter:  ",",
		AllowPathTraversal: true,
		ValidateHeaders:    true,
		SkipEmptyRows:      true,
		RunsDir:            "./data/runs",
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestParseBasic(t *testing.T) {
	path := writeInput(t, "name,url\nalice,https://a.example\nbob,https://b.example\n")
	p := NewParser(testConfig())

	rows, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if v, _ := rows[0].Get("name"); v != "alice" {
		t.Errorf("row 0 name = %s", v)
	}
	if keys := rows[1].Keys(); keys[0] != "name" || keys[1] != "url" {
		t.Errorf("column order lost: %v", keys)
	}
}

func TestParseIdempotent(t *testing.T) {
	path := writeInput(t, "a,b\n1,2\n3,4\n5,6\n")
	p := NewParser(testConfig())

	first, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("row %d differs between parses", i)
		}
	}
}

func TestParseDelimiterDetection(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"semicolon", "a;b\n1;2\n"},
		{"tab", "a\tb\n1\t2\n"},
		{"pipe", "a|b\n1|2\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeInput(t, tc.content)
			rows, err := NewParser(testConfig()).Parse(context.Background(), path)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if rows[0].Len() != 2 {
				t.Errorf("expected 2 columns, got %d (%v)", rows[0].Len(), rows[0].Keys())
			}
			if v, _ := rows[0].Get("b"); v != "2" {
				t.Errorf("column b = %q, want 2", v)
			}
		})
	}
}

func TestParseSkipsEmptyRows(t *testing.T) {
	path := writeInput(t, "a,b\n1,2\n,\n   ,\n3,4\n")
	rows, err := NewParser(testConfig()).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected empty rows skipped, got %d rows", len(rows))
	}
}

func TestParseKeepsEmptyRowsWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.SkipEmptyRows = false
	path := writeInput(t, "a,b\n1,2\n,\n")
	rows, err := NewParser(cfg).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows including the empty one, got %d", len(rows))
	}
}

func TestParseFailures(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"whitespace only", "   \n\t\n"},
		{"only empty data rows", "a,b\n,\n,\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeInput(t, tc.content)
			_, err := NewParser(testConfig()).Parse(context.Background(), path)
			var fpErr *domain.FileProcessingError
			if !errors.As(err, &fpErr) {
				t.Errorf("expected FileProcessingError, got %v", err)
			}
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")
	_, err := NewParser(testConfig()).Parse(context.Background(), path)
	var nfErr *domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestParseHeaderValidation(t *testing.T) {
	p := NewParser(testConfig())

	for name, content := range map[string]string{
		"blank header":     "a,,c\n1,2,3\n",
		"duplicate header": "a,a\n1,2\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeInput(t, content)
			_, err := p.Parse(context.Background(), path)
			var fpErr *domain.FileProcessingError
			if !errors.As(err, &fpErr) {
				t.Errorf("expected FileProcessingError, got %v", err)
			}
		})
	}
}

func TestParseHeaderRepairWhenValidationOff(t *testing.T) {
	cfg := testConfig()
	cfg.ValidateHeaders = false
	path := writeInput(t, "a,,a\n1,2,3\n")

	rows, err := NewParser(cfg).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	keys := rows[0].Keys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 distinct columns, got %v", keys)
	}
	if keys[0] != "a" || keys[1] != "column_2" || keys[2] != "a_2" {
		t.Errorf("repaired header = %v", keys)
	}
}

func TestParseRowShorterThanHeader(t *testing.T) {
	path := writeInput(t, "a,b,c\n1,2\n")
	rows, err := NewParser(testConfig()).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := rows[0].Get("c"); !ok || v != "" {
		t.Errorf("missing field should be empty string, got %q ok=%v", v, ok)
	}
}

func TestParseSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInputSizeMB = 1
	big := make([]byte, 2*1024*1024)
	for i := range big {
		big[i] = 'a'
	}
	path := writeInput(t, "a,b\n"+string(big)+",2\n")

	_, err := NewParser(cfg).Parse(context.Background(), path)
	var fpErr *domain.FileProcessingError
	if !errors.As(err, &fpErr) {
		t.Errorf("expected FileProcessingError for oversized input, got %v", err)
	}
}
