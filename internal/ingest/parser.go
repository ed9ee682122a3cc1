package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
)

// sampleLines is how many leading lines feed delimiter detection.
const sampleLines = 10

var expectedExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
}

// Parser turns a tabular input file into ordered, header-keyed rows.
type Parser struct {
	cfg config.EngineConfig
}

// NewParser creates a parser bound to the given engine settings.
func NewParser(cfg config.EngineConfig) *Parser {
	return &Parser{cfg: cfg}
}

// Parse reads, validates, and parses the file at path. Rows come back in file
// order; parsing the same unmodified file twice yields identical results.
func (p *Parser) Parse(ctx context.Context, path string) ([]*domain.RowData, error) {
	abs, err := ResolvePath(path, p.cfg.AllowPathTraversal)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.NotFoundError{Kind: "file", ID: abs}
		}
		return nil, &domain.FileProcessingError{Path: abs, Message: err.Error()}
	}

	maxBytes := int64(p.cfg.MaxInputSizeMB) * 1024 * 1024
	if info.Size() > maxBytes {
		return nil, &domain.FileProcessingError{
			Path:    abs,
			Message: fmt.Sprintf("file size %d exceeds limit of %d MB", info.Size(), p.cfg.MaxInputSizeMB),
		}
	}
	if info.Size() > maxBytes*8/10 {
		logger.CtxWarn(ctx, "input file %s is close to the size limit (%d bytes)", abs, info.Size())
	}

	if ext := strings.ToLower(filepath.Ext(abs)); !expectedExtensions[ext] {
		logger.CtxWarn(ctx, "input file %s has unexpected extension %q", abs, ext)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &domain.FileProcessingError{Path: abs, Message: err.Error()}
	}

	content, err := decodeContent(raw, p.cfg.Encoding)
	if err != nil {
		return nil, &domain.FileProcessingError{Path: abs, Message: err.Error()}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &domain.FileProcessingError{Path: abs, Message: "file is empty"}
	}

	delim, ok := detectDelimiter(content, sampleLines)
	if !ok {
		delim = p.cfg.FallbackDelimiterRune()
		logger.CtxWarn(ctx, "could not detect delimiter for %s, using fallback %q", abs, string(delim))
	}

	rows, err := p.parseRows(ctx, abs, content, delim)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.FileProcessingError{Path: abs, Message: "no usable data rows"}
	}
	return rows, nil
}

func (p *Parser) parseRows(ctx context.Context, path, content string, delim rune) ([]*domain.RowData, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, &domain.FileProcessingError{Path: path, Message: fmt.Sprintf("cannot read header: %v", err)}
	}
	header, err = p.normalizeHeader(ctx, path, header)
	if err != nil {
		return nil, err
	}

	var rows []*domain.RowData
	parsed := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.FileProcessingError{Path: path, Message: fmt.Sprintf("malformed row: %v", err)}
		}

		if p.cfg.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		row := domain.NewRowData()
		for i, key := range header {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			row.Set(key, value)
		}
		rows = append(rows, row)

		parsed++
		if parsed%p.cfg.ChunkSize == 0 {
			logger.CtxDebug(ctx, "parsed %d rows from %s", parsed, path)
		}
	}
	return rows, nil
}

// normalizeHeader validates or repairs the header row. With header validation
// enabled, blank or duplicate column names fail the parse; otherwise they are
// rewritten and a warning logged.
func (p *Parser) normalizeHeader(ctx context.Context, path string, header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			if p.cfg.ValidateHeaders {
				return nil, &domain.FileProcessingError{Path: path, Message: fmt.Sprintf("blank header at column %d", i+1)}
			}
			name = fmt.Sprintf("column_%d", i+1)
			logger.CtxWarn(ctx, "blank header at column %d in %s renamed to %q", i+1, path, name)
		}
		if n := seen[name]; n > 0 {
			if p.cfg.ValidateHeaders {
				return nil, &domain.FileProcessingError{Path: path, Message: fmt.Sprintf("duplicate header %q", name)}
			}
			renamed := fmt.Sprintf("%s_%d", name, n+1)
			logger.CtxWarn(ctx, "duplicate header %q in %s renamed to %q", name, path, renamed)
			seen[name]++
			name = renamed
		}
		seen[name]++
		out[i] = name
	}
	return out, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
