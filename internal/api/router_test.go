package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/executor"
	"github.com/dkaiser/batchline/internal/ingest"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
	"github.com/dkaiser/batchline/internal/service"
)

func testRouter(t *testing.T, allowTraversal bool) *gin.Engine {
	t.Helper()

	run := repository.NewRunContext(filepath.Join(t.TempDir(), "runs"))
	repo := repository.NewManifestRepository(run, nil)
	parser := ingest.NewParser(config.EngineConfig{
		MaxInputSizeMB:     10,
		ChunkSize:          100,
		Encoding:           "utf-8",
		FallbackDelimiter:  ",",
		AllowPathTraversal: allowTraversal,
		ValidateHeaders:    true,
		SkipEmptyRows:      true,
		RunsDir:            run.RunsRoot,
	})
	exec, err := executor.New(config.ExecutorConfig{Kind: "noop"})
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewBatchService(parser, repo, exec, nil, logger.New(nil))

	policy := service.RetryPolicy{
		MaxRetries:    1,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
	return SetupRouter(svc, policy, "test")
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t, true)
	w := doJSON(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	r := testRouter(t, true)

	input := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(input, []byte("name,url\nalice,https://a.example\nbob,https://b.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/batches", `{"input_path": "`+input+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		BatchID   string `json:"batch_id"`
		TotalJobs int    `json:"total_jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse create response: %v", err)
	}
	if created.TotalJobs != 2 || created.BatchID == "" {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/batches/"+created.BatchID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/batches/"+created.BatchID+"/execute", "")
	if w.Code != http.StatusOK {
		t.Fatalf("execute status = %d: %s", w.Code, w.Body.String())
	}
	var result service.ExecuteResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Executed != 2 || result.Completed != 2 {
		t.Fatalf("execute result = %+v", result)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/batches/"+created.BatchID+"/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success_rate":100`) {
		t.Errorf("summary body = %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/batches/"+created.BatchID+"/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d", w.Code)
	}
	var stop service.StopResult
	if err := json.Unmarshal(w.Body.Bytes(), &stop); err != nil {
		t.Fatal(err)
	}
	if stop.Stopped != 0 || stop.Unaffected != 2 {
		t.Errorf("stop result = %+v", stop)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Run("unknown batch is 404", func(t *testing.T) {
		r := testRouter(t, true)
		w := doJSON(t, r, http.MethodGet, "/api/v1/batches/batch_nope", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("missing input_path is 400", func(t *testing.T) {
		r := testRouter(t, true)
		w := doJSON(t, r, http.MethodPost, "/api/v1/batches", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("path traversal is 403", func(t *testing.T) {
		r := testRouter(t, false)
		input := filepath.Join(t.TempDir(), "outside.csv")
		if err := os.WriteFile(input, []byte("a,b\n1,2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		w := doJSON(t, r, http.MethodPost, "/api/v1/batches", `{"input_path": "`+input+`"}`)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("retry without job ids is 400", func(t *testing.T) {
		r := testRouter(t, true)
		w := doJSON(t, r, http.MethodPost, "/api/v1/batches/batch_x/retry", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	r := testRouter(t, true)
	w := doJSON(t, r, http.MethodGet, "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
