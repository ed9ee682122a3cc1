package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/service"
)

// BatchHandler exposes batch lifecycle operations over HTTP.
type BatchHandler struct {
	batches       *service.BatchService
	defaultPolicy service.RetryPolicy
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(batches *service.BatchService, defaultPolicy service.RetryPolicy) *BatchHandler {
	return &BatchHandler{batches: batches, defaultPolicy: defaultPolicy}
}

// CreateBatchRequest is the create API request.
type CreateBatchRequest struct {
	InputPath string `json:"input_path" binding:"required"`
}

// RetryPolicyRequest optionally overrides the default retry policy.
type RetryPolicyRequest struct {
	MaxRetries     *int     `json:"max_retries"`
	InitialDelayMs *int     `json:"initial_delay_ms"`
	BackoffFactor  *float64 `json:"backoff_factor"`
	MaxDelayMs     *int     `json:"max_delay_ms"`
}

// RetryJobsRequest is the retry-preparation API request.
type RetryJobsRequest struct {
	JobIDs []string           `json:"job_ids" binding:"required"`
	Policy RetryPolicyRequest `json:"policy"`
}

func (h *BatchHandler) policyFrom(req RetryPolicyRequest) service.RetryPolicy {
	policy := h.defaultPolicy
	if req.MaxRetries != nil {
		policy.MaxRetries = *req.MaxRetries
	}
	if req.InitialDelayMs != nil {
		policy.InitialDelay = time.Duration(*req.InitialDelayMs) * time.Millisecond
	}
	if req.BackoffFactor != nil {
		policy.BackoffFactor = *req.BackoffFactor
	}
	if req.MaxDelayMs != nil {
		policy.MaxDelay = time.Duration(*req.MaxDelayMs) * time.Millisecond
	}
	return policy
}

// CreateBatch creates a batch from an input file.
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.batches.CreateBatch(c.Request.Context(), req.InputPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// GetBatch returns a batch's manifest.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	m, err := h.batches.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ExecuteBatch runs all pending jobs of a batch and returns the result.
func (h *BatchHandler) ExecuteBatch(c *gin.Context) {
	var req RetryPolicyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.batches.ExecuteBatch(c.Request.Context(), c.Param("id"), h.policyFrom(req), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryJobs resets failed jobs back to pending.
func (h *BatchHandler) RetryJobs(c *gin.Context) {
	var req RetryJobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.batches.RetryJobs(c.Request.Context(), c.Param("id"), req.JobIDs, h.policyFrom(req.Policy))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StopBatch stops all pending and running jobs of a batch.
func (h *BatchHandler) StopBatch(c *gin.Context) {
	result, err := h.batches.StopBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSummary returns the derived summary for a batch.
func (h *BatchHandler) GetSummary(c *gin.Context) {
	summary, err := h.batches.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// respondError maps engine error types to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		fileProc   *domain.FileProcessingError
		security   *domain.SecurityError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation), errors.As(err, &fileProc):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &security):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
