package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dkaiser/batchline/internal/api/handler"
	"github.com/dkaiser/batchline/internal/api/middleware"
	"github.com/dkaiser/batchline/internal/service"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	batchService *service.BatchService,
	defaultPolicy service.RetryPolicy,
	mode string,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	healthHandler := handler.NewHealthHandler()
	batchHandler := handler.NewBatchHandler(batchService, defaultPolicy)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/batches", batchHandler.CreateBatch)
		v1.GET("/batches/:id", batchHandler.GetBatch)
		v1.POST("/batches/:id/execute", batchHandler.ExecuteBatch)
		v1.POST("/batches/:id/retry", batchHandler.RetryJobs)
		v1.POST("/batches/:id/stop", batchHandler.StopBatch)
		v1.GET("/batches/:id/summary", batchHandler.GetSummary)
	}

	return r
}
