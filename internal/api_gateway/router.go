package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/receiptflow-ledger/internal/api_gateway/handler"
	"github.com/receiptflow-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	receiptHandler *handler.ReceiptHandler,
	adminHandler *handler.AdminHandler,
	sheetConfigHandler *handler.SheetConfigHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Receipt lifecycle operations
		receipts := v1.Group("/receipts")
		{
			receipts.POST("", receiptHandler.Submit)
			receipts.GET("/pending", receiptHandler.ListPending)
			receipts.GET("/:id", receiptHandler.GetByID)
			receipts.POST("/:id/finalize", receiptHandler.Finalize)
			receipts.GET("/:id/record", receiptHandler.GetRecord)
		}

		// Per-user aggregates and history
		users := v1.Group("/users")
		{
			users.GET("/:id/stats", receiptHandler.GetUserStats)
			users.GET("/:id/records", receiptHandler.GetUserRecords)
		}

		// Destination ledger configuration
		configs := v1.Group("/sheet-configs")
		{
			configs.POST("", sheetConfigHandler.Create)
			configs.GET("", sheetConfigHandler.List)
			configs.GET("/:id", sheetConfigHandler.GetByID)
			configs.PUT("/:id", sheetConfigHandler.Update)
			configs.POST("/:id/default", sheetConfigHandler.SetDefault)
			configs.POST("/:id/status", sheetConfigHandler.SetStatus)
			configs.POST("/:id/assign", sheetConfigHandler.Assign)
		}

		// Admin review and audit operations
		admin := v1.Group("/admin")
		{
			admin.POST("/receipts/:id/approve", adminHandler.Approve)
			admin.POST("/receipts/:id/reject", adminHandler.Reject)
			admin.GET("/logs", adminHandler.QueryLogs)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
