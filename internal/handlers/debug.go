package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, reconciler Reconciler, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		ctx := telemetry.WithRequestID(c.Request.Context(), requestIDFromContext(c))
		emitter.Emit(ctx, "INFO", "audit test", "", userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Runs one reconciler sweep outside the schedule.
	router.POST("/debug/reconcile", func(c *gin.Context) {
		report, err := reconciler.Reconcile(c.Request.Context())
		respond(c, http.StatusOK, report, err)
	})
}
