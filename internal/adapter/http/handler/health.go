package handler

import (
	"context"
	"net/http"
	"time"

	"refund-autopilot/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a handler reporting dependency health plus the count of
// audit entries that could not be persisted since startup.
func HealthCheck(audit ports.AuditService, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		deps := make(map[string]string, len(checkers))
		healthy := true
		for _, hc := range checkers {
			if err := hc.Ping(ctx); err != nil {
				deps[hc.Name()] = "down"
				healthy = false
			} else {
				deps[hc.Name()] = "up"
			}
		}

		status := http.StatusOK
		overall := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		body := gin.H{
			"status":       overall,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		}
		if audit != nil {
			body["audit_entries_dropped"] = audit.Dropped()
		}

		c.JSON(status, body)
	}
}
