package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retailops/stockaudit/internal/scanner"
	"github.com/retailops/stockaudit/internal/service/audit"
	"github.com/retailops/stockaudit/pkg/clients/inventory"
)

// writeError converts a typed domain error into the HTTP boundary response.
// Every error kind is handled here; nothing escapes as an unhandled fault.
func writeError(c *gin.Context, err error) {
	var (
		deviceErr *scanner.DeviceAccessError
		netErr    *inventory.NetworkError
		rateErr   *inventory.RateLimitError
	)

	switch {
	case inventory.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "not_found"})
	case errors.As(err, &rateErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "kind": "rate_limited", "retryable": true})
	case audit.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": "validation"})
	case errors.Is(err, audit.ErrNoActiveCount), errors.Is(err, audit.ErrUnknownBranch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "session"})
	case errors.As(err, &deviceErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "kind": "device_access"})
	case errors.As(err, &netErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": "network", "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
