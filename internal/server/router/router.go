package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(scan *handlers.ScanHandler, reports *handlers.ReportHandler, exposeMetrics bool, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/scan/start", scan.Start)
	r.POST("/scan/stop", scan.Stop)
	r.GET("/scan/status", scan.Status)

	r.POST("/counts/resolve", scan.Resolve)
	r.POST("/counts/branch", scan.SelectBranch)
	r.PUT("/counts/current", scan.UpdateCount)
	r.POST("/counts/photos", scan.AttachPhoto)
	r.POST("/counts/submit", scan.Submit)

	r.POST("/reports/refresh", reports.Refresh)
	r.GET("/reports", reports.List)
	r.GET("/reports/summary", reports.Summary)
	r.GET("/reports/export", reports.Export)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if exposeMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
