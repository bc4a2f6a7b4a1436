package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/export"
	"github.com/retailops/stockaudit/internal/service/report"
)

const anchorDateLayout = "2006-01-02"

// ReportHandler exposes the supervisor-facing filtering and export surface.
type ReportHandler struct {
	reportSvc *report.Service
	builder   *export.Builder
	logger    *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(reportSvc *report.Service, builder *export.Builder, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reportSvc: reportSvc, builder: builder, logger: logger}
}

// Refresh re-fetches the audit trail on user request, resetting pagination.
func (h *ReportHandler) Refresh(c *gin.Context) {
	if err := h.reportSvc.Refresh(c.Request.Context(), report.UserFilterChange); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": len(h.reportSvc.Records())})
}

// List applies the supplied filters and returns one page of matching
// records. Filter parameters count as user changes and reset the page;
// an explicit page parameter is applied afterwards.
func (h *ReportHandler) List(c *gin.Context) {
	if err := h.applyFilters(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if raw, ok := c.GetQuery("page"); ok {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		h.reportSvc.SetPage(page)
	}

	c.JSON(http.StatusOK, gin.H{
		"filter":       h.reportSvc.Filter(),
		"rack_options": h.reportSvc.RackOptions(),
		"page":         h.reportSvc.Page(),
	})
}

// Summary returns the computed monitoring aggregates for the filtered set.
func (h *ReportHandler) Summary(c *gin.Context) {
	if err := h.applyFilters(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filtered := h.reportSvc.Filtered()
	c.JSON(http.StatusOK, gin.H{
		"branches":     report.DistinctRackCounts(filtered),
		"daily_racks":  report.DailyRackMatrix(filtered),
		"leaderboards": report.Leaderboards(filtered),
	})
}

// Export renders the filtered records into a workbook download.
func (h *ReportHandler) Export(c *gin.Context) {
	if err := h.applyFilters(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := export.Options{
		ByBranch:     c.Query("by_branch") == "true",
		ByRack:       c.Query("by_rack") == "true",
		ByMonth:      c.Query("by_month") == "true",
		YearlyPeriod: h.reportSvc.Filter().Period == report.PeriodYearly,
	}

	buf, err := h.builder.Build(h.reportSvc.Filtered(), opts)
	if err != nil {
		h.logger.Error("workbook build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to build workbook"})
		return
	}

	fileName := export.FileName(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// applyFilters maps the query parameters onto the filter pipeline. Every
// parameter present is applied as a user-driven change.
func (h *ReportHandler) applyFilters(c *gin.Context) error {
	if query, ok := c.GetQuery("q"); ok {
		h.reportSvc.SetQuery(query)
	}
	if branch, ok := c.GetQuery("branch"); ok {
		h.reportSvc.SetBranch(branch)
	}
	if rack, ok := c.GetQuery("rack"); ok {
		h.reportSvc.SetRack(rack)
	}

	if rawPeriod, ok := c.GetQuery("period"); ok {
		period, err := report.ParsePeriodType(rawPeriod)
		if err != nil {
			return err
		}
		if period == report.PeriodCustom {
			from, err := time.Parse(anchorDateLayout, c.Query("from"))
			if err != nil {
				return err
			}
			to, err := time.Parse(anchorDateLayout, c.Query("to"))
			if err != nil {
				return err
			}
			h.reportSvc.SetCustomRange(from, to)
		} else {
			anchor := time.Now()
			if raw, ok := c.GetQuery("anchor"); ok {
				parsed, err := time.Parse(anchorDateLayout, raw)
				if err != nil {
					return err
				}
				anchor = parsed
			}
			if err := h.reportSvc.SetPeriod(period, anchor); err != nil {
				return err
			}
		}
	}
	return nil
}
