package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/domain/models"
	"github.com/retailops/stockaudit/internal/scanner"
	"github.com/retailops/stockaudit/internal/service/audit"
)

// ScanHandler exposes the scan session and the in-progress count over HTTP.
type ScanHandler struct {
	controller *scanner.Controller
	auditSvc   *audit.Service
	logger     *zap.Logger
}

// NewScanHandler constructs the HTTP handler adapter.
func NewScanHandler(controller *scanner.Controller, auditSvc *audit.Service, logger *zap.Logger) *ScanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHandler{controller: controller, auditSvc: auditSvc, logger: logger}
}

type startRequest struct {
	Mode       string `json:"mode" binding:"required"`
	Privileged bool   `json:"privileged"`
}

// Start acquires the decoder device and begins a scan session.
func (h *ScanHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mode, err := scanner.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.Start(mode, req.Privileged); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Status())
}

// Stop releases the decoder device.
func (h *ScanHandler) Stop(c *gin.Context) {
	_ = h.controller.Stop()
	c.JSON(http.StatusOK, h.controller.Status())
}

// Status reports the observable session snapshot.
func (h *ScanHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}

type resolveRequest struct {
	Code       string `json:"code" binding:"required"`
	Privileged bool   `json:"privileged"`
}

type countResponse struct {
	Current    models.ConfirmedCount    `json:"current"`
	Candidates []models.InventoryRecord `json:"candidates"`
	Variance   *float64                 `json:"variance,omitempty"`
}

// Resolve looks up a manually entered code, mirroring the decode path.
func (h *ScanHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	current, candidates, err := h.auditSvc.Resolve(c.Request.Context(), req.Code, req.Privileged)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.countResponse(current, candidates))
}

type selectBranchRequest struct {
	BranchCode string `json:"branch_code" binding:"required"`
}

// SelectBranch switches the active count to another resolved candidate.
func (h *ScanHandler) SelectBranch(c *gin.Context) {
	var req selectBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	current, err := h.auditSvc.SelectBranch(req.BranchCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.countResponse(current, h.auditSvc.Candidates()))
}

type updateCountRequest struct {
	CountedQuantity *float64 `json:"counted_quantity"`
	RackLocation    *string  `json:"rack_location"`
}

// UpdateCount records the operator's figures on the active count.
func (h *ScanHandler) UpdateCount(c *gin.Context) {
	var req updateCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.CountedQuantity != nil {
		if err := h.auditSvc.SetCountedQuantity(*req.CountedQuantity); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.RackLocation != nil {
		if err := h.auditSvc.SetRackLocation(*req.RackLocation); err != nil {
			writeError(c, err)
			return
		}
	}

	current, ok := h.auditSvc.Current()
	if !ok {
		writeError(c, audit.ErrNoActiveCount)
		return
	}
	c.JSON(http.StatusOK, h.countResponse(current, h.auditSvc.Candidates()))
}

type attachPhotoRequest struct {
	Key      string `json:"key" binding:"required"`
	Source   string `json:"source" binding:"required"`
	FileName string `json:"file_name"`
}

// AttachPhoto records one evidence photo's metadata on the active count.
func (h *ScanHandler) AttachPhoto(c *gin.Context) {
	var req attachPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch models.PhotoSource(req.Source) {
	case models.PhotoSourceCamera, models.PhotoSourceUpload, models.PhotoSourceExisting:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo source"})
		return
	}

	photo := models.PhotoRecord{
		Key:      req.Key,
		Source:   models.PhotoSource(req.Source),
		TakenAt:  time.Now().UTC(),
		FileName: req.FileName,
	}
	if err := h.auditSvc.AttachPhoto(photo); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Submit validates and sends the active count to the audit store.
func (h *ScanHandler) Submit(c *gin.Context) {
	submission, err := h.auditSvc.Submit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

func (h *ScanHandler) countResponse(current models.ConfirmedCount, candidates []models.InventoryRecord) countResponse {
	resp := countResponse{Current: current, Candidates: candidates}
	if variance, ok := audit.Variance(current.CountedQuantity, current.Item.SystemQuantity); ok {
		resp.Variance = &variance
	}
	return resp
}
