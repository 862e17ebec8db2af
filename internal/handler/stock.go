package handler

import (
	"net/http"

	"pharmapos/internal/dto"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
)

// StockHandler serves stock batches. Expiring and low-stock listings come
// from the report service so they share its thresholds.
type StockHandler struct {
	svc     service.StockService
	reports service.ReportService
	cfg     StockDefaults
}

// StockDefaults are the query defaults of the listing endpoints.
type StockDefaults struct {
	ExpiringDays      int
	LowStockThreshold int
}

func NewStockHandler(svc service.StockService, reports service.ReportService, cfg StockDefaults) *StockHandler {
	return &StockHandler{svc: svc, reports: reports, cfg: cfg}
}

// Create godoc
// @Summary      Register a stock batch
// @Description  Records the opening quantity as a restock movement.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.StockBatchRequest true "Batch"
// @Success      201  {object} dto.StockBatchResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/stock [post]
func (h *StockHandler) Create(c *gin.Context) {
	var req dto.StockBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockHandler) List(c *gin.Context) {
	var filter dto.StockBatchFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update changes batch metadata. Quantity only moves through sales and restocks.
func (h *StockHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStockBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Restock godoc
// @Summary      Adjust the quantity of a batch
// @Description  Positive delta adds stock, negative removes it; the result never goes below zero.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path int                true "Batch id"
// @Param        body body dto.RestockRequest true "Delta and reason"
// @Success      200  {object} dto.StockBatchResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/stock/{id}/restock [post]
func (h *StockHandler) Restock(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.RestockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Restock(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Movements(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var filter dto.StockMovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Movements(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Expiring lists batches expiring between today and today+days.
func (h *StockHandler) Expiring(c *gin.Context) {
	days, ok := queryInt(c, "days", h.cfg.ExpiringDays)
	if !ok {
		return
	}
	resp, err := h.reports.ExpiringBatches(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock lists batches with quantity at or below threshold.
func (h *StockHandler) LowStock(c *gin.Context) {
	threshold, ok := queryInt(c, "threshold", h.cfg.LowStockThreshold)
	if !ok {
		return
	}
	resp, err := h.reports.LowStockBatches(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
