package handler

import (
	"net/http"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultSummaryDays = 30

type ReportsHandler struct{ svc service.ReportService }

func NewReportsHandler(svc service.ReportService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// SalesReport godoc
// @Summary      Sales totals over an inclusive date range
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        start query string false "YYYY-MM-DD"
// @Param        end   query string false "YYYY-MM-DD"
// @Success      200 {object} dto.SalesReportResponse
// @Router       /v1/reports/sales [get]
func (h *ReportsHandler) SalesReport(c *gin.Context) {
	var q dto.SalesReportQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.SalesReport(c.Request.Context(), optionalDate(q.Start), optionalDate(q.End))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// optionalDate parses a YYYY-MM-DD value already checked by the validator.
func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *ReportsHandler) SalesSummary(c *gin.Context) {
	days, ok := queryInt(c, "days", defaultSummaryDays)
	if !ok {
		return
	}
	resp, err := h.svc.SalesSummary(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportsHandler) InventorySummary(c *gin.Context) {
	resp, err := h.svc.InventorySummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InventoryValue is served from the Redis cache when warm.
func (h *ReportsHandler) InventoryValue(c *gin.Context) {
	resp, err := h.svc.InventoryValue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportsHandler) Dashboard(c *gin.Context) {
	resp, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
