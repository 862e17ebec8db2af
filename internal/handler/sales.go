package handler

import (
	"fmt"
	"net/http"

	"pharmapos/internal/dto"
	"pharmapos/internal/infra"
	"pharmapos/internal/middleware"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	svc       service.SaleService
	storeName string
}

func NewSalesHandler(svc service.SaleService, storeName string) *SalesHandler {
	return &SalesHandler{svc: svc, storeName: storeName}
}

// CreateSale godoc
// @Summary      Create a sale
// @Description  Locks every referenced batch, prices each line with the expiry markdown,
// @Description  decrements stock and stores the sale in one transaction. A repeated
// @Description  idempotency_key returns the stored sale.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateSaleRequest true "Customer and lines"
// @Success      201  {object} dto.SaleResponse
// @Failure      400  {object} apierror.APIError "BatchNotFound or validation"
// @Failure      409  {object} apierror.APIError "InsufficientStock"
// @Failure      503  {object} apierror.APIError "LockTimeout, retry after the Retry-After delay"
// @Router       /v1/sales [post]
func (h *SalesHandler) CreateSale(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.CreateSale(c.Request.Context(), middleware.ActorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListSales godoc
// @Summary      List sales
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        search     query string false "Customer name, email or phone"
// @Param        created_by query int    false "Creator user id"
// @Param        date       query string false "YYYY-MM-DD"
// @Param        ordering   query string false "created_at | -created_at | final_amount | -final_amount"
// @Param        page       query int    false "Page (default 1)"
// @Param        limit      query int    false "Page size (default 50)"
// @Success      200 {object} dto.SaleListResponse
// @Router       /v1/sales [get]
func (h *SalesHandler) ListSales(c *gin.Context) {
	var filter dto.SaleFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSale godoc
// @Summary      Get a sale with its lines
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Sale id"
// @Success      200 {object} dto.SaleResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id} [get]
func (h *SalesHandler) GetSale(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Receipt godoc
// @Summary      Download the PDF receipt of a sale
// @Tags         sales
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path int true "Sale id"
// @Success      200 {file} binary
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id}/receipt [get]
func (h *SalesHandler) Receipt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	pdf, err := infra.RenderSaleReceipt(h.storeName, sale)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt_%d.pdf"`, sale.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
