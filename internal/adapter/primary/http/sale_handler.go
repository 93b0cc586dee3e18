package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/port/input"
)

// SaleHandler is a primary adapter (HTTP handler)
type SaleHandler struct {
	saleService input.SaleService
	// testConfirmEnabled gates the confirm-test endpoint; the manual
	// confirmation path must never be reachable in production.
	testConfirmEnabled bool
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(saleService input.SaleService, testConfirmEnabled bool) *SaleHandler {
	return &SaleHandler{
		saleService:        saleService,
		testConfirmEnabled: testConfirmEnabled,
	}
}

// Register binds the sale routes onto an echo group
func (h *SaleHandler) Register(g *echo.Group) {
	g.POST("/sales", h.CreateSale)
	g.GET("/sales/:id", h.GetSale)
	g.GET("/sales/:id/status", h.CheckStatus)
	g.POST("/sales/:id/confirm-test", h.ConfirmTest)
	g.POST("/sales/:id/cancel", h.CancelSale)
}

// CreateSaleRequest represents the HTTP request to create a sale
type CreateSaleRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Note      string  `json:"note"`
	CashierID string  `json:"cashier_id"`
}

// SaleCreatedResponse represents the HTTP response for a created sale
type SaleCreatedResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	BillNumber  string  `json:"bill_number"`
	Fingerprint string  `json:"fingerprint"`
	Status      string  `json:"status"`
	QRPNGBase64 string  `json:"qr_png_base64"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   string  `json:"expires_at"`
}

// SaleDetailResponse represents the full sale record
type SaleDetailResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Note        string  `json:"note,omitempty"`
	CashierID   string  `json:"cashier_id,omitempty"`
	BillNumber  string  `json:"bill_number"`
	Fingerprint string  `json:"fingerprint"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   string  `json:"expires_at"`
	SettledAt   *string `json:"settled_at"`
}

// SaleStatusResponse represents the polling view of a sale
type SaleStatusResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
}

// CreateSale handles sale creation
func (h *SaleHandler) CreateSale(c echo.Context) error {
	var req CreateSaleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	serviceReq := input.CreateSaleRequest{
		Amount:    decimal.NewFromFloat(req.Amount),
		Currency:  core.Currency(req.Currency),
		Note:      req.Note,
		CashierID: req.CashierID,
	}

	response, err := h.saleService.CreateSale(serviceReq)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create sale",
		})
	}

	amount, _ := response.Amount.Float64()
	return c.JSON(http.StatusCreated, SaleCreatedResponse{
		ID:          response.ID.String(),
		Amount:      amount,
		Currency:    string(response.Currency),
		BillNumber:  response.BillNumber,
		Fingerprint: response.Fingerprint,
		Status:      string(response.Status),
		QRPNGBase64: response.QRPNGBase64,
		CreatedAt:   response.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   response.ExpiresAt.Format(time.RFC3339),
	})
}

// GetSale handles full record retrieval by ID
func (h *SaleHandler) GetSale(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid sale ID",
		})
	}

	response, err := h.saleService.GetSale(id)
	if err != nil {
		return h.errorResponse(c, err)
	}

	amount, _ := response.Amount.Float64()
	var settledAt *string
	if response.SettledAt != nil {
		s := response.SettledAt.Format(time.RFC3339)
		settledAt = &s
	}
	return c.JSON(http.StatusOK, SaleDetailResponse{
		ID:          response.ID.String(),
		Amount:      amount,
		Currency:    string(response.Currency),
		Note:        response.Note,
		CashierID:   response.CashierID,
		BillNumber:  response.BillNumber,
		Fingerprint: response.Fingerprint,
		Status:      string(response.Status),
		CreatedAt:   response.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   response.ExpiresAt.Format(time.RFC3339),
		SettledAt:   settledAt,
	})
}

// CheckStatus handles the polling endpoint
func (h *SaleHandler) CheckStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid sale ID",
		})
	}

	response, err := h.saleService.CheckStatus(id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse(response))
}

// ConfirmTest forces a pending sale to PAID. Demo/test flows only; returns
// 404 when the endpoint is disabled so production deployments don't
// advertise its existence.
func (h *SaleHandler) ConfirmTest(c echo.Context) error {
	if !h.testConfirmEnabled {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "not found",
		})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid sale ID",
		})
	}

	response, err := h.saleService.ConfirmPaidManually(id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse(response))
}

// CancelSale handles sale cancellation
func (h *SaleHandler) CancelSale(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid sale ID",
		})
	}

	response, err := h.saleService.CancelSale(id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse(response))
}

func (h *SaleHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "sale not found",
		})
	case errors.Is(err, core.ErrStaleTransition):
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "sale already finalized",
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}
}

func statusResponse(s *input.SaleStatus) SaleStatusResponse {
	return SaleStatusResponse{
		ID:          s.ID.String(),
		Status:      string(s.Status),
		Fingerprint: s.Fingerprint,
	}
}
