package handler

import (
	"errors"
	"io"

	"staffing-ledger/internal/adapter/http/dto"
	"staffing-ledger/internal/adapter/http/middleware"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"
	"staffing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles invoice settlement.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Settle handles POST /api/v1/invoices/:invoice_id/settle. The body is
// optional.
func (h *SettlementHandler) Settle(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	invoiceID, err := uuid.Parse(c.Param("invoice_id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("invoice"))
		return
	}

	var req dto.SettleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.settlementSvc.SettleInvoice(c.Request.Context(), ports.SettleRequest{
		InvoiceID:     invoiceID,
		PerformedBy:   &userID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewSettlementResponse(result))
}
