package handler

import (
	"staffing-ledger/internal/adapter/http/dto"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves single-transaction lookups.
type TransactionHandler struct {
	querySvc ports.LedgerQueryService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(querySvc ports.LedgerQueryService) *TransactionHandler {
	return &TransactionHandler{querySvc: querySvc}
}

// GetTransaction handles GET /api/v1/transactions/:reference. The path
// segment may be a reference or a transaction id.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	detail, err := h.querySvc.GetTransaction(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionDetailResponse(detail))
}
