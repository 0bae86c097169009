package handler

import (
	"strconv"
	"strings"

	"staffing-ledger/internal/adapter/http/dto"
	"staffing-ledger/internal/adapter/http/middleware"
	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"
	"staffing-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry an adjustment safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// WalletHandler handles wallet reads and manual adjustments.
type WalletHandler struct {
	adjustmentSvc ports.AdjustmentService
	querySvc      ports.LedgerQueryService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(adjustmentSvc ports.AdjustmentService, querySvc ports.LedgerQueryService) *WalletHandler {
	return &WalletHandler{adjustmentSvc: adjustmentSvc, querySvc: querySvc}
}

func ownerFromPath(c *gin.Context) (domain.Owner, bool) {
	owner, err := domain.ParseOwner(c.Param("owner_type"), c.Param("owner_id"))
	if err != nil {
		response.Error(c, apperror.ErrInvalidOwner())
		return domain.Owner{}, false
	}
	return owner, true
}

// GetWallet handles GET /api/v1/wallets/:owner_type/:owner_id.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	st, err := h.querySvc.GetWallet(c.Request.Context(), owner, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.NewWalletStatementResponse(st), response.NewPageMeta(st.Page, st.PageSize, st.Total))
}

// Adjust handles POST /api/v1/wallets/:owner_type/:owner_id/adjustments.
func (h *WalletHandler) Adjust(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key != "" && !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters of [A-Za-z0-9_.-]"))
		return
	}

	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, valid := dto.ParseMoney(req.Amount.String())
	if !valid {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	txn, err := h.adjustmentSvc.Adjust(c.Request.Context(), ports.AdjustmentRequest{
		Owner:          owner,
		Direction:      domain.TransactionType(req.Direction),
		Amount:         amount,
		Category:       domain.Category(req.Category),
		Reason:         req.Reason,
		ProofFile:      req.ProofFile,
		PerformedBy:    userID,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewTransactionResponse(txn))
}

// Reconcile handles GET /api/v1/wallets/:owner_type/:owner_id/reconciliation.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	rec, err := h.querySvc.ReconcileWallet(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}
