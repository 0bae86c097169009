package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful ledger-affecting calls. Routes are matched on
// their registered pattern, so it must run on the engine, not a group.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType, resourceID := mapRouteToAction(c)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if id, ok := UserID(c); ok {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":          c.Request.Method,
			"path":            c.Request.URL.Path,
			"status":          c.Writer.Status(),
			"request_id":      c.GetString(CtxRequestID),
			"idempotency_key": c.GetHeader("Idempotency-Key"),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(c *gin.Context) (domain.AuditAction, string, string) {
	switch c.FullPath() {
	case "/api/v1/invoices/:invoice_id/settle":
		return domain.AuditActionSettleInvoice, "invoice", c.Param("invoice_id")
	case "/api/v1/wallets/:owner_type/:owner_id/adjustments":
		return domain.AuditActionWalletAdjustment, "wallet", c.Param("owner_type") + ":" + c.Param("owner_id")
	}
	return "", "", ""
}
