package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Contains(t, deps, "memory")
	assert.Contains(t, deps, "redis")
}

func TestIntegration_Unauthorized(t *testing.T) {
	app := newTestApp(t)
	resp := app.call(t, "", http.MethodGet, walletPath(domain.WorkerOwner(uuid.New())), "")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "AUTH_001", resp.ErrorCode)
}

func TestIntegration_AdjustmentRequiresRole(t *testing.T) {
	app := newTestApp(t)
	tok, _ := app.tokenWithRole(t, "worker")
	owner := domain.WorkerOwner(uuid.New())

	resp := app.adjust(t, tok, owner, "credit", "10.00")
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "AUTH_002", resp.ErrorCode)

	// Reads stay open to any authenticated caller.
	assert.Equal(t, "0.00", app.balance(t, tok, owner))
}

func TestIntegration_CreditThenDebit(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.token(t)
	owner := domain.WorkerOwner(uuid.New())

	resp := app.adjust(t, token, owner, "credit", "100.00")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	resp = app.adjust(t, token, owner, "debit", "40.00")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)

	var txn struct {
		Reference     string `json:"reference"`
		Category      string `json:"category"`
		BalanceBefore string `json:"balance_before"`
		BalanceAfter  string `json:"balance_after"`
		PerformedBy   string `json:"performed_by"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &txn))
	assert.Equal(t, "manual_debit", txn.Category)
	assert.Equal(t, "100.00", txn.BalanceBefore)
	assert.Equal(t, "60.00", txn.BalanceAfter)
	assert.Equal(t, userID.String(), txn.PerformedBy)

	assert.Equal(t, "60.00", app.balance(t, token, owner))

	rec := app.call(t, token, http.MethodGet, walletPath(owner)+"/reconciliation", "")
	require.Equal(t, http.StatusOK, rec.Status)
	var r domain.Reconciliation
	require.NoError(t, json.Unmarshal(rec.Data, &r))
	assert.True(t, r.Consistent)
	assert.Equal(t, int64(2), r.TransactionCount)

	assert.Len(t, app.events.ofType(domain.EventWalletAdjusted), 2)
}

func TestIntegration_DebitBeyondBalance(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)
	owner := domain.CareHomeOwner(uuid.New())

	require.Equal(t, http.StatusCreated, app.adjust(t, token, owner, "credit", "10.00").Status)
	resp := app.adjust(t, token, owner, "debit", "10.01")
	assert.Equal(t, http.StatusPaymentRequired, resp.Status)
	assert.Equal(t, "LED_001", resp.ErrorCode)
	assert.Equal(t, "10.00", app.balance(t, token, owner))
}

func TestIntegration_SettleInvoice(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.token(t)
	careHome := uuid.New()
	payer := domain.CareHomeOwner(careHome)

	require.Equal(t, http.StatusCreated, app.adjust(t, token, payer, "credit", "200.00").Status)
	inv, workers := app.seedInvoice(careHome, "120.00", "50.00", "60.00")

	resp := app.call(t, token, http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/settle", "")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)

	var res struct {
		Status           string   `json:"status"`
		TransactionIDs   []string `json:"transaction_ids"`
		PaidOut          string   `json:"paid_out"`
		PayerTransaction struct {
			Amount      string `json:"amount"`
			PerformedBy string `json:"performed_by"`
		} `json:"payer_transaction"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, "paid", res.Status)
	assert.Len(t, res.TransactionIDs, 3)
	assert.Equal(t, "110.00", res.PaidOut)
	assert.Equal(t, "120.00", res.PayerTransaction.Amount)
	assert.Equal(t, userID.String(), res.PayerTransaction.PerformedBy)

	assert.Equal(t, "80.00", app.balance(t, token, payer))
	assert.Equal(t, "50.00", app.balance(t, token, workers[0]))
	assert.Equal(t, "60.00", app.balance(t, token, workers[1]))

	// transaction detail resolves the invoice link
	detail := app.call(t, token, http.MethodGet, "/api/v1/transactions/"+res.TransactionIDs[0], "")
	require.Equal(t, http.StatusOK, detail.Status)
	var d struct {
		Invoice struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(detail.Data, &d))
	assert.Equal(t, inv.Number, d.Invoice.Number)
	assert.Equal(t, "paid", d.Invoice.Status)

	// a second settlement is rejected and moves no money
	again := app.call(t, token, http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/settle", "")
	assert.Equal(t, http.StatusConflict, again.Status)
	assert.Equal(t, "LED_003", again.ErrorCode)
	assert.Equal(t, 4, app.store.TransactionCount())

	assert.Len(t, app.events.ofType(domain.EventInvoiceSettled), 3)

	assert.Eventually(t, func() bool {
		for _, entry := range app.store.AuditLogs() {
			if entry.Action == domain.AuditActionSettleInvoice && entry.ResourceID == inv.ID.String() {
				return entry.ActorID != nil && *entry.ActorID == userID
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestIntegration_SettleInsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)
	careHome := uuid.New()
	payer := domain.CareHomeOwner(careHome)

	require.Equal(t, http.StatusCreated, app.adjust(t, token, payer, "credit", "50.00").Status)
	inv, workers := app.seedInvoice(careHome, "120.00", "50.00", "60.00")

	resp := app.call(t, token, http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/settle", "")
	assert.Equal(t, http.StatusPaymentRequired, resp.Status)
	assert.Equal(t, "LED_001", resp.ErrorCode)

	assert.Equal(t, "50.00", app.balance(t, token, payer))
	assert.Equal(t, "0.00", app.balance(t, token, workers[0]))
	assert.Equal(t, 1, app.store.TransactionCount())
}

func TestIntegration_SettleUnknownInvoice(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)

	resp := app.call(t, token, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/settle", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "LED_004", resp.ErrorCode)
}

func TestIntegration_AdjustmentIdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)
	owner := domain.WorkerOwner(uuid.New())

	first := app.adjust(t, token, owner, "credit", "25.00", "Idempotency-Key", "topup-1")
	require.Equal(t, http.StatusCreated, first.Status)
	second := app.adjust(t, token, owner, "credit", "25.00", "Idempotency-Key", "topup-1")
	require.Equal(t, http.StatusCreated, second.Status)

	var a, b struct {
		Reference string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.Equal(t, a.Reference, b.Reference, "replay returns the original transaction")
	assert.Equal(t, "25.00", app.balance(t, token, owner))

	// another user with the same key gets their own adjustment
	other, _ := app.token(t)
	third := app.adjust(t, other, owner, "credit", "25.00", "Idempotency-Key", "topup-1")
	require.Equal(t, http.StatusCreated, third.Status)
	assert.Equal(t, "50.00", app.balance(t, token, owner))
}

func TestIntegration_WalletHistoryPagination(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)
	owner := domain.WorkerOwner(uuid.New())

	for _, amt := range []string{"1.00", "2.00", "3.00"} {
		require.Equal(t, http.StatusCreated, app.adjust(t, token, owner, "credit", amt).Status)
	}

	resp := app.call(t, token, http.MethodGet, walletPath(owner)+"?page=1&page_size=2", "")
	require.Equal(t, http.StatusOK, resp.Status)

	var st struct {
		Transactions []struct {
			Amount string `json:"amount"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	require.Len(t, st.Transactions, 2)
	assert.Equal(t, "3.00", st.Transactions[0].Amount)

	var meta struct {
		TotalCount int64 `json:"total_count"`
		TotalPages int   `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(resp.Meta, &meta))
	assert.Equal(t, int64(3), meta.TotalCount)
	assert.Equal(t, 2, meta.TotalPages)

	resp = app.call(t, token, http.MethodGet, walletPath(owner)+"?page=100000000000000001&page_size=100", "")
	require.Equal(t, http.StatusOK, resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.Empty(t, st.Transactions)
}

func TestIntegration_RateLimited(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.token(t)
	owner := domain.WorkerOwner(uuid.New())

	for i := 0; i < 30; i++ {
		require.Equal(t, http.StatusCreated, app.adjust(t, token, owner, "credit", "1.00").Status)
	}
	resp := app.adjust(t, token, owner, "credit", "1.00")
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, "RATE_001", resp.ErrorCode)
}
