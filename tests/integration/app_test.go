package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	httpHandler "staffing-ledger/internal/adapter/http/handler"
	"staffing-ledger/internal/adapter/storage/memory"
	redisStorage "staffing-ledger/internal/adapter/storage/redis"
	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/internal/service"
	"staffing-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testApp runs the full HTTP stack over the in-memory ledger store and
// miniredis. Events are captured instead of going to Kafka.
type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	store    *memory.Store
	tokenSvc *service.JWTTokenService
	events   *capturePublisher
}

// capturePublisher records published ledger events.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (p *capturePublisher) Publish(_ context.Context, evs ...domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) ofType(t domain.EventType) []domain.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.LedgerEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var _ ports.EventPublisher = (*capturePublisher)(nil)

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.New("error", false)
	store := memory.NewStore(5 * time.Second)
	walletRepo := memory.NewWalletRepo(store)
	txRepo := memory.NewTransactionRepo(store)
	invoiceRepo := memory.NewInvoiceRepo(store)

	events := &capturePublisher{}
	notifier := service.NewMultiNotifier(service.NewEventNotifier(events))

	tokenSvc := service.NewJWTTokenService("integration-secret-key-32-bytes!", time.Hour, "staffing-ledger")
	wallets := service.NewWalletService(walletRepo, domain.DefaultCurrency, log)
	engine := service.NewTransactionEngine(walletRepo, txRepo, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc: service.NewSettlementService(invoiceRepo, walletRepo, txRepo, wallets, engine, store, notifier, 2, log),
		AdjustmentSvc: service.NewAdjustmentService(walletRepo, wallets, engine, store,
			redisStorage.NewIdempotencyCache(rdb), redisStorage.NewRequestLock(rdb), notifier, 2, log),
		QuerySvc:       service.NewLedgerQueryService(txRepo, walletRepo, invoiceRepo, wallets, store, 20, 100, log),
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       service.NewAuditService(memory.NewAuditRepo(store), log),
		AdjustRoles:    []string{"admin", "finance"},
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{server: server, redis: mr, store: store, tokenSvc: tokenSvc, events: events}
}

// token issues a bearer token for a fresh finance user.
func (a *testApp) token(t *testing.T) (string, uuid.UUID) {
	t.Helper()
	return a.tokenWithRole(t, "finance")
}

func (a *testApp) tokenWithRole(t *testing.T, role string) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	tok, _, err := a.tokenSvc.Generate(userID, role)
	require.NoError(t, err)
	return tok, userID
}

type apiResponse struct {
	Status    int
	Data      json.RawMessage `json:"data"`
	Meta      json.RawMessage `json:"meta"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
}

func (a *testApp) call(t *testing.T, token, method, path, body string, headers ...string) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *testApp) adjust(t *testing.T, token string, owner domain.Owner, direction, amount string, headers ...string) apiResponse {
	t.Helper()
	body := `{"direction":"` + direction + `","amount":"` + amount + `","reason":"integration test"}`
	return a.call(t, token, http.MethodPost, walletPath(owner)+"/adjustments", body, headers...)
}

func (a *testApp) balance(t *testing.T, token string, owner domain.Owner) string {
	t.Helper()
	resp := a.call(t, token, http.MethodGet, walletPath(owner), "")
	require.Equal(t, http.StatusOK, resp.Status)
	var st struct {
		Wallet struct {
			Balance string `json:"balance"`
		} `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	return st.Wallet.Balance
}

func walletPath(owner domain.Owner) string {
	return "/api/v1/wallets/" + string(owner.Type) + "/" + owner.ID.String()
}

// seedInvoice stores a sent invoice for careHome with one timesheet per pay.
func (a *testApp) seedInvoice(careHome uuid.UUID, total string, pays ...string) (*domain.Invoice, []domain.Owner) {
	inv := &domain.Invoice{
		ID:         uuid.New(),
		Number:     "INV-" + uuid.NewString()[:8],
		CareHomeID: careHome,
		Status:     domain.InvoiceStatusSent,
		Total:      decimal.RequireFromString(total),
	}
	var workers []domain.Owner
	for _, p := range pays {
		w := uuid.New()
		inv.Timesheets = append(inv.Timesheets, domain.Timesheet{ID: uuid.New(), WorkerID: w, TotalPay: decimal.RequireFromString(p)})
		workers = append(workers, domain.WorkerOwner(w))
	}
	a.store.SeedInvoice(inv)
	return inv, workers
}
