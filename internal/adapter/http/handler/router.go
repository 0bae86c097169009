package handler

import (
	"staffing-ledger/internal/adapter/http/middleware"
	redisStore "staffing-ledger/internal/adapter/storage/redis"
	"staffing-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	AdjustmentSvc  ports.AdjustmentService
	QuerySvc       ports.LedgerQueryService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	AdjustRoles    []string           // token roles allowed to post manual adjustments; empty = any
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Every ledger route acts on behalf of an authenticated user.
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	walletHandler := NewWalletHandler(deps.AdjustmentSvc, deps.QuerySvc)
	transactionHandler := NewTransactionHandler(deps.QuerySvc)

	v1.POST("/invoices/:invoice_id/settle", rl("settle"), settlementHandler.Settle)

	wallets := v1.Group("/wallets/:owner_type/:owner_id")
	{
		wallets.GET("", rl("query"), walletHandler.GetWallet)
		wallets.POST("/adjustments", middleware.RequireRole(deps.AdjustRoles...), rl("adjust"), walletHandler.Adjust)
		wallets.GET("/reconciliation", rl("query"), walletHandler.Reconcile)
	}

	v1.GET("/transactions/:reference", rl("query"), transactionHandler.GetTransaction)

	return r
}
