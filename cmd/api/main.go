package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staffing-ledger/config"
	httpHandler "staffing-ledger/internal/adapter/http/handler"
	"staffing-ledger/internal/adapter/messaging/kafka"
	"staffing-ledger/internal/adapter/storage/memory"
	pgStorage "staffing-ledger/internal/adapter/storage/postgres"
	redisStorage "staffing-ledger/internal/adapter/storage/redis"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/internal/service"
	"staffing-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// storage groups the repositories of one driver.
type storage struct {
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	invoices     ports.InvoiceRepository
	audit        ports.AuditRepository
	deliveries   ports.NotificationDeliveryRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
	close        func()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*storage, error) {
	if cfg.Driver == config.DriverMemory {
		store := memory.NewStore(cfg.LockTimeout)
		log.Warn().Msg("Using in-memory ledger store; data is lost on restart")
		return &storage{
			wallets:      memory.NewWalletRepo(store),
			transactions: memory.NewTransactionRepo(store),
			invoices:     memory.NewInvoiceRepo(store),
			audit:        memory.NewAuditRepo(store),
			deliveries:   memory.NewNotificationRepo(store),
			transactor:   store,
			health:       store,
			close:        func() {},
		}, nil
	}

	if cfg.AutoMigrate {
		m, err := pgStorage.NewMigrator(cfg.DSN(), log)
		if err != nil {
			return nil, fmt.Errorf("init migrations: %w", err)
		}
		err = m.Up()
		m.Close()
		if err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &storage{
		wallets:      pgStorage.NewWalletRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		invoices:     pgStorage.NewInvoiceRepo(pool),
		audit:        pgStorage.NewAuditRepo(pool),
		deliveries:   pgStorage.NewNotificationRepo(pool),
		transactor:   pgStorage.NewTransactor(pool, cfg.LockTimeout),
		health:       pgStorage.NewHealthCheck(pool),
		close:        pool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting Staffing Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set (LEDGER_JWT_SECRET)")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis is optional: without it adjustments skip replay protection and
	// routes are not rate limited.
	var (
		idempotencyCache ports.IdempotencyCache
		requestLock      ports.RequestLock
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		requestLock = redisStorage.NewRequestLock(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Notifiers run after commit; their failures are logged only.
	var (
		publisher ports.EventPublisher
		mailer    *service.MailerNotifier
		notifiers []ports.Notifier
	)
	if cfg.Notifier.Kafka.Enabled {
		publisher = kafka.NewPublisher(cfg.Notifier.Kafka, log)
		notifiers = append(notifiers, service.NewEventNotifier(publisher))
		log.Info().Strs("brokers", cfg.Notifier.Kafka.Brokers).Str("topic", cfg.Notifier.Kafka.Topic).Msg("Kafka event publishing enabled")
	}
	if cfg.Notifier.Mailer.Enabled {
		mailer = service.NewMailerNotifier(
			cfg.Notifier.Mailer.URL,
			cfg.Notifier.Mailer.Secret,
			service.NewHMACSignatureService(),
			store.deliveries,
			&http.Client{Timeout: cfg.Notifier.Mailer.Timeout},
			log,
		)
		notifiers = append(notifiers, mailer)
		log.Info().Str("url", cfg.Notifier.Mailer.URL).Msg("Mailer notifications enabled")
	}
	var notifier ports.Notifier
	if len(notifiers) > 0 {
		notifier = service.NewMultiNotifier(notifiers...)
	}

	// Services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	wallets := service.NewWalletService(store.wallets, cfg.Ledger.Currency, log)
	engine := service.NewTransactionEngine(store.wallets, store.transactions, log)
	settlementSvc := service.NewSettlementService(
		store.invoices,
		store.wallets,
		store.transactions,
		wallets,
		engine,
		store.transactor,
		notifier,
		cfg.Ledger.MaxRetries,
		log,
	)
	adjustmentSvc := service.NewAdjustmentService(
		store.wallets,
		wallets,
		engine,
		store.transactor,
		idempotencyCache,
		requestLock,
		notifier,
		cfg.Ledger.MaxRetries,
		log,
	)
	querySvc := service.NewLedgerQueryService(
		store.transactions,
		store.wallets,
		store.invoices,
		wallets,
		store.transactor,
		cfg.Ledger.DefaultPageSize,
		cfg.Ledger.MaxPageSize,
		log,
	)
	auditSvc := service.NewAuditService(store.audit, log)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  settlementSvc,
		AdjustmentSvc:  adjustmentSvc,
		QuerySvc:       querySvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		AdjustRoles:    cfg.Ledger.AdjustmentRoles,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight mailer retries can run for minutes; give them the shutdown
	// budget and no more.
	if mailer != nil {
		done := make(chan struct{})
		go func() {
			mailer.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn().Msg("Mailer deliveries still pending at shutdown")
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}

	log.Info().Msg("Server exited")
}
