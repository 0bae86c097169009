package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	idempotencyTTL = 24 * time.Hour
	inflightTTL    = 30 * time.Second
)

// AdjustmentServiceImpl implements ports.AdjustmentService.
type AdjustmentServiceImpl struct {
	walletRepo ports.WalletRepository
	wallets    ports.WalletAccessor
	engine     ports.TransactionEngine
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache
	inflight   ports.RequestLock
	notifier   ports.Notifier
	maxRetries int
	log        zerolog.Logger
}

// NewAdjustmentService creates a new AdjustmentServiceImpl. idempCache,
// inflight and notifier may be nil; without a cache, Idempotency-Key is
// ignored.
func NewAdjustmentService(
	walletRepo ports.WalletRepository,
	wallets ports.WalletAccessor,
	engine ports.TransactionEngine,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	inflight ports.RequestLock,
	notifier ports.Notifier,
	maxRetries int,
	log zerolog.Logger,
) *AdjustmentServiceImpl {
	return &AdjustmentServiceImpl{
		walletRepo: walletRepo,
		wallets:    wallets,
		engine:     engine,
		transactor: transactor,
		idempCache: idempCache,
		inflight:   inflight,
		notifier:   notifier,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Adjust applies a manual credit or debit to the owner's wallet.
func (s *AdjustmentServiceImpl) Adjust(ctx context.Context, req ports.AdjustmentRequest) (*domain.Transaction, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	var idempKey string
	if req.IdempotencyKey != "" && s.idempCache != nil {
		idempKey = domain.BuildAdjustmentIdempotencyKey(req.PerformedBy, req.Owner, req.IdempotencyKey)

		if txn := s.cached(ctx, idempKey); txn != nil {
			return txn, nil
		}

		if s.inflight != nil {
			ok, err := s.inflight.Acquire(ctx, idempKey, inflightTTL)
			if err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("request lock unavailable, continuing without it")
			} else if !ok {
				return nil, apperror.ErrConcurrencyConflict(fmt.Errorf("adjustment %q already in flight", req.IdempotencyKey))
			} else {
				defer func() {
					if err := s.inflight.Release(context.WithoutCancel(ctx), idempKey); err != nil {
						s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to release request lock")
					}
				}()
				// The holder before us may have finished between the two checks.
				if txn := s.cached(ctx, idempKey); txn != nil {
					return txn, nil
				}
			}
		}
	}

	var (
		wallet *domain.Wallet
		txn    *domain.Transaction
	)
	err := withRetry(ctx, s.maxRetries, s.log, "wallet_adjustment", func() error {
		var err error
		wallet, txn, err = s.adjustOnce(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if idempKey != "" {
		if data, err := json.Marshal(txn); err != nil {
			s.log.Warn().Err(err).Msg("failed to marshal adjustment for idempotency cache")
		} else if err := s.idempCache.Set(ctx, idempKey, data, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner", req.Owner.String()).
		Str("tx_ref", txn.Reference).
		Str("type", string(txn.Type)).
		Str("category", string(txn.Category)).
		Str("amount", txn.Amount.StringFixed(domain.MoneyScale)).
		Str("performed_by", req.PerformedBy.String()).
		Msg("wallet adjusted")

	if s.notifier != nil {
		if err := s.notifier.WalletAdjusted(ctx, wallet, txn); err != nil {
			s.log.Warn().Err(err).Str("tx_ref", txn.Reference).Msg("adjustment notification failed")
		}
	}

	return txn, nil
}

func (s *AdjustmentServiceImpl) validate(req *ports.AdjustmentRequest) error {
	if !req.Owner.Type.Valid() {
		return apperror.ErrInvalidOwner()
	}
	if !req.Direction.Valid() {
		return apperror.Validation("direction must be credit or debit")
	}
	if !domain.ValidAmount(req.Amount) {
		return apperror.ErrInvalidAmount()
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return apperror.Validation("reason is required for a manual adjustment")
	}
	if req.Category == "" {
		req.Category = domain.CategoryManualCredit
		if req.Direction == domain.TransactionTypeDebit {
			req.Category = domain.CategoryManualDebit
		}
	}
	if !req.Category.AllowedFor(req.Direction) {
		return apperror.Validation(fmt.Sprintf("category %q is not allowed for a %s", req.Category, req.Direction))
	}
	return nil
}

func (s *AdjustmentServiceImpl) cached(ctx context.Context, key string) *domain.Transaction {
	data, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, processing request")
		return nil
	}
	if data == nil {
		return nil
	}
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	return txn
}

func (s *AdjustmentServiceImpl) adjustOnce(ctx context.Context, req ports.AdjustmentRequest) (*domain.Wallet, *domain.Transaction, error) {
	w, err := s.wallets.GetOrCreate(ctx, req.Owner)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.GetByIDForUpdate(ctx, tx, w.ID)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("lock wallet: %w", err))
	}
	if locked == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}

	performedBy := req.PerformedBy
	reason := req.Reason
	leg := ports.LegRequest{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: fmt.Sprintf("Manual %s: %s", req.Direction, reason),
		PerformedBy: &performedBy,
		Reason:      &reason,
		ProofFile:   req.ProofFile,
	}

	var txn *domain.Transaction
	switch req.Direction {
	case domain.TransactionTypeCredit:
		txn, err = s.engine.Credit(ctx, tx, locked, leg)
	case domain.TransactionTypeDebit:
		txn, err = s.engine.Debit(ctx, tx, locked, leg)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, storeError(fmt.Errorf("commit tx: %w", err))
	}
	return locked, txn, nil
}
