package domain

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a money movement.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Valid reports whether t is credit or debit.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// Category classifies why a transaction occurred.
type Category string

const (
	CategoryTimesheetPayment Category = "timesheet_payment"
	CategoryInvoicePayment   Category = "invoice_payment"
	CategoryManualCredit     Category = "manual_credit"
	CategoryManualDebit      Category = "manual_debit"
	CategoryRefund           Category = "refund"
	CategoryAdjustment       Category = "adjustment"
	CategoryWithdrawal       Category = "withdrawal"
)

// AllowedFor reports whether the category may be used for the direction.
func (c Category) AllowedFor(t TransactionType) bool {
	switch t {
	case TransactionTypeCredit:
		switch c {
		case CategoryTimesheetPayment, CategoryManualCredit, CategoryRefund, CategoryAdjustment:
			return true
		}
	case TransactionTypeDebit:
		switch c {
		case CategoryInvoicePayment, CategoryManualDebit, CategoryWithdrawal, CategoryAdjustment:
			return true
		}
	}
	return false
}

// MoneyScale is the number of decimal places held for amounts (pence).
const MoneyScale = 2

// MaxAmount is the largest value a NUMERIC(19, 2) money column holds.
var MaxAmount = decimal.RequireFromString("99999999999999999.99")

// ValidAmount reports whether amount is positive, fits the money scale and
// does not exceed MaxAmount.
func ValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return false
	}
	return amount.Equal(amount.Truncate(MoneyScale))
}

// Transaction is one immutable movement against exactly one wallet. Only the
// invoice and timesheet links may be attached after creation.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Reference     string          `json:"reference"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Type          TransactionType `json:"type"`
	Category      Category        `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	Reason        *string         `json:"reason,omitempty"`
	ProofFile     *string         `json:"proof_file,omitempty"`
	InvoiceID     *uuid.UUID      `json:"invoice_id,omitempty"`
	TimesheetID   *uuid.UUID      `json:"timesheet_id,omitempty"`
	PerformedBy   *uuid.UUID      `json:"performed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedAmount returns the amount as a balance delta.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsBalanced checks balance_after == balance_before +/- amount.
func (t *Transaction) IsBalanced() bool {
	return t.BalanceAfter.Equal(t.BalanceBefore.Add(t.SignedAmount()))
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference generates an externally quotable id: TXN-YYYYMMDD-XXXXXXXXXX.
func NewReference(now time.Time) string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return "TXN-" + now.UTC().Format("20060102") + "-" + string(buf)
}
