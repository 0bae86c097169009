package service

import (
	"context"
	"io"
	"testing"

	"staffing-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
