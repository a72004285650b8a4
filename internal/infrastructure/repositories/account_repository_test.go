package repositories

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/ledgerline/ledger-service/internal/domain/errors"
)

func TestDepositZeroRowCause(t *testing.T) {
	assert.Equal(t, domainerrors.ErrNotFound, depositZeroRowCause(sql.ErrNoRows))
	assert.Equal(t, domainerrors.ErrAccountNotActive, depositZeroRowCause(nil))

	// A real lookup failure must surface, not masquerade as a frozen account.
	err := depositZeroRowCause(sql.ErrConnDone)
	require.Error(t, err)
	assert.NotEqual(t, domainerrors.ErrAccountNotActive, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
