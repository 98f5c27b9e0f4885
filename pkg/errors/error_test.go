package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeInvalidPrice, "price must be positive")
	assert.Equal(t, "[100] price must be positive", err.Error())

	wrapped := Wrap(ErrCodeQueryFailed, "failed to query journal", fmt.Errorf("db closed"))
	assert.Equal(t, "[201] failed to query journal: db closed", wrapped.Error())
}

func TestGetCode(t *testing.T) {
	err := Newf(ErrCodeUnknownTicker, "ticker %s is not part of this run", "AAPL")
	assert.Equal(t, ErrCodeUnknownTicker, GetCode(err))
	assert.True(t, HasCode(err, ErrCodeUnknownTicker))

	// A plain error carries no code.
	assert.Equal(t, ErrCodeUnknown, GetCode(fmt.Errorf("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrapf(ErrCodeJournalFailed, cause, "failed to record execution")
	require.ErrorIs(t, err, cause)

	// The code survives wrapping in a plain fmt error.
	outer := fmt.Errorf("run aborted: %w", err)
	assert.Equal(t, ErrCodeJournalFailed, GetCode(outer))
}

func TestCategories(t *testing.T) {
	assert.True(t, IsInvalidInput(New(ErrCodeInvalidDecision, "bad action")))
	assert.False(t, IsInvalidInput(New(ErrCodeLedgerNegativeCash, "cash below zero")))

	assert.True(t, IsInvariantViolation(New(ErrCodeLedgerMarginMismatch, "margin sum mismatch")))
	assert.False(t, IsInvariantViolation(New(ErrCodeInvalidPrice, "non-positive price")))
}
