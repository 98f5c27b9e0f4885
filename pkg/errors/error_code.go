package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199). Invalid input to the simulation: fatal to
	// the run, surfaced at the offending day.
	ErrCodeInvalidPrice         ErrorCode = 100
	ErrCodeUnknownTicker        ErrorCode = 101
	ErrCodeInvalidDecision      ErrorCode = 102
	ErrCodeInvalidConfiguration ErrorCode = 103
	ErrCodeInvalidParameter     ErrorCode = 104
	ErrCodeInvalidDateRange     ErrorCode = 105

	// Data/Resource errors (200-299)
	ErrCodePriceSourceUnavailable ErrorCode = 200
	ErrCodeQueryFailed            ErrorCode = 201
	ErrCodeJournalFailed          ErrorCode = 202
	ErrCodeDataNotFound           ErrorCode = 203

	// Decision provider errors (300-399)
	ErrCodeDecisionProviderFailed ErrorCode = 300

	// Backtest errors (600-699)
	ErrCodeBacktestNoPriceSource      ErrorCode = 600
	ErrCodeBacktestNoDecisionProvider ErrorCode = 601
	ErrCodeBacktestNoTickers          ErrorCode = 602
	ErrCodeBacktestInitFailed         ErrorCode = 603
	ErrCodeBacktestRunFailed          ErrorCode = 604

	// Ledger invariant violations (900-999). These indicate an executor bug:
	// the clamping contract makes them unreachable on any valid input. They
	// are always a defect, never a recoverable runtime condition.
	ErrCodeLedgerNegativeCash     ErrorCode = 900
	ErrCodeLedgerNegativeQuantity ErrorCode = 901
	ErrCodeLedgerNegativeMargin   ErrorCode = 902
	ErrCodeLedgerMarginMismatch   ErrorCode = 903
	ErrCodeLedgerUnknownTicker    ErrorCode = 904
)

// IsInvalidInput reports whether the error carries a validation error code.
func IsInvalidInput(err error) bool {
	code := GetCode(err)

	return code >= 100 && code < 200
}

// IsInvariantViolation reports whether the error carries a ledger invariant
// violation code.
func IsInvariantViolation(err error) bool {
	code := GetCode(err)

	return code >= 900 && code < 1000
}
