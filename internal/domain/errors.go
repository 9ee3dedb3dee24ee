package domain

import "errors"

// ErrorCategory groups engine failures for callers that map them onto
// transport status codes or retry decisions.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryState         ErrorCategory = "state"
	CategoryBalance       ErrorCategory = "balance"
	CategoryArithmetic    ErrorCategory = "arithmetic"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// EngineError is a sentinel engine failure tagged with its category.
type EngineError struct {
	msg      string
	category ErrorCategory
}

func (e *EngineError) Error() string { return e.msg }

// Category returns the failure category.
func (e *EngineError) Category() ErrorCategory { return e.category }

func engineErr(c ErrorCategory, msg string) error {
	return &EngineError{msg: msg, category: c}
}

// CategoryOf returns the category of the first EngineError in err's chain,
// or CategoryInternal for anything else.
func CategoryOf(err error) ErrorCategory {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.category
	}
	return CategoryInternal
}

// Infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
	ErrCacheMiss     = errors.New("cache miss")
	ErrSigningFailed = errors.New("signing failed")
)

// Validation.
var (
	ErrInvalidAmount       = engineErr(CategoryValidation, "invalid amount")
	ErrInvalidPrice        = engineErr(CategoryValidation, "invalid price")
	ErrInvalidOutcome      = engineErr(CategoryValidation, "invalid outcome")
	ErrInvalidTokenID      = engineErr(CategoryValidation, "invalid token id")
	ErrInvalidSide         = engineErr(CategoryValidation, "invalid side")
	ErrInvalidInput        = engineErr(CategoryValidation, "invalid input")
	ErrInvalidMarket       = engineErr(CategoryValidation, "order market does not match")
	ErrInvalidAccountInput = engineErr(CategoryValidation, "account context does not belong to order maker or market")
	ErrOrderExpired        = engineErr(CategoryValidation, "order expired")
	ErrInvalidNonce        = engineErr(CategoryValidation, "invalid nonce")
	ErrFeeTooHigh          = engineErr(CategoryValidation, "fee rate exceeds cap")
	ErrTooManyMakers       = engineErr(CategoryValidation, "maker order count out of range")
	ErrInvalidMatch        = engineErr(CategoryValidation, "orders do not form a valid match")
	ErrNotCrossing         = engineErr(CategoryValidation, "order prices do not cross")
	ErrTextTooLong         = engineErr(CategoryValidation, "text too long")
	ErrInvalidThreshold    = engineErr(CategoryValidation, "termination threshold mismatch")
	ErrPriceSumMismatch    = engineErr(CategoryValidation, "outcome prices do not sum to one")
	ErrPriceMismatch       = engineErr(CategoryValidation, "prices differ from recorded trade prices")
)

// Authorization.
var (
	ErrUnauthorized     = engineErr(CategoryAuthorization, "unauthorized")
	ErrInvalidSignature = engineErr(CategoryAuthorization, "invalid signature")
	ErrNotOperator      = engineErr(CategoryAuthorization, "caller is not an operator")
	ErrNotAdmin         = engineErr(CategoryAuthorization, "caller is not the authority")
	ErrInvalidTaker     = engineErr(CategoryAuthorization, "order restricted to a different taker")
	ErrNotOrderMaker    = engineErr(CategoryAuthorization, "caller is not the order maker")
)

// State.
var (
	ErrMarketNotActive        = engineErr(CategoryState, "market not active")
	ErrMarketPaused           = engineErr(CategoryState, "market paused")
	ErrTradingPaused          = engineErr(CategoryState, "trading globally paused")
	ErrMarketTerminated       = engineErr(CategoryState, "market already terminated")
	ErrMarketNotTerminated    = engineErr(CategoryState, "market has no final prices")
	ErrRedemptionNotAllowed   = engineErr(CategoryState, "redemption not allowed")
	ErrInvalidTransition      = engineErr(CategoryState, "invalid market status transition")
	ErrOrderNotFillable       = engineErr(CategoryState, "order not fillable")
	ErrOrderHashMismatch      = engineErr(CategoryState, "order hash mismatch")
	ErrOrderCancelledOrFilled = engineErr(CategoryState, "order already cancelled or filled")
	ErrMissingLastTrade       = engineErr(CategoryState, "market has no reference trade")
	ErrRandomnessStale        = engineErr(CategoryState, "randomness reading is stale")
	ErrInvariantViolation     = engineErr(CategoryState, "market conservation invariant violated")
	ErrMarketExists           = engineErr(CategoryState, "market already exists")
)

// Balance.
var (
	ErrInsufficientBalance        = engineErr(CategoryBalance, "insufficient collateral balance")
	ErrInsufficientOutcomeTokens  = engineErr(CategoryBalance, "insufficient outcome shares")
	ErrInsufficientVaultBalance   = engineErr(CategoryBalance, "insufficient vault balance")
	ErrInsufficientRedeemablePool = engineErr(CategoryBalance, "redemption exceeds redeemable pool")
)

// Arithmetic.
var ErrArithmeticOverflow = engineErr(CategoryArithmetic, "arithmetic overflow")

// Configuration.
var (
	ErrInvalidFeeConfiguration = engineErr(CategoryConfiguration, "invalid fee configuration")
	ErrTooManyOperators        = engineErr(CategoryConfiguration, "operator list full")
)
