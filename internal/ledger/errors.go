package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrAccountNotFound indicates the referenced account number does not exist.
var ErrAccountNotFound = errors.New("account not found")

// errNoRowsAffected reports a conditional update whose guard did not hold.
// It never leaves the package; the engine maps it to a caller-facing error.
var errNoRowsAffected = errors.New("no rows affected")

// ValidationError is the caller's fault: malformed or out-of-range input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries what the caller needs to render the
// rejection. The store is left untouched when it is returned.
type InsufficientFundsError struct {
	CurrentBalance  decimal.Decimal
	RequestedAmount decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s",
		e.CurrentBalance.StringFixed(2), e.RequestedAmount.StringFixed(2))
}
