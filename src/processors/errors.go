package processors

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientLots = errors.New("insufficient lots")
	ErrInvalidActivity  = errors.New("invalid activity")
	ErrMissingRate      = errors.New("missing exchange rate")
	ErrDuplicateSource  = errors.New("duplicate source")
)

// InsufficientLotsError reports a sale larger than the open position.
type InsufficientLotsError struct {
	SecurityID string
	Date       time.Time
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("insufficient lots for %s on %s: requested %s, available %s",
		e.SecurityID, e.Date.Format("2006-01-02"), e.Requested, e.Available)
}

func (e *InsufficientLotsError) Unwrap() error { return ErrInsufficientLots }

// InvalidActivityError reports a record the engine refuses to process.
type InvalidActivityError struct {
	SecurityID string
	Type       string
	Date       time.Time
	Reason     string
}

func (e *InvalidActivityError) Error() string {
	return fmt.Sprintf("invalid %s activity for %s on %s: %s",
		e.Type, e.SecurityID, e.Date.Format("2006-01-02"), e.Reason)
}

func (e *InvalidActivityError) Unwrap() error { return ErrInvalidActivity }

// MissingRateError reports a currency conversion without a rate.
type MissingRateError struct {
	Currency string
	Date     time.Time
	Err      error
}

func (e *MissingRateError) Error() string {
	msg := fmt.Sprintf("missing exchange rate for %s on %s", e.Currency, e.Date.Format("2006-01-02"))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingRateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingRate}
	}
	return []error{ErrMissingRate, e.Err}
}
