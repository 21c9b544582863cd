package rates

//go:generate mockgen -destination=mocks/mock_provider.go -source=provider.go

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned when no quote exists for a currency and date.
var ErrRateNotFound = errors.New("exchange rate not found")

// Provider returns how many units of the local declaration currency one unit
// of currency was worth on date. Implementations must be safe for concurrent use.
type Provider interface {
	Rate(currency string, date time.Time) (decimal.Decimal, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(currency string, date time.Time) (decimal.Decimal, error)

func (f ProviderFunc) Rate(currency string, date time.Time) (decimal.Decimal, error) {
	return f(currency, date)
}

// Static returns the same rate for a currency on every date.
type Static map[string]decimal.Decimal

func (s Static) Rate(currency string, date time.Time) (decimal.Decimal, error) {
	if r, ok := s[strings.ToUpper(currency)]; ok {
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrRateNotFound, currency, date.Format("2006-01-02"))
}

// Fallback asks each provider in turn and returns the first rate found.
// Errors other than ErrRateNotFound stop the chain.
func Fallback(providers ...Provider) Provider {
	return ProviderFunc(func(currency string, date time.Time) (decimal.Decimal, error) {
		lastErr := fmt.Errorf("%w: %s on %s", ErrRateNotFound, currency, date.Format("2006-01-02"))
		for _, p := range providers {
			r, err := p.Rate(currency, date)
			if err == nil {
				return r, nil
			}
			if !errors.Is(err, ErrRateNotFound) {
				return decimal.Zero, err
			}
			lastErr = err
		}
		return decimal.Zero, lastErr
	})
}

// observationSource finds the latest base-quoted observation for currency
// published no earlier than date-lookback and no later than date.
type observationSource interface {
	observation(currency string, date time.Time, lookback int) (decimal.Decimal, time.Time, error)
}

// CrossRates turns base-quoted observations (units of X per base unit) into
// local-per-unit rates: rate(C) = quote(local) / quote(C).
type CrossRates struct {
	src      observationSource
	base     string
	local    string
	lookback int
}

func newCrossRates(src observationSource, base, local string, lookbackDays int) *CrossRates {
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &CrossRates{
		src:      src,
		base:     strings.ToUpper(base),
		local:    strings.ToUpper(local),
		lookback: lookbackDays,
	}
}

// Rate implements Provider.
func (c *CrossRates) Rate(currency string, date time.Time) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == c.local {
		return decimal.NewFromInt(1), nil
	}
	localQuote, err := c.quote(c.local, date)
	if err != nil {
		return decimal.Zero, err
	}
	ccyQuote, err := c.quote(currency, date)
	if err != nil {
		return decimal.Zero, err
	}
	return localQuote.Div(ccyQuote), nil
}

func (c *CrossRates) quote(currency string, date time.Time) (decimal.Decimal, error) {
	if currency == c.base {
		return decimal.NewFromInt(1), nil
	}
	v, _, err := c.src.observation(currency, date, c.lookback)
	if err != nil {
		return decimal.Zero, err
	}
	// a stored zero is no quote; let the next provider answer
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive quote for %s on %s", ErrRateNotFound, currency, dayKey(date))
	}
	return v, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
