package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType classifies a statement record.
type ActivityType string

const (
	ActivityBuy      ActivityType = "BUY"
	ActivitySell     ActivityType = "SELL"
	ActivityDividend ActivityType = "DIVIDEND"
)

// IsSupported reports whether the engine knows how to process the type.
func (t ActivityType) IsSupported() bool {
	switch t {
	case ActivityBuy, ActivitySell, ActivityDividend:
		return true
	}
	return false
}

// ActivityRecord is one normalized line of a broker statement. Parsers
// produce it and nothing downstream mutates it.
type ActivityRecord struct {
	Type       ActivityType    `json:"type" validate:"required"`
	SecurityID string          `json:"security_id" validate:"required"`
	Name       string          `json:"name,omitempty"`
	Date       time.Time       `json:"date" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Currency   string          `json:"currency" validate:"required,len=3,iso4217"`
	Fee        decimal.Decimal `json:"fee" validate:"gte=0"`

	// Amount is the gross dividend amount. When zero, Quantity*UnitPrice is used.
	Amount decimal.Decimal `json:"amount"`
	// WithholdingTax is the tax withheld at source, in Currency.
	WithholdingTax decimal.Decimal `json:"withholding_tax" validate:"gte=0"`
	// Country is the ISO alpha-2 code of the paying country, when known.
	Country string `json:"country,omitempty" validate:"omitempty,len=2"`

	Source  string `json:"source,omitempty"`
	RawType string `json:"raw_type,omitempty"`
}

// GrossAmount returns the gross value of a dividend in its own currency.
func (r ActivityRecord) GrossAmount() decimal.Decimal {
	if !r.Amount.IsZero() {
		return r.Amount
	}
	return r.Quantity.Mul(r.UnitPrice)
}

// Proceeds returns quantity * price minus the fee.
func (r ActivityRecord) Proceeds() decimal.Decimal {
	return r.Quantity.Mul(r.UnitPrice).Sub(r.Fee)
}

// UnsupportedTypes returns the distinct record types the engine cannot
// process, in order of first appearance.
func UnsupportedTypes(records []ActivityRecord) []string {
	seen := make(map[ActivityType]bool)
	var out []string
	for _, r := range records {
		if r.Type.IsSupported() || seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		out = append(out, string(r.Type))
	}
	return out
}
