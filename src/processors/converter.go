package processors

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/rates"
)

// Converter expresses native amounts in the local declaration currency and
// in the reporting currency.
type Converter struct {
	rates     rates.Provider
	local     string
	reporting string
}

func NewConverter(provider rates.Provider, localCurrency, reportingCurrency string) *Converter {
	return &Converter{
		rates:     provider,
		local:     strings.ToUpper(localCurrency),
		reporting: strings.ToUpper(reportingCurrency),
	}
}

func (c *Converter) LocalCurrency() string     { return c.local }
func (c *Converter) ReportingCurrency() string { return c.reporting }

// Rate returns local units per unit of currency on date.
func (c *Converter) Rate(currency string, date time.Time) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == c.local {
		return decimal.NewFromInt(1), nil
	}
	r, err := c.rates.Rate(currency, date)
	if err != nil {
		return decimal.Zero, &MissingRateError{Currency: currency, Date: date, Err: err}
	}
	if !r.IsPositive() {
		return decimal.Zero, &MissingRateError{Currency: currency, Date: date}
	}
	return r, nil
}

// Amounts holds one value in the local and in the reporting currency.
type Amounts struct {
	Local      decimal.Decimal
	InCurrency decimal.Decimal
}

func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{Local: a.Local.Add(b.Local), InCurrency: a.InCurrency.Add(b.InCurrency)}
}

// Convert converts amount, expressed in currency, with the rates of date.
func (c *Converter) Convert(amount decimal.Decimal, currency string, date time.Time) (Amounts, error) {
	currency = strings.ToUpper(currency)
	rate, err := c.Rate(currency, date)
	if err != nil {
		return Amounts{}, err
	}
	local := amount.Mul(rate)
	if currency == c.reporting {
		return Amounts{Local: local, InCurrency: amount}, nil
	}
	reportingRate, err := c.Rate(c.reporting, date)
	if err != nil {
		return Amounts{}, err
	}
	return Amounts{Local: local, InCurrency: local.Div(reportingRate)}, nil
}
