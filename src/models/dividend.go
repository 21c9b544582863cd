package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DividendRecord is a dividend payment with both currency representations.
type DividendRecord struct {
	SecurityID                   string          `json:"security_id"`
	Name                         string          `json:"name,omitempty"`
	Source                       string          `json:"source"`
	Country                      string          `json:"country"`
	Date                         time.Time       `json:"date"`
	Currency                     string          `json:"currency"`
	GrossAmountNative            decimal.Decimal `json:"gross_amount_native"`
	GrossAmount                  decimal.Decimal `json:"gross_amount"`
	GrossAmountInCurrency        decimal.Decimal `json:"gross_amount_in_currency"`
	WithholdingTaxNative         decimal.Decimal `json:"withholding_tax_native"`
	WithholdingTaxPaid           decimal.Decimal `json:"withholding_tax_paid"`
	WithholdingTaxPaidInCurrency decimal.Decimal `json:"withholding_tax_paid_in_currency"`
}

// DividendTaxTotal is the per-country reconciliation of withheld against owed tax.
type DividendTaxTotal struct {
	Country              string          `json:"country"`
	CountryName          string          `json:"country_name,omitempty"`
	DeclaredRate         decimal.Decimal `json:"declared_rate"`
	GrossTotal           decimal.Decimal `json:"gross_total"`
	GrossTotalInCurrency decimal.Decimal `json:"gross_total_in_currency"`
	TaxPaid              decimal.Decimal `json:"tax_paid"`
	TaxPaidInCurrency    decimal.Decimal `json:"tax_paid_in_currency"`
	TaxOwed              decimal.Decimal `json:"tax_owed"`
	TaxOwedInCurrency    decimal.Decimal `json:"tax_owed_in_currency"`
}

// DeclaredRates holds the local tax rate applied to foreign dividends, per country.
type DeclaredRates struct {
	Default   decimal.Decimal
	ByCountry map[string]decimal.Decimal
}

// RateFor returns the declared rate for an alpha-2 country code.
func (r DeclaredRates) RateFor(country string) decimal.Decimal {
	if rate, ok := r.ByCountry[country]; ok {
		return rate
	}
	return r.Default
}
