package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseLot is an open acquisition still (partly) held.
type PurchaseLot struct {
	SecurityID        string          `json:"security_id"`
	Date              time.Time       `json:"date"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Currency          string          `json:"currency"`
	SourceParser      string          `json:"source_parser"`
}

// RemainingPurchase is the exported view of a lot left open at the end of a run.
type RemainingPurchase struct {
	SecurityID     string          `json:"security_id"`
	Source         string          `json:"source"`
	Date           time.Time       `json:"date"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Currency       string          `json:"currency"`
	CostNative     decimal.Decimal `json:"cost_native"`
	Cost           decimal.Decimal `json:"cost"`
	CostInCurrency decimal.Decimal `json:"cost_in_currency"`
}

// MatchedSale is the outcome of matching one Sell against open lots.
// Un-suffixed money is in the local currency, InCurrency in the reporting one.
type MatchedSale struct {
	SecurityID             string          `json:"security_id"`
	Source                 string          `json:"source"`
	SaleDate               time.Time       `json:"sale_date"`
	Quantity               decimal.Decimal `json:"quantity"`
	Currency               string          `json:"currency"`
	SaleProceeds           decimal.Decimal `json:"sale_proceeds"`
	SaleProceedsInCurrency decimal.Decimal `json:"sale_proceeds_in_currency"`
	CostBasis              decimal.Decimal `json:"cost_basis"`
	CostBasisInCurrency    decimal.Decimal `json:"cost_basis_in_currency"`
	Profit                 decimal.Decimal `json:"profit"`
	Loss                   decimal.Decimal `json:"loss"`
	ProfitInCurrency       decimal.Decimal `json:"profit_in_currency"`
	LossInCurrency         decimal.Decimal `json:"loss_in_currency"`
}

// Net returns profit minus loss in the local currency.
func (s MatchedSale) Net() decimal.Decimal {
	return s.Profit.Sub(s.Loss)
}

// NetInCurrency returns profit minus loss in the reporting currency.
func (s MatchedSale) NetInCurrency() decimal.Decimal {
	return s.ProfitInCurrency.Sub(s.LossInCurrency)
}
