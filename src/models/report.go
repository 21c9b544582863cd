package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CombinedKey names the figures of a combined (all sources) report.
const CombinedKey = "combined"

// Figures are the declaration numbers for one source or for all sources combined.
type Figures struct {
	Sales              []MatchedSale                  `json:"sales"`
	RemainingPurchases map[string][]RemainingPurchase `json:"remaining_purchases"`
	Dividends          []DividendRecord               `json:"dividends"`
	DividendTaxes      []DividendTaxTotal             `json:"dividend_taxes"`
	WinLoss            decimal.Decimal                `json:"win_loss"`
	WinLossInCurrency  decimal.Decimal                `json:"win_loss_in_currency"`
}

// Report is the outcome of one processing run.
type Report struct {
	RunID             string    `json:"run_id"`
	GeneratedAt       time.Time `json:"generated_at"`
	LocalCurrency     string    `json:"local_currency"`
	ReportingCurrency string    `json:"reporting_currency"`
	Combined          bool      `json:"combined"`
	Sources           []string  `json:"sources"`
	// FigureKeys keeps Figures in output order: CombinedKey or the source names.
	FigureKeys []string            `json:"figure_keys"`
	Figures    map[string]*Figures `json:"figures"`
	// Statements are the normalized records per source, in parse order.
	Statements map[string][]ActivityRecord `json:"statements,omitempty"`
	// UnsupportedActivityTypes lists, per source, types the engine cannot process.
	UnsupportedActivityTypes map[string][]string `json:"unsupported_activity_types,omitempty"`
	// SalesSkipped is set when unsupported types forced dividends-only output.
	SalesSkipped bool `json:"sales_skipped"`
}
