package processors

import "github.com/username/taxfolio/declaration/src/models"

// SaleMatcher matches sells against FIFO lots for one source.
type SaleMatcher interface {
	ProcessSales(source string, records []models.ActivityRecord) ([]models.MatchedSale, *LotInventory, error)
	RemainingPurchases(inv *LotInventory) (map[string][]models.RemainingPurchase, error)
}

// DividendAggregator converts dividends and reconciles withholding tax.
type DividendAggregator interface {
	CalculateDividends(source string, records []models.ActivityRecord) ([]models.DividendRecord, error)
	CalculateDividendsTax(dividends []models.DividendRecord) []models.DividendTaxTotal
}

var (
	_ SaleMatcher        = (*StockProcessor)(nil)
	_ DividendAggregator = (*DividendProcessor)(nil)
)
