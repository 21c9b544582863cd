package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
)

// StockProcessor matches sales against purchase lots, oldest first.
type StockProcessor struct {
	converter *Converter
	validator *ActivityValidator
}

func NewStockProcessor(converter *Converter, validator *ActivityValidator) *StockProcessor {
	if validator == nil {
		validator = NewActivityValidator()
	}
	return &StockProcessor{converter: converter, validator: validator}
}

// ProcessSales replays the buys and sells of one source in chronological order.
// It returns one MatchedSale per sell and the inventory left afterwards.
// Any error aborts the whole source and no sales are returned.
func (p *StockProcessor) ProcessSales(source string, records []models.ActivityRecord) ([]models.MatchedSale, *LotInventory, error) {
	inv := NewLotInventory(source)
	var sales []models.MatchedSale

	for _, r := range chronological(records) {
		switch r.Type {
		case models.ActivityBuy:
			if err := p.AddPurchase(inv, r); err != nil {
				return nil, nil, err
			}
		case models.ActivitySell:
			sale, err := p.MatchSale(inv, r)
			if err != nil {
				return nil, nil, err
			}
			sales = append(sales, sale)
		}
	}

	logger.L.Debug("Sales matched", "source", source, "sales", len(sales), "openSecurities", len(inv.Securities()))
	return sales, inv, nil
}

// AddPurchase turns a buy into an open lot.
func (p *StockProcessor) AddPurchase(inv *LotInventory, r models.ActivityRecord) error {
	if err := p.validator.Validate(r); err != nil {
		return err
	}
	return inv.AddLot(models.PurchaseLot{
		SecurityID:        r.SecurityID,
		Date:              r.Date,
		OriginalQuantity:  r.Quantity,
		QuantityRemaining: r.Quantity,
		UnitCost:          r.UnitPrice,
		Currency:          r.Currency,
		SourceParser:      r.Source,
	})
}

// MatchSale consumes lots for a sell and computes its gain or loss.
// The inventory is only modified once every conversion has succeeded.
func (p *StockProcessor) MatchSale(inv *LotInventory, sale models.ActivityRecord) (models.MatchedSale, error) {
	if err := p.validator.Validate(sale); err != nil {
		return models.MatchedSale{}, err
	}

	proceeds, err := p.converter.Convert(sale.Proceeds(), sale.Currency, sale.Date)
	if err != nil {
		return models.MatchedSale{}, err
	}

	plan, err := inv.Plan(sale.SecurityID, sale.Quantity, sale.Date)
	if err != nil {
		return models.MatchedSale{}, err
	}

	var cost Amounts
	for _, part := range plan {
		// each part is valued with the rate of its own acquisition date
		partCost, err := p.converter.Convert(part.Quantity.Mul(part.Lot.UnitCost), part.Lot.Currency, part.Lot.Date)
		if err != nil {
			return models.MatchedSale{}, err
		}
		cost = cost.Add(partCost)
	}

	inv.apply(sale.SecurityID, plan)

	profit, loss := splitNet(proceeds.Local.Sub(cost.Local))
	profitCcy, lossCcy := splitNet(proceeds.InCurrency.Sub(cost.InCurrency))

	return models.MatchedSale{
		SecurityID:             sale.SecurityID,
		Source:                 sale.Source,
		SaleDate:               sale.Date,
		Quantity:               sale.Quantity,
		Currency:               sale.Currency,
		SaleProceeds:           proceeds.Local,
		SaleProceedsInCurrency: proceeds.InCurrency,
		CostBasis:              cost.Local,
		CostBasisInCurrency:    cost.InCurrency,
		Profit:                 profit,
		Loss:                   loss,
		ProfitInCurrency:       profitCcy,
		LossInCurrency:         lossCcy,
	}, nil
}

// RemainingPurchases values the open lots with their acquisition-date rates,
// grouped by security.
func (p *StockProcessor) RemainingPurchases(inv *LotInventory) (map[string][]models.RemainingPurchase, error) {
	out := make(map[string][]models.RemainingPurchase)
	for _, id := range inv.Securities() {
		for _, lot := range inv.RemainingLots(id) {
			native := lot.QuantityRemaining.Mul(lot.UnitCost)
			cost, err := p.converter.Convert(native, lot.Currency, lot.Date)
			if err != nil {
				return nil, err
			}
			out[id] = append(out[id], models.RemainingPurchase{
				SecurityID:     id,
				Source:         lot.SourceParser,
				Date:           lot.Date,
				Quantity:       lot.QuantityRemaining,
				UnitCost:       lot.UnitCost,
				Currency:       lot.Currency,
				CostNative:     native,
				Cost:           cost.Local,
				CostInCurrency: cost.InCurrency,
			})
		}
	}
	return out, nil
}

// WinLoss returns the sum of profit minus loss over sales, in both currencies.
func WinLoss(sales []models.MatchedSale) Amounts {
	var total Amounts
	for _, s := range sales {
		total.Local = total.Local.Add(s.Net())
		total.InCurrency = total.InCurrency.Add(s.NetInCurrency())
	}
	return total
}

func splitNet(net decimal.Decimal) (profit, loss decimal.Decimal) {
	if net.IsNegative() {
		return decimal.Zero, net.Neg()
	}
	return net, decimal.Zero
}

// chronological returns records sorted by date, keeping input order on ties.
func chronological(records []models.ActivityRecord) []models.ActivityRecord {
	sorted := make([]models.ActivityRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}
