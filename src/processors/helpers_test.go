package processors

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buy(id, date, qty, price string) models.ActivityRecord {
	return models.ActivityRecord{
		Type: models.ActivityBuy, SecurityID: id, Date: day(date),
		Quantity: dec(qty), UnitPrice: dec(price), Currency: "USD", Source: "test",
	}
}

func sell(id, date, qty, price string) models.ActivityRecord {
	r := buy(id, date, qty, price)
	r.Type = models.ActivitySell
	return r
}

func dividend(id, date, gross, withheld string) models.ActivityRecord {
	return models.ActivityRecord{
		Type: models.ActivityDividend, SecurityID: id, Date: day(date),
		Amount: dec(gross), WithholdingTax: dec(withheld), Currency: "USD", Source: "test",
	}
}

func lot(id, date, qty, cost string) models.PurchaseLot {
	return models.PurchaseLot{
		SecurityID: id, Date: day(date), OriginalQuantity: dec(qty),
		UnitCost: dec(cost), Currency: "USD",
	}
}
