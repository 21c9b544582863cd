package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
)

// LotConsumption is the part of a lot used to cover a sale.
// Lot is the lot as it was before the consumption.
type LotConsumption struct {
	Lot      models.PurchaseLot
	Quantity decimal.Decimal
}

// LotInventory keeps the open lots of one source as per-security FIFO queues.
// It is not safe for concurrent use; each source gets its own inventory.
type LotInventory struct {
	source string
	lots   map[string][]*models.PurchaseLot
}

func NewLotInventory(source string) *LotInventory {
	return &LotInventory{source: source, lots: make(map[string][]*models.PurchaseLot)}
}

// AddLot queues a lot behind every lot of the same security dated on or before it.
func (inv *LotInventory) AddLot(lot models.PurchaseLot) error {
	if !lot.OriginalQuantity.IsPositive() {
		return &InvalidActivityError{SecurityID: lot.SecurityID, Type: string(models.ActivityBuy), Date: lot.Date, Reason: "lot quantity must be positive"}
	}
	if lot.QuantityRemaining.IsZero() {
		lot.QuantityRemaining = lot.OriginalQuantity
	}
	if lot.QuantityRemaining.IsNegative() || lot.QuantityRemaining.GreaterThan(lot.OriginalQuantity) {
		return &InvalidActivityError{SecurityID: lot.SecurityID, Type: string(models.ActivityBuy), Date: lot.Date, Reason: "remaining quantity out of range"}
	}
	if lot.SourceParser == "" {
		lot.SourceParser = inv.source
	}

	queue := inv.lots[lot.SecurityID]
	// first lot strictly after the new one; equal dates keep insertion order
	i := sort.Search(len(queue), func(i int) bool { return queue[i].Date.After(lot.Date) })
	queue = append(queue, nil)
	copy(queue[i+1:], queue[i:])
	queue[i] = &lot
	inv.lots[lot.SecurityID] = queue
	return nil
}

// Available returns the open quantity of a security.
func (inv *LotInventory) Available(securityID string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range inv.lots[securityID] {
		total = total.Add(l.QuantityRemaining)
	}
	return total
}

// Plan computes which lots would cover qty without touching the inventory.
func (inv *LotInventory) Plan(securityID string, qty decimal.Decimal, date time.Time) ([]LotConsumption, error) {
	if !qty.IsPositive() {
		return nil, &InvalidActivityError{SecurityID: securityID, Type: string(models.ActivitySell), Date: date, Reason: "quantity must be positive"}
	}
	available := inv.Available(securityID)
	if available.LessThan(qty) {
		return nil, &InsufficientLotsError{SecurityID: securityID, Date: date, Requested: qty, Available: available}
	}

	var plan []LotConsumption
	needed := qty
	for _, l := range inv.lots[securityID] {
		if !needed.IsPositive() {
			break
		}
		take := decimal.Min(needed, l.QuantityRemaining)
		plan = append(plan, LotConsumption{Lot: *l, Quantity: take})
		needed = needed.Sub(take)
	}
	return plan, nil
}

// Consume removes qty from the oldest lots of a security, splitting the last
// one when it is only partly needed. On error the inventory is unchanged.
func (inv *LotInventory) Consume(securityID string, qty decimal.Decimal, date time.Time) ([]LotConsumption, error) {
	plan, err := inv.Plan(securityID, qty, date)
	if err != nil {
		return nil, err
	}
	inv.apply(securityID, plan)
	return plan, nil
}

// apply commits a plan produced by Plan on the current state.
func (inv *LotInventory) apply(securityID string, plan []LotConsumption) {
	queue := inv.lots[securityID]
	for i, c := range plan {
		queue[i].QuantityRemaining = queue[i].QuantityRemaining.Sub(c.Quantity)
	}
	drop := 0
	for drop < len(queue) && queue[drop].QuantityRemaining.IsZero() {
		drop++
	}
	queue = queue[drop:]
	if len(queue) == 0 {
		delete(inv.lots, securityID)
		return
	}
	inv.lots[securityID] = queue
}

// RemainingLots returns copies of the open lots of a security, oldest first.
func (inv *LotInventory) RemainingLots(securityID string) []models.PurchaseLot {
	queue := inv.lots[securityID]
	out := make([]models.PurchaseLot, 0, len(queue))
	for _, l := range queue {
		out = append(out, *l)
	}
	return out
}

// Securities lists securities with open lots, sorted.
func (inv *LotInventory) Securities() []string {
	ids := make([]string, 0, len(inv.lots))
	for id := range inv.lots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
