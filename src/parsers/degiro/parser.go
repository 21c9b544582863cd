package degiro

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/utils"
)

const (
	Name = "degiro"

	TypeOption        models.ActivityType = "OPTION"
	TypeProductChange models.ActivityType = "PRODUCT_CHANGE"
	TypeStockSplit    models.ActivityType = "STOCK_SPLIT"
)

// RawTransaction is one row of a DEGIRO account statement export.
type RawTransaction struct {
	OrderDate, OrderTime, ValueDate, Name, ISIN, Description, ExchangeRate, Currency, Amount, OrderID string
}

type rowKind int

const (
	rowIgnored rowKind = iota
	rowTrade
	rowDividend
	rowDividendTax
	rowCommission
	rowUnsupported
)

var (
	tradeRe  = regexp.MustCompile(`(?i)^\s*(compra|venda|buy|sell)\s+([\d\s.,]+)\s+(.+?)\s*@\s*([\d.,]+)\s*([A-Z]{3})?`)
	optionRe = regexp.MustCompile(`\s+[CP]\d+(\.\d+)?\s+\d{2}[A-Z]{3}\d{2}$`)
)

type DeGiroParser struct{}

func NewParser() *DeGiroParser {
	return &DeGiroParser{}
}

// Parse reads the account statement CSV (Portuguese or English descriptions).
func (p *DeGiroParser) Parse(file io.Reader) ([]models.ActivityRecord, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var rawTxs []RawTransaction
	for _, row := range rows {
		if len(row) >= 12 {
			rawTxs = append(rawTxs, RawTransaction{
				OrderDate: row[0], OrderTime: row[1], ValueDate: row[2],
				Name: row[3], ISIN: strings.TrimSpace(row[4]), Description: row[5],
				ExchangeRate: row[6], Currency: strings.ToUpper(strings.TrimSpace(row[7])), Amount: row[8],
				OrderID: strings.TrimSpace(row[11]),
			})
		}
	}

	rawTxs = oldestFirst(rawTxs)

	var records []models.ActivityRecord
	dividends := make(map[string]int) // ISIN|date|currency -> index in records
	var taxes []RawTransaction

	for _, raw := range rawTxs {
		date, err := utils.ParseDate(raw.OrderDate)
		if err != nil {
			logger.L.Warn("DEGIRO parser: skipping row with invalid date", "date", raw.OrderDate)
			continue
		}

		switch kind, typ := classify(raw.Description, raw.Name); kind {
		case rowTrade:
			rec, err := tradeRecord(raw, date, rawTxs)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		case rowDividend:
			amount, err := utils.ParseLocaleDecimal(raw.Amount)
			if err != nil {
				return nil, fmt.Errorf("dividend of %s on %s: %w", raw.ISIN, raw.OrderDate, err)
			}
			key := dividendKey(raw.ISIN, date, raw.Currency)
			if i, ok := dividends[key]; ok {
				// reversals and corrections are netted into the original payment
				records[i].Amount = records[i].Amount.Add(amount)
				continue
			}
			dividends[key] = len(records)
			records = append(records, models.ActivityRecord{
				Type:       models.ActivityDividend,
				SecurityID: raw.ISIN,
				Name:       strings.TrimSpace(raw.Name),
				Date:       date,
				Currency:   raw.Currency,
				Amount:     amount,
				Source:     Name,
				RawType:    raw.Description,
			})
		case rowDividendTax:
			taxes = append(taxes, raw)
		case rowUnsupported:
			records = append(records, models.ActivityRecord{
				Type:       typ,
				SecurityID: raw.ISIN,
				Name:       strings.TrimSpace(raw.Name),
				Date:       date,
				Currency:   raw.Currency,
				Source:     Name,
				RawType:    raw.Description,
			})
		}
	}

	for _, raw := range taxes {
		date, _ := utils.ParseDate(raw.OrderDate)
		amount, err := utils.ParseLocaleDecimal(raw.Amount)
		if err != nil {
			return nil, fmt.Errorf("dividend tax of %s on %s: %w", raw.ISIN, raw.OrderDate, err)
		}
		i, ok := dividends[dividendKey(raw.ISIN, date, raw.Currency)]
		if !ok {
			logger.L.Warn("DEGIRO parser: dividend tax without matching dividend", "isin", raw.ISIN, "date", raw.OrderDate)
			continue
		}
		// tax rows are debits; refunds come as credits
		records[i].WithholdingTax = records[i].WithholdingTax.Sub(amount)
	}

	out := records[:0]
	for _, r := range records {
		if r.Type == models.ActivityDividend {
			if !r.Amount.IsPositive() {
				logger.L.Info("DEGIRO parser: dropping fully reversed dividend", "isin", r.SecurityID, "date", r.Date.Format("2006-01-02"))
				continue
			}
			if r.WithholdingTax.IsNegative() {
				r.WithholdingTax = decimal.Zero
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// UnsupportedActivityTypes reports options, product changes and splits.
func (p *DeGiroParser) UnsupportedActivityTypes(records []models.ActivityRecord) []string {
	return models.UnsupportedTypes(records)
}

func classify(description, product string) (rowKind, models.ActivityType) {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "imposto sobre dividendo") || strings.Contains(lower, "dividend tax"):
		return rowDividendTax, ""
	case strings.Contains(lower, "dividendo") || strings.Contains(lower, "dividend"):
		return rowDividend, ""
	case strings.Contains(lower, "comissões de transação") || strings.Contains(lower, "transaction fee") ||
		strings.Contains(lower, "transaction and/or third party fees"):
		return rowCommission, ""
	case strings.Contains(lower, "mudança de produto") || strings.Contains(lower, "product change"):
		return rowUnsupported, TypeProductChange
	case strings.Contains(lower, "desdobramento") || strings.Contains(lower, "stock split"):
		return rowUnsupported, TypeStockSplit
	}

	m := tradeRe.FindStringSubmatch(description)
	if m == nil {
		return rowIgnored, ""
	}
	if optionRe.MatchString(strings.TrimSpace(m[3])) || optionRe.MatchString(strings.TrimSpace(product)) {
		return rowUnsupported, TypeOption
	}
	return rowTrade, ""
}

func tradeRecord(raw RawTransaction, date time.Time, all []RawTransaction) (models.ActivityRecord, error) {
	m := tradeRe.FindStringSubmatch(raw.Description)

	typ := models.ActivityBuy
	if side := strings.ToLower(m[1]); side == "venda" || side == "sell" {
		typ = models.ActivitySell
	}

	// quantities use "." as thousands separator
	qtyStr := strings.ReplaceAll(strings.ReplaceAll(m[2], " ", ""), ".", "")
	qty, err := utils.ParseLocaleDecimal(qtyStr)
	if err != nil {
		return models.ActivityRecord{}, fmt.Errorf("trade quantity in %q: %w", raw.Description, err)
	}
	price, err := utils.ParseLocaleDecimal(m[4])
	if err != nil {
		return models.ActivityRecord{}, fmt.Errorf("trade price in %q: %w", raw.Description, err)
	}

	currency := strings.ToUpper(m[5])
	if currency == "" {
		currency = raw.Currency
	}

	fee, err := commissionForOrder(raw, currency, all)
	if err != nil {
		return models.ActivityRecord{}, err
	}

	return models.ActivityRecord{
		Type:       typ,
		SecurityID: raw.ISIN,
		Name:       strings.TrimSpace(raw.Name),
		Date:       date,
		Quantity:   qty.Abs(),
		UnitPrice:  price,
		Currency:   currency,
		Fee:        fee,
		Source:     Name,
		RawType:    raw.Description,
	}, nil
}

// commissionForOrder sums the commission rows of the trade's order, in the
// trade currency. Commissions booked in another currency are converted with
// the FX rate of the order row when available.
func commissionForOrder(trade RawTransaction, currency string, all []RawTransaction) (decimal.Decimal, error) {
	total := decimal.Zero
	if trade.OrderID == "" {
		return total, nil
	}
	for _, t := range all {
		if t.OrderID != trade.OrderID {
			continue
		}
		if kind, _ := classify(t.Description, t.Name); kind != rowCommission {
			continue
		}
		amount, err := utils.ParseLocaleDecimal(t.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid commission amount for order %s: %w", t.OrderID, err)
		}
		amount = amount.Abs()
		if t.Currency != "" && t.Currency != currency {
			fx, err := utils.ParseLocaleDecimal(trade.ExchangeRate)
			if err != nil || !fx.IsPositive() {
				logger.L.Warn("DEGIRO parser: commission in another currency without FX rate, ignoring it",
					"orderID", t.OrderID, "commissionCurrency", t.Currency, "tradeCurrency", currency)
				continue
			}
			amount = amount.Mul(fx)
		}
		total = total.Add(amount)
	}
	return total, nil
}

// oldestFirst orders rows by order date and time. Exports list the newest
// row first, so rows sharing a timestamp are taken in reverse file order.
func oldestFirst(rows []RawTransaction) []RawTransaction {
	type stamped struct {
		row RawTransaction
		at  time.Time
	}
	ordered := make([]stamped, len(rows))
	for i, r := range rows {
		ordered[len(rows)-1-i] = stamped{row: r, at: rowTime(r)}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].at.Before(ordered[j].at) })

	out := make([]RawTransaction, len(ordered))
	for i, o := range ordered {
		out[i] = o.row
	}
	return out
}

// rowTime is the order timestamp of a row; rows without a valid date sort first.
func rowTime(r RawTransaction) time.Time {
	date, err := utils.ParseDate(r.OrderDate)
	if err != nil {
		return time.Time{}
	}
	if t, err := time.Parse("15:04", strings.TrimSpace(r.OrderTime)); err == nil {
		date = date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}
	return date
}

func dividendKey(isin string, date time.Time, currency string) string {
	return isin + "|" + date.Format("2006-01-02") + "|" + currency
}
