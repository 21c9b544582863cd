package ibkr

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
)

const (
	Name = "ibkr"

	TypeOption          models.ActivityType = "OPTION"
	TypeFuture          models.ActivityType = "FUTURE"
	TypeCorporateAction models.ActivityType = "CORPORATE_ACTION"
)

// FlexQueryResponse is the root element of the IBKR Flex Query report.
type FlexQueryResponse struct {
	XMLName        xml.Name        `xml:"FlexQueryResponse"`
	FlexStatements []FlexStatement `xml:"FlexStatements>FlexStatement"`
}

// FlexStatement contains all the data for a given account and period.
type FlexStatement struct {
	AccountId        string            `xml:"accountId,attr"`
	Trades           []Trade           `xml:"Trades>Trade"`
	CashTransactions []CashTransaction `xml:"CashTransactions>CashTransaction"`
	CorporateActions []CorporateAction `xml:"CorporateActions>CorporateAction"`
}

// Trade is a stock, fund or derivative execution.
type Trade struct {
	AssetCategory        string `xml:"assetCategory,attr"`
	Symbol               string `xml:"symbol,attr"`
	Description          string `xml:"description,attr"`
	ISIN                 string `xml:"isin,attr"`
	IssuerCountryCode    string `xml:"issuerCountryCode,attr"`
	DateTime             string `xml:"dateTime,attr"`
	TradeDate            string `xml:"tradeDate,attr"`
	Quantity             string `xml:"quantity,attr"`
	TradePrice           string `xml:"tradePrice,attr"`
	Currency             string `xml:"currency,attr"`
	Exchange             string `xml:"exchange,attr"`
	IBCommission         string `xml:"ibCommission,attr"`
	IBCommissionCurrency string `xml:"ibCommissionCurrency,attr"`
	BuySell              string `xml:"buySell,attr"`
	IBOrderID            string `xml:"ibOrderID,attr"`
	LevelOfDetail        string `xml:"levelOfDetail,attr"`
}

// CashTransaction represents dividends, withholding tax and other cash movements.
type CashTransaction struct {
	Type              string `xml:"type,attr"`
	Description       string `xml:"description,attr"`
	DateTime          string `xml:"dateTime,attr"`
	Amount            string `xml:"amount,attr"`
	Currency          string `xml:"currency,attr"`
	LevelOfDetail     string `xml:"levelOfDetail,attr"`
	ISIN              string `xml:"isin,attr"`
	Symbol            string `xml:"symbol,attr"`
	IssuerCountryCode string `xml:"issuerCountryCode,attr"`
}

// CorporateAction is a split, merger, spin-off or similar event.
type CorporateAction struct {
	Type        string `xml:"type,attr"`
	Description string `xml:"description,attr"`
	DateTime    string `xml:"dateTime,attr"`
	ISIN        string `xml:"isin,attr"`
	Symbol      string `xml:"symbol,attr"`
	Currency    string `xml:"currency,attr"`
	Quantity    string `xml:"quantity,attr"`
}

// IBKRParser reads IBKR Flex Query XML files.
type IBKRParser struct{}

func NewParser() *IBKRParser {
	return &IBKRParser{}
}

// Parse converts trades, dividends and withholding tax into activity records.
func (p *IBKRParser) Parse(file io.Reader) ([]models.ActivityRecord, error) {
	var response FlexQueryResponse
	if err := xml.NewDecoder(file).Decode(&response); err != nil {
		return nil, fmt.Errorf("ibkr parser: failed to decode XML: %w", err)
	}

	var records []models.ActivityRecord
	for _, stmt := range response.FlexStatements {
		for _, trade := range stmt.Trades {
			// internal currency conversions and order summaries
			if trade.Exchange == "IDEALFX" || trade.AssetCategory == "CASH" {
				continue
			}
			if trade.LevelOfDetail != "" && trade.LevelOfDetail != "EXECUTION" {
				continue
			}
			rec, err := processTrade(trade)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		divs, err := processCash(stmt.CashTransactions)
		if err != nil {
			return nil, err
		}
		records = append(records, divs...)

		for _, ca := range stmt.CorporateActions {
			date, err := parseIBKRDateTime(ca.DateTime)
			if err != nil {
				return nil, err
			}
			records = append(records, models.ActivityRecord{
				Type:       TypeCorporateAction,
				SecurityID: securityID(ca.ISIN, ca.Symbol),
				Name:       ca.Description,
				Date:       date,
				Currency:   strings.ToUpper(ca.Currency),
				Source:     Name,
				RawType:    ca.Type,
			})
		}
	}
	return records, nil
}

// UnsupportedActivityTypes reports derivatives and corporate actions.
func (p *IBKRParser) UnsupportedActivityTypes(records []models.ActivityRecord) []string {
	return models.UnsupportedTypes(records)
}

func processTrade(trade Trade) (models.ActivityRecord, error) {
	dt := trade.DateTime
	if dt == "" {
		dt = trade.TradeDate
	}
	date, err := parseIBKRDateTime(dt)
	if err != nil {
		return models.ActivityRecord{}, err
	}
	qty, err := parseDecimal(trade.Quantity)
	if err != nil {
		return models.ActivityRecord{}, fmt.Errorf("ibkr trade %s quantity: %w", trade.IBOrderID, err)
	}
	price, err := parseDecimal(trade.TradePrice)
	if err != nil {
		return models.ActivityRecord{}, fmt.Errorf("ibkr trade %s price: %w", trade.IBOrderID, err)
	}
	commission, err := parseDecimal(trade.IBCommission)
	if err != nil {
		return models.ActivityRecord{}, fmt.Errorf("ibkr trade %s commission: %w", trade.IBOrderID, err)
	}

	rec := models.ActivityRecord{
		SecurityID: securityID(trade.ISIN, trade.Symbol),
		Name:       trade.Description,
		Date:       date,
		Quantity:   qty.Abs(),
		UnitPrice:  price,
		Currency:   strings.ToUpper(trade.Currency),
		Country:    trade.IssuerCountryCode,
		Source:     Name,
		RawType:    trade.AssetCategory + " " + trade.BuySell,
	}
	if trade.IBCommissionCurrency == "" || strings.EqualFold(trade.IBCommissionCurrency, trade.Currency) {
		rec.Fee = commission.Abs()
	} else {
		logger.L.Warn("IBKR parser: commission in another currency ignored",
			"ibOrderID", trade.IBOrderID, "commissionCurrency", trade.IBCommissionCurrency, "tradeCurrency", trade.Currency)
	}

	switch trade.AssetCategory {
	case "OPT", "FOP":
		rec.Type = TypeOption
		return rec, nil
	case "FUT":
		rec.Type = TypeFuture
		return rec, nil
	}

	switch {
	case strings.HasPrefix(strings.ToUpper(trade.BuySell), "BUY"):
		rec.Type = models.ActivityBuy
	case strings.HasPrefix(strings.ToUpper(trade.BuySell), "SELL"):
		rec.Type = models.ActivitySell
	case qty.IsNegative():
		rec.Type = models.ActivitySell
	default:
		rec.Type = models.ActivityBuy
	}
	return rec, nil
}

// processCash builds one dividend per security, day and currency, with the
// matching withholding tax rows folded in.
func processCash(cash []CashTransaction) ([]models.ActivityRecord, error) {
	var out []models.ActivityRecord
	index := make(map[string]int)
	var taxes []CashTransaction

	for _, c := range cash {
		if c.LevelOfDetail != "" && c.LevelOfDetail != "DETAIL" {
			continue
		}
		switch c.Type {
		case "Dividends", "Payment In Lieu Of Dividends":
			date, err := parseIBKRDateTime(c.DateTime)
			if err != nil {
				return nil, err
			}
			amount, err := parseDecimal(c.Amount)
			if err != nil {
				return nil, fmt.Errorf("ibkr dividend %q: %w", c.Description, err)
			}
			key := cashKey(c, date)
			if i, ok := index[key]; ok {
				out[i].Amount = out[i].Amount.Add(amount)
				continue
			}
			index[key] = len(out)
			out = append(out, models.ActivityRecord{
				Type:       models.ActivityDividend,
				SecurityID: securityID(c.ISIN, c.Symbol),
				Name:       c.Description,
				Date:       date,
				Currency:   strings.ToUpper(c.Currency),
				Amount:     amount,
				Country:    c.IssuerCountryCode,
				Source:     Name,
				RawType:    c.Type,
			})
		case "Withholding Tax":
			taxes = append(taxes, c)
		}
	}

	for _, c := range taxes {
		date, err := parseIBKRDateTime(c.DateTime)
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal(c.Amount)
		if err != nil {
			return nil, fmt.Errorf("ibkr withholding tax %q: %w", c.Description, err)
		}
		i, ok := index[cashKey(c, date)]
		if !ok {
			logger.L.Warn("IBKR parser: withholding tax without matching dividend", "description", c.Description, "date", c.DateTime)
			continue
		}
		out[i].WithholdingTax = out[i].WithholdingTax.Sub(amount)
	}

	kept := out[:0]
	for _, r := range out {
		if !r.Amount.IsPositive() {
			continue
		}
		if r.WithholdingTax.IsNegative() {
			r.WithholdingTax = decimal.Zero
		}
		kept = append(kept, r)
	}
	return kept, nil
}

func cashKey(c CashTransaction, date time.Time) string {
	return securityID(c.ISIN, c.Symbol) + "|" + date.Format("2006-01-02") + "|" + strings.ToUpper(c.Currency)
}

func securityID(isin, symbol string) string {
	if s := strings.TrimSpace(isin); s != "" {
		return s
	}
	return strings.TrimSpace(symbol)
}

// parseIBKRDateTime converts IBKR's "YYYYMMDD;HHMMSS" or "YYYYMMDD" to the calendar day.
func parseIBKRDateTime(datetime string) (time.Time, error) {
	layout := "20060102;150405"
	if !strings.Contains(datetime, ";") {
		layout = "20060102"
	}
	t, err := time.Parse(layout, datetime)
	if err != nil {
		if t2, err2 := time.Parse("2006-01-02", datetime); err2 == nil {
			return t2, nil
		}
		return time.Time{}, fmt.Errorf("could not parse ibkr datetime '%s': %w", datetime, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
