package processors

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
)

// UnknownCountry groups dividends whose country cannot be resolved.
const UnknownCountry = "XX"

// CountryResolver maps securities to countries.
type CountryResolver interface {
	CountryOf(securityID string) string
	CountryName(code string) string
}

type isinPrefixResolver struct{}

func (isinPrefixResolver) CountryOf(securityID string) string {
	id := strings.ToUpper(strings.TrimSpace(securityID))
	if len(id) == 12 && id[0] >= 'A' && id[0] <= 'Z' && id[1] >= 'A' && id[1] <= 'Z' {
		return id[:2]
	}
	return UnknownCountry
}

func (isinPrefixResolver) CountryName(string) string { return "" }

// DividendProcessor converts dividends and reconciles withheld tax per country.
type DividendProcessor struct {
	converter *Converter
	validator *ActivityValidator
	rates     models.DeclaredRates
	countries CountryResolver
}

// NewDividendProcessor creates a processor. A nil resolver falls back to the
// ISIN country prefix.
func NewDividendProcessor(converter *Converter, validator *ActivityValidator, rates models.DeclaredRates, countries CountryResolver) *DividendProcessor {
	if validator == nil {
		validator = NewActivityValidator()
	}
	if countries == nil {
		countries = isinPrefixResolver{}
	}
	return &DividendProcessor{converter: converter, validator: validator, rates: rates, countries: countries}
}

// CalculateDividends enriches every dividend of a source with its local and
// reporting currency values. Records are not aggregated.
func (p *DividendProcessor) CalculateDividends(source string, records []models.ActivityRecord) ([]models.DividendRecord, error) {
	var out []models.DividendRecord
	for _, r := range chronological(records) {
		if r.Type != models.ActivityDividend {
			continue
		}
		if err := p.validator.Validate(r); err != nil {
			return nil, err
		}
		gross, err := p.converter.Convert(r.GrossAmount(), r.Currency, r.Date)
		if err != nil {
			return nil, err
		}
		withheld, err := p.converter.Convert(r.WithholdingTax, r.Currency, r.Date)
		if err != nil {
			return nil, err
		}

		country := strings.ToUpper(r.Country)
		if country == "" {
			country = p.countries.CountryOf(r.SecurityID)
		}
		out = append(out, models.DividendRecord{
			SecurityID:                   r.SecurityID,
			Name:                         r.Name,
			Source:                       source,
			Country:                      country,
			Date:                         r.Date,
			Currency:                     strings.ToUpper(r.Currency),
			GrossAmountNative:            r.GrossAmount(),
			GrossAmount:                  gross.Local,
			GrossAmountInCurrency:        gross.InCurrency,
			WithholdingTaxNative:         r.WithholdingTax,
			WithholdingTaxPaid:           withheld.Local,
			WithholdingTaxPaidInCurrency: withheld.InCurrency,
		})
	}
	logger.L.Debug("Dividends calculated", "source", source, "count", len(out))
	return out, nil
}

// CalculateDividendsTax sums dividends per country and computes the tax still
// owed, max(0, rate*gross - paid), in both currencies. The result is sorted by
// country and includes countries that owe nothing.
func (p *DividendProcessor) CalculateDividendsTax(dividends []models.DividendRecord) []models.DividendTaxTotal {
	byCountry := make(map[string]*models.DividendTaxTotal)
	for _, d := range dividends {
		t, ok := byCountry[d.Country]
		if !ok {
			t = &models.DividendTaxTotal{
				Country:      d.Country,
				CountryName:  p.countries.CountryName(d.Country),
				DeclaredRate: p.rates.RateFor(d.Country),
			}
			byCountry[d.Country] = t
		}
		t.GrossTotal = t.GrossTotal.Add(d.GrossAmount)
		t.GrossTotalInCurrency = t.GrossTotalInCurrency.Add(d.GrossAmountInCurrency)
		t.TaxPaid = t.TaxPaid.Add(d.WithholdingTaxPaid)
		t.TaxPaidInCurrency = t.TaxPaidInCurrency.Add(d.WithholdingTaxPaidInCurrency)
	}

	out := make([]models.DividendTaxTotal, 0, len(byCountry))
	for _, t := range byCountry {
		t.TaxOwed = taxOwed(t.DeclaredRate, t.GrossTotal, t.TaxPaid)
		t.TaxOwedInCurrency = taxOwed(t.DeclaredRate, t.GrossTotalInCurrency, t.TaxPaidInCurrency)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

func taxOwed(rate, gross, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, rate.Mul(gross).Sub(paid))
}
