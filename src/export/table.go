// Package export renders report figures as tables, CSV files, XLSX workbooks,
// an XML declaration and a markdown summary.
package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/parsers/csv"
	"github.com/username/taxfolio/declaration/src/security/validation"
	"github.com/username/taxfolio/declaration/src/utils"
)

const (
	TableSales              = "sales"
	TableRemainingPurchases = "remaining-purchases"
	TableDividends          = "dividends"
	TableDividendTaxes      = "dividend-taxes"
	TableStatements         = "statements"

	// Workbook names the XLSX export holding every table.
	Workbook = "xlsx"
)

var (
	ErrUnknownTable   = errors.New("unknown table")
	ErrUnknownFigures = errors.New("unknown figure set")
	// ErrTableSkipped is returned for sale tables of a dividends-only report.
	ErrTableSkipped = errors.New("table not computed for this report")
)

// Tables lists the exportable tables in file order.
func Tables() []string {
	return []string{TableStatements, TableSales, TableRemainingPurchases, TableDividends, TableDividendTaxes}
}

// Table is a header plus string rows, ready to be written in any format.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// BuildTable renders one table of the figure set key. An empty key selects
// the first figure set of the report. For statements, key names a source, and
// the combined key or an empty key concatenates every source.
func BuildTable(report *models.Report, table, key string) (Table, error) {
	if table == TableStatements {
		return statementsTable(report, key)
	}

	if key == "" && len(report.FigureKeys) > 0 {
		key = report.FigureKeys[0]
	}
	figures, ok := report.Figures[key]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownFigures, key)
	}
	local, rep := report.LocalCurrency, report.ReportingCurrency

	switch table {
	case TableSales:
		if report.SalesSkipped {
			return Table{}, fmt.Errorf("%w: %s", ErrTableSkipped, table)
		}
		return salesTable(figures.Sales, local, rep), nil
	case TableRemainingPurchases:
		if report.SalesSkipped {
			return Table{}, fmt.Errorf("%w: %s", ErrTableSkipped, table)
		}
		return remainingTable(figures.RemainingPurchases, local, rep), nil
	case TableDividends:
		return dividendsTable(figures.Dividends, local, rep), nil
	case TableDividendTaxes:
		return dividendTaxesTable(figures.DividendTaxes, local, rep), nil
	}
	return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
}

func withCurrency(name, code string) string {
	return name + "_" + strings.ToLower(code)
}

func salesTable(sales []models.MatchedSale, local, rep string) Table {
	t := Table{Name: TableSales, Header: []string{
		"security_id", "source", "sale_date", "quantity", "currency",
		withCurrency("sale_proceeds", local), withCurrency("cost_basis", local),
		withCurrency("profit", local), withCurrency("loss", local),
		withCurrency("sale_proceeds", rep), withCurrency("cost_basis", rep),
		withCurrency("profit", rep), withCurrency("loss", rep),
	}}
	for _, s := range sales {
		t.Rows = append(t.Rows, []string{
			validation.CleanText(s.SecurityID), s.Source, s.SaleDate.Format(utils.DefaultDateFormat),
			s.Quantity.String(), s.Currency,
			utils.FormatAmount(s.SaleProceeds, local), utils.FormatAmount(s.CostBasis, local),
			utils.FormatAmount(s.Profit, local), utils.FormatAmount(s.Loss, local),
			utils.FormatAmount(s.SaleProceedsInCurrency, rep), utils.FormatAmount(s.CostBasisInCurrency, rep),
			utils.FormatAmount(s.ProfitInCurrency, rep), utils.FormatAmount(s.LossInCurrency, rep),
		})
	}
	return t
}

func remainingTable(groups map[string][]models.RemainingPurchase, local, rep string) Table {
	t := Table{Name: TableRemainingPurchases, Header: []string{
		"security_id", "source", "date", "quantity", "unit_cost", "currency", "cost_native",
		withCurrency("cost", local), withCurrency("cost", rep),
	}}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, p := range groups[id] {
			t.Rows = append(t.Rows, []string{
				validation.CleanText(p.SecurityID), p.Source, p.Date.Format(utils.DefaultDateFormat),
				p.Quantity.String(), p.UnitCost.String(), p.Currency,
				utils.FormatAmount(p.CostNative, p.Currency),
				utils.FormatAmount(p.Cost, local), utils.FormatAmount(p.CostInCurrency, rep),
			})
		}
	}
	return t
}

func dividendsTable(dividends []models.DividendRecord, local, rep string) Table {
	t := Table{Name: TableDividends, Header: []string{
		"security_id", "name", "source", "country", "date", "currency",
		"gross_native", "withholding_tax_native",
		withCurrency("gross", local), withCurrency("withholding_tax", local),
		withCurrency("gross", rep), withCurrency("withholding_tax", rep),
	}}
	for _, d := range dividends {
		t.Rows = append(t.Rows, []string{
			validation.CleanText(d.SecurityID), validation.CleanText(d.Name), d.Source, d.Country,
			d.Date.Format(utils.DefaultDateFormat), d.Currency,
			utils.FormatAmount(d.GrossAmountNative, d.Currency), utils.FormatAmount(d.WithholdingTaxNative, d.Currency),
			utils.FormatAmount(d.GrossAmount, local), utils.FormatAmount(d.WithholdingTaxPaid, local),
			utils.FormatAmount(d.GrossAmountInCurrency, rep), utils.FormatAmount(d.WithholdingTaxPaidInCurrency, rep),
		})
	}
	return t
}

func dividendTaxesTable(taxes []models.DividendTaxTotal, local, rep string) Table {
	t := Table{Name: TableDividendTaxes, Header: []string{
		"country", "country_name", "declared_rate",
		withCurrency("gross", local), withCurrency("tax_paid", local), withCurrency("tax_owed", local),
		withCurrency("gross", rep), withCurrency("tax_paid", rep), withCurrency("tax_owed", rep),
	}}
	for _, d := range taxes {
		t.Rows = append(t.Rows, []string{
			d.Country, d.CountryName, d.DeclaredRate.String(),
			utils.FormatAmount(d.GrossTotal, local), utils.FormatAmount(d.TaxPaid, local), utils.FormatAmount(d.TaxOwed, local),
			utils.FormatAmount(d.GrossTotalInCurrency, rep), utils.FormatAmount(d.TaxPaidInCurrency, rep), utils.FormatAmount(d.TaxOwedInCurrency, rep),
		})
	}
	return t
}

// statementsTable uses the generic CSV parser's columns, so the export can be
// fed back as a "csv" source.
func statementsTable(report *models.Report, key string) (Table, error) {
	sources := report.Sources
	if key != "" && key != models.CombinedKey {
		if _, ok := report.Statements[key]; !ok {
			return Table{}, fmt.Errorf("%w: %s", ErrUnknownFigures, key)
		}
		sources = []string{key}
	}

	t := Table{Name: TableStatements, Header: append(append([]string(nil), csv.Columns...), "source")}
	for _, src := range sources {
		for _, r := range report.Statements[src] {
			t.Rows = append(t.Rows, []string{
				string(r.Type), validation.CleanText(r.SecurityID), r.Date.Format(utils.DefaultDateFormat),
				optional(r.Quantity), optional(r.UnitPrice), r.Currency, optional(r.Fee),
				optional(r.Amount), optional(r.WithholdingTax), r.Country,
				validation.CleanText(r.Name), src,
			})
		}
	}
	return t, nil
}

func optional(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
