package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/parsers/csv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleReport() *models.Report {
	figures := &models.Figures{
		Sales: []models.MatchedSale{{
			SecurityID: "AAPL", Source: "csv", SaleDate: day(3), Quantity: dec("15"), Currency: "USD",
			SaleProceeds: dec("2250"), SaleProceedsInCurrency: dec("2250"),
			CostBasis: dec("1600"), CostBasisInCurrency: dec("1600"),
			Profit: dec("650"), ProfitInCurrency: dec("650"),
		}},
		RemainingPurchases: map[string][]models.RemainingPurchase{
			"AAPL": {{SecurityID: "AAPL", Source: "csv", Date: day(2), Quantity: dec("5"), UnitCost: dec("120"),
				Currency: "USD", CostNative: dec("600"), Cost: dec("600"), CostInCurrency: dec("600")}},
		},
		Dividends: []models.DividendRecord{{
			SecurityID: "US0378331005", Name: "=HYPERLINK()", Source: "csv", Country: "US", Date: day(4), Currency: "USD",
			GrossAmountNative: dec("100"), GrossAmount: dec("100"), GrossAmountInCurrency: dec("100"),
			WithholdingTaxNative: dec("10"), WithholdingTaxPaid: dec("10"), WithholdingTaxPaidInCurrency: dec("10"),
		}},
		DividendTaxes: []models.DividendTaxTotal{{
			Country: "US", CountryName: "840 - United States", DeclaredRate: dec("0.15"),
			GrossTotal: dec("100"), GrossTotalInCurrency: dec("100"),
			TaxPaid: dec("10"), TaxPaidInCurrency: dec("10"),
			TaxOwed: dec("5"), TaxOwedInCurrency: dec("5"),
		}},
		WinLoss: dec("650"), WinLossInCurrency: dec("650"),
	}
	return &models.Report{
		RunID: "run-1", GeneratedAt: day(5), LocalCurrency: "USD", ReportingCurrency: "USD",
		Combined: true, Sources: []string{"csv"},
		FigureKeys: []string{models.CombinedKey},
		Figures:    map[string]*models.Figures{models.CombinedKey: figures},
		Statements: map[string][]models.ActivityRecord{"csv": {
			{Type: models.ActivityBuy, SecurityID: "AAPL", Date: day(1), Quantity: dec("10"), UnitPrice: dec("100"), Currency: "USD", Source: "csv"},
			{Type: models.ActivityBuy, SecurityID: "AAPL", Date: day(2), Quantity: dec("10"), UnitPrice: dec("120"), Currency: "USD", Source: "csv"},
			{Type: models.ActivitySell, SecurityID: "AAPL", Date: day(3), Quantity: dec("15"), UnitPrice: dec("150"), Currency: "USD", Source: "csv"},
			{Type: models.ActivityDividend, SecurityID: "US0378331005", Date: day(4), Amount: dec("100"), WithholdingTax: dec("10"), Currency: "USD", Country: "US", Source: "csv"},
		}},
	}
}

func TestBuildTable(t *testing.T) {
	report := sampleReport()

	sales, err := BuildTable(report, TableSales, "")
	require.NoError(t, err)
	assert.Contains(t, sales.Header, "profit_usd")
	require.Len(t, sales.Rows, 1)
	assert.Equal(t, []string{"AAPL", "csv", "2024-01-03", "15", "USD",
		"2250.00", "1600.00", "650.00", "0.00", "2250.00", "1600.00", "650.00", "0.00"}, sales.Rows[0])

	remaining, err := BuildTable(report, TableRemainingPurchases, models.CombinedKey)
	require.NoError(t, err)
	require.Len(t, remaining.Rows, 1)
	assert.Equal(t, "5", remaining.Rows[0][3])

	divs, err := BuildTable(report, TableDividends, "")
	require.NoError(t, err)
	assert.Equal(t, "'=HYPERLINK()", divs.Rows[0][1])

	taxes, err := BuildTable(report, TableDividendTaxes, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "840 - United States", "0.15", "100.00", "10.00", "5.00", "100.00", "10.00", "5.00"}, taxes.Rows[0])
}

func TestBuildTable_Errors(t *testing.T) {
	report := sampleReport()

	_, err := BuildTable(report, "nope", "")
	assert.True(t, errors.Is(err, ErrUnknownTable))

	_, err = BuildTable(report, TableSales, "other")
	assert.True(t, errors.Is(err, ErrUnknownFigures))

	_, err = BuildTable(report, TableStatements, "other")
	assert.True(t, errors.Is(err, ErrUnknownFigures))

	report.SalesSkipped = true
	_, err = BuildTable(report, TableSales, "")
	assert.True(t, errors.Is(err, ErrTableSkipped))
	_, err = BuildTable(report, TableDividendTaxes, "")
	assert.NoError(t, err)
}

func TestStatementsRoundTrip(t *testing.T) {
	report := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, report, TableStatements, ""))

	records, err := csv.NewParser().Parse(&buf)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, r := range records {
		want := report.Statements["csv"][i]
		assert.Equal(t, want.Type, r.Type)
		assert.Equal(t, want.Date, r.Date)
		assert.True(t, want.Quantity.Equal(r.Quantity))
		assert.True(t, want.GrossAmount().Equal(r.GrossAmount()))
		assert.True(t, want.WithholdingTax.Equal(r.WithholdingTax))
	}
}

func TestWriteDir(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	written, err := WriteDir(dir, report)
	require.NoError(t, err)
	assert.Len(t, written, 6)
	for _, name := range Tables() {
		_, err := os.Stat(filepath.Join(dir, name+".csv"))
		assert.NoError(t, err, name)
	}
	assert.FileExists(t, filepath.Join(dir, "declaration.xml"))

	report.SalesSkipped = true
	dir = t.TempDir()
	written, err = WriteDir(dir, report)
	require.NoError(t, err)
	assert.Len(t, written, 4)
	_, err = os.Stat(filepath.Join(dir, TableSales+".csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleReport(), ""))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	var names []string
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, Tables(), names)
	assert.Equal(t, "security_id", f.Sheet[TableSales].Rows[0].Cells[0].Value)
}

func TestWriteDeclaration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDeclaration(&buf, sampleReport(), ""))
	assert.True(t, strings.HasPrefix(buf.String(), xml.Header))

	var doc DeclarationDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, models.CombinedKey, doc.Figures)
	assert.Equal(t, "USD", doc.LocalCurrency)

	require.Len(t, doc.DividendTaxes, 1)
	assert.Equal(t, DeclaredDividendTax{
		Code: "US", Name: "840 - United States", DeclaredRate: "0.15",
		Gross: "100.00", TaxPaid: "10.00", TaxOwed: "5.00",
	}, doc.DividendTaxes[0])

	require.NotNil(t, doc.Sales)
	assert.Equal(t, "650.00", doc.Sales.WinLoss)
	require.Len(t, doc.Sales.Sales, 1)
	assert.Equal(t, DeclaredSale{
		SecurityID: "AAPL", Source: "csv", Date: "2024-01-03", Quantity: "15",
		SaleProceeds: "2250.00", CostBasis: "1600.00", Profit: "650.00", Loss: "0.00",
	}, doc.Sales.Sales[0])

	require.Len(t, doc.Holdings, 1)
	assert.Equal(t, "5", doc.Holdings[0].Quantity)
	assert.Equal(t, "600.00", doc.Holdings[0].Cost)
}

func TestWriteDeclaration_DividendsOnly(t *testing.T) {
	report := sampleReport()
	report.SalesSkipped = true

	var buf bytes.Buffer
	require.NoError(t, WriteDeclaration(&buf, report, ""))
	assert.NotContains(t, buf.String(), "<sales")
	assert.NotContains(t, buf.String(), "<remaining_purchases")

	var doc DeclarationDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.DividendTaxes, 1)
	assert.Nil(t, doc.Sales)

	err := WriteDeclaration(&buf, report, "ibkr")
	assert.True(t, errors.Is(err, ErrUnknownFigures))
}

func TestMarkdown(t *testing.T) {
	report := sampleReport()
	report.SalesSkipped = true
	report.UnsupportedActivityTypes = map[string][]string{"csv": {"SPLIT"}}
	md := Markdown(report)

	root := goldmark.DefaultParser().Parse(text.NewReader([]byte(md)))
	var headings []string
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			var b strings.Builder
			for i := 0; i < h.Lines().Len(); i++ {
				line := h.Lines().At(i)
				b.Write(line.Value([]byte(md)))
			}
			headings = append(headings, b.String())
		}
		return ast.WalkContinue, nil
	})
	assert.Equal(t, []string{"Tax Declaration Report", "All Sources", "Dividend Taxes"}, headings)
	assert.Contains(t, md, "csv: SPLIT")
	assert.Contains(t, md, "US (840 - United States)")
	assert.NotContains(t, md, "Win/loss")
}
