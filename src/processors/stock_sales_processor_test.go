package processors

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/rates"
	mock_rates "github.com/username/taxfolio/declaration/src/rates/mocks"
)

func TestStockProcessor_SameCurrencyExample(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// local and reporting currency equal the trade currency: no lookups at all
	provider := mock_rates.NewMockProvider(ctrl)

	p := NewStockProcessor(NewConverter(provider, "USD", "USD"), nil)
	records := []models.ActivityRecord{
		sell("X", "2024-03-01", "15", "150"),
		buy("X", "2024-01-01", "10", "100"),
		buy("X", "2024-02-01", "10", "120"),
	}

	sales, inv, err := p.ProcessSales("test", records)
	require.NoError(t, err)
	require.Len(t, sales, 1)

	s := sales[0]
	assert.True(t, dec("1600").Equal(s.CostBasis))
	assert.True(t, dec("2250").Equal(s.SaleProceeds))
	assert.True(t, dec("650").Equal(s.Profit))
	assert.True(t, s.Loss.IsZero())
	assert.True(t, dec("650").Equal(s.ProfitInCurrency))
	assert.True(t, dec("15").Equal(s.Quantity))

	remaining, err := p.RemainingPurchases(inv)
	require.NoError(t, err)
	require.Len(t, remaining["X"], 1)
	assert.True(t, dec("5").Equal(remaining["X"][0].Quantity))
	assert.True(t, dec("120").Equal(remaining["X"][0].UnitCost))
	assert.True(t, dec("600").Equal(remaining["X"][0].Cost))
}

func TestStockProcessor_PartialLotUsesAcquisitionRates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock_rates.NewMockProvider(ctrl)
	provider.EXPECT().Rate("USD", day("2024-01-01")).Return(dec("1.8"), nil).AnyTimes()
	provider.EXPECT().Rate("USD", day("2024-02-01")).Return(dec("1.7"), nil).AnyTimes()
	provider.EXPECT().Rate("USD", day("2024-03-01")).Return(dec("1.9"), nil).AnyTimes()

	p := NewStockProcessor(NewConverter(provider, "BGN", "USD"), nil)
	sales, _, err := p.ProcessSales("test", []models.ActivityRecord{
		buy("X", "2024-01-01", "10", "100"),
		buy("X", "2024-02-01", "10", "120"),
		sell("X", "2024-03-01", "15", "150"),
	})
	require.NoError(t, err)
	require.Len(t, sales, 1)

	s := sales[0]
	assert.True(t, dec("4275").Equal(s.SaleProceeds), s.SaleProceeds.String())
	assert.True(t, dec("2250").Equal(s.SaleProceedsInCurrency))
	// 10*100*1.8 + 5*120*1.7
	assert.True(t, dec("2820").Equal(s.CostBasis), s.CostBasis.String())
	assert.True(t, dec("1600").Equal(s.CostBasisInCurrency))
	assert.True(t, dec("1455").Equal(s.Profit))
	assert.True(t, dec("650").Equal(s.ProfitInCurrency))
}

func TestStockProcessor_ProfitLossSplit(t *testing.T) {
	tests := []struct {
		name       string
		salePrice  string
		fee        string
		wantProfit string
		wantLoss   string
	}{
		{name: "gain", salePrice: "12", fee: "0", wantProfit: "20", wantLoss: "0"},
		{name: "loss", salePrice: "8", fee: "0", wantProfit: "0", wantLoss: "20"},
		{name: "fee reduces proceeds", salePrice: "12", fee: "5", wantProfit: "15", wantLoss: "0"},
		{name: "fee turns break-even into loss", salePrice: "10", fee: "1.5", wantProfit: "0", wantLoss: "1.5"},
		{name: "break-even", salePrice: "10", fee: "0", wantProfit: "0", wantLoss: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStockProcessor(NewConverter(rates.Static{}, "USD", "USD"), nil)
			s := sell("X", "2024-02-01", "10", tt.salePrice)
			s.Fee = dec(tt.fee)

			sales, _, err := p.ProcessSales("test", []models.ActivityRecord{buy("X", "2024-01-01", "10", "10"), s})
			require.NoError(t, err)
			require.Len(t, sales, 1)

			got := sales[0]
			assert.True(t, dec(tt.wantProfit).Equal(got.Profit), "profit %s", got.Profit)
			assert.True(t, dec(tt.wantLoss).Equal(got.Loss), "loss %s", got.Loss)
			assert.False(t, got.Profit.IsPositive() && got.Loss.IsPositive())
			assert.True(t, got.Profit.Sub(got.Loss).Equal(got.SaleProceeds.Sub(got.CostBasis)))
		})
	}
}

func TestStockProcessor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []models.ActivityRecord
		wantErr error
	}{
		{
			name:    "sell without purchase",
			records: []models.ActivityRecord{sell("X", "2024-01-01", "1", "10")},
			wantErr: ErrInsufficientLots,
		},
		{
			name: "sell before purchase",
			records: []models.ActivityRecord{
				buy("X", "2024-02-01", "5", "10"),
				sell("X", "2024-01-01", "1", "10"),
			},
			wantErr: ErrInsufficientLots,
		},
		{
			name:    "zero quantity buy",
			records: []models.ActivityRecord{buy("X", "2024-01-01", "0", "10")},
			wantErr: ErrInvalidActivity,
		},
		{
			name: "zero price sell",
			records: []models.ActivityRecord{
				buy("X", "2024-01-01", "1", "10"),
				sell("X", "2024-01-02", "1", "0"),
			},
			wantErr: ErrInvalidActivity,
		},
		{
			name: "unknown currency",
			records: []models.ActivityRecord{func() models.ActivityRecord {
				r := buy("X", "2024-01-01", "1", "10")
				r.Currency = "ZZZ"
				return r
			}()},
			wantErr: ErrInvalidActivity,
		},
		{
			name: "negative fee",
			records: []models.ActivityRecord{func() models.ActivityRecord {
				r := buy("X", "2024-01-01", "1", "10")
				r.Fee = dec("-1")
				return r
			}()},
			wantErr: ErrInvalidActivity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStockProcessor(NewConverter(rates.Static{}, "USD", "USD"), nil)
			sales, inv, err := p.ProcessSales("test", tt.records)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, sales)
			assert.Nil(t, inv)
		})
	}
}

func TestStockProcessor_MissingRateLeavesInventory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock_rates.NewMockProvider(ctrl)
	provider.EXPECT().Rate("USD", day("2024-03-01")).Return(dec("1.9"), nil).AnyTimes()
	provider.EXPECT().Rate("USD", day("2024-01-01")).Return(decimal.Zero, rates.ErrRateNotFound).AnyTimes()

	p := NewStockProcessor(NewConverter(provider, "BGN", "USD"), nil)
	inv := NewLotInventory("test")
	require.NoError(t, inv.AddLot(lot("X", "2024-01-01", "10", "100")))

	_, err := p.MatchSale(inv, sell("X", "2024-03-01", "4", "150"))
	assert.ErrorIs(t, err, ErrMissingRate)
	assert.ErrorIs(t, err, rates.ErrRateNotFound)
	assert.True(t, dec("10").Equal(inv.Available("X")))
}

func TestStockProcessor_OneSalePerSell(t *testing.T) {
	p := NewStockProcessor(NewConverter(rates.Static{}, "USD", "USD"), nil)
	records := []models.ActivityRecord{
		buy("A", "2024-01-01", "1", "10"),
		buy("A", "2024-01-02", "1", "11"),
		buy("A", "2024-01-03", "1", "12"),
		buy("B", "2024-01-01", "4", "50"),
		sell("A", "2024-02-01", "3", "20"),
		sell("B", "2024-02-01", "1", "40"),
		sell("B", "2024-02-02", "1", "60"),
		dividend("A", "2024-02-03", "1", "0"),
	}

	sales, inv, err := p.ProcessSales("test", records)
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, "A", sales[0].SecurityID)
	assert.True(t, dec("33").Equal(sales[0].CostBasis))
	assert.Equal(t, []string{"B"}, inv.Securities())

	total := WinLoss(sales)
	// A: 60-33, B: 40-50 and 60-50
	assert.True(t, dec("27").Equal(total.Local), total.Local.String())
	assert.True(t, dec("27").Equal(total.InCurrency))
}
