package processors

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotInventory_ConsumeFIFO(t *testing.T) {
	inv := NewLotInventory("degiro")
	// added out of order on purpose
	require.NoError(t, inv.AddLot(lot("US0378331005", "2024-02-01", "10", "120")))
	require.NoError(t, inv.AddLot(lot("US0378331005", "2024-01-01", "10", "100")))

	parts, err := inv.Consume("US0378331005", dec("15"), day("2024-03-01"))
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, day("2024-01-01"), parts[0].Lot.Date)
	assert.True(t, dec("10").Equal(parts[0].Quantity))
	assert.Equal(t, day("2024-02-01"), parts[1].Lot.Date)
	assert.True(t, dec("5").Equal(parts[1].Quantity))

	remaining := inv.RemainingLots("US0378331005")
	require.Len(t, remaining, 1)
	assert.True(t, dec("5").Equal(remaining[0].QuantityRemaining))
	assert.True(t, dec("10").Equal(remaining[0].OriginalQuantity))
	assert.True(t, dec("120").Equal(remaining[0].UnitCost))
	assert.Equal(t, "degiro", remaining[0].SourceParser)
}

func TestLotInventory_SmallSaleTouchesOnlyOldestLot(t *testing.T) {
	inv := NewLotInventory("degiro")
	require.NoError(t, inv.AddLot(lot("US0378331005", "2024-01-01", "10", "100")))
	require.NoError(t, inv.AddLot(lot("US0378331005", "2024-02-01", "8", "120")))

	parts, err := inv.Consume("US0378331005", dec("4"), day("2024-03-01"))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, day("2024-01-01"), parts[0].Lot.Date)
	assert.True(t, dec("4").Equal(parts[0].Quantity))

	remaining := inv.RemainingLots("US0378331005")
	require.Len(t, remaining, 2)
	assert.True(t, dec("6").Equal(remaining[0].QuantityRemaining))
	assert.Equal(t, day("2024-02-01"), remaining[1].Date)
	assert.True(t, remaining[1].OriginalQuantity.Equal(remaining[1].QuantityRemaining))
	assert.True(t, dec("8").Equal(remaining[1].QuantityRemaining))
}

func TestLotInventory_SameDateKeepsInsertionOrder(t *testing.T) {
	inv := NewLotInventory("ibkr")
	require.NoError(t, inv.AddLot(lot("X", "2024-01-01", "1", "10")))
	require.NoError(t, inv.AddLot(lot("X", "2024-01-01", "1", "20")))
	require.NoError(t, inv.AddLot(lot("X", "2023-12-31", "1", "5")))

	lots := inv.RemainingLots("X")
	require.Len(t, lots, 3)
	assert.True(t, dec("5").Equal(lots[0].UnitCost))
	assert.True(t, dec("10").Equal(lots[1].UnitCost))
	assert.True(t, dec("20").Equal(lots[2].UnitCost))
}

func TestLotInventory_ConsumeErrors(t *testing.T) {
	tests := []struct {
		name    string
		qty     string
		wantErr error
	}{
		{name: "more than available", qty: "12", wantErr: ErrInsufficientLots},
		{name: "zero quantity", qty: "0", wantErr: ErrInvalidActivity},
		{name: "negative quantity", qty: "-1", wantErr: ErrInvalidActivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewLotInventory("test")
			require.NoError(t, inv.AddLot(lot("X", "2024-01-01", "5", "10")))
			require.NoError(t, inv.AddLot(lot("X", "2024-01-02", "5", "11")))

			parts, err := inv.Consume("X", dec(tt.qty), day("2024-02-01"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, parts)

			// nothing was consumed
			assert.True(t, dec("10").Equal(inv.Available("X")))
			assert.Len(t, inv.RemainingLots("X"), 2)
		})
	}
}

func TestLotInventory_InsufficientDetails(t *testing.T) {
	inv := NewLotInventory("test")
	_, err := inv.Consume("UNKNOWN", dec("1"), day("2024-02-01"))

	var lotsErr *InsufficientLotsError
	require.True(t, errors.As(err, &lotsErr))
	assert.Equal(t, "UNKNOWN", lotsErr.SecurityID)
	assert.True(t, lotsErr.Available.IsZero())
	assert.True(t, dec("1").Equal(lotsErr.Requested))
}

func TestLotInventory_QuantityConservation(t *testing.T) {
	inv := NewLotInventory("test")
	for i, q := range []string{"3", "4.5", "2.25", "10"} {
		require.NoError(t, inv.AddLot(lot("X", day("2024-01-01").AddDate(0, 0, i).Format("2006-01-02"), q, "1")))
	}
	bought := dec("19.75")

	sold := decimal.Zero
	for _, q := range []string{"1", "5", "0.75", "7"} {
		parts, err := inv.Consume("X", dec(q), day("2024-06-01"))
		require.NoError(t, err)
		consumed := decimal.Zero
		for _, p := range parts {
			consumed = consumed.Add(p.Quantity)
		}
		assert.True(t, dec(q).Equal(consumed))
		sold = sold.Add(consumed)
	}

	assert.True(t, bought.Equal(sold.Add(inv.Available("X"))))
	for _, l := range inv.RemainingLots("X") {
		assert.True(t, l.QuantityRemaining.IsPositive())
		assert.True(t, l.QuantityRemaining.LessThanOrEqual(l.OriginalQuantity))
	}
}

func TestLotInventory_ExhaustedSecurityDisappears(t *testing.T) {
	inv := NewLotInventory("test")
	require.NoError(t, inv.AddLot(lot("A", "2024-01-01", "2", "1")))
	require.NoError(t, inv.AddLot(lot("B", "2024-01-01", "2", "1")))

	_, err := inv.Consume("A", dec("2"), day("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, inv.Securities())
	assert.Empty(t, inv.RemainingLots("A"))
}

func TestLotInventory_AddLotRejectsBadQuantity(t *testing.T) {
	inv := NewLotInventory("test")
	err := inv.AddLot(lot("A", "2024-01-01", "0", "1"))
	assert.ErrorIs(t, err, ErrInvalidActivity)
	assert.Empty(t, inv.Securities())
}
