package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/database"
)

type storeSource struct {
	repo *database.RateRepository
}

func (s *storeSource) observation(currency string, date time.Time, lookback int) (decimal.Decimal, time.Time, error) {
	obs, err := s.repo.Latest(context.Background(), currency, date.AddDate(0, 0, -lookback), date)
	if errors.Is(err, database.ErrNoObservation) {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s on %s", ErrRateNotFound, currency, dayKey(date))
	}
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("rate store lookup %s on %s: %w", currency, dayKey(date), err)
	}
	return obs.Value, obs.Date, nil
}

// NewStoreProvider serves rates from observations persisted in sqlite.
func NewStoreProvider(repo *database.RateRepository, base, local string, lookbackDays int) *CrossRates {
	return newCrossRates(&storeSource{repo: repo}, base, local, lookbackDays)
}
