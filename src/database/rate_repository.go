package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
)

const dateLayout = "2006-01-02"

// ErrNoObservation is returned when no stored quote matches a lookup.
var ErrNoObservation = errors.New("no exchange rate observation")

// RateRepository persists base-quoted exchange rate observations.
type RateRepository struct {
	db *sql.DB
}

func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

// Upsert stores observations in one transaction, replacing existing quotes.
func (r *RateRepository) Upsert(ctx context.Context, source string, obs []models.RateObservation) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exchange_rates (currency, date, value, source) VALUES (?, ?, ?, ?)
		ON CONFLICT(currency, date) DO UPDATE SET value = excluded.value, source = excluded.source`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Currency, o.Date.Format(dateLayout), o.Value.String(), source); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", o.Currency, o.Date.Format(dateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(obs), nil
}

// Latest returns the newest observation for currency between from and to, inclusive.
func (r *RateRepository) Latest(ctx context.Context, currency string, from, to time.Time) (models.RateObservation, error) {
	var day, value string
	err := r.db.QueryRowContext(ctx, `
		SELECT date, value FROM exchange_rates
		WHERE currency = ? AND date >= ? AND date <= ?
		ORDER BY date DESC LIMIT 1`,
		currency, from.Format(dateLayout), to.Format(dateLayout)).Scan(&day, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RateObservation{}, fmt.Errorf("%w: %s on %s", ErrNoObservation, currency, to.Format(dateLayout))
	}
	if err != nil {
		return models.RateObservation{}, err
	}

	date, err := time.Parse(dateLayout, day)
	if err != nil {
		return models.RateObservation{}, fmt.Errorf("stored date %q: %w", day, err)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return models.RateObservation{}, fmt.Errorf("stored value %q: %w", value, err)
	}
	return models.RateObservation{Currency: currency, Date: date, Value: v}, nil
}

// Count returns the number of stored observations.
func (r *RateRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchange_rates").Scan(&n)
	return n, err
}
