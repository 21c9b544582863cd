package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RateObservation is one published quote: Value units of Currency per one unit
// of the base currency (ECB style indirect quote).
type RateObservation struct {
	Currency string          `json:"currency"`
	Date     time.Time       `json:"date"`
	Value    decimal.Decimal `json:"value"`
}

// ExchangeRateFile is the historical rates file layout (ECB SDMX export).
type ExchangeRateFile struct {
	Root struct {
		Obs []ExchangeRateObs `json:"Obs"`
	} `json:"root"`
}

// ExchangeRateObs is a raw observation of ExchangeRateFile.
type ExchangeRateObs struct {
	TimePeriod string `json:"_TIME_PERIOD"`
	ObsValue   string `json:"_OBS_VALUE"`
	Ccy        string `json:"_CCY"`
}

// ECBResponse is the top-level structure for the ECB Data Portal API JSON response.
type ECBResponse struct {
	DataSets []struct {
		Series map[string]struct {
			// values stay json.Number to keep the published digits; null
			// observations decode to an empty number
			Observations map[string][]json.Number `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
	Structure struct {
		Dimensions struct {
			Series []struct {
				ID     string `json:"id"`
				Values []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"values"`
			} `json:"series"`
			Observation []struct {
				ID     string `json:"id"`
				Values []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"values"`
			} `json:"observation"`
		} `json:"dimensions"`
	} `json:"structure"`
}
