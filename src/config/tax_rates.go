package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
	"gopkg.in/yaml.v3"
)

// TaxRatesConfig is the on-disk layout of the declared dividend tax rates:
//
//	default_rate: "0.05"
//	countries:
//	  US: "0.05"
//	  IE: "0"
type TaxRatesConfig struct {
	DefaultRate string            `yaml:"default_rate" validate:"required,numeric"`
	Countries   map[string]string `yaml:"countries" validate:"dive,keys,len=2,alpha,endkeys,required,numeric"`
}

var validate = validator.New()

// LoadTaxRates reads and validates the declared tax rate file.
func LoadTaxRates(path string) (models.DeclaredRates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DeclaredRates{}, fmt.Errorf("reading tax rates file %s: %w", path, err)
	}
	return ParseTaxRates(data)
}

// ParseTaxRates decodes the YAML document. Unknown keys are rejected and every
// rate must lie in [0, 1].
func ParseTaxRates(data []byte) (models.DeclaredRates, error) {
	var cfg TaxRatesConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return models.DeclaredRates{}, fmt.Errorf("decoding tax rates: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return models.DeclaredRates{}, fmt.Errorf("invalid tax rates: %w", err)
	}

	def, err := parseRate(cfg.DefaultRate)
	if err != nil {
		return models.DeclaredRates{}, fmt.Errorf("default_rate: %w", err)
	}
	rates := models.DeclaredRates{Default: def, ByCountry: make(map[string]decimal.Decimal, len(cfg.Countries))}
	for country, v := range cfg.Countries {
		r, err := parseRate(v)
		if err != nil {
			return models.DeclaredRates{}, fmt.Errorf("country %s: %w", country, err)
		}
		rates.ByCountry[strings.ToUpper(country)] = r
	}
	return rates, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("rate %s out of range [0, 1]", s)
	}
	return r, nil
}
