package utils

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyFraction returns the number of minor-unit digits of a currency,
// 2 for unknown codes.
func CurrencyFraction(code string) int32 {
	if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// RoundToCurrency rounds half away from zero to the currency's minor unit.
func RoundToCurrency(d decimal.Decimal, code string) decimal.Decimal {
	return d.Round(CurrencyFraction(code))
}

// FormatAmount renders d rounded to the currency's minor unit, with trailing zeros.
func FormatAmount(d decimal.Decimal, code string) string {
	return d.StringFixed(CurrencyFraction(code))
}

// ParseLocaleDecimal parses amounts written with either "," or "." as the
// decimal separator. When both appear, the last one is the decimal separator.
func ParseLocaleDecimal(s string) (decimal.Decimal, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	v = strings.ReplaceAll(v, "\u00a0", "")
	if v == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	comma, dot := strings.LastIndex(v, ","), strings.LastIndex(v, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case comma >= 0:
		if strings.Count(v, ",") > 1 {
			v = strings.ReplaceAll(v, ",", "")
		} else {
			v = strings.Replace(v, ",", ".", 1)
		}
	case dot >= 0 && strings.Count(v, ".") > 1:
		v = strings.ReplaceAll(v, ".", "")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
