package processors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
)

// ActivityValidator checks records before they reach the engine.
type ActivityValidator struct {
	validate *validator.Validate
}

func NewActivityValidator() *ActivityValidator {
	v := validator.New()
	// decimals are validated through their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("iso4217", func(fl validator.FieldLevel) bool {
		return money.GetCurrency(strings.ToUpper(fl.Field().String())) != nil
	})
	return &ActivityValidator{validate: v}
}

// Validate returns an *InvalidActivityError describing the first problem found.
func (v *ActivityValidator) Validate(r models.ActivityRecord) error {
	if err := v.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid(r, fmt.Sprintf("field %s failed %q", verrs[0].Field(), verrs[0].Tag()))
		}
		return invalid(r, err.Error())
	}

	switch r.Type {
	case models.ActivityBuy, models.ActivitySell:
		if !r.Quantity.IsPositive() {
			return invalid(r, "quantity must be positive")
		}
		if !r.UnitPrice.IsPositive() {
			return invalid(r, "unit price must be positive")
		}
	case models.ActivityDividend:
		if !r.GrossAmount().IsPositive() {
			return invalid(r, "gross amount must be positive")
		}
	}
	return nil
}

func invalid(r models.ActivityRecord, reason string) error {
	return &InvalidActivityError{SecurityID: r.SecurityID, Type: string(r.Type), Date: r.Date, Reason: reason}
}
