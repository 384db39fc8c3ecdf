package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(14, 2) and rate columns NUMERIC(6, 4); values
// that do not fit exactly are refused instead of being rounded by the store.
const (
	moneyPlaces = 2
	ratePlaces  = 4
)

var maxMoney = decimal.New(1, 12)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// decimals are compared as floats so gt/gte/lte tags work on money fields
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := decimalField(fl)
		return ok && fitsPlaces(d, moneyPlaces) && d.Abs().LessThan(maxMoney)
	})
	validate.RegisterValidation("rate", func(fl validator.FieldLevel) bool {
		d, ok := decimalField(fl)
		return ok && fitsPlaces(d, ratePlaces)
	})
}

// decimalField reads the decimal behind fl from its parent struct. The custom
// type func above hands tag validators a float64, which has lost the scale.
func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	if parent.Kind() != reflect.Struct {
		return decimal.Decimal{}, false
	}

	f := parent.FieldByName(fl.StructFieldName())
	if !f.IsValid() || !f.CanInterface() {
		return decimal.Decimal{}, false
	}
	d, ok := f.Interface().(decimal.Decimal)
	return d, ok
}

func fitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

func (u *User) Validate() error {
	return validate.Struct(u)
}

func (c *TrainingBonusClaim) Validate() error {
	return validate.Struct(c)
}

func (c *ReferralClaim) Validate() error {
	return validate.Struct(c)
}

// ValidateStruct validates any tagged struct, such as a request body.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// ValidateVar checks a single value against a validator tag.
func ValidateVar(v interface{}, tag string) error {
	return validate.Var(v, tag)
}
