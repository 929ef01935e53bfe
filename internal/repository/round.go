package repository

import (
	"github.com/shopspring/decimal"
)

// featureScale is the number of decimal places persisted for every feature.
const featureScale = 6

// round6 rounds half away from zero at six decimals. Nil stays nil.
func round6(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r, _ := decimal.NewFromFloat(*v).Round(featureScale).Float64()
	return &r
}

// pgNumeric binds a feature as an exact NUMERIC literal (NULL when nil).
func pgNumeric(v *float64) any {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*v).Round(featureScale), Valid: true}
}

// chFloat binds a feature for a Nullable(Float64) column.
func chFloat(v *float64) any {
	return round6(v)
}
