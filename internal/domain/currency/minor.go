// Package currency converts decimal amounts into the minor-unit integers the
// payment gateway expects.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists the ISO-4217 currencies that have no minor unit. The
// gateway expects amounts in these currencies as-is; everything else is
// expressed in hundredths (e.g. cents for EUR).
var zeroDecimal = map[string]struct{}{
	"JPY": {},
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"ISK": {},
	"KMF": {},
	"KRW": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"UYI": {},
	"XAF": {},
}

// MinorUnits converts amount into the gateway's minor-unit representation of
// the given currency: 10.00 EUR becomes 1000, 10 JPY stays 10. Currency codes
// are matched case-insensitively; unknown codes fall back to the two-decimal
// rule. The result is rounded half-up to the nearest integer.
func MinorUnits(amount decimal.Decimal, code string) int64 {
	if _, ok := zeroDecimal[strings.ToUpper(code)]; ok {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits, used to render gateway-reported
// amounts (refunds) back into a human-readable decimal.
func FromMinorUnits(minor int64, code string) decimal.Decimal {
	d := decimal.NewFromInt(minor)
	if _, ok := zeroDecimal[strings.ToUpper(code)]; ok {
		return d
	}
	return d.Div(decimal.NewFromInt(100))
}
