package types

import (
	"strings"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit; amounts are stored as whole numbers
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// CURRENCY_CODES_SYMBOLS is a map of 3 digit ISO currency codes to their symbols
var CURRENCY_CODES_SYMBOLS = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "AU$",
	"cad": "CA$",
	"jpy": "¥",
	"inr": "₹",
	"krw": "₩",
}

// GetCurrencySymbol returns the symbol for a given currency code
// if the code is not found, it returns the code itself
func GetCurrencySymbol(code string) string {
	if symbol, ok := CURRENCY_CODES_SYMBOLS[strings.ToLower(code)]; ok {
		return symbol
	}
	return code
}

// NormalizeCurrency lower-cases a currency code
func NormalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ValidateCurrencyCode checks the code is a 3 letter ISO code
func ValidateCurrencyCode(code string) error {
	if len(strings.TrimSpace(code)) != 3 {
		return ierr.NewError("invalid currency code").
			WithHint("Currency must be a 3 letter ISO code").
			WithReportableDetails(map[string]any{
				"currency": code,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetCurrencyPrecision returns the number of minor-unit digits for a currency
func GetCurrencyPrecision(code string) int32 {
	if _, ok := zeroDecimalCurrencies[NormalizeCurrency(code)]; ok {
		return 0
	}
	return 2
}

// RoundToCurrencyPrecision rounds half away from zero to the currency's minor unit
func RoundToCurrencyPrecision(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(GetCurrencyPrecision(code))
}

// IsCurrencyEqual compares two currency codes ignoring case
func IsCurrencyEqual(a, b string) bool {
	return NormalizeCurrency(a) == NormalizeCurrency(b)
}
