package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCents converts decimal string amounts (dollars) to cents (int64).
// Use for APIs that return amounts in major currency units (e.g., "99.00" = $99.00).
// Handles edge cases: empty strings, missing decimals, large values.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// ParseMinorUnits converts string amounts already in minor units to int64.
// Use for APIs that return amounts in minor currency units (e.g., "8900" = 8900 cents).
// The storefront cart API (/cart.js) uses this format for all price fields.
// Examples: "8900" → 8900, "123456" → 123456, "" → 0
func ParseMinorUnits(s string) int64 {
	if s == "" {
		return 0
	}
	// Parse as float to handle potential decimal values, then truncate
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// moneyObject is the nested price shape some storefront API versions return.
type moneyObject struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// NormalizePrice converts a price field of unknown shape to minor units.
//
// Storefront catalog payloads have shipped variant prices as a decimal
// string ("10.00"), a JSON number (10.0), or a nested money object
// ({"amount":"10.00","currency_code":"USD"}) depending on API version.
// All of that guessing lives here, nowhere else.
//
// Priority: money object → string decimal → number. Strings and numbers
// are taken as major units. An unrecognized shape returns an error rather
// than a silent zero so callers can surface the bad entry.
func NormalizePrice(raw json.RawMessage) (int64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, nil
	}

	var obj moneyObject
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Amount != "" {
		return ParseCents(obj.Amount), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if _, ferr := strconv.ParseFloat(s, 64); ferr != nil {
			return 0, fmt.Errorf("unparseable price string %q", s)
		}
		return ParseCents(s), nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(math.Round(f * 100)), nil
	}

	return 0, fmt.Errorf("unrecognized price shape: %s", trimmed)
}

// FormatCents renders minor units as a dollar string for display and logs.
// Example: 1234 → "$12.34".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
