package currency

import (
	"fmt"
	"math"
	"strings"
)

// Unknown is shown in place of a missing price.
const Unknown = "unknown"

// zeroDecimal lists currencies quoted without minor units.
var zeroDecimal = map[string]bool{
	"IDR": true,
	"JPY": true,
	"KRW": true,
	"CLP": true,
	"VND": true,
}

// Format renders an amount for display, e.g. "USD 1,234.50" or
// "IDR 1.500.000". A nil amount renders as Unknown.
func Format(amount *float64, code string) string {
	if amount == nil || math.IsNaN(*amount) || math.IsInf(*amount, 0) {
		return Unknown
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	switch {
	case code == "IDR":
		return FormatIDR(*amount)
	case zeroDecimal[code]:
		return formatWith(*amount, code, 0, ",")
	default:
		return formatWith(*amount, code, 2, ",")
	}
}

func FormatIDR(amount float64) string {
	return formatWith(amount, "IDR", 0, ".")
}

func formatWith(amount float64, code string, decimals int, sep string) string {
	scale := math.Pow(10, float64(decimals))
	rounded := math.Round(amount*scale) / scale

	negative := rounded < 0
	if negative {
		rounded = -rounded
	}

	whole := math.Floor(rounded)
	intStr := fmt.Sprintf("%.0f", whole)
	formatted := addThousandsSeparator(intStr, sep)

	if decimals > 0 {
		frac := fmt.Sprintf("%.*f", decimals, rounded-whole)
		formatted += frac[1:]
	}

	result := formatted
	if code != "" {
		result = code + " " + formatted
	}
	if negative {
		result = "-" + result
	}

	return result
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
