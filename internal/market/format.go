package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// FormatPrice renders a price with thousands separators. Prices under 1 keep
// up to six decimals so small-cap tokens stay readable.
func FormatPrice(price float64, currency string) string {
	prefix, ok := currencySymbols[strings.ToLower(currency)]
	if !ok {
		prefix = strings.ToUpper(currency) + " "
	}

	neg := price < 0
	abs := math.Abs(price)

	var body string
	if abs > 0 && abs < 1 {
		body = strings.TrimRight(fmt.Sprintf("%.6f", abs), "0")
		if dot := strings.IndexByte(body, '.'); len(body)-dot-1 < 2 {
			body += strings.Repeat("0", 2-(len(body)-dot-1))
		}
	} else {
		body = humanize.FormatFloat("#,###.##", abs)
	}

	if neg {
		return "-" + prefix + body
	}
	return prefix + body
}

// FormatPercentage renders a signed percentage with two decimals ("+2.35%").
func FormatPercentage(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}
