package core

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatRupiah renders an amount as "Rp 1,234,567": comma thousands, no
// decimals, halves rounded to even.
func FormatRupiah(amount float64) string {
	return "Rp " + humanize.Comma(int64(math.RoundToEven(amount)))
}

// Share returns part as a percentage of total with one decimal, e.g. "42.5%".
func Share(part, total float64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", part/total*100)
}
