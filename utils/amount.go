package utils

import (
	"strings"

	"github.com/holiman/uint256"
)

// FormatAmount renders a base-unit amount with decimals fractional digits,
// trimming trailing zeros: 1500000000 with 9 decimals is "1.5".
func FormatAmount(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
