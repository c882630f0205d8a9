package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts a non-negative decimal price string such as "19.99"
// into cents. At most two fractional digits are accepted.
func ParseAmount(s string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents := n * 100
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if frac != "" {
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if len(frac) == 1 {
			d *= 10
		}
		cents += d
	}
	return cents, nil
}

// FormatAmount renders cents back as a two-decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
