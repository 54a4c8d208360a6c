package money

import "fmt"

// Amount is a monetary value stored in minor units.
type Amount = int64

// Bps is a percentage expressed in basis points (1% == 100 bps).
type Bps = int32

// Format renders an amount as a display value with two decimal places.
func Format(a Amount) string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

// FormatWithCurrency prefixes the formatted amount with the currency code.
func FormatWithCurrency(currency string, a Amount) string {
	if currency == "" {
		return Format(a)
	}
	return currency + " " + Format(a)
}

// FormatBps renders basis points as a percentage, trimming a trailing ".00".
func FormatBps(p Bps) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	whole := p / 100
	frac := p % 100
	if frac == 0 {
		return fmt.Sprintf("%s%d%%", sign, whole)
	}
	if frac%10 == 0 {
		return fmt.Sprintf("%s%d.%d%%", sign, whole, frac/10)
	}
	return fmt.Sprintf("%s%d.%02d%%", sign, whole, frac)
}

// PortionBps returns the given fraction of an amount, truncated toward zero.
func PortionBps(a Amount, p Bps) Amount {
	return a * Amount(p) / 10000
}

// RatioBps expresses part as basis points of whole. A zero whole yields zero.
func RatioBps(part, whole Amount) Bps {
	if whole == 0 {
		return 0
	}
	return Bps(part * 10000 / whole)
}
