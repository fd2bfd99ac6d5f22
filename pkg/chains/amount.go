package chains

import (
	"fmt"
	"math/big"
	"strings"
)

// ToAtomic converts a decimal display amount (e.g. "1.5") into atomic
// token units for the given number of decimals
func ToAtomic(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	// Pad the fractional part out to the full decimal width
	frac += strings.Repeat("0", decimals-len(frac))

	combined := whole + frac
	if combined == "" {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	atomic, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if atomic.Sign() < 0 {
		return nil, fmt.Errorf("amount %s is negative", amount)
	}
	return atomic, nil
}

// FromAtomic converts atomic token units back to a decimal display string
func FromAtomic(atomic *big.Int, decimals int) string {
	if atomic == nil {
		return "0"
	}

	str := atomic.String()
	negative := strings.HasPrefix(str, "-")
	if negative {
		str = str[1:]
	}

	if len(str) <= decimals {
		str = strings.Repeat("0", decimals-len(str)+1) + str
	}

	whole := str[:len(str)-decimals]
	frac := strings.TrimRight(str[len(str)-decimals:], "0")

	result := whole
	if frac != "" {
		result += "." + frac
	}
	if negative {
		result = "-" + result
	}
	return result
}
