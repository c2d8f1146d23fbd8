package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCost converts a price token like "1,234.50" into a decimal.
// Commas are thousands separators and are stripped before conversion.
func ParseCost(token string) (decimal.Decimal, error) {
	compact := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	return decimal.NewFromString(compact)
}
