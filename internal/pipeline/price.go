package pipeline

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	one        = decimal.NewFromInt(1)
	oneHundred = decimal.NewFromInt(100)
)

// Margins holds validated retail and wholesale margin percentages.
type Margins struct {
	retail    decimal.Decimal
	wholesale decimal.Decimal
}

func NewMargins(retailPct, wholesalePct float64) (Margins, error) {
	retail, err := marginFromPct("retail", retailPct)
	if err != nil {
		return Margins{}, err
	}
	wholesale, err := marginFromPct("wholesale", wholesalePct)
	if err != nil {
		return Margins{}, err
	}
	return Margins{retail: retail, wholesale: wholesale}, nil
}

func marginFromPct(role string, pct float64) (decimal.Decimal, error) {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return decimal.Decimal{}, fmt.Errorf("%s margin is not a finite number", role)
	}
	if pct < 0 {
		return decimal.Decimal{}, fmt.Errorf("%s margin must be non-negative, got %v", role, pct)
	}
	return decimal.NewFromFloat(pct), nil
}

// RetailPrice is cost * (1 + pct/100) rounded to cents, ties away from
// zero.
func (m Margins) RetailPrice(cost decimal.Decimal) decimal.Decimal {
	return applyMargin(cost, m.retail)
}

func (m Margins) WholesalePrice(cost decimal.Decimal) decimal.Decimal {
	return applyMargin(cost, m.wholesale)
}

func applyMargin(cost, pct decimal.Decimal) decimal.Decimal {
	return cost.Mul(one.Add(pct.Div(oneHundred))).Round(2)
}
