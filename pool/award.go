package pool

import "github.com/shopspring/decimal"

// =============================================================================
// PRIZE - Tax-adjusted payout rendering
// =============================================================================

// prizeTaxRate is the fixed deduction applied to the award.
var prizeTaxRate = decimal.New(12, -2) // 12%

// Prize returns the tax-adjusted payout per active challenger, rounded
// half-up to two decimal places. Pure; repeated calls without
// intervening mutations return identical values.
func (p *MonthlyPool) Prize() decimal.Decimal {
	prize := p.Award.Sub(p.Award.Mul(prizeTaxRate))
	return prize.Round(2)
}

// FormattedPrize renders the prize as a currency string. Trailing
// zero cents are trimmed: 88.00 renders as "$88", 87.12 as "$87.12".
func (p *MonthlyPool) FormattedPrize() string {
	return "$" + p.Prize().String()
}

// Title is the canonical human label for a pool, derived from the
// period start: "July 2024".
func (p *MonthlyPool) Title() string {
	return p.FromDate.Format("January 2006")
}
