package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	twelve = decimal.NewFromInt(12)
	thirty = decimal.NewFromInt(30)
)

// AmountForPeriod derives the invoice amount from the contract's annual
// total rent and the billed period, rounded to 2 decimal places.
//
// A full-length period is charged a fixed per-period fraction of the annual
// amount (monthly = total/12, quarterly = total/4, and so on) regardless of how
// many calendar days the period happens to contain, so regular periods cost
// the same in February as in January.
//
// A period that is not a full frequency unit (a capped final period, or an
// unrecognised frequency) is prorated as (total/12) * months, where months is
// the whole-month count plus remaining_days/30.0 as a fractional month. The
// 30-day month here is a documented approximation inherited from the billing
// rules, not calendar-exact; do not "fix" it without a product decision.
func AmountForPeriod(c Contract, p Period) decimal.Decimal {
	start, end := DateOnly(p.Start), DateOnly(p.End)

	if c.PaymentFrequency.Valid() && end.Equal(fullPeriodEnd(start, c.PaymentFrequency)) {
		perYear := c.PaymentFrequency.PeriodsPerYear()
		return c.TotalRent.Div(decimal.NewFromInt(perYear)).Round(2)
	}

	return prorateByDays(c.TotalRent, start, end)
}

func prorateByDays(totalRent decimal.Decimal, start, end time.Time) decimal.Decimal {
	wholeMonths := monthsBetween(start, end)
	afterMonths := start.AddDate(0, wholeMonths, 0)
	remainingDays := daysBetween(afterMonths, end)

	months := decimal.NewFromInt(int64(wholeMonths)).
		Add(decimal.NewFromInt(int64(remainingDays)).Div(thirty))

	return totalRent.Div(twelve).Mul(months).Round(2)
}

// monthsBetween counts the whole calendar months from start to end, i.e. the
// largest m with start+m months <= end.
func monthsBetween(start, end time.Time) int {
	months := 0
	for !start.AddDate(0, months+1, 0).After(end) {
		months++
	}
	return months
}

// daysBetween returns the day distance between two dates (end - start).
func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}
