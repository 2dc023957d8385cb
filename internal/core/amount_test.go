package core_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"owners-billing/internal/core"
)

func contractWith(freq core.PaymentFrequency, totalRent string) core.Contract {
	return core.Contract{
		ID:               1,
		Start:            date(2025, 1, 1),
		End:              date(2025, 12, 31),
		TotalRent:        decimal.RequireFromString(totalRent),
		PaymentFrequency: freq,
		Status:           core.ContractActive,
	}
}

func TestAmountForPeriod_FullPeriods(t *testing.T) {
	tests := []struct {
		name  string
		freq  core.PaymentFrequency
		total string
		start time.Time
		end   time.Time
		want  string
	}{
		{"monthly january", core.Monthly, "120000", date(2025, 1, 1), date(2025, 1, 31), "10000.00"},
		{"monthly february", core.Monthly, "120000", date(2025, 2, 1), date(2025, 2, 28), "10000.00"},
		{"monthly leap february", core.Monthly, "120000", date(2024, 2, 1), date(2024, 2, 29), "10000.00"},
		{"quarterly", core.Quarterly, "60000", date(2025, 1, 1), date(2025, 3, 31), "15000.00"},
		{"semi-annual", core.SemiAnnually, "60000", date(2025, 1, 1), date(2025, 6, 30), "30000.00"},
		{"yearly", core.Yearly, "60000", date(2025, 1, 1), date(2025, 12, 31), "60000.00"},
		{"weekly", core.Weekly, "52000", date(2025, 1, 1), date(2025, 1, 7), "1000.00"},
		{"uneven division rounds", core.Monthly, "100000", date(2025, 1, 1), date(2025, 1, 31), "8333.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := contractWith(tt.freq, tt.total)
			got := core.AmountForPeriod(c, core.Period{Start: tt.start, End: tt.end})
			if got.StringFixed(2) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.StringFixed(2))
			}
		})
	}
}

func TestAmountForPeriod_ProratedFinalPeriod(t *testing.T) {
	// Monthly contract ending mid-month: 14 remaining days beyond the period
	// start count as 14/30 of a month.
	c := contractWith(core.Monthly, "120000")
	c.End = date(2025, 5, 15)

	got := core.AmountForPeriod(c, core.Period{Start: date(2025, 5, 1), End: date(2025, 5, 15)})
	if got.StringFixed(2) != "4666.67" {
		t.Errorf("expected 4666.67, got %s", got.StringFixed(2))
	}
}

func TestAmountForPeriod_ProratedWholeMonthsPlusDays(t *testing.T) {
	// Capped quarter of one month and 14 days: 60000/12 * (1 + 14/30).
	c := contractWith(core.Quarterly, "60000")
	c.End = date(2025, 5, 15)

	got := core.AmountForPeriod(c, core.Period{Start: date(2025, 4, 1), End: date(2025, 5, 15)})
	if got.StringFixed(2) != "7333.33" {
		t.Errorf("expected 7333.33, got %s", got.StringFixed(2))
	}
}

func TestAmountForPeriod_FixedFractionIgnoresDayCount(t *testing.T) {
	// January (31 days) and February (28 days) bill identically.
	c := contractWith(core.Monthly, "120000")
	jan := core.AmountForPeriod(c, core.Period{Start: date(2025, 1, 1), End: date(2025, 1, 31)})
	feb := core.AmountForPeriod(c, core.Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)})
	if !jan.Equal(feb) {
		t.Errorf("expected equal amounts, got %s and %s", jan.StringFixed(2), feb.StringFixed(2))
	}
}
