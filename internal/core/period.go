package core

import "time"

// NextPeriod computes the next candidate billing period for a contract.
//
// The start is the day after the most recent invoice's period end (manual
// invoices count too), or the contract start when no invoice exists. The end is
// one frequency-length later minus a day, capped at the contract end. A capped
// final period is intentionally shorter than a full unit and gets prorated by
// AmountForPeriod. The due date is offset from the period START (advance
// billing), not the end.
//
// Returns nil when the contract is fully invoiced (start would fall past the
// contract end).
func NextPeriod(c Contract, lastInvoice *Invoice, settings BillingSettings) *BillingPeriod {
	start := DateOnly(c.Start)
	if lastInvoice != nil {
		start = DateOnly(lastInvoice.PeriodEnd).AddDate(0, 0, 1)
	}

	contractEnd := DateOnly(c.End)
	if start.After(contractEnd) {
		return nil
	}

	end := fullPeriodEnd(start, c.PaymentFrequency)
	if end.After(contractEnd) {
		end = contractEnd
	}

	dueDays := settings.DueDaysAfterPeriodStart
	if dueDays <= 0 {
		dueDays = DefaultBillingSettings().DueDaysAfterPeriodStart
	}

	return &BillingPeriod{
		Start: start,
		End:   end,
		Due:   start.AddDate(0, 0, dueDays),
	}
}

// fullPeriodEnd returns the inclusive end date of an uncapped period starting
// at start: one week for weekly contracts, otherwise the frequency's month
// count, minus one day.
func fullPeriodEnd(start time.Time, f PaymentFrequency) time.Time {
	if f == Weekly {
		return start.AddDate(0, 0, 6)
	}
	return start.AddDate(0, f.Months(), -1)
}

// ValidatePeriod checks a candidate period against the contract bounds and the
// contract's existing invoice periods. The caller supplies the existing periods
// (excluding the invoice being edited, if any); validation itself touches no
// storage so write paths can run it inside their own transaction.
//
// Checks run in order: start <= end, both dates inside [contract.start,
// contract.end], then overlap against every existing period (either period
// containing the other counts as overlap).
func ValidatePeriod(c Contract, p Period, existing []Period) error {
	start, end := DateOnly(p.Start), DateOnly(p.End)

	if start.After(end) {
		return &PeriodError{Reason: PeriodOutOfOrder, Period: p}
	}

	if start.Before(DateOnly(c.Start)) || end.After(DateOnly(c.End)) {
		return &PeriodError{Reason: PeriodOutsideBounds, Period: p}
	}

	candidate := Period{Start: start, End: end}
	for _, ex := range existing {
		if candidate.Overlaps(ex) {
			return &PeriodError{Reason: PeriodOverlapping, Period: p}
		}
	}
	return nil
}

// ExcludePeriod filters out the period belonging to invoiceID from a list of
// invoice periods, for in-place edits.
func ExcludePeriod(invoices []Invoice, excludeID int) []Period {
	periods := make([]Period, 0, len(invoices))
	for _, inv := range invoices {
		if inv.ID == excludeID {
			continue
		}
		periods = append(periods, inv.Period())
	}
	return periods
}
