package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"owners-billing/internal/core"
)

// fakeStore backs the generator with in-memory contracts and invoices.
type fakeStore struct {
	contracts    []core.Contract
	settings     map[int]core.BillingSettings
	invoices     map[int][]core.Invoice
	failContract int
	nextID       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: map[int]core.BillingSettings{},
		invoices: map[int][]core.Invoice{},
	}
}

func (f *fakeStore) DueContracts(ctx context.Context, today time.Time) ([]core.Contract, error) {
	var due []core.Contract
	for _, c := range f.contracts {
		if c.Status == core.ContractActive && !today.Before(c.Start) && !today.After(c.End) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (f *fakeStore) LastInvoice(ctx context.Context, contractID int) (*core.Invoice, error) {
	var last *core.Invoice
	for i := range f.invoices[contractID] {
		inv := &f.invoices[contractID][i]
		if last == nil || inv.PeriodEnd.After(last.PeriodEnd) {
			last = inv
		}
	}
	return last, nil
}

func (f *fakeStore) BillingSettings(ctx context.Context, ownershipID int) (core.BillingSettings, error) {
	if s, ok := f.settings[ownershipID]; ok {
		return s, nil
	}
	return core.DefaultBillingSettings(), nil
}

func (f *fakeStore) ExistsForPeriod(ctx context.Context, contractID int, period core.Period) (bool, error) {
	for _, inv := range f.invoices[contractID] {
		if inv.Period().Overlaps(period) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateGenerated(ctx context.Context, c core.Contract, period core.BillingPeriod, settings core.BillingSettings) (*core.Invoice, error) {
	if c.ID == f.failContract {
		return nil, fmt.Errorf("storage unavailable")
	}
	f.nextID++
	inv := core.Invoice{
		ID:          f.nextID,
		ContractID:  &c.ID,
		OwnershipID: c.OwnershipID,
		Number:      core.FormatInvoiceNumber(c.OwnershipID, period.Start.Year(), f.nextID),
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Due:         period.Due,
		Amount:      core.AmountForPeriod(c, period.Period()),
		Status:      settings.DefaultStatus,
	}
	f.invoices[c.ID] = append(f.invoices[c.ID], inv)
	return &inv, nil
}

func monthlyContract(id, ownershipID int) core.Contract {
	return core.Contract{
		ID:               id,
		OwnershipID:      ownershipID,
		Start:            date(2025, 1, 1),
		End:              date(2025, 12, 31),
		TotalRent:        decimal.RequireFromString("120000"),
		PaymentFrequency: core.Monthly,
		Status:           core.ContractActive,
	}
}

func systemSettings() core.BillingSettings {
	s := core.DefaultBillingSettings()
	s.AutoGenerationMode = core.GenerationSystemOnly
	return s
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestGenerator(store *fakeStore, today time.Time) *core.Generator {
	return core.NewGenerator(store, store, store, zerolog.Nop()).WithClock(fixedClock(today))
}

func TestGenerator_CatchesUpToWindow(t *testing.T) {
	store := newFakeStore()
	store.contracts = []core.Contract{monthlyContract(1, 1)}
	store.settings[1] = systemSettings()

	// With due day 10 of each month and a 5 day window, March's invoice is in
	// window on the 20th but April's is not.
	result, err := newTestGenerator(store, date(2025, 3, 20)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Generated != 3 {
		t.Fatalf("expected 3 invoices, got %d", result.Generated)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", result.Failures)
	}

	invoices := store.invoices[1]
	wantStarts := []time.Time{date(2025, 1, 1), date(2025, 2, 1), date(2025, 3, 1)}
	for i, inv := range invoices {
		if !inv.PeriodStart.Equal(wantStarts[i]) {
			t.Errorf("invoice %d starts %s, want %s", i,
				inv.PeriodStart.Format(time.DateOnly), wantStarts[i].Format(time.DateOnly))
		}
		if inv.Amount.StringFixed(2) != "10000.00" {
			t.Errorf("invoice %d amount %s, want 10000.00", i, inv.Amount.StringFixed(2))
		}
	}
}

func TestGenerator_WaitsForGenerationWindow(t *testing.T) {
	seedJanuary := func(store *fakeStore) {
		store.invoices[1] = []core.Invoice{{
			ID:          1,
			PeriodStart: date(2025, 1, 1),
			PeriodEnd:   date(2025, 1, 31),
		}}
	}

	t.Run("FuturePeriodNotGeneratedEarly", func(t *testing.T) {
		store := newFakeStore()
		store.contracts = []core.Contract{monthlyContract(1, 1)}
		store.settings[1] = systemSettings()
		seedJanuary(store)

		// February has not started and its window (due Feb 11, minus 5 days)
		// has not opened either.
		result, err := newTestGenerator(store, date(2025, 1, 20)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Generated != 0 {
			t.Errorf("expected nothing before the period starts, got %d", result.Generated)
		}

		result, err = newTestGenerator(store, date(2025, 2, 1)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Generated != 1 {
			t.Errorf("expected 1 invoice once the period starts, got %d", result.Generated)
		}
	})

	t.Run("WideWindowGeneratesBeforePeriodStart", func(t *testing.T) {
		store := newFakeStore()
		store.contracts = []core.Contract{monthlyContract(1, 1)}
		settings := systemSettings()
		settings.GenerationDaysBeforeDue = 15
		store.settings[1] = settings
		seedJanuary(store)

		// February is due on the 11th, so a 15 day window opens January 27.
		result, err := newTestGenerator(store, date(2025, 1, 26)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Generated != 0 {
			t.Errorf("expected nothing before the window opens, got %d", result.Generated)
		}

		result, err = newTestGenerator(store, date(2025, 1, 27)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Generated != 1 {
			t.Errorf("expected 1 invoice at window open, got %d", result.Generated)
		}
	})
}

func TestGenerator_SecondRunGeneratesNothing(t *testing.T) {
	store := newFakeStore()
	store.contracts = []core.Contract{monthlyContract(1, 1)}
	store.settings[1] = systemSettings()

	gen := newTestGenerator(store, date(2025, 3, 20))
	first, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.Generated == 0 {
		t.Fatal("expected the first run to generate")
	}
	if second.Generated != 0 {
		t.Errorf("expected the second run to be a no-op, generated %d", second.Generated)
	}
}

func TestGenerator_SkipsWhenSystemGenerationNotAllowed(t *testing.T) {
	for _, mode := range []core.AutoGenerationMode{core.GenerationDisabled, core.GenerationUserOnly} {
		store := newFakeStore()
		store.contracts = []core.Contract{monthlyContract(1, 1)}
		s := core.DefaultBillingSettings()
		s.AutoGenerationMode = mode
		store.settings[1] = s

		result, err := newTestGenerator(store, date(2025, 3, 20)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run (%s): %v", mode, err)
		}
		if result.Generated != 0 || result.Skipped != 1 {
			t.Errorf("mode %s: expected 0 generated 1 skipped, got %d/%d",
				mode, result.Generated, result.Skipped)
		}
	}
}

func TestGenerator_ContractFailureIsIsolated(t *testing.T) {
	store := newFakeStore()
	store.contracts = []core.Contract{monthlyContract(1, 1), monthlyContract(2, 1)}
	store.settings[1] = systemSettings()
	store.failContract = 1

	result, err := newTestGenerator(store, date(2025, 1, 20)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Failures) != 1 || result.Failures[0].ContractID != 1 {
		t.Fatalf("expected contract 1 to fail, got %v", result.Failures)
	}
	if len(store.invoices[2]) != 1 {
		t.Errorf("expected contract 2 to still generate, got %d invoices", len(store.invoices[2]))
	}
}

func TestGenerator_StepsPastExistingInvoices(t *testing.T) {
	store := newFakeStore()
	c := monthlyContract(1, 1)
	store.contracts = []core.Contract{c}
	store.settings[1] = systemSettings()

	// January was invoiced manually.
	store.nextID++
	store.invoices[1] = []core.Invoice{{
		ID: store.nextID, ContractID: &c.ID, OwnershipID: 1,
		PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 31),
	}}

	result, err := newTestGenerator(store, date(2025, 2, 20)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generated != 1 {
		t.Fatalf("expected 1 invoice, got %d", result.Generated)
	}
	last := store.invoices[1][len(store.invoices[1])-1]
	if !last.PeriodStart.Equal(date(2025, 2, 1)) {
		t.Errorf("expected February, got %s", last.PeriodStart.Format(time.DateOnly))
	}
}

func TestGenerator_StopsAtContractEnd(t *testing.T) {
	store := newFakeStore()
	c := monthlyContract(1, 1)
	c.End = date(2025, 2, 15)
	store.contracts = []core.Contract{c}
	store.settings[1] = systemSettings()

	// Far past the contract end: generate January plus the capped final
	// period, then stop.
	result, err := newTestGenerator(store, date(2025, 2, 14)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generated != 2 {
		t.Fatalf("expected 2 invoices, got %d", result.Generated)
	}
	final := store.invoices[1][1]
	if !final.PeriodEnd.Equal(date(2025, 2, 15)) {
		t.Errorf("expected final period to cap at 2025-02-15, got %s", final.PeriodEnd.Format(time.DateOnly))
	}
	if final.Amount.Equal(store.invoices[1][0].Amount) {
		t.Error("expected the capped final period to be prorated, not a full month")
	}
}
