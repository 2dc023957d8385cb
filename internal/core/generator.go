package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// maxCatchUpPeriods bounds how many consecutive periods one run will generate
// for a single contract that fell behind. A contract needing more catches up
// over subsequent runs instead of monopolizing this one.
const maxCatchUpPeriods = 100

// ContractSource is the contract data the generator needs.
type ContractSource interface {
	DueContracts(ctx context.Context, today time.Time) ([]Contract, error)
	LastInvoice(ctx context.Context, contractID int) (*Invoice, error)
}

// InvoiceWriter is the invoice persistence the generator drives.
type InvoiceWriter interface {
	CreateGenerated(ctx context.Context, c Contract, period BillingPeriod, settings BillingSettings) (*Invoice, error)
	ExistsForPeriod(ctx context.Context, contractID int, period Period) (bool, error)
}

// SettingsSource resolves per-ownership billing settings.
type SettingsSource interface {
	BillingSettings(ctx context.Context, ownershipID int) (BillingSettings, error)
}

// ContractFailure records a contract the run could not fully process.
type ContractFailure struct {
	ContractID int    `json:"contract_id"`
	Err        string `json:"error"`
}

// GenerationResult aggregates one generation run.
type GenerationResult struct {
	ContractsChecked int               `json:"contracts_checked"`
	Generated        int               `json:"generated"`
	Skipped          int               `json:"skipped"`
	Failures         []ContractFailure `json:"failures,omitempty"`
}

// Generator produces contract invoices on schedule. Each run scans active
// contracts, computes the next unbilled period per contract, and creates the
// invoice once the period enters its generation window. A contract that
// errors is recorded and skipped; the run continues with the rest.
type Generator struct {
	contracts ContractSource
	invoices  InvoiceWriter
	settings  SettingsSource
	logger    zerolog.Logger
	now       func() time.Time
}

func NewGenerator(contracts ContractSource, invoices InvoiceWriter, settings SettingsSource, logger zerolog.Logger) *Generator {
	return &Generator{
		contracts: contracts,
		invoices:  invoices,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the generator's notion of today. Tests use it; the
// scheduler never does.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Run executes one generation sweep. The returned error covers only the
// initial contract scan; per-contract failures land in the result.
func (g *Generator) Run(ctx context.Context) (GenerationResult, error) {
	today := DateOnly(g.now())
	result := GenerationResult{}

	contracts, err := g.contracts.DueContracts(ctx, today)
	if err != nil {
		return result, fmt.Errorf("failed to load due contracts: %w", err)
	}
	result.ContractsChecked = len(contracts)

	settingsCache := map[int]BillingSettings{}
	for _, c := range contracts {
		settings, ok := settingsCache[c.OwnershipID]
		if !ok {
			settings, err = g.settings.BillingSettings(ctx, c.OwnershipID)
			if err != nil {
				result.Failures = append(result.Failures, ContractFailure{ContractID: c.ID, Err: err.Error()})
				continue
			}
			settingsCache[c.OwnershipID] = settings
		}

		if !settings.AutoGenerationMode.SystemAllowed() {
			result.Skipped++
			continue
		}

		generated, err := g.generateForContract(ctx, c, settings, today)
		result.Generated += generated
		if err != nil {
			g.logger.Error().Err(err).Int("contract_id", c.ID).Msg("invoice generation failed for contract")
			result.Failures = append(result.Failures, ContractFailure{ContractID: c.ID, Err: err.Error()})
		}
	}

	g.logger.Info().
		Int("contracts", result.ContractsChecked).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("failures", len(result.Failures)).
		Msg("invoice generation run complete")
	return result, nil
}

// generateForContract walks the contract's unbilled periods in order, creating
// an invoice for each period already inside its generation window. The walk
// stops at the first period still outside the window, at the contract end, or
// at the catch-up bound.
func (g *Generator) generateForContract(ctx context.Context, c Contract, settings BillingSettings, today time.Time) (int, error) {
	last, err := g.contracts.LastInvoice(ctx, c.ID)
	if err != nil {
		return 0, err
	}

	generated := 0
	for i := 0; i < maxCatchUpPeriods; i++ {
		period := NextPeriod(c, last, settings)
		if period == nil {
			break
		}

		// A period is billable once its start has arrived. The early window,
		// GenerationDaysBeforeDue days ahead of the due date, can only widen
		// eligibility for future periods, never delay a started one.
		windowOpens := period.Due.AddDate(0, 0, -settings.GenerationDaysBeforeDue)
		if period.Start.After(today) && today.Before(windowOpens) {
			break
		}

		exists, err := g.invoices.ExistsForPeriod(ctx, c.ID, period.Period())
		if err != nil {
			return generated, err
		}
		if exists {
			// Another writer billed this period already. Step past it.
			last = &Invoice{PeriodEnd: period.End}
			continue
		}

		inv, err := g.invoices.CreateGenerated(ctx, c, *period, settings)
		if err != nil {
			var pe *PeriodError
			if errors.As(err, &pe) && pe.Reason == PeriodOverlapping {
				last = &Invoice{PeriodEnd: period.End}
				continue
			}
			return generated, err
		}

		g.logger.Info().
			Int("contract_id", c.ID).
			Str("number", inv.Number).
			Str("period_start", inv.PeriodStart.Format(time.DateOnly)).
			Str("period_end", inv.PeriodEnd.Format(time.DateOnly)).
			Msg("invoice generated")
		generated++
		last = inv
	}
	return generated, nil
}
