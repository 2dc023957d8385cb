package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentFrequency string

const (
	Weekly       PaymentFrequency = "weekly"
	Monthly      PaymentFrequency = "monthly"
	Quarterly    PaymentFrequency = "quarterly"
	SemiAnnually PaymentFrequency = "semi_annually"
	Yearly       PaymentFrequency = "yearly"
)

// Months returns the period length in calendar months, or 0 for weekly
// (a weekly period is 7 days, not a month fraction). Unknown frequencies
// fall back to monthly.
func (f PaymentFrequency) Months() int {
	switch f {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case SemiAnnually:
		return 6
	case Yearly:
		return 12
	case Weekly:
		return 0
	default:
		return 1
	}
}

// PeriodsPerYear reports how many full periods of this frequency fit in a
// contract year. Used for the fixed per-period amount fractions.
func (f PaymentFrequency) PeriodsPerYear() int64 {
	switch f {
	case Weekly:
		return 52
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case SemiAnnually:
		return 2
	case Yearly:
		return 1
	default:
		return 0
	}
}

func (f PaymentFrequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Quarterly, SemiAnnually, Yearly:
		return true
	}
	return false
}

type ContractStatus string

const (
	ContractDraft      ContractStatus = "draft"
	ContractPending    ContractStatus = "pending"
	ContractActive     ContractStatus = "active"
	ContractExpired    ContractStatus = "expired"
	ContractTerminated ContractStatus = "terminated"
	ContractCancelled  ContractStatus = "cancelled"
)

// Contract is the lease the billing engine derives invoices from. The engine
// only ever reads contracts; the contract module owns all writes.
type Contract struct {
	ID               int              `json:"id"`
	UUID             string           `json:"uuid"`
	OwnershipID      int              `json:"ownership_id"`
	TenantID         int              `json:"tenant_id"`
	Number           string           `json:"number"`
	Start            time.Time        `json:"start"`
	End              time.Time        `json:"end"`
	BaseRent         decimal.Decimal  `json:"base_rent"`
	RentFees         decimal.Decimal  `json:"rent_fees"`
	VATAmount        decimal.Decimal  `json:"vat_amount"`
	TotalRent        decimal.Decimal  `json:"total_rent"` // annual, tax-inclusive
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	Status           ContractStatus   `json:"status"`
	Units            []ContractUnit   `json:"units,omitempty"`
}

// ContractUnit links a contract to a leased unit. RentAmount is the per-unit
// annual rent share when it was recorded on the link; nil means split the
// contract base rent evenly across units.
type ContractUnit struct {
	UnitID     int              `json:"unit_id"`
	UnitNumber string           `json:"unit_number"`
	RentAmount *decimal.Decimal `json:"rent_amount,omitempty"`
}

// Period is an inclusive [Start, End] date range an invoice bills for.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two periods intersect. Bounds are inclusive, so
// back-to-back periods (a ends the day before b starts) do not overlap.
func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !other.Start.After(p.End)
}

// BillingPeriod is a candidate invoice period with its computed due date.
type BillingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Due   time.Time `json:"due"`
}

func (bp BillingPeriod) Period() Period {
	return Period{Start: bp.Start, End: bp.End}
}

type Invoice struct {
	ID          int             `json:"id"`
	UUID        string          `json:"uuid"`
	ContractID  *int            `json:"contract_id,omitempty"` // nil for standalone invoices
	OwnershipID int             `json:"ownership_id"`
	Number      string          `json:"number"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Due         time.Time       `json:"due"`
	Amount      decimal.Decimal `json:"amount"`
	// Tax and TaxRate are set only for standalone invoices; contract-linked
	// invoices carry TaxFromContract=true because the contract total already
	// includes VAT.
	Tax             *decimal.Decimal `json:"tax,omitempty"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
	TaxFromContract bool             `json:"tax_from_contract"`
	Total           decimal.Decimal  `json:"total"`
	Status          InvoiceStatus    `json:"status"`
	Notes           string           `json:"notes,omitempty"`
	GeneratedBy     *int             `json:"generated_by,omitempty"` // nil = system
	GeneratedAt     time.Time        `json:"generated_at"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Items           []InvoiceItem    `json:"items,omitempty"`
}

func (inv *Invoice) LinkedToContract() bool {
	return inv.ContractID != nil
}

func (inv *Invoice) Period() Period {
	return Period{Start: inv.PeriodStart, End: inv.PeriodEnd}
}

type InvoiceItem struct {
	ID          int             `json:"id"`
	InvoiceID   int             `json:"invoice_id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceStatusLog records one status transition for the audit trail.
type InvoiceStatusLog struct {
	ID         int           `json:"id"`
	InvoiceID  int           `json:"invoice_id"`
	FromStatus InvoiceStatus `json:"from_status"`
	ToStatus   InvoiceStatus `json:"to_status"`
	Reason     string        `json:"reason,omitempty"`
	ChangedBy  *int          `json:"changed_by,omitempty"`
	ChangedAt  time.Time     `json:"changed_at"`
}

// DateOnly truncates t to midnight UTC. All period arithmetic operates on
// whole days; times of day never participate.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
