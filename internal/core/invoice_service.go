package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateInvoiceInput is the request for a manually created invoice. With a
// ContractID the period is validated against the contract and the amount
// defaults to the computed period amount; without one the invoice is
// standalone and the caller supplies ownership, amount and optional tax.
type CreateInvoiceInput struct {
	ContractID  *int
	OwnershipID int
	PeriodStart time.Time
	PeriodEnd   time.Time
	Due         *time.Time
	Amount      *decimal.Decimal
	Tax         *decimal.Decimal
	TaxRate     *decimal.Decimal
	Status      InvoiceStatus
	Notes       string
	CreatedBy   *int
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	OwnershipID int
	ContractID  *int
	Status      *InvoiceStatus
	Limit       int
}

type InvoiceService interface {
	GetInvoice(ctx context.Context, id int) (*Invoice, error)
	GetInvoiceByUUID(ctx context.Context, uuid string) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	StatusLogs(ctx context.Context, invoiceID int) ([]InvoiceStatusLog, error)

	CreateInvoice(ctx context.Context, input CreateInvoiceInput, actor Actor) (*Invoice, error)
	UpdateInvoice(ctx context.Context, id int, changes InvoiceChanges, actor Actor, userID *int) (*Invoice, EditOutcome, error)
	DeleteInvoice(ctx context.Context, id int, actor Actor) error
	UpdateStatus(ctx context.Context, id int, to InvoiceStatus, reason string, userID *int) (*Invoice, error)
	MarkAsSent(ctx context.Context, id int, userID *int) (*Invoice, error)
	MarkAsPaid(ctx context.Context, id int, userID *int) (*Invoice, error)

	// CreateGenerated inserts a scheduler-produced invoice for a contract
	// period. Settings are resolved by the caller so a whole generation run
	// reads them once per ownership.
	CreateGenerated(ctx context.Context, c Contract, period BillingPeriod, settings BillingSettings) (*Invoice, error)
	// ExistsForPeriod reports whether the contract already has an invoice
	// whose period overlaps the given one.
	ExistsForPeriod(ctx context.Context, contractID int, period Period) (bool, error)
}

type invoiceService struct {
	pool     *pgxpool.Pool
	settings SettingsService
	notifier Notifier
	rules    EditRules
	now      func() time.Time
}

func NewInvoiceService(pool *pgxpool.Pool, settings SettingsService, notifier Notifier) InvoiceService {
	return &invoiceService{
		pool:     pool,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
	}
}

const invoiceColumns = `
	i.id, i.uuid, i.contract_id, i.ownership_id, i.number,
	i.period_start, i.period_end, i.due,
	i.amount, i.tax, i.tax_rate, i.tax_from_contract, i.total,
	i.status, COALESCE(i.notes, ''), i.generated_by, i.generated_at,
	i.paid_at, i.created_at, i.updated_at
`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.UUID, &inv.ContractID, &inv.OwnershipID, &inv.Number,
		&inv.PeriodStart, &inv.PeriodEnd, &inv.Due,
		&inv.Amount, &inv.Tax, &inv.TaxRate, &inv.TaxFromContract, &inv.Total,
		&inv.Status, &inv.Notes, &inv.GeneratedBy, &inv.GeneratedAt,
		&inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.id = $1", id))
	if err != nil {
		return nil, err
	}
	if err := loadInvoiceItems(ctx, s.pool, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) GetInvoiceByUUID(ctx context.Context, uid string) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.uuid = $1", uid))
	if err != nil {
		return nil, err
	}
	if err := loadInvoiceItems(ctx, s.pool, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func loadInvoiceItems(ctx context.Context, q pgxQuerier, inv *Invoice) error {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, type, description, quantity, unit_price, total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id
	`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Type,
			&item.Description, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	return rows.Err()
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices i WHERE i.ownership_id = $1"
	args := []any{filter.OwnershipID}

	if filter.ContractID != nil {
		args = append(args, *filter.ContractID)
		query += fmt.Sprintf(" AND i.contract_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND i.status = $%d", len(args))
	}
	query += " ORDER BY i.period_start DESC, i.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.UUID, &inv.ContractID, &inv.OwnershipID, &inv.Number,
			&inv.PeriodStart, &inv.PeriodEnd, &inv.Due,
			&inv.Amount, &inv.Tax, &inv.TaxRate, &inv.TaxFromContract, &inv.Total,
			&inv.Status, &inv.Notes, &inv.GeneratedBy, &inv.GeneratedAt,
			&inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *invoiceService) StatusLogs(ctx context.Context, invoiceID int) ([]InvoiceStatusLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, from_status, to_status, COALESCE(reason, ''), changed_by, changed_at
		FROM invoice_status_logs
		WHERE invoice_id = $1
		ORDER BY changed_at, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status logs: %w", err)
	}
	defer rows.Close()

	var logs []InvoiceStatusLog
	for rows.Next() {
		var l InvoiceStatusLog
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.FromStatus, &l.ToStatus,
			&l.Reason, &l.ChangedBy, &l.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *invoiceService) CreateInvoice(ctx context.Context, input CreateInvoiceInput, actor Actor) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var inv *Invoice
	if input.ContractID != nil {
		inv, err = s.createContractInvoice(ctx, tx, input)
	} else {
		inv, err = s.createStandaloneInvoice(ctx, tx, input)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) createContractInvoice(ctx context.Context, tx pgx.Tx, input CreateInvoiceInput) (*Invoice, error) {
	c, err := lockContract(ctx, tx, *input.ContractID)
	if err != nil {
		return nil, err
	}
	if c.Status != ContractActive {
		return nil, ErrContractNotBillable
	}

	settings, err := s.settings.BillingSettings(ctx, c.OwnershipID)
	if err != nil {
		return nil, err
	}
	if settings.AutoGenerationMode == GenerationSystemOnly && !settings.AllowManualWhenAuto {
		return nil, fmt.Errorf("manual invoice creation is disabled for this ownership: %w", ErrContractNotBillable)
	}

	period := Period{Start: DateOnly(input.PeriodStart), End: DateOnly(input.PeriodEnd)}
	existing, err := invoicePeriodsQ(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}
	if !settings.PreventOverlappingPeriods {
		existing = nil
	}
	if err := ValidatePeriod(*c, period, existing); err != nil {
		return nil, err
	}

	amount := AmountForPeriod(*c, period)
	if input.Amount != nil {
		amount = input.Amount.Round(2)
	}

	due := period.Start.AddDate(0, 0, settings.DueDaysAfterPeriodStart)
	if input.Due != nil {
		due = DateOnly(*input.Due)
	}

	status := settings.DefaultStatus
	if input.Status != "" {
		status = ClampInitialStatus(input.Status)
	}

	now := DateOnly(s.now())
	inv := &Invoice{
		UUID:            uuid.NewString(),
		ContractID:      &c.ID,
		OwnershipID:     c.OwnershipID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		Due:             due,
		Amount:          amount,
		TaxFromContract: true,
		Total:           amount,
		Status:          status,
		Notes:           input.Notes,
		GeneratedBy:     input.CreatedBy,
		GeneratedAt:     now,
	}
	if err := insertInvoice(ctx, tx, inv, s.now()); err != nil {
		return nil, err
	}
	if err := insertRentItems(ctx, tx, inv, c.Units); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) createStandaloneInvoice(ctx context.Context, tx pgx.Tx, input CreateInvoiceInput) (*Invoice, error) {
	if input.OwnershipID == 0 {
		return nil, fmt.Errorf("standalone invoice requires an ownership")
	}

	start, end := DateOnly(input.PeriodStart), DateOnly(input.PeriodEnd)
	if start.After(end) {
		return nil, &PeriodError{Reason: PeriodOutOfOrder, Period: Period{Start: start, End: end}}
	}
	if input.Amount == nil {
		return nil, fmt.Errorf("standalone invoice requires an amount")
	}

	settings, err := s.settings.BillingSettings(ctx, input.OwnershipID)
	if err != nil {
		return nil, err
	}

	amount := input.Amount.Round(2)
	tax, taxRate := standaloneTax(amount, input.Tax, input.TaxRate)
	total := amount
	if tax != nil {
		total = amount.Add(*tax)
	}

	due := start.AddDate(0, 0, settings.DueDaysAfterPeriodStart)
	if input.Due != nil {
		due = DateOnly(*input.Due)
	}

	status := settings.DefaultStatus
	if input.Status != "" {
		status = ClampInitialStatus(input.Status)
	}

	inv := &Invoice{
		UUID:        uuid.NewString(),
		OwnershipID: input.OwnershipID,
		PeriodStart: start,
		PeriodEnd:   end,
		Due:         due,
		Amount:      amount,
		Tax:         tax,
		TaxRate:     taxRate,
		Total:       total,
		Status:      status,
		Notes:       input.Notes,
		GeneratedBy: input.CreatedBy,
		GeneratedAt: DateOnly(s.now()),
	}
	if err := insertInvoice(ctx, tx, inv, s.now()); err != nil {
		return nil, err
	}
	return inv, nil
}

// standaloneTax resolves explicit tax inputs: a given tax amount wins,
// otherwise a rate (percent) derives the amount.
func standaloneTax(amount decimal.Decimal, tax, rate *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	if tax != nil {
		t := tax.Round(2)
		return &t, rate
	}
	if rate != nil {
		t := amount.Mul(*rate).Div(decimal.NewFromInt(100)).Round(2)
		return &t, rate
	}
	return nil, nil
}

// insertInvoice assigns the next invoice number and inserts the row. A unique
// violation on the number means a concurrent insert took the sequence slot;
// the number is recomputed and the insert retried once before surfacing
// ErrDuplicateInvoiceNumber.
func insertInvoice(ctx context.Context, tx pgx.Tx, inv *Invoice, now time.Time) error {
	year := inv.PeriodStart.Year()

	for attempt := 0; attempt < 2; attempt++ {
		number, err := NextInvoiceNumber(ctx, tx, inv.OwnershipID, year)
		if err != nil {
			return err
		}
		inv.Number = number

		err = tx.QueryRow(ctx, `
			INSERT INTO invoices (
				uuid, contract_id, ownership_id, number,
				period_start, period_end, due,
				amount, tax, tax_rate, tax_from_contract, total,
				status, notes, generated_by, generated_at,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
			RETURNING id, created_at, updated_at
		`,
			inv.UUID, inv.ContractID, inv.OwnershipID, inv.Number,
			inv.PeriodStart, inv.PeriodEnd, inv.Due,
			inv.Amount, inv.Tax, inv.TaxRate, inv.TaxFromContract, inv.Total,
			inv.Status, inv.Notes, inv.GeneratedBy, inv.GeneratedAt,
			now,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && attempt == 0 {
			continue
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return ErrDuplicateInvoiceNumber
}

// insertRentItems writes one rent line per leased unit. The invoice amount is
// split by the units' recorded rent shares when present, evenly otherwise; the
// last line absorbs the rounding remainder so the lines always sum exactly to
// the invoice amount.
func insertRentItems(ctx context.Context, tx pgx.Tx, inv *Invoice, units []ContractUnit) error {
	if len(units) == 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, type, description, quantity, unit_price, total)
			VALUES ($1, 'rent', $2, 1, $3, $3)
		`, inv.ID, fmt.Sprintf("Rent %s to %s",
			inv.PeriodStart.Format(time.DateOnly), inv.PeriodEnd.Format(time.DateOnly)), inv.Amount)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
		return nil
	}

	shares := unitShares(inv.Amount, units)
	for i, u := range units {
		desc := fmt.Sprintf("Rent for unit %s, %s to %s", u.UnitNumber,
			inv.PeriodStart.Format(time.DateOnly), inv.PeriodEnd.Format(time.DateOnly))
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, unit_id, type, description, quantity, unit_price, total)
			VALUES ($1, $2, 'rent', $3, 1, $4, $4)
		`, inv.ID, u.UnitID, desc, shares[i])
		if err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}

// unitShares splits amount across units, weighted by their recorded rent
// amounts when all units carry one, evenly otherwise.
func unitShares(amount decimal.Decimal, units []ContractUnit) []decimal.Decimal {
	weights := make([]decimal.Decimal, len(units))
	weightTotal := decimal.Zero
	weighted := true
	for i, u := range units {
		if u.RentAmount == nil || u.RentAmount.IsZero() {
			weighted = false
			break
		}
		weights[i] = *u.RentAmount
		weightTotal = weightTotal.Add(*u.RentAmount)
	}

	shares := make([]decimal.Decimal, len(units))
	assigned := decimal.Zero
	count := decimal.NewFromInt(int64(len(units)))
	for i := range units {
		if i == len(units)-1 {
			shares[i] = amount.Sub(assigned)
			break
		}
		if weighted {
			shares[i] = amount.Mul(weights[i]).Div(weightTotal).Round(2)
		} else {
			shares[i] = amount.Div(count).Round(2)
		}
		assigned = assigned.Add(shares[i])
	}
	return shares
}

func lockContract(ctx context.Context, tx pgx.Tx, contractID int) (*Contract, error) {
	var id int
	err := tx.QueryRow(ctx, "SELECT id FROM contracts WHERE id = $1 FOR UPDATE", contractID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to lock contract: %w", err)
	}
	return getContractQ(ctx, tx, contractID)
}

func lockInvoice(ctx context.Context, tx pgx.Tx, id int) (*Invoice, error) {
	return scanInvoice(tx.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.id = $1 FOR UPDATE", id))
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id int, changes InvoiceChanges, actor Actor, userID *int) (*Invoice, EditOutcome, error) {
	var outcome EditOutcome

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, outcome, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, outcome, err
	}

	settings, err := s.settings.BillingSettings(ctx, inv.OwnershipID)
	if err != nil {
		return nil, outcome, err
	}

	if err := s.rules.ValidateEdit(inv, changes, actor, settings); err != nil {
		return nil, outcome, err
	}

	changed := changes.changedFields(inv)
	if len(changed) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, outcome, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return inv, outcome, nil
	}

	before := *inv
	applyChanges(inv, changes)

	// A moved period must still fit the contract and recomputes the amount
	// unless the edit pinned one explicitly.
	periodMoved := contains(changed, "period_start") || contains(changed, "period_end") || contains(changed, "contract_id")
	if periodMoved && inv.ContractID != nil {
		c, err := lockContract(ctx, tx, *inv.ContractID)
		if err != nil {
			return nil, outcome, err
		}
		existing, err := invoicePeriodsExcluding(ctx, tx, c.ID, inv.ID)
		if err != nil {
			return nil, outcome, err
		}
		if !settings.PreventOverlappingPeriods {
			existing = nil
		}
		if err := ValidatePeriod(*c, inv.Period(), existing); err != nil {
			return nil, outcome, err
		}
		if changes.Amount == nil {
			inv.Amount = AmountForPeriod(*c, inv.Period())
		}
	}

	if inv.TaxFromContract || inv.Tax == nil {
		inv.Total = inv.Amount
	} else {
		inv.Total = inv.Amount.Add(*inv.Tax)
	}

	now := s.now()
	_, err = tx.Exec(ctx, `
		UPDATE invoices SET
			contract_id = $2, number = $3,
			period_start = $4, period_end = $5, due = $6,
			amount = $7, tax = $8, tax_rate = $9, total = $10,
			notes = $11, updated_at = $12
		WHERE id = $1
	`, inv.ID, inv.ContractID, inv.Number,
		inv.PeriodStart, inv.PeriodEnd, inv.Due,
		inv.Amount, inv.Tax, inv.TaxRate, inv.Total,
		inv.Notes, now)
	if err != nil {
		return nil, outcome, fmt.Errorf("failed to update invoice: %w", err)
	}
	inv.UpdatedAt = now

	if err := insertChangeLogs(ctx, tx, &before, inv, changed, changes.EditReason, userID, now); err != nil {
		return nil, outcome, err
	}

	outcome.RequiresApproval = s.rules.RequiresApprovalAfterEdit(inv.Status, settings)
	outcome.Resent = s.rules.ShouldResendAfterEdit(inv.Status, settings) && !outcome.RequiresApproval

	// An edit that needs approval sends the invoice back to pending. This is a
	// system demotion recorded in the status log, not a caller transition.
	if outcome.RequiresApproval && inv.Status != StatusPending {
		from := inv.Status
		inv.Status = StatusPending
		if _, err := tx.Exec(ctx,
			`UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`,
			inv.ID, inv.Status, now,
		); err != nil {
			return nil, outcome, fmt.Errorf("failed to update invoice status: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_status_logs (invoice_id, from_status, to_status, reason, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, inv.ID, from, inv.Status, "requires approval after edit", userID, now); err != nil {
			return nil, outcome, fmt.Errorf("failed to insert status log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, outcome, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Delivery signals fire after commit; a broker hiccup must not undo the edit.
	if outcome.RequiresApproval {
		s.notifier.ApprovalRequested(ctx, inv)
	} else if outcome.Resent {
		s.notifier.InvoiceResent(ctx, inv, settings.DeliveryChannels())
	}
	return inv, outcome, nil
}

func applyChanges(inv *Invoice, ch InvoiceChanges) {
	if ch.ContractID != nil {
		inv.ContractID = ch.ContractID
	}
	if ch.Number != nil {
		inv.Number = *ch.Number
	}
	if ch.PeriodStart != nil {
		inv.PeriodStart = DateOnly(*ch.PeriodStart)
	}
	if ch.PeriodEnd != nil {
		inv.PeriodEnd = DateOnly(*ch.PeriodEnd)
	}
	if ch.Due != nil {
		inv.Due = DateOnly(*ch.Due)
	}
	if ch.Amount != nil {
		inv.Amount = ch.Amount.Round(2)
	}
	if ch.Tax != nil {
		t := ch.Tax.Round(2)
		inv.Tax = &t
	}
	if ch.TaxRate != nil {
		inv.TaxRate = ch.TaxRate
	}
	if ch.ClearTax {
		inv.Tax = nil
		inv.TaxRate = nil
	}
	if ch.Notes != nil {
		inv.Notes = *ch.Notes
	}
}

func contains(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func invoicePeriodsExcluding(ctx context.Context, q pgxQuerier, contractID, excludeInvoiceID int) ([]Period, error) {
	rows, err := q.Query(ctx,
		"SELECT period_start, period_end FROM invoices WHERE contract_id = $1 AND id <> $2 ORDER BY period_start",
		contractID, excludeInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice periods: %w", err)
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("failed to scan invoice period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// insertChangeLogs writes one audit row per changed field with its old and new
// value rendered as text.
func insertChangeLogs(ctx context.Context, tx pgx.Tx, before, after *Invoice, fields []string, reason string, userID *int, now time.Time) error {
	for _, field := range fields {
		oldVal, newVal := fieldValue(before, field), fieldValue(after, field)
		if oldVal == newVal {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_change_logs (invoice_id, field, old_value, new_value, reason, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, after.ID, field, oldVal, newVal, reason, userID, now)
		if err != nil {
			return fmt.Errorf("failed to insert change log: %w", err)
		}
	}
	return nil
}

func fieldValue(inv *Invoice, field string) string {
	switch field {
	case "contract_id":
		if inv.ContractID == nil {
			return ""
		}
		return fmt.Sprintf("%d", *inv.ContractID)
	case "number":
		return inv.Number
	case "period_start":
		return inv.PeriodStart.Format(time.DateOnly)
	case "period_end":
		return inv.PeriodEnd.Format(time.DateOnly)
	case "due":
		return inv.Due.Format(time.DateOnly)
	case "amount":
		return inv.Amount.StringFixed(2)
	case "tax":
		if inv.Tax == nil {
			return ""
		}
		return inv.Tax.StringFixed(2)
	case "tax_rate":
		if inv.TaxRate == nil {
			return ""
		}
		return inv.TaxRate.String()
	case "notes":
		return inv.Notes
	}
	return ""
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id int, actor Actor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := lockInvoice(ctx, tx, id)
	if err != nil {
		return err
	}
	if !s.rules.CanDelete(inv, actor) {
		return &DeleteDeniedError{Status: inv.Status}
	}

	for _, stmt := range []string{
		"DELETE FROM invoice_items WHERE invoice_id = $1",
		"DELETE FROM invoice_status_logs WHERE invoice_id = $1",
		"DELETE FROM invoice_change_logs WHERE invoice_id = $1",
		"DELETE FROM invoices WHERE id = $1",
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *invoiceService) UpdateStatus(ctx context.Context, id int, to InvoiceStatus, reason string, userID *int) (*Invoice, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown invoice status %q", to)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := transitionInvoice(ctx, tx, id, to, reason, userID, s.now())
	if err != nil {
		return nil, err
	}

	var channels []string
	if to == StatusSent {
		settings, err := s.settings.BillingSettings(ctx, inv.OwnershipID)
		if err != nil {
			return nil, err
		}
		channels = settings.DeliveryChannels()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if to == StatusSent {
		s.notifier.InvoiceIssued(ctx, inv, channels)
	}
	return inv, nil
}

// transitionInvoice moves a locked invoice to a new status, stamps paid_at on
// entry to paid, clears it on refund, and records the transition in the status
// log. Idempotent transitions (same status) are rejected by the transition
// table like any other illegal move.
func transitionInvoice(ctx context.Context, tx pgx.Tx, id int, to InvoiceStatus, reason string, userID *int, now time.Time) (*Invoice, error) {
	inv, err := lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(to) {
		return nil, &TransitionError{From: inv.Status, To: to}
	}

	from := inv.Status
	inv.Status = to
	switch to {
	case StatusPaid:
		t := now
		inv.PaidAt = &t
	case StatusRefunded:
		inv.PaidAt = nil
	}

	_, err = tx.Exec(ctx,
		"UPDATE invoices SET status = $2, paid_at = $3, updated_at = $4 WHERE id = $1",
		inv.ID, inv.Status, inv.PaidAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}
	inv.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO invoice_status_logs (invoice_id, from_status, to_status, reason, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inv.ID, from, to, reason, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert status log: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) MarkAsSent(ctx context.Context, id int, userID *int) (*Invoice, error) {
	return s.UpdateStatus(ctx, id, StatusSent, "marked as sent", userID)
}

func (s *invoiceService) MarkAsPaid(ctx context.Context, id int, userID *int) (*Invoice, error) {
	return s.UpdateStatus(ctx, id, StatusPaid, "marked as paid", userID)
}

func (s *invoiceService) CreateGenerated(ctx context.Context, c Contract, period BillingPeriod, settings BillingSettings) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockContract(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}
	if locked.Status != ContractActive {
		return nil, ErrContractNotBillable
	}

	existing, err := invoicePeriodsQ(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := ValidatePeriod(*locked, period.Period(), existing); err != nil {
		return nil, err
	}

	amount := AmountForPeriod(*locked, period.Period())
	now := s.now()
	inv := &Invoice{
		UUID:            uuid.NewString(),
		ContractID:      &locked.ID,
		OwnershipID:     locked.OwnershipID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		Due:             period.Due,
		Amount:          amount,
		TaxFromContract: true,
		Total:           amount,
		Status:          ClampInitialStatus(settings.DefaultStatus),
		GeneratedAt:     DateOnly(now),
	}
	if err := insertInvoice(ctx, tx, inv, now); err != nil {
		return nil, err
	}
	if err := insertRentItems(ctx, tx, inv, locked.Units); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) ExistsForPeriod(ctx context.Context, contractID int, period Period) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE contract_id = $1 AND period_start <= $2 AND period_end >= $3
		)
	`, contractID, period.End, period.Start).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice period: %w", err)
	}
	return exists, nil
}
