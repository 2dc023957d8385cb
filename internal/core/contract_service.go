package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContractService is the read-only view of contracts the billing engine needs.
// Contract writes belong to the contract module and never happen here.
type ContractService interface {
	GetContract(ctx context.Context, contractID int) (*Contract, error)
	GetContractByUUID(ctx context.Context, uuid string) (*Contract, error)
	// DueContracts returns active contracts whose [start, end] window contains today.
	DueContracts(ctx context.Context, today time.Time) ([]Contract, error)
	// LastInvoice returns the contract's most recent invoice by period_end, or
	// nil when none exists.
	LastInvoice(ctx context.Context, contractID int) (*Invoice, error)
	// InvoicePeriods returns every invoice period recorded for the contract.
	InvoicePeriods(ctx context.Context, contractID int) ([]Period, error)
}

type contractService struct {
	pool *pgxpool.Pool
}

func NewContractService(pool *pgxpool.Pool) ContractService {
	return &contractService{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const contractColumns = `
	c.id, c.uuid, c.ownership_id, c.tenant_id, c.number,
	c.start, c.end,
	COALESCE(c.base_rent, 0), COALESCE(c.rent_fees, 0), COALESCE(c.vat_amount, 0),
	COALESCE(c.total_rent, 0), c.payment_frequency, c.status
`

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	err := row.Scan(
		&c.ID, &c.UUID, &c.OwnershipID, &c.TenantID, &c.Number,
		&c.Start, &c.End,
		&c.BaseRent, &c.RentFees, &c.VATAmount,
		&c.TotalRent, &c.PaymentFrequency, &c.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}
	return &c, nil
}

func (s *contractService) GetContract(ctx context.Context, contractID int) (*Contract, error) {
	return getContractQ(ctx, s.pool, contractID)
}

func getContractQ(ctx context.Context, q pgxQuerier, contractID int) (*Contract, error) {
	c, err := scanContract(q.QueryRow(ctx,
		"SELECT "+contractColumns+" FROM contracts c WHERE c.id = $1", contractID))
	if err != nil {
		return nil, err
	}
	if err := loadContractUnits(ctx, q, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *contractService) GetContractByUUID(ctx context.Context, uuid string) (*Contract, error) {
	c, err := scanContract(s.pool.QueryRow(ctx,
		"SELECT "+contractColumns+" FROM contracts c WHERE c.uuid = $1", uuid))
	if err != nil {
		return nil, err
	}
	if err := loadContractUnits(ctx, s.pool, c); err != nil {
		return nil, err
	}
	return c, nil
}

func loadContractUnits(ctx context.Context, q pgxQuerier, c *Contract) error {
	rows, err := q.Query(ctx, `
		SELECT cu.unit_id, COALESCE(u.number, ''), cu.rent_amount
		FROM contract_units cu
		JOIN units u ON u.id = cu.unit_id
		WHERE cu.contract_id = $1
		ORDER BY cu.unit_id
	`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to query contract units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cu ContractUnit
		if err := rows.Scan(&cu.UnitID, &cu.UnitNumber, &cu.RentAmount); err != nil {
			return fmt.Errorf("failed to scan contract unit: %w", err)
		}
		c.Units = append(c.Units, cu)
	}
	return rows.Err()
}

func (s *contractService) DueContracts(ctx context.Context, today time.Time) ([]Contract, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM contracts c
		WHERE c.status = $1 AND c.start <= $2 AND c.end >= $2
		ORDER BY c.ownership_id, c.id
	`, ContractActive, DateOnly(today))
	if err != nil {
		return nil, fmt.Errorf("failed to query due contracts: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(
			&c.ID, &c.UUID, &c.OwnershipID, &c.TenantID, &c.Number,
			&c.Start, &c.End,
			&c.BaseRent, &c.RentFees, &c.VATAmount,
			&c.TotalRent, &c.PaymentFrequency, &c.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}

	for i := range contracts {
		if err := loadContractUnits(ctx, s.pool, &contracts[i]); err != nil {
			return nil, err
		}
	}
	return contracts, nil
}

func (s *contractService) LastInvoice(ctx context.Context, contractID int) (*Invoice, error) {
	return lastInvoiceQ(ctx, s.pool, contractID)
}

func lastInvoiceQ(ctx context.Context, q pgxQuerier, contractID int) (*Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.contract_id = $1 ORDER BY i.period_end DESC LIMIT 1",
		contractID))
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

func (s *contractService) InvoicePeriods(ctx context.Context, contractID int) ([]Period, error) {
	return invoicePeriodsQ(ctx, s.pool, contractID)
}

func invoicePeriodsQ(ctx context.Context, q pgxQuerier, contractID int) ([]Period, error) {
	rows, err := q.Query(ctx,
		"SELECT period_start, period_end FROM invoices WHERE contract_id = $1 ORDER BY period_start",
		contractID)
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
