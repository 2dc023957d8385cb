package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// OverdueChecker sweeps open invoices past their due date into overdue status.
type OverdueChecker struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	now    func() time.Time
}

func NewOverdueChecker(pool *pgxpool.Pool, logger zerolog.Logger) *OverdueChecker {
	return &OverdueChecker{pool: pool, logger: logger, now: time.Now}
}

func (c *OverdueChecker) WithClock(now func() time.Time) *OverdueChecker {
	c.now = now
	return c
}

// Run marks every sent, viewed or partially paid invoice whose due date has
// passed as overdue. Each invoice transitions in its own transaction so one
// bad row cannot roll back the sweep.
func (c *OverdueChecker) Run(ctx context.Context) (int, error) {
	today := DateOnly(c.now())

	rows, err := c.pool.Query(ctx, `
		SELECT id FROM invoices
		WHERE status IN ($1, $2, $3) AND due < $4
		ORDER BY id
	`, StatusSent, StatusViewed, StatusPartial, today)
	if err != nil {
		return 0, fmt.Errorf("failed to query overdue candidates: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating overdue candidates: %w", err)
	}

	marked := 0
	for _, id := range ids {
		if err := c.markOne(ctx, id); err != nil {
			c.logger.Error().Err(err).Int("invoice_id", id).Msg("failed to mark invoice overdue")
			continue
		}
		marked++
	}

	c.logger.Info().Int("candidates", len(ids)).Int("marked", marked).Msg("overdue sweep complete")
	return marked, nil
}

func (c *OverdueChecker) markOne(ctx context.Context, id int) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := transitionInvoice(ctx, tx, id, StatusOverdue, "past due date", nil, c.now()); err != nil {
		// The status may have moved (e.g. to paid) between the scan and the
		// lock. Nothing to do then.
		var te *TransitionError
		if errors.As(err, &te) {
			return nil
		}
		return err
	}
	return tx.Commit(ctx)
}
