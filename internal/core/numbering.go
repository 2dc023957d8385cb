package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Invoice numbers are ownership-and-year scoped:
// INV-{ownership:3digits}-{year}-{sequence:5digits}, e.g. INV-001-2025-00042.

// FormatInvoiceNumber renders the canonical invoice number.
func FormatInvoiceNumber(ownershipID, year, sequence int) string {
	return fmt.Sprintf("INV-%03d-%d-%05d", ownershipID, year, sequence)
}

// InvoiceNumberPrefix is the ownership+year prefix shared by a sequence.
func InvoiceNumberPrefix(ownershipID, year int) string {
	return fmt.Sprintf("INV-%03d-%d-", ownershipID, year)
}

// SequenceFromNumber extracts the trailing sequence from an invoice number.
func SequenceFromNumber(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("malformed invoice number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", number, err)
	}
	return seq, nil
}

// NextInvoiceNumber finds the highest existing number for the ownership+year
// prefix and returns the next one; the first invoice of a year gets sequence 1.
//
// This is not atomic across concurrent callers on its own. Callers must run
// generation and insert in one transaction; a collision then surfaces as a
// unique-constraint failure at insert time, where the insert path retries once
// with a recomputed sequence before giving up with ErrDuplicateInvoiceNumber.
func NextInvoiceNumber(ctx context.Context, q pgxQuerier, ownershipID, year int) (string, error) {
	prefix := InvoiceNumberPrefix(ownershipID, year)

	var last string
	err := q.QueryRow(ctx, `
		SELECT number
		FROM invoices
		WHERE ownership_id = $1 AND number LIKE $2 || '%'
		ORDER BY number DESC
		LIMIT 1
	`, ownershipID, prefix).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FormatInvoiceNumber(ownershipID, year, 1), nil
		}
		return "", fmt.Errorf("failed to find last invoice number: %w", err)
	}

	seq, err := SequenceFromNumber(last)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(ownershipID, year, seq+1), nil
}
