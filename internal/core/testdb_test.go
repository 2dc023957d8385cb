package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// testContractUUID matches the contract row seeded by setupTestDB.
const testContractUUID = "11111111-1111-1111-1111-111111111111"

// setupTestDB connects to the dedicated test database and reseeds it. Set
// TEST_DATABASE_URL (with migrations applied) to run the integration tests.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE invoice_change_logs, invoice_status_logs, invoice_items, invoices,
			contract_units, contracts, units, tenants, users, system_settings, ownerships CASCADE;

		INSERT INTO ownerships (id, uuid, name) VALUES
			(1, '00000000-0000-0000-0000-000000000001', 'Test Ownership');

		INSERT INTO users (id, uuid, ownership_id, name, email) VALUES
			(1, '00000000-0000-0000-0000-000000000011', 1, 'Test User', 'user@example.com');

		INSERT INTO tenants (id, uuid, ownership_id, name, email) VALUES
			(1, '00000000-0000-0000-0000-000000000021', 1, 'Test Tenant', 'tenant@example.com');

		INSERT INTO units (id, uuid, ownership_id, number) VALUES
			(1, '00000000-0000-0000-0000-000000000031', 1, 'A-101'),
			(2, '00000000-0000-0000-0000-000000000032', 1, 'A-102');

		INSERT INTO contracts (id, uuid, ownership_id, tenant_id, number, "start", "end",
			base_rent, rent_fees, vat_amount, total_rent, payment_frequency, status)
		VALUES
			(1, '11111111-1111-1111-1111-111111111111', 1, 1, 'CT-2025-001',
			 '2025-01-01', '2025-12-31', 50000, 2000, 8000, 60000, 'quarterly', 'active');

		INSERT INTO contract_units (contract_id, unit_id, rent_amount) VALUES
			(1, 1, 30000),
			(1, 2, 30000);

		INSERT INTO system_settings (ownership_id, key, value) VALUES
			(NULL, 'invoice_due_days_after_period_start', '10'),
			(NULL, 'invoice_auto_generation_mode', 'disabled'),
			(NULL, 'invoice_generation_days_before_due', '5'),
			(NULL, 'invoice_prevent_overlapping_periods', 'true'),
			(NULL, 'invoice_allow_edit_draft', 'true'),
			(NULL, 'invoice_allow_edit_sent', 'false'),
			(NULL, 'invoice_require_approval_after_edit', 'true'),
			(NULL, 'invoice_default_status', 'draft');

		SELECT setval('invoices_id_seq', 1, false);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}
