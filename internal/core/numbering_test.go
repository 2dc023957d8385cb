package core_test

import (
	"testing"

	"owners-billing/internal/core"
)

func TestFormatInvoiceNumber(t *testing.T) {
	tests := []struct {
		ownershipID int
		year        int
		sequence    int
		want        string
	}{
		{1, 2025, 1, "INV-001-2025-00001"},
		{1, 2025, 42, "INV-001-2025-00042"},
		{12, 2026, 99999, "INV-012-2026-99999"},
		{123, 2025, 100000, "INV-123-2025-100000"}, // sequence may outgrow its padding
	}

	for _, tt := range tests {
		got := core.FormatInvoiceNumber(tt.ownershipID, tt.year, tt.sequence)
		if got != tt.want {
			t.Errorf("FormatInvoiceNumber(%d, %d, %d) = %s, want %s",
				tt.ownershipID, tt.year, tt.sequence, got, tt.want)
		}
	}
}

func TestInvoiceNumberPrefix(t *testing.T) {
	if got := core.InvoiceNumberPrefix(7, 2025); got != "INV-007-2025-" {
		t.Errorf("expected INV-007-2025-, got %s", got)
	}
}

func TestSequenceFromNumber(t *testing.T) {
	tests := []struct {
		number  string
		want    int
		wantErr bool
	}{
		{"INV-001-2025-00001", 1, false},
		{"INV-001-2025-00042", 42, false},
		{"INV-123-2025-100000", 100000, false},
		{"garbage", 0, true},
		{"INV-001-2025-", 0, true},
		{"INV-001-2025-abc", 0, true},
	}

	for _, tt := range tests {
		got, err := core.SequenceFromNumber(tt.number)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SequenceFromNumber(%q): expected error, got %d", tt.number, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SequenceFromNumber(%q): %v", tt.number, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SequenceFromNumber(%q) = %d, want %d", tt.number, got, tt.want)
		}
	}
}

func TestNumberRoundTrip(t *testing.T) {
	for _, seq := range []int{1, 9, 10, 99999, 123456} {
		number := core.FormatInvoiceNumber(5, 2025, seq)
		got, err := core.SequenceFromNumber(number)
		if err != nil {
			t.Fatalf("SequenceFromNumber(%q): %v", number, err)
		}
		if got != seq {
			t.Errorf("round trip for %d gave %d", seq, got)
		}
	}
}
