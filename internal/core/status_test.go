package core_test

import (
	"testing"

	"owners-billing/internal/core"
)

func TestInvoiceStatus_TransitionTable(t *testing.T) {
	allowed := map[core.InvoiceStatus][]core.InvoiceStatus{
		core.StatusDraft:     {core.StatusPending, core.StatusSent, core.StatusCancelled},
		core.StatusPending:   {core.StatusSent, core.StatusCancelled},
		core.StatusSent:      {core.StatusViewed, core.StatusPartial, core.StatusPaid, core.StatusOverdue, core.StatusCancelled},
		core.StatusViewed:    {core.StatusPartial, core.StatusPaid, core.StatusOverdue},
		core.StatusPartial:   {core.StatusPaid, core.StatusOverdue},
		core.StatusOverdue:   {core.StatusPartial, core.StatusPaid, core.StatusCancelled},
		core.StatusPaid:      {core.StatusRefunded},
		core.StatusCancelled: {},
		core.StatusRefunded:  {},
	}

	for _, from := range core.AllStatuses() {
		allowedSet := map[core.InvoiceStatus]bool{}
		for _, to := range allowed[from] {
			allowedSet[to] = true
		}
		for _, to := range core.AllStatuses() {
			got := from.CanTransitionTo(to)
			if got != allowedSet[to] {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, allowedSet[to])
			}
		}
		// A status never transitions to itself.
		if from.CanTransitionTo(from) {
			t.Errorf("%s should not transition to itself", from)
		}
	}
}

func TestInvoiceStatus_Predicates(t *testing.T) {
	tests := []struct {
		status   core.InvoiceStatus
		editing  bool
		deletion bool
		final    bool
	}{
		{core.StatusDraft, true, true, false},
		{core.StatusPending, true, true, false},
		{core.StatusSent, false, false, false},
		{core.StatusViewed, false, false, false},
		{core.StatusPartial, false, false, false},
		{core.StatusPaid, false, false, true},
		{core.StatusOverdue, false, false, false},
		{core.StatusCancelled, false, true, true},
		{core.StatusRefunded, false, false, true},
	}

	for _, tt := range tests {
		if got := tt.status.AllowsEditing(); got != tt.editing {
			t.Errorf("%s.AllowsEditing() = %v, want %v", tt.status, got, tt.editing)
		}
		if got := tt.status.AllowsDeletion(); got != tt.deletion {
			t.Errorf("%s.AllowsDeletion() = %v, want %v", tt.status, got, tt.deletion)
		}
		if got := tt.status.IsFinal(); got != tt.final {
			t.Errorf("%s.IsFinal() = %v, want %v", tt.status, got, tt.final)
		}
	}
}

func TestParseInvoiceStatus(t *testing.T) {
	if _, err := core.ParseInvoiceStatus("sent"); err != nil {
		t.Errorf("expected sent to parse: %v", err)
	}
	if _, err := core.ParseInvoiceStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := core.ParseInvoiceStatus(""); err == nil {
		t.Error("expected error for empty status")
	}
}

func TestClampInitialStatus(t *testing.T) {
	tests := []struct {
		in   core.InvoiceStatus
		want core.InvoiceStatus
	}{
		{core.StatusDraft, core.StatusDraft},
		{core.StatusPending, core.StatusPending},
		{core.StatusSent, core.StatusSent},
		{core.StatusPaid, core.StatusDraft},
		{core.StatusOverdue, core.StatusDraft},
		{core.StatusCancelled, core.StatusDraft},
	}
	for _, tt := range tests {
		if got := core.ClampInitialStatus(tt.in); got != tt.want {
			t.Errorf("ClampInitialStatus(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
