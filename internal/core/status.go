package core

import "fmt"

// InvoiceStatus is the closed invoice lifecycle enumeration. The usual path is
// draft → pending → sent → viewed → (partial) → paid; overdue is reached from
// sent/viewed/partial by time passing, and cancelled/refunded are the alternate
// terminals.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusPending   InvoiceStatus = "pending"
	StatusSent      InvoiceStatus = "sent"
	StatusViewed    InvoiceStatus = "viewed"
	StatusPartial   InvoiceStatus = "partial"
	StatusPaid      InvoiceStatus = "paid"
	StatusOverdue   InvoiceStatus = "overdue"
	StatusCancelled InvoiceStatus = "cancelled"
	StatusRefunded  InvoiceStatus = "refunded"
)

// AllStatuses lists every lifecycle state, in lifecycle order.
func AllStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		StatusDraft, StatusPending, StatusSent, StatusViewed, StatusPartial,
		StatusPaid, StatusOverdue, StatusCancelled, StatusRefunded,
	}
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSent, StatusViewed, StatusPartial,
		StatusPaid, StatusOverdue, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// ParseInvoiceStatus converts a raw string into an InvoiceStatus.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	s := InvoiceStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown invoice status %q", raw)
	}
	return s, nil
}

// AllowsEditing reports whether the status permits edits without any special
// permission. Sent/viewed/overdue invoices are editable only through the
// edit-sent gate in EditRules, so they report false here.
func (s InvoiceStatus) AllowsEditing() bool {
	switch s {
	case StatusDraft, StatusPending:
		return true
	case StatusSent, StatusViewed, StatusPartial, StatusPaid, StatusOverdue,
		StatusCancelled, StatusRefunded:
		return false
	}
	return false
}

// AllowsDeletion reports whether invoices in this status may be deleted at all.
func (s InvoiceStatus) AllowsDeletion() bool {
	switch s {
	case StatusDraft, StatusPending, StatusCancelled:
		return true
	case StatusSent, StatusViewed, StatusPartial, StatusPaid, StatusOverdue,
		StatusRefunded:
		return false
	}
	return false
}

// IsFinal reports whether the status is terminal.
func (s InvoiceStatus) IsFinal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusRefunded:
		return true
	case StatusDraft, StatusPending, StatusSent, StatusViewed, StatusPartial,
		StatusOverdue:
		return false
	}
	return false
}

// AllowedNextStatuses returns the legal transition targets from this status.
func (s InvoiceStatus) AllowedNextStatuses() []InvoiceStatus {
	switch s {
	case StatusDraft:
		return []InvoiceStatus{StatusPending, StatusSent, StatusCancelled}
	case StatusPending:
		return []InvoiceStatus{StatusSent, StatusCancelled}
	case StatusSent:
		return []InvoiceStatus{StatusViewed, StatusPartial, StatusPaid, StatusOverdue, StatusCancelled}
	case StatusViewed:
		return []InvoiceStatus{StatusPartial, StatusPaid, StatusOverdue}
	case StatusPartial:
		return []InvoiceStatus{StatusPaid, StatusOverdue}
	case StatusOverdue:
		return []InvoiceStatus{StatusPartial, StatusPaid, StatusCancelled}
	case StatusPaid:
		return []InvoiceStatus{StatusRefunded}
	case StatusCancelled, StatusRefunded:
		return nil
	}
	return nil
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range s.AllowedNextStatuses() {
		if allowed == next {
			return true
		}
	}
	return false
}

// allowedInitialStatuses are the only statuses an invoice may be created with.
// Everything else must be reached through transitions.
var allowedInitialStatuses = []InvoiceStatus{StatusDraft, StatusPending, StatusSent}

// ClampInitialStatus returns s if it is a legal creation status, otherwise draft.
func ClampInitialStatus(s InvoiceStatus) InvoiceStatus {
	for _, allowed := range allowedInitialStatuses {
		if s == allowed {
			return s
		}
	}
	return StatusDraft
}
