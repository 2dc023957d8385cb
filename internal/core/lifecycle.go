package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Capability names checked against the acting user.
const (
	CapabilityEditSent = "invoices.editSent"
	CapabilityDelete   = "invoices.delete"
)

// Actor is the authorization contract with the surrounding user/role system.
type Actor interface {
	Can(capability string) bool
}

// SystemActor is the unattended scheduler identity. It never edits or deletes,
// so it holds no capabilities.
type SystemActor struct{}

func (SystemActor) Can(string) bool { return false }

// InvoiceChanges is a sparse edit request: nil fields are untouched. Clearing
// a nullable column is expressed with the dedicated Clear flags rather than
// double pointers.
type InvoiceChanges struct {
	ContractID  *int
	Number      *string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Due         *time.Time
	Amount      *decimal.Decimal
	Tax         *decimal.Decimal
	TaxRate     *decimal.Decimal
	ClearTax    bool
	Notes       *string
	EditReason  string
}

// changedFields lists the fields this edit would actually change on inv.
func (ch InvoiceChanges) changedFields(inv *Invoice) []string {
	var fields []string
	if ch.ContractID != nil && (inv.ContractID == nil || *ch.ContractID != *inv.ContractID) {
		fields = append(fields, "contract_id")
	}
	if ch.Number != nil && *ch.Number != inv.Number {
		fields = append(fields, "number")
	}
	if ch.PeriodStart != nil && !DateOnly(*ch.PeriodStart).Equal(DateOnly(inv.PeriodStart)) {
		fields = append(fields, "period_start")
	}
	if ch.PeriodEnd != nil && !DateOnly(*ch.PeriodEnd).Equal(DateOnly(inv.PeriodEnd)) {
		fields = append(fields, "period_end")
	}
	if ch.Due != nil && !DateOnly(*ch.Due).Equal(DateOnly(inv.Due)) {
		fields = append(fields, "due")
	}
	if ch.Amount != nil && !ch.Amount.Equal(inv.Amount) {
		fields = append(fields, "amount")
	}
	if ch.Tax != nil && (inv.Tax == nil || !ch.Tax.Equal(*inv.Tax)) {
		fields = append(fields, "tax")
	}
	if ch.TaxRate != nil && (inv.TaxRate == nil || !ch.TaxRate.Equal(*inv.TaxRate)) {
		fields = append(fields, "tax_rate")
	}
	if ch.ClearTax && (inv.Tax != nil || inv.TaxRate != nil) {
		fields = append(fields, "tax")
	}
	if ch.Notes != nil && *ch.Notes != inv.Notes {
		fields = append(fields, "notes")
	}
	return fields
}

// EditRules enforces the status-gated edit/delete policy. All decisions are
// pure over the invoice, the actor's capabilities, and the ownership's billing
// settings. Persistence never participates.
type EditRules struct{}

// CanEdit reports whether the actor may edit the invoice at all.
//
// Sent, viewed and overdue invoices need both the edit-sent capability and the
// ownership's CanEditSent setting. Partially paid invoices are editable but
// ValidateEdit restricts them to notes and due date. Draft and pending follow
// the CanEditDraft setting. Paid, cancelled and refunded invoices are never
// editable.
func (EditRules) CanEdit(inv *Invoice, actor Actor, settings BillingSettings) bool {
	switch inv.Status {
	case StatusSent, StatusViewed, StatusOverdue:
		if !actor.Can(CapabilityEditSent) {
			return false
		}
		return settings.CanEditSent
	case StatusPartial:
		return true
	case StatusDraft, StatusPending:
		return settings.CanEditDraft
	case StatusPaid, StatusCancelled, StatusRefunded:
		return false
	}
	return false
}

// CanDelete reports whether the actor may delete the invoice: the status must
// allow deletion and the actor must hold the delete capability.
func (EditRules) CanDelete(inv *Invoice, actor Actor) bool {
	return inv.Status.AllowsDeletion() && actor.Can(CapabilityDelete)
}

// ValidateEdit authorizes a concrete edit. Beyond CanEdit it enforces the
// per-status field restrictions: partial invoices accept only notes/due,
// amounts are frozen once paid, and period or contract references move only
// while the invoice is still draft or pending.
func (r EditRules) ValidateEdit(inv *Invoice, changes InvoiceChanges, actor Actor, settings BillingSettings) error {
	if !r.CanEdit(inv, actor, settings) {
		return &EditDeniedError{Status: inv.Status}
	}

	changed := changes.changedFields(inv)

	if inv.Status == StatusPartial {
		for _, field := range changed {
			if field != "notes" && field != "due" {
				return &FieldNotEditableError{Field: field, Status: inv.Status}
			}
		}
		return nil
	}

	for _, field := range changed {
		switch field {
		case "amount":
			if inv.Status == StatusPaid {
				return &FieldNotEditableError{Field: field, Status: inv.Status}
			}
		case "period_start", "period_end", "contract_id":
			if inv.Status != StatusDraft && inv.Status != StatusPending {
				return &FieldNotEditableError{Field: field, Status: inv.Status}
			}
		}
	}
	return nil
}

// RequiresApprovalAfterEdit reports whether an edited invoice must be routed
// back through approval. Only meaningful for sent/viewed/overdue invoices; the
// rules only signal, the invoice service performs the demotion.
func (EditRules) RequiresApprovalAfterEdit(status InvoiceStatus, settings BillingSettings) bool {
	switch status {
	case StatusSent, StatusViewed, StatusOverdue:
		return settings.RequireApprovalAfterEdit
	}
	return false
}

// ShouldResendAfterEdit reports whether an edited invoice should be
// re-delivered to the tenant. Signal only, like RequiresApprovalAfterEdit.
func (EditRules) ShouldResendAfterEdit(status InvoiceStatus, settings BillingSettings) bool {
	switch status {
	case StatusSent, StatusViewed, StatusOverdue:
		return settings.AutoResendAfterEdit
	}
	return false
}

// EditableFields lists the fields an edit may touch in the invoice's current
// status, for API clients that want to grey out the rest.
func (EditRules) EditableFields(inv *Invoice) []string {
	switch inv.Status {
	case StatusDraft, StatusPending:
		return []string{"contract_id", "number", "period_start", "period_end", "due", "amount", "tax", "tax_rate", "notes"}
	case StatusSent, StatusViewed, StatusOverdue:
		return []string{"due", "notes", "amount", "tax", "tax_rate"}
	case StatusPartial:
		return []string{"notes", "due"}
	case StatusPaid, StatusCancelled, StatusRefunded:
		return nil
	}
	return nil
}

// EditOutcome carries the post-edit side-effect signals back to the caller.
type EditOutcome struct {
	RequiresApproval bool `json:"requires_approval"`
	Resent           bool `json:"resent"`
}
