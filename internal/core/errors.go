package core

import (
	"errors"
	"fmt"
	"time"
)

// PeriodReason classifies why a candidate period was rejected.
type PeriodReason string

const (
	PeriodOutOfOrder    PeriodReason = "out-of-order"
	PeriodOutsideBounds PeriodReason = "outside-contract-bounds"
	PeriodOverlapping   PeriodReason = "overlapping"
)

// PeriodError is returned when a candidate invoice period fails validation.
// No partial state is ever written when one is returned.
type PeriodError struct {
	Reason PeriodReason
	Period Period
}

func (e *PeriodError) Error() string {
	switch e.Reason {
	case PeriodOutOfOrder:
		return "invoice period start must be before or equal to end"
	case PeriodOutsideBounds:
		return "invoice period must be within contract dates"
	case PeriodOverlapping:
		return fmt.Sprintf("invoice period %s to %s overlaps an existing invoice",
			e.Period.Start.Format(time.DateOnly), e.Period.End.Format(time.DateOnly))
	}
	return "invalid invoice period"
}

// FieldNotEditableError is returned when an edit touches a field the invoice's
// current status forbids changing.
type FieldNotEditableError struct {
	Field  string
	Status InvoiceStatus
}

func (e *FieldNotEditableError) Error() string {
	return fmt.Sprintf("field %q cannot be changed while invoice is %s", e.Field, e.Status)
}

// EditDeniedError is returned when the invoice's status, the ownership settings,
// or the actor's capabilities forbid editing it at all.
type EditDeniedError struct {
	Status InvoiceStatus
}

func (e *EditDeniedError) Error() string {
	return fmt.Sprintf("invoice cannot be edited in %s status", e.Status)
}

// DeleteDeniedError is the deletion counterpart of EditDeniedError.
type DeleteDeniedError struct {
	Status InvoiceStatus
}

func (e *DeleteDeniedError) Error() string {
	return fmt.Sprintf("invoice cannot be deleted in %s status", e.Status)
}

// TransitionError is returned for an illegal status transition.
type TransitionError struct {
	From InvoiceStatus
	To   InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition invoice from %s to %s", e.From, e.To)
}

var (
	// ErrDuplicateInvoiceNumber surfaces a number-uniqueness violation at
	// insert time, after the single recompute-and-retry has also collided.
	ErrDuplicateInvoiceNumber = errors.New("duplicate invoice number")

	// ErrContractNotBillable marks a contract that is not active or whose
	// window does not admit invoicing.
	ErrContractNotBillable = errors.New("contract is not billable")

	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrContractNotFound = errors.New("contract not found")
)

// IsValidationError reports whether err belongs to the validation category
// (a rejected request surfaced with a reason code rather than silently coerced).
func IsValidationError(err error) bool {
	var pe *PeriodError
	var fe *FieldNotEditableError
	var te *TransitionError
	return errors.As(err, &pe) || errors.As(err, &fe) || errors.As(err, &te)
}

// IsPermissionError reports whether err is an authorization/setting gate failure.
func IsPermissionError(err error) bool {
	var ee *EditDeniedError
	var de *DeleteDeniedError
	return errors.As(err, &ee) || errors.As(err, &de)
}
