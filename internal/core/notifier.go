package core

import "context"

// Notifier delivers invoice lifecycle signals to whatever carries them to
// tenants and staff. The engine only decides WHEN to signal and which channels
// the ownership has enabled; actual delivery happens downstream of the broker.
type Notifier interface {
	InvoiceIssued(ctx context.Context, inv *Invoice, channels []string) error
	InvoiceResent(ctx context.Context, inv *Invoice, channels []string) error
	ApprovalRequested(ctx context.Context, inv *Invoice) error
}

// NopNotifier drops every signal. Used when no broker is configured and in
// tests that do not assert on notifications.
type NopNotifier struct{}

func (NopNotifier) InvoiceIssued(ctx context.Context, inv *Invoice, channels []string) error {
	return nil
}

func (NopNotifier) InvoiceResent(ctx context.Context, inv *Invoice, channels []string) error {
	return nil
}

func (NopNotifier) ApprovalRequested(ctx context.Context, inv *Invoice) error { return nil }
