package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"owners-billing/internal/core"
)

// Exchange and routing keys for invoice lifecycle events. Downstream delivery
// workers bind per key; the event names the channels the ownership enabled.
const (
	Exchange             = "billing.events"
	KeyInvoiceSent       = "invoice.sent"
	KeyInvoiceResent     = "invoice.resent"
	KeyApprovalRequested = "invoice.approval_requested"
)

// invoiceEvent is the JSON payload published for every invoice signal.
type invoiceEvent struct {
	InvoiceUUID string   `json:"invoice_uuid"`
	Number      string   `json:"number"`
	OwnershipID int      `json:"ownership_id"`
	ContractID  *int     `json:"contract_id,omitempty"`
	Total       string   `json:"total"`
	Due         string   `json:"due"`
	Status      string   `json:"status"`
	Channels    []string `json:"channels,omitempty"`
	OccurredAt  string   `json:"occurred_at"`
}

// Publisher sends invoice events to a RabbitMQ topic exchange. It implements
// core.Notifier.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  zerolog.Logger
}

// NewPublisher connects to the broker and declares the billing exchange.
func NewPublisher(amqpURL string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, logger: logger}, nil
}

func (p *Publisher) InvoiceIssued(ctx context.Context, inv *core.Invoice, channels []string) error {
	return p.publish(ctx, KeyInvoiceSent, inv, channels)
}

func (p *Publisher) InvoiceResent(ctx context.Context, inv *core.Invoice, channels []string) error {
	return p.publish(ctx, KeyInvoiceResent, inv, channels)
}

func (p *Publisher) ApprovalRequested(ctx context.Context, inv *core.Invoice) error {
	return p.publish(ctx, KeyApprovalRequested, inv, nil)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, inv *core.Invoice, channels []string) error {
	event := invoiceEvent{
		InvoiceUUID: inv.UUID,
		Number:      inv.Number,
		OwnershipID: inv.OwnershipID,
		ContractID:  inv.ContractID,
		Total:       inv.Total.StringFixed(2),
		Due:         inv.Due.Format(time.DateOnly),
		Status:      string(inv.Status),
		Channels:    channels,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Str("number", inv.Number).
			Msg("failed to publish invoice event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().Str("routing_key", routingKey).Str("number", inv.Number).
		Msg("published invoice event")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
