package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/logging"
	"github.com/iliyamo/adas-events/internal/model"
	"github.com/iliyamo/adas-events/internal/ticketing"
)

// Publisher sends persistent JSON messages to durable queues.  It dials per
// publish: ticket events are low volume and this keeps the request path
// free of connection state.
type Publisher struct {
	url    string
	logger *zap.Logger
}

func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logging.OrNop(logger).Named("publisher")}
}

// TicketIssued implements ticketing.Notifier.
func (p *Publisher) TicketIssued(ctx context.Context, n ticketing.Issued) error {
	return p.publish(ctx, TicketIssuedQueue, IssuedEventFrom(n))
}

// ReconciliationOpened implements ticketing.Notifier.
func (p *Publisher) ReconciliationOpened(ctx context.Context, c model.ReconciliationCase) error {
	return p.publish(ctx, ReconciliationQueue, ReconciliationEventFrom(c))
}

func IssuedEventFrom(n ticketing.Issued) TicketIssuedEvent {
	a := n.Attendee
	return TicketIssuedEvent{
		TicketID:    a.TicketID,
		EventID:     a.EventID,
		EventTitle:  n.Event.Title,
		TierID:      a.TierID,
		TierName:    n.Tier.Name,
		UserID:      a.UserID,
		Email:       a.Email,
		Quantity:    a.Quantity,
		AmountMinor: a.AmountMinor,
		Reference:   a.Reference(),
		IssuedAt:    a.PurchasedAt.UTC().Format(time.RFC3339),
	}
}

func ReconciliationEventFrom(c model.ReconciliationCase) ReconciliationEvent {
	return ReconciliationEvent{
		CaseID:      c.ID,
		Reference:   c.Reference,
		EventID:     c.EventID,
		TierID:      c.TierID,
		BuyerID:     c.BuyerID,
		Quantity:    c.Quantity,
		AmountMinor: c.AmountMinor,
		Reason:      c.Reason,
		OpenedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("dial failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = ch.PublishWithContext(pctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish failed", zap.String("queue", queue), zap.Error(err))
	}
	return err
}
