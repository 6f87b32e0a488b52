package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/logging"
)

// Consumer drains the ticket queues into append-only log files under dir.
type Consumer struct {
	url    string
	dir    string
	logger *zap.Logger
}

func NewConsumer(url, dir string, logger *zap.Logger) *Consumer {
	if dir == "" {
		dir = "logs"
	}
	return &Consumer{url: url, dir: dir, logger: logging.OrNop(logger).Named("consumer")}
}

// Run dials the broker and consumes until ctx ends, reconnecting with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("dial broker failed", zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("set qos failed", zap.Error(err))
	}

	issued, err := c.subscribe(ch, TicketIssuedQueue)
	if err != nil {
		return err
	}
	recon, err := c.subscribe(ch, ReconciliationQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-issued:
			if !ok {
				return errors.New("issued deliveries closed")
			}
			c.settle(d, c.HandleIssued(d.Body))
		case d, ok := <-recon:
			if !ok {
				return errors.New("reconciliation deliveries closed")
			}
			c.settle(d, c.HandleReconciliation(d.Body))
		}
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

func (c *Consumer) settle(d amqp.Delivery, err error) {
	if err != nil {
		c.logger.Error("handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false) // dropped, not requeued, to avoid a hot loop
		return
	}
	_ = d.Ack(false)
}

// HandleIssued appends one line per issued ticket to tickets.log.
func (c *Consumer) HandleIssued(body []byte) error {
	var ev TicketIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ref := ev.Reference
	if ref == "" {
		ref = "free"
	}
	line := fmt.Sprintf("[%s] Ticket issued | ticket_id=%s | event_id=%s | event=%q | tier=%q | user_id=%s | quantity=%d | amount=%d minor | reference=%s\n",
		ev.IssuedAt, ev.TicketID, ev.EventID, ev.EventTitle, ev.TierName, ev.UserID, ev.Quantity, ev.AmountMinor, ref)
	return c.appendLine("tickets.log", line)
}

// HandleReconciliation appends the case to reconciliation.log and logs it
// at error level so it reaches alerting.
func (c *Consumer) HandleReconciliation(body []byte) error {
	var ev ReconciliationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	c.logger.Error("reconciliation case received",
		zap.String("case_id", ev.CaseID),
		zap.String("reference", ev.Reference),
		zap.String("event_id", ev.EventID),
		zap.Int64("amount_minor", ev.AmountMinor),
	)
	line := fmt.Sprintf("[%s] Reconciliation needed | case_id=%s | reference=%s | event_id=%s | tier_id=%s | buyer_id=%s | quantity=%d | amount=%d minor | reason=%q\n",
		ev.OpenedAt, ev.CaseID, ev.Reference, ev.EventID, ev.TierID, ev.BuyerID, ev.Quantity, ev.AmountMinor, ev.Reason)
	return c.appendLine("reconciliation.log", line)
}

func (c *Consumer) appendLine(name, line string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
