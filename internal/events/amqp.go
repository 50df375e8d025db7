package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"mana/internal/logger"
)

const (
	publishTimeout = 5 * time.Second

	// maxDeliveryAttempts bounds how often one event reaches the handler
	// before it is dead-lettered.
	maxDeliveryAttempts = 5
	maxRetryDelay       = 30 * time.Second
	attemptHeader       = "x-mana-attempt"
)

// retryDelay is the pause before a failed event is published again.
var retryDelay = func(attempt int) time.Duration {
	if attempt < 0 || attempt > 6 {
		return maxRetryDelay
	}
	return min(500*time.Millisecond<<attempt, maxRetryDelay)
}

// Client publishes and consumes transaction events on a durable direct
// exchange. The queue is bound with its own name as routing key. Events that
// keep failing end up in "<queue>.dead" through the "<exchange>.dlx" exchange.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := c.setup(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c, nil
}

func (c *Client) setup() error {
	deadExchange, deadQueue := c.exchangeName+".dlx", c.queueName+".dead"
	if err := c.channel.ExchangeDeclare(deadExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(deadQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}
	if err := c.channel.QueueBind(deadQueue, c.queueName, deadExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	args := amqp091.Table{"x-dead-letter-exchange": deadExchange}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishTransaction sends e as a persistent JSON message.
func (c *Client) PublishTransaction(ctx context.Context, e TransactionEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         e.Name,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	logger.Named("events").Debugw("published transaction event",
		"user_id", e.UserID,
		"transaction_id", e.TransactionID,
		"exchange", c.exchangeName,
	)
	return nil
}

// Consume delivers events to handler until ctx is done. Malformed bodies are
// dropped. A failed event is published again after a growing delay and is
// dead-lettered once it has failed maxDeliveryAttempts times.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, TransactionEvent) error) error {
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log := logger.Named("events")
	log.Infow("consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			dispatch(ctx, delivery.Body, attemptOf(delivery.Headers), delivery, c.republish, handler)
		}
	}
}

// republish puts body back on the queue as delivery number attempt.
func (c *Client) republish(ctx context.Context, body []byte, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         TransactionRecorded,
		Headers:      amqp091.Table{attemptHeader: int32(attempt)},
		Body:         body,
	})
}

// attemptOf reads the delivery number stamped by republish. Deliveries
// without the header are first attempts.
func attemptOf(headers amqp091.Table) int {
	switch v := headers[attemptHeader].(type) {
	case int32:
		return max(int(v), 1)
	case int64:
		return max(int(v), 1)
	case int:
		return max(v, 1)
	}
	return 1
}

// acknowledger is the part of amqp091.Delivery the dispatch logic needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type retryFunc func(ctx context.Context, body []byte, attempt int) error

func dispatch(ctx context.Context, body []byte, attempt int, ack acknowledger, retry retryFunc, handler func(context.Context, TransactionEvent) error) {
	log := logger.Named("events")

	e, err := TransactionEventFromJSON(body)
	if err != nil || e.UserID == "" {
		log.Errorw("dropping malformed transaction event", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	err = handler(ctx, e)
	if err == nil {
		_ = ack.Ack(false)
		return
	}

	fields := []interface{}{
		"error", err,
		"user_id", e.UserID,
		"transaction_id", e.TransactionID,
		"attempt", attempt,
	}
	if attempt >= maxDeliveryAttempts {
		log.Errorw("dead-lettering transaction event", fields...)
		_ = ack.Nack(false, false)
		return
	}
	log.Warnw("failed to handle transaction event, retrying", fields...)

	timer := time.NewTimer(retryDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		_ = ack.Nack(false, true)
		return
	case <-timer.C:
	}

	if err := retry(ctx, body, attempt+1); err != nil {
		log.Errorw("failed to republish transaction event", "error", err, "transaction_id", e.TransactionID)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

// Close releases the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
