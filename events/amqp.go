package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPClient publishes events to a durable direct exchange and consumes them from
// the bound queue.
type AMQPClient struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewAMQPClient(url, exchangeName, queueName string) (*AMQPClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &AMQPClient{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *AMQPClient) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends reminder events to the queue. Other event types only matter to
// live sessions and are skipped.
func (c *AMQPClient) Publish(ctx context.Context, e Event) error {
	if e.Type != DueReminder {
		return nil
	}
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         e.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "published event", "type", e.Type, "exchange", c.exchangeName, "queue", c.queueName)
	return nil
}

// ErrPermanent marks a handler failure that would fail the same way on
// redelivery. Wrap it to have the message dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// Consume hands every delivery to handler until ctx is done. Malformed messages
// and permanent failures are dropped. Other failures are requeued once and
// dropped when they fail again on the redelivery.
func (c *AMQPClient) Consume(ctx context.Context, handler func(context.Context, *Event) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "consuming events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stopping consumer", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery process needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *Event) error) {
	process(ctx, d.Body, d.Redelivered, d, handler)
}

func process(ctx context.Context, body []byte, redelivered bool, ack acknowledger, handler func(context.Context, *Event) error) {
	e, err := FromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to unmarshal event", "error", err)
		nack(ctx, ack, false)
		return
	}
	if err := handler(ctx, e); err != nil {
		requeue := !redelivered && !errors.Is(err, ErrPermanent)
		slog.ErrorContext(ctx, "failed to handle event", "type", e.Type, "requeue", requeue, "error", err)
		nack(ctx, ack, requeue)
		return
	}
	if err := ack.Ack(false); err != nil {
		slog.ErrorContext(ctx, "failed to ack delivery", "type", e.Type, "error", err)
	}
}

func nack(ctx context.Context, ack acknowledger, requeue bool) {
	if err := ack.Nack(false, requeue); err != nil {
		slog.ErrorContext(ctx, "failed to nack delivery", "requeue", requeue, "error", err)
	}
}

func (c *AMQPClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Backoff returns the wait before reconnect attempt n: 1s doubling, capped at 30s.
func Backoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << uint(attempt)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// IsConnectionError reports whether err looks like a lost broker connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
