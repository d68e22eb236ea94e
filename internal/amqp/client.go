package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const publishTimeout = 5 * time.Second

// Handler processes decoded messages. Returning an error requeues the delivery.
type Handler interface {
	HandleExpensesLogged(ctx context.Context, msg *ExpensesLoggedMessage) error
	HandleGoalApplied(ctx context.Context, msg *GoalAppliedMessage) error
}

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
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

func (c *Client) setup() error {
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

	// routing key is the queue name on a direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// one unacked message at a time keeps snapshot writes ordered per worker
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	return nil
}

// Publish sends msg as a persistent JSON message tagged with its type.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         msg.MessageType(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.MessageType(), err)
	}

	slog.DebugContext(ctx, "Published message",
		"type", msg.MessageType(),
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishExpensesLogged implements services.EventPublisher
func (c *Client) PublishExpensesLogged(ctx context.Context, userID string, count int) error {
	return c.Publish(ctx, NewExpensesLoggedMessage(userID, count))
}

// PublishGoalApplied implements services.EventPublisher
func (c *Client) PublishGoalApplied(ctx context.Context, userID string, goal decimal.Decimal) error {
	return c.Publish(ctx, NewGoalAppliedMessage(userID, goal))
}

// Consume delivers messages to h until ctx is cancelled or the channel closes.
func (c *Client) Consume(ctx context.Context, h Handler) error {
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

	slog.InfoContext(ctx, "Started consuming insight events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			settle(ctx, delivery, Dispatch(ctx, h, delivery.Type, delivery.Body))
		}
	}
}

// Outcome is how a delivery is settled after dispatch.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

// Dispatch decodes body by message type and calls the matching handler.
// Unknown types and undecodable bodies are dropped; handler errors requeue.
func Dispatch(ctx context.Context, h Handler, msgType string, body []byte) Outcome {
	var err error
	switch msgType {
	case TypeExpensesLogged:
		msg, derr := ExpensesLoggedMessageFromJSON(body)
		if derr != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal message", "type", msgType, "error", derr)
			return Drop
		}
		err = h.HandleExpensesLogged(ctx, msg)
	case TypeGoalApplied:
		msg, derr := GoalAppliedMessageFromJSON(body)
		if derr != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal message", "type", msgType, "error", derr)
			return Drop
		}
		err = h.HandleGoalApplied(ctx, msg)
	default:
		slog.WarnContext(ctx, "Unknown message type", "type", msgType)
		return Drop
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to handle message", "type", msgType, "error", err)
		return Requeue
	}
	return Ack
}

func settle(ctx context.Context, d amqp091.Delivery, o Outcome) {
	var err error
	switch o {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to settle delivery", "outcome", o.String(), "error", err)
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
