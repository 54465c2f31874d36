package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes messages to a topic exchange with routing key
// "<entity>.<action>".
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	logger   *slog.Logger
}

// DialRabbit connects to the broker and declares a durable topic exchange.
func DialRabbit(url, exchange string, logger *slog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := newRabbitPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch amqpChannel, exchange string, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange, logger: logger}
}

// Broadcast publishes msg. Failures are logged and otherwise ignored.
func (p *RabbitPublisher) Broadcast(msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshal event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	key := msg.Entity + "." + msg.Action

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         msg.Type,
		Body:         body,
	})
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("publish event", "routing_key", key, "error", err)
		return
	}
	p.logger.Debug("published event", "routing_key", key, "id", msg.ID)
}

// Close closes the channel and, when owned, the connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
