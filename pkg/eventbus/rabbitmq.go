// Package eventbus publishes JSON messages to a RabbitMQ topic exchange.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const ExchangeType = "topic"

// ErrPublisherClosed is returned by PublishJSON after Close
var ErrPublisherClosed = errors.New("publisher is closed")

// Options controls the connection to the broker
type Options struct {
	URL             string
	Exchange        string
	ConnectAttempts int
	RetryDelay      time.Duration
}

// Publisher owns one connection and channel to the broker. A connection or
// channel lost to a broker restart or a channel exception is reopened on the
// next publish.
type Publisher struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex // amqp channels are not safe for concurrent publishing
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// Dial connects to the broker, retrying while it starts up, and declares the
// durable topic exchange.
func Dial(opts Options, log *zap.Logger) (*Publisher, error) {
	p := &Publisher{opts: opts, log: log}

	attempts := opts.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = p.connect(); err == nil {
			return p, nil
		}
		log.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Error(err))
		if i < attempts-1 {
			time.Sleep(opts.RetryDelay)
		}
	}
	return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
}

// connect dials a fresh connection and opens the publishing channel on it.
// Caller holds mu or owns p exclusively.
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.opts.URL)
	if err != nil {
		return err
	}
	p.conn = conn
	if err := p.openChannel(); err != nil {
		conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func (p *Publisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.opts.Exchange, // name
		ExchangeType,    // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("could not declare exchange: %w", err)
	}
	p.ch = ch
	return nil
}

// ensureChannel reopens whatever the broker has closed. Caller holds mu.
func (p *Publisher) ensureChannel() error {
	if p.closed {
		return ErrPublisherClosed
	}
	if p.conn == nil || p.conn.IsClosed() {
		p.log.Info("Reconnecting to RabbitMQ")
		if err := p.connect(); err != nil {
			return fmt.Errorf("could not reconnect to RabbitMQ: %w", err)
		}
		return nil
	}
	if p.ch == nil || p.ch.IsClosed() {
		p.log.Info("Reopening RabbitMQ channel")
		return p.openChannel()
	}
	return nil
}

// PublishJSON sends payload as a persistent JSON message
func (p *Publisher) PublishJSON(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.opts.Exchange, routingKey, false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	// closed between the check and the publish
	if err := p.ensureChannel(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.opts.Exchange, routingKey, false, false, msg)
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var chErr, connErr error
	if p.ch != nil && !p.ch.IsClosed() {
		chErr = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		connErr = p.conn.Close()
	}
	if chErr != nil {
		return chErr
	}
	return connErr
}
