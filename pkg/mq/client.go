// Package mq is a RabbitMQ client for the telemetry readings queue. It
// reconnects on its own, publishes with confirmations, and hands out
// deliveries for manual acknowledgement.
package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"carbonseed.io/console/pkg/metrics"
)

// DefaultQueue carries one JSON reading per message.
const DefaultQueue = "carbonseed.readings"

const (
	reconnectDelay = 5 * time.Second
	reInitDelay    = 2 * time.Second

	defaultPrefetch = 50
)

var (
	ErrNotConnected       = errors.New("not connected to a server")
	ErrShutdown           = errors.New("client is shutting down")
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	errNacked             = errors.New("publish not acknowledged by broker")
)

// Config holds the configuration for a Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.MQMetrics

	URL   string
	Queue string

	// Prefetch bounds unacknowledged deliveries per consumer.
	Prefetch int

	// Retry controls Publish retries. Zero values take the defaults.
	Retry Backoff
}

// Client owns one connection and one confirm-mode channel.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	metrics         *metrics.MQMetrics
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	closeOnce       sync.Once
	ready           chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queue           string
	prefetch        int
	retry           Backoff
	isReady         bool
}

// New validates cfg and starts connecting in the background.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("mq config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URL == "" {
		return nil, errors.New("broker URL cannot be empty")
	}

	c := &Client{
		logger:   cfg.Logger.With("queue", cfg.Queue),
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		retry:    cfg.Retry.withDefaults(),
	}
	if c.queue == "" {
		c.queue = DefaultQueue
		c.logger = cfg.Logger.With("queue", c.queue)
	}
	if c.prefetch <= 0 {
		c.prefetch = defaultPrefetch
	}

	go c.handleReconnect(cfg.URL)
	return c, nil
}

// Queue returns the queue name.
func (c *Client) Queue() string {
	return c.queue
}

// Ready reports whether the channel is usable right now.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isReady
}

// WaitReady blocks until the first connection is set up.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.isReady = ready
	c.mu.Unlock()
	if c.metrics != nil {
		if ready {
			c.metrics.ConnectionStatus.Set(1)
		} else {
			c.metrics.ConnectionStatus.Set(0)
		}
	}
}

func (c *Client) handleReconnect(addr string) {
	for {
		c.setReady(false)
		c.logger.Info("connecting to broker")
		if c.metrics != nil {
			c.metrics.ReconnectAttempts.Inc()
		}

		conn, err := amqp.Dial(addr)
		if err != nil {
			c.logger.Error("failed to connect, retrying", "error", err, "delay", reconnectDelay)
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		c.mu.Lock()
		c.connection = conn
		c.notifyConnClose = make(chan *amqp.Error, 1)
		conn.NotifyClose(c.notifyConnClose)
		c.mu.Unlock()
		c.logger.Info("connected to broker")

		if done := c.handleReInit(conn); done {
			return
		}
	}
}

// handleReInit reopens the channel until the connection drops (false) or
// the client is closed (true).
func (c *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		c.setReady(false)

		if err := c.init(conn); err != nil {
			c.logger.Error("failed to open channel, retrying", "error", err)
			select {
			case <-c.done:
				return true
			case <-c.notifyConnClose:
				c.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-c.done:
			return true
		case <-c.notifyConnClose:
			c.logger.Info("connection closed, reconnecting")
			return false
		case <-c.notifyChanClose:
			c.logger.Info("channel closed, reopening")
		}
	}
}

func (c *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	if _, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	c.mu.Lock()
	c.channel = ch
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConfirm = make(chan amqp.Confirmation, 1)
	ch.NotifyClose(c.notifyChanClose)
	ch.NotifyPublish(c.notifyConfirm)
	c.mu.Unlock()

	c.setReady(true)
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	c.logger.Info("channel ready")
	return nil
}

// Publish sends body and waits for the broker's confirmation, retrying with
// exponential backoff while disconnected or nacked.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	if c.metrics != nil {
		timer := prometheus.NewTimer(c.metrics.PublishDuration.WithLabelValues(c.queue))
		defer timer.ObserveDuration()
	}

	attempts := 0
	err := c.retry.Do(ctx, c.done, func() error {
		attempts++
		return c.publishConfirmed(ctx, body)
	})

	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.MessagesPublished.WithLabelValues(c.queue).Inc()
		}
		if attempts > 1 {
			c.logger.Info("publish confirmed after retries", "attempts", attempts)
		}
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		c.logger.Error("giving up on publish", "attempts", attempts)
		c.countFailure("max_retries_exceeded")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.countFailure("context_canceled")
	default:
		c.countFailure("shutdown")
	}
	return err
}

func (c *Client) countFailure(reason string) {
	if c.metrics != nil {
		c.metrics.PublishFailures.WithLabelValues(c.queue, reason).Inc()
	}
}

func (c *Client) publishConfirmed(ctx context.Context, body []byte) error {
	if err := c.UnsafePublish(ctx, body); err != nil {
		return err
	}

	c.mu.Lock()
	confirms := c.notifyConfirm
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case confirm, ok := <-confirms:
		if !ok || !confirm.Ack {
			return errNacked
		}
		return nil
	}
}

// UnsafePublish sends body without waiting for a confirmation.
func (c *Client) UnsafePublish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	if !c.isReady {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ch := c.channel
	c.mu.Unlock()

	return ch.PublishWithContext(
		ctx,
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// Consume starts delivering queue messages. Every delivery must be acked or
// nacked by the caller. The channel closes when the connection drops; call
// Consume again after WaitReady to resume.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	if !c.isReady {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	ch := c.channel
	c.mu.Unlock()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	return ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
}

// Close stops reconnecting and shuts the channel and connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isReady {
		return nil
	}
	c.isReady = false
	if c.metrics != nil {
		c.metrics.ConnectionStatus.Set(0)
	}

	var errs []error
	if err := c.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := c.connection.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	return errors.Join(errs...)
}
