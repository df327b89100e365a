// Package relay moves readings from the queue to the backend's bulk
// endpoint in batches.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
	"carbonseed.io/console/pkg/mq"
)

// Defaults for zero config values.
const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 2 * time.Second
)

const (
	resubscribeDelay = 2 * time.Second
	forwardTimeout   = 30 * time.Second
)

// Batch outcomes.
const (
	OutcomeAcked    = "acked"
	OutcomeRequeued = "requeued"
	OutcomeDropped  = "dropped"
)

// Forwarder posts readings to the backend.
type Forwarder interface {
	BulkReadings(ctx context.Context, token string, readings []api.Reading) (*api.BulkResult, error)
}

var _ Forwarder = (*api.Client)(nil)

// Config holds the configuration for a Relay.
type Config struct {
	Logger    *slog.Logger
	Consumer  mq.Consumer
	Forwarder Forwarder
	Audit     audit.Recorder
	Metrics   *metrics.RelayMetrics

	// Token authenticates the bulk calls.
	Token string

	BatchSize     int
	FlushInterval time.Duration
}

// Relay consumes reading messages and forwards them in batches.
type Relay struct {
	logger    *slog.Logger
	consumer  mq.Consumer
	forwarder Forwarder
	audit     audit.Recorder
	metrics   *metrics.RelayMetrics
	token     string
	size      int
	interval  time.Duration
}

// New validates cfg and creates a Relay.
func New(cfg *Config) (*Relay, error) {
	if cfg == nil {
		return nil, errors.New("relay config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Consumer == nil {
		return nil, errors.New("consumer cannot be nil")
	}

	if cfg.Forwarder == nil {
		return nil, errors.New("forwarder cannot be nil")
	}

	r := &Relay{
		logger:    cfg.Logger,
		consumer:  cfg.Consumer,
		forwarder: cfg.Forwarder,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		token:     cfg.Token,
		size:      cfg.BatchSize,
		interval:  cfg.FlushInterval,
	}
	if r.audit == nil {
		r.audit = audit.Nop{}
	}
	if r.size <= 0 {
		r.size = DefaultBatchSize
	}
	if r.interval <= 0 {
		r.interval = DefaultFlushInterval
	}
	return r, nil
}

// Run consumes until ctx ends or the process is signalled, subscribing
// again whenever the broker drops the delivery channel.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			r.logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	r.logger.Info("relay started", "batch_size", r.size, "flush_interval", r.interval)

	for {
		if err := r.consumer.WaitReady(ctx); err != nil {
			return r.stopped(ctx, err)
		}

		deliveries, err := r.consumer.Consume()
		if err != nil {
			r.logger.Error("failed to subscribe, retrying", "error", err, "delay", resubscribeDelay)
			select {
			case <-ctx.Done():
				return r.stopped(ctx, ctx.Err())
			case <-time.After(resubscribeDelay):
			}
			continue
		}

		r.logger.Info("subscribed to queue")
		r.Process(ctx, deliveries)

		if ctx.Err() != nil {
			return r.stopped(ctx, ctx.Err())
		}
		r.logger.Warn("delivery channel closed, resubscribing")
	}
}

func (r *Relay) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		r.logger.Info("relay stopped")
		return nil
	}
	return err
}

type pending struct {
	deliveries []amqp.Delivery
	readings   []api.Reading
}

func (p *pending) reset() {
	p.deliveries = nil
	p.readings = nil
}

// Process batches deliveries until the channel closes or ctx ends. A batch
// is forwarded when it reaches the batch size or when the flush interval
// passes. Deliveries still pending at shutdown are requeued.
func (r *Relay) Process(ctx context.Context, deliveries <-chan amqp.Delivery) {
	batch := &pending{}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.requeue(batch)
			return

		case d, ok := <-deliveries:
			if !ok {
				r.requeue(batch)
				return
			}

			var reading api.Reading
			if err := json.Unmarshal(d.Body, &reading); err != nil {
				r.logger.Warn("dropping malformed message", "message_id", d.MessageId, "error", err)
				if r.metrics != nil {
					r.metrics.MalformedMessages.Inc()
				}
				if err := d.Nack(false, false); err != nil {
					r.logger.Error("failed to nack message", "error", err)
				}
				continue
			}

			batch.deliveries = append(batch.deliveries, d)
			batch.readings = append(batch.readings, reading)
			r.setPending(len(batch.readings))

			if len(batch.readings) >= r.size {
				r.flush(ctx, batch)
			}

		case <-ticker.C:
			if len(batch.readings) > 0 {
				r.flush(ctx, batch)
			}
		}
	}
}

func (r *Relay) flush(ctx context.Context, batch *pending) {
	defer func() {
		batch.reset()
		r.setPending(0)
	}()

	fctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	var timer *prometheus.Timer
	if r.metrics != nil {
		timer = prometheus.NewTimer(r.metrics.ForwardDuration)
	}
	result, err := r.forwarder.BulkReadings(fctx, r.token, batch.readings)
	if timer != nil {
		timer.ObserveDuration()
	}

	outcome, created, msg := r.settle(batch, result, err)

	if r.metrics != nil {
		r.metrics.BatchesForwarded.WithLabelValues(outcome).Inc()
		if outcome == OutcomeAcked {
			r.metrics.ReadingsForwarded.Add(float64(len(batch.readings)))
		}
	}

	entry := &audit.Entry{
		Action:  audit.ActionRelayBatch,
		Actor:   "relay",
		Kind:    "readings",
		Outcome: outcome,
		Created: created,
		Message: msg,
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		r.logger.Error("failed to record batch", "error", err)
	}
}

// settle acknowledges the batch according to the backend's answer.
func (r *Relay) settle(batch *pending, result *api.BulkResult, err error) (outcome string, created int, msg string) {
	n := len(batch.readings)

	var se *api.StatusError
	switch {
	case err == nil:
		for _, d := range batch.deliveries {
			if ackErr := d.Ack(false); ackErr != nil {
				r.logger.Error("failed to ack message", "error", ackErr)
			}
		}
		created = n
		if result != nil {
			created = result.Created
			if len(result.Errors) > 0 {
				r.logger.Warn("backend rejected some readings", "rejected", len(result.Errors), "first", result.Errors[0])
			}
		}
		r.logger.Info("batch forwarded", "readings", n, "created", created)
		return OutcomeAcked, created, fmt.Sprintf("forwarded %d readings", n)

	case errors.As(err, &se) && se.ClientError():
		r.logger.Error("backend refused batch, dropping", "readings", n, "status", se.StatusCode, "error", err)
		r.nackAll(batch, false)
		return OutcomeDropped, 0, err.Error()

	default:
		r.logger.Error("failed to forward batch, requeueing", "readings", n, "error", err)
		r.nackAll(batch, true)
		return OutcomeRequeued, 0, err.Error()
	}
}

func (r *Relay) requeue(batch *pending) {
	if len(batch.deliveries) == 0 {
		return
	}
	r.logger.Info("requeueing pending readings", "readings", len(batch.deliveries))
	r.nackAll(batch, true)
	batch.reset()
	r.setPending(0)
}

func (r *Relay) nackAll(batch *pending, requeue bool) {
	for _, d := range batch.deliveries {
		if err := d.Nack(false, requeue); err != nil {
			r.logger.Error("failed to nack message", "error", err)
		}
	}
}

func (r *Relay) setPending(n int) {
	if r.metrics != nil {
		r.metrics.PendingReadings.Set(float64(n))
	}
}
