package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/mq"
)

// Sink delivers generated readings.
type Sink interface {
	Name() string
	Send(ctx context.Context, readings []api.Reading) error
	Close() error
}

// BulkPoster is the part of the REST client the HTTP sink needs.
type BulkPoster interface {
	BulkReadings(ctx context.Context, token string, readings []api.Reading) (*api.BulkResult, error)
}

var _ BulkPoster = (*api.Client)(nil)

// HTTPSink posts readings to /data/bulk.
type HTTPSink struct {
	poster BulkPoster
	token  string
}

// NewHTTPSink creates an HTTPSink authenticating with token.
func NewHTTPSink(poster BulkPoster, token string) (*HTTPSink, error) {
	if poster == nil {
		return nil, errors.New("poster cannot be nil")
	}
	return &HTTPSink{poster: poster, token: token}, nil
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Send implements Sink. Records the backend rejected individually are
// reported as an error.
func (s *HTTPSink) Send(ctx context.Context, readings []api.Reading) error {
	res, err := s.poster.BulkReadings(ctx, s.token, readings)
	if err != nil {
		return err
	}
	if res != nil && len(res.Errors) > 0 {
		return fmt.Errorf("backend rejected %d of %d readings: %s", len(res.Errors), len(readings), res.Errors[0])
	}
	return nil
}

// Close implements Sink.
func (s *HTTPSink) Close() error { return nil }

// QueueSink publishes one message per reading.
type QueueSink struct {
	publisher mq.Publisher
}

// NewQueueSink creates a QueueSink. The sink owns publisher and closes it.
func NewQueueSink(publisher mq.Publisher) (*QueueSink, error) {
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	return &QueueSink{publisher: publisher}, nil
}

// Name implements Sink.
func (s *QueueSink) Name() string { return "amqp" }

// Send implements Sink.
func (s *QueueSink) Send(ctx context.Context, readings []api.Reading) error {
	for _, r := range readings {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode reading: %w", err)
		}
		if err := s.publisher.Publish(ctx, body); err != nil {
			return fmt.Errorf("failed to publish reading for device %d: %w", r.DeviceID, err)
		}
	}
	return nil
}

// Close implements Sink.
func (s *QueueSink) Close() error {
	return s.publisher.Close()
}
