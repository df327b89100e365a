// Package mock provides a hand-written mq client for tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"carbonseed.io/console/pkg/mq"
)

// MockClient records publishes and serves a configurable delivery channel.
type MockClient struct {
	mu sync.Mutex

	// PublishFunc overrides PublishError when set.
	PublishFunc  func(ctx context.Context, body []byte) error
	PublishError error
	Published    [][]byte

	UnsafePublishError error

	// Deliveries is returned by Consume.
	Deliveries   chan amqp.Delivery
	ConsumeError error
	ConsumeCalls int

	CloseCalls int
}

// NewMockClient creates a MockClient with an unbuffered delivery channel.
func NewMockClient() *MockClient {
	return &MockClient{Deliveries: make(chan amqp.Delivery)}
}

// Publish implements mq.Publisher.
func (m *MockClient) Publish(ctx context.Context, body []byte) error {
	m.mu.Lock()
	fn, err := m.PublishFunc, m.PublishError
	m.mu.Unlock()

	if fn != nil {
		err = fn(ctx, body)
	}
	if err == nil {
		m.mu.Lock()
		m.Published = append(m.Published, append([]byte(nil), body...))
		m.mu.Unlock()
	}
	return err
}

// UnsafePublish implements mq.ClientInterface.
func (m *MockClient) UnsafePublish(ctx context.Context, body []byte) error {
	m.mu.Lock()
	err := m.UnsafePublishError
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Publish(ctx, body)
}

// Messages returns a copy of the published bodies.
func (m *MockClient) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.Published...)
}

// Consume implements mq.Consumer.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConsumeCalls++
	if m.ConsumeError != nil {
		return nil, m.ConsumeError
	}
	return m.Deliveries, nil
}

// WaitReady implements mq.Consumer. The mock is always ready.
func (m *MockClient) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

// Close implements mq.Publisher and mq.Consumer.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Acknowledger records acks and nacks of deliveries built by Delivery.
type Acknowledger struct {
	mu       sync.Mutex
	Acked    []uint64
	Nacked   []uint64
	Requeued []uint64
}

// Ack implements amqp.Acknowledger.
func (a *Acknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Acked = append(a.Acked, tag)
	return nil
}

// Nack implements amqp.Acknowledger.
func (a *Acknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Nacked = append(a.Nacked, tag)
	if requeue {
		a.Requeued = append(a.Requeued, tag)
	}
	return nil
}

// Reject implements amqp.Acknowledger.
func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// Counts returns the number of acked, nacked and requeued deliveries.
func (a *Acknowledger) Counts() (acked, nacked, requeued int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Acked), len(a.Nacked), len(a.Requeued)
}

// Delivery builds a delivery acknowledged through a.
func (a *Acknowledger) Delivery(tag uint64, body []byte) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: a,
		DeliveryTag:  tag,
		ContentType:  "application/json",
		Body:         body,
	}
}

var (
	_ mq.ClientInterface = (*MockClient)(nil)
	_ amqp.Acknowledger  = (*Acknowledger)(nil)
)
