package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends messages to the queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

// Consumer receives messages from the queue.
type Consumer interface {
	Consume() (<-chan amqp.Delivery, error)
	WaitReady(ctx context.Context) error
	Close() error
}

// ClientInterface is the full client surface.
type ClientInterface interface {
	Publisher
	Consumer
	UnsafePublish(ctx context.Context, body []byte) error
}

var _ ClientInterface = (*Client)(nil)
