package rabbitmq

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/finagent/finance-agent/lib/service"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	DefaultEventExchange = "finance_events"
	contentTypeJSON      = "application/json"
	exchangeKindTopic    = "topic"
)

// encoded events are short lived, reuse their buffers
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

type (
	SubscribeToEventsFunc = func() (events chan service.Event, unsubscribe func(), err error)
	EncodeEventFunc       = func(ctx context.Context, w io.Writer, event service.Event) error
)

type Client interface {
	StartPublishEvents(context.Context, SubscribeToEventsFunc, EncodeEventFunc) error
	Close() error
}

// EventPublisher mirrors domain events onto a topic exchange so other
// services can follow users and transactions without polling the database.
type EventPublisher struct {
	amqpClient    AMQPClient
	logger        *lecho.Logger
	eventExchange string
}

type ClientOption = func(publisher *EventPublisher)

func WithEventExchange(exchange string) ClientOption {
	return func(publisher *EventPublisher) {
		if exchange != "" {
			publisher.eventExchange = exchange
		}
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(publisher *EventPublisher) {
		publisher.logger = logger
	}
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (*EventPublisher, error) {
	publisher := &EventPublisher{
		amqpClient:    amqpClient,
		logger:        lecho.New(io.Discard),
		eventExchange: DefaultEventExchange,
	}
	for _, opt := range options {
		opt(publisher)
	}
	return publisher, nil
}

func (publisher *EventPublisher) Close() error { return publisher.amqpClient.Close() }

// StartPublishEvents forwards every event to the exchange, routed by event
// type, until ctx is done or the subscription closes.
func (publisher *EventPublisher) StartPublishEvents(ctx context.Context, subscribe SubscribeToEventsFunc, encode EncodeEventFunc) error {
	// durable, kept when unbound, open to direct publishing, wait for the broker
	err := publisher.amqpClient.ExchangeDeclare(publisher.eventExchange, exchangeKindTopic, true, false, false, false, nil)
	if err != nil {
		return err
	}

	events, unsubscribe, err := subscribe()
	if err != nil {
		return err
	}
	defer unsubscribe()
	publisher.logger.Infof("Publishing events to exchange %s", publisher.eventExchange)

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := publisher.publish(ctx, event, encode); err != nil {
				publisher.logger.Errorf("Failed to publish %s event: %v", event.Type, err)
				sentry.CaptureException(err)
			}
		}
	}
}

func (publisher *EventPublisher) publish(ctx context.Context, event service.Event, encode EncodeEventFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	if err := encode(ctx, payload, event); err != nil {
		return err
	}

	err := publisher.amqpClient.PublishWithContext(ctx, publisher.eventExchange, event.Type, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Body:         payload.Bytes(),
	})
	if err != nil {
		return err
	}
	publisher.logger.Debugf("Published %s event for user %s", event.Type, event.UserID)
	return nil
}
