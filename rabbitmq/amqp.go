package rabbitmq

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	defaultHeartbeat   = 10 * time.Second
	defaultLocale      = "en_US"
	defaultDialTimeout = 3 * time.Second
	maxReconnectWait   = time.Minute
)

var errReconnecting = errors.New("amqp: connection is being re-established")

//go:generate mockgen -destination=./mock_rabbitmq/rabbitmq.go github.com/finagent/finance-agent/rabbitmq AMQPClient

// AMQPClient is the slice of an AMQP connection the event publisher needs.
type AMQPClient interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

type reconnectingClient struct {
	uri    string
	logger *lecho.Logger

	mu           sync.RWMutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	reconnecting bool
	closed       bool
}

type AMQPOption = func(client *reconnectingClient)

func WithAmqpLogger(logger *lecho.Logger) AMQPOption {
	return func(client *reconnectingClient) {
		client.logger = logger
	}
}

// DialAMQP connects to uri and keeps reconnecting in the background whenever
// the broker drops the connection.
func DialAMQP(uri string, options ...AMQPOption) (AMQPClient, error) {
	client := &reconnectingClient{
		uri:    uri,
		logger: lecho.New(io.Discard),
	}
	for _, opt := range options {
		opt(client)
	}
	closed, err := client.connect()
	if err != nil {
		return nil, err
	}
	go client.watch(closed)
	return client, nil
}

func (c *reconnectingClient) connect() (chan *amqp.Error, error) {
	conn, err := amqp.DialConfig(c.uri, amqp.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
		Dial:      amqp.DefaultDial(defaultDialTimeout),
	})
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.reconnecting = false
	c.mu.Unlock()
	return closed, nil
}

// watch reconnects each time the broker closes the connection. A nil error
// means Close was called and the loop ends.
func (c *reconnectingClient) watch(closed chan *amqp.Error) {
	for {
		amqpErr, ok := <-closed
		if !ok || amqpErr == nil {
			return
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnecting = true
		c.mu.Unlock()
		c.logger.Errorf("amqp: connection lost: %v", amqpErr)

		b := backoff.NewExponentialBackOff()
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = maxReconnectWait
		err := backoff.RetryNotify(func() error {
			var err error
			closed, err = c.connect()
			return err
		}, b, func(err error, wait time.Duration) {
			c.logger.Warnf("amqp: reconnect failed, retrying in %s: %v", wait, err)
		})
		if err != nil {
			c.logger.Errorf("amqp: giving up reconnecting: %v", err)
			return
		}
		c.logger.Info("amqp: reconnected")
	}
}

// ready waits for an in-flight reconnect and returns the live channel.
func (c *reconnectingClient) ready(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	var (
		conn    *amqp.Connection
		channel *amqp.Channel
	)
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxReconnectWait
	err := backoff.Retry(func() error {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.closed {
			return backoff.Permanent(amqp.ErrClosed)
		}
		if c.reconnecting {
			return errReconnecting
		}
		conn, channel = c.conn, c.channel
		return nil
	}, backoff.WithContext(b, ctx))
	return conn, channel, err
}

func (c *reconnectingClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	return conn.Close()
}

func (c *reconnectingClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	conn, _, err := c.ready(context.Background())
	if err != nil {
		return err
	}
	// short lived channel so a failed declare cannot close the publish channel
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (c *reconnectingClient) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	_, channel, err := c.ready(ctx)
	if err != nil {
		return err
	}
	return channel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
