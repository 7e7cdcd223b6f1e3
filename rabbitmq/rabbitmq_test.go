package rabbitmq_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/finagent/finance-agent/rabbitmq"
	"github.com/finagent/finance-agent/rabbitmq/mock_rabbitmq"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

func encodeJSON(ctx context.Context, w io.Writer, event service.Event) error {
	return json.NewEncoder(w).Encode(event)
}

func TestPublishEvents(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	amqpClient := mock_rabbitmq.NewMockAMQPClient(ctrl)
	client, err := rabbitmq.NewClient(amqpClient,
		rabbitmq.WithEventExchange("test_events"),
		rabbitmq.WithLogger(lecho.New(io.Discard)),
	)
	require.NoError(t, err)

	amqpClient.EXPECT().
		ExchangeDeclare(gomock.Eq("test_events"), gomock.Eq("topic"), gomock.Eq(true), gomock.Eq(false), gomock.Eq(false), gomock.Eq(false), gomock.Nil()).
		Times(1).
		Return(nil)

	published := make(chan amqp.Publishing, 2)
	keys := make(chan string, 2)
	amqpClient.EXPECT().
		PublishWithContext(gomock.Any(), gomock.Eq("test_events"), gomock.Any(), gomock.Eq(false), gomock.Eq(false), gomock.Any()).
		Times(2).
		DoAndReturn(func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
			// the body buffer goes back to the pool after publishing
			msg.Body = append([]byte(nil), msg.Body...)
			keys <- key
			published <- msg
			return nil
		})

	events := make(chan service.Event, 2)
	unsubscribed := make(chan struct{})
	subscribe := func() (chan service.Event, func(), error) {
		return events, func() { close(unsubscribed) }, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- client.StartPublishEvents(ctx, subscribe, encodeJSON)
	}()

	transaction := &models.Transaction{ID: uuid.New(), UserID: uuid.New(), Value: 50, Currency: "BRL", Type: "expense"}
	events <- service.Event{Type: common.EventTransactionCreated, UserID: transaction.UserID, Transaction: transaction}
	events <- service.Event{Type: common.EventUserCreated, UserID: transaction.UserID}

	assert.Equal(t, common.EventTransactionCreated, <-keys)
	msg := <-published
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, common.EventTransactionCreated, msg.Type)
	assert.NotEmpty(t, msg.MessageId)
	event := service.Event{}
	require.NoError(t, json.Unmarshal(msg.Body, &event))
	assert.Equal(t, transaction.ID, event.Transaction.ID)
	assert.Equal(t, int64(50), event.Transaction.Value)

	assert.Equal(t, common.EventUserCreated, <-keys)
	<-published

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
	<-unsubscribed
}

func TestPublishEventsExchangeDeclareFails(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	amqpClient := mock_rabbitmq.NewMockAMQPClient(ctrl)
	client, err := rabbitmq.NewClient(amqpClient, rabbitmq.WithLogger(lecho.New(io.Discard)))
	require.NoError(t, err)

	failure := errors.New("access refused")
	amqpClient.EXPECT().
		ExchangeDeclare(gomock.Eq(rabbitmq.DefaultEventExchange), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(failure)

	err = client.StartPublishEvents(context.Background(), func() (chan service.Event, func(), error) {
		t.Fatal("subscribed although the exchange is missing")
		return nil, nil, nil
	}, encodeJSON)
	assert.ErrorIs(t, err, failure)
}

func TestPublishEventsKeepsGoingAfterPublishError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	amqpClient := mock_rabbitmq.NewMockAMQPClient(ctrl)
	client, err := rabbitmq.NewClient(amqpClient, rabbitmq.WithLogger(lecho.New(io.Discard)))
	require.NoError(t, err)

	amqpClient.EXPECT().ExchangeDeclare(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	attempts := make(chan string, 2)
	gomock.InOrder(
		amqpClient.EXPECT().PublishWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
				attempts <- key
				return errors.New("channel closed")
			}),
		amqpClient.EXPECT().PublishWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
				attempts <- key
				return nil
			}),
	)

	events := make(chan service.Event, 2)
	events <- service.Event{Type: common.EventTransactionCreated}
	events <- service.Event{Type: common.EventTransactionDeleted}
	close(events)

	err = client.StartPublishEvents(context.Background(), func() (chan service.Event, func(), error) {
		return events, func() {}, nil
	}, encodeJSON)
	assert.NoError(t, err)
	assert.Equal(t, common.EventTransactionCreated, <-attempts)
	assert.Equal(t, common.EventTransactionDeleted, <-attempts)
}
