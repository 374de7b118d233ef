package network

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/logging"
)

func createFakeBrokerConfig() entities.BrokerConfig {
	return entities.BrokerConfig{
		Host:               "broker.local",
		Port:               5671,
		Username:           "gateway",
		Password:           "secret",
		SettleMilliseconds: 1,
	}
}

func createConnectedConnectionMock() (*connectionMock, chan amqp.Delivery) {
	conn := new(connectionMock)
	deliveries := make(chan amqp.Delivery, 1)
	conn.On("connect", mock.Anything).Return(nil)
	conn.On("createChannel").Return(nil)
	conn.On("declareExchange", exchangeGateway, exchangeTypeDirect).Return(nil)
	conn.On("declareQueue", inboundQueue).Return(nil)
	conn.On("queueBind", inboundQueue, mock.Anything, exchangeGateway).Return(nil)
	conn.On("consume", inboundQueue).Return((<-chan amqp.Delivery)(deliveries), nil)
	return conn, deliveries
}

func newTestHandler(conn connection) *AMQPHandler {
	logger := logging.NewLogrus("error", testWriter{}).Get("network")
	handler := NewAMQPHandler(conn, createFakeBrokerConfig(), logger)
	handler.reconnectInterval = 5 * time.Millisecond
	return handler
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func subscribedFlag(h *AMQPHandler) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.subscribed
}

func waitUntil(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartWhenMissingCredentialsReturnsError(t *testing.T) {
	conn := new(connectionMock)
	logger := logging.NewLogrus("error", testWriter{}).Get("network")
	handler := NewAMQPHandler(conn, entities.BrokerConfig{Host: "broker.local"}, logger)

	err := handler.Start()
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.False(t, handler.IsConnected())
	conn.AssertNotCalled(t, "connect", mock.Anything)
}

func TestStartConnectsAndSubscribesOncePerTopic(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	msgChan := make(chan InMsg)

	assert.Nil(t, handler.OnMessage(msgChan, RoutingKeyTelemetry))
	assert.Nil(t, handler.OnMessage(msgChan, RoutingKeyStatus))
	assert.Nil(t, handler.Start())

	waitUntil(t, func() bool { return subscribedFlag(handler) })
	assert.True(t, handler.IsConnected())
	conn.AssertNumberOfCalls(t, "queueBind", 2)
	conn.AssertNumberOfCalls(t, "consume", 1)
}

func TestStartIsIdempotent(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)

	assert.Nil(t, handler.Start())
	assert.Nil(t, handler.Start())
	conn.AssertNumberOfCalls(t, "connect", 1)
}

func TestRedundantSubscribePassesAreSuppressed(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	msgChan := make(chan InMsg)

	assert.Nil(t, handler.OnMessage(msgChan, RoutingKeyTelemetry))
	assert.Nil(t, handler.Start())
	waitUntil(t, func() bool { return subscribedFlag(handler) })

	// a late connect event after the settle delay must not bind again
	handler.subscribeAll()
	handler.subscribeAll()
	conn.AssertNumberOfCalls(t, "queueBind", 1)
	conn.AssertNumberOfCalls(t, "consume", 1)
}

func TestDisconnectResetsSubscribedFlagAndResubscribesOnce(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	msgChan := make(chan InMsg)

	assert.Nil(t, handler.OnMessage(msgChan, RoutingKeyTelemetry))
	assert.Nil(t, handler.Start())
	waitUntil(t, func() bool { return subscribedFlag(handler) })

	conn.closeChan <- &amqp.Error{Code: 320, Reason: "connection closed"}
	waitUntil(t, func() bool { return handler.IsConnected() && subscribedFlag(handler) })

	conn.AssertNumberOfCalls(t, "connect", 2)
	conn.AssertNumberOfCalls(t, "queueBind", 2)
}

func TestPublishFailsFastWhenNotConnected(t *testing.T) {
	conn := new(connectionMock)
	handler := newTestHandler(conn)

	err := handler.PublishPersistentMessage(RoutingKeyControl, "payload")
	assert.ErrorIs(t, err, ErrNotConnected)
	conn.AssertNotCalled(t, "publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishEncodesStructuredPayloadAsJSON(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	assert.Nil(t, handler.Start())

	update := SettingsUpdateMessage{DeviceID: "all", MaxWeight: 750}
	expectedBody := []byte(`{"device_id":"all","max_weight":750,"timestamp":"0001-01-01T00:00:00Z"}`)
	conn.On("publish", exchangeGateway, RoutingKeySettings, expectedBody).Return(nil)

	err := handler.PublishPersistentMessage(RoutingKeySettings, update)
	assert.Nil(t, err)
	conn.AssertCalled(t, "publish", exchangeGateway, RoutingKeySettings, expectedBody)
}

func TestPublishPassesStringPayloadThrough(t *testing.T) {
	conn, _ := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	assert.Nil(t, handler.Start())

	conn.On("publish", exchangeGateway, RoutingKeyControl, []byte("raw")).Return(nil)
	err := handler.PublishPersistentMessage(RoutingKeyControl, "raw")
	assert.Nil(t, err)
	conn.AssertExpectations(t)
}

func TestForwardDeliveriesRoutesByKey(t *testing.T) {
	conn, deliveries := createConnectedConnectionMock()
	handler := newTestHandler(conn)
	msgChan := make(chan InMsg, 1)

	assert.Nil(t, handler.OnMessage(msgChan, RoutingKeyTelemetry))
	assert.Nil(t, handler.Start())
	waitUntil(t, func() bool { return subscribedFlag(handler) })

	deliveries <- amqp.Delivery{RoutingKey: RoutingKeyTelemetry, Body: []byte(`{"device_id":"d1","weight":10}`)}
	received := <-msgChan
	assert.Equal(t, RoutingKeyTelemetry, received.RoutingKey)
	assert.JSONEq(t, `{"device_id":"d1","weight":10}`, string(received.Body))
}
