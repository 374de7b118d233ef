package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeToDeviceMessages(t *testing.T) {
	amqpMock := new(AmqpMock)
	msgChan := make(chan InMsg)
	amqpMock.On("OnMessage", msgChan, RoutingKeyTelemetry).Return(nil)
	amqpMock.On("OnMessage", msgChan, RoutingKeyStatus).Return(nil)

	subscriber := NewMsgSubscriber(amqpMock)
	err := subscriber.SubscribeToDeviceMessages(msgChan)
	assert.NoError(t, err)
	amqpMock.AssertExpectations(t)
}

func TestSubscribeToDeviceMessagesStopsOnFirstError(t *testing.T) {
	amqpMock := new(AmqpMock)
	msgChan := make(chan InMsg)
	amqpMock.On("OnMessage", msgChan, RoutingKeyTelemetry).Return(errors.New("subscribe failed"))

	subscriber := NewMsgSubscriber(amqpMock)
	err := subscriber.SubscribeToDeviceMessages(msgChan)
	assert.Error(t, err)
	amqpMock.AssertNotCalled(t, "OnMessage", msgChan, RoutingKeyStatus)
}
