package network

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func createFakeControlCommand(deviceID string) ControlCommandMessage {
	return ControlCommandMessage{
		DeviceID:     deviceID,
		MotorEnabled: Bool(false),
		AlarmEnabled: Bool(true),
		Timestamp:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishControlCommand(t *testing.T) {
	amqpMock := new(AmqpMock)
	command := createFakeControlCommand("scale-1")
	amqpMock.On("PublishPersistentMessage", RoutingKeyControl, command).Return(nil)

	publisher := NewMsgPublisher(amqpMock)
	err := publisher.PublishControlCommand(command)
	assert.Nil(t, err)
	amqpMock.AssertExpectations(t)
}

func TestPublishControlCommandWhenBrokerDownReturnsError(t *testing.T) {
	amqpMock := new(AmqpMock)
	command := createFakeControlCommand("scale-1")
	amqpMock.On("PublishPersistentMessage", RoutingKeyControl, command).Return(errors.New("broker not connected"))

	publisher := NewMsgPublisher(amqpMock)
	err := publisher.PublishControlCommand(command)
	assert.NotNil(t, err)
	amqpMock.AssertExpectations(t)
}

func TestPublishSettingsUpdate(t *testing.T) {
	amqpMock := new(AmqpMock)
	update := SettingsUpdateMessage{DeviceID: "all", MaxWeight: 600}
	amqpMock.On("PublishPersistentMessage", RoutingKeySettings, update).Return(nil)

	publisher := NewMsgPublisher(amqpMock)
	err := publisher.PublishSettingsUpdate(update)
	assert.Nil(t, err)
	amqpMock.AssertExpectations(t)
}
