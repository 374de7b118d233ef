package network

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"github.com/loadwatch/loadgate/pkg/entities"
)

type AmqpMock struct {
	mock.Mock
}

func (m *AmqpMock) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *AmqpMock) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *AmqpMock) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *AmqpMock) OnMessage(msgChan chan InMsg, key string) error {
	args := m.Called(msgChan, key)
	return args.Error(0)
}

func (m *AmqpMock) PublishPersistentMessage(key string, data interface{}) error {
	args := m.Called(key, data)
	return args.Error(0)
}

type connectionMock struct {
	mock.Mock
	closeChan chan *amqp.Error
}

func (m *connectionMock) connect(conf entities.BrokerConfig) error {
	args := m.Called(conf)
	return args.Error(0)
}

func (m *connectionMock) createChannel() error {
	args := m.Called()
	return args.Error(0)
}

func (m *connectionMock) declareExchange(name, exchangeType string) error {
	args := m.Called(name, exchangeType)
	return args.Error(0)
}

func (m *connectionMock) declareQueue(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *connectionMock) queueBind(queueName, key, exchangeName string) error {
	args := m.Called(queueName, key, exchangeName)
	return args.Error(0)
}

func (m *connectionMock) consume(queueName string) (<-chan amqp.Delivery, error) {
	args := m.Called(queueName)
	deliveries, _ := args.Get(0).(<-chan amqp.Delivery)
	return deliveries, args.Error(1)
}

func (m *connectionMock) publish(exchange, key string, body []byte) error {
	args := m.Called(exchange, key, body)
	return args.Error(0)
}

func (m *connectionMock) isClosed() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *connectionMock) close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *connectionMock) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	m.closeChan = channel
	return channel
}
