package network

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/loadwatch/loadgate/pkg/entities"
)

const (
	exchangeGateway    = "loadgate"
	exchangeTypeDirect = "direct"

	durable          = true
	deleteWhenUnused = false
	exclusive        = false
	noWait           = false
	internal         = false
	autoAck          = false
	noLocal          = false
	consumerTag      = ""

	connectTimeout = 30 * time.Second
)

type connection interface {
	connect(conf entities.BrokerConfig) error
	createChannel() error
	declareExchange(name, exchangeType string) error
	declareQueue(name string) error
	queueBind(queueName, key, exchangeName string) error
	consume(queueName string) (<-chan amqp.Delivery, error)
	publish(exchange, key string, body []byte) error
	isClosed() bool
	close() error
	notifyClose(channel chan *amqp.Error) chan *amqp.Error
}

type AmqpConnection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

func NewAmqpConnection() *AmqpConnection {
	return &AmqpConnection{}
}

func brokerURL(conf entities.BrokerConfig) string {
	return fmt.Sprintf("amqps://%s:%s@%s:%d/", conf.Username, conf.Password, conf.Host, conf.Port)
}

func (a *AmqpConnection) connect(conf entities.BrokerConfig) error {
	properties := amqp.NewConnectionProperties()
	if conf.ClientID != "" {
		properties.SetClientConnectionName(conf.ClientID)
	}
	conn, err := amqp.DialConfig(brokerURL(conf), amqp.Config{
		Dial:       amqp.DefaultDial(connectTimeout),
		Properties: properties,
	})
	if err == nil {
		a.conn = conn
	}
	return err
}

func (a *AmqpConnection) createChannel() error {
	channel, err := a.conn.Channel()
	if err == nil {
		a.channel = channel
	}
	return err
}

func (a *AmqpConnection) declareExchange(name, exchangeType string) error {
	return a.channel.ExchangeDeclare(
		name,
		exchangeType,
		durable,
		deleteWhenUnused,
		internal,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) declareQueue(name string) error {
	queue, err := a.channel.QueueDeclare(
		name,
		durable,
		deleteWhenUnused,
		exclusive,
		noWait,
		nil, // arguments
	)
	if err == nil {
		a.queue = &queue
	}
	return err
}

func (a *AmqpConnection) queueBind(queueName, key, exchangeName string) error {
	return a.channel.QueueBind(
		queueName,
		key,
		exchangeName,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) consume(queueName string) (<-chan amqp.Delivery, error) {
	return a.channel.Consume(queueName, consumerTag, autoAck, exclusive, noLocal, noWait, nil)
}

func (a *AmqpConnection) publish(exchange, key string, body []byte) error {
	return a.channel.Publish(
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (a *AmqpConnection) isClosed() bool {
	return a.conn == nil || a.conn.IsClosed()
}

func (a *AmqpConnection) close() error {
	if a.channel != nil {
		defer a.channel.Close()
	}
	if a.conn != nil && !a.conn.IsClosed() {
		return a.conn.Close()
	}
	return nil
}

func (a *AmqpConnection) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	return a.conn.NotifyClose(channel)
}
