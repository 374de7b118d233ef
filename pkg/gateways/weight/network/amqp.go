package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/entities"
)

const (
	inboundQueue = "loadgate-inbound"

	RoutingKeyTelemetry = "telemetry.weight"
	RoutingKeyStatus    = "device.status"
	RoutingKeyControl   = "device.control"
	RoutingKeySettings  = "device.settings"

	defaultReconnectInterval = 5 * time.Second
	defaultSettleDelay       = 500 * time.Millisecond
)

var (
	// ErrMissingCredentials is returned by Start when the broker
	// configuration is incomplete.
	ErrMissingCredentials = errors.New("incomplete broker credentials")
	// ErrNotConnected is returned by publish calls while the connection
	// is down. Messages are not queued.
	ErrNotConnected = errors.New("broker not connected")
)

// InMsg is an inbound broker message.
type InMsg struct {
	RoutingKey string
	Body       []byte
}

// Messaging owns the single long-lived broker connection.
type Messaging interface {
	Start() error
	Stop() error
	IsConnected() bool
	OnMessage(msgChan chan InMsg, key string) error
	PublishPersistentMessage(key string, data interface{}) error
}

type binding struct {
	msgChan chan InMsg
	key     string
}

// AMQPHandler manages connect, reconnect and subscription state. The
// connection handle and the subscribed flag are only mutated under the
// handler's own mutex.
type AMQPHandler struct {
	conf   entities.BrokerConfig
	conn   connection
	logger *logrus.Entry

	mutex      sync.Mutex
	connected  bool
	subscribed bool
	bindings   []binding

	reconnectInterval time.Duration
	settleDelay       time.Duration
}

func NewAMQPHandler(conn connection, conf entities.BrokerConfig, logger *logrus.Entry) *AMQPHandler {
	h := &AMQPHandler{
		conf:              conf,
		conn:              conn,
		logger:            logger,
		reconnectInterval: defaultReconnectInterval,
		settleDelay:       defaultSettleDelay,
	}
	if conf.ReconnectSeconds > 0 {
		h.reconnectInterval = time.Duration(conf.ReconnectSeconds) * time.Second
	}
	if conf.SettleMilliseconds > 0 {
		h.settleDelay = time.Duration(conf.SettleMilliseconds) * time.Millisecond
	}
	return h
}

// Start establishes the broker connection. Calling Start while connected is
// a no-op. A failed first attempt hands control to the reconnect loop, so
// the process still comes up and heals once the broker is reachable.
func (h *AMQPHandler) Start() error {
	if h.IsConnected() {
		h.logger.Infoln("already connected to broker")
		return nil
	}
	if h.conf.Host == "" || h.conf.Username == "" || h.conf.Password == "" {
		return ErrMissingCredentials
	}

	if err := h.connect(); err != nil {
		h.logger.Errorln("broker connection failed: ", err)
		go h.reconnectLoop()
		return err
	}
	h.logger.Infoln("connected to broker ", h.conf.Host)
	h.afterConnect()
	return nil
}

func (h *AMQPHandler) Stop() error {
	h.mutex.Lock()
	h.connected = false
	h.subscribed = false
	h.mutex.Unlock()
	return h.conn.close()
}

func (h *AMQPHandler) IsConnected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.connected
}

// OnMessage registers a routing key whose messages are delivered on msgChan.
// The actual broker subscription happens after the connection settles, and
// again after every reconnect.
func (h *AMQPHandler) OnMessage(msgChan chan InMsg, key string) error {
	h.mutex.Lock()
	h.bindings = append(h.bindings, binding{msgChan: msgChan, key: key})
	connected := h.connected
	h.mutex.Unlock()

	if connected {
		h.subscribeAfterSettle()
	}
	return nil
}

// PublishPersistentMessage publishes to the gateway exchange with persistent
// delivery. It fails fast while disconnected; nothing is queued. Structured
// payloads are JSON-encoded, strings and byte slices pass through.
func (h *AMQPHandler) PublishPersistentMessage(key string, data interface{}) error {
	if !h.IsConnected() {
		return ErrNotConnected
	}

	var body []byte
	switch payload := data.(type) {
	case []byte:
		body = payload
	case string:
		body = []byte(payload)
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("error encoding JSON message: %w", err)
		}
		body = encoded
	}

	return h.conn.publish(exchangeGateway, key, body)
}

func (h *AMQPHandler) connect() error {
	if err := h.conn.connect(h.conf); err != nil {
		return err
	}
	if err := h.conn.createChannel(); err != nil {
		return err
	}
	if err := h.conn.declareExchange(exchangeGateway, exchangeTypeDirect); err != nil {
		return err
	}

	h.mutex.Lock()
	h.connected = true
	h.subscribed = false
	h.mutex.Unlock()
	return nil
}

func (h *AMQPHandler) afterConnect() {
	go h.watchClose()
	h.subscribeAfterSettle()
}

func (h *AMQPHandler) subscribeAfterSettle() {
	go func() {
		time.Sleep(h.settleDelay)
		h.subscribeAll()
	}()
}

func (h *AMQPHandler) watchClose() {
	errReason := <-h.conn.notifyClose(make(chan *amqp.Error))

	h.mutex.Lock()
	h.connected = false
	h.subscribed = false
	h.mutex.Unlock()

	if errReason == nil {
		// deliberate Stop
		return
	}
	h.logger.Errorln("broker connection closed: ", errReason)
	h.reconnectLoop()
}

// reconnectLoop retries at a fixed interval, forever. The gateway process is
// supervised externally, so the connection never gives up on its own.
func (h *AMQPHandler) reconnectLoop() {
	policy := backoff.NewConstantBackOff(h.reconnectInterval)
	err := backoff.Retry(func() error {
		h.logger.Infoln("reconnecting to broker")
		return h.connect()
	}, policy)
	if err != nil {
		return
	}
	h.logger.Infoln("broker reconnection successful")
	h.afterConnect()
}

// subscribeAll binds every registered routing key to the inbound queue and
// starts a single consumer. The subscribed flag suppresses redundant passes,
// so a reconnect re-subscribes exactly once even if connect events race the
// settle delay.
func (h *AMQPHandler) subscribeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.connected {
		h.logger.Warnln("cannot subscribe, broker not connected")
		return
	}
	if h.subscribed {
		h.logger.Debugln("already subscribed to inbound topics")
		return
	}
	if len(h.bindings) == 0 {
		return
	}

	if err := h.conn.declareQueue(inboundQueue); err != nil {
		h.logger.Errorln("failed to declare inbound queue: ", err)
		return
	}
	for _, b := range h.bindings {
		if err := h.conn.queueBind(inboundQueue, b.key, exchangeGateway); err != nil {
			h.logger.Errorln("failed to subscribe to ", b.key, ": ", err)
			return
		}
		h.logger.Infoln("subscribed to ", b.key)
	}

	deliveries, err := h.conn.consume(inboundQueue)
	if err != nil {
		h.logger.Errorln("failed to consume inbound queue: ", err)
		return
	}

	bindings := append([]binding(nil), h.bindings...)
	go h.forwardDeliveries(deliveries, bindings)
	h.subscribed = true
}

func (h *AMQPHandler) forwardDeliveries(deliveries <-chan amqp.Delivery, bindings []binding) {
	for delivery := range deliveries {
		for _, b := range bindings {
			if b.key == delivery.RoutingKey {
				b.msgChan <- InMsg{RoutingKey: delivery.RoutingKey, Body: delivery.Body}
				break
			}
		}
		if err := delivery.Ack(false); err != nil {
			h.logger.Errorln("failed to ack delivery: ", err)
		}
	}
}
