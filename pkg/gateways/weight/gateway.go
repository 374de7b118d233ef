package weight

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

type routingKeyActionMapping map[string]func(message network.InMsg)

// Gateway wires the broker connection to the telemetry pipeline and exposes
// the engine components to the operator API.
type Gateway struct {
	amqp       network.Messaging
	store      *ledger.Store
	ingestor   *Ingestor
	resolver   *Resolver
	dispatcher *Dispatcher
	logger     *logrus.Entry
	msgChan    chan network.InMsg
}

// NewGateway connects to the broker, subscribes to the device topics and
// starts the inbound message loop. A broker that is down at boot is not
// fatal; the handler keeps reconnecting and the operator API stays up.
func NewGateway(conf entities.GatewayConfig, store *ledger.Store, logger *logrus.Entry) (*Gateway, error) {
	amqp := network.NewAMQPHandler(network.NewAmqpConnection(), conf.Broker, logger)
	if err := amqp.Start(); err != nil {
		if errors.Is(err, network.ErrMissingCredentials) {
			return nil, NewConfigError(err, "broker configuration")
		}
		logger.Errorln("starting without broker, reconnecting in background: ", err)
	}

	publisher := network.NewMsgPublisher(amqp)
	dispatcher := NewDispatcher(store, publisher, logger)
	resolver := NewResolver(store, dispatcher, logger)
	ingestor := NewIngestor(store, resolver, dispatcher, dedupConfigFromEnvironment(), logger)

	g := &Gateway{
		amqp:       amqp,
		store:      store,
		ingestor:   ingestor,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		msgChan:    make(chan network.InMsg),
	}
	if err := network.NewMsgSubscriber(amqp).SubscribeToDeviceMessages(g.msgChan); err != nil {
		return nil, err
	}
	go g.handleMessages()
	return g, nil
}

func (g *Gateway) Ingestor() *Ingestor {
	return g.ingestor
}

func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}

func (g *Gateway) Dispatcher() *Dispatcher {
	return g.dispatcher
}

func (g *Gateway) IsConnected() bool {
	return g.amqp.IsConnected()
}

func (g *Gateway) Close() error {
	return g.amqp.Stop()
}

func (g *Gateway) handleMessages() {
	actions := routingKeyActionMapping{
		network.RoutingKeyTelemetry: g.handleTelemetry,
		network.RoutingKeyStatus:    g.handleDeviceStatus,
	}
	for message := range g.msgChan {
		action, ok := actions[message.RoutingKey]
		if !ok {
			g.logger.Warnln("no handler for routing key ", message.RoutingKey)
			continue
		}
		action(message)
	}
}

func (g *Gateway) handleTelemetry(message network.InMsg) {
	var telemetry network.TelemetryMessage
	if err := json.Unmarshal(message.Body, &telemetry); err != nil {
		g.logger.Errorln("invalid telemetry payload: ", err)
		return
	}
	result, err := g.ingestor.IngestMessage(context.Background(), telemetry)
	if err != nil {
		g.logger.Errorln("failed to process telemetry: ", err)
		return
	}
	if result.Duplicate {
		return
	}
	g.logger.Infoln(result.DeviceID, ": ", result.CurrentWeight, "kg of ", result.MaxWeight, "kg, overload: ", result.IsOverload)
}

func (g *Gateway) handleDeviceStatus(message network.InMsg) {
	var status network.DeviceStatusMessage
	if err := json.Unmarshal(message.Body, &status); err != nil {
		g.logger.Errorln("invalid device status payload: ", err)
		return
	}
	if status.DeviceID == "" {
		g.logger.Warnln("device status without device id")
		return
	}
	if err := g.store.TouchDevice(context.Background(), status.DeviceID, time.Now()); err != nil {
		g.logger.Errorln("failed to refresh last seen for ", status.DeviceID, ": ", err)
	}
	g.logger.Infoln("device ", status.DeviceID, " reports ", status.Status)
}

func getValueFromEnvironmentVariable(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func dedupConfigFromEnvironment() DedupConfig {
	dedup := DefaultDedupConfig()
	if getValueFromEnvironmentVariable("DUPLICATION_FILTER", "1") == "0" {
		dedup.Enabled = false
	}
	if capacity, err := strconv.ParseUint(getValueFromEnvironmentVariable("FILTER_CAPACITY", ""), 10, 0); err == nil && capacity > 0 {
		dedup.FilterCapacity = uint(capacity)
	}
	if probability, err := strconv.ParseFloat(getValueFromEnvironmentVariable("DUPLICATION_PROBABILITY", ""), 64); err == nil && probability > 0 {
		dedup.DuplicationProbability = probability
	}
	if fraction, err := strconv.ParseFloat(getValueFromEnvironmentVariable("RESET_FILTER_USAGE_PERCENTAGE", ""), 64); err == nil && fraction > 0 {
		dedup.ResetUsageFraction = fraction
	}
	return dedup
}
