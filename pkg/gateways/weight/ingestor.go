package weight

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

// IngestLedger is the slice of the record store the ingestor needs.
type IngestLedger interface {
	GetDeviceStatus(ctx context.Context, deviceID string) (*entities.DeviceStatus, error)
	UpsertDeviceStatus(ctx context.Context, status entities.DeviceStatus) error
	InsertTelemetry(ctx context.Context, record entities.TelemetryRecord) error
	InsertEvent(ctx context.Context, event entities.Event) error
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error
}

type thresholdResolver interface {
	Resolve(ctx context.Context, deviceID string) (float64, error)
}

type commandDispatcher interface {
	Dispatch(ctx context.Context, command network.ControlCommandMessage, commandType, sentBy string) *DispatchResult
}

// DedupConfig tunes the per-device bloom filters that drop broker
// redeliveries. Samples without a timestamp are never filtered.
type DedupConfig struct {
	Enabled                bool
	FilterCapacity         uint
	DuplicationProbability float64
	ResetUsageFraction     float64
}

func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Enabled:                true,
		FilterCapacity:         1000000,
		DuplicationProbability: 0.01,
		ResetUsageFraction:     0.75,
	}
}

// ProcessingResult summarizes what one telemetry sample did to the device.
type ProcessingResult struct {
	DeviceID      string  `json:"device_id"`
	CurrentWeight float64 `json:"current_weight"`
	MaxWeight     float64 `json:"max_weight"`
	IsOverload    bool    `json:"is_overload"`
	MotorEnabled  bool    `json:"motor_enabled"`
	AlarmEnabled  bool    `json:"alarm_enabled"`
	Transitioned  bool    `json:"transitioned"`
	EventType     string  `json:"event_type,omitempty"`
	Duplicate     bool    `json:"duplicate,omitempty"`
}

// Ingestor runs the telemetry pipeline: parse, deduplicate, resolve the
// threshold, evaluate, persist, and push the resulting device command.
// Samples for the same device are processed one at a time; different
// devices proceed concurrently.
type Ingestor struct {
	ledger     IngestLedger
	resolver   thresholdResolver
	dispatcher commandDispatcher
	logger     *logrus.Entry
	dedup      DedupConfig
	now        func() time.Time

	mutex       sync.Mutex
	deviceLocks map[string]*sync.Mutex
	filters     map[string]*bloomFilter.BloomFilter
}

func NewIngestor(ingestLedger IngestLedger, resolver thresholdResolver, dispatcher commandDispatcher, dedup DedupConfig, logger *logrus.Entry) *Ingestor {
	return &Ingestor{
		ledger:      ingestLedger,
		resolver:    resolver,
		dispatcher:  dispatcher,
		logger:      logger,
		dedup:       dedup,
		now:         time.Now,
		deviceLocks: map[string]*sync.Mutex{},
		filters:     map[string]*bloomFilter.BloomFilter{},
	}
}

// IngestMessage processes one telemetry message from the broker.
func (i *Ingestor) IngestMessage(ctx context.Context, message network.TelemetryMessage) (*ProcessingResult, error) {
	return i.ingest(ctx, message.DeviceID, message.Weight, message.Timestamp)
}

// Ingest processes one weight sample that did not arrive via the broker.
func (i *Ingestor) Ingest(ctx context.Context, deviceID string, rawWeight interface{}) (*ProcessingResult, error) {
	return i.ingest(ctx, deviceID, rawWeight, "")
}

func (i *Ingestor) ingest(ctx context.Context, deviceID string, rawWeight interface{}, timestamp string) (*ProcessingResult, error) {
	currentWeight, err := parseWeight(rawWeight)
	if err != nil {
		return nil, err
	}
	if deviceID == "" {
		deviceID = entities.DefaultDeviceID
	}

	unlock := i.lockDevice(deviceID)
	defer unlock()

	if timestamp != "" && i.isDuplicate(deviceID, timestamp) {
		i.logger.Debugln("dropping duplicate sample for ", deviceID, " at ", timestamp)
		return &ProcessingResult{DeviceID: deviceID, CurrentWeight: currentWeight, Duplicate: true}, nil
	}

	maxWeight, err := i.resolver.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	previousOverload := false
	if status, err := i.ledger.GetDeviceStatus(ctx, deviceID); err == nil {
		previousOverload = status.IsOverload
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, NewStoreError(err, "reading previous device status")
	}

	now := i.now()
	decision := Evaluate(currentWeight, maxWeight, previousOverload)

	if decision.Transitioned {
		if err := i.ledger.InsertEvent(ctx, entities.Event{
			DeviceID:  deviceID,
			EventType: decision.EventType,
			Weight:    currentWeight,
			MaxWeight: maxWeight,
			Timestamp: now,
		}); err != nil {
			i.logger.Errorln("failed to record ", decision.EventType, " event for ", deviceID, ": ", err)
		} else {
			i.logger.Infoln(decision.EventType, " on ", deviceID, ": ", currentWeight, "kg against ", maxWeight, "kg")
		}
	}

	if err := i.ledger.InsertTelemetry(ctx, entities.TelemetryRecord{
		DeviceID:   deviceID,
		Weight:     currentWeight,
		IsOverload: decision.IsOverload,
		Timestamp:  now,
	}); err != nil {
		i.logger.Errorln("failed to record telemetry for ", deviceID, ": ", err)
	}
	if err := i.ledger.UpsertDeviceStatus(ctx, entities.DeviceStatus{
		DeviceID:      deviceID,
		CurrentWeight: currentWeight,
		IsOverload:    decision.IsOverload,
		MotorEnabled:  !decision.IsOverload,
		AlarmActive:   decision.IsOverload,
		LastUpdate:    now,
	}); err != nil {
		i.logger.Errorln("failed to update status for ", deviceID, ": ", err)
	}
	if err := i.ledger.TouchDevice(ctx, deviceID, now); err != nil {
		i.logger.Errorln("failed to refresh last seen for ", deviceID, ": ", err)
	}

	i.dispatcher.Dispatch(ctx, network.ControlCommandMessage{
		DeviceID:      deviceID,
		MotorEnabled:  network.Bool(!decision.IsOverload),
		AlarmEnabled:  network.Bool(decision.IsOverload),
		MaxWeight:     network.Float(maxWeight),
		CurrentWeight: network.Float(currentWeight),
		IsOverload:    network.Bool(decision.IsOverload),
		Timestamp:     now,
	}, CommandTypeMotorControl, SenderSystem)

	if timestamp != "" {
		i.rememberSample(deviceID, timestamp)
	}

	return &ProcessingResult{
		DeviceID:      deviceID,
		CurrentWeight: currentWeight,
		MaxWeight:     maxWeight,
		IsOverload:    decision.IsOverload,
		MotorEnabled:  !decision.IsOverload,
		AlarmEnabled:  decision.IsOverload,
		Transitioned:  decision.Transitioned,
		EventType:     decision.EventType,
	}, nil
}

func parseWeight(raw interface{}) (float64, error) {
	switch value := raw.(type) {
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, NewValidationError("weight %q is not numeric", value.String())
		}
		return parsed, nil
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, NewValidationError("weight %q is not numeric", value)
		}
		return parsed, nil
	case nil:
		return 0, NewValidationError("weight is required")
	default:
		return 0, NewValidationError("weight must be a number or numeric string")
	}
}

func (i *Ingestor) lockDevice(deviceID string) func() {
	i.mutex.Lock()
	lock, ok := i.deviceLocks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		i.deviceLocks[deviceID] = lock
	}
	i.mutex.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (i *Ingestor) isDuplicate(deviceID, timestamp string) bool {
	if !i.dedup.Enabled {
		return false
	}
	i.mutex.Lock()
	filter, ok := i.filters[deviceID]
	i.mutex.Unlock()
	if !ok {
		return false
	}
	return filter.Test([]byte(timestamp))
}

func (i *Ingestor) rememberSample(deviceID, timestamp string) {
	if !i.dedup.Enabled {
		return
	}
	i.mutex.Lock()
	defer i.mutex.Unlock()

	filter, ok := i.filters[deviceID]
	if !ok {
		filter = bloomFilter.NewWithEstimates(i.dedup.FilterCapacity, i.dedup.DuplicationProbability)
		i.filters[deviceID] = filter
	}
	usage := float64(filter.ApproximatedSize()) / float64(i.dedup.FilterCapacity)
	if usage >= i.dedup.ResetUsageFraction {
		filter.ClearAll()
	}
	filter.Add([]byte(timestamp))
}
