package entities

import "time"

const (
	// EventOverload and EventRecovery are the only transition kinds a
	// device can go through.
	EventOverload string = "overload"
	EventRecovery string = "recovery"

	// DefaultDeviceID is assumed when a telemetry message omits the
	// device identity.
	DefaultDeviceID string = "default_device"

	// GlobalScope marks a setting that applies to every device without
	// a device-specific override.
	GlobalScope string = ""

	// AllDevices is the sentinel published on settings notifications
	// that affect the whole fleet.
	AllDevices string = "all"
)

// Device is a load-sensing unit known to the gateway. Devices are created on
// first registration or on the first telemetry message referencing an unseen
// id, and are never deleted.
type Device struct {
	ID       string    `json:"device_id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name"`
	Location string    `json:"location,omitempty" yaml:"location"`
	LastSeen time.Time `json:"last_seen" yaml:"lastSeen"`
}

// Setting holds a weight threshold for one scope. An empty DeviceID denotes
// the global setting. History is append-only; the resolver always reads the
// most recently updated row for a scope.
type Setting struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id,omitempty"`
	MaxWeight float64   `json:"max_weight"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceStatus is the current snapshot for a device, one row per device.
// It is the authoritative previous state for transition detection.
type DeviceStatus struct {
	DeviceID      string    `json:"device_id"`
	CurrentWeight float64   `json:"current_weight"`
	IsOverload    bool      `json:"is_overload"`
	MotorEnabled  bool      `json:"motor_enabled"`
	AlarmActive   bool      `json:"alarm_active"`
	LastUpdate    time.Time `json:"last_update"`
}

// TelemetryRecord is one ingested weight sample. Append-only.
type TelemetryRecord struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	Weight     float64   `json:"weight"`
	IsOverload bool      `json:"is_overload"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event records one overload or recovery transition. Append-only.
type Event struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	EventType string    `json:"event_type"`
	Weight    float64   `json:"weight"`
	MaxWeight float64   `json:"max_weight"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	CommandStatusSent string = "sent"
	CommandStatusAck  string = "ack"
)

// ControlLogEntry records every command the gateway emits, telemetry-driven
// or operator-driven. The log entry is written before the publish, so the
// log is the source of truth and the publish is best effort.
type ControlLogEntry struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"device_id"`
	CommandType    string     `json:"command_type"`
	CommandPayload string     `json:"command_payload"`
	SentBy         string     `json:"sent_by"`
	SentAt         time.Time  `json:"sent_at"`
	Status         string     `json:"status"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}
