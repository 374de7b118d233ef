package network

import "time"

// TelemetryMessage is the payload devices publish on the weight topic.
// Weight is left untyped because firmware in the field sends both numbers
// and numeric strings; the ingestor parses it at the boundary.
type TelemetryMessage struct {
	DeviceID   string      `json:"device_id"`
	Weight     interface{} `json:"weight"`
	Timestamp  string      `json:"timestamp,omitempty"`
	RawPayload string      `json:"raw_payload,omitempty"`
}

// DeviceStatusMessage is published by devices on the status topic. It is
// recorded for visibility but not acted on.
type DeviceStatusMessage struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status,omitempty"`
}

// ControlCommandMessage is pushed to devices on the control topic. Absent
// optional fields are published as explicit nulls so firmware can tell
// "leave unchanged" apart from "turn off".
type ControlCommandMessage struct {
	DeviceID      string    `json:"device_id"`
	MotorEnabled  *bool     `json:"motor_enabled"`
	AlarmEnabled  *bool     `json:"alarm_enabled"`
	Direction     *string   `json:"direction"`
	Speed         *float64  `json:"speed"`
	Command       string    `json:"command,omitempty"`
	MaxWeight     *float64  `json:"max_weight,omitempty"`
	CurrentWeight *float64  `json:"current_weight,omitempty"`
	IsOverload    *bool     `json:"is_overload,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SettingsUpdateMessage notifies devices of a new threshold. DeviceID is a
// single device id or the "all" sentinel for global updates.
type SettingsUpdateMessage struct {
	DeviceID  string    `json:"device_id"`
	MaxWeight float64   `json:"max_weight"`
	Timestamp time.Time `json:"timestamp"`
}

func Bool(v bool) *bool {
	return &v
}

func Float(v float64) *float64 {
	return &v
}

func String(v string) *string {
	return &v
}
