package weight

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

const (
	CommandTypeMotorControl    = "motor_control"
	CommandTypeManualControl   = "manual_control"
	CommandTypeMovementControl = "movement_control"
	CommandTypeAlarmControl    = "alarm_control"
	CommandTypeSettingsUpdate  = "settings_update"

	// SenderSystem marks commands triggered by telemetry processing rather
	// than an operator.
	SenderSystem = "system"
)

var allowedCommands = map[string]struct{}{
	"reset":          {},
	"motor_on":       {},
	"motor_off":      {},
	"set_max_weight": {},
	"forward":        {},
	"reverse":        {},
	"stop":           {},
}

// AllowedCommands lists the named commands operators may send, sorted for
// stable error messages.
func AllowedCommands() []string {
	commands := make([]string, 0, len(allowedCommands))
	for command := range allowedCommands {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return commands
}

// ControlLogLedger is the slice of the record store the dispatcher needs.
type ControlLogLedger interface {
	InsertControlLog(ctx context.Context, entry entities.ControlLogEntry) (*entities.ControlLogEntry, error)
	UpdateControlLogStatus(ctx context.Context, id, status string, executedAt *time.Time) error
}

// OperatorCommand is the operator-facing request shape. Command names an
// action from the allow list; the pointer fields set device state directly.
type OperatorCommand struct {
	Command      string   `json:"command,omitempty"`
	MotorEnabled *bool    `json:"motor_enabled,omitempty"`
	AlarmEnabled *bool    `json:"alarm_enabled,omitempty"`
	Direction    *string  `json:"direction,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
}

// DispatchResult reports what was recorded and pushed for one command.
type DispatchResult struct {
	LogID   string                        `json:"log_id,omitempty"`
	Command network.ControlCommandMessage `json:"command"`
}

// Dispatcher records and publishes outbound device commands. The log entry
// is written before the publish; a failed publish never loses the record,
// and neither failure aborts the caller.
type Dispatcher struct {
	ledger    ControlLogLedger
	publisher network.Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

func NewDispatcher(controlLedger ControlLogLedger, publisher network.Publisher, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		ledger:    controlLedger,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch writes a control log entry, then publishes the command. Store and
// publish failures are logged and swallowed so telemetry processing keeps
// going while the broker or the disk misbehaves.
func (d *Dispatcher) Dispatch(ctx context.Context, command network.ControlCommandMessage, commandType, sentBy string) *DispatchResult {
	if command.Timestamp.IsZero() {
		command.Timestamp = d.now()
	}
	payload, err := json.Marshal(command)
	if err != nil {
		d.logger.Errorln("failed to encode control command: ", err)
		return &DispatchResult{Command: command}
	}

	result := &DispatchResult{Command: command}
	entry, err := d.ledger.InsertControlLog(ctx, entities.ControlLogEntry{
		DeviceID:       command.DeviceID,
		CommandType:    commandType,
		CommandPayload: string(payload),
		SentBy:         sentBy,
		SentAt:         command.Timestamp,
	})
	if err != nil {
		d.logger.Errorln("failed to record control command: ", err)
	} else {
		result.LogID = entry.ID
	}

	if err := d.publisher.PublishControlCommand(command); err != nil {
		d.logger.Errorln("failed to publish control command for ", command.DeviceID, ": ", err)
	}
	return result
}

// SendOperatorCommand validates and dispatches an operator request.
func (d *Dispatcher) SendOperatorCommand(ctx context.Context, deviceID string, command OperatorCommand, sentBy string) (*DispatchResult, error) {
	if deviceID == "" {
		return nil, NewValidationError("device_id is required")
	}
	if command.Command == "" && command.MotorEnabled == nil && command.AlarmEnabled == nil &&
		command.Direction == nil && command.Speed == nil {
		return nil, NewValidationError("command body is empty")
	}
	if command.Command != "" {
		if _, ok := allowedCommands[command.Command]; !ok {
			return nil, NewValidationError("unknown command %q, allowed commands: %s",
				command.Command, strings.Join(AllowedCommands(), ", "))
		}
	}
	if sentBy == "" {
		sentBy = "operator"
	}

	message := network.ControlCommandMessage{
		DeviceID:     deviceID,
		MotorEnabled: command.MotorEnabled,
		AlarmEnabled: command.AlarmEnabled,
		Direction:    command.Direction,
		Speed:        command.Speed,
		Command:      command.Command,
		Timestamp:    d.now(),
	}
	return d.Dispatch(ctx, message, classifyCommand(command), sentBy), nil
}

func classifyCommand(command OperatorCommand) string {
	switch {
	case command.Direction != nil || command.Speed != nil:
		return CommandTypeMovementControl
	case command.MotorEnabled != nil:
		return CommandTypeMotorControl
	case command.AlarmEnabled != nil:
		return CommandTypeAlarmControl
	default:
		return CommandTypeManualControl
	}
}

// NotifySettingsUpdate records and publishes a threshold change. Scope is a
// device id or the "all" sentinel.
func (d *Dispatcher) NotifySettingsUpdate(ctx context.Context, scope string, maxWeight float64, updatedBy string) {
	update := network.SettingsUpdateMessage{
		DeviceID:  scope,
		MaxWeight: maxWeight,
		Timestamp: d.now(),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		d.logger.Errorln("failed to encode settings update: ", err)
		return
	}
	if _, err := d.ledger.InsertControlLog(ctx, entities.ControlLogEntry{
		DeviceID:       scope,
		CommandType:    CommandTypeSettingsUpdate,
		CommandPayload: string(payload),
		SentBy:         updatedBy,
		SentAt:         update.Timestamp,
	}); err != nil {
		d.logger.Errorln("failed to record settings update: ", err)
	}
	if err := d.publisher.PublishSettingsUpdate(update); err != nil {
		d.logger.Errorln("failed to publish settings update for ", scope, ": ", err)
	}
}

// UpdateStatus records a device acknowledgment for a previously dispatched
// command.
func (d *Dispatcher) UpdateStatus(ctx context.Context, logID, status string, executedAt *time.Time) error {
	if logID == "" {
		return NewValidationError("log id is required")
	}
	if status != entities.CommandStatusSent && status != entities.CommandStatusAck {
		return NewValidationError("unknown command status %q", status)
	}
	if status == entities.CommandStatusAck && executedAt == nil {
		stamped := d.now()
		executedAt = &stamped
	}
	if err := d.ledger.UpdateControlLogStatus(ctx, logID, status, executedAt); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return NewNotFoundError("control log entry %s not found", logID)
		}
		return NewStoreError(err, "updating command status")
	}
	return nil
}
