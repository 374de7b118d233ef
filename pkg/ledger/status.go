package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// GetDeviceStatus returns the current snapshot for a device, or ErrNotFound
// when the device has never reported.
func (s *Store) GetDeviceStatus(ctx context.Context, deviceID string) (*entities.DeviceStatus, error) {
	var (
		status     entities.DeviceStatus
		lastUpdate string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, current_weight, is_overload, motor_enabled, alarm_active, last_update
		FROM device_status WHERE device_id = ?
	`, deviceID).Scan(&status.DeviceID, &status.CurrentWeight, &status.IsOverload,
		&status.MotorEnabled, &status.AlarmActive, &lastUpdate)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device status: %w", err)
	}
	status.LastUpdate = parseTime(lastUpdate)
	return &status, nil
}

// UpsertDeviceStatus replaces the snapshot for a device, one row per device.
func (s *Store) UpsertDeviceStatus(ctx context.Context, status entities.DeviceStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_status (device_id, current_weight, is_overload, motor_enabled, alarm_active, last_update)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			current_weight = excluded.current_weight,
			is_overload    = excluded.is_overload,
			motor_enabled  = excluded.motor_enabled,
			alarm_active   = excluded.alarm_active,
			last_update    = excluded.last_update
	`, status.DeviceID, status.CurrentWeight, status.IsOverload,
		status.MotorEnabled, status.AlarmActive, formatTime(status.LastUpdate))
	if err != nil {
		return fmt.Errorf("upsert device status: %w", err)
	}
	return nil
}
