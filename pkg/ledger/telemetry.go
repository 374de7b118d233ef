package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// InsertTelemetry appends one weight sample.
func (s *Store) InsertTelemetry(ctx context.Context, record entities.TelemetryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_logs (device_id, weight, is_overload, timestamp)
		VALUES (?, ?, ?, ?)
	`, record.DeviceID, record.Weight, record.IsOverload, formatTime(record.Timestamp))
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// ListTelemetry returns samples newest first. An empty deviceID lists all
// devices.
func (s *Store) ListTelemetry(ctx context.Context, deviceID string, limit, offset int) ([]entities.TelemetryRecord, error) {
	query := `
		SELECT id, device_id, weight, is_overload, timestamp
		FROM weight_logs`
	args := []interface{}{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	defer rows.Close()

	records := []entities.TelemetryRecord{}
	for rows.Next() {
		var (
			record    entities.TelemetryRecord
			timestamp string
		)
		if err := rows.Scan(&record.ID, &record.DeviceID, &record.Weight, &record.IsOverload, &timestamp); err != nil {
			return nil, fmt.Errorf("list telemetry: %w", err)
		}
		record.Timestamp = parseTime(timestamp)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	return records, nil
}

// FindLastTelemetry returns the newest sample for a device.
func (s *Store) FindLastTelemetry(ctx context.Context, deviceID string) (*entities.TelemetryRecord, error) {
	var (
		record    entities.TelemetryRecord
		timestamp string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, weight, is_overload, timestamp
		FROM weight_logs WHERE device_id = ?
		ORDER BY timestamp DESC LIMIT 1
	`, deviceID).Scan(&record.ID, &record.DeviceID, &record.Weight, &record.IsOverload, &timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find last telemetry: %w", err)
	}
	record.Timestamp = parseTime(timestamp)
	return &record, nil
}
