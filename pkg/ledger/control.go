package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// InsertControlLog appends a command record. The entry is written before the
// command is published, so the log remains the source of truth when the
// publish fails.
func (s *Store) InsertControlLog(ctx context.Context, entry entities.ControlLogEntry) (*entities.ControlLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = entities.CommandStatusSent
	}

	var executedAt interface{}
	if entry.ExecutedAt != nil {
		executedAt = formatTime(*entry.ExecutedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO control_logs (id, device_id, command_type, command_payload, sent_by, sent_at, status, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.DeviceID, entry.CommandType, entry.CommandPayload,
		entry.SentBy, formatTime(entry.SentAt), entry.Status, executedAt)
	if err != nil {
		return nil, fmt.Errorf("insert control log: %w", err)
	}
	return &entry, nil
}

// UpdateControlLogStatus records a device acknowledgment for a command.
func (s *Store) UpdateControlLogStatus(ctx context.Context, id, status string, executedAt *time.Time) error {
	var stamped interface{}
	if executedAt != nil {
		stamped = formatTime(*executedAt)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE control_logs SET status = ?, executed_at = ? WHERE id = ?
	`, status, stamped, id)
	if err != nil {
		return fmt.Errorf("update control log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update control log: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListControlLogs returns command history newest first. An empty deviceID
// lists all devices.
func (s *Store) ListControlLogs(ctx context.Context, deviceID string, limit, offset int) ([]entities.ControlLogEntry, error) {
	query := `
		SELECT id, device_id, command_type, command_payload, sent_by, sent_at, status, executed_at
		FROM control_logs`
	args := []interface{}{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY sent_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list control logs: %w", err)
	}
	defer rows.Close()

	entries := []entities.ControlLogEntry{}
	for rows.Next() {
		var (
			entry      entities.ControlLogEntry
			sentAt     string
			executedAt sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.CommandType, &entry.CommandPayload,
			&entry.SentBy, &sentAt, &entry.Status, &executedAt); err != nil {
			return nil, fmt.Errorf("list control logs: %w", err)
		}
		entry.SentAt = parseTime(sentAt)
		if executedAt.Valid {
			stamped := parseTime(executedAt.String)
			entry.ExecutedAt = &stamped
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list control logs: %w", err)
	}
	return entries, nil
}
