package ledger

import (
	"context"
	"fmt"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// InsertEvent appends one overload or recovery transition.
func (s *Store) InsertEvent(ctx context.Context, event entities.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (device_id, event_type, weight, max_weight, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, event.DeviceID, event.EventType, event.Weight, event.MaxWeight, formatTime(event.Timestamp))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns transitions newest first. An empty deviceID lists all
// devices.
func (s *Store) ListEvents(ctx context.Context, deviceID string, limit, offset int) ([]entities.Event, error) {
	query := `
		SELECT id, device_id, event_type, weight, max_weight, timestamp
		FROM events`
	args := []interface{}{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []entities.Event{}
	for rows.Next() {
		var (
			event     entities.Event
			timestamp string
		)
		if err := rows.Scan(&event.ID, &event.DeviceID, &event.EventType, &event.Weight, &event.MaxWeight, &timestamp); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		event.Timestamp = parseTime(timestamp)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
