package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// RegisterDevice upserts a device row and stamps last_seen. The returned
// flag reports whether the device was seen for the first time, so callers
// can seed a default threshold for it.
func (s *Store) RegisterDevice(ctx context.Context, device entities.Device) (*entities.Device, bool, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT device_id FROM devices WHERE device_id = ?`, device.ID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("register device: %w", err)
	}
	isNew := err == sql.ErrNoRows

	if device.LastSeen.IsZero() {
		device.LastSeen = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, location, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name      = COALESCE(excluded.name, name),
			location  = COALESCE(excluded.location, location),
			last_seen = excluded.last_seen
	`, device.ID, nullableString(device.Name), nullableString(device.Location), formatTime(device.LastSeen))
	if err != nil {
		return nil, false, fmt.Errorf("register device: %w", err)
	}

	registered, err := s.GetDevice(ctx, device.ID)
	if err != nil {
		return nil, false, err
	}
	return registered, isNew, nil
}

// TouchDevice creates the device row on first contact and refreshes
// last_seen on every subsequent one. Name and location are left untouched.
func (s *Store) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, last_seen)
		VALUES (?, ?)
		ON CONFLICT(device_id) DO UPDATE SET last_seen = excluded.last_seen
	`, deviceID, formatTime(seenAt))
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*entities.Device, error) {
	var (
		device         entities.Device
		name, location sql.NullString
		lastSeen       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, name, location, last_seen
		FROM devices WHERE device_id = ?
	`, deviceID).Scan(&device.ID, &name, &location, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	device.Name = name.String
	device.Location = location.String
	device.LastSeen = parseTime(lastSeen)
	return &device, nil
}

func nullableString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
