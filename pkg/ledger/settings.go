package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loadwatch/loadgate/pkg/entities"
)

// FindLatestSetting returns the most recently updated setting for a scope.
// An empty deviceID selects the global scope. Returns ErrNotFound when no
// row exists for the scope.
func (s *Store) FindLatestSetting(ctx context.Context, deviceID string) (*entities.Setting, error) {
	query := `
		SELECT id, device_id, max_weight, updated_by, updated_at
		FROM settings WHERE device_id IS NULL
		ORDER BY updated_at DESC LIMIT 1`
	args := []interface{}{}
	if deviceID != entities.GlobalScope {
		query = `
		SELECT id, device_id, max_weight, updated_by, updated_at
		FROM settings WHERE device_id = ?
		ORDER BY updated_at DESC LIMIT 1`
		args = append(args, deviceID)
	}

	var (
		setting   entities.Setting
		scope     sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&setting.ID, &scope, &setting.MaxWeight, &setting.UpdatedBy, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest setting: %w", err)
	}
	setting.DeviceID = scope.String
	setting.UpdatedAt = parseTime(updatedAt)
	return &setting, nil
}

// InsertSetting appends a new historical setting row. The resolver always
// reads the latest row per scope, so history is never rewritten.
func (s *Store) InsertSetting(ctx context.Context, setting entities.Setting) (*entities.Setting, error) {
	if setting.ID == "" {
		setting.ID = uuid.NewString()
	}
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, device_id, max_weight, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, setting.ID, nullableString(setting.DeviceID), setting.MaxWeight, setting.UpdatedBy, formatTime(setting.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert setting: %w", err)
	}
	return &setting, nil
}
