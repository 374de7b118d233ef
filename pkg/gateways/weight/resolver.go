package weight

import (
	"context"
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

// DefaultMaxWeight applies when no setting has ever been stored.
const DefaultMaxWeight = 500.0

// SettingsLedger is the slice of the record store the resolver needs.
type SettingsLedger interface {
	FindLatestSetting(ctx context.Context, deviceID string) (*entities.Setting, error)
	InsertSetting(ctx context.Context, setting entities.Setting) (*entities.Setting, error)
}

type settingsNotifier interface {
	NotifySettingsUpdate(ctx context.Context, scope string, maxWeight float64, updatedBy string)
}

// Resolver answers "what threshold applies to this device right now" and
// records threshold changes. Setting history is append-only; the newest row
// per scope wins.
type Resolver struct {
	ledger   SettingsLedger
	notifier settingsNotifier
	logger   *logrus.Entry
}

func NewResolver(settingsLedger SettingsLedger, notifier settingsNotifier, logger *logrus.Entry) *Resolver {
	return &Resolver{ledger: settingsLedger, notifier: notifier, logger: logger}
}

// Resolve walks device setting, then global setting, then the built-in
// default. A store failure aborts; guessing a threshold could silence a
// real overload.
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (float64, error) {
	if deviceID != entities.GlobalScope {
		setting, err := r.ledger.FindLatestSetting(ctx, deviceID)
		if err == nil {
			return setting.MaxWeight, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return 0, NewStoreError(err, "resolving device threshold")
		}
	}

	setting, err := r.ledger.FindLatestSetting(ctx, entities.GlobalScope)
	if err == nil {
		return setting.MaxWeight, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return 0, NewStoreError(err, "resolving global threshold")
	}
	return DefaultMaxWeight, nil
}

// Update appends a new setting row for the scope and pushes the change to
// the affected devices. An empty deviceID updates the global scope.
func (r *Resolver) Update(ctx context.Context, deviceID string, maxWeight float64, updatedBy string) (*entities.Setting, error) {
	if math.IsNaN(maxWeight) || math.IsInf(maxWeight, 0) || maxWeight <= 0 {
		return nil, NewValidationError("max_weight must be a positive number")
	}
	if updatedBy == "" {
		updatedBy = SenderSystem
	}

	setting, err := r.ledger.InsertSetting(ctx, entities.Setting{
		DeviceID:  deviceID,
		MaxWeight: maxWeight,
		UpdatedBy: updatedBy,
	})
	if err != nil {
		return nil, NewStoreError(err, "storing threshold update")
	}
	r.logger.Infoln("threshold updated to ", maxWeight, " for scope ", scopeLabel(deviceID))

	scope := deviceID
	if scope == entities.GlobalScope {
		scope = entities.AllDevices
	}
	r.notifier.NotifySettingsUpdate(ctx, scope, maxWeight, updatedBy)
	return setting, nil
}

func scopeLabel(deviceID string) string {
	if deviceID == entities.GlobalScope {
		return entities.AllDevices
	}
	return deviceID
}
