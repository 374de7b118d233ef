package weight

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
)

func createFakeLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("Component", "test")
}

type ledgerMock struct {
	mock.Mock
}

func (l *ledgerMock) FindLatestSetting(ctx context.Context, deviceID string) (*entities.Setting, error) {
	args := l.Called(ctx, deviceID)
	setting, _ := args.Get(0).(*entities.Setting)
	return setting, args.Error(1)
}

func (l *ledgerMock) InsertSetting(ctx context.Context, setting entities.Setting) (*entities.Setting, error) {
	args := l.Called(ctx, setting)
	stored, _ := args.Get(0).(*entities.Setting)
	return stored, args.Error(1)
}

func (l *ledgerMock) InsertControlLog(ctx context.Context, entry entities.ControlLogEntry) (*entities.ControlLogEntry, error) {
	args := l.Called(ctx, entry)
	stored, _ := args.Get(0).(*entities.ControlLogEntry)
	return stored, args.Error(1)
}

func (l *ledgerMock) UpdateControlLogStatus(ctx context.Context, id, status string, executedAt *time.Time) error {
	args := l.Called(ctx, id, status, executedAt)
	return args.Error(0)
}

func (l *ledgerMock) GetDeviceStatus(ctx context.Context, deviceID string) (*entities.DeviceStatus, error) {
	args := l.Called(ctx, deviceID)
	status, _ := args.Get(0).(*entities.DeviceStatus)
	return status, args.Error(1)
}

func (l *ledgerMock) UpsertDeviceStatus(ctx context.Context, status entities.DeviceStatus) error {
	args := l.Called(ctx, status)
	return args.Error(0)
}

func (l *ledgerMock) InsertTelemetry(ctx context.Context, record entities.TelemetryRecord) error {
	args := l.Called(ctx, record)
	return args.Error(0)
}

func (l *ledgerMock) InsertEvent(ctx context.Context, event entities.Event) error {
	args := l.Called(ctx, event)
	return args.Error(0)
}

func (l *ledgerMock) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	args := l.Called(ctx, deviceID, seenAt)
	return args.Error(0)
}

type resolverMock struct {
	mock.Mock
}

func (r *resolverMock) Resolve(ctx context.Context, deviceID string) (float64, error) {
	args := r.Called(ctx, deviceID)
	return args.Get(0).(float64), args.Error(1)
}

type dispatcherMock struct {
	mock.Mock
}

func (d *dispatcherMock) Dispatch(ctx context.Context, command network.ControlCommandMessage, commandType, sentBy string) *DispatchResult {
	args := d.Called(ctx, command, commandType, sentBy)
	result, _ := args.Get(0).(*DispatchResult)
	return result
}

type notifierMock struct {
	mock.Mock
}

func (n *notifierMock) NotifySettingsUpdate(ctx context.Context, scope string, maxWeight float64, updatedBy string) {
	n.Called(ctx, scope, maxWeight, updatedBy)
}
