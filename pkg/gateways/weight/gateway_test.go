package weight

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
	"github.com/loadwatch/loadgate/pkg/gateways/weight/network/mocks"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

func createFakeGateway(t *testing.T) (*Gateway, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := createFakeLogger()
	publisher := &mocks.PublisherMock{}
	publisher.On("PublishControlCommand", mock.Anything).Return(nil).Maybe()
	publisher.On("PublishSettingsUpdate", mock.Anything).Return(nil).Maybe()

	dispatcher := NewDispatcher(store, publisher, logger)
	resolver := NewResolver(store, dispatcher, logger)
	ingestor := NewIngestor(store, resolver, dispatcher, DefaultDedupConfig(), logger)

	return &Gateway{
		store:      store,
		ingestor:   ingestor,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		msgChan:    make(chan network.InMsg),
	}, store
}

func TestHandleTelemetryProcessesSample(t *testing.T) {
	gateway, store := createFakeGateway(t)

	gateway.handleTelemetry(network.InMsg{
		RoutingKey: network.RoutingKeyTelemetry,
		Body:       []byte(`{"device_id":"scale-1","weight":600}`),
	})

	status, err := store.GetDeviceStatus(context.Background(), "scale-1")
	require.NoError(t, err)
	assert.True(t, status.IsOverload)

	events, err := store.ListEvents(context.Background(), "scale-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventOverload, events[0].EventType)
}

func TestHandleTelemetryIgnoresMalformedPayload(t *testing.T) {
	gateway, store := createFakeGateway(t)

	gateway.handleTelemetry(network.InMsg{
		RoutingKey: network.RoutingKeyTelemetry,
		Body:       []byte("not json"),
	})

	records, err := store.ListTelemetry(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandleDeviceStatusRefreshesLastSeen(t *testing.T) {
	gateway, store := createFakeGateway(t)

	gateway.handleDeviceStatus(network.InMsg{
		RoutingKey: network.RoutingKeyStatus,
		Body:       []byte(`{"device_id":"scale-1","status":"online"}`),
	})

	device, err := store.GetDevice(context.Background(), "scale-1")
	require.NoError(t, err)
	assert.False(t, device.LastSeen.IsZero())
}

func TestDedupConfigFromEnvironment(t *testing.T) {
	t.Setenv("DUPLICATION_FILTER", "0")
	t.Setenv("FILTER_CAPACITY", "5000")
	t.Setenv("DUPLICATION_PROBABILITY", "0.05")
	t.Setenv("RESET_FILTER_USAGE_PERCENTAGE", "0.5")

	dedup := dedupConfigFromEnvironment()

	assert.False(t, dedup.Enabled)
	assert.Equal(t, uint(5000), dedup.FilterCapacity)
	assert.Equal(t, 0.05, dedup.DuplicationProbability)
	assert.Equal(t, 0.5, dedup.ResetUsageFraction)
}

func TestDedupConfigDefaults(t *testing.T) {
	t.Setenv("DUPLICATION_FILTER", "")
	t.Setenv("FILTER_CAPACITY", "")
	t.Setenv("DUPLICATION_PROBABILITY", "")
	t.Setenv("RESET_FILTER_USAGE_PERCENTAGE", "")

	assert.Equal(t, DefaultDedupConfig(), dedupConfigFromEnvironment())
}
