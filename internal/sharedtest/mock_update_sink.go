package sharedtest

import (
	"sync"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// MockUpdateSink is a mock implementation of subsystems.UpdateSink for testing sources. It
// stores data in a plain map, pushes statuses onto a channel, and provides a controllable
// store status provider for simulating store outages.
type MockUpdateSink struct {
	Inits               chan []storetypes.Collection
	Upserts             chan UpsertParams
	Statuses            chan interfaces.SourceStatus
	data                map[storetypes.Namespace]map[string]storetypes.ItemDescriptor
	lastStatus          interfaces.SourceStatus
	storeStatusProvider *mockStoreStatusProvider
	lock                sync.Mutex
}

// UpsertParams holds the parameters of an Upsert call captured by MockUpdateSink.
type UpsertParams struct {
	Namespace storetypes.Namespace
	Key       string
	Item      storetypes.ItemDescriptor
}

// NewMockUpdateSink creates an instance of MockUpdateSink.
func NewMockUpdateSink() *MockUpdateSink {
	return &MockUpdateSink{
		Inits:    make(chan []storetypes.Collection, 10),
		Upserts:  make(chan UpsertParams, 10),
		Statuses: make(chan interfaces.SourceStatus, 10),
		data:     make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor),
		storeStatusProvider: &mockStoreStatusProvider{
			status:   interfaces.StoreStatus{Available: true},
			statusCh: make(chan interfaces.StoreStatus, 10),
		},
	}
}

// Init in this test implementation stores the data and pushes the parameters onto Inits.
func (m *MockUpdateSink) Init(allData []storetypes.Collection) bool {
	m.lock.Lock()
	m.data = make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor)
	for _, coll := range allData {
		items := make(map[string]storetypes.ItemDescriptor)
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		m.data[coll.Namespace] = items
	}
	m.lock.Unlock()
	m.Inits <- allData
	return true
}

// Upsert in this test implementation stores the item and pushes the parameters onto Upserts.
func (m *MockUpdateSink) Upsert(namespace storetypes.Namespace, key string, item storetypes.ItemDescriptor) bool {
	m.lock.Lock()
	if m.data[namespace] == nil {
		m.data[namespace] = make(map[string]storetypes.ItemDescriptor)
	}
	m.data[namespace][key] = item
	m.lock.Unlock()
	m.Upserts <- UpsertParams{Namespace: namespace, Key: key, Item: item}
	return true
}

// UpdateStatus in this test implementation pushes a value onto Statuses if the state or
// error has changed, approximating the real sink's change-only semantics.
func (m *MockUpdateSink) UpdateStatus(newState interfaces.SourceState, newError interfaces.SourceErrorInfo) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if newState != m.lastStatus.State || newError.Kind != "" {
		m.lastStatus = interfaces.SourceStatus{State: newState, LastError: newError}
		m.Statuses <- m.lastStatus
	}
}

// GetStoreStatusProvider returns a stub implementation with just enough functionality to
// test a source with.
func (m *MockUpdateSink) GetStoreStatusProvider() interfaces.StoreStatusProvider {
	return m.storeStatusProvider
}

// GetData retrieves an item that was passed to Init or Upsert.
func (m *MockUpdateSink) GetData(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	item, ok := m.data[namespace][key]
	return item, ok
}

// UpdateStoreStatus simulates a change in the store status.
func (m *MockUpdateSink) UpdateStoreStatus(newStatus interfaces.StoreStatus) {
	m.storeStatusProvider.statusCh <- newStatus
}

// RequireInit blocks until an Init call has been captured.
func (m *MockUpdateSink) RequireInit(t *testing.T) []storetypes.Collection {
	return th.RequireValue(t, m.Inits, time.Second, "timed out waiting for Init")
}

// RequireUpsert blocks until an Upsert call has been captured.
func (m *MockUpdateSink) RequireUpsert(t *testing.T) UpsertParams {
	return th.RequireValue(t, m.Upserts, time.Second, "timed out waiting for Upsert")
}

// RequireStatus blocks until a new source status is available.
func (m *MockUpdateSink) RequireStatus(t *testing.T) interfaces.SourceStatus {
	return th.RequireValue(t, m.Statuses, time.Second, "timed out waiting for new source status")
}

// RequireStatusOf blocks until a new source status is available, and verifies its state.
func (m *MockUpdateSink) RequireStatusOf(t *testing.T, newState interfaces.SourceState) interfaces.SourceStatus {
	status := m.RequireStatus(t)
	assert.Equal(t, string(newState), string(status.State))
	return status
}

type mockStoreStatusProvider struct {
	status   interfaces.StoreStatus
	statusCh chan interfaces.StoreStatus
	lock     sync.Mutex
}

func (p *mockStoreStatusProvider) GetStatus() interfaces.StoreStatus {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

func (p *mockStoreStatusProvider) IsStatusMonitoringEnabled() bool { return true }

func (p *mockStoreStatusProvider) AddStatusListener() <-chan interfaces.StoreStatus {
	return p.statusCh
}

func (p *mockStoreStatusProvider) RemoveStatusListener(<-chan interfaces.StoreStatus) {}
