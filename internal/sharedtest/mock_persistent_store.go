package sharedtest

import (
	"sync"
	"time"

	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// MockPersistentStore is a test implementation of subsystems.PersistentStore.
type MockPersistentStore struct {
	data             map[storetypes.Namespace]map[string]storetypes.ItemDescriptor
	fakeError        error
	available        bool
	inited           bool
	InitQueriedCount int
	queryDelay       time.Duration
	queryStartedCh   chan struct{}
	closed           bool
	lock             sync.Mutex
}

// NewMockPersistentStore creates a test implementation of a persistent store.
func NewMockPersistentStore() *MockPersistentStore {
	return &MockPersistentStore{
		data:      make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor),
		available: true,
	}
}

// EnableInstrumentedQueries puts the test store into a mode where all get operations begin by
// posting a signal to a channel and then waiting for some amount of time, to test coalescing
// of requests.
func (m *MockPersistentStore) EnableInstrumentedQueries(queryDelay time.Duration) <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queryDelay = queryDelay
	m.queryStartedCh = make(chan struct{}, 10)
	return m.queryStartedCh
}

// ForceGet retrieves an item directly from the test data with no other processing.
func (m *MockPersistentStore) ForceGet(namespace storetypes.Namespace, key string) storetypes.ItemDescriptor {
	m.lock.Lock()
	defer m.lock.Unlock()
	if ret, ok := m.data[namespace][key]; ok {
		return ret
	}
	return storetypes.ItemDescriptor{}.NotFound()
}

// ForceSet directly modifies an item in the test data.
func (m *MockPersistentStore) ForceSet(namespace storetypes.Namespace, key string, item storetypes.ItemDescriptor) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.data[namespace] == nil {
		m.data[namespace] = make(map[string]storetypes.ItemDescriptor)
	}
	m.data[namespace][key] = item
}

// ForceRemove deletes an item from the test data.
func (m *MockPersistentStore) ForceRemove(namespace storetypes.Namespace, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data[namespace], key)
}

// ForceSetInited changes the value that will be returned by IsInitialized().
func (m *MockPersistentStore) ForceSetInited(inited bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.inited = inited
}

// SetAvailable changes the value that will be returned by IsStoreAvailable().
func (m *MockPersistentStore) SetAvailable(available bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.available = available
}

// SetFakeError causes subsequent store operations to return an error.
func (m *MockPersistentStore) SetFakeError(fakeError error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fakeError = fakeError
}

func (m *MockPersistentStore) startQuery() {
	m.lock.Lock()
	queryStartedCh, queryDelay := m.queryStartedCh, m.queryDelay
	m.lock.Unlock()
	if queryStartedCh != nil {
		queryStartedCh <- struct{}{}
	}
	if queryDelay > 0 {
		time.Sleep(queryDelay)
	}
}

// Init is a standard method of PersistentStore.
func (m *MockPersistentStore) Init(allData []storetypes.Collection) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return m.fakeError
	}
	m.data = make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor)
	for _, coll := range allData {
		items := make(map[string]storetypes.ItemDescriptor)
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		m.data[coll.Namespace] = items
	}
	m.inited = true
	return nil
}

// Get is a standard method of PersistentStore.
func (m *MockPersistentStore) Get(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, error) {
	m.startQuery()
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return storetypes.ItemDescriptor{}.NotFound(), m.fakeError
	}
	if item, ok := m.data[namespace][key]; ok {
		return item, nil
	}
	return storetypes.ItemDescriptor{}.NotFound(), nil
}

// GetAll is a standard method of PersistentStore.
func (m *MockPersistentStore) GetAll(namespace storetypes.Namespace) ([]storetypes.KeyedItemDescriptor, error) {
	m.startQuery()
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return nil, m.fakeError
	}
	ret := []storetypes.KeyedItemDescriptor{}
	for key, item := range m.data[namespace] {
		ret = append(ret, storetypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	return ret, nil
}

// Upsert is a standard method of PersistentStore.
func (m *MockPersistentStore) Upsert(
	namespace storetypes.Namespace,
	key string,
	newItem storetypes.ItemDescriptor,
) (storetypes.ItemDescriptor, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return storetypes.ItemDescriptor{}.NotFound(), m.fakeError
	}
	if m.data[namespace] == nil {
		m.data[namespace] = make(map[string]storetypes.ItemDescriptor)
	}
	if oldItem, ok := m.data[namespace][key]; ok && oldItem.Version >= newItem.Version {
		return oldItem, nil
	}
	m.data[namespace][key] = newItem
	return newItem, nil
}

// IsInitialized is a standard method of PersistentStore.
func (m *MockPersistentStore) IsInitialized() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.InitQueriedCount++
	return m.inited
}

// IsStoreAvailable is a standard method of PersistentStore.
func (m *MockPersistentStore) IsStoreAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.available
}

// Close is a standard method of PersistentStore.
func (m *MockPersistentStore) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}
