package statecell

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal"
	"github.com/statecell/go-statecell/internal/datasource"
	"github.com/statecell/go-statecell/internal/datastore"
	"github.com/statecell/go-statecell/sccomponents"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// ErrInitializationTimeout is returned by MakeHub when the source has not delivered its
// initial data within the time limit. The hub is still returned and may finish initializing
// later.
var ErrInitializationTimeout = errors.New("timeout encountered waiting for hub initialization")

// ErrInitializationFailed is returned by MakeHub when the source has permanently failed, for
// instance because the state service rejected its request. The hub is still returned; reads
// against a populated persistent store will work, but no updates will arrive.
var ErrInitializationFailed = errors.New("hub initialization failed")

// Hub is the top-level object of this package: a store of versioned state values, kept up to
// date by a source and observable through change listeners. Create it with MakeHub.
//
// Applications should configure and hold a single Hub for each independent set of state, and
// share it between goroutines; all of its methods are safe for concurrent use.
type Hub struct {
	store                   subsystems.Store
	source                  subsystems.Source
	updateSink              *datasource.UpdateSinkImpl
	sourceStatusProvider    interfaces.SourceStatusProvider
	storeStatusProvider     interfaces.StoreStatusProvider
	sourceStatusBroadcaster *internal.Broadcaster[interfaces.SourceStatus]
	storeStatusBroadcaster  *internal.Broadcaster[interfaces.StoreStatus]
	changeBroadcaster       *internal.Broadcaster[interfaces.ChangeEvent]
	tracker                 interfaces.ChangeTracker
	logger                  *zap.Logger
	closeOnce               sync.Once
}

// MakeHub creates a new hub instance with a custom configuration.
//
// The waitFor parameter specifies how long the constructor will block waiting for the source
// to deliver its initial state data. If this time elapses first, the hub is returned along
// with ErrInitializationTimeout; it is not fully initialized yet, but can still be used, and
// will complete initialization in the background if the source recovers. If the source fails
// permanently (for instance, the state service rejects the request), the hub is returned
// along with ErrInitializationFailed.
//
// Setting waitFor to zero causes the constructor to return immediately without waiting.
//
// The only settings that can make MakeHub itself fail (returning a nil hub) are component
// factories whose Build returns an error.
func MakeHub(config Config, waitFor time.Duration) (*Hub, error) {
	logger := config.Logging
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := &Hub{
		sourceStatusBroadcaster: internal.NewBroadcaster[interfaces.SourceStatus](),
		storeStatusBroadcaster:  internal.NewBroadcaster[interfaces.StoreStatus](),
		changeBroadcaster:       internal.NewBroadcaster[interfaces.ChangeEvent](),
		logger:                  logger,
	}

	storeUpdateSink := datastore.NewStoreUpdateSinkImpl(hub.storeStatusBroadcaster)
	storeFactory := config.Store
	if storeFactory == nil {
		storeFactory = sccomponents.InMemoryStore()
	}
	store, err := storeFactory.Build(subsystems.BasicClientContext{
		HTTP:            config.HTTP,
		Logging:         logger,
		StoreUpdateSink: storeUpdateSink,
	})
	if err != nil {
		return nil, err
	}
	hub.store = store
	hub.storeStatusProvider = datastore.NewStoreStatusProviderImpl(store, storeUpdateSink)

	hub.updateSink = datasource.NewUpdateSinkImpl(
		store,
		hub.storeStatusProvider,
		hub.sourceStatusBroadcaster,
		hub.changeBroadcaster,
		logger,
	)

	sourceFactory := config.Source
	if sourceFactory == nil {
		sourceFactory = sccomponents.ExternalUpdatesOnly()
	}
	source, err := sourceFactory.Build(subsystems.BasicClientContext{
		HTTP:             config.HTTP,
		Logging:          logger,
		SourceUpdateSink: hub.updateSink,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	hub.source = source
	hub.sourceStatusProvider = datasource.NewSourceStatusProviderImpl(hub.sourceStatusBroadcaster, hub.updateSink)
	hub.tracker = internal.NewChangeTrackerImpl(hub.changeBroadcaster, hub.readValueForTracker)

	closeWhenReady := make(chan struct{})
	source.Start(closeWhenReady)

	if waitFor > 0 {
		logger.Info("Waiting up to configured duration for initial state data",
			zap.Duration("waitFor", waitFor))

		select {
		case <-closeWhenReady:
			if !source.IsInitialized() {
				logger.Warn("Hub initialization failed")
				return hub, ErrInitializationFailed
			}
			logger.Info("Successfully initialized hub")
			return hub, nil
		case <-time.After(waitFor):
			logger.Warn("Timeout exceeded when initializing hub")
			return hub, ErrInitializationTimeout
		}
	}
	return hub, nil
}

// Initialized returns whether the hub has received an initial set of state data from its
// source. If this is false, reads will fall back to whatever the store already contains,
// which for the in-memory store is nothing.
func (h *Hub) Initialized() bool {
	return h.source.IsInitialized()
}

// GetValue returns the current value for a key in the default namespace. The second return
// value is false if the key is unknown or has been deleted.
func (h *Hub) GetValue(key string) (interface{}, bool) {
	return h.getValue(storetypes.DefaultNamespace, key)
}

func (h *Hub) getValue(namespace storetypes.Namespace, key string) (interface{}, bool) {
	if !h.Initialized() {
		if h.store.IsInitialized() {
			h.logger.Warn("Hub is not yet initialized; reading last known value from store",
				zap.String("key", key))
		} else {
			h.logger.Warn("Hub is not yet initialized and store has no data",
				zap.String("key", key))
			return nil, false
		}
	}
	item, err := h.store.Get(namespace, key)
	if err != nil {
		h.logger.Error("Store error while reading value", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if item.Version == -1 || item.IsDeleted() {
		return nil, false
	}
	return item.Value, true
}

// AllValues returns all current values in the default namespace, excluding deleted keys.
func (h *Hub) AllValues() map[string]interface{} {
	items, err := h.store.GetAll(storetypes.DefaultNamespace)
	if err != nil {
		h.logger.Error("Store error while reading all values", zap.Error(err))
		return nil
	}
	ret := make(map[string]interface{}, len(items))
	for _, item := range items {
		if !item.Item.IsDeleted() {
			ret[item.Key] = item.Item.Value
		}
	}
	return ret
}

// SetValue writes a value for a key in the default namespace, assigning it the next version
// past the store's current one. Change listeners registered through Tracker() are notified.
//
// This is the local-write path, for state that the application manages itself rather than
// receiving from a source. A source that later delivers the same key at a higher version
// will overwrite the local value.
func (h *Hub) SetValue(key string, value interface{}) error {
	item, err := h.store.Get(storetypes.DefaultNamespace, key)
	if err != nil {
		return err
	}
	newItem := storetypes.ItemDescriptor{Version: item.Version + 1, Value: value}
	if item.Version == -1 {
		newItem.Version = 1
	}
	h.updateSink.Upsert(storetypes.DefaultNamespace, key, newItem)
	return nil
}

// DeleteValue removes a key from the default namespace by writing a tombstone at the next
// version. Change listeners registered through Tracker() are notified.
func (h *Hub) DeleteValue(key string) error {
	item, err := h.store.Get(storetypes.DefaultNamespace, key)
	if err != nil {
		return err
	}
	if item.Version == -1 || item.IsDeleted() {
		return nil
	}
	h.updateSink.Upsert(storetypes.DefaultNamespace, key, storetypes.Tombstone(item.Version+1))
	return nil
}

// Tracker returns an interface for tracking changes to state values.
func (h *Hub) Tracker() interfaces.ChangeTracker {
	return h.tracker
}

// SourceStatusProvider returns an interface for tracking the status of the source.
//
// The source is the component that the hub uses to get state data, such as a streaming
// connection. The interface has methods for checking whether the source is currently
// operational and tracking changes in this status.
func (h *Hub) SourceStatusProvider() interfaces.SourceStatusProvider {
	return h.sourceStatusProvider
}

// StoreStatusProvider returns an interface for tracking the status of a persistent store.
//
// The interface has methods for checking whether the store is currently operational and
// tracking changes in this status. For the default in-memory store the status never changes.
func (h *Hub) StoreStatusProvider() interfaces.StoreStatusProvider {
	return h.storeStatusProvider
}

// Close shuts down the hub. After this, application code should no longer use the hub.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.logger.Info("Closing hub")
		_ = h.source.Close()
		_ = h.store.Close()
		h.sourceStatusBroadcaster.Close()
		h.storeStatusBroadcaster.Close()
		h.changeBroadcaster.Close()
	})
	return nil
}

func (h *Hub) readValueForTracker(key string, placeholder interface{}) interface{} {
	item, err := h.store.Get(storetypes.DefaultNamespace, key)
	if err != nil || item.Version == -1 || item.IsDeleted() {
		return placeholder
	}
	return item.Value
}
