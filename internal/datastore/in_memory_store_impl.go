package datastore

import (
	"sync"

	"go.uber.org/zap"

	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// inMemoryStore is a memory based Store implementation, backed by a lock-striped map.
//
// Implementation notes:
//
// We deliberately do not use a defer pattern to manage the lock in these methods. Using defer
// adds a small but consistent overhead, and these store methods may be called with very high
// frequency (at least in the case of Get and IsInitialized). To make it safe to hold a lock
// without deferring the unlock, we must ensure that there is only one return point from each
// method, and that there is no operation that could possibly cause a panic after the lock has
// been acquired.
type inMemoryStore struct {
	allData       map[storetypes.Namespace]map[string]storetypes.ItemDescriptor
	isInitialized bool
	sync.RWMutex
	logger *zap.Logger
}

// NewInMemoryStore creates an instance of the in-memory store. This is not part of the public
// API; it is always called through sccomponents.InMemoryStore().
func NewInMemoryStore(logger *zap.Logger) subsystems.Store {
	return &inMemoryStore{
		allData:       make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor),
		isInitialized: false,
		logger:        logger,
	}
}

func (store *inMemoryStore) Init(allData []storetypes.Collection) error {
	store.Lock()

	store.allData = make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor)

	for _, coll := range allData {
		items := make(map[string]storetypes.ItemDescriptor)
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		store.allData[coll.Namespace] = items
	}

	store.isInitialized = true

	store.Unlock()

	return nil
}

func (store *inMemoryStore) Get(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, error) {
	store.RLock()

	var coll map[string]storetypes.ItemDescriptor
	var item storetypes.ItemDescriptor
	var ok bool
	coll, ok = store.allData[namespace]
	if ok {
		item, ok = coll[key]
	}

	store.RUnlock()

	if ok {
		return item, nil
	}
	if ce := store.logger.Check(zap.DebugLevel, "key not found"); ce != nil {
		ce.Write(zap.String("key", key), zap.String("namespace", string(namespace)))
	}
	return storetypes.ItemDescriptor{}.NotFound(), nil
}

func (store *inMemoryStore) GetAll(namespace storetypes.Namespace) ([]storetypes.KeyedItemDescriptor, error) {
	store.RLock()

	var itemsOut []storetypes.KeyedItemDescriptor
	if itemsMap, ok := store.allData[namespace]; ok {
		if len(itemsMap) > 0 {
			itemsOut = make([]storetypes.KeyedItemDescriptor, 0, len(itemsMap))
			for key, item := range itemsMap {
				itemsOut = append(itemsOut, storetypes.KeyedItemDescriptor{Key: key, Item: item})
			}
		}
	}

	store.RUnlock()

	return itemsOut, nil
}

func (store *inMemoryStore) Upsert(
	namespace storetypes.Namespace,
	key string,
	newItem storetypes.ItemDescriptor,
) (bool, error) {
	store.Lock()

	var coll map[string]storetypes.ItemDescriptor
	var ok bool
	shouldUpdate := true
	updated := false
	if coll, ok = store.allData[namespace]; ok {
		if item, ok := coll[key]; ok {
			if item.Version >= newItem.Version {
				shouldUpdate = false
			}
		}
	} else {
		store.allData[namespace] = map[string]storetypes.ItemDescriptor{key: newItem}
		shouldUpdate = false // because we already initialized the map with the new item
		updated = true
	}
	if shouldUpdate {
		coll[key] = newItem
		updated = true
	}

	store.Unlock()

	return updated, nil
}

func (store *inMemoryStore) IsInitialized() bool {
	store.RLock()
	ret := store.isInitialized
	store.RUnlock()
	return ret
}

func (store *inMemoryStore) IsStatusMonitoringEnabled() bool {
	return false
}

func (store *inMemoryStore) Close() error {
	return nil
}
