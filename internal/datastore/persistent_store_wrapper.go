package datastore

import (
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// persistentStoreWrapper is the implementation of the standard caching and status-monitoring
// behavior that the hub provides for all persistent stores. The wrapped PersistentStore only
// has to deal with the backing database; the wrapper adds a read-through cache (go-cache),
// deduplication of concurrent reads for the same key (singleflight), and outage detection
// with recovery polling.
//
// Cache TTL semantics: zero disables caching entirely; a negative TTL means items are cached
// forever (the documented behavior of go-cache for negative expirations, which is why we can
// pass the TTL straight through).
type persistentStoreWrapper struct {
	core          subsystems.PersistentStore
	statusManager *storeStatusManager
	cache         *gocache.Cache
	cacheTTL      time.Duration
	requests      singleflight.Group
	logger        *zap.Logger
	inited        atomic.Bool
}

const initCheckedKey = "$initChecked"

// NewPersistentStoreWrapper creates the standard wrapper around a persistent store
// implementation. This is not part of the public API; it is always called through
// sccomponents.PersistentStore().
func NewPersistentStoreWrapper(
	core subsystems.PersistentStore,
	sink subsystems.StoreUpdateSink,
	cacheTTL time.Duration,
	logger *zap.Logger,
) subsystems.Store {
	var myCache *gocache.Cache
	if cacheTTL != 0 {
		myCache = gocache.New(cacheTTL, 5*time.Minute)
	}

	w := &persistentStoreWrapper{
		core:     core,
		cache:    myCache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}

	w.statusManager = newStoreStatusManager(
		true,
		w.pollAvailabilityAfterOutage,
		myCache == nil || cacheTTL > 0, // needsRefresh=true unless we're in infinite cache mode
		sink,
		logger,
	)

	return w
}

func (w *persistentStoreWrapper) Init(allData []storetypes.Collection) error {
	err := w.initCore(allData)
	if w.cache != nil {
		w.cache.Flush()
	}
	if err != nil && !w.hasCacheWithInfiniteTTL() {
		// If the underlying store failed to do the update, we normally do not want to update the
		// cache - the idea being that it's better to stay in a consistent state of having old
		// data than to act like we have new data and then suddenly fall back to old data when
		// the cache expires. However, if the cache TTL is infinite, the cache is the source of
		// truth, so we update it always.
		return err
	}
	if w.cache != nil {
		for _, coll := range allData {
			w.cacheItems(coll.Namespace, coll.Items)
		}
	}
	if err == nil || w.hasCacheWithInfiniteTTL() {
		w.inited.Store(true)
	}
	return err
}

func (w *persistentStoreWrapper) cacheItems(
	namespace storetypes.Namespace,
	items []storetypes.KeyedItemDescriptor,
) {
	for _, item := range items {
		w.cache.Set(storeCacheKey(namespace, item.Key), item.Item, gocache.DefaultExpiration)
	}
	// Save a copy of the whole set, so that the cached "all items" entry can't be affected by
	// any later mutation of the caller's slice.
	copied := make([]storetypes.KeyedItemDescriptor, len(items))
	copy(copied, items)
	w.cache.Set(storeAllItemsCacheKey(namespace), copied, gocache.DefaultExpiration)
}

func (w *persistentStoreWrapper) initCore(allData []storetypes.Collection) error {
	err := w.core.Init(allData)
	w.processError(err)
	return err
}

func (w *persistentStoreWrapper) Get(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, error) {
	if w.cache == nil {
		item, err := w.core.Get(namespace, key)
		w.processError(err)
		return item, err
	}
	cacheKey := storeCacheKey(namespace, key)
	if data, present := w.cache.Get(cacheKey); present {
		if item, ok := data.(storetypes.ItemDescriptor); ok {
			return item, nil
		}
	}
	// Item was not cached or the cached value was not valid. Use singleflight to ensure that
	// we'll only do this core query once even if multiple goroutines are requesting it.
	reqKey := fmt.Sprintf("get:%s:%s", namespace, key)
	itemIntf, err, _ := w.requests.Do(reqKey, func() (interface{}, error) {
		item, err := w.core.Get(namespace, key)
		w.processError(err)
		if err == nil {
			w.cache.Set(cacheKey, item, gocache.DefaultExpiration)
		}
		return item, err
	})
	if err != nil {
		return storetypes.ItemDescriptor{}.NotFound(), err
	}
	if item, ok := itemIntf.(storetypes.ItemDescriptor); ok { // singleflight returns the value as interface{}
		return item, nil
	}
	w.logger.Error("persistent store query returned unexpected type", zap.String("type", fmt.Sprintf("%T", itemIntf)))
	return storetypes.ItemDescriptor{}.NotFound(), nil
}

func (w *persistentStoreWrapper) GetAll(namespace storetypes.Namespace) ([]storetypes.KeyedItemDescriptor, error) {
	if w.cache == nil {
		items, err := w.core.GetAll(namespace)
		w.processError(err)
		return items, err
	}
	// Check whether we have a cache entry for the entire data set
	cacheKey := storeAllItemsCacheKey(namespace)
	if data, present := w.cache.Get(cacheKey); present {
		if items, ok := data.([]storetypes.KeyedItemDescriptor); ok {
			return items, nil
		}
	}
	reqKey := fmt.Sprintf("all:%s", namespace)
	itemsIntf, err, _ := w.requests.Do(reqKey, func() (interface{}, error) {
		items, err := w.core.GetAll(namespace)
		w.processError(err)
		if err != nil {
			return nil, err
		}
		w.cache.Set(cacheKey, items, gocache.DefaultExpiration)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if items, ok := itemsIntf.([]storetypes.KeyedItemDescriptor); ok {
		return items, nil
	}
	w.logger.Error("persistent store query returned unexpected type", zap.String("type", fmt.Sprintf("%T", itemsIntf)))
	return nil, nil
}

func (w *persistentStoreWrapper) Upsert(
	namespace storetypes.Namespace,
	key string,
	newItem storetypes.ItemDescriptor,
) (bool, error) {
	finalItem, err := w.core.Upsert(namespace, key, newItem)
	w.processError(err)
	updated := err == nil && finalItem.Version == newItem.Version
	if err != nil {
		if !w.hasCacheWithInfiniteTTL() {
			return false, err
		}
		// In infinite cache mode the cache is the source of truth, so we update it even if the
		// database write failed; the status poller will rewrite the cached data on recovery.
		finalItem = newItem
		updated = true
	}
	if w.cache != nil {
		// What we put into the cache is finalItem, which may not be the same as newItem (i.e. if
		// another process has already updated the item to a higher version).
		w.cache.Set(storeCacheKey(namespace, key), finalItem, gocache.DefaultExpiration)
		// The "all items" entry is now stale; a finite-TTL cache just drops it so the next
		// GetAll rereads the database. An infinite cache must instead patch the entry in place,
		// since the database may never be consulted again.
		allCacheKey := storeAllItemsCacheKey(namespace)
		if w.hasCacheWithInfiniteTTL() {
			var items []storetypes.KeyedItemDescriptor
			if data, present := w.cache.Get(allCacheKey); present {
				if cached, ok := data.([]storetypes.KeyedItemDescriptor); ok {
					items = patchKeyedItems(cached, key, finalItem)
				}
			}
			if items == nil {
				items = []storetypes.KeyedItemDescriptor{{Key: key, Item: finalItem}}
			}
			w.cache.Set(allCacheKey, items, gocache.DefaultExpiration)
		} else {
			w.cache.Delete(allCacheKey)
		}
	}
	return updated, err
}

func (w *persistentStoreWrapper) IsInitialized() bool {
	if w.inited.Load() {
		return true
	}

	if w.cache != nil {
		if _, found := w.cache.Get(initCheckedKey); found {
			return false
		}
	}

	newValue := w.core.IsInitialized()
	if newValue {
		w.inited.Store(true)
		if w.cache != nil {
			w.cache.Delete(initCheckedKey)
		}
	} else if w.cache != nil {
		// Cache the negative result so that polling IsInitialized in a tight loop doesn't hammer
		// the database.
		w.cache.Set(initCheckedKey, "", gocache.DefaultExpiration)
	}
	return newValue
}

func (w *persistentStoreWrapper) IsStatusMonitoringEnabled() bool {
	return true
}

func (w *persistentStoreWrapper) Close() error {
	w.statusManager.close()
	return w.core.Close()
}

func (w *persistentStoreWrapper) processError(err error) {
	if err == nil {
		// If we're waiting to recover after a failure, the polling routine takes care of
		// signaling success, so there is nothing to do on an individual successful operation.
		return
	}
	w.statusManager.updateAvailability(false)
}

func (w *persistentStoreWrapper) pollAvailabilityAfterOutage() bool {
	if !w.core.IsStoreAvailable() {
		return false
	}
	if w.hasCacheWithInfiniteTTL() {
		// In infinite cache mode we can assume the cache has a full set of current data (since
		// presumably the source has still been running), so we write the contents of the cache
		// to the recovered database.
		allData := pendingCachedCollections(w.cache)
		if err := w.initCore(allData); err != nil {
			// initCore has already put us back into the failed state; all we can add is a log line.
			w.logger.Error("Tried to write cached data to persistent store after a store outage, but failed",
				zap.Error(err))
		} else {
			w.logger.Warn("Successfully updated persistent store from cached data")
		}
	}
	return true
}

func (w *persistentStoreWrapper) hasCacheWithInfiniteTTL() bool {
	return w.cache != nil && w.cacheTTL < 0
}

func pendingCachedCollections(cache *gocache.Cache) []storetypes.Collection {
	var ret []storetypes.Collection
	for key, entry := range cache.Items() {
		namespace, ok := namespaceFromAllItemsCacheKey(key)
		if !ok {
			continue
		}
		if items, ok := entry.Object.([]storetypes.KeyedItemDescriptor); ok {
			ret = append(ret, storetypes.Collection{Namespace: namespace, Items: items})
		}
	}
	return ret
}

func patchKeyedItems(
	items []storetypes.KeyedItemDescriptor,
	key string,
	item storetypes.ItemDescriptor,
) []storetypes.KeyedItemDescriptor {
	ret := make([]storetypes.KeyedItemDescriptor, 0, len(items)+1)
	found := false
	for _, ki := range items {
		if ki.Key == key {
			ret = append(ret, storetypes.KeyedItemDescriptor{Key: key, Item: item})
			found = true
		} else {
			ret = append(ret, ki)
		}
	}
	if !found {
		ret = append(ret, storetypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	return ret
}

const allItemsCacheKeyPrefix = "$all:"

func storeCacheKey(namespace storetypes.Namespace, key string) string {
	return string(namespace) + ":" + key
}

func storeAllItemsCacheKey(namespace storetypes.Namespace) string {
	return allItemsCacheKeyPrefix + string(namespace)
}

func namespaceFromAllItemsCacheKey(cacheKey string) (storetypes.Namespace, bool) {
	if len(cacheKey) > len(allItemsCacheKeyPrefix) && cacheKey[:len(allItemsCacheKeyPrefix)] == allItemsCacheKeyPrefix {
		return storetypes.Namespace(cacheKey[len(allItemsCacheKeyPrefix):]), true
	}
	return "", false
}
