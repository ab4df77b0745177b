package sccomponents

import (
	"time"

	"github.com/statecell/go-statecell/internal/datastore"
	"github.com/statecell/go-statecell/subsystems"
)

// PersistentStoreDefaultCacheTime is the default amount of time that recently read or updated
// items will be cached in memory, if you use PersistentStore(). You can specify otherwise
// with the PersistentStoreBuilder.CacheTime() option.
const PersistentStoreDefaultCacheTime = 15 * time.Second

// PersistentStore returns a configuration builder for some implementation of a persistent
// store.
//
// The argument is a separate factory for the specific database integration; the hub provides
// universal behaviors for all persistent stores, such as caching, and PersistentStoreBuilder
// has methods to configure those behaviors:
//
//	config := statecell.Config{
//	    Store: sccomponents.PersistentStore(someDatabaseIntegration).CacheSeconds(30),
//	}
//
// The return value of this function should be stored in the Store field of statecell.Config.
func PersistentStore(
	persistentStoreFactory subsystems.ComponentConfigurer[subsystems.PersistentStore],
) *PersistentStoreBuilder {
	return &PersistentStoreBuilder{
		persistentStoreFactory: persistentStoreFactory,
		cacheTTL:               PersistentStoreDefaultCacheTime,
	}
}

// PersistentStoreBuilder is a configurable factory for a persistent store.
//
// See PersistentStore for usage.
type PersistentStoreBuilder struct {
	persistentStoreFactory subsystems.ComponentConfigurer[subsystems.PersistentStore]
	cacheTTL               time.Duration
}

// CacheTime specifies the cache TTL. Items will be evicted from the cache after this amount
// of time from the time when they were originally cached.
//
// If the value is zero, caching is disabled (equivalent to NoCaching).
//
// If the value is negative, data is cached forever (equivalent to CacheForever).
func (b *PersistentStoreBuilder) CacheTime(cacheTime time.Duration) *PersistentStoreBuilder {
	b.cacheTTL = cacheTime
	return b
}

// CacheSeconds is a shortcut for calling CacheTime with a duration in seconds.
func (b *PersistentStoreBuilder) CacheSeconds(cacheSeconds int) *PersistentStoreBuilder {
	return b.CacheTime(time.Duration(cacheSeconds) * time.Second)
}

// CacheForever specifies that the in-memory cache should never expire. In this mode, data
// will be written to both the underlying persistent store and the cache, but will only ever
// be read from the persistent store if the process is restarted.
//
// Use this mode with caution: in a scenario where multiple processes share the database, and
// the current process loses its source connection while other processes are still receiving
// updates and writing them to the database, the current process will have stale data.
func (b *PersistentStoreBuilder) CacheForever() *PersistentStoreBuilder {
	return b.CacheTime(-1 * time.Millisecond)
}

// NoCaching specifies that the hub should not use an in-memory cache for the persistent
// store. This means that every read will trigger a store query.
func (b *PersistentStoreBuilder) NoCaching() *PersistentStoreBuilder {
	return b.CacheTime(0)
}

// Build is called by the hub to create the store instance.
func (b *PersistentStoreBuilder) Build(context subsystems.ClientContext) (subsystems.Store, error) {
	core, err := b.persistentStoreFactory.Build(context)
	if err != nil {
		return nil, err
	}
	return datastore.NewPersistentStoreWrapper(core, context.GetStoreUpdateSink(), b.cacheTTL,
		context.GetLogging()), nil
}
