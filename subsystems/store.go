package subsystems

import (
	"io"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// Store is an interface for the hub's keyed state storage. Whenever the hub receives state
// data from a source, it puts the data into the store; it then queries the store whenever a
// value is read. Implementations must be thread-safe.
//
// The hub provides a default in-memory implementation (sccomponents.InMemoryStore), as well
// as a wrapper for persistent stores (sccomponents.PersistentStore).
type Store interface {
	io.Closer

	// Init overwrites the store's contents with a full set of items for each namespace.
	Init(allData []storetypes.Collection) error

	// Get retrieves an item from the specified namespace, if available.
	//
	// If the key does not exist in that namespace, it returns ItemDescriptor{}.NotFound().
	//
	// If the item has been deleted and the store contains a tombstone, it returns that
	// tombstone rather than the NotFound value.
	Get(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, error)

	// GetAll retrieves all items from the specified namespace, including tombstones.
	GetAll(namespace storetypes.Namespace) ([]storetypes.KeyedItemDescriptor, error)

	// Upsert updates or adds an item, unless the existing item in the store has a version
	// greater than or equal to the new item's version, in which case nothing happens.
	//
	// The return value is true if the state of the store really changed.
	Upsert(namespace storetypes.Namespace, key string, item storetypes.ItemDescriptor) (bool, error)

	// IsInitialized returns true if the store has ever contained a full data set, meaning
	// that Init has been called at least once. For a shared persistent store, this might be
	// the case even if it happened in a different process.
	IsInitialized() bool

	// IsStatusMonitoringEnabled returns true if the store can report status via the
	// StoreUpdateSink. This is normally true for persistent stores and false for the
	// in-memory store.
	IsStatusMonitoringEnabled() bool
}

// PersistentStore is an interface for a simplified subset of the functionality of Store, to
// be used in conjunction with the persistent store wrapper created by
// sccomponents.PersistentStore. This allows implementations of database integrations to avoid
// repeating logic that is commonly needed in any such integration, such as caching.
type PersistentStore interface {
	io.Closer

	// Init overwrites the store's contents with a full set of items for each namespace.
	Init(allData []storetypes.Collection) error

	// Get retrieves an item from the specified namespace, if available. It should not
	// attempt to filter out tombstones, nor to cache anything.
	Get(namespace storetypes.Namespace, key string) (storetypes.ItemDescriptor, error)

	// GetAll retrieves all items from the specified namespace, including tombstones.
	GetAll(namespace storetypes.Namespace) ([]storetypes.KeyedItemDescriptor, error)

	// Upsert updates or adds an item, unless the existing item in the store has a version
	// greater than or equal to the new item's version. It returns the final state of the
	// item: the new item if the update succeeded, or the item currently in the store if the
	// update failed the version check. Returning the winning item is what makes caching in
	// the wrapper work correctly.
	Upsert(namespace storetypes.Namespace, key string, item storetypes.ItemDescriptor) (storetypes.ItemDescriptor, error)

	// IsInitialized returns true if the store has ever contained a full data set. The method
	// does not need to cache this value; the wrapper only calls it when necessary.
	IsInitialized() bool

	// IsStoreAvailable tests whether the backing database seems to be reachable. This should
	// be the smallest possible operation, not a detailed health check; the wrapper calls it
	// at intervals after a failure, until it returns true.
	IsStoreAvailable() bool
}

// StoreUpdateSink is an interface that a store implementation can use to report information
// back to the hub. The hub passes it in the ClientContext when creating a store component.
//
// Application code does not need to use this type.
type StoreUpdateSink interface {
	// UpdateStatus informs the hub of a change in the store's operational status. This is
	// what makes the status monitoring mechanisms in StoreStatusProvider work.
	UpdateStatus(newStatus interfaces.StoreStatus)
}
