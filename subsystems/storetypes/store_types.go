// Package storetypes contains the value types used by store and source implementations.
package storetypes

// Namespace identifies a separately keyed collection of state items within a store.
//
// Store implementations should not look for any particular namespace; all namespaces are
// treated generically. The hub keeps ordinary shared values in DefaultNamespace.
type Namespace string

// DefaultNamespace is where the hub keeps shared state values unless a source says otherwise.
const DefaultNamespace Namespace = "values"

// ItemDescriptor is a versioned state value (or placeholder) storable in a Store.
//
// For any given key within a Namespace, there can be either an existing item with a
// version, or a tombstone representing a deleted item (also with a version). Tombstones
// are used so that if an item is first updated with version N and then deleted with
// version N+1, but the hub receives those changes out of order, version N will not
// overwrite the deletion.
type ItemDescriptor struct {
	// Version is the version number of this data, provided by whatever source produced it.
	Version int
	// Value is the state value, or nil if this is a tombstone for a deleted item.
	Value interface{}
}

// Tombstone returns a placeholder for a deleted item at the given version.
func Tombstone(version int) ItemDescriptor {
	return ItemDescriptor{Version: version, Value: nil}
}

// NotFound returns a value indicating that no such item exists.
func (d ItemDescriptor) NotFound() ItemDescriptor {
	return ItemDescriptor{Version: -1, Value: nil}
}

// IsDeleted returns true if the descriptor is a tombstone.
func (d ItemDescriptor) IsDeleted() bool {
	return d.Value == nil
}

// KeyedItemDescriptor is a key-value pair containing an ItemDescriptor.
type KeyedItemDescriptor struct {
	// Key is the unique key of this item within its Namespace.
	Key string
	// Item is the versioned item.
	Item ItemDescriptor
}

// Collection is all of the items for a single namespace, used when a source delivers a
// full data set.
type Collection struct {
	Namespace Namespace
	Items     []KeyedItemDescriptor
}
