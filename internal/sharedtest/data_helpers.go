package sharedtest

import (
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// MakeCollection builds a single-namespace data set from alternating keys and items.
func MakeCollection(namespace storetypes.Namespace, items ...storetypes.KeyedItemDescriptor) []storetypes.Collection {
	return []storetypes.Collection{{Namespace: namespace, Items: items}}
}

// MakeKeyedItem is shorthand for a KeyedItemDescriptor with a plain value.
func MakeKeyedItem(key string, version int, value interface{}) storetypes.KeyedItemDescriptor {
	return storetypes.KeyedItemDescriptor{Key: key, Item: storetypes.ItemDescriptor{Version: version, Value: value}}
}

// DefaultData builds a data set in the default namespace from alternating keys and items.
func DefaultData(items ...storetypes.KeyedItemDescriptor) []storetypes.Collection {
	return MakeCollection(storetypes.DefaultNamespace, items...)
}
