package sccomponents

import (
	"github.com/statecell/go-statecell/internal/datastore"
	"github.com/statecell/go-statecell/subsystems"
)

type inMemoryStoreFactory struct{}

func (f inMemoryStoreFactory) Build(context subsystems.ClientContext) (subsystems.Store, error) {
	return datastore.NewInMemoryStore(context.GetLogging()), nil
}

// InMemoryStore returns the default in-memory store implementation factory.
//
// Since it is the default, you only need to use this if you want to set additional properties
// on the store in the future; at present it has none. The returned factory goes in the Store
// field of statecell.Config.
func InMemoryStore() subsystems.ComponentConfigurer[subsystems.Store] {
	return inMemoryStoreFactory{}
}
