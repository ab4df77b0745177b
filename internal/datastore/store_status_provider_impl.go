package datastore

import (
	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
)

// storeStatusProviderImpl is the internal implementation of StoreStatusProvider. It's not
// exported because the rest of the hub code only interacts with the public interface.
type storeStatusProviderImpl struct {
	store    subsystems.Store
	sinkImpl *StoreUpdateSinkImpl
}

// NewStoreStatusProviderImpl creates the internal implementation of StoreStatusProvider.
func NewStoreStatusProviderImpl(
	store subsystems.Store,
	sinkImpl *StoreUpdateSinkImpl,
) interfaces.StoreStatusProvider {
	return &storeStatusProviderImpl{
		store:    store,
		sinkImpl: sinkImpl,
	}
}

func (s *storeStatusProviderImpl) GetStatus() interfaces.StoreStatus {
	return s.sinkImpl.getStatus()
}

func (s *storeStatusProviderImpl) IsStatusMonitoringEnabled() bool {
	return s.store.IsStatusMonitoringEnabled()
}

func (s *storeStatusProviderImpl) AddStatusListener() <-chan interfaces.StoreStatus {
	return s.sinkImpl.getBroadcaster().AddListener()
}

func (s *storeStatusProviderImpl) RemoveStatusListener(ch <-chan interfaces.StoreStatus) {
	s.sinkImpl.getBroadcaster().RemoveListener(ch)
}
