package datastore

import (
	"sync"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal"
)

// StoreUpdateSinkImpl is the internal implementation of subsystems.StoreUpdateSink. It is
// exported because the actual implementation type, rather than the interface, is required as
// a dependency of other hub components.
type StoreUpdateSinkImpl struct {
	lastStatus  interfaces.StoreStatus
	broadcaster *internal.Broadcaster[interfaces.StoreStatus]
	lock        sync.Mutex
}

// NewStoreUpdateSinkImpl creates the internal implementation of StoreUpdateSink.
func NewStoreUpdateSinkImpl(broadcaster *internal.Broadcaster[interfaces.StoreStatus]) *StoreUpdateSinkImpl {
	return &StoreUpdateSinkImpl{
		lastStatus:  interfaces.StoreStatus{Available: true},
		broadcaster: broadcaster,
	}
}

func (s *StoreUpdateSinkImpl) getStatus() interfaces.StoreStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastStatus
}

func (s *StoreUpdateSinkImpl) getBroadcaster() *internal.Broadcaster[interfaces.StoreStatus] {
	return s.broadcaster
}

// UpdateStatus is called from the store to push a status update.
func (s *StoreUpdateSinkImpl) UpdateStatus(newStatus interfaces.StoreStatus) {
	s.lock.Lock()
	modified := false
	if newStatus != s.lastStatus {
		s.lastStatus = newStatus
		modified = true
	}
	s.lock.Unlock()
	if modified {
		s.broadcaster.Broadcast(newStatus)
	}
}
