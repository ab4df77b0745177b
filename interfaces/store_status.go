package interfaces

// StoreStatusProvider is an interface for querying the status of a store.
//
// Obtain the provider from Hub.StoreStatusProvider(). Application code should not implement
// this interface.
type StoreStatusProvider interface {
	// GetStatus returns the current status of the store.
	GetStatus() StoreStatus

	// IsStatusMonitoringEnabled returns true if the store supports status monitoring.
	//
	// This is normally true for the persistent store wrapper and false for the in-memory
	// store, which has no failure conditions. If it returns false, AddStatusListener channels
	// will never receive a value.
	IsStatusMonitoringEnabled() bool

	// AddStatusListener subscribes for notifications of status changes.
	//
	// Applications that use a persistent store can use this to detect, and recover from,
	// an outage of the backing database.
	AddStatusListener() <-chan StoreStatus

	// RemoveStatusListener unsubscribes from notifications of status changes. The parameter
	// must be the same channel that was returned by AddStatusListener; otherwise, the method
	// has no effect.
	RemoveStatusListener(listener <-chan StoreStatus)
}

// StoreStatus contains information about the status of a store, provided by StoreStatusProvider.
type StoreStatus struct {
	// Available is true if the store is currently usable. For the in-memory store this is
	// always true. For a persistent store it is normally true, but could be false during an
	// outage of the backing database.
	Available bool

	// NeedsRefresh is true if the store may be out of date due to a previous outage, so the
	// hub should attempt to deliver a full set of current data to it again. This property is
	// only meaningful on the first status update after Available has changed back to true.
	NeedsRefresh bool
}
