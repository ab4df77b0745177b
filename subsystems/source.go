package subsystems

import (
	"io"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// Source describes the interface for a component that delivers state data into the hub.
//
// The built-in implementations are the streaming source, the polling source, the file source,
// and the external-updates-only source. A source receives data from somewhere and pushes it
// into the hub through the UpdateSink it was given at build time; it never writes to the
// store directly.
type Source interface {
	io.Closer

	// IsInitialized returns true if the source has successfully delivered an initial set of
	// data at least once.
	IsInitialized() bool

	// Start tells the source to begin delivering data. The source should close the
	// closeWhenReady channel as soon as it has either delivered an initial data set, or
	// determined that it permanently cannot (in which case it should also report
	// SourceStateOff through the sink).
	Start(closeWhenReady chan<- struct{})
}

// UpdateSink is an interface that a source uses to deliver data and status information to
// the hub. The hub passes it in the ClientContext when creating a source component.
//
// Application code does not need to use this type.
type UpdateSink interface {
	// Init overwrites the current contents of the state store with a full data set.
	//
	// It returns false if the update failed (for instance, because of a store outage), in
	// which case the sink has already reported the problem through UpdateStatus.
	Init(allData []storetypes.Collection) bool

	// Upsert updates or adds a single item, subject to the store's versioning rules. A
	// deleted item is delivered as a tombstone.
	//
	// It returns false if the update failed, in which case the sink has already reported
	// the problem through UpdateStatus.
	Upsert(namespace storetypes.Namespace, key string, item storetypes.ItemDescriptor) bool

	// UpdateStatus informs the hub of a change in the source's status. Implementations
	// should use this instead of logging alone, so that the status is visible through
	// SourceStatusProvider.
	UpdateStatus(newState interfaces.SourceState, newError interfaces.SourceErrorInfo)

	// GetStoreStatusProvider returns the status provider of the store the sink writes to, so
	// that a source can find out about store outages and re-deliver data after recovery.
	GetStoreStatusProvider() interfaces.StoreStatusProvider
}
