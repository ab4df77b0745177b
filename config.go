package statecell

import (
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/subsystems"
)

// Config exposes configuration options for the hub.
//
// All of these settings are optional, so an empty Config struct is always valid. See the
// description of each field for the default behavior if it is not set.
//
// Some of the Config fields are factories for subcomponents of the hub, following a builder
// pattern. The built-in implementations are provided by corresponding functions in the
// sccomponents package (and, for file data, the scfiledata package). For instance, to
// configure a polling source:
//
//	var config statecell.Config
//	config.Source = sccomponents.PollingSource().BaseURI("http://my-state-service")
//
// The fields are interfaces so that you can also define your own component implementations.
type Config struct {
	// Sets the implementation of Source for receiving state updates.
	//
	// If nil, the default is sccomponents.ExternalUpdatesOnly(): the hub holds only the data
	// that the application writes with SetValue, or that an external process places in a
	// persistent store. Other options are sccomponents.StreamingSource(),
	// sccomponents.PollingSource(), scfiledata.Source(), or a custom implementation.
	Source subsystems.ComponentConfigurer[subsystems.Source]

	// Sets the implementation of Store for holding state data.
	//
	// If nil, the default is sccomponents.InMemoryStore().
	//
	// The other option is a persistent store, configured with sccomponents.PersistentStore()
	// plus an adapter for a specific database. You can also define your own integration by
	// implementing the subsystems.PersistentStore interface.
	Store subsystems.ComponentConfigurer[subsystems.Store]

	// Sets the destination for log output. If nil, logging is disabled (zap.NewNop()).
	Logging *zap.Logger

	// Sets the hub's networking behavior for components that make HTTP requests. The zero
	// value means default headers and a default HTTP client.
	HTTP subsystems.HTTPConfiguration
}
