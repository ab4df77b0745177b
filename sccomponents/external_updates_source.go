package sccomponents

import (
	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal/datasource"
	"github.com/statecell/go-statecell/subsystems"
)

type nullSourceFactory struct{}

// ExternalUpdatesOnly returns a configuration object that disables the hub's own source
// connection.
//
// Storing this in statecell.Config.Source causes the hub not to retrieve state data itself,
// regardless of any other configuration. This is normally done when an external process
// populates a persistent store that the hub reads from. If there is no external process
// updating the store, the hub will have no data other than what the application writes.
//
//	config := statecell.Config{
//	    Source: sccomponents.ExternalUpdatesOnly(),
//	}
func ExternalUpdatesOnly() subsystems.ComponentConfigurer[subsystems.Source] {
	return nullSourceFactory{}
}

func (f nullSourceFactory) Build(context subsystems.ClientContext) (subsystems.Source, error) {
	context.GetLogging().Info("Hub will not connect to a source for state data")
	if context.GetSourceUpdateSink() != nil {
		context.GetSourceUpdateSink().UpdateStatus(interfaces.SourceStateValid, interfaces.SourceErrorInfo{})
	}
	return datasource.NewNullSource(), nil
}
