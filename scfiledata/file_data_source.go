// Package scfiledata allows the hub to read state data from files.
//
// This is most useful in development and testing, where a checked-in YAML or JSON file can
// stand in for a real streaming or polling endpoint. To use it, put the builder in the hub
// configuration's Source field:
//
//	config := statecell.Config{
//	    Source: scfiledata.Source().FilePaths("./testdata/state.yaml"),
//	}
//
// Combine it with the scfilewatch package to reload the files automatically whenever they
// change.
package scfiledata

import (
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/subsystems"
)

// ReloaderFactory is a function type used with SourceBuilder.Reloader, to specify a
// mechanism for detecting when data files should be reloaded. Its standard implementation is
// scfilewatch.WatchFiles.
type ReloaderFactory func(paths []string, logger *zap.Logger, reload func(), closeCh <-chan struct{}) error

// SourceBuilder is a builder for configuring the file-based source.
//
// Obtain an instance of this type by calling Source(). After calling its methods to specify
// any desired custom settings, store it in the hub configuration's Source field. You do not
// need to call the builder's Build method yourself; the hub will do that.
type SourceBuilder struct {
	filePaths       []string
	reloaderFactory ReloaderFactory
}

// Source returns a configurable builder for a file-based source.
func Source() *SourceBuilder {
	return &SourceBuilder{}
}

// FilePaths specifies the input data files. The paths may be any number of absolute or
// relative file paths.
func (b *SourceBuilder) FilePaths(paths ...string) *SourceBuilder {
	b.filePaths = append(b.filePaths, paths...)
	return b
}

// Reloader specifies a mechanism for reloading data files. It is normally used with the
// scfilewatch package, as follows:
//
//	config := statecell.Config{
//	    Source: scfiledata.Source().
//	        FilePaths(filePaths...).
//	        Reloader(scfilewatch.WatchFiles),
//	}
func (b *SourceBuilder) Reloader(reloaderFactory ReloaderFactory) *SourceBuilder {
	b.reloaderFactory = reloaderFactory
	return b
}

// Build is called by the hub to create the source instance.
func (b *SourceBuilder) Build(context subsystems.ClientContext) (subsystems.Source, error) {
	return newFileSourceImpl(context, context.GetSourceUpdateSink(), b.filePaths, b.reloaderFactory)
}
