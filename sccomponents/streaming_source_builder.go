package sccomponents

import (
	"time"

	"github.com/statecell/go-statecell/internal/datasource"
	"github.com/statecell/go-statecell/subsystems"
)

// DefaultInitialReconnectDelay is the default value for
// StreamingSourceBuilder.InitialReconnectDelay.
const DefaultInitialReconnectDelay = time.Second

// StreamingSourceBuilder provides methods for configuring the streaming source.
//
// See StreamingSource for usage.
type StreamingSourceBuilder struct {
	baseURI               string
	initialReconnectDelay time.Duration
}

// StreamingSource returns a configurable factory for using a server-sent events stream to
// get state data.
//
// Create a builder with StreamingSource(), set its properties with the
// StreamingSourceBuilder methods, and then store it in the Source field of your hub
// configuration:
//
//	config := statecell.Config{
//	    Source: sccomponents.StreamingSource().
//	        BaseURI("http://my-state-service").
//	        InitialReconnectDelay(500 * time.Millisecond),
//	}
func StreamingSource() *StreamingSourceBuilder {
	return &StreamingSourceBuilder{
		initialReconnectDelay: DefaultInitialReconnectDelay,
	}
}

// BaseURI sets the base URI of the state service to connect to.
func (b *StreamingSourceBuilder) BaseURI(baseURI string) *StreamingSourceBuilder {
	b.baseURI = baseURI
	return b
}

// InitialReconnectDelay sets the initial reconnect delay for the streaming connection.
//
// The streaming service uses a backoff algorithm (with jitter) every time the connection
// needs to be reestablished. The delay for the first reconnection will start near this value,
// and then increase exponentially for any subsequent connection failures.
//
// The default value is DefaultInitialReconnectDelay.
func (b *StreamingSourceBuilder) InitialReconnectDelay(
	initialReconnectDelay time.Duration,
) *StreamingSourceBuilder {
	if initialReconnectDelay <= 0 {
		b.initialReconnectDelay = DefaultInitialReconnectDelay
	} else {
		b.initialReconnectDelay = initialReconnectDelay
	}
	return b
}

// Build is called by the hub to create the source instance.
func (b *StreamingSourceBuilder) Build(context subsystems.ClientContext) (subsystems.Source, error) {
	cfg := datasource.StreamConfig{
		URI:                   b.baseURI,
		InitialReconnectDelay: b.initialReconnectDelay,
	}
	return datasource.NewStreamProcessor(context, context.GetSourceUpdateSink(), cfg), nil
}
