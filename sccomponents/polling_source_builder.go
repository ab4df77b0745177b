package sccomponents

import (
	"time"

	"github.com/statecell/go-statecell/internal/datasource"
	"github.com/statecell/go-statecell/subsystems"
)

// DefaultPollInterval is the default value for PollingSourceBuilder.PollInterval. This is
// also the minimum value.
const DefaultPollInterval = 30 * time.Second

// PollingSourceBuilder provides methods for configuring the polling source.
//
// See PollingSource for usage.
type PollingSourceBuilder struct {
	baseURI      string
	pollInterval time.Duration
}

// PollingSource returns a configurable factory for using polling mode to get state data.
//
// In polling mode, the hub makes a new HTTP request to the state service at regular
// intervals. HTTP caching allows it to avoid redundantly downloading data if there have been
// no changes, but polling is still less efficient than streaming.
//
// To use polling mode, create a builder with PollingSource(), set its properties with the
// methods of PollingSourceBuilder, and then store it in the Source field of your hub
// configuration:
//
//	config := statecell.Config{
//	    Source: sccomponents.PollingSource().
//	        BaseURI("http://my-state-service").
//	        PollInterval(45 * time.Second),
//	}
func PollingSource() *PollingSourceBuilder {
	return &PollingSourceBuilder{
		pollInterval: DefaultPollInterval,
	}
}

// BaseURI sets the base URI of the state service to poll.
func (b *PollingSourceBuilder) BaseURI(baseURI string) *PollingSourceBuilder {
	b.baseURI = baseURI
	return b
}

// PollInterval sets the interval at which the hub will poll for state updates.
//
// The default and minimum value is DefaultPollInterval. Values less than this will be set to
// the default.
func (b *PollingSourceBuilder) PollInterval(pollInterval time.Duration) *PollingSourceBuilder {
	if pollInterval < DefaultPollInterval {
		b.pollInterval = DefaultPollInterval
	} else {
		b.pollInterval = pollInterval
	}
	return b
}

// Used in tests to skip parameter validation.
//
//nolint:unused // it is used in tests
func (b *PollingSourceBuilder) forcePollInterval(
	pollInterval time.Duration,
) *PollingSourceBuilder {
	b.pollInterval = pollInterval
	return b
}

// Build is called by the hub to create the source instance.
func (b *PollingSourceBuilder) Build(context subsystems.ClientContext) (subsystems.Source, error) {
	cfg := datasource.PollingConfig{
		BaseURI:      b.baseURI,
		PollInterval: b.pollInterval,
	}
	return datasource.NewPollingProcessor(context, context.GetSourceUpdateSink(), cfg), nil
}
