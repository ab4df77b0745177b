package sccomponents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal/sharedtest"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

func TestExternalUpdatesOnly(t *testing.T) {
	sink := sharedtest.NewMockUpdateSink()
	context := basicTestContext()
	context.SourceUpdateSink = sink

	s, err := ExternalUpdatesOnly().Build(context)
	require.NoError(t, err)
	defer s.Close()

	// The null source reports Valid immediately, since the hub is not waiting for any data.
	sink.RequireStatusOf(t, interfaces.SourceStateValid)

	closeWhenReady := make(chan struct{})
	s.Start(closeWhenReady)

	select {
	case <-closeWhenReady:
	default:
		assert.Fail(t, "expected closeWhenReady to be closed immediately")
	}
	assert.True(t, s.IsInitialized())
	assert.Len(t, sink.Inits, 0)
}

func TestInMemoryStoreFactory(t *testing.T) {
	store, err := InMemoryStore().Build(subsystems.BasicClientContext{})
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, store.IsStatusMonitoringEnabled())
	require.NoError(t, store.Init(nil))
	assert.True(t, store.IsInitialized())

	_, err = store.Get(storetypes.DefaultNamespace, "key")
	assert.NoError(t, err)
}
