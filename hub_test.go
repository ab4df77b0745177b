package statecell

import (
	"errors"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal/sharedtest"
	"github.com/statecell/go-statecell/sccomponents"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

func TestMain(m *testing.M) {
	// The persistent store cache keeps a janitor goroutine alive until it is garbage collected.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func makeTestHub(t *testing.T, config Config) *Hub {
	t.Helper()
	hub, err := MakeHub(config, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

func TestMakeHubWithDataFromSource(t *testing.T) {
	data := sharedtest.DefaultData(
		sharedtest.MakeKeyedItem("my-string", 1, "hello"),
		sharedtest.MakeKeyedItem("my-number", 1, float64(3)),
		sharedtest.MakeKeyedItem("was-deleted", 2, nil),
	)
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: data}})

	assert.True(t, hub.Initialized())

	value, ok := hub.GetValue("my-string")
	assert.True(t, ok)
	assert.Equal(t, "hello", value)

	_, ok = hub.GetValue("no-such-key")
	assert.False(t, ok)

	_, ok = hub.GetValue("was-deleted")
	assert.False(t, ok)

	assert.Equal(t, map[string]interface{}{
		"my-string": "hello",
		"my-number": float64(3),
	}, hub.AllValues())
}

func TestMakeHubWithDefaultedConfig(t *testing.T) {
	// With no source or store configured, the hub uses the in-memory store and no source, and
	// counts as initialized immediately.
	hub := makeTestHub(t, Config{})

	assert.True(t, hub.Initialized())
	assert.Len(t, hub.AllValues(), 0)
	assert.Equal(t, interfaces.SourceStateValid, hub.SourceStatusProvider().GetStatus().State)
}

func TestMakeHubInitializationFailed(t *testing.T) {
	hub, err := MakeHub(Config{Source: sharedtest.SourceThatNeverInitializes()}, time.Second)
	require.NotNil(t, hub)
	defer hub.Close()

	assert.Equal(t, ErrInitializationFailed, err)
	assert.False(t, hub.Initialized())
}

func TestMakeHubInitializationTimeout(t *testing.T) {
	hub, err := MakeHub(Config{Source: sharedtest.SourceThatNeverStarts()}, 10*time.Millisecond)
	require.NotNil(t, hub)
	defer hub.Close()

	assert.Equal(t, ErrInitializationTimeout, err)
	assert.False(t, hub.Initialized())

	_, ok := hub.GetValue("key")
	assert.False(t, ok)
}

func TestMakeHubZeroWaitReturnsImmediately(t *testing.T) {
	hub, err := MakeHub(Config{Source: sharedtest.SourceThatNeverStarts()}, 0)
	require.NoError(t, err)
	defer hub.Close()

	assert.False(t, hub.Initialized())
}

func TestMakeHubComponentFactoryError(t *testing.T) {
	fakeErr := errors.New("sorry")

	t.Run("source", func(t *testing.T) {
		hub, err := MakeHub(Config{
			Source: sharedtest.ComponentConfigurerThatReturnsError[subsystems.Source]{Err: fakeErr},
		}, time.Second)
		assert.Nil(t, hub)
		assert.Equal(t, fakeErr, err)
	})

	t.Run("store", func(t *testing.T) {
		hub, err := MakeHub(Config{
			Store: sharedtest.ComponentConfigurerThatReturnsError[subsystems.Store]{Err: fakeErr},
		}, time.Second)
		assert.Nil(t, hub)
		assert.Equal(t, fakeErr, err)
	})
}

func TestHubSetValue(t *testing.T) {
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: sharedtest.DefaultData()}})

	require.NoError(t, hub.SetValue("key", "a"))
	value, ok := hub.GetValue("key")
	assert.True(t, ok)
	assert.Equal(t, "a", value)

	require.NoError(t, hub.SetValue("key", "b"))
	value, _ = hub.GetValue("key")
	assert.Equal(t, "b", value)
}

func TestHubSetValueIsOverriddenByNewerSourceData(t *testing.T) {
	data := sharedtest.DefaultData(sharedtest.MakeKeyedItem("key", 5, "from-source"))
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: data}})

	// The local write goes in at version 6, so a stale source update at version 5 loses.
	require.NoError(t, hub.SetValue("key", "local"))
	value, _ := hub.GetValue("key")
	assert.Equal(t, "local", value)
}

func TestHubDeleteValue(t *testing.T) {
	data := sharedtest.DefaultData(sharedtest.MakeKeyedItem("key", 1, "x"))
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: data}})

	require.NoError(t, hub.DeleteValue("key"))
	_, ok := hub.GetValue("key")
	assert.False(t, ok)

	// Deleting an unknown or already deleted key is a no-op.
	require.NoError(t, hub.DeleteValue("key"))
	require.NoError(t, hub.DeleteValue("no-such-key"))
}

func TestHubTrackerChangeListener(t *testing.T) {
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: sharedtest.DefaultData()}})

	ch := hub.Tracker().AddChangeListener()
	defer hub.Tracker().RemoveChangeListener(ch)

	require.NoError(t, hub.SetValue("key", "a"))
	assert.Equal(t, interfaces.ChangeEvent{Key: "key"}, th.RequireValue(t, ch, time.Second))

	require.NoError(t, hub.DeleteValue("key"))
	assert.Equal(t, interfaces.ChangeEvent{Key: "key"}, th.RequireValue(t, ch, time.Second))
}

func TestHubTrackerValueChangeListener(t *testing.T) {
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: sharedtest.DefaultData()}})

	ch := hub.Tracker().AddValueChangeListener("key", "none")
	defer hub.Tracker().RemoveValueChangeListener(ch)

	require.NoError(t, hub.SetValue("key", "a"))
	event := th.RequireValue(t, ch, time.Second)
	assert.Equal(t, interfaces.ValueChangeEvent{Key: "key", OldValue: "none", NewValue: "a"}, event)

	// Changes to other keys do not notify this listener.
	require.NoError(t, hub.SetValue("other", "x"))
	require.NoError(t, hub.SetValue("key", "b"))
	event = th.RequireValue(t, ch, time.Second)
	assert.Equal(t, interfaces.ValueChangeEvent{Key: "key", OldValue: "a", NewValue: "b"}, event)

	// Deletion reports the placeholder as the new value.
	require.NoError(t, hub.DeleteValue("key"))
	event = th.RequireValue(t, ch, time.Second)
	assert.Equal(t, interfaces.ValueChangeEvent{Key: "key", OldValue: "b", NewValue: "none"}, event)
}

func TestHubStatusProviders(t *testing.T) {
	hub := makeTestHub(t, Config{Source: sharedtest.SourceFactoryWithData{Data: sharedtest.DefaultData()}})

	assert.Equal(t, interfaces.SourceStateValid, hub.SourceStatusProvider().GetStatus().State)

	// The default in-memory store does not support status monitoring, so the status is a
	// permanent "available".
	assert.False(t, hub.StoreStatusProvider().IsStatusMonitoringEnabled())
	assert.Equal(t, interfaces.StoreStatus{Available: true}, hub.StoreStatusProvider().GetStatus())
}

func TestHubWithPersistentStoreReadsExistingData(t *testing.T) {
	core := sharedtest.NewMockPersistentStore()
	core.ForceSet(storetypes.DefaultNamespace, "key", storetypes.ItemDescriptor{Version: 1, Value: "x"})
	core.ForceSetInited(true)

	storeFactory := sccomponents.PersistentStore(
		sharedtest.SingleComponentConfigurer[subsystems.PersistentStore]{Instance: core})

	hub, err := MakeHub(Config{
		Source: sharedtest.SourceThatNeverInitializes(),
		Store:  storeFactory,
	}, time.Second)
	require.NotNil(t, hub)
	defer hub.Close()
	assert.Equal(t, ErrInitializationFailed, err)

	// Even though the source failed, reads fall back to the persistent store's data.
	assert.False(t, hub.Initialized())
	value, ok := hub.GetValue("key")
	assert.True(t, ok)
	assert.Equal(t, "x", value)
}

func TestHubCloseIsIdempotent(t *testing.T) {
	hub := makeTestHub(t, Config{})
	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
}
