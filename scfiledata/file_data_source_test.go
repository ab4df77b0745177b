package scfiledata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal/sharedtest"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

func makeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state-data")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

type fileSourceTestParams struct {
	source subsystems.Source
	sink   *sharedtest.MockUpdateSink
	ready  chan struct{}
}

func withFileSource(t *testing.T, builder *SourceBuilder, action func(fileSourceTestParams)) {
	t.Helper()
	sink := sharedtest.NewMockUpdateSink()
	context := subsystems.BasicClientContext{Logging: zap.NewNop(), SourceUpdateSink: sink}

	source, err := builder.Build(context)
	require.NoError(t, err)
	defer source.Close()

	ready := make(chan struct{})
	source.Start(ready)

	action(fileSourceTestParams{source, sink, ready})
}

func TestFileSourceYamlValues(t *testing.T) {
	path := makeTempFile(t, `
values:
  my-string: hello
  my-number: 3
`)

	withFileSource(t, Source().FilePaths(path), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		assert.True(t, p.source.IsInitialized())

		p.sink.RequireInit(t)
		item, ok := p.sink.GetData(storetypes.DefaultNamespace, "my-string")
		require.True(t, ok)
		assert.Equal(t, storetypes.ItemDescriptor{Version: 1, Value: "hello"}, item)

		p.sink.RequireStatusOf(t, interfaces.SourceStateValid)
	})
}

func TestFileSourceJsonItems(t *testing.T) {
	path := makeTempFile(t, `{"items": {"my-key": {"version": 5, "value": true}}}`)

	withFileSource(t, Source().FilePaths(path), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)

		item, ok := p.sink.GetData(storetypes.DefaultNamespace, "my-key")
		require.True(t, ok)
		assert.Equal(t, storetypes.ItemDescriptor{Version: 5, Value: true}, item)
	})
}

func TestFileSourceMergesMultipleFiles(t *testing.T) {
	path1 := makeTempFile(t, `{"values": {"key1": "a"}}`)
	path2 := makeTempFile(t, `{"items": {"key2": {"version": 2, "value": "b"}}}`)

	withFileSource(t, Source().FilePaths(path1, path2), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)

		_, ok := p.sink.GetData(storetypes.DefaultNamespace, "key1")
		assert.True(t, ok)
		_, ok = p.sink.GetData(storetypes.DefaultNamespace, "key2")
		assert.True(t, ok)
	})
}

func TestFileSourceDuplicateKeyAcrossFiles(t *testing.T) {
	path1 := makeTempFile(t, `{"values": {"dup": "a"}}`)
	path2 := makeTempFile(t, `{"values": {"dup": "b"}}`)

	withFileSource(t, Source().FilePaths(path1, path2), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		assert.False(t, p.source.IsInitialized())

		status := p.sink.RequireStatus(t)
		assert.Equal(t, interfaces.SourceErrorKindInvalidData, status.LastError.Kind)
		assert.Len(t, p.sink.Inits, 0)
	})
}

func TestFileSourceMissingFile(t *testing.T) {
	path := makeTempFile(t, "")
	require.NoError(t, os.Remove(path))

	withFileSource(t, Source().FilePaths(path), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		assert.False(t, p.source.IsInitialized())

		status := p.sink.RequireStatus(t)
		assert.Equal(t, interfaces.SourceErrorKindInvalidData, status.LastError.Kind)
	})
}

func TestFileSourceMalformedFile(t *testing.T) {
	path := makeTempFile(t, `{"values": [not an object]`)

	withFileSource(t, Source().FilePaths(path), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		assert.False(t, p.source.IsInitialized())

		status := p.sink.RequireStatus(t)
		assert.Equal(t, interfaces.SourceErrorKindInvalidData, status.LastError.Kind)
	})
}

func TestFileSourceReloaderReloadsData(t *testing.T) {
	path := makeTempFile(t, `{"values": {"key": "before"}}`)

	var capturedReload func()
	reloaderFactory := func(paths []string, logger *zap.Logger, reload func(), closeCh <-chan struct{}) error {
		capturedReload = reload
		return nil
	}

	withFileSource(t, Source().FilePaths(path).Reloader(reloaderFactory), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		p.sink.RequireInit(t)
		require.NotNil(t, capturedReload)

		require.NoError(t, os.WriteFile(path, []byte(`{"values": {"key": "after"}}`), 0600))
		capturedReload()

		p.sink.RequireInit(t)
		item, _ := p.sink.GetData(storetypes.DefaultNamespace, "key")
		assert.Equal(t, "after", item.Value)
	})
}

func TestFileSourceWithReloaderDefersReadinessUntilValidData(t *testing.T) {
	path := makeTempFile(t, `{"values": [not an object]`)

	var capturedReload func()
	reloaderFactory := func(paths []string, logger *zap.Logger, reload func(), closeCh <-chan struct{}) error {
		capturedReload = reload
		return nil
	}

	withFileSource(t, Source().FilePaths(path).Reloader(reloaderFactory), func(p fileSourceTestParams) {
		// The initial load failed, so readiness is deferred until a reload succeeds.
		th.AssertChannelNotClosed(t, p.ready, 50*time.Millisecond)

		require.NoError(t, os.WriteFile(path, []byte(`{"values": {"key": "x"}}`), 0600))
		capturedReload()

		th.AssertChannelClosed(t, p.ready, time.Second)
		assert.True(t, p.source.IsInitialized())
	})
}

func TestFileSourceCloseSignalsReloader(t *testing.T) {
	path := makeTempFile(t, `{"values": {"key": "x"}}`)

	var capturedCloseCh <-chan struct{}
	reloaderFactory := func(paths []string, logger *zap.Logger, reload func(), closeCh <-chan struct{}) error {
		capturedCloseCh = closeCh
		return nil
	}

	withFileSource(t, Source().FilePaths(path).Reloader(reloaderFactory), func(p fileSourceTestParams) {
		th.AssertChannelClosed(t, p.ready, time.Second)
		require.NotNil(t, capturedCloseCh)

		require.NoError(t, p.source.Close())
		require.NoError(t, p.source.Close()) // second close is a no-op

		th.AssertChannelClosed(t, capturedCloseCh, time.Second)
	})
}
