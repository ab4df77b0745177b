package datasource

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal/sharedtest"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

const testPollInterval = 10 * time.Millisecond

type mockRequester struct {
	data      []storetypes.Collection
	cached    bool
	err       error
	pollCount int
	lock      sync.Mutex
}

func (r *mockRequester) requestAll() ([]storetypes.Collection, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pollCount++
	return r.data, r.cached, r.err
}

func (r *mockRequester) baseURI() string { return "fake-base-uri" }

func (r *mockRequester) setResult(data []storetypes.Collection, cached bool, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.data, r.cached, r.err = data, cached, err
}

func (r *mockRequester) polls() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pollCount
}

func withPollingProcessor(
	requester pollingRequester,
	action func(*PollingProcessor, *sharedtest.MockUpdateSink),
) {
	sink := sharedtest.NewMockUpdateSink()
	pp := newPollingProcessor(subsystems.BasicClientContext{Logging: zap.NewNop()}, sink, requester, testPollInterval)
	defer pp.Close()
	action(pp, sink)
}

func TestPollingProcessorInitialization(t *testing.T) {
	data := sharedtest.DefaultData(sharedtest.MakeKeyedItem("key", 1, "x"))
	requester := &mockRequester{data: data}

	withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
		closeWhenReady := make(chan struct{})
		pp.Start(closeWhenReady)

		th.AssertChannelClosed(t, closeWhenReady, time.Second, "timed out waiting for initialization")
		assert.True(t, pp.IsInitialized())

		assert.Equal(t, data, sink.RequireInit(t))
		sink.RequireStatusOf(t, interfaces.SourceStateValid)

		// Polling continues at the configured interval.
		require.Eventually(t, func() bool { return requester.polls() >= 3 }, time.Second, time.Millisecond)
	})
}

func TestPollingProcessorSkipsStoreUpdateForCachedResponse(t *testing.T) {
	requester := &mockRequester{data: sharedtest.DefaultData(), cached: true}

	withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
		closeWhenReady := make(chan struct{})
		pp.Start(closeWhenReady)

		th.AssertChannelClosed(t, closeWhenReady, time.Second)

		// The response came from the HTTP cache, so no Init is pushed to the store.
		assert.Len(t, sink.Inits, 0)
		sink.RequireStatusOf(t, interfaces.SourceStateValid)
	})
}

func TestPollingProcessorRecoverableHTTPError(t *testing.T) {
	for _, statusCode := range []int{400, 408, 429, 500, 503} {
		t.Run(errorDescription(statusCode), func(t *testing.T) {
			requester := &mockRequester{err: httpStatusError{Message: "bad", Code: statusCode}}

			withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
				closeWhenReady := make(chan struct{})
				pp.Start(closeWhenReady)

				// The processor reports Interrupted; the real update sink is what maps this to
				// Initializing during startup.
				status := sink.RequireStatusOf(t, interfaces.SourceStateInterrupted)
				assert.Equal(t, interfaces.SourceErrorKindErrorResponse, status.LastError.Kind)
				assert.Equal(t, statusCode, status.LastError.StatusCode)

				assert.False(t, pp.IsInitialized())

				// The processor keeps polling, and recovers when the error clears.
				requester.setResult(sharedtest.DefaultData(), false, nil)
				th.AssertChannelClosed(t, closeWhenReady, time.Second)
				assert.True(t, pp.IsInitialized())
			})
		})
	}
}

func TestPollingProcessorUnrecoverableHTTPError(t *testing.T) {
	for _, statusCode := range []int{401, 403, 404} {
		t.Run(errorDescription(statusCode), func(t *testing.T) {
			requester := &mockRequester{err: httpStatusError{Message: "denied", Code: statusCode}}

			withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
				closeWhenReady := make(chan struct{})
				pp.Start(closeWhenReady)

				// Initialization unblocks immediately in the failed state.
				th.AssertChannelClosed(t, closeWhenReady, time.Second)
				assert.False(t, pp.IsInitialized())

				sink.RequireStatusOf(t, interfaces.SourceStateOff)

				// No further polls happen.
				polls := requester.polls()
				time.Sleep(5 * testPollInterval)
				assert.Equal(t, polls, requester.polls())
			})
		})
	}
}

func TestPollingProcessorNetworkError(t *testing.T) {
	requester := &mockRequester{err: errors.New("connection refused")}

	withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
		closeWhenReady := make(chan struct{})
		pp.Start(closeWhenReady)

		status := sink.RequireStatus(t)
		assert.Equal(t, interfaces.SourceErrorKindNetworkError, status.LastError.Kind)
		assert.False(t, pp.IsInitialized())
	})
}

func TestPollingProcessorMalformedData(t *testing.T) {
	requester := &mockRequester{err: malformedDataError{innerError: errors.New("sorry")}}

	withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
		closeWhenReady := make(chan struct{})
		pp.Start(closeWhenReady)

		status := sink.RequireStatus(t)
		assert.Equal(t, interfaces.SourceErrorKindInvalidData, status.LastError.Kind)
	})
}

func TestPollingProcessorClose(t *testing.T) {
	requester := &mockRequester{data: sharedtest.DefaultData()}

	withPollingProcessor(requester, func(pp *PollingProcessor, sink *sharedtest.MockUpdateSink) {
		closeWhenReady := make(chan struct{})
		pp.Start(closeWhenReady)
		th.AssertChannelClosed(t, closeWhenReady, time.Second)

		require.NoError(t, pp.Close())
		require.NoError(t, pp.Close()) // second close is a no-op

		polls := requester.polls()
		time.Sleep(5 * testPollInterval)
		assert.LessOrEqual(t, requester.polls(), polls+1) // at most one in-flight poll after close
	})
}

func TestTickerWithInitialTickStopsFeederGoroutine(t *testing.T) {
	ignoreExisting := goleak.IgnoreCurrent()

	ticker := newTickerWithInitialTick(time.Millisecond)
	th.RequireValue(t, ticker.C, time.Second) // the immediate initial tick
	ticker.Stop()

	goleak.VerifyNone(t, ignoreExisting)
}

func errorDescription(statusCode int) string {
	return fmt.Sprintf("status %d", statusCode)
}
