package datasource

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	es "github.com/launchdarkly/eventsource"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// Implementation of the streaming source, not including the lower-level SSE implementation
// which is in the eventsource package.
//
// Error handling works as follows:
// 1. If any event is malformed, we must assume the stream is broken and we may have missed
// updates. Set the source state to INTERRUPTED, with an error kind of INVALID_DATA, and
// restart the stream.
// 2. If we try to put updates into the store and we get an error, we must assume something's
// wrong with the store. We don't have to log this error because it is logged by
// UpdateSinkImpl, which will also set our state to INTERRUPTED for us.
// 2a. If the store supports status notifications (which persistent stores normally do), then
// we can assume it has entered a failed state and will notify us once it is working again. If
// and when it recovers, it will tell us whether we need to restart the stream (to ensure that
// we haven't missed any updates), or whether it has already persisted all of the stream
// updates we received during the outage.
// 2b. If the store doesn't support status notifications (which is normally only true of the
// in-memory store) then we don't know the significance of the error, but we must assume that
// updates have been lost, so we'll restart the stream.
// 3. If we receive an unrecoverable error like HTTP 401, we close the stream and don't retry,
// and set the state to OFF. Any other HTTP error or network error causes a retry with
// backoff, with a state of INTERRUPTED.
// 4. We close the closeWhenReady channel to tell the hub initialization logic that
// initialization has either succeeded (we got an initial payload and successfully stored it)
// or permanently failed (we got a 401, etc.). Otherwise, the hub initialization method may
// time out but we will still be retrying in the background, and if we succeed then the hub
// can detect that via our IsInitialized method.

const (
	putEvent                 = "put"
	patchEvent               = "patch"
	deleteEvent              = "delete"
	streamReadTimeout        = 5 * time.Minute // the stream endpoint is expected to send heartbeats well within this
	streamMaxRetryDelay      = 30 * time.Second
	streamRetryResetInterval = 60 * time.Second
	streamJitterRatio        = 0.5
	defaultStreamRetryDelay  = 1 * time.Second

	streamingErrorContext     = "in stream connection"
	streamingWillRetryMessage = "will retry"
)

// StreamingRequestPath is the resource that the streaming source requests from the base URI.
const StreamingRequestPath = "/state/stream"

// StreamConfig describes the configuration for a streaming source. It is exported so that it
// can be used in the StreamingSourceBuilder.
type StreamConfig struct {
	URI                   string
	InitialReconnectDelay time.Duration
}

// StreamProcessor is the internal implementation of the streaming source.
//
// This type is exported from internal so that the StreamingSourceBuilder tests can verify its
// configuration. All other code outside of this package should interact with it only via the
// Source interface.
type StreamProcessor struct {
	cfg           StreamConfig
	updateSink    subsystems.UpdateSink
	client        *http.Client
	headers       http.Header
	logger        *zap.Logger
	isInitialized atomic.Bool
	halt          chan struct{}
	storeStatusCh <-chan interfaces.StoreStatus
	readyOnce     sync.Once
	closeOnce     sync.Once
}

// NewStreamProcessor creates the internal implementation of the streaming source.
func NewStreamProcessor(
	context subsystems.ClientContext,
	updateSink subsystems.UpdateSink,
	cfg StreamConfig,
) *StreamProcessor {
	sp := &StreamProcessor{
		updateSink: updateSink,
		headers:    context.GetHTTP().DefaultHeaders,
		logger:     context.GetLogging(),
		halt:       make(chan struct{}),
		cfg:        cfg,
	}

	sp.client = context.GetHTTP().CreateHTTPClient()
	// Client.Timeout isn't just a connect timeout, it will break the connection if a full
	// response isn't received within that time (which, with the stream, it never will be), so
	// we must make sure it's zero. The stream's own read timeout covers dead connections.
	sp.client.Timeout = 0

	return sp
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) IsInitialized() bool {
	return sp.isInitialized.Load()
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) Start(closeWhenReady chan<- struct{}) {
	sp.logger.Info("Starting streaming connection")
	if sp.updateSink.GetStoreStatusProvider().IsStatusMonitoringEnabled() {
		sp.storeStatusCh = sp.updateSink.GetStoreStatusProvider().AddStatusListener()
	}
	go sp.subscribe(closeWhenReady)
}

func (sp *StreamProcessor) consumeStream(stream *es.Stream, closeWhenReady chan<- struct{}) {
	// Consume remaining Events and Errors so we can garbage collect
	defer func() {
		for range stream.Events {
		} // COVERAGE: no way to cause this condition in unit tests
		if stream.Errors != nil {
			for range stream.Errors { // COVERAGE: no way to cause this condition in unit tests
			}
		}
	}()

	for {
		select {
		case event, ok := <-stream.Events:
			if !ok {
				// The stream only closes Events after we have received from sp.halt, so this is
				// just a failsafe for terminating the loop.
				return
			}

			processedEvent := true
			shouldRestart := false

			gotMalformedEvent := func(event es.Event, err error) {
				sp.logger.Error("Received streaming event with malformed JSON data; will restart stream",
					zap.String("event", event.Event()), zap.Error(err))

				errorInfo := interfaces.SourceErrorInfo{
					Kind:    interfaces.SourceErrorKindInvalidData,
					Message: err.Error(),
					Time:    time.Now(),
				}
				sp.updateSink.UpdateStatus(interfaces.SourceStateInterrupted, errorInfo)

				shouldRestart = true // scenario 1 in error handling comments at top of file
				processedEvent = false
			}

			storeUpdateFailed := func(updateDesc string) {
				if sp.storeStatusCh != nil {
					sp.logger.Error("Failed to store " + updateDesc + "; will try again once store is working")
					// scenario 2a in error handling comments at top of file
				} else {
					sp.logger.Error("Failed to store " + updateDesc + "; will restart stream until successful")
					shouldRestart = true // scenario 2b
					processedEvent = false
				}
			}

			switch event.Event() {
			case putEvent:
				put, err := parseAllStateData([]byte(event.Data()))
				if err != nil {
					gotMalformedEvent(event, err)
					break
				}
				if sp.updateSink.Init(put) {
					sp.setInitializedAndNotifyHub(true, closeWhenReady)
				} else {
					storeUpdateFailed("initial streaming data")
				}

			case patchEvent:
				patch, err := parsePatchData([]byte(event.Data()))
				if err != nil {
					gotMalformedEvent(event, err)
					break
				}
				if !sp.updateSink.Upsert(patch.namespace, patch.Key, patch.item) {
					storeUpdateFailed("streaming update of " + patch.Key)
				}

			case deleteEvent:
				del, err := parseDeleteData([]byte(event.Data()))
				if err != nil {
					gotMalformedEvent(event, err)
					break
				}
				if !sp.updateSink.Upsert(del.namespace, del.Key, storetypes.Tombstone(del.Version)) {
					storeUpdateFailed("streaming deletion of " + del.Key)
				}

			default:
				sp.logger.Info("Unexpected event found in stream", zap.String("event", event.Event()))
			}

			if processedEvent {
				sp.updateSink.UpdateStatus(interfaces.SourceStateValid, interfaces.SourceErrorInfo{})
			}
			if shouldRestart {
				stream.Restart()
			}

		case newStoreStatus := <-sp.storeStatusCh:
			if ce := sp.logger.Check(zap.DebugLevel, "Received store status update"); ce != nil {
				ce.Write(zap.Bool("available", newStoreStatus.Available),
					zap.Bool("needsRefresh", newStoreStatus.NeedsRefresh))
			}
			if newStoreStatus.Available {
				// The store has just transitioned from unavailable to available (scenario 2a above)
				if newStoreStatus.NeedsRefresh {
					// The store can't guarantee that all of the latest data was cached, so we restart
					// the stream to get a full refresh.
					sp.logger.Warn("Restarting stream to refresh data after store outage")
					stream.Restart()
				}
				// All of the updates were cached and have been written to the store, so we don't
				// need to restart the stream. We just need to make sure the hub knows we're
				// initialized now (in case the initial "put" was not stored).
				sp.setInitializedAndNotifyHub(true, closeWhenReady)
			}

		case <-sp.halt:
			stream.Close()
			return
		}
	}
}

func (sp *StreamProcessor) subscribe(closeWhenReady chan<- struct{}) {
	req, reqErr := http.NewRequest("GET", sp.cfg.URI+StreamingRequestPath, nil)
	if reqErr != nil {
		sp.logger.Error(
			"Unable to create a stream request; this is not a network problem, most likely a bad base URI",
			zap.Error(reqErr),
		)
		sp.updateSink.UpdateStatus(interfaces.SourceStateOff, interfaces.SourceErrorInfo{
			Kind:    interfaces.SourceErrorKindUnknown,
			Message: reqErr.Error(),
			Time:    time.Now(),
		})
		sp.readyOnce.Do(func() {
			close(closeWhenReady)
		})
		return
	}
	if sp.headers != nil {
		req.Header = maps.Clone(sp.headers)
	}
	sp.logger.Info("Connecting to stream")

	initialRetryDelay := sp.cfg.InitialReconnectDelay
	if initialRetryDelay <= 0 { // COVERAGE: can't cause this condition in unit tests
		initialRetryDelay = defaultStreamRetryDelay
	}

	errorHandler := func(err error) es.StreamErrorHandlerResult {
		if se, ok := err.(es.SubscriptionError); ok {
			errorInfo := interfaces.SourceErrorInfo{
				Kind:       interfaces.SourceErrorKindErrorResponse,
				StatusCode: se.Code,
				Time:       time.Now(),
			}
			recoverable := checkIfErrorIsRecoverableAndLog(
				sp.logger,
				httpErrorDescription(se.Code),
				streamingErrorContext,
				se.Code,
				streamingWillRetryMessage,
			)
			if recoverable {
				sp.updateSink.UpdateStatus(interfaces.SourceStateInterrupted, errorInfo)
				return es.StreamErrorHandlerResult{CloseNow: false}
			}
			sp.updateSink.UpdateStatus(interfaces.SourceStateOff, errorInfo)
			sp.setInitializedAndNotifyHub(false, closeWhenReady)
			return es.StreamErrorHandlerResult{CloseNow: true}
		}

		checkIfErrorIsRecoverableAndLog(
			sp.logger,
			err.Error(),
			streamingErrorContext,
			0,
			streamingWillRetryMessage,
		)
		errorInfo := interfaces.SourceErrorInfo{
			Kind:    interfaces.SourceErrorKindNetworkError,
			Message: err.Error(),
			Time:    time.Now(),
		}
		sp.updateSink.UpdateStatus(interfaces.SourceStateInterrupted, errorInfo)
		return es.StreamErrorHandlerResult{CloseNow: false}
	}

	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(sp.client),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(initialRetryDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetInterval),
		es.StreamOptionErrorHandler(errorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionLogger(zap.NewStdLog(sp.logger)),
	)

	if err != nil {
		sp.readyOnce.Do(func() {
			close(closeWhenReady)
		})
		return
	}

	sp.consumeStream(stream, closeWhenReady)
}

func (sp *StreamProcessor) setInitializedAndNotifyHub(success bool, closeWhenReady chan<- struct{}) {
	if success {
		wasAlreadyInitialized := sp.isInitialized.Swap(true)
		if !wasAlreadyInitialized {
			sp.logger.Info("Streaming is active")
		}
	}
	sp.readyOnce.Do(func() {
		close(closeWhenReady)
	})
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) Close() error {
	sp.closeOnce.Do(func() {
		close(sp.halt)
		if sp.storeStatusCh != nil {
			sp.updateSink.GetStoreStatusProvider().RemoveStatusListener(sp.storeStatusCh)
		}
		sp.updateSink.UpdateStatus(interfaces.SourceStateOff, interfaces.SourceErrorInfo{})
	})
	return nil
}

// GetBaseURI returns the configured streaming base URI, for testing.
func (sp *StreamProcessor) GetBaseURI() string {
	return sp.cfg.URI
}

// GetInitialReconnectDelay returns the configured reconnect delay, for testing.
func (sp *StreamProcessor) GetInitialReconnectDelay() time.Duration {
	return sp.cfg.InitialReconnectDelay
}

type patchData struct {
	Namespace string      `json:"namespace"`
	Key       string      `json:"key"`
	Version   int         `json:"version"`
	Value     interface{} `json:"value"`

	namespace storetypes.Namespace
	item      storetypes.ItemDescriptor
}

func parsePatchData(data []byte) (patchData, error) {
	var p patchData
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	p.namespace = storetypes.DefaultNamespace
	if p.Namespace != "" {
		p.namespace = storetypes.Namespace(p.Namespace)
	}
	p.item = storetypes.ItemDescriptor{Version: p.Version, Value: p.Value}
	return p, nil
}

type deleteData struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Version   int    `json:"version"`

	namespace storetypes.Namespace
}

func parseDeleteData(data []byte) (deleteData, error) {
	var d deleteData
	if err := json.Unmarshal(data, &d); err != nil {
		return d, err
	}
	d.namespace = storetypes.DefaultNamespace
	if d.Namespace != "" {
		d.namespace = storetypes.Namespace(d.Namespace)
	}
	return d, nil
}
