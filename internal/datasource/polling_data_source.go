package datasource

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
)

const (
	pollingErrorContext     = "on polling request"
	pollingWillRetryMessage = "will retry at next scheduled poll interval"
)

// PollingConfig describes the configuration for a polling source. It is exported so that it
// can be used in the PollingSourceBuilder.
type PollingConfig struct {
	BaseURI      string
	PollInterval time.Duration
}

// PollingProcessor is the internal implementation of the polling source.
//
// This type is exported from internal so that the PollingSourceBuilder tests can verify its
// configuration. All other code outside of this package should interact with it only via the
// Source interface.
type PollingProcessor struct {
	updateSink         subsystems.UpdateSink
	requester          pollingRequester
	pollInterval       time.Duration
	logger             *zap.Logger
	setInitializedOnce sync.Once
	isInitialized      atomic.Bool
	quit               chan struct{}
	closeOnce          sync.Once
}

// NewPollingProcessor creates the internal implementation of the polling source.
func NewPollingProcessor(
	context subsystems.ClientContext,
	updateSink subsystems.UpdateSink,
	cfg PollingConfig,
) *PollingProcessor {
	httpRequester := newPollingRequester(context, context.GetHTTP().CreateHTTPClient(), cfg.BaseURI)
	return newPollingProcessor(context, updateSink, httpRequester, cfg.PollInterval)
}

func newPollingProcessor(
	context subsystems.ClientContext,
	updateSink subsystems.UpdateSink,
	requester pollingRequester,
	pollInterval time.Duration,
) *PollingProcessor {
	return &PollingProcessor{
		updateSink:   updateSink,
		requester:    requester,
		pollInterval: pollInterval,
		logger:       context.GetLogging(),
		quit:         make(chan struct{}),
	}
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) Start(closeWhenReady chan<- struct{}) {
	pp.logger.Info("Starting polling source", zap.Duration("interval", pp.pollInterval))

	ticker := newTickerWithInitialTick(pp.pollInterval)

	go func() {
		defer ticker.Stop()

		var readyOnce sync.Once
		notifyReady := func() {
			readyOnce.Do(func() {
				close(closeWhenReady)
			})
		}
		// Ensure we stop waiting for initialization if we exit, even if initialization fails
		defer notifyReady()

		for {
			select {
			case <-pp.quit:
				return
			case <-ticker.C:
				if err := pp.poll(); err != nil {
					if hse, ok := err.(httpStatusError); ok {
						errorInfo := interfaces.SourceErrorInfo{
							Kind:       interfaces.SourceErrorKindErrorResponse,
							StatusCode: hse.Code,
							Time:       time.Now(),
						}
						recoverable := checkIfErrorIsRecoverableAndLog(
							pp.logger,
							httpErrorDescription(hse.Code),
							pollingErrorContext,
							hse.Code,
							pollingWillRetryMessage,
						)
						if recoverable {
							pp.updateSink.UpdateStatus(interfaces.SourceStateInterrupted, errorInfo)
						} else {
							pp.updateSink.UpdateStatus(interfaces.SourceStateOff, errorInfo)
							notifyReady()
							return
						}
					} else {
						errorInfo := interfaces.SourceErrorInfo{
							Kind:    interfaces.SourceErrorKindNetworkError,
							Message: err.Error(),
							Time:    time.Now(),
						}
						if _, ok := err.(malformedDataError); ok {
							errorInfo.Kind = interfaces.SourceErrorKindInvalidData
						}
						checkIfErrorIsRecoverableAndLog(pp.logger, err.Error(), pollingErrorContext, 0, pollingWillRetryMessage)
						pp.updateSink.UpdateStatus(interfaces.SourceStateInterrupted, errorInfo)
					}
					continue
				}
				pp.updateSink.UpdateStatus(interfaces.SourceStateValid, interfaces.SourceErrorInfo{})
				pp.setInitializedOnce.Do(func() {
					pp.isInitialized.Store(true)
					pp.logger.Info("First polling request successful")
					notifyReady()
				})
			}
		}
	}()
}

func (pp *PollingProcessor) poll() error {
	allData, cached, err := pp.requester.requestAll()

	if err != nil {
		return err
	}

	// A cached response means the data hasn't changed, so we skip the store update
	if !cached {
		pp.updateSink.Init(allData)
	}
	return nil
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) Close() error {
	pp.closeOnce.Do(func() {
		close(pp.quit)
	})
	return nil
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) IsInitialized() bool {
	return pp.isInitialized.Load()
}

// GetBaseURI returns the configured polling base URI, for testing.
func (pp *PollingProcessor) GetBaseURI() string {
	return pp.requester.baseURI()
}

// GetPollInterval returns the configured polling interval, for testing.
func (pp *PollingProcessor) GetPollInterval() time.Duration {
	return pp.pollInterval
}

type tickerWithInitialTick struct {
	ticker *time.Ticker
	C      <-chan time.Time
	stopCh chan struct{}
}

func newTickerWithInitialTick(interval time.Duration) *tickerWithInitialTick {
	c := make(chan time.Time)
	t := &tickerWithInitialTick{
		C:      c,
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	go func() {
		select {
		case c <- time.Now(): // Ensure we do an initial poll immediately
		case <-t.stopCh:
			return
		}
		for {
			select {
			case tt := <-t.ticker.C:
				select {
				case c <- tt:
				case <-t.stopCh:
					return
				}
			case <-t.stopCh:
				return
			}
		}
	}()
	return t
}

func (t *tickerWithInitialTick) Stop() {
	t.ticker.Stop()
	close(t.stopCh)
}
