package datastore

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
)

// Variable so it can be shortened in tests.
var statusPollInterval = 500 * time.Millisecond //nolint:gochecknoglobals

// storeStatusManager tracks the availability of a persistent store and polls for recovery
// after an outage. Status changes are pushed through the hub's StoreUpdateSink, which is
// where they get broadcast to any listeners.
type storeStatusManager struct {
	sink              subsystems.StoreUpdateSink
	pollFn            func() bool
	refreshOnRecovery bool
	lastAvailable     bool
	pollCloser        chan struct{}
	closeOnce         sync.Once
	logger            *zap.Logger
	lock              sync.Mutex
}

// newStoreStatusManager creates a storeStatusManager. The pollFn should return true if the
// store is available, false if not.
func newStoreStatusManager(
	availableNow bool,
	pollFn func() bool,
	refreshOnRecovery bool,
	sink subsystems.StoreUpdateSink,
	logger *zap.Logger,
) *storeStatusManager {
	return &storeStatusManager{
		sink:              sink,
		pollFn:            pollFn,
		refreshOnRecovery: refreshOnRecovery,
		lastAvailable:     availableNow,
		logger:            logger,
	}
}

// updateAvailability signals that the store is now available or unavailable. If that is a
// change, a status update is pushed through the sink (and, if the new status is unavailable,
// a poller is started to detect recovery).
func (m *storeStatusManager) updateAvailability(available bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if available == m.lastAvailable {
		return
	}
	m.lastAvailable = available

	newStatus := interfaces.StoreStatus{Available: available}
	if available {
		m.logger.Warn("Persistent store is available again")
		newStatus.NeedsRefresh = m.refreshOnRecovery
	}
	if m.sink != nil {
		m.sink.UpdateStatus(newStatus)
	}

	// If the store has just become unavailable, start polling until it comes back.
	if !available {
		m.logger.Warn("Detected persistent store unavailability; updates will be cached until it recovers")
		m.pollCloser = m.startStatusPoller()
	}
}

// isAvailable tests whether the last known status was available.
func (m *storeStatusManager) isAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.lastAvailable
}

// close shuts down the poller goroutine, if any.
func (m *storeStatusManager) close() {
	m.closeOnce.Do(func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		if m.pollCloser != nil {
			close(m.pollCloser)
			m.pollCloser = nil
		}
	})
}

func (m *storeStatusManager) startStatusPoller() chan struct{} {
	closer := make(chan struct{})
	go func() {
		ticker := time.NewTicker(statusPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.pollFn() {
					m.updateAvailability(true)
					return
				}
			case <-closer:
				return
			}
		}
	}()
	return closer
}
