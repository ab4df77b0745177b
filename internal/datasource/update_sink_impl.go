package datasource

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// UpdateSinkImpl is the internal implementation of subsystems.UpdateSink. It is exported
// because the actual implementation type, rather than the interface, is required as a
// dependency of other hub components.
//
// All writes from a source pass through here on their way to the store. That makes this the
// one place that knows when the visible state really changed, so it is also where ChangeEvents
// are produced: an accepted upsert broadcasts one event, and a full Init broadcasts events
// for every key whose value differs from the previous data set.
type UpdateSinkImpl struct {
	store                 subsystems.Store
	storeStatusProvider   interfaces.StoreStatusProvider
	statusBroadcaster     *internal.Broadcaster[interfaces.SourceStatus]
	changeBroadcaster     *internal.Broadcaster[interfaces.ChangeEvent]
	logger                *zap.Logger
	currentStatus         interfaces.SourceStatus
	knownNamespaces       map[storetypes.Namespace]struct{}
	lastStoreUpdateFailed bool
	lock                  sync.Mutex
}

// NewUpdateSinkImpl creates the internal implementation of UpdateSink.
func NewUpdateSinkImpl(
	store subsystems.Store,
	storeStatusProvider interfaces.StoreStatusProvider,
	statusBroadcaster *internal.Broadcaster[interfaces.SourceStatus],
	changeBroadcaster *internal.Broadcaster[interfaces.ChangeEvent],
	logger *zap.Logger,
) *UpdateSinkImpl {
	return &UpdateSinkImpl{
		store:               store,
		storeStatusProvider: storeStatusProvider,
		statusBroadcaster:   statusBroadcaster,
		changeBroadcaster:   changeBroadcaster,
		logger:              logger,
		currentStatus: interfaces.SourceStatus{
			State:      interfaces.SourceStateInitializing,
			StateSince: time.Now(),
		},
		knownNamespaces: make(map[storetypes.Namespace]struct{}),
	}
}

// Init is a standard method of UpdateSink.
func (u *UpdateSinkImpl) Init(allData []storetypes.Collection) bool {
	var oldData map[storetypes.Namespace]map[string]storetypes.ItemDescriptor

	if u.changeBroadcaster.HasListeners() {
		// Query the existing data, if any, so that after the update we can compute a diff. Note
		// that namespaces the store knew about before we ever wrote to it are not discoverable
		// through the Store interface, so the diff covers the namespaces this sink has seen.
		oldData = make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor)
		for namespace := range u.namespaceUnion(allData) {
			if items, err := u.store.GetAll(namespace); err == nil {
				m := make(map[string]storetypes.ItemDescriptor, len(items))
				for _, item := range items {
					m[item.Key] = item.Item
				}
				oldData[namespace] = m
			}
		}
	}

	err := u.store.Init(allData)
	updated := u.maybeUpdateError(err)

	u.rememberNamespaces(allData)

	if updated && oldData != nil {
		u.sendChangeEvents(computeChangedKeysForFullDataSet(oldData, fullDataSetToMap(allData)))
	}

	return updated
}

// Upsert is a standard method of UpdateSink.
func (u *UpdateSinkImpl) Upsert(
	namespace storetypes.Namespace,
	key string,
	item storetypes.ItemDescriptor,
) bool {
	updated, err := u.store.Upsert(namespace, key, item)
	ok := u.maybeUpdateError(err)

	u.lock.Lock()
	u.knownNamespaces[namespace] = struct{}{}
	u.lock.Unlock()

	if ok && updated {
		u.sendChangeEvents([]string{key})
	}

	return ok
}

func (u *UpdateSinkImpl) maybeUpdateError(err error) bool {
	if err == nil {
		u.lock.Lock()
		defer u.lock.Unlock()
		u.lastStoreUpdateFailed = false
		return true
	}

	u.UpdateStatus(
		interfaces.SourceStateInterrupted,
		interfaces.SourceErrorInfo{
			Kind:    interfaces.SourceErrorKindStoreError,
			Message: err.Error(),
			Time:    time.Now(),
		},
	)

	u.lock.Lock()
	shouldLog := !u.lastStoreUpdateFailed
	u.lastStoreUpdateFailed = true
	u.lock.Unlock()
	if shouldLog {
		u.logger.Warn("Unexpected store error when trying to store an update received from the source",
			zap.Error(err))
	}

	return false
}

// UpdateStatus is a standard method of UpdateSink.
func (u *UpdateSinkImpl) UpdateStatus(
	newState interfaces.SourceState,
	newError interfaces.SourceErrorInfo,
) {
	if newState == "" {
		return
	}
	if statusToBroadcast, changed := u.maybeUpdateStatus(newState, newError); changed {
		u.statusBroadcaster.Broadcast(statusToBroadcast)
	}
}

func (u *UpdateSinkImpl) maybeUpdateStatus(
	newState interfaces.SourceState,
	newError interfaces.SourceErrorInfo,
) (interfaces.SourceStatus, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()

	oldStatus := u.currentStatus

	// Interrupted is only meaningful after the source has connected once; a failure during the
	// initial attempt just means we are still initializing.
	if newState == interfaces.SourceStateInterrupted && oldStatus.State == interfaces.SourceStateInitializing {
		newState = interfaces.SourceStateInitializing
	}

	if newState == oldStatus.State && newError.Kind == "" {
		return interfaces.SourceStatus{}, false
	}

	stateSince := oldStatus.StateSince
	if newState != oldStatus.State {
		stateSince = time.Now()
	}
	lastError := oldStatus.LastError
	if newError.Kind != "" {
		lastError = newError
	}
	u.currentStatus = interfaces.SourceStatus{
		State:      newState,
		StateSince: stateSince,
		LastError:  lastError,
	}
	return u.currentStatus, true
}

// GetStoreStatusProvider is a standard method of UpdateSink.
func (u *UpdateSinkImpl) GetStoreStatusProvider() interfaces.StoreStatusProvider {
	return u.storeStatusProvider
}

// GetLastStatus is used internally by hub components.
func (u *UpdateSinkImpl) GetLastStatus() interfaces.SourceStatus {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.currentStatus
}

func (u *UpdateSinkImpl) waitFor(desiredState interfaces.SourceState, timeout time.Duration) bool {
	u.lock.Lock()
	if u.currentStatus.State == desiredState {
		u.lock.Unlock()
		return true
	}
	if u.currentStatus.State == interfaces.SourceStateOff {
		u.lock.Unlock()
		return false
	}

	statusCh := u.statusBroadcaster.AddListener()
	defer u.statusBroadcaster.RemoveListener(statusCh)
	u.lock.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}

	for {
		select {
		case newStatus := <-statusCh:
			if newStatus.State == desiredState {
				return true
			}
			if newStatus.State == interfaces.SourceStateOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}

func (u *UpdateSinkImpl) sendChangeEvents(keys []string) {
	for _, key := range keys {
		u.changeBroadcaster.Broadcast(interfaces.ChangeEvent{Key: key})
	}
}

func (u *UpdateSinkImpl) rememberNamespaces(allData []storetypes.Collection) {
	u.lock.Lock()
	defer u.lock.Unlock()
	for _, coll := range allData {
		u.knownNamespaces[coll.Namespace] = struct{}{}
	}
}

func (u *UpdateSinkImpl) namespaceUnion(allData []storetypes.Collection) map[storetypes.Namespace]struct{} {
	u.lock.Lock()
	ret := maps.Clone(u.knownNamespaces)
	u.lock.Unlock()
	for _, coll := range allData {
		ret[coll.Namespace] = struct{}{}
	}
	return ret
}

func fullDataSetToMap(
	allData []storetypes.Collection,
) map[storetypes.Namespace]map[string]storetypes.ItemDescriptor {
	ret := make(map[storetypes.Namespace]map[string]storetypes.ItemDescriptor, len(allData))
	for _, coll := range allData {
		m := make(map[string]storetypes.ItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			m[item.Key] = item.Item
		}
		ret[coll.Namespace] = m
	}
	return ret
}

// computeChangedKeysForFullDataSet returns the keys whose items differ between two full data
// sets. A key counts as changed if it appeared, disappeared, or has a different version.
func computeChangedKeysForFullDataSet(
	oldData, newData map[storetypes.Namespace]map[string]storetypes.ItemDescriptor,
) []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(key string) {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for namespace, oldItems := range oldData {
		newItems := newData[namespace]
		for key, oldItem := range oldItems {
			newItem, ok := newItems[key]
			if !ok || newItem.Version != oldItem.Version {
				add(key)
			}
		}
	}
	for namespace, newItems := range newData {
		oldItems := oldData[namespace]
		for key := range newItems {
			if _, ok := oldItems[key]; !ok {
				add(key)
			}
		}
	}
	return keys
}
