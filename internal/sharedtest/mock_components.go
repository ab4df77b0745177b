package sharedtest

import (
	"sync"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// SingleComponentConfigurer is a test implementation of ComponentConfigurer that always
// returns the same pre-existing instance.
type SingleComponentConfigurer[T any] struct {
	Instance T
}

func (c SingleComponentConfigurer[T]) Build(clientContext subsystems.ClientContext) (T, error) { //nolint:revive
	return c.Instance, nil
}

// ComponentConfigurerThatReturnsError is a test implementation of ComponentConfigurer that
// always fails.
type ComponentConfigurerThatReturnsError[T any] struct {
	Err error
}

func (c ComponentConfigurerThatReturnsError[T]) Build(clientContext subsystems.ClientContext) (T, error) { //nolint:revive
	var empty T
	return empty, c.Err
}

// SourceFactoryWithData is a test implementation of ComponentConfigurer that will cause the
// source to provide a specific set of data when it starts.
type SourceFactoryWithData struct {
	Data []storetypes.Collection
}

func (f SourceFactoryWithData) Build(context subsystems.ClientContext) (subsystems.Source, error) { //nolint:revive
	return &sourceWithData{f.Data, context.GetSourceUpdateSink(), false}, nil
}

type sourceWithData struct {
	data       []storetypes.Collection
	updateSink subsystems.UpdateSink
	inited     bool
}

func (d *sourceWithData) IsInitialized() bool { return d.inited }

func (d *sourceWithData) Close() error { return nil }

func (d *sourceWithData) Start(closeWhenReady chan<- struct{}) {
	d.updateSink.Init(d.data)
	d.updateSink.UpdateStatus(interfaces.SourceStateValid, interfaces.SourceErrorInfo{})
	d.inited = true
	close(closeWhenReady)
}

// SourceThatIsAlwaysInitialized returns a test component factory that produces a source that
// immediately reports success on startup, although it does not provide any data.
func SourceThatIsAlwaysInitialized() subsystems.ComponentConfigurer[subsystems.Source] {
	return SingleComponentConfigurer[subsystems.Source]{Instance: mockSource{Initialized: true}}
}

// SourceThatNeverInitializes returns a test component factory that produces a source that
// immediately starts up in a failed state and does not provide any data.
func SourceThatNeverInitializes() subsystems.ComponentConfigurer[subsystems.Source] {
	return SingleComponentConfigurer[subsystems.Source]{Instance: mockSource{Initialized: false}}
}

// SourceThatNeverStarts returns a test component factory that produces a source that never
// signals readiness.
func SourceThatNeverStarts() subsystems.ComponentConfigurer[subsystems.Source] {
	return SingleComponentConfigurer[subsystems.Source]{
		Instance: mockSource{StartFn: func(chan<- struct{}) {}},
	}
}

type mockSource struct {
	Initialized bool
	CloseFn     func() error
	StartFn     func(chan<- struct{})
}

func (u mockSource) IsInitialized() bool { return u.Initialized }

func (u mockSource) Close() error {
	if u.CloseFn == nil {
		return nil
	}
	return u.CloseFn()
}

func (u mockSource) Start(closeWhenReady chan<- struct{}) {
	if u.StartFn == nil {
		close(closeWhenReady)
	} else {
		u.StartFn(closeWhenReady)
	}
}

// MockStoreUpdateSink is a test implementation of subsystems.StoreUpdateSink that records
// status updates.
type MockStoreUpdateSink struct {
	Statuses chan interfaces.StoreStatus
	lock     sync.Mutex
	last     interfaces.StoreStatus
}

// NewMockStoreUpdateSink creates an instance of MockStoreUpdateSink.
func NewMockStoreUpdateSink() *MockStoreUpdateSink {
	return &MockStoreUpdateSink{
		Statuses: make(chan interfaces.StoreStatus, 10),
		last:     interfaces.StoreStatus{Available: true},
	}
}

// UpdateStatus in this test implementation pushes the status onto the Statuses channel.
func (m *MockStoreUpdateSink) UpdateStatus(newStatus interfaces.StoreStatus) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if newStatus != m.last {
		m.last = newStatus
		m.Statuses <- newStatus
	}
}
