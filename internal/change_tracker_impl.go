package internal

import (
	"reflect"
	"sync"

	"github.com/statecell/go-statecell/interfaces"
)

// changeTrackerImpl is the internal implementation of ChangeTracker. It's not exported
// because the rest of the hub code only interacts with the public interface.
//
// The underlying ChangeEvent broadcaster receives notifications of key changes in general.
// When a value change listener is created with AddValueChangeListener, this is implemented by
// creating a regular ChangeEvent channel and starting a goroutine that reads it and posts
// events as appropriate to a ValueChangeEvent channel; the changeTrackerImpl maintains its
// own mapping of this to the underlying channel, which is necessary for unregistering it.
type changeTrackerImpl struct {
	broadcaster              *Broadcaster[interfaces.ChangeEvent]
	readValueFn              func(key string, placeholder interface{}) interface{}
	valueChangeSubscriptions map[<-chan interfaces.ValueChangeEvent]<-chan interfaces.ChangeEvent
	lock                     sync.Mutex
}

// NewChangeTrackerImpl creates the internal implementation of ChangeTracker. The readValueFn
// should return the current value of a key, or the placeholder if the key does not exist.
func NewChangeTrackerImpl(
	broadcaster *Broadcaster[interfaces.ChangeEvent],
	readValueFn func(key string, placeholder interface{}) interface{},
) interfaces.ChangeTracker {
	return &changeTrackerImpl{
		broadcaster:              broadcaster,
		readValueFn:              readValueFn,
		valueChangeSubscriptions: make(map[<-chan interfaces.ValueChangeEvent]<-chan interfaces.ChangeEvent),
	}
}

// AddChangeListener is a standard method of ChangeTracker.
func (t *changeTrackerImpl) AddChangeListener() <-chan interfaces.ChangeEvent {
	return t.broadcaster.AddListener()
}

// RemoveChangeListener is a standard method of ChangeTracker.
func (t *changeTrackerImpl) RemoveChangeListener(listener <-chan interfaces.ChangeEvent) {
	t.broadcaster.RemoveListener(listener)
}

// AddValueChangeListener is a standard method of ChangeTracker.
func (t *changeTrackerImpl) AddValueChangeListener(
	key string,
	placeholder interface{},
) <-chan interfaces.ValueChangeEvent {
	valueCh := make(chan interfaces.ValueChangeEvent, subscriberChannelBufferLength)
	changeCh := t.broadcaster.AddListener()
	// Read the baseline value before returning, so that a write made right after subscribing
	// is seen as a change rather than silently adopted as the starting value.
	currentValue := t.readValueFn(key, placeholder)
	go runValueChangeListener(changeCh, valueCh, t.readValueFn, key, placeholder, currentValue)

	t.lock.Lock()
	t.valueChangeSubscriptions[valueCh] = changeCh
	t.lock.Unlock()

	return valueCh
}

// RemoveValueChangeListener is a standard method of ChangeTracker.
func (t *changeTrackerImpl) RemoveValueChangeListener(listener <-chan interfaces.ValueChangeEvent) {
	t.lock.Lock()
	changeCh, ok := t.valueChangeSubscriptions[listener]
	delete(t.valueChangeSubscriptions, listener)
	t.lock.Unlock()

	if ok {
		t.broadcaster.RemoveListener(changeCh)
	}
}

func runValueChangeListener(
	changeCh <-chan interfaces.ChangeEvent,
	valueCh chan<- interfaces.ValueChangeEvent,
	readValueFn func(key string, placeholder interface{}) interface{},
	key string,
	placeholder interface{},
	currentValue interface{},
) {
	for {
		change, ok := <-changeCh
		if !ok {
			// the underlying subscription has been unregistered
			close(valueCh)
			return
		}
		if change.Key != key {
			continue
		}
		newValue := readValueFn(key, placeholder)
		if reflect.DeepEqual(newValue, currentValue) {
			continue
		}
		event := interfaces.ValueChangeEvent{Key: key, OldValue: currentValue, NewValue: newValue}
		currentValue = newValue
		valueCh <- event
	}
}
