package interfaces

// ChangeTracker is an interface for tracking changes to the shared state held by a hub.
//
// Obtain the tracker from Hub.Tracker(). Application code should not implement this
// interface.
type ChangeTracker interface {
	// AddChangeListener subscribes for notifications of changes to any key. The events only
	// say which key changed; use AddValueChangeListener to also receive the old and new
	// values for a specific key.
	AddChangeListener() <-chan ChangeEvent

	// RemoveChangeListener unsubscribes a channel that was returned by AddChangeListener and
	// closes it.
	RemoveChangeListener(listener <-chan ChangeEvent)

	// AddValueChangeListener subscribes for notifications of value changes for a single key.
	//
	// This is implemented on top of AddChangeListener: a change event for the key causes the
	// key to be re-read from the store, and an event is sent only if the value really changed.
	// The placeholder value is what the listener treats as the current value while the key
	// does not exist.
	AddValueChangeListener(key string, placeholder interface{}) <-chan ValueChangeEvent

	// RemoveValueChangeListener unsubscribes a channel that was returned by
	// AddValueChangeListener and closes it.
	RemoveValueChangeListener(listener <-chan ValueChangeEvent)
}

// ChangeEvent is a notification that some key in the hub's shared state has changed. It does
// not say what the new state is; a change event is also sent when a key is deleted.
type ChangeEvent struct {
	// Key is the key of the item that changed.
	Key string
}

// ValueChangeEvent is a notification that the value of a specific key has changed.
type ValueChangeEvent struct {
	// Key is the key of the item that changed.
	Key string

	// OldValue is the last known value before the change, or the subscription's placeholder
	// value if the key did not exist.
	OldValue interface{}

	// NewValue is the value after the change, or the placeholder value if the key was
	// deleted.
	NewValue interface{}
}
