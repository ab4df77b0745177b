// Package scobserve provides observable objects: objects that notify channel subscribers
// when designated properties change.
//
// The usual pattern is to embed Object in a struct and declare each observed field as a
// Property:
//
//	type Settings struct {
//	    scobserve.Object
//	    Volume *scobserve.Property[int]
//	}
//
//	func NewSettings() *Settings {
//	    s := &Settings{}
//	    s.Volume = scobserve.NewProperty[int](&s.Object, "volume")
//	    return s
//	}
//
// Subscribers obtained from AddListener receive one PropertyChange per effective property
// write, for all properties of the object.
package scobserve

import (
	"github.com/statecell/go-statecell/internal"
)

// PropertyChange is the event type delivered to an observable object's listeners.
type PropertyChange struct {
	// Name is the name the property was registered with.
	Name string

	// OldValue is the property's value before the change.
	OldValue interface{}

	// NewValue is the property's value after the change.
	NewValue interface{}
}

// Object is the embeddable base of an observable object. The zero value is ready to use.
type Object struct {
	broadcaster internal.LazyBroadcaster[PropertyChange]
}

// AddListener adds a subscriber that receives a PropertyChange for every effective change of
// any of the object's properties.
func (o *Object) AddListener() <-chan PropertyChange {
	return o.broadcaster.Get().AddListener()
}

// RemoveListener unsubscribes a channel that was returned by AddListener and closes it.
func (o *Object) RemoveListener(listener <-chan PropertyChange) {
	o.broadcaster.Get().RemoveListener(listener)
}

// HasListeners returns true if there are any current subscribers.
func (o *Object) HasListeners() bool {
	return o.broadcaster.Get().HasListeners()
}

// Close closes all listener channels.
func (o *Object) Close() {
	o.broadcaster.Get().Close()
}

// NotifyChanged broadcasts a change notification to all subscribers. Property calls this
// automatically; it only needs to be called directly for state that isn't represented as a
// Property.
func (o *Object) NotifyChanged(change PropertyChange) {
	o.broadcaster.Get().Broadcast(change)
}
