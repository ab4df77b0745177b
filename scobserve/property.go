package scobserve

import "sync"

// Property is a named value belonging to an observable Object. Writes that change the value
// are published to the object's listeners as PropertyChange events.
type Property[T comparable] struct {
	owner       *Object
	name        string
	value       T
	interceptor func(T) T
	lock        sync.Mutex
}

// NewProperty registers a property on an object, holding the zero value of T.
func NewProperty[T comparable](owner *Object, name string) *Property[T] {
	return &Property[T]{owner: owner, name: name}
}

// NewPropertyWithInterceptor is like NewProperty, but every write passes through fn before
// being stored, in the manner of sccell interceptors.
func NewPropertyWithInterceptor[T comparable](owner *Object, name string, fn func(T) T) *Property[T] {
	return &Property[T]{owner: owner, name: name, interceptor: fn}
}

// Name returns the name the property was registered with.
func (p *Property[T]) Name() string {
	return p.name
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.lock.Lock()
	ret := p.value
	p.lock.Unlock()
	return ret
}

// Set stores a new value. The object's listeners are notified only if the stored value
// differs from the previous one.
func (p *Property[T]) Set(value T) {
	if p.interceptor != nil {
		value = p.interceptor(value)
	}

	p.lock.Lock()
	oldValue := p.value
	p.value = value
	p.lock.Unlock()

	if value != oldValue {
		p.owner.NotifyChanged(PropertyChange{Name: p.name, OldValue: oldValue, NewValue: value})
	}
}
