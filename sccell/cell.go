package sccell

import (
	"sync"

	"golang.org/x/exp/constraints"

	"github.com/statecell/go-statecell/internal"
)

// Interceptor is a transformation applied to every value written to a cell, before it is
// stored. When a cell has multiple interceptors they are applied in the order given.
type Interceptor[T any] func(T) T

// ClampedMax returns an interceptor that limits stored values to the given maximum. Writing
// a value greater than max stores max; any other value is stored unchanged.
func ClampedMax[T constraints.Ordered](max T) Interceptor[T] {
	return func(value T) T {
		if value > max {
			return max
		}
		return value
	}
}

// ClampedMin is the counterpart of ClampedMax for a lower bound.
func ClampedMin[T constraints.Ordered](min T) Interceptor[T] {
	return func(value T) T {
		if value < min {
			return min
		}
		return value
	}
}

// ValueChange is the event type delivered to cell listeners.
type ValueChange[T any] struct {
	OldValue T
	NewValue T
}

// CellOption is a configuration option for New.
type CellOption[T comparable] interface {
	apply(c *Cell[T])
}

type initialValueOption[T comparable] struct{ value T }

func (o initialValueOption[T]) apply(c *Cell[T]) {
	c.value = c.intercept(o.value)
}

// WithInitialValue specifies the value a cell holds before the first Set. Without this
// option, a fresh cell holds the zero value of its type. Interceptors apply to the initial
// value too, so an out-of-range initial value is corrected just like a written one.
func WithInitialValue[T comparable](value T) CellOption[T] {
	return initialValueOption[T]{value}
}

type interceptorOption[T comparable] struct{ fn Interceptor[T] }

func (o interceptorOption[T]) apply(c *Cell[T]) {
	c.interceptors = append(c.interceptors, o.fn)
}

// WithInterceptor adds an interceptor to the cell. Options are applied in order, so an
// initial value given after the interceptor is subject to it.
func WithInterceptor[T comparable](fn Interceptor[T]) CellOption[T] {
	return interceptorOption[T]{fn}
}

// Cell is a single mutable value with thread-safe access, write interception, and change
// notification. The zero value is not usable; cells are created with New.
type Cell[T comparable] struct {
	value        T
	interceptors []Interceptor[T]
	broadcaster  *internal.Broadcaster[ValueChange[T]]
	lock         sync.Mutex
}

// New creates a Cell. With no options, the cell holds the zero value of T and stores writes
// unmodified.
func New[T comparable](options ...CellOption[T]) *Cell[T] {
	c := &Cell[T]{broadcaster: internal.NewBroadcaster[ValueChange[T]]()}
	for _, o := range options {
		o.apply(c)
	}
	return c
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.lock.Lock()
	ret := c.value
	c.lock.Unlock()
	return ret
}

// Set stores a new value, after passing it through the cell's interceptors. Listeners are
// notified only if the stored value differs from the previous one, so re-setting an
// equivalent value is a no-op.
func (c *Cell[T]) Set(value T) {
	c.Update(func(T) T { return value })
}

// Update atomically replaces the value with the result of applying fn to the current value.
// The interceptors and notification rules are the same as for Set. fn must not call back
// into the cell.
func (c *Cell[T]) Update(fn func(T) T) {
	c.lock.Lock()
	oldValue := c.value
	newValue := c.intercept(fn(oldValue))
	c.value = newValue
	c.lock.Unlock()

	if newValue != oldValue {
		c.broadcaster.Broadcast(ValueChange[T]{OldValue: oldValue, NewValue: newValue})
	}
}

// AddListener adds a subscriber that receives a ValueChange for every effective change.
func (c *Cell[T]) AddListener() <-chan ValueChange[T] {
	return c.broadcaster.AddListener()
}

// RemoveListener unsubscribes a channel that was returned by AddListener and closes it.
func (c *Cell[T]) RemoveListener(listener <-chan ValueChange[T]) {
	c.broadcaster.RemoveListener(listener)
}

// Binding returns a two-way reference to the cell's value.
func (c *Cell[T]) Binding() Binding[T] {
	return MakeBinding(c.Get, c.Set)
}

// Close closes all listener channels. The cell itself remains readable and writable.
func (c *Cell[T]) Close() {
	c.broadcaster.Close()
}

func (c *Cell[T]) intercept(value T) T {
	for _, fn := range c.interceptors {
		value = fn(value)
	}
	return value
}
