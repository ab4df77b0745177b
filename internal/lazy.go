package internal

import "sync"

// LazyBroadcaster wraps a Broadcaster so that a zero value is usable: the underlying
// broadcaster is allocated on first access. This lets types embed a broadcaster without
// needing a constructor.
type LazyBroadcaster[V any] struct {
	once sync.Once
	b    *Broadcaster[V]
}

// Get returns the underlying broadcaster, allocating it if necessary.
func (l *LazyBroadcaster[V]) Get() *Broadcaster[V] {
	l.once.Do(func() {
		l.b = NewBroadcaster[V]()
	})
	return l.b
}
