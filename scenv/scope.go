// Package scenv provides environment scopes: a way to make shared objects implicitly
// available to a whole subtree of components without passing them as explicit parameters.
//
// A Scope holds at most one instance per Go type. Lookups walk up the parent chain, so an
// object installed on a root scope is visible from every descendant, and a child scope can
// shadow it with its own instance:
//
//	root := scenv.NewScope()
//	scenv.Install(root, &ThemeStore{})
//
//	child := root.Child()
//	theme, ok := scenv.Shared[*ThemeStore](child) // finds the root's instance
//
// Installation is permanent for the life of the scope; there is no removal. Scopes are safe
// for concurrent use.
package scenv

import (
	"reflect"
	"sync"
)

// Scope is one level of an environment hierarchy. Create the root with NewScope and
// descendants with Child.
type Scope struct {
	parent *Scope
	values map[reflect.Type]interface{}
	lock   sync.RWMutex
}

// NewScope creates a root scope with no parent.
func NewScope() *Scope {
	return &Scope{values: make(map[reflect.Type]interface{})}
}

// Child creates a scope nested inside this one. Lookups in the child fall back to this scope
// (and transitively to its ancestors) for types the child does not define itself.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, values: make(map[reflect.Type]interface{})}
}

// Install makes value available from scope and all of its descendants, keyed by the static
// type T. Installing a second value of the same type on the same scope replaces the first;
// installing on a child scope shadows an ancestor's value without affecting other subtrees.
func Install[T any](scope *Scope, value T) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	scope.lock.Lock()
	scope.values[key] = value
	scope.lock.Unlock()
}

// Shared retrieves the nearest installed value of type T, walking from scope up through its
// ancestors. The second return value is false if no scope in the chain has one.
func Shared[T any](scope *Scope) (T, bool) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	for s := scope; s != nil; s = s.parent {
		s.lock.RLock()
		value, ok := s.values[key]
		s.lock.RUnlock()
		if ok {
			return value.(T), true
		}
	}
	var zero T
	return zero, false
}

// MustShared is like Shared but panics if no value of type T is installed. Use it for
// objects that the surrounding code guarantees to have installed.
func MustShared[T any](scope *Scope) T {
	value, ok := Shared[T](scope)
	if !ok {
		panic("scenv: no value of requested type installed in scope chain")
	}
	return value
}
