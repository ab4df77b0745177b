package sccell

// Binding is a two-way reference to a value owned elsewhere. Reading and writing a binding
// reads and writes the underlying storage, wherever that is: a Cell, a struct field, or a
// derived projection of another binding.
//
// Bindings are values; copying one copies the reference, not the data.
type Binding[T any] struct {
	get func() T
	set func(T)
}

// MakeBinding creates a Binding from a getter and a setter.
func MakeBinding[T any](get func() T, set func(T)) Binding[T] {
	return Binding[T]{get: get, set: set}
}

// ConstantBinding creates a read-only Binding that always produces the given value and
// ignores writes. It is useful as a placeholder, such as in tests of components that take a
// binding but aren't expected to write to it.
func ConstantBinding[T any](value T) Binding[T] {
	return Binding[T]{
		get: func() T { return value },
		set: func(T) {},
	}
}

// VarBinding creates a Binding directly to a variable via its pointer. The binding performs
// no locking; use a Cell instead if the value is accessed from multiple goroutines.
func VarBinding[T any](p *T) Binding[T] {
	return Binding[T]{
		get: func() T { return *p },
		set: func(value T) { *p = value },
	}
}

// Get reads the current value from the binding's owner.
func (b Binding[T]) Get() T {
	return b.get()
}

// Set writes a value through to the binding's owner. Any interceptors belonging to the owner
// apply as usual.
func (b Binding[T]) Set(value T) {
	b.set(value)
}

// MapBinding derives a binding of a different type from an existing one. Reads apply "from"
// to the source value; writes apply "to" and then store the result in the source.
//
// The two transforms should be inverses of each other where it matters; otherwise a write
// followed by a read may not round-trip.
func MapBinding[T, U any](source Binding[T], from func(T) U, to func(U) T) Binding[U] {
	return Binding[U]{
		get: func() U { return from(source.get()) },
		set: func(value U) { source.set(to(value)) },
	}
}
