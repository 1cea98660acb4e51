package model

// Maybe holds a value that may be absent. It replaces nil-as-absence for
// data gaps and missing observations.
type Maybe[T any] struct {
	v  T
	ok bool
}

// Some wraps a present value.
func Some[T any](v T) Maybe[T] { return Maybe[T]{v: v, ok: true} }

// None returns an absent value.
func None[T any]() Maybe[T] { return Maybe[T]{} }

// Get returns the value and whether it is present.
func (m Maybe[T]) Get() (T, bool) { return m.v, m.ok }

// Present reports whether a value is held.
func (m Maybe[T]) Present() bool { return m.ok }

// OrElse returns the held value or def when absent.
func (m Maybe[T]) OrElse(def T) T {
	if m.ok {
		return m.v
	}
	return def
}
