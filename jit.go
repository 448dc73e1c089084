package jitruntime

import "context"

// NativeFunc is a compiled native entry point. Arguments and results are
// flattened onto a uint64 stack in the compiled function's own encoding;
// callers marshal host values through the owning adapter.
type NativeFunc interface {
	// Call invokes the entry point. The returned slice is owned by the
	// caller and stays valid across later calls.
	Call(ctx context.Context, stack []uint64) ([]uint64, error)
}

// Invoker is the host-facing wrapper around a native entry point. It
// marshals host values into the entry point's encoding and the native
// result back to a host value.
type Invoker interface {
	Invoke(ctx context.Context, args ...any) (any, error)
}

// ModuleHandle owns the lifetime of a compiled module. Every NativeFunc
// derived from a handle is valid only while the handle is retained.
// The specialization cache holds the long-term reference; callers borrow
// for the duration of an invocation.
type ModuleHandle interface {
	// Retain increments the reference count.
	Retain()
	// Release decrements the reference count, closing the underlying
	// module when it reaches zero.
	Release(ctx context.Context) error
}
