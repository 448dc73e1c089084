// Package jitruntime provides a type-specializing compilation layer for a
// dynamic host language: it infers concrete types from observed call-site
// arguments, compiles type-specialized native implementations on demand,
// and caches them for reuse.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	jitruntime/          Root package with core NativeFunc and ModuleHandle interfaces
//	├── dispatch/        High-level API for registering and invoking callables
//	├── pipeline/        Compilation adapter boundary and the wazero-backed adapter
//	├── cache/           Per-callable specialization caches with at-most-once compiles
//	├── exttype/         Extension type builder: attribute structs, vtables, descriptors
//	├── signature/       Type signatures: structured, parsed, and inferred
//	├── types/           Closed semantic type set and runtime value mapping
//	├── errors/          Structured error types for debugging
//	└── cmd/jitrun/      CLI with one-shot and interactive modes
//
// # Quick Start
//
// Register a callable and invoke it; the first call with a new argument
// type combination compiles a specialization, later calls reuse it:
//
//	rt, err := dispatch.New(dispatch.Config{Adapter: adapter})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	fn, err := rt.Register(ctx, decl, dispatch.CallableOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := fn.Invoke(ctx, int64(2), int64(3))
//
// Class declarations are built into native-backed descriptors through
// dispatch.Runtime.BuildClass, which drives the exttype builder.
package jitruntime
