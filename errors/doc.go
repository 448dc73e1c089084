// Package errors provides structured error types for the jit-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: callable/class names, field path, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCompile, errors.KindCompilation).
//		Callable("add").
//		Detail("code generator rejected declaration").
//		Cause(diag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Arity(fnName, 2, 3)
//	err := errors.LayoutIncompatible(clsName, baseA, baseB)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
