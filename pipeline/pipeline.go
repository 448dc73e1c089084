// Package pipeline defines the boundary to the compilation pipeline: the
// external collaborator that lowers typed declarations to native
// artifacts. The core depends only on the Adapter interface; the
// wazero-backed adapter in this package is the production implementation,
// and the legacy bytecode adapter is a permanent failure stub.
package pipeline

import (
	"context"

	jitruntime "github.com/wippyai/jit-runtime"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// Declaration is the structured, front-end-extracted form of a
// source-level function. Parsing and AST extraction happen upstream; the
// pipeline only sees the lowered payload and the typed summary it needs.
type Declaration struct {
	// Name is the declared function name and the default entry symbol.
	Name string

	// ArgNames are the declared parameter names, used for locals
	// overrides and constructor attribute inference.
	ArgNames []string

	// Code is the lowered payload produced by the external code
	// generator for this declaration.
	Code []byte

	// Lower, when set, produces a payload specialized for one concrete
	// signature. It takes precedence over Code.
	Lower func(sig *signature.Signature) ([]byte, error)

	// Export overrides the entry symbol name inside the payload.
	Export string

	// Returns is an optional declared return type annotation.
	Returns types.Type

	// Assigns summarizes the declaration's attribute assignments, used
	// when the declaration is a class constructor. An assignment type may
	// be a type variable named after a parameter, which resolves to that
	// argument's concrete type during inference.
	Assigns []AttrAssign
}

// AttrAssign records one attribute assignment inside a constructor body
type AttrAssign struct {
	Type types.Type
	Attr string
}

// Entry returns the entry symbol name for the declaration's payload
func (d *Declaration) Entry() string {
	if d.Export != "" {
		return d.Export
	}
	return d.Name
}

// Options configures a single compilation
type Options struct {
	// ModuleName names the compiled module for diagnostics. Empty means
	// anonymous.
	ModuleName string
}

// Artifact is a compiled, type-concrete implementation of a callable for
// one signature. The specialization cache entry that stores it is its
// long-term owner; the module handle's lifetime exceeds every live use of
// the entry point.
type Artifact struct {
	// Signature is the concrete type contract the artifact was compiled
	// for.
	Signature *signature.Signature

	// Entry is the native entry point.
	Entry jitruntime.NativeFunc

	// Wrapper marshals host values through Entry.
	Wrapper jitruntime.Invoker

	// Module owns the compiled code's lifetime. Nil for adapters with no
	// module ownership.
	Module jitruntime.ModuleHandle
}

// Retain adds a reference to the owning module
func (a *Artifact) Retain() {
	if a.Module != nil {
		a.Module.Retain()
	}
}

// Release drops a reference to the owning module
func (a *Artifact) Release(ctx context.Context) error {
	if a.Module != nil {
		return a.Module.Release(ctx)
	}
	return nil
}

// Adapter is the compilation pipeline boundary. Compile must be
// referentially transparent given identical declaration, signature and
// options: recompiling yields functionally equivalent artifacts, though
// not necessarily identical addresses.
type Adapter interface {
	// Compile lowers a typed declaration to a native artifact. Fails with
	// a compilation error carrying the generator diagnostic.
	Compile(ctx context.Context, decl *Declaration, sig *signature.Signature, opts Options) (*Artifact, error)

	// InferTypes performs whole-body type inference without full
	// compilation: it establishes the concrete signature and the symbol
	// table of attribute assignments. Used by the extension type builder
	// before struct layout is fixed.
	InferTypes(ctx context.Context, decl *Declaration, retHint types.Type, argTypes []types.Type, opts Options) (*signature.Signature, *SymbolTable, error)
}

// SymbolTable is an insertion-ordered mapping of attribute names to their
// inferred or declared types.
type SymbolTable struct {
	types map[string]types.Type
	names []string
}

// NewSymbolTable creates an empty symbol table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{types: make(map[string]types.Type)}
}

// Set inserts or overwrites an entry. First insertion fixes the order.
func (st *SymbolTable) Set(name string, t types.Type) {
	if _, ok := st.types[name]; !ok {
		st.names = append(st.names, name)
	}
	st.types[name] = t
}

// Get returns the type for name
func (st *SymbolTable) Get(name string) (types.Type, bool) {
	t, ok := st.types[name]
	return t, ok
}

// Names returns the attribute names in insertion order
func (st *SymbolTable) Names() []string {
	return st.names
}

// Len returns the number of entries
func (st *SymbolTable) Len() int {
	return len(st.names)
}
