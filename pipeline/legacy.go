package pipeline

import (
	"context"

	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// LegacyAdapter is the removed bytecode translation backend. It is kept
// only to signal API compatibility: every operation fails permanently.
// It is not a runtime fallback.
type LegacyAdapter struct{}

// Compile implements Adapter by failing unconditionally
func (LegacyAdapter) Compile(ctx context.Context, decl *Declaration, sig *signature.Signature, opts Options) (*Artifact, error) {
	return nil, errors.Unsupported(errors.PhaseCompile,
		"bytecode translation backend has been removed")
}

// InferTypes implements Adapter by failing unconditionally
func (LegacyAdapter) InferTypes(ctx context.Context, decl *Declaration, retHint types.Type, argTypes []types.Type, opts Options) (*signature.Signature, *SymbolTable, error) {
	return nil, nil, errors.Unsupported(errors.PhaseCompile,
		"bytecode translation backend has been removed")
}

// Compile-time check that LegacyAdapter implements Adapter
var _ Adapter = LegacyAdapter{}
