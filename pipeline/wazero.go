package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// WazeroAdapter compiles declaration payloads to native code through the
// wazero runtime. The payload is the wasm binary the external code
// generator produced for the declaration; the adapter compiles and
// instantiates it and binds the exported entry point to the requested
// semantic signature.
type WazeroAdapter struct {
	runtime wazero.Runtime
}

// Config holds configuration for adapter creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per compiled module in
	// pages (64KB each). 0 means the wazero default.
	MemoryLimitPages uint32
}

// NewWazeroAdapter creates a wazero-backed pipeline adapter
func NewWazeroAdapter(ctx context.Context) (*WazeroAdapter, error) {
	return NewWazeroAdapterWithConfig(ctx, nil)
}

// NewWazeroAdapterWithConfig creates an adapter with custom configuration
func NewWazeroAdapterWithConfig(ctx context.Context, cfg *Config) (*WazeroAdapter, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &WazeroAdapter{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}, nil
}

// Close releases the adapter and every module compiled through it.
// All artifacts must be released before calling this.
func (a *WazeroAdapter) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

// Compile implements Adapter
func (a *WazeroAdapter) Compile(ctx context.Context, decl *Declaration, sig *signature.Signature, opts Options) (*Artifact, error) {
	if sig.IsTemplate() {
		return nil, errors.New(errors.PhaseCompile, errors.KindSignatureMismatch).
			Callable(decl.Name).
			Detail("template signature %s cannot be compiled", sig).
			Build()
	}

	code, err := a.payload(decl, sig)
	if err != nil {
		return nil, err
	}

	paramVT, resultVT, err := flattenSignature(decl.Name, sig)
	if err != nil {
		return nil, err
	}

	compiled, err := a.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.Compilation(decl.Name, err)
	}

	mod, err := a.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(opts.ModuleName))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Compilation(decl.Name, err)
	}

	entry := decl.Entry()
	fn := mod.ExportedFunction(entry)
	if fn == nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, errors.Compilation(decl.Name,
			errors.NotFound(errors.PhaseCompile, "entry point", entry))
	}

	if err := validateEntry(decl.Name, fn.Definition(), paramVT, resultVT); err != nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, err
	}

	handle := &moduleHandle{mod: mod, compiled: compiled}
	handle.refs.Store(1)

	native := newWazeroFunc(fn, len(paramVT), len(resultVT))

	Logger().Debug("compiled specialization",
		zap.String("callable", decl.Name),
		zap.String("signature", sig.Key()))

	return &Artifact{
		Signature: sig,
		Entry:     native,
		Wrapper:   &wazeroInvoker{fn: native, sig: sig},
		Module:    handle,
	}, nil
}

// InferTypes implements Adapter. The signature is established from the
// hint, the declaration annotation, or the payload's own wasm-level
// result types, in that order. The symbol table resolves constructor
// attribute assignments against the concrete argument types.
func (a *WazeroAdapter) InferTypes(ctx context.Context, decl *Declaration, retHint types.Type, argTypes []types.Type, opts Options) (*signature.Signature, *SymbolTable, error) {
	ret := retHint
	if ret == nil {
		ret = decl.Returns
	}
	if ret == nil {
		probed, err := a.probeReturn(ctx, decl, argTypes)
		if err != nil {
			return nil, nil, err
		}
		ret = probed
	}

	bindings := types.Bindings{}
	for i, name := range decl.ArgNames {
		if i < len(argTypes) {
			bindings[name] = argTypes[i]
		}
	}

	symtab := NewSymbolTable()
	for _, assign := range decl.Assigns {
		t := types.Substitute(assign.Type, bindings)
		if types.HasVar(t) {
			return nil, nil, errors.SignatureMismatch(
				"attribute %s type %s not determined by argument types", assign.Attr, assign.Type)
		}
		symtab.Set(assign.Attr, t)
	}

	return signature.New(decl.Name, ret, argTypes...), symtab, nil
}

// payload selects the declaration's lowered code for a signature
func (a *WazeroAdapter) payload(decl *Declaration, sig *signature.Signature) ([]byte, error) {
	if decl.Lower != nil {
		code, err := decl.Lower(sig)
		if err != nil {
			return nil, errors.Compilation(decl.Name, err)
		}
		return code, nil
	}
	if len(decl.Code) == 0 {
		return nil, errors.Compilation(decl.Name,
			errors.New(errors.PhaseCompile, errors.KindNotFound).
				Detail("declaration has no lowered code").Build())
	}
	return decl.Code, nil
}

// probeReturn compiles the payload without instantiation and derives the
// semantic return type from the entry point's wasm-level result types.
func (a *WazeroAdapter) probeReturn(ctx context.Context, decl *Declaration, argTypes []types.Type) (types.Type, error) {
	provisional := signature.New(decl.Name, types.Void, argTypes...)
	code, err := a.payload(decl, provisional)
	if err != nil {
		return nil, err
	}

	compiled, err := a.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.Compilation(decl.Name, err)
	}
	defer compiled.Close(ctx)

	def, ok := compiled.ExportedFunctions()[decl.Entry()]
	if !ok {
		return nil, errors.Compilation(decl.Name,
			errors.NotFound(errors.PhaseCompile, "entry point", decl.Entry()))
	}

	results := def.ResultTypes()
	switch len(results) {
	case 0:
		return types.Void, nil
	case 1:
		return semanticOf(results[0])
	}
	return nil, errors.Compilation(decl.Name,
		errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Detail("entry point returns %d values", len(results)).Build())
}

// flattenSignature maps a semantic signature to wasm-level value types
func flattenSignature(callable string, sig *signature.Signature) (params, results []api.ValueType, err error) {
	params = make([]api.ValueType, len(sig.Args))
	for i, t := range sig.Args {
		vt, err := flattenType(t)
		if err != nil {
			return nil, nil, errors.Wrap(errors.PhaseCompile, errors.KindUnsupported, err,
				"argument type "+t.String()+" in "+callable)
		}
		params[i] = vt
	}

	if _, ok := sig.Return.(types.VoidType); !ok {
		vt, err := flattenType(sig.Return)
		if err != nil {
			return nil, nil, errors.Wrap(errors.PhaseCompile, errors.KindUnsupported, err,
				"return type "+sig.Return.String()+" in "+callable)
		}
		results = []api.ValueType{vt}
	}
	return params, results, nil
}

func flattenType(t types.Type) (api.ValueType, error) {
	switch tt := t.(type) {
	case types.Numeric:
		switch tt {
		case types.Bool, types.I1, types.I2, types.I4, types.U1, types.U2, types.U4:
			return api.ValueTypeI32, nil
		case types.I8, types.U8:
			return api.ValueTypeI64, nil
		case types.F4:
			return api.ValueTypeF32, nil
		case types.F8:
			return api.ValueTypeF64, nil
		}
	case types.Pointer, types.Array:
		// Addresses in linear memory.
		return api.ValueTypeI32, nil
	}
	return 0, errors.Unsupported(errors.PhaseCompile,
		"type "+t.String()+" has no native value representation")
}

// semanticOf maps a wasm value type back to the default semantic type
func semanticOf(vt api.ValueType) (types.Type, error) {
	switch vt {
	case api.ValueTypeI32:
		return types.I4, nil
	case api.ValueTypeI64:
		return types.I8, nil
	case api.ValueTypeF32:
		return types.F4, nil
	case api.ValueTypeF64:
		return types.F8, nil
	}
	return nil, errors.Unsupported(errors.PhaseCompile, "wasm value type has no semantic mapping")
}

func validateEntry(callable string, def api.FunctionDefinition, params, results []api.ValueType) error {
	got := def.ParamTypes()
	if len(got) != len(params) {
		return errors.Compilation(callable,
			errors.SignatureMismatch("entry point takes %d values, signature has %d", len(got), len(params)))
	}
	for i := range got {
		if got[i] != params[i] {
			return errors.Compilation(callable,
				errors.SignatureMismatch("entry point parameter %d has wasm type %s", i, api.ValueTypeName(got[i])))
		}
	}

	gotResults := def.ResultTypes()
	if len(gotResults) != len(results) {
		return errors.Compilation(callable,
			errors.SignatureMismatch("entry point returns %d values, signature has %d", len(gotResults), len(results)))
	}
	for i := range gotResults {
		if gotResults[i] != results[i] {
			return errors.Compilation(callable,
				errors.SignatureMismatch("entry point result has wasm type %s", api.ValueTypeName(gotResults[i])))
		}
	}
	return nil
}

// moduleHandle owns one compiled and instantiated module
type moduleHandle struct {
	mod      api.Module
	compiled wazero.CompiledModule
	refs     atomic.Int32
}

func (h *moduleHandle) Retain() {
	h.refs.Add(1)
}

func (h *moduleHandle) Release(ctx context.Context) error {
	if h.refs.Add(-1) != 0 {
		return nil
	}
	var firstErr error
	if h.mod != nil {
		if err := h.mod.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if h.compiled != nil {
		if err := h.compiled.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// wazeroFunc adapts an exported wazero function to the NativeFunc stack
// calling convention.
// It is safe for concurrent use; calls are serialized on an internal
// stack buffer.
type wazeroFunc struct {
	fn       api.Function
	buf      []uint64
	nresults int
	mu       sync.Mutex
}

func newWazeroFunc(fn api.Function, nparams, nresults int) *wazeroFunc {
	size := nparams
	if nresults > size {
		size = nresults
	}
	if size == 0 {
		size = 1
	}
	return &wazeroFunc{fn: fn, buf: make([]uint64, size), nresults: nresults}
}

func (f *wazeroFunc) Call(ctx context.Context, stack []uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copy(f.buf, stack)
	if err := f.fn.CallWithStack(ctx, f.buf); err != nil {
		return nil, err
	}
	// Copy out before unlocking; the next call reuses the buffer.
	results := make([]uint64, f.nresults)
	copy(results, f.buf[:f.nresults])
	return results, nil
}

// wazeroInvoker marshals host values through a native entry point
type wazeroInvoker struct {
	fn  *wazeroFunc
	sig *signature.Signature
}

func (w *wazeroInvoker) Invoke(ctx context.Context, args ...any) (any, error) {
	if len(args) != len(w.sig.Args) {
		return nil, errors.Arity(w.sig.Name, len(w.sig.Args), len(args))
	}

	stack := make([]uint64, len(args))
	for i, arg := range args {
		raw, err := encodeValue(w.sig.Args[i], arg)
		if err != nil {
			return nil, err
		}
		stack[i] = raw
	}

	results, err := w.fn.Call(ctx, stack)
	if err != nil {
		return nil, err
	}

	if _, ok := w.sig.Return.(types.VoidType); ok {
		return nil, nil
	}
	return decodeValue(w.sig.Return, results[0])
}

// encodeValue lowers a host value to its flat stack representation
func encodeValue(t types.Type, v any) (uint64, error) {
	switch tt := t.(type) {
	case types.Numeric:
		switch tt {
		case types.Bool:
			b, ok := v.(bool)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			if b {
				return 1, nil
			}
			return 0, nil
		case types.F4:
			f, ok := asFloat(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return api.EncodeF32(float32(f)), nil
		case types.F8:
			f, ok := asFloat(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return api.EncodeF64(f), nil
		case types.I1, types.I2, types.I4:
			n, ok := asInt(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return api.EncodeI32(int32(n)), nil
		case types.I8:
			n, ok := asInt(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return api.EncodeI64(n), nil
		case types.U1, types.U2, types.U4:
			n, ok := asUint(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return uint64(uint32(n)), nil
		case types.U8:
			n, ok := asUint(v)
			if !ok {
				return 0, encodeMismatch(t, v)
			}
			return n, nil
		}
	case types.Pointer, types.Array:
		n, ok := asUint(v)
		if !ok {
			return 0, encodeMismatch(t, v)
		}
		return uint64(uint32(n)), nil
	}
	return 0, encodeMismatch(t, v)
}

// decodeValue lifts a flat stack value back to a host value
func decodeValue(t types.Type, raw uint64) (any, error) {
	switch tt := t.(type) {
	case types.Numeric:
		switch tt {
		case types.Bool:
			return raw != 0, nil
		case types.I1:
			return int8(api.DecodeI32(raw)), nil
		case types.I2:
			return int16(api.DecodeI32(raw)), nil
		case types.I4:
			return api.DecodeI32(raw), nil
		case types.I8:
			return int64(raw), nil
		case types.U1:
			return uint8(raw), nil
		case types.U2:
			return uint16(raw), nil
		case types.U4:
			return uint32(raw), nil
		case types.U8:
			return raw, nil
		case types.F4:
			return api.DecodeF32(raw), nil
		case types.F8:
			return api.DecodeF64(raw), nil
		}
	case types.Pointer, types.Array:
		return uint32(raw), nil
	}
	return nil, errors.Unsupported(errors.PhaseDispatch, "cannot decode result of type "+t.String())
}

func encodeMismatch(t types.Type, v any) error {
	return errors.New(errors.PhaseDispatch, errors.KindTypeMismatch).
		Detail("cannot pass %T as %s", v, t).
		Value(v).
		Build()
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uintptr:
		return uint64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// Compile-time check that WazeroAdapter implements Adapter
var _ Adapter = (*WazeroAdapter)(nil)
