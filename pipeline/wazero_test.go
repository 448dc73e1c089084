package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	jiterrors "github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/pipeline/wasmgen"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

func newTestAdapter(t *testing.T) *WazeroAdapter {
	t.Helper()
	ctx := context.Background()
	adapter, err := NewWazeroAdapter(ctx)
	if err != nil {
		t.Fatalf("NewWazeroAdapter error: %v", err)
	}
	t.Cleanup(func() {
		adapter.Close(ctx)
	})
	return adapter
}

func TestWazeroAdapter_CompileAndInvoke(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	tests := []struct {
		name   string
		fn     wasmgen.Func
		sig    *signature.Signature
		args   []any
		want   any
	}{
		{
			name: "i8 add",
			fn:   wasmgen.BinOp("add", wasmgen.I64, wasmgen.OpI64Add),
			sig:  signature.New("add", types.I8, types.I8, types.I8),
			args: []any{int64(2), int64(3)},
			want: int64(5),
		},
		{
			name: "f8 mul",
			fn:   wasmgen.BinOp("mul", wasmgen.F64, wasmgen.OpF64Mul),
			sig:  signature.New("mul", types.F8, types.F8, types.F8),
			args: []any{1.5, 4.0},
			want: 6.0,
		},
		{
			name: "i4 sub",
			fn:   wasmgen.BinOp("sub", wasmgen.I32, wasmgen.OpI32Sub),
			sig:  signature.New("sub", types.I4, types.I4, types.I4),
			args: []any{int32(10), int32(4)},
			want: int32(6),
		},
		{
			name: "f4 identity",
			fn:   wasmgen.Identity("id", wasmgen.F32),
			sig:  signature.New("id", types.F4, types.F4),
			args: []any{float32(2.5)},
			want: float32(2.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := &Declaration{Name: tt.fn.Name, Code: wasmgen.Emit(tt.fn)}
			artifact, err := adapter.Compile(ctx, decl, tt.sig, Options{})
			if err != nil {
				t.Fatalf("Compile error: %v", err)
			}
			defer artifact.Release(ctx)

			got, err := artifact.Wrapper.Invoke(ctx, tt.args...)
			if err != nil {
				t.Fatalf("Invoke error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Invoke = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestWazeroAdapter_EntryValidation(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	addI64 := wasmgen.Emit(wasmgen.BinOp("add", wasmgen.I64, wasmgen.OpI64Add))
	compilation := &jiterrors.Error{Phase: jiterrors.PhaseCompile, Kind: jiterrors.KindCompilation}

	t.Run("wasm type mismatch", func(t *testing.T) {
		decl := &Declaration{Name: "add", Code: addI64}
		sig := signature.New("add", types.I4, types.I4, types.I4)
		if _, err := adapter.Compile(ctx, decl, sig, Options{}); !errors.Is(err, compilation) {
			t.Errorf("err = %v, want compilation error", err)
		}
	})

	t.Run("missing entry point", func(t *testing.T) {
		decl := &Declaration{Name: "missing", Code: addI64}
		sig := signature.New("missing", types.I8, types.I8, types.I8)
		if _, err := adapter.Compile(ctx, decl, sig, Options{}); !errors.Is(err, compilation) {
			t.Errorf("err = %v, want compilation error", err)
		}
	})

	t.Run("export override", func(t *testing.T) {
		decl := &Declaration{Name: "renamed", Export: "add", Code: addI64}
		sig := signature.New("renamed", types.I8, types.I8, types.I8)
		artifact, err := adapter.Compile(ctx, decl, sig, Options{})
		if err != nil {
			t.Fatalf("Compile error: %v", err)
		}
		defer artifact.Release(ctx)
	})

	t.Run("invalid payload", func(t *testing.T) {
		decl := &Declaration{Name: "broken", Code: []byte{0xDE, 0xAD}}
		sig := signature.New("broken", types.I8, types.I8)
		if _, err := adapter.Compile(ctx, decl, sig, Options{}); !errors.Is(err, compilation) {
			t.Errorf("err = %v, want compilation error", err)
		}
	})

	t.Run("no payload", func(t *testing.T) {
		decl := &Declaration{Name: "empty"}
		sig := signature.New("empty", types.I8, types.I8)
		if _, err := adapter.Compile(ctx, decl, sig, Options{}); !errors.Is(err, compilation) {
			t.Errorf("err = %v, want compilation error", err)
		}
	})

	t.Run("template signature rejected", func(t *testing.T) {
		decl := &Declaration{Name: "add", Code: addI64}
		tpl, err := signature.Parse("T(T, T)")
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		_, err = adapter.Compile(ctx, decl, tpl, Options{})
		mismatch := &jiterrors.Error{Phase: jiterrors.PhaseCompile, Kind: jiterrors.KindSignatureMismatch}
		if !errors.Is(err, mismatch) {
			t.Errorf("err = %v, want signature_mismatch", err)
		}
	})
}

func TestWazeroAdapter_Lower(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	// Lower specializes the payload per signature: integer and float
	// signatures get different opcodes.
	lowered := 0
	decl := &Declaration{
		Name: "add",
		Lower: func(sig *signature.Signature) ([]byte, error) {
			lowered++
			if n, ok := sig.Return.(types.Numeric); ok && n.IsFloat() {
				return wasmgen.Emit(wasmgen.BinOp("add", wasmgen.F64, wasmgen.OpF64Add)), nil
			}
			return wasmgen.Emit(wasmgen.BinOp("add", wasmgen.I64, wasmgen.OpI64Add)), nil
		},
	}

	intArt, err := adapter.Compile(ctx, decl, signature.New("add", types.I8, types.I8, types.I8), Options{})
	if err != nil {
		t.Fatalf("Compile(i8) error: %v", err)
	}
	defer intArt.Release(ctx)

	floatArt, err := adapter.Compile(ctx, decl, signature.New("add", types.F8, types.F8, types.F8), Options{})
	if err != nil {
		t.Fatalf("Compile(f8) error: %v", err)
	}
	defer floatArt.Release(ctx)

	if lowered != 2 {
		t.Errorf("Lower called %d times, want 2", lowered)
	}

	got, err := floatArt.Wrapper.Invoke(ctx, 0.5, 0.25)
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if got != 0.75 {
		t.Errorf("Invoke = %v, want 0.75", got)
	}
}

func TestWazeroAdapter_InferTypes(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	t.Run("hint wins", func(t *testing.T) {
		decl := &Declaration{Name: "f", Returns: types.I8}
		sig, _, err := adapter.InferTypes(ctx, decl, types.F8, []types.Type{types.F8}, Options{})
		if err != nil {
			t.Fatalf("InferTypes error: %v", err)
		}
		if !types.Equal(sig.Return, types.F8) {
			t.Errorf("Return = %s, want f8", sig.Return)
		}
	})

	t.Run("annotation next", func(t *testing.T) {
		decl := &Declaration{Name: "f", Returns: types.I8}
		sig, _, err := adapter.InferTypes(ctx, decl, nil, []types.Type{types.F8}, Options{})
		if err != nil {
			t.Fatalf("InferTypes error: %v", err)
		}
		if !types.Equal(sig.Return, types.I8) {
			t.Errorf("Return = %s, want i8", sig.Return)
		}
	})

	t.Run("probed from payload", func(t *testing.T) {
		decl := &Declaration{
			Name: "mul",
			Code: wasmgen.Emit(wasmgen.BinOp("mul", wasmgen.F64, wasmgen.OpF64Mul)),
		}
		sig, _, err := adapter.InferTypes(ctx, decl, nil, []types.Type{types.F8, types.F8}, Options{})
		if err != nil {
			t.Fatalf("InferTypes error: %v", err)
		}
		if !types.Equal(sig.Return, types.F8) {
			t.Errorf("Return = %s, want f8", sig.Return)
		}
	})

	t.Run("constructor assignments resolve against argument types", func(t *testing.T) {
		decl := &Declaration{
			Name:     "init",
			ArgNames: []string{"self", "x", "y"},
			Returns:  types.Void,
			Assigns: []AttrAssign{
				{Attr: "x", Type: types.Var{Name: "x"}},
				{Attr: "y", Type: types.I4},
			},
		}
		argTypes := []types.Type{types.Object, types.F8, types.I4}
		_, symtab, err := adapter.InferTypes(ctx, decl, nil, argTypes, Options{})
		if err != nil {
			t.Fatalf("InferTypes error: %v", err)
		}
		if got, _ := symtab.Get("x"); !types.Equal(got, types.F8) {
			t.Errorf("x = %s, want f8", got)
		}
		if got, _ := symtab.Get("y"); !types.Equal(got, types.I4) {
			t.Errorf("y = %s, want i4", got)
		}
		names := symtab.Names()
		if len(names) != 2 || names[0] != "x" || names[1] != "y" {
			t.Errorf("Names = %v, want [x y]", names)
		}
	})

	t.Run("unresolvable assignment fails", func(t *testing.T) {
		decl := &Declaration{
			Name:     "init",
			ArgNames: []string{"self"},
			Returns:  types.Void,
			Assigns:  []AttrAssign{{Attr: "x", Type: types.Var{Name: "missing"}}},
		}
		_, _, err := adapter.InferTypes(ctx, decl, nil, []types.Type{types.Object}, Options{})
		mismatch := &jiterrors.Error{Phase: jiterrors.PhaseSignature, Kind: jiterrors.KindSignatureMismatch}
		if !errors.Is(err, mismatch) {
			t.Errorf("err = %v, want signature_mismatch", err)
		}
	})
}

func TestWazeroAdapter_Recompile(t *testing.T) {
	// Recompiling the same declaration and signature yields functionally
	// equivalent artifacts.
	ctx := context.Background()
	adapter := newTestAdapter(t)

	decl := &Declaration{Name: "add", Code: wasmgen.Emit(wasmgen.BinOp("add", wasmgen.I64, wasmgen.OpI64Add))}
	sig := signature.New("add", types.I8, types.I8, types.I8)

	first, err := adapter.Compile(ctx, decl, sig, Options{})
	if err != nil {
		t.Fatalf("first Compile error: %v", err)
	}
	defer first.Release(ctx)

	second, err := adapter.Compile(ctx, decl, sig, Options{})
	if err != nil {
		t.Fatalf("second Compile error: %v", err)
	}
	defer second.Release(ctx)

	a, err := first.Wrapper.Invoke(ctx, int64(7), int64(8))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	b, err := second.Wrapper.Invoke(ctx, int64(7), int64(8))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if a != b {
		t.Errorf("recompiled artifact disagrees: %v vs %v", a, b)
	}
}

func TestWazeroAdapter_ConcurrentInvokes(t *testing.T) {
	// One artifact shared across goroutines: every caller must get its
	// own result back, not a value from an interleaved call.
	ctx := context.Background()
	adapter := newTestAdapter(t)

	decl := &Declaration{Name: "id", Code: wasmgen.Emit(wasmgen.Identity("id", wasmgen.I64))}
	sig := signature.New("id", types.I8, types.I8)
	artifact, err := adapter.Compile(ctx, decl, sig, Options{})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	defer artifact.Release(ctx)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				want := int64(i*1000 + j)
				got, err := artifact.Wrapper.Invoke(ctx, want)
				if err != nil {
					t.Errorf("Invoke(%d) error: %v", want, err)
					return
				}
				if got != want {
					t.Errorf("Invoke(%d) = %v", want, got)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestWazeroInvoker_TypeChecks(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	decl := &Declaration{Name: "add", Code: wasmgen.Emit(wasmgen.BinOp("add", wasmgen.I64, wasmgen.OpI64Add))}
	sig := signature.New("add", types.I8, types.I8, types.I8)
	artifact, err := adapter.Compile(ctx, decl, sig, Options{})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	defer artifact.Release(ctx)

	t.Run("wrong value type", func(t *testing.T) {
		_, err := artifact.Wrapper.Invoke(ctx, "two", int64(3))
		mismatch := &jiterrors.Error{Phase: jiterrors.PhaseDispatch, Kind: jiterrors.KindTypeMismatch}
		if !errors.Is(err, mismatch) {
			t.Errorf("err = %v, want type_mismatch", err)
		}
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := artifact.Wrapper.Invoke(ctx, int64(1))
		arity := &jiterrors.Error{Phase: jiterrors.PhaseDispatch, Kind: jiterrors.KindArity}
		if !errors.Is(err, arity) {
			t.Errorf("err = %v, want arity error", err)
		}
	})
}
