package types

import (
	"errors"
	"testing"

	jiterrors "github.com/wippyai/jit-runtime/errors"
)

func TestNumericString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Bool, "bool"},
		{I1, "i1"},
		{I2, "i2"},
		{I4, "i4"},
		{I8, "i8"},
		{U1, "u1"},
		{U2, "u2"},
		{U4, "u4"},
		{U8, "u8"},
		{F4, "f4"},
		{F8, "f8"},
		{Void, "void"},
		{Object, "object"},
		{Pointer{Elem: F8}, "*f8"},
		{Array{Elem: I4}, "i4[:]"},
		{FuncPtr{Return: F8, Args: []Type{F8, I4}}, "f8(*)(f8, i4)"},
		{Struct{Fields: []Field{{Name: "x", Type: F8}, {Name: "y", Type: I4}}}, "struct{x f8, y i4}"},
		{Var{Name: "T"}, "$T"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same numeric", I4, I4, true},
		{"different numeric", I4, I8, false},
		{"numeric vs object", I4, Object, false},
		{"pointers structural", Pointer{Elem: F8}, Pointer{Elem: F8}, true},
		{"pointers different elem", Pointer{Elem: F8}, Pointer{Elem: F4}, false},
		{"arrays structural", Array{Elem: I4}, Array{Elem: I4}, true},
		{
			"structs structural",
			Struct{Fields: []Field{{Name: "x", Type: F8}}},
			Struct{Fields: []Field{{Name: "x", Type: F8}}},
			true,
		},
		{
			"structs field name differs",
			Struct{Fields: []Field{{Name: "x", Type: F8}}},
			Struct{Fields: []Field{{Name: "y", Type: F8}}},
			false,
		},
		{
			"funcptrs structural",
			FuncPtr{Return: F8, Args: []Type{I4}},
			FuncPtr{Return: F8, Args: []Type{I4}},
			true,
		},
		{
			"funcptrs arity differs",
			FuncPtr{Return: F8, Args: []Type{I4}},
			FuncPtr{Return: F8, Args: []Type{I4, I4}},
			false,
		},
		{"vars by name", Var{Name: "T"}, Var{Name: "T"}, true},
		{"vars different name", Var{Name: "T"}, Var{Name: "U"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	type point struct {
		X float64
		Y int32
	}

	tests := []struct {
		name  string
		value any
		want  Type
	}{
		{"bool", true, Bool},
		{"int", 42, I8},
		{"int8", int8(1), I1},
		{"int16", int16(1), I2},
		{"int32", int32(1), I4},
		{"int64", int64(1), I8},
		{"uint8", uint8(1), U1},
		{"uint32", uint32(1), U4},
		{"uint64", uint64(1), U8},
		{"float32", float32(1.5), F4},
		{"float64", 1.5, F8},
		{"nil", nil, Object},
		{"string", "hello", Object},
		{"slice", []int32{1, 2}, Array{Elem: I4}},
		{"pointer", new(float64), Pointer{Elem: F8}},
		{
			"struct",
			point{},
			Struct{Fields: []Field{{Name: "X", Type: F8}, {Name: "Y", Type: I4}}},
		},
		{
			"func",
			func(a float64, b int32) float64 { return a },
			FuncPtr{Return: F8, Args: []Type{F8, I4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TypeOf(tt.value)
			if err != nil {
				t.Fatalf("TypeOf(%v) error: %v", tt.value, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("TypeOf(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestTypeOf_Unsupported(t *testing.T) {
	unsupported := []any{
		make(chan int),
		complex(1, 2),
		map[string]int{},
	}

	target := &jiterrors.Error{Phase: jiterrors.PhaseResolve, Kind: jiterrors.KindUnsupportedValue}
	for _, v := range unsupported {
		if _, err := TypeOf(v); !errors.Is(err, target) {
			t.Errorf("TypeOf(%T) = %v, want unsupported_value", v, err)
		}
	}
}

func TestUnify(t *testing.T) {
	t.Run("binds free variable", func(t *testing.T) {
		bindings := Bindings{}
		if err := Unify(Var{Name: "T"}, F8, bindings); err != nil {
			t.Fatalf("Unify error: %v", err)
		}
		if !Equal(bindings["T"], F8) {
			t.Errorf("T bound to %v, want f8", bindings["T"])
		}
	})

	t.Run("consistent rebinding", func(t *testing.T) {
		bindings := Bindings{}
		if err := Unify(Var{Name: "T"}, I4, bindings); err != nil {
			t.Fatalf("first Unify error: %v", err)
		}
		if err := Unify(Var{Name: "T"}, I4, bindings); err != nil {
			t.Errorf("same binding should unify: %v", err)
		}
	})

	t.Run("contradictory binding fails", func(t *testing.T) {
		bindings := Bindings{}
		if err := Unify(Var{Name: "T"}, I4, bindings); err != nil {
			t.Fatalf("first Unify error: %v", err)
		}
		err := Unify(Var{Name: "T"}, F8, bindings)
		target := &jiterrors.Error{Phase: jiterrors.PhaseSignature, Kind: jiterrors.KindSignatureMismatch}
		if !errors.Is(err, target) {
			t.Errorf("contradictory binding = %v, want signature_mismatch", err)
		}
	})

	t.Run("unifies through containers", func(t *testing.T) {
		bindings := Bindings{}
		err := Unify(Array{Elem: Var{Name: "T"}}, Array{Elem: I8}, bindings)
		if err != nil {
			t.Fatalf("Unify error: %v", err)
		}
		if !Equal(bindings["T"], I8) {
			t.Errorf("T bound to %v, want i8", bindings["T"])
		}
	})

	t.Run("structure mismatch fails", func(t *testing.T) {
		bindings := Bindings{}
		err := Unify(Pointer{Elem: Var{Name: "T"}}, I4, bindings)
		if err == nil {
			t.Error("pointer pattern should not unify with scalar")
		}
	})
}

func TestSubstitute(t *testing.T) {
	bindings := Bindings{"T": F8}

	got := Substitute(Array{Elem: Var{Name: "T"}}, bindings)
	if !Equal(got, Array{Elem: F8}) {
		t.Errorf("Substitute = %s, want f8[:]", got)
	}

	unbound := Substitute(Var{Name: "U"}, bindings)
	if !Equal(unbound, Var{Name: "U"}) {
		t.Errorf("unbound variable should be left in place, got %s", unbound)
	}
}

func TestHasVar(t *testing.T) {
	if !HasVar(FuncPtr{Return: Var{Name: "T"}, Args: []Type{I4}}) {
		t.Error("HasVar should find variable in return position")
	}
	if HasVar(FuncPtr{Return: F8, Args: []Type{I4}}) {
		t.Error("HasVar should be false for concrete type")
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"bool", "i1", "i2", "i4", "i8", "u1", "u2", "u4", "u8", "f4", "f8", "void", "object"} {
		typ, ok := ByName(name)
		if !ok {
			t.Errorf("ByName(%q) not found", name)
			continue
		}
		if typ.String() != name {
			t.Errorf("ByName(%q).String() = %q", name, typ.String())
		}
	}
	if _, ok := ByName("i16"); ok {
		t.Error("ByName should reject unknown names")
	}
}
