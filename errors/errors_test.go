package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseClass,
				Kind:     KindTypeMismatch,
				Class:    "Point",
				Path:     []string{"x"},
				Detail:   "cannot store object into field of type f8",
			},
			contains: []string{"[class]", "type_mismatch", "Point", "x", "cannot store"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDispatch,
				Kind:  KindArity,
			},
			contains: []string{"[dispatch]", "arity"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseCompile,
				Kind:   KindCompilation,
				Detail: "code generation failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[compile]", "compilation", "code generation failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCompile,
		Kind:  KindCompilation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:    PhaseDispatch,
		Kind:     KindArity,
		Callable: "add",
	}

	if !err.Is(&Error{Phase: PhaseDispatch, Kind: KindArity}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseClass, Kind: KindArity}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDispatch, Kind: KindKeywordArgs}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDispatch, Kind: KindArity}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseClass, KindDuplicateMethod).
		Class("Shape").
		Path("area").
		Value(2).
		Cause(cause).
		Detail("annotated %d times", 2).
		Build()

	if err.Phase != PhaseClass {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseClass)
	}
	if err.Kind != KindDuplicateMethod {
		t.Errorf("Kind = %v, want %v", err.Kind, KindDuplicateMethod)
	}
	if err.Class != "Shape" {
		t.Errorf("Class = %v, want Shape", err.Class)
	}
	if len(err.Path) != 1 || err.Path[0] != "area" {
		t.Errorf("Path = %v, want [area]", err.Path)
	}
	if err.Value != 2 {
		t.Errorf("Value = %v, want 2", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "annotated 2 times" {
		t.Errorf("Detail = %v, want 'annotated 2 times'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Arity", func(t *testing.T) {
		err := Arity("add", 2, 3)
		if err.Kind != KindArity {
			t.Errorf("Kind = %v, want %v", err.Kind, KindArity)
		}
		if !strings.Contains(err.Error(), "takes exactly 2 arguments (3 given)") {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("Arity singular", func(t *testing.T) {
		err := Arity("neg", 1, 0)
		if !strings.Contains(err.Error(), "takes exactly 1 argument (0 given)") {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("KeywordArgs", func(t *testing.T) {
		err := KeywordArgs("add", []string{"x", "y"})
		if err.Kind != KindKeywordArgs {
			t.Errorf("Kind = %v, want %v", err.Kind, KindKeywordArgs)
		}
		if !strings.Contains(err.Detail, "x, y") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("UnsupportedValue", func(t *testing.T) {
		err := UnsupportedValue(make(chan int))
		if err.Kind != KindUnsupportedValue {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupportedValue)
		}
	})

	t.Run("Syntax", func(t *testing.T) {
		err := Syntax("f8(f8", 5, "unbalanced parenthesis")
		if err.Kind != KindSyntax {
			t.Errorf("Kind = %v, want %v", err.Kind, KindSyntax)
		}
		if !strings.Contains(err.Detail, "offset 5") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Compilation", func(t *testing.T) {
		diag := errors.New("invalid opcode")
		err := Compilation("add", diag)
		if err.Kind != KindCompilation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCompilation)
		}
		if !errors.Is(err, &Error{Phase: PhaseCompile, Kind: KindCompilation}) {
			t.Error("errors.Is should match compilation errors")
		}
		if !strings.Contains(err.Error(), "invalid opcode") {
			t.Errorf("diagnostic not carried: %q", err.Error())
		}
	})

	t.Run("LayoutIncompatible", func(t *testing.T) {
		err := LayoutIncompatible("C", "A", "B")
		if err.Kind != KindLayoutIncompatible {
			t.Errorf("Kind = %v, want %v", err.Kind, KindLayoutIncompatible)
		}
		msg := err.Error()
		if !strings.Contains(msg, "A") || !strings.Contains(msg, "B") {
			t.Errorf("conflicting base pair not named: %q", msg)
		}
	})

	t.Run("InheritedMissing", func(t *testing.T) {
		err := InheritedMissing("Child", "area")
		if err.Kind != KindInheritedMissing {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInheritedMissing)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch("Point", []string{"x"}, "f8", "object")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if !strings.Contains(err.Detail, "f8") || !strings.Contains(err.Detail, "object") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseDispatch, "callable", "mul")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseCompile, "bytecode backend has been removed")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})
}
