package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve    Phase = "resolve"    // runtime value to semantic type mapping
	PhaseSignature  Phase = "signature"  // signature construction and parsing
	PhaseSpecialize Phase = "specialize" // specialization cache operations
	PhaseCompile    Phase = "compile"    // pipeline adapter compilation
	PhaseClass      Phase = "class"      // extension type building
	PhaseVerify     Phase = "verify"     // inheritance layout verification
	PhaseDispatch   Phase = "dispatch"   // call entry points
)

// Kind categorizes the error
type Kind string

const (
	KindArity              Kind = "arity"
	KindKeywordArgs        Kind = "keyword_args"
	KindUnsupportedValue   Kind = "unsupported_value"
	KindSignatureMismatch  Kind = "signature_mismatch"
	KindSyntax             Kind = "syntax"
	KindCompilation        Kind = "compilation"
	KindDuplicateMethod    Kind = "duplicate_method"
	KindInheritedMissing   Kind = "inherited_missing"
	KindLayoutIncompatible Kind = "layout_incompatible"
	KindTypeMismatch       Kind = "type_mismatch"
	KindUnsupported        Kind = "unsupported"
	KindNotFound           Kind = "not_found"
	KindRegistration       Kind = "registration"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Callable string
	Class    string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Callable != "" {
		b.WriteString(" in ")
		b.WriteString(e.Callable)
	}
	if e.Class != "" {
		b.WriteString(" in class ")
		b.WriteString(e.Class)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Callable sets the callable name
func (b *Builder) Callable(name string) *Builder {
	b.err.Callable = name
	return b
}

// Class sets the class name
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Arity creates an argument-count mismatch error. Raised before any type
// resolution is attempted.
func Arity(callable string, want, got int) *Error {
	arguments := "arguments"
	if want == 1 {
		arguments = "argument"
	}
	return &Error{
		Phase:    PhaseDispatch,
		Kind:     KindArity,
		Callable: callable,
		Detail:   fmt.Sprintf("takes exactly %d %s (%d given)", want, arguments, got),
		Value:    got,
	}
}

// KeywordArgs creates an error for keyword arguments, which the dispatch
// path rejects entirely.
func KeywordArgs(callable string, names []string) *Error {
	return &Error{
		Phase:    PhaseDispatch,
		Kind:     KindKeywordArgs,
		Callable: callable,
		Detail:   fmt.Sprintf("keyword arguments are not supported: %s", strings.Join(names, ", ")),
	}
}

// UnsupportedValue creates an error for a runtime value with no semantic
// type mapping.
func UnsupportedValue(value any) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnsupportedValue,
		Detail: fmt.Sprintf("no semantic type for value of type %T", value),
		Value:  value,
	}
}

// SignatureMismatch creates a template unification failure error
func SignatureMismatch(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseSignature,
		Kind:   KindSignatureMismatch,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Syntax creates a signature string parse error
func Syntax(input string, pos int, detail string) *Error {
	return &Error{
		Phase:  PhaseSignature,
		Kind:   KindSyntax,
		Detail: fmt.Sprintf("%s at offset %d in %q", detail, pos, input),
		Value:  input,
	}
}

// Compilation wraps an adapter diagnostic. The diagnostic is carried as the
// cause and not further interpreted by the core.
func Compilation(callable string, cause error) *Error {
	return &Error{
		Phase:    PhaseCompile,
		Kind:     KindCompilation,
		Callable: callable,
		Detail:   "code generation failed",
		Cause:    cause,
	}
}

// DuplicateMethod creates an error for a method annotated more than once
// incompatibly.
func DuplicateMethod(class, method string) *Error {
	return &Error{
		Phase:  PhaseClass,
		Kind:   KindDuplicateMethod,
		Class:  class,
		Path:   []string{method},
		Detail: fmt.Sprintf("method %q has conflicting signature annotations", method),
	}
}

// InheritedMissing creates an error for an inherited method whose parent
// entry was never compiled.
func InheritedMissing(class, method string) *Error {
	return &Error{
		Phase:  PhaseClass,
		Kind:   KindInheritedMissing,
		Class:  class,
		Path:   []string{method},
		Detail: fmt.Sprintf("inherited method %q has no compiled parent entry", method),
	}
}

// LayoutIncompatible creates an error naming the pair of base classes whose
// layouts cannot both be extended.
func LayoutIncompatible(class, baseA, baseB string) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindLayoutIncompatible,
		Class:  class,
		Detail: fmt.Sprintf("multiple incompatible base classes found: %s and %s", baseA, baseB),
	}
}

// TypeMismatch creates an error for a typed attribute write with the wrong
// value type.
func TypeMismatch(class string, path []string, wantType, gotType string) *Error {
	return &Error{
		Phase:  PhaseClass,
		Kind:   KindTypeMismatch,
		Class:  class,
		Path:   path,
		Detail: fmt.Sprintf("cannot store %s into field of type %s", gotType, wantType),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Registration creates a registration error
func Registration(what, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s %q", what, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
