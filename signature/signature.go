// Package signature provides the canonical representation of a callable's
// type-specialized contract: an ordered argument type sequence, a return
// type, and an optional exported name.
//
// Signatures can be constructed three ways: from structured types (New),
// from the string grammar "[name] ret(arg, arg, ...)" (Parse), or inferred
// from observed runtime values (Infer).
package signature

import (
	"strings"

	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/types"
)

// Signature identifies a callable's type contract. It is immutable once
// constructed. Two signatures are equal iff their argument sequences and
// return types are structurally equal; the name does not participate.
type Signature struct {
	Return types.Type
	Name   string
	Args   []types.Type
}

// New constructs a signature from structured types. A nil return type
// means void.
func New(name string, ret types.Type, args ...types.Type) *Signature {
	if ret == nil {
		ret = types.Void
	}
	return &Signature{Name: name, Return: ret, Args: args}
}

// Infer constructs a signature from observed runtime values. The return
// type is left for the compilation pipeline to establish; a nil hint means
// void. Fails with unsupported_value if any value has no semantic type.
func Infer(name string, retHint types.Type, values ...any) (*Signature, error) {
	args := make([]types.Type, len(values))
	for i, v := range values {
		t, err := types.TypeOf(v)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	return New(name, retHint, args...), nil
}

// Equal reports structural equality ignoring the name
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	return types.Equal(s.Return, other.Return) && types.EqualSlice(s.Args, other.Args)
}

// Key returns the canonical cache key. The name is excluded so that the
// same type contract maps to one specialization regardless of how it was
// spelled.
func (s *Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.Return.String())
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// String returns the signature in grammar form, including the name
func (s *Signature) String() string {
	if s.Name == "" {
		return s.Key()
	}
	return s.Name + " " + s.Key()
}

// IsTemplate reports whether the signature contains free type variables
func (s *Signature) IsTemplate() bool {
	if types.HasVar(s.Return) {
		return true
	}
	for _, a := range s.Args {
		if types.HasVar(a) {
			return true
		}
	}
	return false
}

// ResolveTemplate instantiates a template signature against concrete
// argument types, unifying free type variables positionally. An explicit
// type in locals for a named argument overrides the unified type. Fails
// with signature_mismatch on arity disagreement or contradictory variable
// bindings.
func ResolveTemplate(locals map[string]types.Type, template *Signature, argNames []string, argTypes []types.Type) (*Signature, error) {
	if len(template.Args) != len(argTypes) {
		return nil, errors.SignatureMismatch(
			"template %s expects %d arguments, %d given",
			template, len(template.Args), len(argTypes))
	}

	bindings := types.Bindings{}
	for i, pattern := range template.Args {
		if err := types.Unify(pattern, argTypes[i], bindings); err != nil {
			return nil, err
		}
	}

	args := make([]types.Type, len(template.Args))
	for i, pattern := range template.Args {
		args[i] = types.Substitute(pattern, bindings)
	}
	ret := types.Substitute(template.Return, bindings)
	if types.HasVar(ret) {
		return nil, errors.SignatureMismatch(
			"return type %s not determined by argument types", template.Return)
	}

	for i, name := range argNames {
		if i >= len(args) {
			break
		}
		if override, ok := locals[name]; ok {
			args[i] = override
		}
	}

	return New(template.Name, ret, args...), nil
}
