package types

import (
	"strings"
)

// Semantic type system for the specialization layer. The set is closed:
// numeric kinds, pointer/array/struct kinds, function pointers, the opaque
// object kind, and free template variables.

// Type represents a semantic type
type Type interface {
	isType()
	String() string
}

// Numeric represents the scalar numeric kinds plus bool
type Numeric byte

const (
	Bool Numeric = iota
	I1
	I2
	I4
	I8
	U1
	U2
	U4
	U8
	F4
	F8
)

func (Numeric) isType() {}

func (n Numeric) String() string {
	switch n {
	case Bool:
		return "bool"
	case I1:
		return "i1"
	case I2:
		return "i2"
	case I4:
		return "i4"
	case I8:
		return "i8"
	case U1:
		return "u1"
	case U2:
		return "u2"
	case U4:
		return "u4"
	case U8:
		return "u8"
	case F4:
		return "f4"
	case F8:
		return "f8"
	}
	return "numeric(?)"
}

// IsFloat reports whether n is a floating point kind
func (n Numeric) IsFloat() bool {
	return n == F4 || n == F8
}

// VoidType is the absence of a return value
type VoidType struct{}

func (VoidType) isType()        {}
func (VoidType) String() string { return "void" }

// ObjectType is the opaque host-object kind. Any value without a native
// representation falls back to it.
type ObjectType struct{}

func (ObjectType) isType()        {}
func (ObjectType) String() string { return "object" }

var (
	Void   = VoidType{}
	Object = ObjectType{}
)

// Pointer represents a typed pointer
type Pointer struct {
	Elem Type
}

func (Pointer) isType() {}

func (p Pointer) String() string { return "*" + p.Elem.String() }

// Array represents a contiguous sequence of elements
type Array struct {
	Elem Type
}

func (Array) isType() {}

func (a Array) String() string { return a.Elem.String() + "[:]" }

// Field is a named struct field
type Field struct {
	Type Type
	Name string
}

// Struct represents an ordered field aggregate
type Struct struct {
	Fields []Field
}

func (Struct) isType() {}

func (s Struct) String() string {
	var b strings.Builder
	b.WriteString("struct{")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte(' ')
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// FuncPtr represents a native function pointer
type FuncPtr struct {
	Return Type
	Args   []Type
}

func (FuncPtr) isType() {}

func (f FuncPtr) String() string {
	var b strings.Builder
	b.WriteString(f.Return.String())
	b.WriteString("(*)(")
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Var is a free template type variable, bound during template resolution
type Var struct {
	Name string
}

func (Var) isType() {}

func (v Var) String() string { return "$" + v.Name }

// Equal reports structural equality of two types
func Equal(a, b Type) bool {
	switch at := a.(type) {
	case Numeric:
		bt, ok := b.(Numeric)
		return ok && at == bt
	case VoidType:
		_, ok := b.(VoidType)
		return ok
	case ObjectType:
		_, ok := b.(ObjectType)
		return ok
	case Pointer:
		bt, ok := b.(Pointer)
		return ok && Equal(at.Elem, bt.Elem)
	case Array:
		bt, ok := b.(Array)
		return ok && Equal(at.Elem, bt.Elem)
	case Struct:
		bt, ok := b.(Struct)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || !Equal(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case FuncPtr:
		bt, ok := b.(FuncPtr)
		if !ok || len(at.Args) != len(bt.Args) || !Equal(at.Return, bt.Return) {
			return false
		}
		for i := range at.Args {
			if !Equal(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case Var:
		bt, ok := b.(Var)
		return ok && at.Name == bt.Name
	}
	return false
}

// EqualSlice reports pairwise structural equality of two type sequences
func EqualSlice(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// primitive name table used by the signature grammar
var byName = map[string]Type{
	"bool":   Bool,
	"i1":     I1,
	"i2":     I2,
	"i4":     I4,
	"i8":     I8,
	"u1":     U1,
	"u2":     U2,
	"u4":     U4,
	"u8":     U8,
	"f4":     F4,
	"f8":     F8,
	"void":   Void,
	"object": Object,
}

// ByName resolves a primitive type name from the signature grammar
func ByName(name string) (Type, bool) {
	t, ok := byName[name]
	return t, ok
}
