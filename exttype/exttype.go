// Package exttype synthesizes native-backed extension types for
// source-level classes: an attribute struct, a virtual method table, and a
// fully linked class descriptor with every method compiled through the
// pipeline adapter.
//
// Layouts obey the prefix rule: a derived struct and vtable extend every
// native base's layout without reordering or resizing inherited entries,
// because attribute and method access at call sites is compiled to fixed
// struct-offset and vtable-index loads. The verifier in this package
// rejects hierarchies that cannot satisfy the rule.
package exttype

import (
	"context"

	jitruntime "github.com/wippyai/jit-runtime"
	"github.com/wippyai/jit-runtime/pipeline"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// ConstructorName is the initializer method name in class declarations.
// Its attribute assignments determine attribute types not explicitly
// annotated, and it must return void.
const ConstructorName = "init"

// AttributeStruct is the ordered native field layout of a class. Field
// order is inherited fields first, in parent order, then newly declared
// fields in first-seen order. Immutable once the descriptor is built.
type AttributeStruct struct {
	Fields []types.Field
}

// Index returns the field position for name, or -1
func (s *AttributeStruct) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Type returns the underlying semantic struct type
func (s *AttributeStruct) Type() types.Struct {
	return types.Struct{Fields: s.Fields}
}

// Slot is one vtable position: a method name and its signature
type Slot struct {
	Signature *signature.Signature
	Name      string
}

// VTableType is the ordered slot layout of a class's virtual method
// table. Slot order matches the method list: inherited slots first, then
// newly declared methods in declaration order.
type VTableType struct {
	Slots []Slot
}

// Index returns the slot position for a method name, or -1
func (v *VTableType) Index(name string) int {
	for i, s := range v.Slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// VTable is a populated method table: one native entry per slot, in slot
// order. Inherited, non-overridden slots carry the parent's entry.
type VTable struct {
	Type    *VTableType
	Entries []jitruntime.NativeFunc
}

// Method is one resolved class method
type Method struct {
	Signature *signature.Signature
	Artifact  *pipeline.Artifact
	Name      string
	Inherited bool
}

// ExtensionType is the symbolic view of a built class: its symbol table,
// method list and layout types, plus the parent layout types it shares by
// reference for compatibility checks.
type ExtensionType struct {
	Class        string
	Symtab       *pipeline.SymbolTable
	Struct       *AttributeStruct
	VTab         *VTableType
	ParentStruct *AttributeStruct
	ParentVTab   *VTableType
}

// Accessor is one statically built attribute accessor, bound to a fixed
// struct field index.
type Accessor struct {
	Type  types.Type
	Name  string
	Field int
}

// ClassDescriptor is the immutable final product of a class build. It owns
// the compiled method artifacts; Release must be called when the class is
// discarded.
type ClassDescriptor struct {
	Name string
	Type *ExtensionType

	vtable    *VTable
	methods   map[string]*Method
	accessors map[string]*Accessor
}

// Struct returns the class's attribute struct layout
func (d *ClassDescriptor) Struct() *AttributeStruct {
	return d.Type.Struct
}

// VTableType returns the class's vtable layout
func (d *ClassDescriptor) VTableType() *VTableType {
	return d.Type.VTab
}

// VTable returns the populated method table
func (d *ClassDescriptor) VTable() *VTable {
	return d.vtable
}

// Method returns a resolved method by name, or nil
func (d *ClassDescriptor) Method(name string) *Method {
	return d.methods[name]
}

// Accessor returns the accessor for an attribute name, or nil
func (d *ClassDescriptor) Accessor(name string) *Accessor {
	return d.accessors[name]
}

// Call dispatches a method through the vtable by name
func (d *ClassDescriptor) Call(ctx context.Context, method string, args ...any) (any, error) {
	m, ok := d.methods[method]
	if !ok {
		return nil, errNotFound(d.Name, method)
	}
	return m.Artifact.Wrapper.Invoke(ctx, args...)
}

// Release drops the descriptor's references to its compiled methods
func (d *ClassDescriptor) Release(ctx context.Context) error {
	var firstErr error
	for _, m := range d.methods {
		if m.Artifact == nil {
			continue
		}
		if err := m.Artifact.Release(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ClassDecl is the structured, front-end-extracted form of a class
// declaration.
type ClassDecl struct {
	// Name is the declared class name.
	Name string

	// Bases are the native-backed base classes, in declaration order.
	// Non-native bases are invisible to the layout and do not appear.
	Bases []*ClassDescriptor

	// Attrs are explicit class-level attribute type annotations, in
	// declaration order.
	Attrs []AttrDecl

	// Methods are the class's own method declarations, in declaration
	// order. The constructor, if present, is named ConstructorName.
	Methods []MethodDecl
}

// AttrDecl is one explicit attribute type annotation
type AttrDecl struct {
	Type types.Type
	Name string
}

// MethodDecl is one method declaration with its explicit signature
// annotations. A method may be annotated more than once only with equal
// signatures; signature argument and return types may be template
// variables named after attributes, which resolve against the finalized
// attribute struct.
type MethodDecl struct {
	Decl       *pipeline.Declaration
	Signatures []*signature.Signature
}
