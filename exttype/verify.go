package exttype

import (
	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/types"
)

// StructIsPrefix reports whether derived's leading fields exactly match
// base's fields, pairwise by name and type. A nil or empty base layout is
// a prefix of everything.
func StructIsPrefix(base, derived *AttributeStruct) bool {
	if base == nil {
		return true
	}
	if derived == nil || len(base.Fields) > len(derived.Fields) {
		return false
	}
	for i, f := range base.Fields {
		d := derived.Fields[i]
		if d.Name != f.Name || !types.Equal(d.Type, f.Type) {
			return false
		}
	}
	return true
}

// VTableIsPrefix reports whether derived's leading slots exactly match
// base's slots, pairwise by method name and signature.
func VTableIsPrefix(base, derived *VTableType) bool {
	if base == nil {
		return true
	}
	if derived == nil || len(base.Slots) > len(derived.Slots) {
		return false
	}
	for i, s := range base.Slots {
		d := derived.Slots[i]
		if d.Name != s.Name || !d.Signature.Equal(s.Signature) {
			return false
		}
	}
	return true
}

// Verify checks that a derived layout is a structural extension of a base
// layout: the base's struct fields and vtable slots must appear as the
// leading entries of the derived layout, unchanged. Already-compiled code
// holding a base-typed reference reads fixed offsets and indices; a
// reordered or resized prefix would silently corrupt those reads.
func Verify(class, baseName string, baseStruct, derivedStruct *AttributeStruct, baseVTab, derivedVTab *VTableType) error {
	if !StructIsPrefix(baseStruct, derivedStruct) {
		return errors.New(errors.PhaseVerify, errors.KindLayoutIncompatible).
			Class(class).
			Detail("attribute struct is not a prefix extension of base %s", baseName).
			Build()
	}
	if !VTableIsPrefix(baseVTab, derivedVTab) {
		return errors.New(errors.PhaseVerify, errors.KindLayoutIncompatible).
			Class(class).
			Detail("vtable is not a prefix extension of base %s", baseName).
			Build()
	}
	return nil
}

func errNotFound(class, method string) error {
	return errors.New(errors.PhaseDispatch, errors.KindNotFound).
		Class(class).
		Path(method).
		Detail("no such method").
		Build()
}
