package exttype

import (
	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/types"
)

// Instance is one object of a built class: a value per attribute struct
// field, accessed through the descriptor's accessor table. Writes are
// type checked at the accessor boundary; a mismatched store fails with a
// typed error instead of corrupting the native layout.
type Instance struct {
	class  *ClassDescriptor
	values []any
}

// NewInstance allocates an instance with every field at its zero value
func (d *ClassDescriptor) NewInstance() *Instance {
	fields := d.Type.Struct.Fields
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = zeroValue(f.Type)
	}
	return &Instance{class: d, values: values}
}

// Class returns the instance's descriptor
func (inst *Instance) Class() *ClassDescriptor {
	return inst.class
}

// Get reads an attribute by name
func (inst *Instance) Get(name string) (any, error) {
	acc := inst.class.Accessor(name)
	if acc == nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Class(inst.class.Name).
			Path(name).
			Detail("no such attribute").
			Build()
	}
	return inst.values[acc.Field], nil
}

// Set writes an attribute by name. The value's semantic type must equal
// the declared field type.
func (inst *Instance) Set(name string, value any) error {
	acc := inst.class.Accessor(name)
	if acc == nil {
		return errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Class(inst.class.Name).
			Path(name).
			Detail("no such attribute").
			Build()
	}

	got, err := types.TypeOf(value)
	if err != nil {
		return err
	}
	if !types.Equal(got, acc.Type) {
		return errors.TypeMismatch(inst.class.Name, []string{name},
			acc.Type.String(), got.String())
	}

	inst.values[acc.Field] = value
	return nil
}

// zeroValue returns the host representation of a field's zero value
func zeroValue(t types.Type) any {
	switch tt := t.(type) {
	case types.Numeric:
		switch tt {
		case types.Bool:
			return false
		case types.I1:
			return int8(0)
		case types.I2:
			return int16(0)
		case types.I4:
			return int32(0)
		case types.I8:
			return int64(0)
		case types.U1:
			return uint8(0)
		case types.U2:
			return uint16(0)
		case types.U4:
			return uint32(0)
		case types.U8:
			return uint64(0)
		case types.F4:
			return float32(0)
		case types.F8:
			return float64(0)
		}
	case types.Pointer, types.Array:
		return uint32(0)
	}
	return nil
}
