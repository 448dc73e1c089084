package types

import (
	"reflect"

	"github.com/wippyai/jit-runtime/errors"
)

// TypeOf maps a runtime value to its semantic type. It is a pure function
// of the value's dynamic type. Values with no mapping fail with an
// unsupported_value error.
func TypeOf(value any) (Type, error) {
	switch value.(type) {
	case nil:
		return Object, nil
	case bool:
		return Bool, nil
	case int8:
		return I1, nil
	case int16:
		return I2, nil
	case int32:
		return I4, nil
	case int, int64:
		return I8, nil
	case uint8:
		return U1, nil
	case uint16:
		return U2, nil
	case uint32:
		return U4, nil
	case uint, uint64, uintptr:
		return U8, nil
	case float32:
		return F4, nil
	case float64:
		return F8, nil
	case string:
		return Object, nil
	}
	return typeOfReflect(reflect.TypeOf(value), value)
}

func typeOfReflect(rt reflect.Type, value any) (Type, error) {
	switch rt.Kind() {
	case reflect.Pointer:
		elem, err := typeOfReflect(rt.Elem(), value)
		if err != nil {
			return nil, err
		}
		return Pointer{Elem: elem}, nil
	case reflect.Slice, reflect.Array:
		elem, err := typeOfReflect(rt.Elem(), value)
		if err != nil {
			return nil, err
		}
		return Array{Elem: elem}, nil
	case reflect.Struct:
		fields := make([]Field, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			ft, err := typeOfReflect(f.Type, value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: f.Name, Type: ft})
		}
		return Struct{Fields: fields}, nil
	case reflect.Func:
		if rt.NumOut() > 1 {
			return nil, errors.UnsupportedValue(value)
		}
		ret := Type(Void)
		if rt.NumOut() == 1 {
			var err error
			ret, err = typeOfReflect(rt.Out(0), value)
			if err != nil {
				return nil, err
			}
		}
		args := make([]Type, rt.NumIn())
		for i := 0; i < rt.NumIn(); i++ {
			at, err := typeOfReflect(rt.In(i), value)
			if err != nil {
				return nil, err
			}
			args[i] = at
		}
		return FuncPtr{Return: ret, Args: args}, nil
	case reflect.Bool:
		return Bool, nil
	case reflect.Int8:
		return I1, nil
	case reflect.Int16:
		return I2, nil
	case reflect.Int32:
		return I4, nil
	case reflect.Int, reflect.Int64:
		return I8, nil
	case reflect.Uint8:
		return U1, nil
	case reflect.Uint16:
		return U2, nil
	case reflect.Uint32:
		return U4, nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return U8, nil
	case reflect.Float32:
		return F4, nil
	case reflect.Float64:
		return F8, nil
	case reflect.String, reflect.Interface:
		return Object, nil
	}
	// chan, map, complex and unsafe kinds have no semantic mapping
	return nil, errors.UnsupportedValue(value)
}

// Bindings maps template variable names to concrete types during unification
type Bindings map[string]Type

// Unify binds free variables in pattern against the concrete type. Two
// occurrences of one variable must bind to structurally equal types.
func Unify(pattern, concrete Type, bindings Bindings) error {
	switch pt := pattern.(type) {
	case Var:
		if bound, ok := bindings[pt.Name]; ok {
			if !Equal(bound, concrete) {
				return errors.SignatureMismatch(
					"type variable %s bound to both %s and %s", pt.Name, bound, concrete)
			}
			return nil
		}
		bindings[pt.Name] = concrete
		return nil
	case Pointer:
		ct, ok := concrete.(Pointer)
		if !ok {
			return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
		}
		return Unify(pt.Elem, ct.Elem, bindings)
	case Array:
		ct, ok := concrete.(Array)
		if !ok {
			return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
		}
		return Unify(pt.Elem, ct.Elem, bindings)
	case FuncPtr:
		ct, ok := concrete.(FuncPtr)
		if !ok || len(pt.Args) != len(ct.Args) {
			return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
		}
		if err := Unify(pt.Return, ct.Return, bindings); err != nil {
			return err
		}
		for i := range pt.Args {
			if err := Unify(pt.Args[i], ct.Args[i], bindings); err != nil {
				return err
			}
		}
		return nil
	case Struct:
		ct, ok := concrete.(Struct)
		if !ok || len(pt.Fields) != len(ct.Fields) {
			return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
		}
		for i := range pt.Fields {
			if pt.Fields[i].Name != ct.Fields[i].Name {
				return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
			}
			if err := Unify(pt.Fields[i].Type, ct.Fields[i].Type, bindings); err != nil {
				return err
			}
		}
		return nil
	}
	if !Equal(pattern, concrete) {
		return errors.SignatureMismatch("cannot unify %s with %s", pattern, concrete)
	}
	return nil
}

// Substitute replaces bound variables in t. Unbound variables are left in
// place for the caller to report.
func Substitute(t Type, bindings Bindings) Type {
	switch tt := t.(type) {
	case Var:
		if bound, ok := bindings[tt.Name]; ok {
			return bound
		}
		return tt
	case Pointer:
		return Pointer{Elem: Substitute(tt.Elem, bindings)}
	case Array:
		return Array{Elem: Substitute(tt.Elem, bindings)}
	case FuncPtr:
		args := make([]Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = Substitute(a, bindings)
		}
		return FuncPtr{Return: Substitute(tt.Return, bindings), Args: args}
	case Struct:
		fields := make([]Field, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = Field{Name: f.Name, Type: Substitute(f.Type, bindings)}
		}
		return Struct{Fields: fields}
	}
	return t
}

// HasVar reports whether t contains any free template variable
func HasVar(t Type) bool {
	switch tt := t.(type) {
	case Var:
		return true
	case Pointer:
		return HasVar(tt.Elem)
	case Array:
		return HasVar(tt.Elem)
	case FuncPtr:
		if HasVar(tt.Return) {
			return true
		}
		for _, a := range tt.Args {
			if HasVar(a) {
				return true
			}
		}
		return false
	case Struct:
		for _, f := range tt.Fields {
			if HasVar(f.Type) {
				return true
			}
		}
		return false
	}
	return false
}
