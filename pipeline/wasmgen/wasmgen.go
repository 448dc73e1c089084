// Package wasmgen emits minimal single-function WebAssembly modules. It
// stands in for the external code generator in tests, examples and the
// demo CLI: given value types and a raw instruction body, it produces a
// binary the wazero adapter can compile.
package wasmgen

// ValType is a core wasm value type byte
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// Instruction opcodes used by generated bodies
const (
	OpLocalGet = 0x20
	OpEnd      = 0x0B

	OpI32Add = 0x6A
	OpI32Sub = 0x6B
	OpI32Mul = 0x6C
	OpI64Add = 0x7C
	OpI64Sub = 0x7D
	OpI64Mul = 0x7E
	OpF32Add = 0x92
	OpF32Mul = 0x94
	OpF64Add = 0xA0
	OpF64Sub = 0xA1
	OpF64Mul = 0xA2
)

// Func describes one exported function
type Func struct {
	Name    string
	Body    []byte
	Params  []ValType
	Results []ValType
}

// Emit encodes a module exporting a single function. The body must end
// with the end opcode.
func Emit(fn Func) []byte {
	buf := &buffer{}
	buf.writeBytes([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) // magic + version

	// Type section: one function type.
	sec := &buffer{}
	sec.writeU32(1)
	sec.appendByte(0x60)
	sec.writeU32(uint32(len(fn.Params)))
	for _, p := range fn.Params {
		sec.appendByte(byte(p))
	}
	sec.writeU32(uint32(len(fn.Results)))
	for _, r := range fn.Results {
		sec.appendByte(byte(r))
	}
	buf.writeSection(0x01, sec)

	// Function section: one function of type 0.
	sec = &buffer{}
	sec.writeU32(1)
	sec.writeU32(0)
	buf.writeSection(0x03, sec)

	// Export section.
	sec = &buffer{}
	sec.writeU32(1)
	sec.writeString(fn.Name)
	sec.appendByte(0x00) // func kind
	sec.writeU32(0)
	buf.writeSection(0x07, sec)

	// Code section: no locals, raw body.
	body := &buffer{}
	body.writeU32(0)
	body.writeBytes(fn.Body)
	sec = &buffer{}
	sec.writeU32(1)
	sec.writeU32(uint32(len(body.bytes)))
	sec.writeBytes(body.bytes)
	buf.writeSection(0x0A, sec)

	return buf.bytes
}

// BinOp builds a two-argument function applying one binary opcode to its
// parameters, e.g. BinOp("add", I64, OpI64Add).
func BinOp(name string, t ValType, op byte) Func {
	return Func{
		Name:    name,
		Params:  []ValType{t, t},
		Results: []ValType{t},
		Body:    []byte{OpLocalGet, 0, OpLocalGet, 1, op, OpEnd},
	}
}

// Noop builds a function that accepts its parameters and returns nothing
func Noop(name string, params ...ValType) Func {
	return Func{
		Name:   name,
		Params: params,
		Body:   []byte{OpEnd},
	}
}

// Identity builds a one-argument function returning its parameter
func Identity(name string, t ValType) Func {
	return Func{
		Name:    name,
		Params:  []ValType{t},
		Results: []ValType{t},
		Body:    []byte{OpLocalGet, 0, OpEnd},
	}
}

type buffer struct {
	bytes []byte
}

func (b *buffer) appendByte(v byte) {
	b.bytes = append(b.bytes, v)
}

func (b *buffer) writeBytes(v []byte) {
	b.bytes = append(b.bytes, v...)
}

// writeU32 writes unsigned LEB128 encoding.
func (b *buffer) writeU32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.appendByte(byt)
		if v == 0 {
			break
		}
	}
}

func (b *buffer) writeString(s string) {
	b.writeU32(uint32(len(s)))
	b.writeBytes([]byte(s))
}

func (b *buffer) writeSection(id byte, sec *buffer) {
	b.appendByte(id)
	b.writeU32(uint32(len(sec.bytes)))
	b.writeBytes(sec.bytes)
}
