package cpu

import (
	"iter"
	"maps"
	"slices"
)

// Opcode is the execution unit of one mnemonic. Opcodes hold no state
// and are shared by every instruction that names them.
type Opcode struct {
	Name     string                              // Canonical mnemonic.
	Validate func(ops []Operand) error           // Checks the operand shape.
	Execute  func(cpu *Cpu, ops []Operand) error // Runs with validated operands.

	str     bool // String operation, repeatable by REP prefixes.
	compare bool // String comparison; REPE/REPNE stop on ZF.
	prefix  bool // Decorates the next fetched instruction.
}

// opcodeMap maps mnemonics, including aliases, to opcodes.
var opcodeMap = map[string]*Opcode{}

// define registers an opcode under its name and any aliases.
func define(op *Opcode, aliases ...string) {
	for _, name := range append([]string{op.Name}, aliases...) {
		if _, ok := opcodeMap[name]; ok {
			panic("opcode " + name + " defined twice")
		}
		opcodeMap[name] = op
	}
}

// LookupOpcode finds the opcode of an upper-case mnemonic.
func LookupOpcode(name string) (op *Opcode, ok bool) {
	op, ok = opcodeMap[name]
	return
}

// Mnemonics returns every known mnemonic, sorted.
func Mnemonics() []string {
	return slices.Sorted(maps.Keys(opcodeMap))
}

// Opcodes iterates over the mnemonic to opcode registry.
func Opcodes() iter.Seq2[string, *Opcode] {
	return maps.All(opcodeMap)
}

// IsPrefix is true if the mnemonic decorates the following instruction.
func IsPrefix(name string) bool {
	op, ok := opcodeMap[name]
	return ok && op.prefix
}

// count checks the number of operands.
func count(ops []Operand, counts ...int) error {
	if !slices.Contains(counts, len(ops)) {
		return ErrInvalidNumberOfParameters
	}
	return nil
}

// destination checks that an operand can be stored to.
func destination(op Operand) error {
	if _, ok := op.(Writable); !ok || isImmediate(op) {
		return ErrInvalidArgument
	}
	return nil
}

// generalOnly rejects segment registers.
func generalOnly(ops ...Operand) error {
	for _, op := range ops {
		if reg, ok := op.(Register); ok && !reg.IsGeneral() {
			return ErrInvalidRegisterUsage
		}
	}
	return nil
}

// sizeOf is the shared width of a destination and source operand.
func sizeOf(dst, src Operand) (w Width, err error) {
	dw, sw := dst.Size(), src.Size()
	switch {
	case isImmediate(src):
		w = dw
		if imm, ok := src.(Immediate); ok && w != WIDTH_NONE && !fits(imm.Value, w) {
			err = ErrOperandSize
			return
		}
	case dw == WIDTH_NONE:
		w = sw
	case sw == WIDTH_NONE:
		w = dw
	case dw != sw:
		err = ErrOperandSize
		return
	default:
		w = dw
	}
	return checkWidth(w)
}

// checkWidth requires a known width the ALU can operate on.
func checkWidth(w Width) (Width, error) {
	switch w {
	case WIDTH_NONE:
		return w, ErrOperandSizeUnknown
	case WIDTH_BYTE, WIDTH_WORD, WIDTH_DWORD:
		return w, nil
	}
	return w, ErrOperandSize
}

// withWidth sizes an untagged memory operand.
func withWidth(op Operand, w Width) Operand {
	if mp, ok := op.(MemoryPointer); ok && mp.Width == WIDTH_NONE {
		mp.Width = w
		return mp
	}
	return op
}

func validateNone(ops []Operand) error {
	return count(ops, 0)
}

// validateBinary checks a destination, source pair.
func validateBinary(ops []Operand) (err error) {
	if err = count(ops, 2); err != nil {
		return
	}
	if err = destination(ops[0]); err != nil {
		return
	}
	if err = generalOnly(ops...); err != nil {
		return
	}
	if isMemory(ops[0]) && isMemory(ops[1]) {
		return ErrInvalidArgument
	}
	_, err = sizeOf(ops[0], ops[1])
	return
}

// validateUnary checks a single sized destination.
func validateUnary(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	if err = destination(ops[0]); err != nil {
		return
	}
	if err = generalOnly(ops[0]); err != nil {
		return
	}
	_, err = checkWidth(ops[0].Size())
	return
}

// validateSource checks a single sized register or memory operand.
func validateSource(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	if isImmediate(ops[0]) {
		return ErrInvalidArgument
	}
	if err = generalOnly(ops[0]); err != nil {
		return
	}
	_, err = checkWidth(ops[0].Size())
	return
}

// binary executes a destination, source opcode.
func binary(cpu *Cpu, ops []Operand, fn func(dst Writable, src Operand, w Width)) error {
	w, err := sizeOf(ops[0], ops[1])
	if err != nil {
		return err
	}
	dst := withWidth(ops[0], w).(Writable)
	src := withWidth(ops[1], w)
	fn(dst, src, w)
	return nil
}
