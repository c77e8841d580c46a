package cpu

// aluUpdate computes a binary result and its flags.
type aluUpdate func(fl *Flags, dest, src uint64, w Width) uint64

// binaryAlu is a two operand arithmetic or logic opcode. When store is
// false only the flags are kept.
func binaryAlu(name string, update aluUpdate, store bool) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateBinary,
		Execute: func(cpu *Cpu, ops []Operand) error {
			return binary(cpu, ops, func(dst Writable, src Operand, w Width) {
				result := update(&cpu.Flags, dst.Get(cpu), src.Get(cpu), w)
				if store {
					dst.Set(cpu, result)
				}
			})
		},
	}
}

// unaryAlu is a single operand read-modify-write opcode.
func unaryAlu(name string, update func(fl *Flags, value uint64, w Width) uint64) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateUnary,
		Execute: func(cpu *Cpu, ops []Operand) error {
			dst := ops[0].(Writable)
			dst.Set(cpu, update(&cpu.Flags, dst.Get(cpu), dst.Size()))
			return nil
		},
	}
}

func compare(fl *Flags, dest, src uint64, w Width) uint64 {
	fl.Compare(dest, src, w)
	return dest
}

func not(fl *Flags, value uint64, w Width) uint64 {
	return ^value & w.Mask()
}

// accumulator returns the low and high halves of the implied
// MUL/DIV operand for a width.
func accumulator(w Width) (lo, hi Register) {
	switch w {
	case WIDTH_BYTE:
		return REG_AL, REG_AH
	case WIDTH_WORD:
		return REG_AX, REG_DX
	}
	return REG_EAX, REG_EDX
}

// multiply is MUL or IMUL: hi:lo = lo * src.
func multiply(name string, signed bool) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateSource,
		Execute: func(cpu *Cpu, ops []Operand) error {
			src := ops[0]
			w := src.Size()
			lo, hi := accumulator(w)
			a, b := lo.Get(cpu)&w.Mask(), src.Get(cpu)&w.Mask()

			var product uint64
			var overflow bool
			if signed {
				p := signExtend(a, w) * signExtend(b, w)
				product = uint64(p)
				overflow = signExtend(product&w.Mask(), w) != p
			} else {
				product = a * b
				overflow = product>>uint(w) != 0
			}

			lo.Set(cpu, product&w.Mask())
			hi.Set(cpu, (product>>uint(w))&w.Mask())
			cpu.Flags.SetCF(overflow)
			cpu.Flags.SetOF(overflow)
			return nil
		},
	}
}

// divide is DIV or IDIV: lo = hi:lo / src, hi = hi:lo % src.
func divide(name string, signed bool) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateSource,
		Execute: func(cpu *Cpu, ops []Operand) error {
			src := ops[0]
			w := src.Size()
			lo, hi := accumulator(w)
			divisor := src.Get(cpu) & w.Mask()
			if divisor == 0 {
				return ErrDivideByZero
			}
			dividend := hi.Get(cpu)<<uint(w) | lo.Get(cpu)&w.Mask()

			var quotient, remainder uint64
			if signed {
				n := signExtend(dividend, 2*w)
				d := signExtend(divisor, w)
				q := n / d
				if signExtend(uint64(q)&w.Mask(), w) != q {
					return ErrDivideByZero
				}
				quotient, remainder = uint64(q), uint64(n%d)
			} else {
				quotient, remainder = dividend/divisor, dividend%divisor
				if quotient > w.Mask() {
					return ErrDivideByZero
				}
			}

			lo.Set(cpu, quotient&w.Mask())
			hi.Set(cpu, remainder&w.Mask())
			return nil
		},
	}
}

// shiftCount is the masked count of a shift or rotate.
func shiftCount(cpu *Cpu, ops []Operand) uint {
	if len(ops) < 2 {
		return 1
	}
	return uint(ops[1].Get(cpu) & 0x1f)
}

func validateShift(ops []Operand) (err error) {
	if err = count(ops, 1, 2); err != nil {
		return
	}
	if err = validateUnary(ops[:1]); err != nil {
		return
	}
	if len(ops) == 2 {
		switch src := ops[1].(type) {
		case Immediate:
			if !fits(src.Value, WIDTH_BYTE) {
				err = ErrOperandSize
			}
		case Register:
			if src != REG_CL {
				err = ErrInvalidRegisterUsage
			}
		default:
			err = ErrInvalidArgument
		}
	}
	return
}

// shift is a shift or rotate opcode. A zero count changes nothing.
func shift(name string, fn func(fl *Flags, value uint64, n uint, w Width) uint64) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateShift,
		Execute: func(cpu *Cpu, ops []Operand) error {
			n := shiftCount(cpu, ops)
			if n == 0 {
				return nil
			}
			dst := ops[0].(Writable)
			w := dst.Size()
			dst.Set(cpu, fn(&cpu.Flags, dst.Get(cpu)&w.Mask(), n, w))
			return nil
		},
	}
}

func shl(fl *Flags, value uint64, n uint, w Width) uint64 {
	wide := value << n
	result := wide & w.Mask()
	fl.SetCF((wide>>uint(w))&1 != 0)
	fl.SetOF((result&w.Msb() != 0) != fl.CF())
	fl.setResult(result, w)
	return result
}

func shr(fl *Flags, value uint64, n uint, w Width) uint64 {
	result := value >> n
	fl.SetCF((value>>(n-1))&1 != 0)
	fl.SetOF(value&w.Msb() != 0)
	fl.setResult(result, w)
	return result
}

func sar(fl *Flags, value uint64, n uint, w Width) uint64 {
	signed := signExtend(value, w)
	result := uint64(signed>>n) & w.Mask()
	fl.SetCF((signed>>(n-1))&1 != 0)
	fl.SetOF(false)
	fl.setResult(result, w)
	return result
}

func rol(fl *Flags, value uint64, n uint, w Width) uint64 {
	n %= uint(w)
	result := (value<<n | value>>(uint(w)-n)) & w.Mask()
	fl.SetCF(result&1 != 0)
	fl.SetOF((result&w.Msb() != 0) != fl.CF())
	return result
}

func ror(fl *Flags, value uint64, n uint, w Width) uint64 {
	n %= uint(w)
	result := (value>>n | value<<(uint(w)-n)) & w.Mask()
	fl.SetCF(result&w.Msb() != 0)
	fl.SetOF((result&w.Msb() != 0) != (result&(w.Msb()>>1) != 0))
	return result
}

// rcl rotates left through the carry, one bit at a time.
func rcl(fl *Flags, value uint64, n uint, w Width) uint64 {
	n %= uint(w) + 1
	cf := fl.CF()
	for range n {
		out := value&w.Msb() != 0
		value = (value << 1) & w.Mask()
		if cf {
			value |= 1
		}
		cf = out
	}
	fl.SetCF(cf)
	fl.SetOF((value&w.Msb() != 0) != cf)
	return value
}

// rcr rotates right through the carry, one bit at a time.
func rcr(fl *Flags, value uint64, n uint, w Width) uint64 {
	n %= uint(w) + 1
	cf := fl.CF()
	for range n {
		out := value&1 != 0
		value >>= 1
		if cf {
			value |= w.Msb()
		}
		cf = out
	}
	fl.SetCF(cf)
	fl.SetOF((value&w.Msb() != 0) != (value&(w.Msb()>>1) != 0))
	return value
}

// flagOp is an operand-less opcode acting on the flags.
func flagOp(name string, fn func(cpu *Cpu)) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateNone,
		Execute: func(cpu *Cpu, ops []Operand) error {
			fn(cpu)
			return nil
		},
	}
}

func validateMove(ops []Operand) (err error) {
	if err = count(ops, 2); err != nil {
		return
	}
	if err = destination(ops[0]); err != nil {
		return
	}
	if isMemory(ops[0]) && isMemory(ops[1]) {
		return ErrInvalidArgument
	}
	dst, _ := asRegister(ops[0])
	src, _ := asRegister(ops[1])
	switch {
	case dst == REG_CS:
		return ErrInvalidRegisterUsage
	case dst.IsSegment() && (isImmediate(ops[1]) || src.IsSegment()):
		return ErrInvalidRegisterUsage
	case src.IsSegment() && dst.Width() == WIDTH_BYTE:
		return ErrOperandSize
	}
	_, err = sizeOf(ops[0], ops[1])
	return
}

func validateExchange(ops []Operand) (err error) {
	if err = validateBinary(ops); err != nil {
		return
	}
	return destination(ops[1])
}

// validateLoad checks LEA and the far pointer loads.
func validateLoad(ops []Operand) (err error) {
	if err = count(ops, 2); err != nil {
		return
	}
	reg, ok := asRegister(ops[0])
	if !ok || !reg.IsGeneral() || reg.Width() == WIDTH_BYTE {
		return ErrInvalidRegisterUsage
	}
	if !isMemory(ops[1]) {
		return ErrInvalidArgument
	}
	return
}

// loadPointer loads a register and a segment register from a far
// pointer in memory.
func loadPointer(name string, segment Register) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateLoad,
		Execute: func(cpu *Cpu, ops []Operand) error {
			dst := ops[0].(Register)
			w := dst.Width()
			seg, off := ops[1].(MemoryPointer).Address(cpu)
			dst.Set(cpu, cpu.load(seg, off, w))
			segment.Set(cpu, cpu.load(seg, off+uint16(w.Bytes()), WIDTH_WORD))
			return nil
		},
	}
}

func init() {
	define(binaryAlu("ADD", (*Flags).UpdateADD, true))
	define(binaryAlu("ADC", (*Flags).UpdateADC, true))
	define(binaryAlu("SUB", (*Flags).UpdateSUB, true))
	define(binaryAlu("SBB", (*Flags).UpdateSBB, true))
	define(binaryAlu("CMP", compare, false))
	define(binaryAlu("AND", (*Flags).UpdateAND, true))
	define(binaryAlu("OR", (*Flags).UpdateOR, true))
	define(binaryAlu("XOR", (*Flags).UpdateXOR, true))
	define(binaryAlu("TEST", (*Flags).UpdateAND, false))

	define(unaryAlu("INC", (*Flags).UpdateINC))
	define(unaryAlu("DEC", (*Flags).UpdateDEC))
	define(unaryAlu("NEG", (*Flags).UpdateNEG))
	define(unaryAlu("NOT", not))

	define(multiply("MUL", false))
	define(multiply("IMUL", true))
	define(divide("DIV", false))
	define(divide("IDIV", true))

	define(shift("SHL", shl), "SAL")
	define(shift("SHR", shr))
	define(shift("SAR", sar))
	define(shift("ROL", rol))
	define(shift("ROR", ror))
	define(shift("RCL", rcl))
	define(shift("RCR", rcr))

	define(flagOp("CLC", func(cpu *Cpu) { cpu.Flags.SetCF(false) }))
	define(flagOp("STC", func(cpu *Cpu) { cpu.Flags.SetCF(true) }))
	define(flagOp("CMC", func(cpu *Cpu) { cpu.Flags.SetCF(!cpu.Flags.CF()) }))
	define(flagOp("CLD", func(cpu *Cpu) { cpu.Flags.SetDF(false) }))
	define(flagOp("STD", func(cpu *Cpu) { cpu.Flags.SetDF(true) }))
	define(flagOp("CLI", func(cpu *Cpu) { cpu.Flags.SetIF(false) }))
	define(flagOp("STI", func(cpu *Cpu) { cpu.Flags.SetIF(true) }))
	define(flagOp("LAHF", func(cpu *Cpu) { REG_AH.Set(cpu, uint64(cpu.Flags.Status())) }))
	define(flagOp("SAHF", func(cpu *Cpu) { cpu.Flags.Overlay(uint8(REG_AH.Get(cpu))) }))

	define(flagOp("NOP", func(cpu *Cpu) {}))
	define(flagOp("CBW", func(cpu *Cpu) {
		REG_AX.Set(cpu, uint64(signExtend(REG_AL.Get(cpu), WIDTH_BYTE)))
	}))
	define(flagOp("CWD", func(cpu *Cpu) {
		REG_DX.Set(cpu, uint64(signExtend(REG_AX.Get(cpu), WIDTH_WORD)>>16))
	}))
	define(flagOp("CWDE", func(cpu *Cpu) {
		REG_EAX.Set(cpu, uint64(signExtend(REG_AX.Get(cpu), WIDTH_WORD)))
	}))
	define(flagOp("CDQ", func(cpu *Cpu) {
		REG_EDX.Set(cpu, uint64(signExtend(REG_EAX.Get(cpu), WIDTH_DWORD)>>32))
	}))

	define(&Opcode{
		Name:     "MOV",
		Validate: validateMove,
		Execute: func(cpu *Cpu, ops []Operand) error {
			return binary(cpu, ops, func(dst Writable, src Operand, w Width) {
				dst.Set(cpu, src.Get(cpu))
			})
		},
	})
	define(&Opcode{
		Name:     "XCHG",
		Validate: validateExchange,
		Execute: func(cpu *Cpu, ops []Operand) error {
			return binary(cpu, ops, func(dst Writable, src Operand, w Width) {
				value := dst.Get(cpu)
				dst.Set(cpu, src.Get(cpu))
				src.(Writable).Set(cpu, value)
			})
		},
	})
	define(&Opcode{
		Name:     "LEA",
		Validate: validateLoad,
		Execute: func(cpu *Cpu, ops []Operand) error {
			ops[0].(Register).Set(cpu, uint64(ops[1].(MemoryPointer).Reference.Offset(cpu)))
			return nil
		},
	})
	define(loadPointer("LDS", REG_DS))
	define(loadPointer("LES", REG_ES))
	define(loadPointer("LFS", REG_FS))
	define(loadPointer("LGS", REG_GS))
	define(loadPointer("LSS", REG_SS))
}
