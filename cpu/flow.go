package cpu

// Condition is a conditional jump predicate and its 4-bit condition code.
type Condition struct {
	Code  byte              // Low nibble of the Jcc opcode byte.
	Names []string          // Mnemonics, canonical name first.
	Taken func(*Flags) bool // Predicate over the current flags.
}

// Conditions are the Jcc predicates, indexed by condition code.
var Conditions = [16]Condition{
	{0x0, []string{"JO"}, func(fl *Flags) bool { return fl.OF() }},
	{0x1, []string{"JNO"}, func(fl *Flags) bool { return !fl.OF() }},
	{0x2, []string{"JB", "JC", "JNAE"}, func(fl *Flags) bool { return fl.CF() }},
	{0x3, []string{"JAE", "JNC", "JNB"}, func(fl *Flags) bool { return !fl.CF() }},
	{0x4, []string{"JE", "JZ"}, func(fl *Flags) bool { return fl.ZF() }},
	{0x5, []string{"JNE", "JNZ"}, func(fl *Flags) bool { return !fl.ZF() }},
	{0x6, []string{"JBE", "JNA"}, func(fl *Flags) bool { return fl.CF() || fl.ZF() }},
	{0x7, []string{"JA", "JNBE"}, func(fl *Flags) bool { return !fl.CF() && !fl.ZF() }},
	{0x8, []string{"JS"}, func(fl *Flags) bool { return fl.SF() }},
	{0x9, []string{"JNS"}, func(fl *Flags) bool { return !fl.SF() }},
	{0xa, []string{"JPE", "JP"}, func(fl *Flags) bool { return fl.PF() }},
	{0xb, []string{"JPO", "JNP"}, func(fl *Flags) bool { return !fl.PF() }},
	{0xc, []string{"JL", "JNGE"}, func(fl *Flags) bool { return fl.SF() != fl.OF() }},
	{0xd, []string{"JGE", "JNL"}, func(fl *Flags) bool { return fl.SF() == fl.OF() }},
	{0xe, []string{"JLE", "JNG"}, func(fl *Flags) bool { return fl.ZF() || fl.SF() != fl.OF() }},
	{0xf, []string{"JG", "JNLE"}, func(fl *Flags) bool { return !fl.ZF() && fl.SF() == fl.OF() }},
}

// conditionMap maps Jcc mnemonics to condition codes.
var conditionMap = map[string]byte{}

// LookupCondition finds the condition code of a Jcc mnemonic.
func LookupCondition(name string) (code byte, ok bool) {
	code, ok = conditionMap[name]
	return
}

// validateTarget checks a jump or call destination.
func validateTarget(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	if _, ok := ops[0].(Text); ok {
		return ErrInvalidArgument
	}
	if err = generalOnly(ops[0]); err != nil {
		return
	}
	if reg, ok := asRegister(ops[0]); ok && reg.Width() == WIDTH_BYTE {
		return ErrOperandSize
	}
	return
}

// target reads the destination offset of a jump or call.
func target(cpu *Cpu, op Operand) uint32 {
	return uint32(withWidth(op, WIDTH_WORD).Get(cpu))
}

// jump redirects IP to its operand when taken is true.
func jump(name string, taken func(cpu *Cpu) bool) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateTarget,
		Execute: func(cpu *Cpu, ops []Operand) error {
			if taken(cpu) {
				cpu.Ip = target(cpu, ops[0])
			}
			return nil
		},
	}
}

// loop decrements CX and jumps while it is not zero and, for the
// conditional forms, while ZF equals zf.
func loop(name string, checkZF, zf bool) *Opcode {
	return jump(name, func(cpu *Cpu) bool {
		cx := cpu.Registers.Add(REG_CX, -1)
		return cx != 0 && (!checkZF || cpu.Flags.ZF() == zf)
	})
}

func validateReturn(ops []Operand) (err error) {
	if err = count(ops, 0, 1); err != nil {
		return
	}
	if len(ops) == 1 {
		imm, ok := ops[0].(Immediate)
		if !ok {
			return ErrInvalidArgument
		}
		if !fits(imm.Value, WIDTH_WORD) {
			return ErrOperandSize
		}
	}
	return
}

func validateInterrupt(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	imm, ok := ops[0].(Immediate)
	if !ok {
		return ErrInvalidArgument
	}
	if imm.Value < 0 || imm.Value > 0xff {
		return ErrOperandSize
	}
	return
}

// repeat is a REP prefix. It fetches the next instruction, which must be
// a string operation, and runs it until CX is zero. For comparisons the
// loop also stops when ZF differs from zf.
func repeat(name string, zf bool) *Opcode {
	return &Opcode{
		Name:     name,
		Validate: validateNone,
		prefix:   true,
		Execute: func(cpu *Cpu, ops []Operand) (err error) {
			inst, err := cpu.fetchNext()
			if err != nil {
				return
			}
			op, ok := LookupOpcode(inst.Name)
			if !ok || !op.str {
				err = malformed(ErrInvalidArgument)
				return
			}
			for cpu.Registers.Get(REG_CX) != 0 {
				err = cpu.dispatch(inst)
				if err != nil {
					return
				}
				cpu.Registers.Add(REG_CX, -1)
				if op.compare && cpu.Flags.ZF() != zf {
					break
				}
			}
			return
		},
	}
}

// segmentOverride substitutes a segment register for the data segment
// during the next fetched instruction.
func segmentOverride(segment Register) *Opcode {
	return &Opcode{
		Name:     segment.String() + ":",
		Validate: validateNone,
		prefix:   true,
		Execute: func(cpu *Cpu, ops []Operand) (err error) {
			inst, err := cpu.fetchNext()
			if err != nil {
				return
			}
			return cpu.withOverride(segment, func() error {
				return cpu.dispatch(inst)
			})
		},
	}
}

func init() {
	for _, cond := range Conditions {
		taken := cond.Taken
		define(jump(cond.Names[0], func(cpu *Cpu) bool { return taken(&cpu.Flags) }), cond.Names[1:]...)
		for _, name := range cond.Names {
			conditionMap[name] = cond.Code
		}
	}

	define(jump("JMP", func(cpu *Cpu) bool { return true }))
	define(jump("JCXZ", func(cpu *Cpu) bool { return cpu.Registers.Get(REG_CX) == 0 }))
	define(jump("JECXZ", func(cpu *Cpu) bool { return cpu.Registers.Get(REG_ECX) == 0 }))

	define(loop("LOOP", false, false))
	define(loop("LOOPE", true, true), "LOOPZ")
	define(loop("LOOPNE", true, false), "LOOPNZ")

	define(&Opcode{
		Name:     "CALL",
		Validate: validateTarget,
		Execute: func(cpu *Cpu, ops []Operand) error {
			dest := target(cpu, ops[0])
			cpu.Push(uint64(cpu.Ip), WIDTH_WORD)
			cpu.Ip = dest
			return nil
		},
	})
	define(&Opcode{
		Name:     "RET",
		Validate: validateReturn,
		Execute: func(cpu *Cpu, ops []Operand) error {
			cpu.Ip = uint32(cpu.Pop(WIDTH_WORD))
			if len(ops) == 1 {
				cpu.Registers.Add(REG_SP, int(ops[0].Get(cpu)&0xffff))
			}
			return nil
		},
	})
	define(&Opcode{
		Name:     "INT",
		Validate: validateInterrupt,
		Execute: func(cpu *Cpu, ops []Operand) error {
			if cpu.Interrupt == nil {
				return ErrNoInterrupt
			}
			return cpu.Interrupt(cpu, uint8(ops[0].Get(cpu)))
		},
	})

	define(repeat("REP", true), "REPE", "REPZ")
	define(repeat("REPNE", false), "REPNZ")

	for _, segment := range []Register{REG_ES, REG_CS, REG_SS, REG_DS, REG_FS, REG_GS} {
		define(segmentOverride(segment))
	}
}
