package cpu

// Push stores a value at SS:SP-size and moves SP down.
func (cpu *Cpu) Push(value uint64, w Width) {
	sp := cpu.Registers.Add(REG_SP, -w.Bytes())
	cpu.store(uint16(cpu.Registers.Get(REG_SS)), uint16(sp), w, value)
}

// Pop loads a value from SS:SP and moves SP up.
func (cpu *Cpu) Pop(w Width) (value uint64) {
	sp := cpu.Registers.Get(REG_SP)
	value = cpu.load(uint16(cpu.Registers.Get(REG_SS)), uint16(sp), w)
	cpu.Registers.Add(REG_SP, w.Bytes())
	return
}

// stackWidth is the width pushed or popped for an operand.
func stackWidth(op Operand) Width {
	switch op := op.(type) {
	case Immediate:
		if fits(op.Value, WIDTH_WORD) {
			return WIDTH_WORD
		}
		return WIDTH_DWORD
	case Label:
		return WIDTH_WORD
	}
	if op.Size() == WIDTH_NONE {
		return WIDTH_WORD
	}
	return op.Size()
}

func validatePush(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	if _, ok := ops[0].(Text); ok {
		return ErrInvalidArgument
	}
	switch stackWidth(ops[0]) {
	case WIDTH_WORD, WIDTH_DWORD:
	default:
		err = ErrOperandSize
	}
	return
}

func validatePop(ops []Operand) (err error) {
	if err = count(ops, 1); err != nil {
		return
	}
	if err = destination(ops[0]); err != nil {
		return
	}
	if ops[0] == REG_CS {
		return ErrInvalidRegisterUsage
	}
	switch stackWidth(ops[0]) {
	case WIDTH_WORD, WIDTH_DWORD:
	default:
		err = ErrOperandSize
	}
	return
}

func init() {
	define(&Opcode{
		Name:     "PUSH",
		Validate: validatePush,
		Execute: func(cpu *Cpu, ops []Operand) error {
			w := stackWidth(ops[0])
			cpu.Push(withWidth(ops[0], w).Get(cpu), w)
			return nil
		},
	})
	define(&Opcode{
		Name:     "POP",
		Validate: validatePop,
		Execute: func(cpu *Cpu, ops []Operand) error {
			w := stackWidth(ops[0])
			withWidth(ops[0], w).(Writable).Set(cpu, cpu.Pop(w))
			return nil
		},
	})
	define(flagOp("PUSHF", func(cpu *Cpu) { cpu.Push(uint64(cpu.Flags.Get()), WIDTH_WORD) }))
	define(flagOp("POPF", func(cpu *Cpu) { cpu.Flags.Set(uint16(cpu.Pop(WIDTH_WORD))) }))
}
