package cpu

// advance steps SI or DI by one element in the DF direction.
func (cpu *Cpu) advance(reg Register, w Width) {
	delta := w.Bytes()
	if cpu.Flags.DF() {
		delta = -delta
	}
	cpu.Registers.Add(reg, delta)
}

// readSource is the DS:SI element, honoring any segment override.
func (cpu *Cpu) readSource(w Width) uint64 {
	return cpu.load(cpu.DataSegment(), uint16(cpu.Registers.Get(REG_SI)), w)
}

// readDestination is the ES:DI element.
func (cpu *Cpu) readDestination(w Width) uint64 {
	return cpu.load(uint16(cpu.Registers.Get(REG_ES)), uint16(cpu.Registers.Get(REG_DI)), w)
}

func (cpu *Cpu) writeDestination(w Width, value uint64) {
	cpu.store(uint16(cpu.Registers.Get(REG_ES)), uint16(cpu.Registers.Get(REG_DI)), w, value)
}

// stringOp defines the byte, word and double word forms of a string
// operation, named by suffixing B, W and D.
func stringOp(name string, compare bool, fn func(cpu *Cpu, w Width)) {
	for suffix, w := range map[string]Width{"B": WIDTH_BYTE, "W": WIDTH_WORD, "D": WIDTH_DWORD} {
		define(&Opcode{
			Name:     name + suffix,
			Validate: validateNone,
			str:      true,
			compare:  compare,
			Execute: func(cpu *Cpu, ops []Operand) error {
				fn(cpu, w)
				return nil
			},
		})
	}
}

func init() {
	stringOp("MOVS", false, func(cpu *Cpu, w Width) {
		cpu.writeDestination(w, cpu.readSource(w))
		cpu.advance(REG_SI, w)
		cpu.advance(REG_DI, w)
	})
	stringOp("CMPS", true, func(cpu *Cpu, w Width) {
		cpu.Flags.Compare(cpu.readSource(w), cpu.readDestination(w), w)
		cpu.advance(REG_SI, w)
		cpu.advance(REG_DI, w)
	})
	stringOp("SCAS", true, func(cpu *Cpu, w Width) {
		acc, _ := accumulator(w)
		cpu.Flags.Compare(acc.Get(cpu), cpu.readDestination(w), w)
		cpu.advance(REG_DI, w)
	})
	stringOp("STOS", false, func(cpu *Cpu, w Width) {
		acc, _ := accumulator(w)
		cpu.writeDestination(w, acc.Get(cpu))
		cpu.advance(REG_DI, w)
	})
	stringOp("LODS", false, func(cpu *Cpu, w Width) {
		acc, _ := accumulator(w)
		acc.Set(cpu, cpu.readSource(w))
		cpu.advance(REG_SI, w)
	})
}
