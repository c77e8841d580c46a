package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/ldaniels528/virtual88/memory"
)

// InstructionSource supplies decoded instructions by code offset.
type InstructionSource interface {
	// Fetch returns the instruction at ip and the offset following it.
	Fetch(ip uint32) (inst Instruction, next uint32, err error)
}

// InterruptHandler services the INT instruction.
type InterruptHandler func(cpu *Cpu, vector uint8) error

var _cpu_defines = map[string]string{
	"FLAG_CF":      fmt.Sprintf("0x%x", FLAG_CF),
	"FLAG_PF":      fmt.Sprintf("0x%x", FLAG_PF),
	"FLAG_AF":      fmt.Sprintf("0x%x", FLAG_AF),
	"FLAG_ZF":      fmt.Sprintf("0x%x", FLAG_ZF),
	"FLAG_SF":      fmt.Sprintf("0x%x", FLAG_SF),
	"FLAG_TF":      fmt.Sprintf("0x%x", FLAG_TF),
	"FLAG_IF":      fmt.Sprintf("0x%x", FLAG_IF),
	"FLAG_DF":      fmt.Sprintf("0x%x", FLAG_DF),
	"FLAG_OF":      fmt.Sprintf("0x%x", FLAG_OF),
	"FLAG_AH_MASK": fmt.Sprintf("0x%x", FLAG_AH_MASK),
}

// Cpu is the simulation context of the processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Registers Registers      // Register bank.
	Flags     Flags          // FLAGS register.
	Memory    *memory.Memory // Linear memory.
	Ip        uint32         // Offset of the next instruction.

	Source    InstructionSource // Where instructions are fetched from.
	Interrupt InterruptHandler  // INT service, or nil.

	Ticks int // Executed instruction counter.

	override Register // Active segment override, or REG_NONE.
}

// NewCpu creates a CPU attached to a memory.
func NewCpu(mem *memory.Memory) (cpu *Cpu) {
	cpu = &Cpu{
		Memory: mem,
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []Register{
		REG_EAX, REG_EBX, REG_ECX, REG_EDX,
		REG_ESP, REG_EBP, REG_ESI, REG_EDI,
		REG_CS, REG_DS, REG_ES, REG_SS, REG_FS, REG_GS,
	}
	for _, reg := range regs {
		val := cpu.Registers.Get(reg)
		var strval string
		if reg.IsSegment() {
			strval = fmt.Sprintf("%04X", val)
		} else {
			strval = fmt.Sprintf("%04X_%04X", val>>16, val&0xffff)
		}
		text += fmt.Sprintf("% 5s: %v\n", strings.ToLower(reg.String()), strval)
	}

	text += fmt.Sprintf("% 5s: %04X\n", "ip", cpu.Ip)

	var flags []byte
	for n, name := range "ODITSZAPC" {
		bit := []uint16{FLAG_OF, FLAG_DF, FLAG_IF, FLAG_TF, FLAG_SF, FLAG_ZF, FLAG_AF, FLAG_PF, FLAG_CF}[n]
		if cpu.Flags.Word&bit != 0 {
			flags = append(flags, byte(name))
		} else {
			flags = append(flags, '-')
		}
	}
	text += fmt.Sprintf("% 5s: %s\n", "flags", flags)

	return
}

// Reset the CPU state.
// - Clears the registers and flags.
// - Zeros the instruction pointer and tick counter.
// - Drops any segment override.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.Registers.Reset()
	cpu.Flags.Reset()
	cpu.Ip = 0
	cpu.Ticks = 0
	cpu.override = REG_NONE
}

// DataSegment is the segment of memory operands: DS, unless an override
// is active.
func (cpu *Cpu) DataSegment() uint16 {
	if cpu.override != REG_NONE {
		return uint16(cpu.Registers.Get(cpu.override))
	}
	return uint16(cpu.Registers.Get(REG_DS))
}

// withOverride runs fn with segment as the data segment. The previous
// data segment is restored on every exit path, including panics.
func (cpu *Cpu) withOverride(segment Register, fn func() error) error {
	prior := cpu.override
	cpu.override = segment
	defer func() { cpu.override = prior }()

	return fn()
}

// fetch reads the instruction at IP and advances IP past it.
func (cpu *Cpu) fetch() (inst Instruction, err error) {
	if cpu.Source == nil {
		err = ErrIpEmpty
		return
	}

	inst, next, err := cpu.Source.Fetch(cpu.Ip)
	if err != nil {
		return
	}

	cpu.Ip = next
	return
}

// fetchNext reads the instruction decorated by a prefix.
func (cpu *Cpu) fetchNext() (inst Instruction, err error) {
	inst, err = cpu.fetch()
	if errors.Is(err, ErrIpEmpty) {
		err = ErrIllegalState
	}
	return
}

// Tick fetches and executes a single instruction.
func (cpu *Cpu) Tick() (err error) {
	ip := cpu.Ip

	inst, err := cpu.fetch()
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("cpu: %04x: %v", ip, inst)
	}

	err = cpu.Execute(inst)
	if err != nil {
		err = errors.Join(ErrOpcode{Ip: ip, Instruction: inst}, err)
		return
	}

	cpu.Ticks += 1

	return
}

// Execute runs one instruction against the current state. Memory range
// faults are returned as memory.ErrAddressRange.
func (cpu *Cpu) Execute(inst Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(memory.ErrAddressRange)
			if !ok {
				panic(r)
			}
			err = fault
		}
	}()

	return cpu.dispatch(inst)
}

// dispatch validates and runs an instruction.
func (cpu *Cpu) dispatch(inst Instruction) (err error) {
	op, ok := LookupOpcode(inst.Name)
	if !ok {
		err = ErrUnhandledOpcode
		return
	}

	err = op.Validate(inst.Operands)
	if err != nil {
		err = malformed(err)
		return
	}

	return op.Execute(cpu, inst.Operands)
}

// load reads a sized value from memory.
func (cpu *Cpu) load(segment, offset uint16, w Width) (value uint64) {
	switch w {
	case WIDTH_BYTE:
		value = uint64(cpu.Memory.GetByte(segment, offset))
	case WIDTH_WORD:
		value = uint64(cpu.Memory.GetWord(segment, offset))
	case WIDTH_DWORD:
		value = uint64(cpu.Memory.GetDoubleWord(segment, offset))
	case WIDTH_QWORD:
		value = cpu.Memory.GetQuadWord(segment, offset)
	}
	return
}

// store writes a sized value to memory.
func (cpu *Cpu) store(segment, offset uint16, w Width, value uint64) {
	switch w {
	case WIDTH_BYTE:
		cpu.Memory.SetByte(segment, offset, uint8(value))
	case WIDTH_WORD:
		cpu.Memory.SetWord(segment, offset, uint16(value))
	case WIDTH_DWORD:
		cpu.Memory.SetDoubleWord(segment, offset, uint32(value))
	case WIDTH_QWORD:
		cpu.Memory.SetQuadWord(segment, offset, value)
	}
}
