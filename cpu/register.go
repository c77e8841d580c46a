package cpu

import (
	"strings"
)

// Width is an operand width in bits.
type Width int

const (
	WIDTH_NONE  = Width(0)  // Not yet known.
	WIDTH_BYTE  = Width(8)  // BYTE
	WIDTH_WORD  = Width(16) // WORD
	WIDTH_DWORD = Width(32) // DWORD
	WIDTH_QWORD = Width(64) // QWORD
)

// Mask returns the value mask of the width.
func (w Width) Mask() uint64 {
	if w >= WIDTH_QWORD {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// Msb returns the sign bit of the width.
func (w Width) Msb() uint64 {
	if w == WIDTH_NONE {
		return 0
	}
	return uint64(1) << (w - 1)
}

// Bytes returns the width in bytes.
func (w Width) Bytes() int {
	return int(w) / 8
}

func (w Width) String() string {
	switch w {
	case WIDTH_BYTE:
		return "BYTE"
	case WIDTH_WORD:
		return "WORD"
	case WIDTH_DWORD:
		return "DWORD"
	case WIDTH_QWORD:
		return "QWORD"
	}
	return "?"
}

// signExtend interprets the low w bits of value as signed.
func signExtend(value uint64, w Width) int64 {
	if w >= WIDTH_QWORD {
		return int64(value)
	}
	shift := 64 - uint(w)
	return int64(value<<shift) >> shift
}

// Register names one of the processor registers.
type Register int

const (
	REG_NONE = Register(iota)

	// 8-bit, in machine-code order.
	REG_AL
	REG_CL
	REG_DL
	REG_BL
	REG_AH
	REG_CH
	REG_DH
	REG_BH

	// 16-bit, in machine-code order.
	REG_AX
	REG_CX
	REG_DX
	REG_BX
	REG_SP
	REG_BP
	REG_SI
	REG_DI

	// 32-bit, in machine-code order.
	REG_EAX
	REG_ECX
	REG_EDX
	REG_EBX
	REG_ESP
	REG_EBP
	REG_ESI
	REG_EDI

	// Segment registers, in machine-code order.
	REG_ES
	REG_CS
	REG_SS
	REG_DS
	REG_FS
	REG_GS
)

var registerNames = [...]string{
	REG_NONE: "",
	REG_AL:   "AL", REG_CL: "CL", REG_DL: "DL", REG_BL: "BL",
	REG_AH: "AH", REG_CH: "CH", REG_DH: "DH", REG_BH: "BH",
	REG_AX: "AX", REG_CX: "CX", REG_DX: "DX", REG_BX: "BX",
	REG_SP: "SP", REG_BP: "BP", REG_SI: "SI", REG_DI: "DI",
	REG_EAX: "EAX", REG_ECX: "ECX", REG_EDX: "EDX", REG_EBX: "EBX",
	REG_ESP: "ESP", REG_EBP: "EBP", REG_ESI: "ESI", REG_EDI: "EDI",
	REG_ES: "ES", REG_CS: "CS", REG_SS: "SS", REG_DS: "DS",
	REG_FS: "FS", REG_GS: "GS",
}

// registerMap maps upper-case register names to registers.
var registerMap = map[string]Register{}

func init() {
	for reg, name := range registerNames {
		if len(name) != 0 {
			registerMap[name] = Register(reg)
		}
	}
}

// LookupRegister finds a register by name, ignoring case.
func LookupRegister(name string) (reg Register, ok bool) {
	reg, ok = registerMap[strings.ToUpper(name)]
	return
}

func (reg Register) String() string {
	if reg < 0 || int(reg) >= len(registerNames) {
		return "?"
	}
	return registerNames[reg]
}

// Width returns the width of the register.
func (reg Register) Width() Width {
	switch {
	case reg >= REG_AL && reg <= REG_BH:
		return WIDTH_BYTE
	case reg >= REG_AX && reg <= REG_DI:
		return WIDTH_WORD
	case reg >= REG_EAX && reg <= REG_EDI:
		return WIDTH_DWORD
	case reg >= REG_ES && reg <= REG_GS:
		return WIDTH_WORD
	}
	return WIDTH_NONE
}

// Code returns the 3-bit machine code of the register.
func (reg Register) Code() byte {
	switch {
	case reg >= REG_AL && reg <= REG_BH:
		return byte(reg - REG_AL)
	case reg >= REG_AX && reg <= REG_DI:
		return byte(reg - REG_AX)
	case reg >= REG_EAX && reg <= REG_EDI:
		return byte(reg - REG_EAX)
	case reg >= REG_ES && reg <= REG_GS:
		return byte(reg - REG_ES)
	}
	return 0
}

// IsSegment is true for ES, CS, SS, DS, FS and GS.
func (reg Register) IsSegment() bool {
	return reg >= REG_ES && reg <= REG_GS
}

// IsGeneral is true for the 8, 16 and 32-bit general-purpose registers.
func (reg Register) IsGeneral() bool {
	return reg >= REG_AL && reg <= REG_EDI
}

// High returns the upper 8-bit half of AX, CX, DX or BX.
func (reg Register) High() Register {
	if reg >= REG_AX && reg <= REG_BX {
		return REG_AH + (reg - REG_AX)
	}
	return REG_NONE
}

// Low returns the lower 8-bit half of AX, CX, DX or BX.
func (reg Register) Low() Register {
	if reg >= REG_AX && reg <= REG_BX {
		return REG_AL + (reg - REG_AX)
	}
	return REG_NONE
}

// Size is the operand width of the register.
func (reg Register) Size() Width {
	return reg.Width()
}

// Get reads the register.
func (reg Register) Get(cpu *Cpu) uint64 {
	return uint64(cpu.Registers.Get(reg))
}

// Set writes the register.
func (reg Register) Set(cpu *Cpu, value uint64) {
	cpu.Registers.Set(reg, uint32(value))
}

// Registers is the register bank.
type Registers struct {
	General [8]uint32 // EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI
	Segment [6]uint16 // ES, CS, SS, DS, FS, GS
}

// Reset clears every register.
func (regs *Registers) Reset() {
	clear(regs.General[:])
	clear(regs.Segment[:])
}

// Get reads a register, zero extended.
func (regs *Registers) Get(reg Register) (value uint32) {
	code := reg.Code()
	switch {
	case reg >= REG_AL && reg <= REG_BL:
		value = regs.General[code] & 0xff
	case reg >= REG_AH && reg <= REG_BH:
		value = (regs.General[code-4] >> 8) & 0xff
	case reg >= REG_AX && reg <= REG_DI:
		value = regs.General[code] & 0xffff
	case reg >= REG_EAX && reg <= REG_EDI:
		value = regs.General[code]
	case reg.IsSegment():
		value = uint32(regs.Segment[code])
	}
	return
}

// Set writes a register; only the bits of the register's width change.
func (regs *Registers) Set(reg Register, value uint32) {
	code := reg.Code()
	switch {
	case reg >= REG_AL && reg <= REG_BL:
		regs.General[code] = (regs.General[code] &^ 0xff) | (value & 0xff)
	case reg >= REG_AH && reg <= REG_BH:
		regs.General[code-4] = (regs.General[code-4] &^ 0xff00) | ((value & 0xff) << 8)
	case reg >= REG_AX && reg <= REG_DI:
		regs.General[code] = (regs.General[code] &^ 0xffff) | (value & 0xffff)
	case reg >= REG_EAX && reg <= REG_EDI:
		regs.General[code] = value
	case reg.IsSegment():
		regs.Segment[code] = uint16(value)
	}
}

// Add adds delta to a register, wrapping at its width, and returns the new
// value.
func (regs *Registers) Add(reg Register, delta int) (value uint32) {
	value = uint32(uint64(int64(regs.Get(reg))+int64(delta)) & reg.Width().Mask())
	regs.Set(reg, value)
	return
}
