package cpu

import (
	"fmt"
	"strconv"
)

// Operand is a sized value an instruction reads.
type Operand interface {
	Size() Width         // Width of the operand, or WIDTH_NONE if not known.
	Get(cpu *Cpu) uint64 // Value, zero extended.
	String() string      // Assembler text of the operand.
}

// Writable is an operand an instruction can store to.
type Writable interface {
	Operand
	Set(cpu *Cpu, value uint64) // Stores the low Size() bits of value.
}

// Immediate is a constant operand.
type Immediate struct {
	Value int64
	Width Width
}

// NewImmediate returns an immediate with the smallest width holding value.
func NewImmediate(value int64) Immediate {
	w := WIDTH_QWORD
	switch {
	case fits(value, WIDTH_BYTE):
		w = WIDTH_BYTE
	case fits(value, WIDTH_WORD):
		w = WIDTH_WORD
	case fits(value, WIDTH_DWORD):
		w = WIDTH_DWORD
	}
	return Immediate{Value: value, Width: w}
}

// fits is true if value is representable in w bits, signed or unsigned.
func fits(value int64, w Width) bool {
	if w >= WIDTH_QWORD {
		return true
	}
	min := -int64(1) << (w - 1)
	max := int64(w.Mask())
	return value >= min && value <= max
}

// fitsSigned is true if value sign extends from w bits.
func fitsSigned(value int64, w Width) bool {
	if w >= WIDTH_QWORD {
		return true
	}
	min := -int64(1) << (w - 1)
	return value >= min && value < -min
}

func (imm Immediate) Size() Width {
	return imm.Width
}

func (imm Immediate) Get(cpu *Cpu) uint64 {
	return uint64(imm.Value)
}

func (imm Immediate) String() string {
	if imm.Value < 10 {
		return strconv.FormatInt(imm.Value, 10)
	}
	return fmt.Sprintf("0x%X", imm.Value)
}

// Label is a reference to an assembler label; its value is the label's
// code offset.
type Label struct {
	Name     string
	Offset   uint32
	Resolved bool // Offset is known.
	Near     bool // Referenced before its definition; encode as near.
}

func (lbl Label) Size() Width {
	return WIDTH_WORD
}

func (lbl Label) Get(cpu *Cpu) uint64 {
	return uint64(lbl.Offset)
}

func (lbl Label) String() string {
	return lbl.Name
}

// Text is a quoted string, only valid as data.
type Text string

func (text Text) Size() Width {
	return WIDTH_BYTE
}

func (text Text) Get(cpu *Cpu) uint64 {
	if len(text) == 0 {
		return 0
	}
	return uint64(text[0])
}

func (text Text) String() string {
	return strconv.Quote(string(text))
}

// MemoryPointer is a sized memory operand.
type MemoryPointer struct {
	Width     Width
	Reference MemoryReference
	Segment   Register // Explicit segment, or REG_NONE for the data segment.
}

func (mp MemoryPointer) Size() Width {
	return mp.Width
}

// Address resolves the segment and offset of the operand.
func (mp MemoryPointer) Address(cpu *Cpu) (segment, offset uint16) {
	offset = mp.Reference.Offset(cpu)
	if mp.Segment != REG_NONE {
		segment = uint16(cpu.Registers.Get(mp.Segment))
	} else {
		segment = cpu.DataSegment()
	}
	return
}

func (mp MemoryPointer) Get(cpu *Cpu) uint64 {
	segment, offset := mp.Address(cpu)
	return cpu.load(segment, offset, mp.Width)
}

func (mp MemoryPointer) Set(cpu *Cpu, value uint64) {
	segment, offset := mp.Address(cpu)
	cpu.store(segment, offset, mp.Width, value)
}

func (mp MemoryPointer) String() (text string) {
	if mp.Width != WIDTH_NONE {
		text = mp.Width.String() + " PTR "
	}
	if mp.Segment != REG_NONE {
		text += mp.Segment.String() + ":"
	}
	text += "[" + mp.Reference.String() + "]"
	return
}

// isMemory is true for memory operands.
func isMemory(op Operand) bool {
	_, ok := op.(MemoryPointer)
	return ok
}

// isImmediate is true for constant operands.
func isImmediate(op Operand) bool {
	switch op.(type) {
	case Immediate, Label, Text:
		return true
	}
	return false
}

// asRegister returns the register of a register operand.
func asRegister(op Operand) (reg Register, ok bool) {
	reg, ok = op.(Register)
	return
}
