package memory

import (
	"encoding/binary"
	"sync/atomic"
)

const (
	SIZE      = 0x110000 // Reach of 0xFFFF:0xFFFF, including the high memory area.
	PARAGRAPH = 0x10     // Bytes per segment step.
)

// Physical returns the physical address of segment:offset.
func Physical(segment, offset uint16) int {
	return int(segment)*PARAGRAPH + int(offset)
}

// Memory is the segment:offset addressable byte store.
type Memory struct {
	size  int
	cells []atomic.Uint32 // Four bytes per cell, little-endian lanes.
}

// NewMemory creates a zeroed memory of size bytes.
func NewMemory(size int) (mem *Memory) {
	mem = &Memory{
		size:  size,
		cells: make([]atomic.Uint32, (size+3)/4),
	}

	return
}

// Size returns the size of the backing store in bytes.
func (mem *Memory) Size() int {
	return mem.size
}

// Reset zeros the whole store.
func (mem *Memory) Reset() {
	for n := range mem.cells {
		mem.cells[n].Store(0)
	}
}

func (mem *Memory) physical(segment, offset uint16) int {
	addr := Physical(segment, offset)
	if addr >= mem.size {
		panic(ErrAddressRange{Segment: segment, Offset: offset})
	}
	return addr
}

func (mem *Memory) load(addr int) uint8 {
	return uint8(mem.cells[addr>>2].Load() >> ((addr & 3) * 8))
}

func (mem *Memory) store(addr int, value uint8) {
	cell := &mem.cells[addr>>2]
	shift := (addr & 3) * 8
	for {
		old := cell.Load()
		updated := (old &^ (0xff << shift)) | (uint32(value) << shift)
		if cell.CompareAndSwap(old, updated) {
			return
		}
	}
}

// GetByte reads the byte at segment:offset.
func (mem *Memory) GetByte(segment, offset uint16) uint8 {
	return mem.load(mem.physical(segment, offset))
}

// SetByte writes the byte at segment:offset.
func (mem *Memory) SetByte(segment, offset uint16, value uint8) {
	mem.store(mem.physical(segment, offset), value)
}

// SetBits ORs mask into the byte at segment:offset.
func (mem *Memory) SetBits(segment, offset uint16, mask uint8) {
	addr := mem.physical(segment, offset)
	mem.cells[addr>>2].Or(uint32(mask) << ((addr & 3) * 8))
}

// GetBytes reads length bytes starting at segment:offset.
func (mem *Memory) GetBytes(segment, offset uint16, length int) (data []byte) {
	data = make([]byte, length)
	for n := range data {
		data[n] = mem.GetByte(segment, offset+uint16(n))
	}
	return
}

// SetBytes writes data starting at segment:offset.
func (mem *Memory) SetBytes(segment, offset uint16, data []byte) {
	for n, value := range data {
		mem.SetByte(segment, offset+uint16(n), value)
	}
}

// GetWord reads a little-endian 16-bit value.
func (mem *Memory) GetWord(segment, offset uint16) uint16 {
	return binary.LittleEndian.Uint16(mem.GetBytes(segment, offset, 2))
}

// SetWord writes a little-endian 16-bit value.
func (mem *Memory) SetWord(segment, offset uint16, value uint16) {
	mem.SetBytes(segment, offset, binary.LittleEndian.AppendUint16(nil, value))
}

// GetDoubleWord reads a little-endian 32-bit value.
func (mem *Memory) GetDoubleWord(segment, offset uint16) uint32 {
	return binary.LittleEndian.Uint32(mem.GetBytes(segment, offset, 4))
}

// SetDoubleWord writes a little-endian 32-bit value.
func (mem *Memory) SetDoubleWord(segment, offset uint16, value uint32) {
	mem.SetBytes(segment, offset, binary.LittleEndian.AppendUint32(nil, value))
}

// GetQuadWord reads a little-endian 64-bit value.
func (mem *Memory) GetQuadWord(segment, offset uint16) uint64 {
	return binary.LittleEndian.Uint64(mem.GetBytes(segment, offset, 8))
}

// SetQuadWord writes a little-endian 64-bit value.
func (mem *Memory) SetQuadWord(segment, offset uint16, value uint64) {
	mem.SetBytes(segment, offset, binary.LittleEndian.AppendUint64(nil, value))
}

// GetString reads bytes from segment:offset up to (not including) the
// terminator, reading at most limit bytes.
func (mem *Memory) GetString(segment, offset uint16, terminator byte, limit int) string {
	var data []byte
	for n := range limit {
		value := mem.GetByte(segment, offset+uint16(n))
		if value == terminator {
			break
		}
		data = append(data, value)
	}
	return string(data)
}
