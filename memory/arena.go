package memory

import (
	"slices"
)

const (
	ARENA_START = 0x1000 // First paragraph handed out by the default arena.
	ARENA_END   = 0xA000 // Conventional memory ends where video memory begins.
)

// block is a run of allocated paragraphs.
type block struct {
	Segment    uint16
	Paragraphs int
}

// Arena hands out paragraph-aligned blocks from [Start, End).
type Arena struct {
	Start uint16 // First segment of the arena.
	End   uint16 // Segment past the arena.

	blocks []block // Allocated blocks, ordered by segment.
}

// NewArena creates an arena over the segment range [start, end) of mem.
func NewArena(mem *Memory, start, end uint16) (arena *Arena, err error) {
	if end <= start {
		err = ErrArenaInvalid
		return
	}
	if Physical(end, 0) > mem.Size() {
		err = ErrArenaOverflow
		return
	}

	arena = &Arena{Start: start, End: end}
	return
}

// Reset releases every block.
func (arena *Arena) Reset() {
	arena.blocks = arena.blocks[:0]
}

// Paragraphs converts a byte count to whole paragraphs.
func Paragraphs(size int) int {
	return (size + PARAGRAPH - 1) / PARAGRAPH
}

// Allocate reserves room for size bytes, returning the first segment of the
// block. The first block that fits is used.
func (arena *Arena) Allocate(size int) (segment uint16, err error) {
	need := Paragraphs(size)
	if need == 0 {
		need = 1
	}

	next := int(arena.Start)
	for n, blk := range arena.blocks {
		if int(blk.Segment)-next >= need {
			segment = uint16(next)
			arena.blocks = slices.Insert(arena.blocks, n, block{Segment: segment, Paragraphs: need})
			return
		}
		next = int(blk.Segment) + blk.Paragraphs
	}

	if int(arena.End)-next < need {
		err = ErrOutOfMemory
		return
	}

	segment = uint16(next)
	arena.blocks = append(arena.blocks, block{Segment: segment, Paragraphs: need})
	return
}

// Free releases the block starting at segment.
func (arena *Arena) Free(segment uint16) (err error) {
	n := slices.IndexFunc(arena.blocks, func(blk block) bool { return blk.Segment == segment })
	if n < 0 {
		err = ErrArenaInvalid
		return
	}

	arena.blocks = slices.Delete(arena.blocks, n, n+1)
	return
}

// Largest returns the largest number of free paragraphs in one run.
func (arena *Arena) Largest() (paragraphs int) {
	next := int(arena.Start)
	for _, blk := range arena.blocks {
		paragraphs = max(paragraphs, int(blk.Segment)-next)
		next = int(blk.Segment) + blk.Paragraphs
	}
	paragraphs = max(paragraphs, int(arena.End)-next)
	return
}
