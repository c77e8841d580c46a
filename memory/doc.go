// Package memory implements the real-mode linear memory of the emulated
// machine.
//
// Memory is a flat byte store addressed as segment*0x10+offset. Offsets wrap
// inside their 64K segment, so a word written at offset 0xFFFF places its
// high byte at offset 0x0000 of the same segment. The store is safe to read
// from a rendering goroutine while the CPU goroutine writes it: every cell is
// published atomically, although a multi-byte value may be observed half
// written.
package memory
