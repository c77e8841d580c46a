package cpu

import (
	"iter"
)

// Code is one assembled instruction or data item.
type Code struct {
	Ip          uint32      // Offset of the first byte.
	Instruction Instruction // Decoded form.
	Bytes       []byte      // Machine code.
}

// Line is a source line and the code assembled from it.
type Line struct {
	LineNo int
	Text   string
	Codes  []Code
}

// Program is an assembled listing; it is the instruction source of the
// processor.
type Program struct {
	Lines []Line

	index map[uint32][2]int // Code offset to line and code index.
}

type Debug struct {
	*Line
	Index int
}

func (prog *Program) reindex() {
	prog.index = make(map[uint32][2]int)
	for ln, line := range prog.Lines {
		for n, code := range line.Codes {
			if len(code.Bytes) != 0 {
				prog.index[code.Ip] = [2]int{ln, n}
			}
		}
	}
}

func (prog *Program) lookup(ip uint32) (code *Code, line *Line, ok bool) {
	if prog.index == nil {
		prog.reindex()
	}
	at, ok := prog.index[ip]
	if !ok {
		return
	}
	line = &prog.Lines[at[0]]
	code = &line.Codes[at[1]]
	return
}

// Fetch returns the instruction assembled at ip.
func (prog *Program) Fetch(ip uint32) (inst Instruction, next uint32, err error) {
	code, _, ok := prog.lookup(ip)
	if !ok {
		err = ErrIpEmpty
		return
	}

	inst = code.Instruction
	next = ip + uint32(len(code.Bytes))
	return
}

// Debug finds the source line of the code at ip.
func (prog *Program) Debug(ip uint32) (dbg Debug) {
	for n := range prog.Lines {
		line := &prog.Lines[n]
		for index, code := range line.Codes {
			if ip >= code.Ip && ip < code.Ip+uint32(len(code.Bytes)) {
				dbg = Debug{
					Line:  line,
					Index: index,
				}
				return
			}
		}
	}

	return
}

// Origin is the lowest code offset.
func (prog *Program) Origin() (origin uint32) {
	first := true
	for ip := range prog.Codes() {
		if first || ip < origin {
			origin = ip
			first = false
		}
	}
	return
}

// Binary returns the machine code from Origin() to the end of the last
// code; gaps are zero filled.
func (prog *Program) Binary() (bins []byte) {
	origin := prog.Origin()
	for ip, code := range prog.Codes() {
		end := int(ip-origin) + len(code.Bytes)
		if end > len(bins) {
			bins = append(bins, make([]byte, end-len(bins))...)
		}
		copy(bins[ip-origin:], code.Bytes)
	}

	return
}

// Codes iterates over every code in source order.
func (prog *Program) Codes() iter.Seq2[uint32, Code] {
	return func(yield func(ip uint32, code Code) bool) {
		for _, line := range prog.Lines {
			for _, code := range line.Codes {
				if !yield(code.Ip, code) {
					return
				}
			}
		}
	}
}
