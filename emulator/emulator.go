package emulator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ldaniels528/virtual88/cpu"
	"github.com/ldaniels528/virtual88/internal"
	"github.com/ldaniels528/virtual88/io"
	"github.com/ldaniels528/virtual88/memory"
)

const (
	CODE_SEGMENT = 0x1000 // Segment of code, data and stack.
	STACK_TOP    = 0xFFFE // Initial SP.
	HEAP_START   = 0x2000 // First segment handed out by INT 21h AH=48h.
	HEAP_END     = 0xA000 // Heap ends where video memory begins.
)

var _emulator_defines = map[string]string{
	"CODE_SEGMENT":  fmt.Sprintf("0x%04X", CODE_SEGMENT),
	"STACK_TOP":     fmt.Sprintf("0x%04X", STACK_TOP),
	"HEAP_START":    fmt.Sprintf("0x%04X", HEAP_START),
	"HEAP_END":      fmt.Sprintf("0x%04X", HEAP_END),
	"VIDEO_SEGMENT": fmt.Sprintf("0x%04X", io.VIDEO_SEGMENT),
	"STDIN":         fmt.Sprintf("%d", HANDLE_STDIN),
	"STDOUT":        fmt.Sprintf("%d", HANDLE_STDOUT),
	"STDERR":        fmt.Sprintf("%d", HANDLE_STDERR),
}

// Emulator state. CPU + memory + devices.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	Echo     bool         // If set, keyboard input is echoed to the display.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	Arena    *memory.Arena // Paragraph allocator for INT 21h AH=48h.
	Display  io.Display    // Video services.
	Keyboard io.Input      // Keyboard services.
	Storage  *io.Storage   // File services, or nil.

	ExitCode int // Return code of the terminate service.

	terminated bool
}

// NewEmulator creates a new emulator, with a terminal display that has
// no host output and an empty keyboard.
func NewEmulator() (emu *Emulator) {
	mem := memory.NewMemory(memory.SIZE)

	arena, err := memory.NewArena(mem, HEAP_START, HEAP_END)
	if err != nil {
		panic(err)
	}

	emu = &Emulator{
		Cpu:      cpu.NewCpu(mem),
		Program:  &cpu.Program{},
		Arena:    arena,
		Display:  io.NewTerminal(mem, nil),
		Keyboard: io.NewKeyboard(io.KEYBOARD_DEFAULT_CAPACITY),
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Close the emulator
func (emu *Emulator) Close() (err error) {
	if emu.Storage != nil {
		err = emu.Storage.Shutdown()
	}

	return
}

// Reset the emulator state, and load the program into the code segment.
func (emu *Emulator) Reset() (err error) {
	origin := emu.Program.Origin()
	binary := emu.Program.Binary()
	if int(origin)+len(binary) > 0x10000 {
		err = ErrProgramSize
		return
	}

	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Memory.Reset()
	emu.Cpu.Reset()
	emu.Arena.Reset()

	for _, segment := range []cpu.Register{cpu.REG_CS, cpu.REG_DS, cpu.REG_ES, cpu.REG_SS} {
		emu.Cpu.Registers.Set(segment, CODE_SEGMENT)
	}
	emu.Cpu.Registers.Set(cpu.REG_SP, STACK_TOP)
	emu.Cpu.Memory.SetBytes(CODE_SEGMENT, uint16(origin), binary)

	emu.Cpu.Ip = origin
	emu.Cpu.Source = emu.Program
	emu.Cpu.Interrupt = emu.interrupt

	if term, ok := emu.Display.(*io.Terminal); ok {
		term.Reset()
	}

	emu.ExitCode = 0
	emu.terminated = false

	return
}

// Load installs an assembled program and resets.
func (emu *Emulator) Load(prog *cpu.Program) (err error) {
	emu.Program = prog
	return emu.Reset()
}

// Code returns the current instruction code.
func (emu *Emulator) Code() cpu.Code {
	dbg := emu.Program.Debug(emu.Cpu.Ip)
	if dbg.Line == nil {
		return cpu.Code{}
	}

	return dbg.Line.Codes[dbg.Index]
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Ip)
	if dbg.Line == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.terminated {
		done = true
		return
	}

	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrIpEmpty) {
		err = nil
		done = true
		return
	}
	if err != nil {
		return
	}

	done = emu.terminated
	return
}

// Run ticks until the program ends, fails, or ctx is done. A keyboard
// read in progress is canceled along with ctx; a cancel left over from
// an earlier run is dropped first.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	if canceler, ok := emu.Keyboard.(interface {
		Cancel()
		Resume()
	}); ok {
		canceler.Resume()
		stop := context.AfterFunc(ctx, canceler.Cancel)
		defer stop()
	}

	for {
		if err = ctx.Err(); err != nil {
			return
		}

		var done bool
		done, err = emu.Tick()
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil || done {
			return
		}
	}
}

// terminate ends the program with a return code.
func (emu *Emulator) terminate(code uint8) {
	if emu.Verbose {
		log.Printf("emulator: terminate %d", code)
	}

	emu.ExitCode = int(code)
	emu.terminated = true
}
