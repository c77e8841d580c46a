package emulator

import (
	"errors"
	"log"
	"os"

	"github.com/ldaniels528/virtual88/cpu"
	"github.com/ldaniels528/virtual88/io"
	"github.com/ldaniels528/virtual88/memory"
)

const (
	INT_VIDEO     = 0x10
	INT_KEYBOARD  = 0x16
	INT_TERMINATE = 0x20
	INT_DOS       = 0x21
)

const (
	HANDLE_STDIN  = 0
	HANDLE_STDOUT = 1
	HANDLE_STDERR = 2
	HANDLE_STDAUX = 3
	HANDLE_STDPRN = 4
)

// DOS error codes returned in AX with CF set.
const (
	DOS_FILE_NOT_FOUND     = 0x02
	DOS_PATH_NOT_FOUND     = 0x03
	DOS_TOO_MANY_FILES     = 0x04
	DOS_ACCESS_DENIED      = 0x05
	DOS_INVALID_HANDLE     = 0x06
	DOS_INSUFFICIENT_MEM   = 0x08
	DOS_INVALID_BLOCK      = 0x09
	DOS_INVALID_ACCESS     = 0x0C
	DOS_END_OF_FILE_MARKER = 0x1A
)

const (
	CURSOR_SHAPE = 0x0607 // Reported by INT 10h AH=03h.
	PATH_LIMIT   = 128    // Longest ASCIZ file name.
	STRING_LIMIT = 0x10000
)

// interrupt dispatches an INT instruction to the BIOS and DOS services.
func (emu *Emulator) interrupt(cp *cpu.Cpu, vector uint8) (err error) {
	function := uint8(cp.Registers.Get(cpu.REG_AH))

	if emu.Verbose {
		log.Printf("emulator: INT %02Xh AH=%02Xh", vector, function)
	}

	switch vector {
	case INT_VIDEO:
		err = emu.video(cp, function)
	case INT_KEYBOARD:
		err = emu.keyboard(cp, function)
	case INT_TERMINATE:
		emu.terminate(0)
	case INT_DOS:
		err = emu.dos(cp, function)
	default:
		err = ErrService{Vector: vector, Function: function}
	}

	return
}

func (emu *Emulator) video(cp *cpu.Cpu, function uint8) (err error) {
	regs := &cp.Registers
	char := byte(regs.Get(cpu.REG_AL))

	switch function {
	case 0x03:
		row, column := emu.Display.CursorPosition()
		regs.Set(cpu.REG_DH, uint32(row))
		regs.Set(cpu.REG_DL, uint32(column))
		regs.Set(cpu.REG_CX, CURSOR_SHAPE)
	case 0x09:
		page := uint8(regs.Get(cpu.REG_BH))
		attr := uint8(regs.Get(cpu.REG_BL))
		err = emu.Display.WriteCharacter(page, char, attr, false)
	case 0x0C:
		x, y := int(regs.Get(cpu.REG_CX)), int(regs.Get(cpu.REG_DX))
		err = emu.Display.SetPixel(x, y, char)
		if errors.Is(err, io.ErrPixelRange) {
			err = nil
		}
	case 0x0D:
		x, y := int(regs.Get(cpu.REG_CX)), int(regs.Get(cpu.REG_DX))
		var color uint8
		color, err = emu.Display.Pixel(x, y)
		if errors.Is(err, io.ErrPixelRange) {
			err = nil
		}
		regs.Set(cpu.REG_AL, uint32(color))
	case 0x0E:
		err = emu.Display.Write(string([]byte{char}))
	default:
		err = ErrService{Vector: INT_VIDEO, Function: function}
	}

	return
}

func (emu *Emulator) keyboard(cp *cpu.Cpu, function uint8) (err error) {
	switch function {
	case 0x00:
		var char byte
		char, err = emu.readCharacter()
		cp.Registers.Set(cpu.REG_AX, uint32(char))
	default:
		err = ErrService{Vector: INT_KEYBOARD, Function: function}
	}

	return
}

// readCharacter reads one key. A closed keyboard reads as the end of
// file marker.
func (emu *Emulator) readCharacter() (char byte, err error) {
	text, err := emu.Keyboard.Next(1)
	if errors.Is(err, io.ErrKeyboardClosed) {
		char = DOS_END_OF_FILE_MARKER
		err = nil
		return
	}
	if err != nil {
		return
	}

	char = text[0]
	return
}

func (emu *Emulator) echo(text string) (err error) {
	if emu.Echo {
		err = emu.Display.Write(text)
	}
	return
}

// dosError maps a host error to a DOS error code.
func dosError(err error) uint32 {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return DOS_FILE_NOT_FOUND
	case errors.Is(err, io.ErrNoStorage):
		return DOS_PATH_NOT_FOUND
	case errors.Is(err, io.ErrHandleExhausted):
		return DOS_TOO_MANY_FILES
	case errors.Is(err, io.ErrHandleInvalid):
		return DOS_INVALID_HANDLE
	case errors.Is(err, os.ErrInvalid):
		return DOS_INVALID_ACCESS
	}
	return DOS_ACCESS_DENIED
}

// status reports a DOS service result: CF clear with AX = value, or CF
// set with AX = the error code.
func status(cp *cpu.Cpu, value uint32, err error) {
	if err != nil {
		cp.Flags.SetCF(true)
		cp.Registers.Set(cpu.REG_AX, dosError(err))
		return
	}
	cp.Flags.SetCF(false)
	cp.Registers.Set(cpu.REG_AX, value)
}

func (emu *Emulator) dos(cp *cpu.Cpu, function uint8) (err error) {
	regs := &cp.Registers
	mem := cp.Memory
	ds := uint16(regs.Get(cpu.REG_DS))
	dx := uint16(regs.Get(cpu.REG_DX))
	handle := int(regs.Get(cpu.REG_BX))
	count := int(regs.Get(cpu.REG_CX))

	switch function {
	case 0x01:
		var char byte
		char, err = emu.readCharacter()
		if err != nil {
			return
		}
		regs.Set(cpu.REG_AL, uint32(char))
		err = emu.echo(string([]byte{char}))
	case 0x02:
		err = emu.Display.Write(string([]byte{byte(regs.Get(cpu.REG_DL))}))
	case 0x09:
		err = emu.Display.Write(mem.GetString(ds, dx, '$', STRING_LIMIT))
	case 0x0A:
		err = emu.bufferedInput(cp, ds, dx)
	case 0x3C:
		var created int
		created, err = emu.Storage.Create(mem.GetString(ds, dx, 0, PATH_LIMIT))
		status(cp, uint32(created), err)
		err = nil
	case 0x3D:
		var opened int
		access := int(regs.Get(cpu.REG_AL))
		opened, err = emu.Storage.Open(mem.GetString(ds, dx, 0, PATH_LIMIT), access)
		status(cp, uint32(opened), err)
		err = nil
	case 0x3E:
		err = emu.closeHandle(handle)
		status(cp, 0, err)
		err = nil
	case 0x3F:
		var data []byte
		data, err = emu.readHandle(handle, count)
		if errors.Is(err, io.ErrKeyboardCanceled) {
			return
		}
		mem.SetBytes(ds, dx, data)
		status(cp, uint32(len(data)), err)
		err = nil
	case 0x40:
		var n int
		n, err = emu.writeHandle(handle, mem.GetBytes(ds, dx, count))
		status(cp, uint32(n), err)
		err = nil
	case 0x48:
		paragraphs := int(regs.Get(cpu.REG_BX))
		segment, fault := emu.Arena.Allocate(paragraphs * memory.PARAGRAPH)
		if fault != nil {
			cp.Flags.SetCF(true)
			regs.Set(cpu.REG_AX, DOS_INSUFFICIENT_MEM)
			regs.Set(cpu.REG_BX, uint32(emu.Arena.Largest()))
			return
		}
		status(cp, uint32(segment), nil)
	case 0x49:
		if fault := emu.Arena.Free(uint16(regs.Get(cpu.REG_ES))); fault != nil {
			cp.Flags.SetCF(true)
			regs.Set(cpu.REG_AX, DOS_INVALID_BLOCK)
			return
		}
		cp.Flags.SetCF(false)
	case 0x4C:
		emu.terminate(uint8(regs.Get(cpu.REG_AL)))
	default:
		err = ErrService{Vector: INT_DOS, Function: function}
	}

	return
}

// bufferedInput reads a line into the DOS input buffer at segment:offset:
// the first byte is the room, the second receives the length, followed by
// the characters and a carriage return.
func (emu *Emulator) bufferedInput(cp *cpu.Cpu, segment, offset uint16) (err error) {
	mem := cp.Memory
	room := int(mem.GetByte(segment, offset))
	if room == 0 {
		return
	}

	line, err := emu.Keyboard.NextLine()
	if errors.Is(err, io.ErrKeyboardClosed) {
		line, err = "", nil
	}
	if err != nil {
		return
	}

	if len(line) > room-1 {
		line = line[:room-1]
	}

	mem.SetByte(segment, offset+1, uint8(len(line)))
	mem.SetBytes(segment, offset+2, []byte(line))
	mem.SetByte(segment, offset+2+uint16(len(line)), '\r')

	err = emu.echo(line + "\r\n")
	return
}

func (emu *Emulator) closeHandle(handle int) (err error) {
	if handle < io.STORAGE_FIRST_HANDLE {
		return
	}

	if emu.Storage == nil {
		err = io.ErrHandleInvalid
		return
	}

	return emu.Storage.Close(handle)
}

func (emu *Emulator) readHandle(handle int, count int) (data []byte, err error) {
	switch handle {
	case HANDLE_STDIN:
		var text string
		text, err = emu.Keyboard.Next(count)
		if errors.Is(err, io.ErrKeyboardClosed) {
			err = nil
		}
		data = []byte(text)
	case HANDLE_STDOUT, HANDLE_STDERR, HANDLE_STDAUX, HANDLE_STDPRN:
	default:
		if emu.Storage == nil {
			err = io.ErrHandleInvalid
			return
		}
		data = make([]byte, count)
		var n int
		n, err = emu.Storage.Read(handle, data)
		data = data[:n]
	}

	return
}

func (emu *Emulator) writeHandle(handle int, data []byte) (n int, err error) {
	switch handle {
	case HANDLE_STDOUT, HANDLE_STDERR:
		err = emu.Display.Write(string(data))
		if err == nil {
			n = len(data)
		}
	case HANDLE_STDIN:
		err = io.ErrHandleInvalid
	case HANDLE_STDAUX, HANDLE_STDPRN:
		n = len(data)
	default:
		if emu.Storage == nil {
			err = io.ErrHandleInvalid
			return
		}
		n, err = emu.Storage.Write(handle, data)
	}

	return
}
