package io

import (
	"io"

	"github.com/ldaniels528/virtual88/memory"
)

const (
	VIDEO_SEGMENT   = 0xB800 // Text and CGA graphics memory.
	TEXT_COLUMNS    = 80
	TEXT_ROWS       = 25
	TEXT_PAGES      = 8
	PAGE_SIZE       = 0x1000 // Bytes per text page.
	GRAPHICS_WIDTH  = 320
	GRAPHICS_HEIGHT = 200
	GRAPHICS_BANK   = 0x2000 // Offset of the odd scan line bank.
	DEFAULT_ATTR    = 0x07   // Light gray on black.
)

// Terminal is a Display that echoes text to a host writer, and keeps
// the character cells and 2-bit packed pixels in video memory.
type Terminal struct {
	Output io.Writer      // Host text output, may be nil.
	Memory *memory.Memory // Video memory at VIDEO_SEGMENT.

	row, column int
}

var _ Display = (*Terminal)(nil)

// NewTerminal creates a terminal over mem, echoing to output.
func NewTerminal(mem *memory.Memory, output io.Writer) (term *Terminal) {
	term = &Terminal{
		Output: output,
		Memory: mem,
	}

	return
}

// Reset homes the cursor.
func (term *Terminal) Reset() {
	term.row = 0
	term.column = 0
}

// CursorPosition returns the cursor row and column.
func (term *Terminal) CursorPosition() (row, column int) {
	return term.row, term.column
}

// SetCursor moves the cursor, clamping to the screen.
func (term *Terminal) SetCursor(row, column int) {
	term.row = min(max(row, 0), TEXT_ROWS-1)
	term.column = min(max(column, 0), TEXT_COLUMNS-1)
}

func (term *Terminal) cell(page uint8, row, column int) uint16 {
	return uint16(int(page)*PAGE_SIZE + (row*TEXT_COLUMNS+column)*2)
}

// scroll moves page 0 up one line, blanking the last line.
func (term *Terminal) scroll() {
	line := TEXT_COLUMNS * 2
	data := term.Memory.GetBytes(VIDEO_SEGMENT, uint16(line), line*(TEXT_ROWS-1))
	term.Memory.SetBytes(VIDEO_SEGMENT, 0, data)

	blank := make([]byte, line)
	for n := 0; n < line; n += 2 {
		blank[n] = ' '
		blank[n+1] = DEFAULT_ATTR
	}
	term.Memory.SetBytes(VIDEO_SEGMENT, term.cell(0, TEXT_ROWS-1, 0), blank)
}

func (term *Terminal) newline() {
	term.row++
	if term.row == TEXT_ROWS {
		term.scroll()
		term.row = TEXT_ROWS - 1
	}
}

// advance moves the cursor past a character, handling control codes.
// Returns true if char occupies a cell.
func (term *Terminal) advance(char byte) (printable bool) {
	switch char {
	case '\r':
		term.column = 0
	case '\n':
		term.newline()
	case '\b':
		if term.column > 0 {
			term.column--
		}
	case '\a':
	default:
		printable = true
	}
	return
}

func (term *Terminal) emit(data []byte) (err error) {
	if term.Output == nil {
		return
	}
	_, err = term.Output.Write(data)
	return
}

func (term *Terminal) store(page uint8, char byte, attr uint8) {
	addr := term.cell(page, term.row, term.column)
	term.Memory.SetByte(VIDEO_SEGMENT, addr, char)
	term.Memory.SetByte(VIDEO_SEGMENT, addr+1, attr)
}

func (term *Terminal) step() {
	term.column++
	if term.column == TEXT_COLUMNS {
		term.column = 0
		term.newline()
	}
}

// Write writes text at the cursor of page 0, advancing it.
func (term *Terminal) Write(text string) (err error) {
	for n := range len(text) {
		char := text[n]
		if term.advance(char) {
			term.store(0, char, DEFAULT_ATTR)
			term.step()
		}
	}

	err = term.emit([]byte(text))
	return
}

// WriteCharacter writes char and attr at the cursor of page.
func (term *Terminal) WriteCharacter(page uint8, char byte, attr uint8, moveCursor bool) (err error) {
	if page >= TEXT_PAGES {
		err = ErrPageRange
		return
	}

	if moveCursor {
		if term.advance(char) {
			term.store(page, char, attr)
			term.step()
		}
	} else {
		term.store(page, char, attr)
	}

	err = term.emit([]byte{char})
	return
}

// pixel returns the byte offset and bit shift of a graphics pixel.
func pixel(x, y int) (offset uint16, shift uint, err error) {
	if x < 0 || x >= GRAPHICS_WIDTH || y < 0 || y >= GRAPHICS_HEIGHT {
		err = ErrPixelRange
		return
	}

	offset = uint16((y&1)*GRAPHICS_BANK + (y>>1)*(GRAPHICS_WIDTH/4) + x>>2)
	shift = uint(3-(x&3)) * 2
	return
}

// Pixel reads the 2-bit color at x, y.
func (term *Terminal) Pixel(x, y int) (color uint8, err error) {
	offset, shift, err := pixel(x, y)
	if err != nil {
		return
	}

	color = (term.Memory.GetByte(VIDEO_SEGMENT, offset) >> shift) & 3
	return
}

// SetPixel writes the 2-bit color at x, y. With bit 7 of color set, the
// color is XORed with the current one.
func (term *Terminal) SetPixel(x, y int, color uint8) (err error) {
	offset, shift, err := pixel(x, y)
	if err != nil {
		return
	}

	value := term.Memory.GetByte(VIDEO_SEGMENT, offset)
	if color&0x80 != 0 {
		color ^= (value >> shift) & 3
	}
	color &= 3

	term.Memory.SetByte(VIDEO_SEGMENT, offset, value&^(3<<shift))
	if color != 0 {
		term.Memory.SetBits(VIDEO_SEGMENT, offset, color<<shift)
	}
	return
}
