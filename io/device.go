// Package io provides the devices of the virtual machine: a text and
// pixel Display, a blocking Keyboard buffer, and handle based file
// Storage.
package io

// Display is the video surface used by the BIOS video services.
type Display interface {
	// Write writes text at the cursor, advancing it.
	Write(text string) error
	// WriteCharacter writes a character and attribute at the cursor of
	// a page, advancing the cursor if moveCursor is set.
	WriteCharacter(page uint8, char byte, attr uint8, moveCursor bool) error
	// CursorPosition returns the cursor row and column.
	CursorPosition() (row, column int)
	// Pixel reads the color of a graphics pixel.
	Pixel(x, y int) (color uint8, err error)
	// SetPixel writes the color of a graphics pixel.
	SetPixel(x, y int, color uint8) error
}

// Input is the keyboard surface used by the BIOS and DOS input services.
type Input interface {
	// Next blocks until count characters, an end of line, or a cancel
	// is available, and returns what was read.
	Next(count int) (text string, err error)
	// NextLine blocks until an end of line, returning the line without
	// its terminator.
	NextLine() (text string, err error)
}
