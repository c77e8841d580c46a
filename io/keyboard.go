package io

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// KEYBOARD_DEFAULT_CAPACITY is the default type-ahead buffer size.
const KEYBOARD_DEFAULT_CAPACITY = 128

// Keyboard is a bounded type-ahead buffer. A producer, usually a host
// input goroutine, puts characters; the processor consumes them through
// Next and NextLine, which block until enough input has arrived.
type Keyboard struct {
	mutex    sync.Mutex
	cond     *sync.Cond
	ring     Ring
	canceled bool
	closed   bool
}

var _ Input = (*Keyboard)(nil)

// NewKeyboard creates a keyboard buffer holding up to capacity
// characters.
func NewKeyboard(capacity int) (kb *Keyboard) {
	if capacity <= 0 {
		capacity = KEYBOARD_DEFAULT_CAPACITY
	}

	kb = &Keyboard{}
	kb.cond = sync.NewCond(&kb.mutex)
	kb.ring.Capacity = capacity
	kb.ring.Rewind()

	return
}

// Put queues a character, blocking while the buffer is full.
func (kb *Keyboard) Put(char byte) (err error) {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	for kb.ring.Full() && !kb.closed {
		kb.cond.Wait()
	}
	if kb.closed {
		err = ErrKeyboardClosed
		return
	}

	err = kb.ring.Send(char)
	kb.cond.Broadcast()
	return
}

// Feed puts every character read from input. It returns nil at the end
// of input.
func (kb *Keyboard) Feed(input io.Reader) (err error) {
	reader := bufio.NewReader(input)
	for {
		var char byte
		char, err = reader.ReadByte()
		if errors.Is(err, io.EOF) {
			err = nil
			return
		}
		if err != nil {
			return
		}
		err = kb.Put(char)
		if err != nil {
			return
		}
	}
}

// Len is the number of characters waiting.
func (kb *Keyboard) Len() int {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	return kb.ring.Len()
}

// Cancel wakes a blocked reader, which returns ErrKeyboardCanceled. With
// no reader blocked, the next read is canceled unless Resume or Close
// runs first.
func (kb *Keyboard) Cancel() {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	kb.canceled = true
	kb.cond.Broadcast()
}

// Resume drops a cancel that no reader has consumed, so the next read
// blocks normally.
func (kb *Keyboard) Resume() {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	kb.canceled = false
}

// Close ends input. Readers drain what is buffered, then receive
// ErrKeyboardClosed. A pending cancel is dropped.
func (kb *Keyboard) Close() {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	kb.closed = true
	kb.canceled = false
	kb.cond.Broadcast()
}

// isEndOfLine is true for the characters that complete a line.
func isEndOfLine(char byte) bool {
	return char == '\n' || char == '\r'
}

// ready returns how many characters a read of up to count characters
// may drain now, stopping after an end of line. With line set, only a
// complete line (or a full buffer) is ready.
func (kb *Keyboard) ready(count int, line bool) int {
	size := kb.ring.Len()
	for n := range min(size, count) {
		char, _ := kb.ring.Peek(n)
		if isEndOfLine(char) {
			return n + 1
		}
	}
	switch {
	case line && kb.ring.Full():
		return size
	case line:
		return 0
	case size >= count:
		return count
	}
	return 0
}

// read blocks until ready reports input, then drains it atomically.
func (kb *Keyboard) read(count int, line bool) (text string, err error) {
	kb.mutex.Lock()
	defer kb.mutex.Unlock()

	for {
		if kb.canceled {
			kb.canceled = false
			err = ErrKeyboardCanceled
			return
		}

		n := kb.ready(count, line)
		if n == 0 && kb.closed {
			n = kb.ring.Len()
			if n == 0 {
				err = ErrKeyboardClosed
				return
			}
		}

		if n > 0 {
			var buff strings.Builder
			for char := range kb.ring.Receive() {
				buff.WriteByte(char)
				if buff.Len() == n {
					break
				}
			}
			text = buff.String()
			kb.cond.Broadcast()
			return
		}

		kb.cond.Wait()
	}
}

// Next blocks until count characters, an end of line, or a cancel is
// available. The end of line character, if any, is included.
func (kb *Keyboard) Next(count int) (text string, err error) {
	if count <= 0 {
		return
	}
	return kb.read(count, false)
}

// NextLine blocks until a complete line is available, and returns it
// without its terminator.
func (kb *Keyboard) NextLine() (text string, err error) {
	text, err = kb.read(kb.ring.Capacity, true)
	text = strings.TrimRight(text, "\r\n")
	return
}
