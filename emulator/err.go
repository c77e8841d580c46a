package emulator

import (
	"errors"

	"github.com/ldaniels528/virtual88/translate"
)

var f = translate.From

var (
	ErrProgramSize = errors.New(f("program exceeds code segment"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrService is an interrupt service the emulator does not provide.
type ErrService struct {
	Vector   uint8
	Function uint8
}

func (err ErrService) Error() string {
	return f("unhandled service INT %02Xh AH=%02Xh", err.Vector, err.Function)
}
