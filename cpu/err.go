package cpu

import (
	"errors"

	"github.com/ldaniels528/virtual88/translate"
)

var f = translate.From

var (
	// Assembly-time errors
	ErrMalformedInstruction      = errors.New(f("malformed instruction"))
	ErrInvalidArgument           = errors.New(f("invalid argument"))
	ErrInvalidRegisterUsage      = errors.New(f("invalid register usage"))
	ErrInvalidNumberOfParameters = errors.New(f("invalid number of parameters"))
	ErrUnrecognizedInstruction   = errors.New(f("unrecognized instruction"))
	ErrOperandSize               = errors.New(f("operand size mismatch"))
	ErrOperandSizeUnknown        = errors.New(f("operand size not specified"))
	ErrDisplacementMultiple      = errors.New(f("more than one displacement"))
	ErrJumpRange                 = errors.New(f("jump target out of range"))

	// Assembler directive errors
	ErrEquateSyntax    = errors.New(f(".equ syntax"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrMacroSyntax     = errors.New(f(".macro syntax"))
	ErrMacroNesting    = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate  = errors.New(f(".macro duplicated"))
	ErrMacroLonely     = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm = errors.New(f(".endm without .macro"))
	ErrOrgSyntax       = errors.New(f(".org syntax"))

	// Decode and dispatch errors
	ErrUnhandledOpcode = errors.New(f("unhandled opcode"))
	ErrIllegalState    = errors.New(f("illegal state"))
	ErrDivideByZero    = errors.New(f("divide by zero"))
	ErrIpEmpty         = errors.New(f("ip empty"))
	ErrNoInterrupt     = errors.New(f("no interrupt handler"))
)

// ErrNumericValueExpected reports a token that should have been a number.
type ErrNumericValueExpected string

func (err ErrNumericValueExpected) Error() string {
	return f("'%v' is not a number", string(err))
}

// ErrUnrecognizedToken reports a token that is neither a register, a
// number, nor a symbol.
type ErrUnrecognizedToken string

func (err ErrUnrecognizedToken) Error() string {
	return f("'%v' is not a value or register", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOpcode identifies the instruction that failed to execute.
type ErrOpcode struct {
	Ip          uint32
	Instruction Instruction
}

func (eo ErrOpcode) Error() string {
	return f("%04x: %v", eo.Ip, eo.Instruction.String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}

// malformed tags err as a malformed instruction.
func malformed(errs ...error) error {
	return errors.Join(append([]error{ErrMalformedInstruction}, errs...)...)
}
