package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssemblerEmpty(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Lines))
	assert.Equal("0", asm.Equate["LINENO"])
	assert.Nil(prog.Binary())
}

func TestAssemblerEncoding(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		line string
		code []byte
	}){
		{"INC AX", []byte{0x40}},
		{"DEC DI", []byte{0x4f}},
		{"DB \"AB\"", []byte{0x41, 0x42}},
		{"DW 0x1234, 5", []byte{0x34, 0x12, 0x05, 0x00}},
		{"ADD AX, BX", []byte{0x01, 0xd8}},
		{"ADD AL, 5", []byte{0x04, 0x05}},
		{"ADD BX, 5", []byte{0x83, 0xc3, 0x05}},
		{"ADD BX, 0x1234", []byte{0x81, 0xc3, 0x34, 0x12}},
		{"SUB CX, DX", []byte{0x29, 0xd1}},
		{"CMP [BX], AL", []byte{0x38, 0x07}},
		{"XOR AX, [BX]", []byte{0x33, 0x07}},
		{"CMP AL, 'A'", []byte{0x3c, 0x41}},
		{"MOV AX, 0x1234", []byte{0xb8, 0x34, 0x12}},
		{"MOV AX, 0B800h", []byte{0xb8, 0x00, 0xb8}},
		{"MOV AL, [BX+SI]", []byte{0x8a, 0x00}},
		{"MOV [BX+SI+5], AX", []byte{0x89, 0x40, 0x05}},
		{"MOV AX, [SI+300]", []byte{0x8b, 0x84, 0x2c, 0x01}},
		{"MOV AX, [0x1234]", []byte{0xa1, 0x34, 0x12}},
		{"MOV BYTE PTR [BX], 7", []byte{0xc6, 0x07, 0x07}},
		{"MOV [BP], AL", []byte{0x88, 0x46, 0x00}},
		{"MOV DS, AX", []byte{0x8e, 0xd8}},
		{"MOV AX, ES:[DI]", []byte{0x26, 0x8b, 0x05}},
		{"MOV EAX, 1", []byte{0x66, 0xb8, 0x01, 0x00, 0x00, 0x00}},
		{"PUSH AX", []byte{0x50}},
		{"PUSH ES", []byte{0x06}},
		{"POP DS", []byte{0x1f}},
		{"MOVSB", []byte{0xa4}},
		{"MOVSW", []byte{0xa5}},
		{"REP MOVSB", []byte{0xf3, 0xa4}},
		{"ES: MOVSB", []byte{0x26, 0xa4}},
		{"SHL AX, 1", []byte{0xd1, 0xe0}},
		{"SHR BL, CL", []byte{0xd2, 0xeb}},
		{"SAR DX, 3", []byte{0xc1, 0xfa, 0x03}},
		{"INT 0x21", []byte{0xcd, 0x21}},
		{"RET", []byte{0xc3}},
		{"NOT AX", []byte{0xf7, 0xd0}},
		{"MUL BL", []byte{0xf6, 0xe3}},
		{"INC BYTE PTR [BX]", []byte{0xfe, 0x07}},
		{"XCHG AX, BX", []byte{0x93}},
		{"LEA SI, [BX+DI+4]", []byte{0x8d, 0x71, 0x04}},
		{"TEST AL, 1", []byte{0xa8, 0x01}},
		{"LES DI, [BX]", []byte{0xc4, 0x3f}},
		{"LFS SI, [BX]", []byte{0x0f, 0xb4, 0x37}},
		{"JMP AX", []byte{0xff, 0xe0}},
		{"CLC", []byte{0xf8}},
		{"STD", []byte{0xfd}},
		{"LAHF", []byte{0x9f}},
		{"CBW", []byte{0x98}},
	}

	for _, entry := range table {
		code, err := Assemble(entry.line)
		if assert.NoError(err, entry.line) {
			assert.Equal(entry.code, code, entry.line)
		}
	}
}

func TestAssemblerLabels(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		source string
		code   []byte
	}){
		{"start: INC AX\nJNZ start", []byte{0x40, 0x75, 0xfd}},
		{"JMP done\nNOP\ndone: RET", []byte{0xe9, 0x01, 0x00, 0x90, 0xc3}},
		{"again: DEC BX\nLOOP again", []byte{0x4b, 0xe2, 0xfd}},
		{"ORG 0x100\nstart: NOP\nJMP start", []byte{0x90, 0xeb, 0xfd}},
		{"MOV AX, table\ntable: DW 7", []byte{0xb8, 0x03, 0x00, 0x07, 0x00}},
	}

	for _, entry := range table {
		code, err := Assemble(entry.source)
		if assert.NoError(err, entry.source) {
			assert.Equal(entry.code, code, entry.source)
		}
	}
}

func TestAssemblerEquate(t *testing.T) {
	assert := assert.New(t)

	code, err := Assemble(".equ COUNT 5\nMOV CX, COUNT")
	assert.NoError(err)
	assert.Equal([]byte{0xb9, 0x05, 0x00}, code)

	code, err = Assemble("SIZE EQU 0x10\nMOV AX, $(SIZE*2)")
	assert.NoError(err)
	assert.Equal([]byte{0xb8, 0x20, 0x00}, code)

	code, err = Assemble("MOV AL, '\\n' ; newline")
	assert.NoError(err)
	assert.Equal([]byte{0xb0, 0x0a}, code)

	asm := &Assembler{}
	asm.Predefine("VALUE", "7")
	code, err = asm.Assemble("MOV AL, VALUE")
	assert.NoError(err)
	assert.Equal([]byte{0xb0, 0x07}, code)

	_, err = Assemble(".equ A 1\n.equ A 2")
	assert.ErrorIs(err, ErrEquateDuplicate)

	_, err = Assemble(".equ A")
	assert.ErrorIs(err, ErrEquateSyntax)

	_, err = Assemble("MOV AX, $(1 +)")
	var serr *ErrSyntax
	if assert.True(errors.As(err, &serr)) {
		assert.Equal(1, serr.LineNo)
	}
}

func TestAssemblerMacro(t *testing.T) {
	assert := assert.New(t)

	source := `
.macro CLEAR reg
	XOR reg, reg
.endm

.macro SPIN count
	MOV CX, count
@wait:
	LOOP @wait
.endm

	CLEAR AX
	CLEAR BX
	SPIN 3
	SPIN 4
`
	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source))
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]byte{
		0x31, 0xc0,
		0x31, 0xdb,
		0xb9, 0x03, 0x00, 0xe2, 0xfe,
		0xb9, 0x04, 0x00, 0xe2, 0xfe,
	}, prog.Binary())
	assert.Len(asm.Label, 2, "one label per expansion")
	assert.Contains(asm.Macro, "SPIN")

	table := [](struct {
		source string
		err    error
	}){
		{".macro A\n.macro B\n.endm\n.endm", ErrMacroNesting},
		{".macro A\n.endm\n.macro A\n.endm", ErrMacroDuplicate},
		{".macro A\nNOP", ErrMacroLonely},
		{".endm", ErrMacroLonelyEndm},
		{".macro", ErrMacroSyntax},
		{".macro A x\nNOP\n.endm\nA", ErrMacroSyntax},
	}

	for _, entry := range table {
		_, err := Assemble(entry.source)
		assert.ErrorIs(err, entry.err, entry.source)
	}

	_, err = Assemble(".macro BAD\n.equ X\n.endm\nBAD")
	var merr *ErrMacro
	if assert.True(errors.As(err, &merr), "%v", err) {
		assert.Equal("BAD", merr.Macro)
		assert.Equal(2, merr.Line)
	}
	assert.ErrorIs(err, ErrEquateSyntax)
}

func TestAssemblerErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		source string
		err    error
	}){
		{"here:\nhere:", ErrLabelDuplicate},
		{"ADD AX, BL", ErrOperandSize},
		{"MOV [BX], 5", ErrOperandSizeUnknown},
		{"FOO AX", ErrUnrecognizedInstruction},
		{"MOV AX, [BX+BP]", ErrInvalidRegisterUsage},
		{"MOV AX, [BX+1+2]", ErrDisplacementMultiple},
		{"ORG FOO", ErrOrgSyntax},
		{"DB 0x100", ErrOperandSize},
	}

	for _, entry := range table {
		_, err := Assemble(entry.source)
		assert.ErrorIs(err, entry.err, entry.source)
	}

	_, err := Assemble("JMP nowhere")
	var missing ErrLabelMissing
	if assert.True(errors.As(err, &missing), "%v", err) {
		assert.Equal(ErrLabelMissing("nowhere"), missing)
	}

	source := "start: NOP\n" + strings.Repeat("NOP\n", 200) + "LOOP start"
	_, err = Assemble(source)
	assert.ErrorIs(err, ErrJumpRange)

	var serr *ErrSyntax
	_, err = Assemble("NOP\nNOP\nMOV AX, BL")
	if assert.True(errors.As(err, &serr)) {
		assert.Equal(3, serr.LineNo)
		assert.Equal("MOV AX, BL", serr.Line)
	}
}

func TestAssemblerComments(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("MOV AL, ", stripComment("MOV AL, ; comment"))
	assert.Equal(`DB "a;b" `, stripComment(`DB "a;b" ; comment`))
	assert.Equal("CMP AL, ';' ", stripComment("CMP AL, ';' ; semicolon"))

	code, err := Assemble("CMP AL, ';' ; semicolon")
	assert.NoError(err)
	assert.Equal([]byte{0x3c, 0x3b}, code)
}
