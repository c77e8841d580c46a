package cpu

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ldaniels528/virtual88/memory"
)

// execute parses and runs a single instruction.
func execute(cpu *Cpu, text string) (err error) {
	inst, err := ParseInstruction(text)
	if err != nil {
		return
	}
	return cpu.Execute(inst)
}

// load assembles a program and attaches it to a fresh processor.
func load(t *testing.T, source string) (cpu *Cpu) {
	t.Helper()

	prog, err := (&Assembler{}).Parse(strings.NewReader(source))
	if err != nil {
		t.Fatal(err)
	}

	cpu = NewCpu(memory.NewMemory(memory.SIZE))
	cpu.Source = prog
	return
}

// run ticks until the program runs off the end of its code.
func run(t *testing.T, cpu *Cpu) {
	t.Helper()

	for range 10000 {
		err := cpu.Tick()
		if errors.Is(err, ErrIpEmpty) {
			return
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	t.Fatal("program did not terminate")
}

func TestCpuMove(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))
	cpu.Registers.Set(REG_DS, 0x100)
	cpu.Registers.Set(REG_BX, 0x10)
	cpu.Registers.Set(REG_SI, 0x20)

	assert.NoError(execute(cpu, "MOV AX, 0x1234"))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_AX))

	assert.NoError(execute(cpu, "MOV [BX+SI+5], AX"))
	assert.Equal(uint16(0x1234), cpu.Memory.GetWord(0x100, 0x35))

	assert.NoError(execute(cpu, "MOV CL, [BX+SI+6]"))
	assert.Equal(uint32(0x12), cpu.Registers.Get(REG_CL))

	assert.NoError(execute(cpu, "MOV BYTE PTR [BX], 7"))
	assert.Equal(uint8(7), cpu.Memory.GetByte(0x100, 0x10))

	assert.NoError(execute(cpu, "MOV ES, AX"))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_ES))

	assert.NoError(execute(cpu, "MOV DX, ES"))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_DX))

	assert.NoError(execute(cpu, "XCHG AX, BX"))
	assert.Equal(uint32(0x10), cpu.Registers.Get(REG_AX))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_BX))

	assert.NoError(execute(cpu, "LEA DI, [BX+SI+4]"))
	assert.Equal(uint32(0x1258), cpu.Registers.Get(REG_DI))

	cpu.Registers.Set(REG_BX, 0x40)
	cpu.Memory.SetWord(0x100, 0x40, 0x5678)
	cpu.Memory.SetWord(0x100, 0x42, 0x9abc)
	assert.NoError(execute(cpu, "LES DI, [BX]"))
	assert.Equal(uint32(0x5678), cpu.Registers.Get(REG_DI))
	assert.Equal(uint32(0x9abc), cpu.Registers.Get(REG_ES))
}

func TestCpuExecuteErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		text string
		err  error
	}){
		{"MOV CS, AX", ErrInvalidRegisterUsage},
		{"MOV DS, 5", ErrInvalidRegisterUsage},
		{"MOV [BX], 5", ErrOperandSizeUnknown},
		{"ADD AX, BL", ErrOperandSize},
		{"MOV AL, 0x100", ErrOperandSize},
		{"ADD [BX], [SI]", ErrInvalidArgument},
		{"INC 5", ErrInvalidArgument},
		{"ADD AX", ErrInvalidNumberOfParameters},
		{"SHL AX, BX", ErrInvalidRegisterUsage},
		{"POP CS", ErrInvalidRegisterUsage},
		{"FOO AX", ErrUnhandledOpcode},
	}

	for _, entry := range table {
		cpu := NewCpu(memory.NewMemory(memory.SIZE))
		err := execute(cpu, entry.text)
		assert.True(errors.Is(err, entry.err), "%v: %v", entry.text, err)
	}
}

func TestCpuArithmetic(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))

	cpu.Registers.Set(REG_AX, 0x1000)
	assert.NoError(execute(cpu, "ADD AX, 0x21"))
	assert.Equal(uint32(0x1021), cpu.Registers.Get(REG_AX))
	assert.False(cpu.Flags.CF())

	cpu.Flags.SetCF(true)
	assert.NoError(execute(cpu, "ADC AX, 1"))
	assert.Equal(uint32(0x1023), cpu.Registers.Get(REG_AX))

	assert.NoError(execute(cpu, "CMP AX, 0x1023"))
	assert.True(cpu.Flags.ZF())
	assert.Equal(uint32(0x1023), cpu.Registers.Get(REG_AX), "CMP discards")

	assert.NoError(execute(cpu, "TEST AX, 0x8000"))
	assert.True(cpu.Flags.ZF())

	assert.NoError(execute(cpu, "NOT AX"))
	assert.Equal(uint32(0xefdc), cpu.Registers.Get(REG_AX))

	assert.NoError(execute(cpu, "NEG AX"))
	assert.Equal(uint32(0x1024), cpu.Registers.Get(REG_AX))
	assert.True(cpu.Flags.CF())

	cpu.Registers.Set(REG_AL, 0x80)
	cpu.Registers.Set(REG_BL, 2)
	assert.NoError(execute(cpu, "MUL BL"))
	assert.Equal(uint32(0x0100), cpu.Registers.Get(REG_AX))
	assert.True(cpu.Flags.CF())
	assert.True(cpu.Flags.OF())

	cpu.Registers.Set(REG_AL, 0xff)
	assert.NoError(execute(cpu, "IMUL BL"))
	assert.Equal(uint32(0xfffe), cpu.Registers.Get(REG_AX))
	assert.False(cpu.Flags.CF())

	cpu.Registers.Set(REG_DX, 1)
	cpu.Registers.Set(REG_AX, 5)
	cpu.Registers.Set(REG_BX, 0x10)
	assert.NoError(execute(cpu, "DIV BX"))
	assert.Equal(uint32(0x1000), cpu.Registers.Get(REG_AX))
	assert.Equal(uint32(5), cpu.Registers.Get(REG_DX))

	cpu.Registers.Set(REG_AX, 0xfff9)
	cpu.Registers.Set(REG_BL, 2)
	assert.NoError(execute(cpu, "IDIV BL"))
	assert.Equal(uint32(0xfd), cpu.Registers.Get(REG_AL))
	assert.Equal(uint32(0xff), cpu.Registers.Get(REG_AH))

	cpu.Registers.Set(REG_BL, 0)
	assert.ErrorIs(execute(cpu, "DIV BL"), ErrDivideByZero)

	cpu.Registers.Set(REG_AX, 0x1000)
	cpu.Registers.Set(REG_BL, 1)
	assert.ErrorIs(execute(cpu, "DIV BL"), ErrDivideByZero, "quotient overflow")

	cpu.Registers.Set(REG_AL, 0x80)
	assert.NoError(execute(cpu, "CBW"))
	assert.Equal(uint32(0xff80), cpu.Registers.Get(REG_AX))

	cpu.Registers.Set(REG_AX, 0x8000)
	assert.NoError(execute(cpu, "CWD"))
	assert.Equal(uint32(0xffff), cpu.Registers.Get(REG_DX))

	cpu.Registers.Set(REG_CX, 0xffff)
	cpu.Flags.SetCF(false)
	assert.NoError(execute(cpu, "INC CX"))
	assert.Equal(uint32(0), cpu.Registers.Get(REG_CX))
	assert.True(cpu.Flags.ZF())
	assert.False(cpu.Flags.CF())
}

func TestCpuShift(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))

	cpu.Registers.Set(REG_AL, 0x81)
	assert.NoError(execute(cpu, "SHL AL, 1"))
	assert.Equal(uint32(0x02), cpu.Registers.Get(REG_AL))
	assert.True(cpu.Flags.CF())
	assert.True(cpu.Flags.OF())

	cpu.Registers.Set(REG_AL, 0x82)
	assert.NoError(execute(cpu, "SAR AL, 1"))
	assert.Equal(uint32(0xc1), cpu.Registers.Get(REG_AL))
	assert.False(cpu.Flags.CF())

	cpu.Registers.Set(REG_AX, 0x1234)
	cpu.Registers.Set(REG_CL, 4)
	assert.NoError(execute(cpu, "SHR AX, CL"))
	assert.Equal(uint32(0x0123), cpu.Registers.Get(REG_AX))

	assert.NoError(execute(cpu, "ROL AX, 4"))
	assert.Equal(uint32(0x1230), cpu.Registers.Get(REG_AX))

	cpu.Registers.Set(REG_AX, 0x1234)
	assert.NoError(execute(cpu, "ROR AX, 4"))
	assert.Equal(uint32(0x4123), cpu.Registers.Get(REG_AX))

	cpu.Registers.Set(REG_AL, 0x81)
	cpu.Flags.SetCF(false)
	assert.NoError(execute(cpu, "RCL AL, 2"))
	assert.Equal(uint32(0x05), cpu.Registers.Get(REG_AL))
	assert.False(cpu.Flags.CF())

	cpu.Registers.Set(REG_AL, 0x01)
	cpu.Flags.SetCF(true)
	assert.NoError(execute(cpu, "RCR AL, 1"))
	assert.Equal(uint32(0x80), cpu.Registers.Get(REG_AL))
	assert.True(cpu.Flags.CF())

	cpu.Registers.Set(REG_AX, 0x1234)
	cpu.Flags.Set(FLAG_CF | FLAG_ZF)
	assert.NoError(execute(cpu, "SHL AX, 0"))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_AX))
	assert.Equal(FLAG_CF|FLAG_ZF, cpu.Flags.Word, "zero count keeps flags")

	cpu.Registers.Set(REG_AX, 1)
	assert.NoError(execute(cpu, "SHL AX, 0x21"), "count masked to 5 bits")
	assert.Equal(uint32(2), cpu.Registers.Get(REG_AX))
}

func TestCpuFlags(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))

	assert.NoError(execute(cpu, "STC"))
	assert.True(cpu.Flags.CF())
	assert.NoError(execute(cpu, "CMC"))
	assert.False(cpu.Flags.CF())
	assert.NoError(execute(cpu, "STD"))
	assert.True(cpu.Flags.DF())
	assert.NoError(execute(cpu, "CLD"))
	assert.False(cpu.Flags.DF())

	cpu.Registers.Set(REG_AH, 0xc1)
	assert.NoError(execute(cpu, "SAHF"))
	assert.True(cpu.Flags.SF())
	assert.True(cpu.Flags.ZF())
	assert.True(cpu.Flags.CF())

	cpu.Registers.Set(REG_AH, 0)
	assert.NoError(execute(cpu, "LAHF"))
	assert.Equal(uint32(0xc3), cpu.Registers.Get(REG_AH))
}

func TestCpuConditions(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		flags uint16
		taken []string
	}){
		{0, []string{"JNO", "JAE", "JNE", "JA", "JNS", "JPO", "JGE", "JG"}},
		{FLAG_CF, []string{"JNO", "JB", "JNE", "JBE", "JNS", "JPO", "JGE", "JG"}},
		{FLAG_ZF, []string{"JNO", "JAE", "JE", "JBE", "JNS", "JPO", "JGE", "JLE"}},
		{FLAG_SF, []string{"JNO", "JAE", "JNE", "JA", "JS", "JPO", "JL", "JLE"}},
		{FLAG_SF | FLAG_OF, []string{"JO", "JAE", "JNE", "JA", "JS", "JPO", "JGE", "JG"}},
		{FLAG_OF, []string{"JO", "JAE", "JNE", "JA", "JNS", "JPO", "JL", "JLE"}},
		{FLAG_PF, []string{"JNO", "JAE", "JNE", "JA", "JNS", "JPE", "JGE", "JG"}},
	}

	for _, entry := range table {
		for _, cond := range Conditions {
			for _, name := range cond.Names {
				cpu := NewCpu(nil)
				cpu.Flags.Set(entry.flags)
				err := cpu.Execute(Instruction{Name: name, Operands: []Operand{Label{Name: "there", Offset: 0x1234, Resolved: true}}})
				assert.NoError(err, name)
				taken := slices.Contains(entry.taken, cond.Names[0])
				if taken {
					assert.Equal(uint32(0x1234), cpu.Ip, "%v flags %#x", name, entry.flags)
				} else {
					assert.Equal(uint32(0), cpu.Ip, "%v flags %#x", name, entry.flags)
				}
			}
		}
	}

	code, ok := LookupCondition("JNAE")
	assert.True(ok)
	assert.Equal(byte(0x2), code)
}

func TestCpuLoop(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)

	cpu.Registers.Set(REG_CX, 2)
	assert.NoError(execute(cpu, "LOOP 0x40"))
	assert.Equal(uint32(0x40), cpu.Ip)
	assert.Equal(uint32(1), cpu.Registers.Get(REG_CX))

	cpu.Ip = 0
	assert.NoError(execute(cpu, "LOOP 0x40"))
	assert.Equal(uint32(0), cpu.Ip)
	assert.Equal(uint32(0), cpu.Registers.Get(REG_CX))

	assert.NoError(execute(cpu, "JCXZ 0x40"))
	assert.Equal(uint32(0x40), cpu.Ip)

	cpu.Ip = 0
	cpu.Registers.Set(REG_CX, 3)
	cpu.Flags.SetZF(false)
	assert.NoError(execute(cpu, "LOOPE 0x40"))
	assert.Equal(uint32(0), cpu.Ip)
	assert.Equal(uint32(2), cpu.Registers.Get(REG_CX))

	assert.NoError(execute(cpu, "LOOPNE 0x40"))
	assert.Equal(uint32(0x40), cpu.Ip)
	assert.Equal(uint32(1), cpu.Registers.Get(REG_CX))
}

func TestCpuStack(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))
	cpu.Registers.Set(REG_SS, 0x200)
	cpu.Registers.Set(REG_SP, 0x100)

	cpu.Registers.Set(REG_AX, 0x1234)
	assert.NoError(execute(cpu, "PUSH AX"))
	assert.Equal(uint32(0xfe), cpu.Registers.Get(REG_SP))
	assert.Equal(uint16(0x1234), cpu.Memory.GetWord(0x200, 0xfe))

	assert.NoError(execute(cpu, "POP BX"))
	assert.Equal(uint32(0x1234), cpu.Registers.Get(REG_BX))
	assert.Equal(uint32(0x100), cpu.Registers.Get(REG_SP))

	assert.NoError(execute(cpu, "PUSH 5"))
	assert.Equal(uint32(0xfe), cpu.Registers.Get(REG_SP))
	assert.NoError(execute(cpu, "POP DS"))
	assert.Equal(uint32(5), cpu.Registers.Get(REG_DS))

	cpu.Flags.Set(FLAG_CF | FLAG_DF)
	assert.NoError(execute(cpu, "PUSHF"))
	assert.Equal(uint16(0x0403), cpu.Memory.GetWord(0x200, 0xfe))
	cpu.Flags.Reset()
	assert.NoError(execute(cpu, "POPF"))
	assert.Equal(FLAG_CF|FLAG_DF, cpu.Flags.Word)

	cpu.Ip = 0x10
	assert.NoError(execute(cpu, "CALL 0x50"))
	assert.Equal(uint32(0x50), cpu.Ip)
	assert.Equal(uint32(0xfe), cpu.Registers.Get(REG_SP))
	assert.Equal(uint16(0x10), cpu.Memory.GetWord(0x200, 0xfe))

	assert.NoError(execute(cpu, "RET 4"))
	assert.Equal(uint32(0x10), cpu.Ip)
	assert.Equal(uint32(0x104), cpu.Registers.Get(REG_SP))
}

func TestCpuInterrupt(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	assert.ErrorIs(execute(cpu, "INT 0x21"), ErrNoInterrupt)

	var vectors []uint8
	cpu.Interrupt = func(cpu *Cpu, vector uint8) error {
		vectors = append(vectors, vector)
		return nil
	}
	assert.NoError(execute(cpu, "INT 0x21"))
	assert.NoError(execute(cpu, "INT 3"))
	assert.Equal([]uint8{0x21, 3}, vectors)

	assert.ErrorIs(execute(cpu, "INT 0x100"), ErrOperandSize)
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(memory.NewMemory(memory.SIZE))
	cpu.Registers.Set(REG_DS, 0x100)
	cpu.Registers.Set(REG_ES, 0x200)
	cpu.Registers.Set(REG_SI, 0x10)
	cpu.Registers.Set(REG_DI, 0x20)
	cpu.Memory.SetWord(0x100, 0x10, 0xbeef)

	assert.NoError(execute(cpu, "MOVSW"))
	assert.Equal(uint16(0xbeef), cpu.Memory.GetWord(0x200, 0x20))
	assert.Equal(uint32(0x12), cpu.Registers.Get(REG_SI))
	assert.Equal(uint32(0x22), cpu.Registers.Get(REG_DI))

	assert.NoError(execute(cpu, "STD"))
	assert.NoError(execute(cpu, "MOVSW"))
	assert.Equal(uint32(0x10), cpu.Registers.Get(REG_SI))
	assert.Equal(uint32(0x20), cpu.Registers.Get(REG_DI))

	assert.NoError(execute(cpu, "MOVSB"))
	assert.Equal(uint32(0x0f), cpu.Registers.Get(REG_SI))
	assert.Equal(uint32(0x1f), cpu.Registers.Get(REG_DI))

	assert.NoError(execute(cpu, "CLD"))
	cpu.Registers.Set(REG_AX, 0x4142)
	assert.NoError(execute(cpu, "STOSW"))
	assert.Equal(uint16(0x4142), cpu.Memory.GetWord(0x200, 0x1f))
	assert.Equal(uint32(0x21), cpu.Registers.Get(REG_DI))

	cpu.Registers.Set(REG_DI, 0x1f)
	assert.NoError(execute(cpu, "SCASB"))
	assert.True(cpu.Flags.ZF(), "AL matches the low byte")
	assert.NoError(execute(cpu, "SCASB"))
	assert.False(cpu.Flags.ZF())
	assert.Equal(uint32(0x21), cpu.Registers.Get(REG_DI))

	cpu.Registers.Set(REG_SI, 0x10)
	assert.NoError(execute(cpu, "LODSB"))
	assert.Equal(uint32(0xef), cpu.Registers.Get(REG_AL))
	assert.Equal(uint32(0x11), cpu.Registers.Get(REG_SI))
}

func TestCpuRepeat(t *testing.T) {
	assert := assert.New(t)

	cpu := load(t, `
	MOV CX, 5
	MOV SI, 0x10
	MOV DI, 0x40
	REP MOVSB
`)
	cpu.Memory.SetBytes(0, 0x10, []byte("hello"))
	run(t, cpu)

	assert.Equal([]byte("hello"), cpu.Memory.GetBytes(0, 0x40, 5))
	assert.Equal(uint32(0), cpu.Registers.Get(REG_CX))
	assert.Equal(uint32(0x15), cpu.Registers.Get(REG_SI))
	assert.Equal(uint32(0x45), cpu.Registers.Get(REG_DI))

	cpu = load(t, `
	MOV CX, 10
	MOV SI, 0x10
	MOV DI, 0x20
	REPE CMPSB
`)
	cpu.Memory.SetBytes(0, 0x10, []byte("abcX"))
	cpu.Memory.SetBytes(0, 0x20, []byte("abcY"))
	run(t, cpu)

	assert.Equal(uint32(6), cpu.Registers.Get(REG_CX))
	assert.Equal(uint32(0x14), cpu.Registers.Get(REG_SI))
	assert.False(cpu.Flags.ZF())

	cpu = load(t, `
	MOV CX, 0xFFFF
	MOV DI, 0x30
	MOV AL, 0
	REPNE SCASB
`)
	cpu.Memory.SetBytes(0, 0x30, []byte("abc\000"))
	run(t, cpu)

	assert.Equal(uint32(0xfffb), cpu.Registers.Get(REG_CX))
	assert.Equal(uint32(0x34), cpu.Registers.Get(REG_DI))
	assert.True(cpu.Flags.ZF())

	cpu = load(t, "MOV CX, 0\nREP STOSB")
	run(t, cpu)
	assert.Equal(uint32(0), cpu.Registers.Get(REG_DI), "CX of zero repeats nothing")
}

func TestCpuRepeatErrors(t *testing.T) {
	assert := assert.New(t)

	cpu := load(t, "MOV CX, 1\nREP")
	assert.NoError(cpu.Tick())
	err := cpu.Tick()
	assert.ErrorIs(err, ErrIllegalState)
	assert.False(errors.Is(err, ErrIpEmpty))

	cpu = load(t, "MOV CX, 1\nREP INC AX")
	assert.NoError(cpu.Tick())
	err = cpu.Tick()
	assert.ErrorIs(err, ErrMalformedInstruction)
	assert.ErrorIs(err, ErrOpcode{})
}

func TestCpuSegmentOverride(t *testing.T) {
	assert := assert.New(t)

	cpu := load(t, "ES: MOV AL, [BX]\nMOV CL, [BX]")
	cpu.Registers.Set(REG_ES, 0x10)
	cpu.Registers.Set(REG_BX, 4)
	cpu.Memory.SetByte(0x10, 4, 0x42)
	cpu.Memory.SetByte(0, 4, 0x24)
	run(t, cpu)

	assert.Equal(uint32(0x42), cpu.Registers.Get(REG_AL))
	assert.Equal(uint32(0x24), cpu.Registers.Get(REG_CL), "override lasts one instruction")
	assert.Equal(REG_NONE, cpu.override)
}

func TestCpuAddressFault(t *testing.T) {
	assert := assert.New(t)

	prog, err := (&Assembler{}).Parse(strings.NewReader("ES: MOV AX, [BX]"))
	assert.NoError(err)

	cpu := NewCpu(memory.NewMemory(0x100))
	cpu.Source = prog
	cpu.Registers.Set(REG_BX, 0x200)

	err = cpu.Tick()
	var fault memory.ErrAddressRange
	if assert.True(errors.As(err, &fault), "%v", err) {
		assert.Equal(uint16(0x200), fault.Offset)
	}
	assert.Equal(REG_NONE, cpu.override, "override dropped after fault")
	assert.Equal(uint16(0), cpu.DataSegment())
}

func TestCpuPrograms(t *testing.T) {
	assert := assert.New(t)

	cpu := load(t, `
	MOV CX, 4
	MOV AX, 0
again:
	ADD AX, CX
	LOOP again
`)
	run(t, cpu)
	assert.Equal(uint32(10), cpu.Registers.Get(REG_AX))
	assert.Equal(uint32(0), cpu.Registers.Get(REG_CX))

	cpu = load(t, `
	CALL sub
	MOV BX, 2
	JMP done
sub:
	MOV AX, 1
	RET
done:
`)
	run(t, cpu)
	assert.Equal(uint32(1), cpu.Registers.Get(REG_AX))
	assert.Equal(uint32(2), cpu.Registers.Get(REG_BX))
	assert.Equal(uint32(0), cpu.Registers.Get(REG_SP))
	assert.Equal(5, cpu.Ticks)
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.Registers.Set(REG_EAX, 0xdeadbeef)
	cpu.Flags.SetCF(true)
	cpu.Ip = 0x100
	cpu.Ticks = 5

	cpu.Reset()
	assert.Equal(uint32(0), cpu.Registers.Get(REG_EAX))
	assert.Equal(uint16(0), cpu.Flags.Word)
	assert.Equal(uint32(0), cpu.Ip)
	assert.Equal(0, cpu.Ticks)

	assert.Contains(cpu.String(), "flags: ---------")
	assert.Contains(cpu.String(), "eax: 0000_0000")

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}
	assert.Equal("0x1", defines["FLAG_CF"])
	assert.Equal("0x400", defines["FLAG_DF"])
}
