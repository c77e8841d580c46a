package cpu

import (
	"strconv"
	"strings"
	"unicode"
)

// Instruction is a mnemonic and its operands.
type Instruction struct {
	Name     string
	Operands []Operand
}

func (inst Instruction) String() string {
	if len(inst.Operands) == 0 {
		return inst.Name
	}
	args := make([]string, len(inst.Operands))
	for n, op := range inst.Operands {
		args[n] = op.String()
	}
	return inst.Name + " " + strings.Join(args, ", ")
}

// widthNames are the memory operand width tags.
var widthNames = map[string]Width{
	"BYTE":  WIDTH_BYTE,
	"WORD":  WIDTH_WORD,
	"DWORD": WIDTH_DWORD,
	"QWORD": WIDTH_QWORD,
}

// ParseInstruction parses a single instruction, such as
// "MOV AX, WORD PTR [BX+SI+2]".
func ParseInstruction(text string) (inst Instruction, err error) {
	insts, err := ParseLine(text)
	if err != nil {
		return
	}
	if len(insts) != 1 {
		err = malformed(ErrInvalidNumberOfParameters)
		return
	}
	inst = insts[0]
	return
}

// ParseLine parses a line of assembler text. Leading prefixes such as
// "REP" or "ES:" are returned as instructions of their own.
func ParseLine(text string) (insts []Instruction, err error) {
	return parseLine(text, nil)
}

func parseLine(text string, symbols Symbols) (insts []Instruction, err error) {
	text = strings.TrimSpace(text)
	for len(text) != 0 {
		name, rest := text, ""
		if n := strings.IndexFunc(text, unicode.IsSpace); n >= 0 {
			name, rest = text[:n], strings.TrimSpace(text[n:])
		}
		name = strings.ToUpper(name)

		if IsPrefix(name) && len(rest) != 0 {
			insts = append(insts, Instruction{Name: name})
			text = rest
			continue
		}

		var inst Instruction
		inst, err = parseInstruction(name, rest, symbols)
		if err != nil {
			return
		}
		insts = append(insts, inst)
		break
	}
	return
}

func parseInstruction(name string, args string, symbols Symbols) (inst Instruction, err error) {
	inst.Name = name
	if len(args) == 0 {
		return
	}
	for _, arg := range splitOperands(args) {
		var op Operand
		op, err = parseOperand(arg, symbols)
		if err != nil {
			return
		}
		inst.Operands = append(inst.Operands, op)
	}
	return
}

// splitOperands splits on commas outside of quotes and brackets.
func splitOperands(text string) (args []string) {
	var quote byte
	depth := 0
	start := 0
	for n := 0; n < len(text); n++ {
		c := text[n]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				n++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(text[start:n]))
			start = n + 1
		}
	}
	args = append(args, strings.TrimSpace(text[start:]))
	return
}

// parseOperand parses one operand: a register, a number, a quoted
// string, a label, or a memory reference with optional width tag and
// segment prefix.
func parseOperand(text string, symbols Symbols) (op Operand, err error) {
	if len(text) == 0 {
		err = malformed(ErrInvalidArgument)
		return
	}

	if text[0] == '"' || text[0] == '\'' {
		return parseText(text)
	}

	width := WIDTH_NONE
	if fields := strings.Fields(text); len(fields) > 1 {
		if w, ok := widthNames[strings.ToUpper(fields[0])]; ok {
			width = w
			fields = fields[1:]
			if strings.ToUpper(fields[0]) == "PTR" {
				fields = fields[1:]
			}
			text = strings.Join(fields, " ")
		}
	}

	segment := REG_NONE
	if colon := strings.IndexByte(text, ':'); colon > 0 && strings.IndexByte(text, '[') > colon {
		reg, ok := LookupRegister(strings.TrimSpace(text[:colon]))
		if !ok || !reg.IsSegment() {
			err = malformed(ErrInvalidRegisterUsage)
			return
		}
		segment = reg
		text = strings.TrimSpace(text[colon+1:])
	}

	if strings.HasPrefix(text, "[") {
		if !strings.HasSuffix(text, "]") {
			err = malformed(ErrUnrecognizedToken(text))
			return
		}
		var ref MemoryReference
		ref, err = parseReference(text[1:len(text)-1], symbols)
		if err != nil {
			return
		}
		op = MemoryPointer{Width: width, Reference: ref, Segment: segment}
		return
	}

	if width != WIDTH_NONE || segment != REG_NONE {
		err = malformed(ErrInvalidArgument)
		return
	}

	if reg, ok := LookupRegister(text); ok {
		op = reg
		return
	}

	if value, perr := ParseNumber(text); perr == nil {
		op = NewImmediate(value)
		return
	}

	if isIdentifier(text) {
		label := Label{Name: text}
		if symbols != nil {
			var value int64
			value, label.Resolved = symbols(text)
			label.Offset = uint32(value)
		}
		op = label
		return
	}

	err = malformed(ErrNumericValueExpected(text))
	return
}

// parseText parses a quoted string operand.
func parseText(text string) (op Operand, err error) {
	quote := text[0]
	if len(text) < 2 || text[len(text)-1] != quote {
		err = malformed(ErrUnrecognizedToken(text))
		return
	}
	if quote == '\'' {
		op = Text(text[1 : len(text)-1])
		return
	}
	str, err := strconv.Unquote(text)
	if err != nil {
		err = malformed(ErrUnrecognizedToken(text))
		return
	}
	op = Text(str)
	return
}
