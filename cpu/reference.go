package cpu

import (
	"iter"
	"strconv"
	"strings"
	"unicode"
)

// Form is a canonical 16-bit effective address shape.
// The value of a form is (mod * 8) + r/m of its ModR/M encoding.
type Form int

const (
	FORM_BX_SI = Form(iota) // [BX+SI]
	FORM_BX_DI              // [BX+DI]
	FORM_BP_SI              // [BP+SI]
	FORM_BP_DI              // [BP+DI]
	FORM_SI                 // [SI]
	FORM_DI                 // [DI]
	FORM_NNNN               // [####]
	FORM_BX                 // [BX]

	FORM_BX_SI_NN // [BX+SI+##]
	FORM_BX_DI_NN // [BX+DI+##]
	FORM_BP_SI_NN // [BP+SI+##]
	FORM_BP_DI_NN // [BP+DI+##]
	FORM_SI_NN    // [SI+##]
	FORM_DI_NN    // [DI+##]
	FORM_BP_NN    // [BP+##]
	FORM_BX_NN    // [BX+##]

	FORM_BX_SI_NNNN // [BX+SI+####]
	FORM_BX_DI_NNNN // [BX+DI+####]
	FORM_BP_SI_NNNN // [BP+SI+####]
	FORM_BP_DI_NNNN // [BP+DI+####]
	FORM_SI_NNNN    // [SI+####]
	FORM_DI_NNNN    // [DI+####]
	FORM_BP_NNNN    // [BP+####]
	FORM_BX_NNNN    // [BX+####]

	FORM_COUNT
)

// formKeys are the resolver keys of each form; '##' stands for an 8-bit
// displacement and '####' for a 16-bit displacement.
var formKeys = [FORM_COUNT]string{
	"BX+SI", "BX+DI", "BP+SI", "BP+DI", "SI", "DI", "####", "BX",
	"BX+SI+##", "BX+DI+##", "BP+SI+##", "BP+DI+##", "SI+##", "DI+##", "BP+##", "BX+##",
	"BX+SI+####", "BX+DI+####", "BP+SI+####", "BP+DI+####", "SI+####", "DI+####", "BP+####", "BX+####",
}

// formMap maps resolver keys to forms.
var formMap = map[string]Form{
	"##": FORM_NNNN,  // Short absolute address still needs 16 bits.
	"BP": FORM_BP_NN, // [BP] has no mod 0 encoding.
}

func init() {
	for form, key := range formKeys {
		formMap[key] = Form(form)
	}
}

// formRegisters are the base and index registers for each r/m value.
var formRegisters = [8][2]Register{
	{REG_BX, REG_SI},
	{REG_BX, REG_DI},
	{REG_BP, REG_SI},
	{REG_BP, REG_DI},
	{REG_NONE, REG_SI},
	{REG_NONE, REG_DI},
	{REG_BP, REG_NONE},
	{REG_BX, REG_NONE},
}

// Mod returns the ModR/M 'mod' field of the form.
func (form Form) Mod() byte {
	return byte(form / 8)
}

// RM returns the ModR/M 'r/m' field of the form.
func (form Form) RM() byte {
	return byte(form % 8)
}

// Template returns the ModR/M byte of the form with a zero 'reg' field.
func (form Form) Template() byte {
	return form.Mod()<<6 | form.RM()
}

// Displacement is the width of the displacement that follows the ModR/M
// byte.
func (form Form) Displacement() Width {
	switch {
	case form == FORM_NNNN:
		return WIDTH_WORD
	case form.Mod() == 1:
		return WIDTH_BYTE
	case form.Mod() == 2:
		return WIDTH_WORD
	}
	return WIDTH_NONE
}

// Registers returns the base and index registers of the form.
func (form Form) Registers() (base, index Register) {
	if form == FORM_NNNN {
		return REG_NONE, REG_NONE
	}
	regs := formRegisters[form.RM()]
	return regs[0], regs[1]
}

func (form Form) String() string {
	if form < 0 || form >= FORM_COUNT {
		return "?"
	}
	return formKeys[form]
}

// MemoryReference is a resolved effective address.
type MemoryReference struct {
	Form         Form
	Displacement int64
	Symbol       string // Label supplying the displacement, if any.
}

// Offset computes the effective address, modulo 0x10000.
func (ref MemoryReference) Offset(cpu *Cpu) uint16 {
	base, index := ref.Form.Registers()
	offset := ref.Displacement
	if base != REG_NONE {
		offset += int64(cpu.Registers.Get(base))
	}
	if index != REG_NONE {
		offset += int64(cpu.Registers.Get(index))
	}
	return uint16(offset)
}

func (ref MemoryReference) String() string {
	var parts []string
	base, index := ref.Form.Registers()
	if base != REG_NONE {
		parts = append(parts, base.String())
	}
	if index != REG_NONE {
		parts = append(parts, index.String())
	}
	text := strings.Join(parts, "+")
	if ref.Form.Displacement() == WIDTH_NONE {
		return text
	}
	var disp string
	switch {
	case len(ref.Symbol) != 0:
		disp = ref.Symbol
	case ref.Displacement < 0:
		return text + strconv.FormatInt(ref.Displacement, 10)
	default:
		disp = Immediate{Value: ref.Displacement}.String()
	}
	if len(text) == 0 {
		return disp
	}
	return text + "+" + disp
}

// Symbols resolves an assembler symbol to its value. A symbol that is
// valid but not yet defined returns ok as false and a nil error.
type Symbols func(name string) (value int64, ok bool)

// ParseReference classifies the text between the brackets of a memory
// operand, such as "BX+SI+8" or "BP-2", into its canonical form.
func ParseReference(expr string) (ref MemoryReference, err error) {
	return parseReference(expr, nil)
}

func parseReference(expr string, symbols Symbols) (ref MemoryReference, err error) {
	var base, index Register
	var hasDisp bool
	var symbol string

	for term, negative := range terms(expr) {
		if len(term) == 0 {
			err = malformed(ErrUnrecognizedToken(expr))
			return
		}
		if reg, ok := LookupRegister(term); ok {
			var slot *Register
			switch reg {
			case REG_BX, REG_BP:
				slot = &base
			case REG_SI, REG_DI:
				slot = &index
			default:
				err = malformed(ErrInvalidRegisterUsage)
				return
			}
			if negative || *slot != REG_NONE {
				err = malformed(ErrInvalidRegisterUsage)
				return
			}
			*slot = reg
			continue
		}

		var value int64
		value, err = ParseNumber(term)
		if err != nil {
			if symbols == nil || !isIdentifier(term) {
				err = malformed(ErrUnrecognizedToken(term))
				return
			}
			err = nil
			value, _ = symbols(term)
			symbol = term
		}
		if hasDisp {
			err = malformed(ErrDisplacementMultiple)
			return
		}
		hasDisp = true
		if negative {
			value = -value
		}
		ref.Displacement = value
	}

	if !fits(ref.Displacement, WIDTH_WORD) {
		err = malformed(ErrOperandSize)
		return
	}

	var parts []string
	if base != REG_NONE {
		parts = append(parts, base.String())
	}
	if index != REG_NONE {
		parts = append(parts, index.String())
	}
	if hasDisp {
		switch {
		case len(parts) == 0:
			parts = append(parts, "####")
		case len(symbol) == 0 && fitsSigned(ref.Displacement, WIDTH_BYTE):
			parts = append(parts, "##")
		default:
			parts = append(parts, "####")
		}
	}

	form, ok := formMap[strings.Join(parts, "+")]
	if !ok {
		err = malformed(ErrInvalidArgument)
		return
	}

	ref.Form = form
	ref.Symbol = symbol
	return
}

// terms yields the '+' or '-' separated terms of an address expression,
// and whether each was negated.
func terms(expr string) iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		expr = strings.Join(strings.Fields(expr), "")
		negative := false
		if len(expr) > 0 && (expr[0] == '+' || expr[0] == '-') {
			negative = expr[0] == '-'
			expr = expr[1:]
		}
		for {
			n := strings.IndexAny(expr, "+-")
			if n < 0 {
				yield(expr, negative)
				return
			}
			if !yield(expr[:n], negative) {
				return
			}
			negative = expr[n] == '-'
			expr = expr[n+1:]
		}
	}
}

// isIdentifier is true for a valid symbol name.
func isIdentifier(word string) bool {
	if len(word) == 0 {
		return false
	}
	for n, r := range word {
		switch {
		case r == '_' || r == '.' || r == '@' || r == '$':
		case unicode.IsLetter(r):
		case n > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// ParseNumber parses a decimal, hexadecimal, octal or binary literal.
// Accepted forms are Go style prefixes (0x, 0o, 0b, leading 0 for octal)
// and assembler style suffixes (h, o or q, b).
func ParseNumber(word string) (value int64, err error) {
	text := word
	negative := false
	if strings.HasPrefix(text, "-") {
		negative = true
		text = text[1:]
	}
	if len(text) == 0 || !unicode.IsDigit(rune(text[0])) {
		err = ErrNumericValueExpected(word)
		return
	}

	base := 0
	last := text[len(text)-1]
	prefixed := len(text) > 1 && text[0] == '0' && strings.ContainsRune("xXoObB", rune(text[1]))
	switch {
	case len(text) > 1 && (last == 'h' || last == 'H'):
		// A trailing h is always hex, even after a leading 0B.
		base = 16
		text = text[:len(text)-1]
	case !prefixed && len(text) > 1:
		body := text[:len(text)-1]
		switch last {
		case 'o', 'O', 'q', 'Q':
			base = 8
			text = body
		case 'b', 'B':
			base = 2
			text = body
		}
	}

	var u uint64
	u, err = strconv.ParseUint(text, base, 64)
	if err != nil {
		err = ErrNumericValueExpected(word)
		return
	}

	value = int64(u)
	if negative {
		value = -value
	}
	return
}
