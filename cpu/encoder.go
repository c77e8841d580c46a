package cpu

import (
	"slices"
	"strings"
)

// encoder emits the machine code of one opcode family.
type encoder struct {
	family string // Opcode byte range.
	accept func(inst Instruction) bool
	encode func(inst Instruction, ip uint32) ([]byte, error)
}

// encoders are tried in order; the first that accepts an instruction
// encodes it.
var encoders = []encoder{
	{"DB DW DD DQ", isData, encodeData},
	{"26 2E 36 3E 64 65", isSegmentPrefix, encodeSegmentPrefix},
	{"00-3F", isAlu, encodeAlu},
	{"40-4F", isIncDecRegister, encodeIncDecRegister},
	{"50-6F", isStack, encodeStack},
	{"70-7F", isJcc, encodeJcc},
	{"80-8F", is80, encode80},
	{"90-9F", is90, encode90},
	{"A0-AF", isA0, encodeA0},
	{"B0-BF", isMoveImmediate, encodeMoveImmediate},
	{"C0-CF", isC0, encodeC0},
	{"D0-DF", isShiftD0, encodeShiftD0},
	{"E0-EF", isE0, encodeE0},
	{"F0-FF", isF0, encodeF0},
	{"0F B2-B5", isFarLoad, encodeFarLoad},
}

// Encode returns the machine code of an instruction placed at ip.
func Encode(inst Instruction, ip uint32) (code []byte, err error) {
	if op, ok := LookupOpcode(inst.Name); ok {
		err = op.Validate(inst.Operands)
		if err != nil {
			err = malformed(err)
			return
		}
	}

	for _, enc := range encoders {
		if enc.accept(inst) {
			return enc.encode(inst, ip)
		}
	}

	err = malformed(ErrUnrecognizedInstruction)
	return
}

var (
	aluCodes   = map[string]byte{"ADD": 0, "OR": 1, "ADC": 2, "SBB": 3, "AND": 4, "SUB": 5, "XOR": 6, "CMP": 7}
	shiftCodes = map[string]byte{"ROL": 0, "ROR": 1, "RCL": 2, "RCR": 3, "SHL": 4, "SAL": 4, "SHR": 5, "SAR": 7}
	group3     = map[string]byte{"NOT": 2, "NEG": 3, "MUL": 4, "IMUL": 5, "DIV": 6, "IDIV": 7}
	stringOps  = map[string]byte{"MOVS": 0xa4, "CMPS": 0xa6, "STOS": 0xaa, "LODS": 0xac, "SCAS": 0xae}
	dataWidths = map[string]Width{"DB": WIDTH_BYTE, "DW": WIDTH_WORD, "DD": WIDTH_DWORD, "DQ": WIDTH_QWORD}
	loopCodes  = map[string]byte{"LOOPNE": 0xe0, "LOOPNZ": 0xe0, "LOOPE": 0xe1, "LOOPZ": 0xe1, "LOOP": 0xe2, "JCXZ": 0xe3, "JECXZ": 0xe3}
	farLoads   = map[string][]byte{"LES": {0xc4}, "LDS": {0xc5}, "LSS": {0x0f, 0xb2}, "LFS": {0x0f, 0xb4}, "LGS": {0x0f, 0xb5}}

	codes90 = map[string][]byte{
		"NOP": {0x90}, "CBW": {0x98}, "CWDE": {0x66, 0x98}, "CWD": {0x99}, "CDQ": {0x66, 0x99},
		"PUSHF": {0x9c}, "POPF": {0x9d}, "SAHF": {0x9e}, "LAHF": {0x9f},
	}
	codesF0 = map[string][]byte{
		"REPNE": {0xf2}, "REPNZ": {0xf2}, "REP": {0xf3}, "REPE": {0xf3}, "REPZ": {0xf3},
		"CMC": {0xf5}, "CLC": {0xf8}, "STC": {0xf9}, "CLI": {0xfa}, "STI": {0xfb}, "CLD": {0xfc}, "STD": {0xfd},
	}
	pushSegment = map[Register][]byte{
		REG_ES: {0x06}, REG_CS: {0x0e}, REG_SS: {0x16}, REG_DS: {0x1e}, REG_FS: {0x0f, 0xa0}, REG_GS: {0x0f, 0xa8},
	}
)

// little encodes the low bytes of value, least significant first.
func little(value uint64, w Width) []byte {
	code := make([]byte, w.Bytes())
	for n := range code {
		code[n] = byte(value >> (8 * n))
	}
	return code
}

// wbit is the 'w' bit of an opcode for a width.
func wbit(w Width) byte {
	if w == WIDTH_BYTE {
		return 0
	}
	return 1
}

// segmentPrefix is the override prefix byte of a segment register.
func segmentPrefix(reg Register) byte {
	switch reg {
	case REG_FS:
		return 0x64
	case REG_GS:
		return 0x65
	}
	return 0x26 | reg.Code()<<3
}

// prefix emits segment override prefixes for explicit memory segments,
// and the operand size prefix for 32-bit operations.
func prefix(w Width, ops ...Operand) (code []byte) {
	for _, op := range ops {
		if mp, ok := op.(MemoryPointer); ok && mp.Segment != REG_NONE {
			code = append(code, segmentPrefix(mp.Segment))
		}
	}
	if w == WIDTH_DWORD {
		code = append(code, 0x66)
	}
	return
}

// modrm appends the ModR/M byte and displacement for a register field
// and a register or memory operand.
func modrm(code []byte, reg byte, rm Operand) ([]byte, error) {
	switch rm := rm.(type) {
	case Register:
		return append(code, 0xc0|reg<<3|rm.Code()), nil
	case MemoryPointer:
		form := rm.Reference.Form
		code = append(code, form.Template()|reg<<3)
		return append(code, little(uint64(rm.Reference.Displacement), form.Displacement())...), nil
	}
	return nil, malformed(ErrInvalidArgument)
}

// constant is the value of an immediate operand.
func constant(op Operand) (value int64, ok bool) {
	switch op := op.(type) {
	case Immediate:
		return op.Value, true
	case Label:
		return int64(op.Offset), true
	case Text:
		if len(op) == 1 {
			return int64(op[0]), true
		}
	}
	return
}

// isLabel is true for label operands, whose encoding size must not depend
// on their value.
func isLabel(op Operand) bool {
	_, ok := op.(Label)
	return ok
}

// relative is the displacement from the end of a jump of the given
// length at ip to its target. Unresolved labels are not yet known.
func relative(op Operand, ip uint32, length int) (rel int64, known bool, err error) {
	switch op := op.(type) {
	case Label:
		if !op.Resolved {
			return
		}
		rel, known = int64(op.Offset)-int64(ip)-int64(length), true
	case Immediate:
		rel, known = op.Value-int64(ip)-int64(length), true
	default:
		err = malformed(ErrInvalidArgument)
	}
	return
}

// short reports the 8-bit displacement of a jump that can use it.
func short(op Operand, ip uint32, length int) (rel int64, ok bool) {
	if lbl, isLbl := op.(Label); isLbl && (lbl.Near || !lbl.Resolved) {
		return
	}
	rel, known, err := relative(op, ip, length)
	ok = err == nil && known && fitsSigned(rel, WIDTH_BYTE)
	return
}

func isAccumulator(op Operand) bool {
	return op == REG_AL || op == REG_AX || op == REG_EAX
}

func isGeneral(op Operand, widths ...Width) bool {
	reg, ok := op.(Register)
	return ok && reg.IsGeneral() && slices.Contains(widths, reg.Width())
}

func isSegment(op Operand) bool {
	reg, ok := op.(Register)
	return ok && reg.IsSegment()
}

func isData(inst Instruction) bool {
	_, ok := dataWidths[inst.Name]
	return ok
}

func encodeData(inst Instruction, ip uint32) (code []byte, err error) {
	w := dataWidths[inst.Name]
	if len(inst.Operands) == 0 {
		err = malformed(ErrInvalidNumberOfParameters)
		return
	}
	for _, op := range inst.Operands {
		if text, ok := op.(Text); ok && w == WIDTH_BYTE {
			code = append(code, string(text)...)
			continue
		}
		value, ok := constant(op)
		if !ok {
			err = malformed(ErrInvalidArgument)
			return
		}
		if !fits(value, w) {
			err = malformed(ErrOperandSize)
			return
		}
		code = append(code, little(uint64(value), w)...)
	}
	return
}

func isSegmentPrefix(inst Instruction) bool {
	return IsPrefix(inst.Name) && strings.HasSuffix(inst.Name, ":")
}

func encodeSegmentPrefix(inst Instruction, ip uint32) (code []byte, err error) {
	reg, _ := LookupRegister(strings.TrimSuffix(inst.Name, ":"))
	code = []byte{segmentPrefix(reg)}
	return
}

func isAlu(inst Instruction) bool {
	_, ok := aluCodes[inst.Name]
	return ok && (!isImmediate(inst.Operands[1]) || isAccumulator(inst.Operands[0]))
}

func encodeAlu(inst Instruction, ip uint32) (code []byte, err error) {
	n := aluCodes[inst.Name]
	dst, src := inst.Operands[0], inst.Operands[1]
	w, _ := sizeOf(dst, src)
	code = prefix(w, dst, src)

	if value, ok := constant(src); ok {
		code = append(code, n<<3|4|wbit(w))
		code = append(code, little(uint64(value), w)...)
		return
	}
	if reg, ok := src.(Register); ok {
		return modrm(append(code, n<<3|wbit(w)), reg.Code(), dst)
	}
	return modrm(append(code, n<<3|2|wbit(w)), dst.(Register).Code(), src)
}

func isIncDecRegister(inst Instruction) bool {
	return (inst.Name == "INC" || inst.Name == "DEC") && isGeneral(inst.Operands[0], WIDTH_WORD, WIDTH_DWORD)
}

func encodeIncDecRegister(inst Instruction, ip uint32) (code []byte, err error) {
	reg := inst.Operands[0].(Register)
	base := byte(0x40)
	if inst.Name == "DEC" {
		base = 0x48
	}
	code = append(prefix(reg.Width()), base+reg.Code())
	return
}

func isStack(inst Instruction) bool {
	switch inst.Name {
	case "PUSH":
		_, isReg := inst.Operands[0].(Register)
		return isReg || isImmediate(inst.Operands[0])
	case "POP":
		_, isReg := inst.Operands[0].(Register)
		return isReg
	}
	return false
}

func encodeStack(inst Instruction, ip uint32) (code []byte, err error) {
	op := inst.Operands[0]
	pop := inst.Name == "POP"

	if reg, ok := op.(Register); ok {
		if reg.IsSegment() {
			code = slices.Clone(pushSegment[reg])
			if pop {
				code[len(code)-1]++
			}
			return
		}
		base := byte(0x50)
		if pop {
			base = 0x58
		}
		code = append(prefix(reg.Width()), base+reg.Code())
		return
	}

	value, _ := constant(op)
	switch w := stackWidth(op); {
	case !isLabel(op) && fitsSigned(value, WIDTH_BYTE):
		code = []byte{0x6a, byte(value)}
	default:
		code = append(prefix(w), 0x68)
		code = append(code, little(uint64(value), w)...)
	}
	return
}

func isJcc(inst Instruction) bool {
	_, ok := LookupCondition(inst.Name)
	return ok
}

func encodeJcc(inst Instruction, ip uint32) (code []byte, err error) {
	cc, _ := LookupCondition(inst.Name)
	target := inst.Operands[0]

	if rel, ok := short(target, ip, 2); ok {
		code = []byte{0x70 | cc, byte(rel)}
		return
	}

	rel, _, err := relative(target, ip, 4)
	if err != nil {
		return
	}
	code = append([]byte{0x0f, 0x80 | cc}, little(uint64(rel), WIDTH_WORD)...)
	return
}

// isExchangeAccumulator is true for the one byte XCHG (E)AX, reg form.
func isExchangeAccumulator(inst Instruction) bool {
	if inst.Name != "XCHG" {
		return false
	}
	a, b := inst.Operands[0], inst.Operands[1]
	if a == REG_AX || a == REG_EAX {
		a, b = b, a
	}
	return (b == REG_AX && isGeneral(a, WIDTH_WORD)) || (b == REG_EAX && isGeneral(a, WIDTH_DWORD))
}

// isMoveOffset is true for MOV between the accumulator and a direct
// address.
func isMoveOffset(inst Instruction) bool {
	if inst.Name != "MOV" {
		return false
	}
	a, b := inst.Operands[0], inst.Operands[1]
	if isMemory(a) {
		a, b = b, a
	}
	mp, ok := b.(MemoryPointer)
	return ok && isAccumulator(a) && mp.Reference.Form == FORM_NNNN
}

func is80(inst Instruction) bool {
	switch inst.Name {
	case "TEST":
		return !isImmediate(inst.Operands[1])
	case "XCHG":
		return !isExchangeAccumulator(inst)
	case "MOV":
		return !isImmediate(inst.Operands[1]) && !isMoveOffset(inst)
	case "LEA":
		return true
	case "POP":
		return isMemory(inst.Operands[0])
	}
	_, ok := aluCodes[inst.Name]
	return ok && isImmediate(inst.Operands[1]) && !isAccumulator(inst.Operands[0])
}

func encode80(inst Instruction, ip uint32) (code []byte, err error) {
	ops := inst.Operands

	switch inst.Name {
	case "POP":
		w := stackWidth(ops[0])
		return modrm(append(prefix(w, ops[0]), 0x8f), 0, ops[0])
	case "LEA":
		reg := ops[0].(Register)
		return modrm(append(prefix(reg.Width()), 0x8d), reg.Code(), ops[1])
	}

	dst, src := ops[0], ops[1]
	w, _ := sizeOf(dst, src)
	code = prefix(w, dst, src)

	if n, ok := aluCodes[inst.Name]; ok {
		value, _ := constant(src)
		switch {
		case w == WIDTH_BYTE:
			code, err = modrm(append(code, 0x80), n, dst)
		case !isLabel(src) && fitsSigned(value, WIDTH_BYTE):
			code, err = modrm(append(code, 0x83), n, dst)
			w = WIDTH_BYTE
		default:
			code, err = modrm(append(code, 0x81), n, dst)
		}
		if err != nil {
			return
		}
		code = append(code, little(uint64(value), w)...)
		return
	}

	if inst.Name == "MOV" {
		switch {
		case isSegment(dst):
			return modrm(append(code, 0x8e), dst.(Register).Code(), src)
		case isSegment(src):
			return modrm(append(code, 0x8c), src.(Register).Code(), dst)
		case !isMemory(src):
			return modrm(append(code, 0x88|wbit(w)), src.(Register).Code(), dst)
		}
		return modrm(append(code, 0x8a|wbit(w)), dst.(Register).Code(), src)
	}

	base := byte(0x84)
	if inst.Name == "XCHG" {
		base = 0x86
	}
	if reg, ok := src.(Register); ok {
		return modrm(append(code, base|wbit(w)), reg.Code(), dst)
	}
	return modrm(append(code, base|wbit(w)), dst.(Register).Code(), src)
}

func is90(inst Instruction) bool {
	_, ok := codes90[inst.Name]
	return ok || isExchangeAccumulator(inst)
}

func encode90(inst Instruction, ip uint32) (code []byte, err error) {
	if bytes, ok := codes90[inst.Name]; ok {
		code = slices.Clone(bytes)
		return
	}
	a, b := inst.Operands[0].(Register), inst.Operands[1].(Register)
	if a == REG_AX || a == REG_EAX {
		a, b = b, a
	}
	code = append(prefix(b.Width()), 0x90+a.Code())
	return
}

// stringCode returns the base opcode and width of a string mnemonic.
func stringCode(name string) (code byte, w Width, ok bool) {
	if len(name) != 5 {
		return
	}
	code, ok = stringOps[name[:4]]
	switch name[4] {
	case 'B':
		w = WIDTH_BYTE
	case 'W':
		w = WIDTH_WORD
	case 'D':
		w = WIDTH_DWORD
	default:
		ok = false
	}
	return
}

func isA0(inst Instruction) bool {
	if _, _, ok := stringCode(inst.Name); ok {
		return true
	}
	if inst.Name == "TEST" {
		return isAccumulator(inst.Operands[0])
	}
	return isMoveOffset(inst)
}

func encodeA0(inst Instruction, ip uint32) (code []byte, err error) {
	if base, w, ok := stringCode(inst.Name); ok {
		code = append(prefix(w), base|wbit(w))
		return
	}

	dst, src := inst.Operands[0], inst.Operands[1]
	w, _ := sizeOf(dst, src)
	code = prefix(w, dst, src)

	if inst.Name == "TEST" {
		value, _ := constant(src)
		code = append(code, 0xa8|wbit(w))
		code = append(code, little(uint64(value), w)...)
		return
	}

	base := byte(0xa0)
	mp, ok := src.(MemoryPointer)
	if !ok {
		base = 0xa2
		mp = dst.(MemoryPointer)
	}
	code = append(code, base|wbit(w))
	code = append(code, little(uint64(mp.Reference.Displacement), WIDTH_WORD)...)
	return
}

func isMoveImmediate(inst Instruction) bool {
	return inst.Name == "MOV" && isGeneral(inst.Operands[0], WIDTH_BYTE, WIDTH_WORD, WIDTH_DWORD) && isImmediate(inst.Operands[1])
}

func encodeMoveImmediate(inst Instruction, ip uint32) (code []byte, err error) {
	reg := inst.Operands[0].(Register)
	value, _ := constant(inst.Operands[1])
	w := reg.Width()
	base := byte(0xb0)
	if w != WIDTH_BYTE {
		base = 0xb8
	}
	code = append(prefix(w), base+reg.Code())
	code = append(code, little(uint64(value), w)...)
	return
}

// shiftByOne is true for shifts by an implied or explicit count of 1.
func shiftByOne(inst Instruction) bool {
	if len(inst.Operands) == 1 {
		return true
	}
	value, ok := constant(inst.Operands[1])
	return ok && value == 1
}

func isC0(inst Instruction) bool {
	switch inst.Name {
	case "RET", "INT", "LES", "LDS":
		return true
	case "MOV":
		return isMemory(inst.Operands[0]) && isImmediate(inst.Operands[1])
	}
	_, ok := shiftCodes[inst.Name]
	return ok && !shiftByOne(inst) && isImmediate(inst.Operands[1])
}

func encodeC0(inst Instruction, ip uint32) (code []byte, err error) {
	ops := inst.Operands

	switch inst.Name {
	case "RET":
		if len(ops) == 0 {
			code = []byte{0xc3}
			return
		}
		value, _ := constant(ops[0])
		code = append([]byte{0xc2}, little(uint64(value), WIDTH_WORD)...)
		return
	case "INT":
		value, _ := constant(ops[0])
		if value == 3 {
			code = []byte{0xcc}
			return
		}
		code = []byte{0xcd, byte(value)}
		return
	case "LES", "LDS":
		return encodeFarLoad(inst, ip)
	case "MOV":
		w, _ := sizeOf(ops[0], ops[1])
		value, _ := constant(ops[1])
		code, err = modrm(append(prefix(w, ops[0]), 0xc6|wbit(w)), 0, ops[0])
		if err != nil {
			return
		}
		code = append(code, little(uint64(value), w)...)
		return
	}

	w := ops[0].Size()
	value, _ := constant(ops[1])
	code, err = modrm(append(prefix(w, ops[0]), 0xc0|wbit(w)), shiftCodes[inst.Name], ops[0])
	if err != nil {
		return
	}
	code = append(code, byte(value))
	return
}

func isShiftD0(inst Instruction) bool {
	_, ok := shiftCodes[inst.Name]
	return ok && (shiftByOne(inst) || inst.Operands[1] == REG_CL)
}

func encodeShiftD0(inst Instruction, ip uint32) (code []byte, err error) {
	dst := inst.Operands[0]
	w := dst.Size()
	base := byte(0xd0)
	if !shiftByOne(inst) {
		base = 0xd2
	}
	return modrm(append(prefix(w, dst), base|wbit(w)), shiftCodes[inst.Name], dst)
}

func isE0(inst Instruction) bool {
	if _, ok := loopCodes[inst.Name]; ok {
		return true
	}
	if inst.Name == "CALL" || inst.Name == "JMP" {
		_, ok := constant(inst.Operands[0])
		return ok
	}
	return false
}

func encodeE0(inst Instruction, ip uint32) (code []byte, err error) {
	target := inst.Operands[0]

	if base, ok := loopCodes[inst.Name]; ok {
		if inst.Name == "JECXZ" {
			code = []byte{0x67}
		}
		code = append(code, base)
		rel, known, err := relative(target, ip, len(code)+1)
		if err != nil {
			return nil, err
		}
		if known && !fitsSigned(rel, WIDTH_BYTE) {
			return nil, malformed(ErrJumpRange)
		}
		return append(code, byte(rel)), nil
	}

	if inst.Name == "JMP" {
		if rel, ok := short(target, ip, 2); ok {
			code = []byte{0xeb, byte(rel)}
			return
		}
		code = []byte{0xe9}
	} else {
		code = []byte{0xe8}
	}

	rel, _, err := relative(target, ip, 3)
	if err != nil {
		return
	}
	code = append(code, little(uint64(rel), WIDTH_WORD)...)
	return
}

func isF0(inst Instruction) bool {
	if _, ok := codesF0[inst.Name]; ok {
		return true
	}
	if _, ok := group3[inst.Name]; ok {
		return true
	}
	switch inst.Name {
	case "TEST", "INC", "DEC", "CALL", "JMP":
		return true
	case "PUSH":
		return isMemory(inst.Operands[0])
	}
	return false
}

func encodeF0(inst Instruction, ip uint32) (code []byte, err error) {
	if bytes, ok := codesF0[inst.Name]; ok {
		code = slices.Clone(bytes)
		return
	}

	op := inst.Operands[0]

	var n byte
	var w Width
	switch inst.Name {
	case "INC", "DEC":
		w = op.Size()
		if inst.Name == "DEC" {
			n = 1
		}
		return modrm(append(prefix(w, op), 0xfe|wbit(w)), n, op)
	case "CALL", "JMP", "PUSH":
		w = stackWidth(op)
		n = map[string]byte{"CALL": 2, "JMP": 4, "PUSH": 6}[inst.Name]
		return modrm(append(prefix(w, op), 0xff), n, op)
	case "TEST":
		w, _ = sizeOf(op, inst.Operands[1])
		value, _ := constant(inst.Operands[1])
		code, err = modrm(append(prefix(w, op), 0xf6|wbit(w)), 0, op)
		if err != nil {
			return
		}
		code = append(code, little(uint64(value), w)...)
		return
	}

	w = op.Size()
	return modrm(append(prefix(w, op), 0xf6|wbit(w)), group3[inst.Name], op)
}

func isFarLoad(inst Instruction) bool {
	_, ok := farLoads[inst.Name]
	return ok
}

func encodeFarLoad(inst Instruction, ip uint32) (code []byte, err error) {
	reg := inst.Operands[0].(Register)
	code = append(prefix(reg.Width(), inst.Operands[1]), farLoads[inst.Name]...)
	return modrm(code, reg.Code(), inst.Operands[1])
}
