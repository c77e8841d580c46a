package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a two pass macro assembler for 80x86 mnemonics.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.

	predefine map[string]string   // Predefines
	Label     map[string]uint32   // Map of jump labels to code offsets.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// statement is one expanded source statement: a label definition, a
// directive, or an instruction line.
type statement struct {
	LineNo int
	Text   string
}

// Define defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// Assemble returns the machine code of a single line of assembler text.
func Assemble(line string) (code []byte, err error) {
	asm := &Assembler{}
	return asm.Assemble(line)
}

// Assemble returns the machine code of assembler text, using the
// current predefines.
func (asm *Assembler) Assemble(text string) (code []byte, err error) {
	prog, err := asm.Parse(strings.NewReader(text))
	if err != nil {
		return
	}

	code = prog.Binary()
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		v, perr := ParseNumber(str)
		if perr != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(v)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reWord       = regexp.MustCompile(`[A-Za-z0-9_.@$]+`)
)

// outsideQuotes applies fn to the parts of line that are not quoted.
func outsideQuotes(line string, fn func(string) string) string {
	var out strings.Builder
	var quote byte
	start := 0
	for n := 0; n < len(line); n++ {
		c := line[n]
		switch {
		case quote != 0:
			if c == quote {
				out.WriteString(line[start : n+1])
				start = n + 1
				quote = 0
			}
		case c == '"' || c == '\'':
			out.WriteString(fn(line[start:n]))
			start = n
			quote = c
		}
	}
	if quote != 0 {
		out.WriteString(line[start:])
	} else {
		out.WriteString(fn(line[start:]))
	}
	return out.String()
}

// stripComment removes a ';' comment that is not inside quotes.
func stripComment(line string) string {
	var quote byte
	for n := 0; n < len(line); n++ {
		c := line[n]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			if loc := reCharacter.FindStringIndex(line[n:]); loc != nil && loc[0] == 0 {
				n += loc[1] - 1
				continue
			}
			quote = c
		case c == ';':
			return line[:n]
		}
	}
	return line
}

// cutWord splits the first whitespace separated word from text.
func cutWord(text string) (word, rest string) {
	word = strings.TrimSpace(text)
	if n := strings.IndexFunc(word, unicode.IsSpace); n >= 0 {
		word, rest = word[:n], strings.TrimSpace(word[n:])
	}
	return
}

// isLabelDefinition is true for 'name:' words. Segment override prefixes
// such as 'ES:' are not labels.
func isLabelDefinition(word string) bool {
	name, ok := strings.CutSuffix(word, ":")
	if !ok || !isIdentifier(name) {
		return false
	}
	if reg, ok := LookupRegister(name); ok && reg.IsSegment() {
		return false
	}
	return true
}

// substitute replaces equates in the unquoted parts of a line.
func (asm *Assembler) substitute(line string) string {
	return outsideQuotes(line, func(text string) string {
		return reWord.ReplaceAllStringFunc(text, func(word string) string {
			if !isIdentifier(word) {
				return word
			}
			equate, ok := asm.Equate[word]
			if ok {
				return equate
			}
			return word
		})
	})
}

// expand turns a source line into statements, evaluating character
// literals, $() expressions, equates and macros.
func (asm *Assembler) expand(line string, lineno int) (stmts []statement, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return strconv.FormatInt(value, 10)
	})
	if err != nil {
		return
	}

	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE, or CONST EQU VALUE
	if words[0] == ".equ" || (len(words) > 1 && strings.EqualFold(words[1], "EQU")) {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		name := words[1]
		if words[0] != ".equ" {
			name = words[0]
		}
		_, ok := asm.Equate[name]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[name] = asm.substitute(words[2])
		return
	}

	line = asm.substitute(strings.TrimSpace(line))

	for {
		word, rest := cutWord(line)
		if !isLabelDefinition(word) {
			break
		}
		stmts = append(stmts, statement{LineNo: lineno, Text: word})
		line = rest
		if len(line) == 0 {
			return
		}
	}

	// .macro processing
	name, rest := cutWord(line)
	macro, ok := asm.Macro[name]
	if ok {
		var args []string
		if len(rest) != 0 {
			args = splitOperands(rest)
		}
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		unique := fmt.Sprintf("%v_%v_", name, lineno)
		for n, text := range macro.Lines {
			mlineno := macro.LineNo + n

			text = strings.ReplaceAll(text, "@", unique)
			var expanded []statement
			expanded, err = asm.expand(text, mlineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: mlineno, Err: err}
				err = &ErrSyntax{LineNo: mlineno, Line: text, Err: err}
				return
			}
			stmts = append(stmts, expanded...)
		}

		return
	}

	stmts = append(stmts, statement{LineNo: lineno, Text: line})
	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		var serr *ErrSyntax
		if err != nil && !errors.As(err, &serr) {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint32)
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	var stmts []statement
	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("asm: %v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			macro.Args = strings.FieldsFunc(strings.Join(words[2:], " "), func(r rune) bool {
				return r == ',' || r == ' '
			})
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		var expanded []statement
		expanded, err = asm.expand(line, lineno)
		if err != nil {
			return
		}
		stmts = append(stmts, expanded...)
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// First pass places labels, second pass links them.
	_, err = asm.pass(stmts, false)
	if err != nil {
		return
	}

	lines, err := asm.pass(stmts, true)
	if err != nil {
		return
	}

	prog = &Program{
		Lines: lines,
	}
	prog.reindex()

	return
}

// pass assembles every statement. The first pass records label offsets;
// the final pass resolves them, and must place every code at the same
// offset as the first.
func (asm *Assembler) pass(stmts []statement, final bool) (lines []Line, err error) {
	var ip uint32
	defined := make(map[string]bool, len(asm.Label))

	for _, stmt := range stmts {
		line := Line{LineNo: stmt.LineNo, Text: stmt.Text}
		line.Codes, ip, err = asm.statement(stmt.Text, ip, defined, final)
		if err != nil {
			err = &ErrSyntax{LineNo: stmt.LineNo, Line: stmt.Text, Err: err}
			return
		}
		lines = append(lines, line)
	}

	return
}

// statement assembles one statement at ip, returning the offset of the
// statement that follows it.
func (asm *Assembler) statement(text string, ip uint32, defined map[string]bool, final bool) (codes []Code, next uint32, err error) {
	next = ip

	word, rest := cutWord(text)
	if isLabelDefinition(word) {
		label := strings.TrimSuffix(word, ":")
		offset, ok := asm.Label[label]
		switch {
		case final && offset != ip:
			err = ErrIllegalState
			return
		case !final && ok:
			err = ErrLabelDuplicate
			return
		}
		asm.Label[label] = ip
		defined[label] = true
		return
	}

	switch strings.ToUpper(word) {
	case "ORG", ".ORG":
		value, perr := ParseNumber(rest)
		if perr != nil || !fits(value, WIDTH_WORD) {
			err = errors.Join(ErrOrgSyntax, perr)
			return
		}
		next = uint32(value)
		return
	}

	var missing []string
	symbols := func(name string) (value int64, ok bool) {
		offset, ok := asm.Label[name]
		if !ok {
			missing = append(missing, name)
		}
		return int64(offset), ok
	}

	insts, err := parseLine(text, symbols)
	if err != nil {
		return
	}
	if final && len(missing) != 0 {
		err = ErrLabelMissing(missing[0])
		return
	}

	for _, inst := range insts {
		for n, op := range inst.Operands {
			if lbl, ok := op.(Label); ok {
				lbl.Near = !defined[lbl.Name]
				inst.Operands[n] = lbl
			}
		}

		var bytes []byte
		bytes, err = Encode(inst, next)
		if err != nil {
			return
		}
		if asm.Verbose && final {
			log.Printf("asm: %04x: % x %v", next, bytes, inst)
		}
		codes = append(codes, Code{Ip: next, Instruction: inst, Bytes: bytes})
		next += uint32(len(bytes))
	}

	return
}
