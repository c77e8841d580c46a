package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	stdio "io"
	"log"
	"os"
	"os/signal"

	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/ldaniels528/virtual88/cpu"
	"github.com/ldaniels528/virtual88/emulator"
	"github.com/ldaniels528/virtual88/io"
	"github.com/ldaniels528/virtual88/translate"
)

// CTRL_C is the interrupt key as it arrives from a raw terminal.
const CTRL_C = 0x03

// breakReader ends keyboard input and cancels the run when the raw
// terminal sends Ctrl-C.
type breakReader struct {
	stdio.Reader
	cancel context.CancelFunc
}

func (br *breakReader) Read(data []byte) (n int, err error) {
	n, err = br.Reader.Read(data)
	if at := bytes.IndexByte(data[:n], CTRL_C); at >= 0 {
		br.cancel()
		n = at
		err = stdio.EOF
	}
	return
}

// listing writes the assembled program: offset, machine code and source.
func listing(w stdio.Writer, prog *cpu.Program) {
	for _, line := range prog.Lines {
		if len(line.Codes) == 0 {
			fmt.Fprintf(w, "%4d %-4s %-16s %s\n", line.LineNo, "", "", line.Text)
			continue
		}
		for n, code := range line.Codes {
			text := line.Text
			if n > 0 {
				text = ""
			}
			fmt.Fprintf(w, "%4d %04X % -16X %s\n", line.LineNo, code.Ip, code.Bytes, text)
		}
	}
}

func run() (code int) {
	var compile string
	var input string
	var output string
	var root string
	var verbose bool
	var list bool
	var dump bool
	var raw bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble and run")
	flag.StringVar(&input, "i", "-", "Keyboard input")
	flag.StringVar(&output, "o", "-", "Display output")
	flag.StringVar(&root, "root", "", "Directory for file services")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&list, "l", false, "Print a listing, do not execute")
	flag.BoolVar(&dump, "d", false, "Dump the processor state after execution")
	flag.BoolVar(&raw, "raw", false, "Raw terminal keyboard input")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	defer emu.Close()

	prog := &cpu.Program{}

	// Assemble a new program.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: verbose}
		for name, value := range emu.Defines() {
			asm.Predefine(name, value)
		}
		prog, err = asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	}

	if list {
		listing(os.Stdout, prog)
		return
	}

	if len(root) != 0 {
		storage, err := io.NewStorage(root)
		if err != nil {
			log.Fatalf("%v: %v", root, err)
		}
		emu.Storage = storage
	}

	var keys stdio.Reader = os.Stdin
	if input != "-" {
		inf, err := os.Open(input)
		if err != nil {
			log.Fatalf("%v: %v", input, err)
		}
		defer inf.Close()
		keys = inf
	}

	var display stdio.Writer = os.Stdout
	if output != "-" {
		ouf, err := os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		defer ouf.Close()
		display = ouf
	}

	mem := emu.Cpu.Memory
	emu.Display = io.NewTerminal(mem, display)

	err := emu.Load(prog)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Nothing past this point may exit without restoring the terminal.
	if fd := int(os.Stdin.Fd()); raw && input == "-" && term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Printf("%v: %v", os.Args[0], err)
			code = 1
			return
		}
		defer term.Restore(fd, state)
		emu.Echo = true
		keys = &breakReader{Reader: keys, cancel: cancel}
	}

	kb := io.NewKeyboard(io.KEYBOARD_DEFAULT_CAPACITY)
	emu.Keyboard = kb
	go func() {
		err := kb.Feed(keys)
		if err != nil {
			log.Printf("%v: %v", input, err)
		}
		kb.Close()
	}()

	err = emu.Run(ctx)

	if dump {
		pp.Fprintln(os.Stderr, emu.Cpu.Registers, emu.Cpu.Flags)
		fmt.Fprint(os.Stderr, emu.Cpu.String())
	}

	if verbose {
		translate.Printer().Fprintf(os.Stderr, "%d instructions executed\n", emu.Cpu.Ticks)
	}

	if err != nil {
		log.Printf("%v: %v", compile, err)
		code = 1
		return
	}

	code = emu.ExitCode
	return
}

func main() {
	os.Exit(run())
}
