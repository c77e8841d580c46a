// Package cpu implements the 8086-class processor core and assembler for the
// virtual88 machine.
//
// The processor models the general-purpose registers (with their 8-bit and
// 32-bit views), the segment registers, the FLAGS word, and a real-mode
// instruction set. Instructions are executed as decoded Instruction values
// fetched from an InstructionSource, normally an assembled Program.
//
// The assembler turns Intel-syntax source text into Instructions and their
// machine-code bytes. Effective-address expressions such as [BX+SI+8] are
// classified into one of the canonical ModR/M forms, and the same form table
// drives the byte encoder.
package cpu
