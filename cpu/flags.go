package cpu

import (
	"math/bits"
)

// FLAGS word bit positions.
const (
	FLAG_CF       = uint16(1 << 0)  // Carry
	FLAG_RESERVED = uint16(1 << 1)  // Always reads as 1
	FLAG_PF       = uint16(1 << 2)  // Parity
	FLAG_AF       = uint16(1 << 4)  // Auxiliary carry
	FLAG_ZF       = uint16(1 << 6)  // Zero
	FLAG_SF       = uint16(1 << 7)  // Sign
	FLAG_TF       = uint16(1 << 8)  // Trap
	FLAG_IF       = uint16(1 << 9)  // Interrupt enable
	FLAG_DF       = uint16(1 << 10) // Direction
	FLAG_OF       = uint16(1 << 11) // Overflow

	// FLAG_AH_MASK is the set of flags exchanged with AH by LAHF/SAHF.
	FLAG_AH_MASK = FLAG_SF | FLAG_ZF | FLAG_AF | FLAG_PF | FLAG_CF
	// FLAG_MASK is every flag modelled by the processor.
	FLAG_MASK = FLAG_AH_MASK | FLAG_TF | FLAG_IF | FLAG_DF | FLAG_OF
)

// Flags is the FLAGS register.
type Flags struct {
	Word uint16 // Packed flag bits.

	// LegacyLogic selects the historical AND carry/overflow derivation,
	// CF = (a&b == a+b) and OF = (a&b > a+b), instead of clearing both.
	LegacyLogic bool
}

func (fl *Flags) test(flag uint16) bool {
	return fl.Word&flag != 0
}

func (fl *Flags) set(flag uint16, on bool) {
	if on {
		fl.Word |= flag
	} else {
		fl.Word &^= flag
	}
}

func (fl *Flags) CF() bool { return fl.test(FLAG_CF) }
func (fl *Flags) PF() bool { return fl.test(FLAG_PF) }
func (fl *Flags) AF() bool { return fl.test(FLAG_AF) }
func (fl *Flags) ZF() bool { return fl.test(FLAG_ZF) }
func (fl *Flags) SF() bool { return fl.test(FLAG_SF) }
func (fl *Flags) TF() bool { return fl.test(FLAG_TF) }
func (fl *Flags) IF() bool { return fl.test(FLAG_IF) }
func (fl *Flags) DF() bool { return fl.test(FLAG_DF) }
func (fl *Flags) OF() bool { return fl.test(FLAG_OF) }

func (fl *Flags) SetCF(on bool) { fl.set(FLAG_CF, on) }
func (fl *Flags) SetPF(on bool) { fl.set(FLAG_PF, on) }
func (fl *Flags) SetAF(on bool) { fl.set(FLAG_AF, on) }
func (fl *Flags) SetZF(on bool) { fl.set(FLAG_ZF, on) }
func (fl *Flags) SetSF(on bool) { fl.set(FLAG_SF, on) }
func (fl *Flags) SetTF(on bool) { fl.set(FLAG_TF, on) }
func (fl *Flags) SetIF(on bool) { fl.set(FLAG_IF, on) }
func (fl *Flags) SetDF(on bool) { fl.set(FLAG_DF, on) }
func (fl *Flags) SetOF(on bool) { fl.set(FLAG_OF, on) }

// Get returns the FLAGS word as PUSHF stores it.
func (fl *Flags) Get() uint16 {
	return (fl.Word & FLAG_MASK) | FLAG_RESERVED
}

// Set replaces every modelled flag, as POPF does.
func (fl *Flags) Set(word uint16) {
	fl.Word = word & FLAG_MASK
}

// Overlay replaces the AH-interchangeable status flags from the low byte
// of value, as SAHF does.
func (fl *Flags) Overlay(value uint8) {
	fl.Word = (fl.Word &^ FLAG_AH_MASK) | (uint16(value) & FLAG_AH_MASK)
}

// Status returns the low byte of FLAGS, as LAHF loads it.
func (fl *Flags) Status() uint8 {
	return uint8(fl.Get())
}

// Reset clears every flag.
func (fl *Flags) Reset() {
	fl.Word = 0
}

// parity is true when the low byte has an even number of set bits.
func parity(value uint64) bool {
	return bits.OnesCount8(uint8(value))%2 == 0
}

// setResult sets ZF, SF and PF from a result.
func (fl *Flags) setResult(result uint64, w Width) {
	result &= w.Mask()
	fl.SetZF(result == 0)
	fl.SetSF(result&w.Msb() != 0)
	fl.SetPF(parity(result))
}

func (fl *Flags) add(dest, src, carry uint64, w Width) (result uint64) {
	mask := w.Mask()
	a, b := dest&mask, src&mask
	sum, out := bits.Add64(a, b, carry)
	if w < WIDTH_QWORD {
		out = sum >> uint(w)
	}
	result = sum & mask
	fl.SetCF(out != 0)
	fl.SetOF((^(a ^ b))&(a^result)&w.Msb() != 0)
	fl.setResult(result, w)
	return
}

func (fl *Flags) sub(dest, src, borrow uint64, w Width) (result uint64) {
	mask := w.Mask()
	a, b := dest&mask, src&mask
	diff, out := bits.Sub64(a, b, borrow)
	result = diff & mask
	fl.SetCF(out != 0)
	fl.SetOF((a^b)&(a^result)&w.Msb() != 0)
	fl.setResult(result, w)
	return
}

func (fl *Flags) logic(result uint64, w Width) uint64 {
	result &= w.Mask()
	fl.SetCF(false)
	fl.SetOF(false)
	fl.setResult(result, w)
	return result
}

func (fl *Flags) carry() uint64 {
	if fl.CF() {
		return 1
	}
	return 0
}

// UpdateADD returns dest+src, setting CF, OF, PF, SF and ZF.
func (fl *Flags) UpdateADD(dest, src uint64, w Width) uint64 {
	return fl.add(dest, src, 0, w)
}

// UpdateADC returns dest+src+CF, setting CF, OF, PF, SF and ZF.
func (fl *Flags) UpdateADC(dest, src uint64, w Width) uint64 {
	return fl.add(dest, src, fl.carry(), w)
}

// UpdateSUB returns dest-src, setting CF (borrow), OF, PF, SF and ZF.
func (fl *Flags) UpdateSUB(dest, src uint64, w Width) uint64 {
	return fl.sub(dest, src, 0, w)
}

// UpdateSBB returns dest-src-CF, setting CF, OF, PF, SF and ZF.
func (fl *Flags) UpdateSBB(dest, src uint64, w Width) uint64 {
	return fl.sub(dest, src, fl.carry(), w)
}

// Compare sets the flags of dest-src without producing the result.
func (fl *Flags) Compare(dest, src uint64, w Width) {
	fl.sub(dest, src, 0, w)
}

// UpdateAND returns dest&src, setting CF, OF, PF, SF and ZF.
func (fl *Flags) UpdateAND(dest, src uint64, w Width) (result uint64) {
	result = fl.logic(dest&src, w)
	if fl.LegacyLogic {
		mask := w.Mask()
		sum := (dest & mask) + (src & mask)
		fl.SetCF(result == sum)
		fl.SetOF(result > sum)
	}
	return
}

// UpdateOR returns dest|src, clearing CF and OF and setting PF, SF and ZF.
func (fl *Flags) UpdateOR(dest, src uint64, w Width) uint64 {
	return fl.logic(dest|src, w)
}

// UpdateXOR returns dest^src, clearing CF and OF and setting PF, SF and ZF.
func (fl *Flags) UpdateXOR(dest, src uint64, w Width) uint64 {
	return fl.logic(dest^src, w)
}

// UpdateINC returns dest+1; CF is preserved.
func (fl *Flags) UpdateINC(dest uint64, w Width) (result uint64) {
	cf := fl.CF()
	result = fl.add(dest, 1, 0, w)
	fl.SetCF(cf)
	return
}

// UpdateDEC returns dest-1; CF is preserved.
func (fl *Flags) UpdateDEC(dest uint64, w Width) (result uint64) {
	cf := fl.CF()
	result = fl.sub(dest, 1, 0, w)
	fl.SetCF(cf)
	return
}

// UpdateNEG returns 0-value; CF is set unless value is zero.
func (fl *Flags) UpdateNEG(value uint64, w Width) uint64 {
	return fl.sub(0, value, 0, w)
}
