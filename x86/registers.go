// Package x86 provides AMD64 register sets, instruction templates, the
// instruction header scanner and the template assembler.
package x86

// Width is an operand, immediate or displacement size in bits.
type Width uint8

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// Bytes returns the number of bytes a value of width w occupies.
func (w Width) Bytes() int { return int(w) / 8 }

// Qualifier returns the memory size keyword for w.
func (w Width) Qualifier() string {
	switch w {
	case W8:
		return "byte"
	case W16:
		return "word"
	case W32:
		return "dword"
	case W64:
		return "qword"
	}
	return ""
}

// Register is a general purpose register of a given width.
type Register struct {
	Name   string
	Number uint8 // 0..15; low 3 bits go in ModRM/SIB/opcode, bit 3 in REX
	Width  Width
	// RexOnly registers (spl, bpl, sil, dil) are only encodable with a REX prefix.
	RexOnly bool
	// HighByte registers (ah, ch, dh, bh) are not encodable with any REX prefix.
	HighByte bool
}

func (r Register) isArgument() {}

func (r Register) String() string { return r.Name }

// Low3 returns the register bits placed in ModRM, SIB or the opcode.
func (r Register) Low3() byte { return r.Number & 7 }

// RexBit reports whether the register needs the REX extension bit.
func (r Register) RexBit() bool { return r.Number&8 != 0 }

var (
	RAX = Register{Name: "rax", Number: 0, Width: W64}
	RCX = Register{Name: "rcx", Number: 1, Width: W64}
	RDX = Register{Name: "rdx", Number: 2, Width: W64}
	RBX = Register{Name: "rbx", Number: 3, Width: W64}
	RSP = Register{Name: "rsp", Number: 4, Width: W64}
	RBP = Register{Name: "rbp", Number: 5, Width: W64}
	RSI = Register{Name: "rsi", Number: 6, Width: W64}
	RDI = Register{Name: "rdi", Number: 7, Width: W64}
	R8  = Register{Name: "r8", Number: 8, Width: W64}
	R9  = Register{Name: "r9", Number: 9, Width: W64}
	R10 = Register{Name: "r10", Number: 10, Width: W64}
	R11 = Register{Name: "r11", Number: 11, Width: W64}
	R12 = Register{Name: "r12", Number: 12, Width: W64}
	R13 = Register{Name: "r13", Number: 13, Width: W64}
	R14 = Register{Name: "r14", Number: 14, Width: W64}
	R15 = Register{Name: "r15", Number: 15, Width: W64}
)

// RegisterSet resolves a raw field value to a register.
type RegisterSet struct {
	Name  string
	Width Width
	regs  [16]Register
	// legacy holds the byte registers selected by values 4..7 without REX.
	legacy [4]Register
}

// Lookup returns the register encoded by value. rex reports whether the
// instruction carries a REX prefix, which changes the meaning of byte
// register numbers 4..7.
func (s *RegisterSet) Lookup(value int, rex bool) (Register, bool) {
	if value < 0 || value > 15 {
		return Register{}, false
	}
	if s.Width == W8 && !rex && value >= 4 && value <= 7 {
		return s.legacy[value-4], true
	}
	return s.regs[value], true
}

// Registers lists all registers of the set in number order.
func (s *RegisterSet) Registers() []Register {
	out := make([]Register, 0, 20)
	out = append(out, s.regs[:]...)
	if s.Width == W8 {
		out = append(out, s.legacy[:]...)
	}
	return out
}

func newRegisterSet(name string, w Width, names [16]string) *RegisterSet {
	s := &RegisterSet{Name: name, Width: w}
	for i, n := range names {
		s.regs[i] = Register{Name: n, Number: uint8(i), Width: w}
	}
	return s
}

var (
	Reg64 = newRegisterSet("r64", W64, [16]string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"})
	Reg32 = newRegisterSet("r32", W32, [16]string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d"})
	Reg16 = newRegisterSet("r16", W16, [16]string{
		"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
		"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w"})
	Reg8 = newRegisterSet("r8", W8, [16]string{
		"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"})
)

func init() {
	for i := 4; i < 8; i++ {
		Reg8.regs[i].RexOnly = true
	}
	for i, n := range []string{"ah", "ch", "dh", "bh"} {
		Reg8.legacy[i] = Register{Name: n, Number: uint8(4 + i), Width: W8, HighByte: true}
	}
}

// RegisterSetFor returns the general purpose register set of width w.
func RegisterSetFor(w Width) *RegisterSet {
	switch w {
	case W8:
		return Reg8
	case W16:
		return Reg16
	case W32:
		return Reg32
	default:
		return Reg64
	}
}

// RegisterByName finds a register in any set.
func RegisterByName(name string) (Register, bool) {
	for _, s := range []*RegisterSet{Reg64, Reg32, Reg16, Reg8} {
		for _, r := range s.Registers() {
			if r.Name == name {
				return r, true
			}
		}
	}
	return Register{}, false
}
