package x86

import (
	"github.com/beehive-lab/Maxine-VM-sub091/log"
)

type opKind uint8

const (
	opRM    opKind = iota // register or memory through ModRM r/m
	opMem                 // memory only through ModRM r/m
	opReg                 // register through ModRM reg
	opImm                 // appended immediate
	opRel                 // appended branch offset
	opPlusR               // register in the low bits of the last opcode byte
)

type operand struct {
	kind   opKind
	width  Width
	signed bool
}

func rm(w Width) operand    { return operand{kind: opRM, width: w} }
func mem(w Width) operand   { return operand{kind: opMem, width: w} }
func reg(w Width) operand   { return operand{kind: opReg, width: w} }
func imm(w Width) operand   { return operand{kind: opImm, width: w} }
func simm(w Width) operand  { return operand{kind: opImm, width: w, signed: true} }
func rel(w Width) operand   { return operand{kind: opRel, width: w, signed: true} }
func plusR(w Width) operand { return operand{kind: opPlusR, width: w} }

// iz is the immediate of a full size operation: 16 or 32 bits, sign-extended for 64.
func iz(w Width) operand {
	switch w {
	case W16:
		return imm(W16)
	case W64:
		return simm(W32)
	}
	return imm(W32)
}

var (
	sizes      = []Width{W16, W32, W64}
	aluOps     = []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	conditions = []string{"o", "no", "b", "ae", "e", "ne", "be", "a", "s", "ns", "p", "np", "l", "ge", "le", "g"}
	shiftOps   = []string{"rol", "ror", "rcl", "rcr", "shl", "shr", "", "sar"}
	unaryOps   = []string{"", "", "not", "neg", "mul", "imul", "div", "idiv"}
	accums     = map[Width]string{W8: "al", W16: "ax", W32: "eax", W64: "rax"}
)

// memoryForms lists the r/m addressing forms in matching order. [base] must
// precede [base + disp8] so the shorter rendering wins for a zero offset.
var memoryForms = []Form{
	FormIndirect, FormRIP, FormSIB, FormSIBNoIndex, FormSIBNoBase, FormAbsolute,
	FormDisp8, FormSIBDisp8, FormSIBNoIndexDisp8,
	FormDisp32, FormSIBDisp32, FormSIBNoIndexDisp32,
}

type def struct {
	mnemonic string
	size     Width
	// default64 operations use 64-bit operands without REX.W.
	default64 bool
	sel       byte
	opcode    []byte
	ext       int
	ops       []operand
	leading   string
	trailing  string
	addr32    bool
	prefix    bool
}

type builder struct {
	tb *Table
}

func (b *builder) add(d def) {
	forms := []Form{FormNone}
	for _, o := range d.ops {
		switch o.kind {
		case opRM:
			forms = append([]Form{FormRegister}, memoryForms...)
		case opMem:
			forms = memoryForms
		}
	}
	addrs := []Width{W64}
	if d.addr32 {
		addrs = append(addrs, W32)
	}
	sel := d.sel
	if d.size == W16 && sel == 0 {
		sel = PrefixOperandSize
	}
	for _, aw := range addrs {
		for _, f := range forms {
			if aw == W32 && !f.Memory() {
				continue
			}
			t := &Template{
				Mnemonic:      d.mnemonic,
				OperandSize:   d.size,
				Selection:     sel,
				AddressSize32: aw == W32,
				RexW:          d.size == W64 && !d.default64,
				OpcodeLen:     len(d.opcode),
				RegExt:        d.ext,
				Form:          f,
				Leading:       d.leading,
				Trailing:      d.trailing,
				Prefix:        d.prefix,
			}
			if len(d.opcode) > 0 {
				t.Opcode1 = d.opcode[0]
			}
			if len(d.opcode) > 1 {
				t.Opcode2 = d.opcode[1]
			}
			for _, o := range d.ops {
				t.Params = append(t.Params, operandParams(o, f, aw, len(d.opcode))...)
			}
			b.tb.Add(t)
		}
	}
}

// op adds a one byte opcode. ext is the /digit of the ModRM reg field or -1.
func (b *builder) op(mnemonic string, size Width, opcode byte, ext int, ops ...operand) {
	b.add(def{mnemonic: mnemonic, size: size, opcode: []byte{opcode}, ext: ext, ops: ops})
}

// op0F adds a two byte 0F xx opcode.
func (b *builder) op0F(mnemonic string, size Width, opcode byte, ext int, ops ...operand) {
	b.add(def{mnemonic: mnemonic, size: size, opcode: []byte{EscapeTwoByte, opcode}, ext: ext, ops: ops})
}

func operandParams(o operand, f Form, aw Width, opcodeLen int) []Parameter {
	switch o.kind {
	case opReg:
		return []Parameter{{Kind: KindRegister, Place: MOD_REG_REXR, Registers: RegisterSetFor(o.width)}}
	case opImm:
		return []Parameter{{Kind: KindImmediate, Place: APPEND, Width: o.width, Signed: o.signed}}
	case opRel:
		return []Parameter{{Kind: KindRelative, Place: APPEND, Width: o.width, Signed: true}}
	case opPlusR:
		place := OPCODE1_REXB
		if opcodeLen == 2 {
			place = OPCODE2_REXB
		}
		return []Parameter{{Kind: KindRegister, Place: place, Registers: RegisterSetFor(o.width)}}
	}
	return memoryParams(f, o.width, aw)
}

func memoryParams(f Form, w, aw Width) []Parameter {
	addr := RegisterSetFor(aw)
	rmBase := Parameter{Kind: KindRegister, Place: MOD_RM_REXB, Registers: addr, Role: RoleBase, Exclude: 1<<4 | 1<<12}
	sibBase := Parameter{Kind: KindRegister, Place: SIB_BASE_REXB, Registers: addr, Role: RoleBase}
	index := Parameter{Kind: KindRegister, Place: SIB_INDEX_REXX, Registers: addr, Role: RoleIndex, Exclude: 1 << 4}
	scale := Parameter{Kind: KindScale, Place: SIB_SCALE, Role: RoleScale}
	disp := func(dw Width) Parameter {
		return Parameter{Kind: KindDisplacement, Place: APPEND, Width: dw, Signed: true, Role: RoleDisp}
	}
	switch f {
	case FormRegister:
		return []Parameter{{Kind: KindRegister, Place: MOD_RM_REXB, Registers: RegisterSetFor(w)}}
	case FormIndirect:
		return []Parameter{rmBase}
	case FormRIP:
		return []Parameter{{Kind: KindDisplacement, Place: APPEND, Width: W32, Signed: true, Role: RoleRIP}}
	case FormSIB:
		return []Parameter{sibBase, index, scale}
	case FormSIBNoIndex:
		return []Parameter{sibBase}
	case FormSIBNoBase:
		return []Parameter{index, scale, disp(W32)}
	case FormAbsolute:
		return []Parameter{{Kind: KindDisplacement, Place: APPEND, Width: W32, Signed: true, Role: RoleAbsolute}}
	case FormDisp8:
		return []Parameter{rmBase, disp(W8)}
	case FormSIBDisp8:
		return []Parameter{sibBase, index, scale, disp(W8)}
	case FormSIBNoIndexDisp8:
		return []Parameter{sibBase, disp(W8)}
	case FormDisp32:
		return []Parameter{rmBase, disp(W32)}
	case FormSIBDisp32:
		return []Parameter{sibBase, index, scale, disp(W32)}
	case FormSIBNoIndexDisp32:
		return []Parameter{sibBase, disp(W32)}
	}
	return nil
}

func buildAMD64Table() *Table {
	b := &builder{tb: NewTable()}
	b.prefixes()
	b.arithmetic()
	b.moves()
	b.stack()
	b.controlFlow()
	b.groups()
	b.misc()
	log.Debug(log.Assembler, "template table built", "templates", b.tb.Len(), "mnemonics", len(b.tb.byMnemonic))
	return b.tb
}

func (b *builder) prefixes() {
	b.add(def{mnemonic: "repne", sel: PrefixRepne, ext: -1, prefix: true})
	b.add(def{mnemonic: "repe", sel: PrefixRep, ext: -1, prefix: true})
	b.add(def{mnemonic: "lock", opcode: []byte{0xF0}, ext: -1, prefix: true})
	segments := []struct {
		name   string
		opcode byte
	}{
		{"es", 0x26}, {"cs", 0x2E}, {"ss", 0x36}, {"ds", 0x3E}, {"fs", 0x64}, {"gs", 0x65},
	}
	for _, seg := range segments {
		b.add(def{mnemonic: seg.name, opcode: []byte{seg.opcode}, ext: -1, prefix: true})
	}
}

func (b *builder) arithmetic() {
	for n, m := range aluOps {
		op := byte(n * 8)
		b.op(m, W8, op, -1, rm(W8), reg(W8))
		for _, w := range sizes {
			b.op(m, w, op+1, -1, rm(w), reg(w))
		}
		b.op(m, W8, op+2, -1, reg(W8), rm(W8))
		for _, w := range sizes {
			b.op(m, w, op+3, -1, reg(w), rm(w))
		}
		b.add(def{mnemonic: m, size: W8, opcode: []byte{op + 4}, ext: -1, leading: accums[W8], ops: []operand{imm(W8)}})
		for _, w := range sizes {
			b.add(def{mnemonic: m, size: w, opcode: []byte{op + 5}, ext: -1, leading: accums[w], ops: []operand{iz(w)}})
		}
	}
	for n, m := range aluOps {
		b.op(m, W8, 0x80, n, rm(W8), imm(W8))
		for _, w := range sizes {
			b.op(m, w, 0x81, n, rm(w), iz(w))
		}
		for _, w := range sizes {
			b.op(m, w, 0x83, n, rm(w), simm(W8))
		}
	}

	b.op("test", W8, 0x84, -1, rm(W8), reg(W8))
	for _, w := range sizes {
		b.op("test", w, 0x85, -1, rm(w), reg(w))
	}
	b.add(def{mnemonic: "test", size: W8, opcode: []byte{0xA8}, ext: -1, leading: accums[W8], ops: []operand{imm(W8)}})
	for _, w := range sizes {
		b.add(def{mnemonic: "test", size: w, opcode: []byte{0xA9}, ext: -1, leading: accums[w], ops: []operand{iz(w)}})
	}

	for _, w := range sizes {
		b.op0F("imul", w, 0xAF, -1, reg(w), rm(w))
		b.op("imul", w, 0x69, -1, reg(w), rm(w), iz(w))
		b.op("imul", w, 0x6B, -1, reg(w), rm(w), simm(W8))
	}
}

func (b *builder) moves() {
	b.add(def{mnemonic: "mov", size: W8, opcode: []byte{0x88}, ext: -1, ops: []operand{rm(W8), reg(W8)}, addr32: true})
	for _, w := range sizes {
		b.add(def{mnemonic: "mov", size: w, opcode: []byte{0x89}, ext: -1, ops: []operand{rm(w), reg(w)}, addr32: true})
	}
	b.add(def{mnemonic: "mov", size: W8, opcode: []byte{0x8A}, ext: -1, ops: []operand{reg(W8), rm(W8)}, addr32: true})
	for _, w := range sizes {
		b.add(def{mnemonic: "mov", size: w, opcode: []byte{0x8B}, ext: -1, ops: []operand{reg(w), rm(w)}, addr32: true})
	}
	b.op("mov", W8, 0xC6, 0, rm(W8), imm(W8))
	for _, w := range sizes {
		b.op("mov", w, 0xC7, 0, rm(w), iz(w))
	}
	b.op("mov", W8, 0xB0, -1, plusR(W8), imm(W8))
	b.op("mov", W16, 0xB8, -1, plusR(W16), imm(W16))
	b.op("mov", W32, 0xB8, -1, plusR(W32), imm(W32))
	b.op("mov", W64, 0xB8, -1, plusR(W64), imm(W64))

	for _, w := range sizes {
		b.add(def{mnemonic: "lea", size: w, opcode: []byte{0x8D}, ext: -1, ops: []operand{reg(w), mem(w)}, addr32: true})
	}

	b.op("xchg", W8, 0x86, -1, rm(W8), reg(W8))
	for _, w := range sizes {
		b.op("xchg", w, 0x87, -1, rm(w), reg(w))
	}

	for _, w := range sizes {
		b.op0F("movzx", w, 0xB6, -1, reg(w), rm(W8))
		b.op0F("movsx", w, 0xBE, -1, reg(w), rm(W8))
	}
	for _, w := range []Width{W32, W64} {
		b.op0F("movzx", w, 0xB7, -1, reg(w), rm(W16))
		b.op0F("movsx", w, 0xBF, -1, reg(w), rm(W16))
	}
	b.op("movsxd", W64, 0x63, -1, reg(W64), rm(W32))

	for cc, c := range conditions {
		for _, w := range sizes {
			b.op0F("cmov"+c, w, 0x40+byte(cc), -1, reg(w), rm(w))
		}
	}
	for cc, c := range conditions {
		b.op0F("set"+c, W8, 0x90+byte(cc), 0, rm(W8))
	}
}

func (b *builder) stack() {
	b.add(def{mnemonic: "push", size: W64, default64: true, opcode: []byte{0x50}, ext: -1, ops: []operand{plusR(W64)}})
	b.add(def{mnemonic: "pop", size: W64, default64: true, opcode: []byte{0x58}, ext: -1, ops: []operand{plusR(W64)}})
	b.add(def{mnemonic: "push", size: W64, default64: true, opcode: []byte{0x6A}, ext: -1, ops: []operand{simm(W8)}})
	b.add(def{mnemonic: "push", size: W64, default64: true, opcode: []byte{0x68}, ext: -1, ops: []operand{simm(W32)}})
	b.add(def{mnemonic: "pop", size: W64, default64: true, opcode: []byte{0x8F}, ext: 0, ops: []operand{rm(W64)}})
	b.op("leave", 0, 0xC9, -1)
}

func (b *builder) controlFlow() {
	b.op("jmp", 0, 0xEB, -1, rel(W8))
	b.op("jmp", 0, 0xE9, -1, rel(W32))
	b.op("call", 0, 0xE8, -1, rel(W32))
	for cc, c := range conditions {
		b.op("j"+c, 0, 0x70+byte(cc), -1, rel(W8))
		b.op0F("j"+c, 0, 0x80+byte(cc), -1, rel(W32))
	}
	b.op("ret", 0, 0xC3, -1)
	b.op("ret", 0, 0xC2, -1, imm(W16))
	b.op("int3", 0, 0xCC, -1)
	b.op("int", 0, 0xCD, -1, imm(W8))
	b.op("hlt", 0, 0xF4, -1)
	b.op0F("syscall", 0, 0x05, -1)
	b.op0F("ud2", 0, 0x0B, -1)
}

func (b *builder) groups() {
	b.op("inc", W8, 0xFE, 0, rm(W8))
	b.op("dec", W8, 0xFE, 1, rm(W8))
	for _, w := range sizes {
		b.op("inc", w, 0xFF, 0, rm(w))
		b.op("dec", w, 0xFF, 1, rm(w))
	}
	b.add(def{mnemonic: "call", size: W64, default64: true, opcode: []byte{0xFF}, ext: 2, ops: []operand{rm(W64)}})
	b.add(def{mnemonic: "jmp", size: W64, default64: true, opcode: []byte{0xFF}, ext: 4, ops: []operand{rm(W64)}})
	b.add(def{mnemonic: "push", size: W64, default64: true, opcode: []byte{0xFF}, ext: 6, ops: []operand{rm(W64)}})

	b.op("test", W8, 0xF6, 0, rm(W8), imm(W8))
	for _, w := range sizes {
		b.op("test", w, 0xF7, 0, rm(w), iz(w))
	}
	for n, m := range unaryOps {
		if m == "" {
			continue
		}
		b.op(m, W8, 0xF6, n, rm(W8))
		for _, w := range sizes {
			b.op(m, w, 0xF7, n, rm(w))
		}
	}

	for n, m := range shiftOps {
		if m == "" {
			continue
		}
		b.add(def{mnemonic: m, size: W8, opcode: []byte{0xD0}, ext: n, ops: []operand{rm(W8)}, trailing: "1"})
		b.add(def{mnemonic: m, size: W8, opcode: []byte{0xD2}, ext: n, ops: []operand{rm(W8)}, trailing: "cl"})
		b.op(m, W8, 0xC0, n, rm(W8), imm(W8))
		for _, w := range sizes {
			b.add(def{mnemonic: m, size: w, opcode: []byte{0xD1}, ext: n, ops: []operand{rm(w)}, trailing: "1"})
			b.add(def{mnemonic: m, size: w, opcode: []byte{0xD3}, ext: n, ops: []operand{rm(w)}, trailing: "cl"})
			b.op(m, w, 0xC1, n, rm(w), imm(W8))
		}
	}
}

func (b *builder) misc() {
	b.op("nop", 0, 0x90, -1)
	for _, w := range []Width{W16, W32} {
		b.op0F("nop", w, 0x1F, 0, rm(w))
	}
	b.op("cwd", W16, 0x99, -1)
	b.op("cdq", W32, 0x99, -1)
	b.op("cqo", W64, 0x99, -1)
	b.op0F("cpuid", 0, 0xA2, -1)
	b.op0F("rdtsc", 0, 0x31, -1)
	for _, w := range []Width{W32, W64} {
		b.op0F("bswap", w, 0xC8, -1, plusR(w))
	}

	stringOps := []struct {
		name   string
		opcode byte
	}{
		{"movs", 0xA4}, {"cmps", 0xA6}, {"stos", 0xAA}, {"lods", 0xAC}, {"scas", 0xAE},
	}
	suffix := map[Width]string{W16: "w", W32: "d", W64: "q"}
	for _, s := range stringOps {
		b.op(s.name+"b", W8, s.opcode, -1)
		for _, w := range sizes {
			b.op(s.name+suffix[w], w, s.opcode+1, -1)
		}
	}
}
