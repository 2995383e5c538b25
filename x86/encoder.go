package x86

import (
	"encoding/binary"
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
)

// Assembler encodes a template with arguments into machine code.
type Assembler interface {
	Assemble(t *Template, args []Argument) ([]byte, error)
}

// Encoder is the reference Assembler. It encodes exactly the form a template
// names; the only normalization is the mandatory zero disp8 for a base whose
// low bits are 101 in mod 00 forms.
type Encoder struct{}

var _ Assembler = Encoder{}

func (Encoder) Assemble(t *Template, args []Argument) ([]byte, error) {
	if len(args) != len(t.Params) {
		return nil, fmt.Errorf("%w: %s wants %d, got %d", vmerrors.ErrArgumentCount, t.Mnemonic, len(t.Params), len(args))
	}

	var (
		rex      byte
		forceREX bool
		highByte bool
		reg      byte
		rm       byte
		base     byte
		scale    byte
		hasIndex bool
		tail     []byte
	)
	op1, op2 := t.Opcode1, t.Opcode2
	index := byte(SIB_NO_INDEX)
	if t.RexW {
		rex |= REX_W
	}
	if t.RegExt >= 0 {
		reg = byte(t.RegExt)
	}

	for i, p := range t.Params {
		a := args[i]
		if err := p.check(a); err != nil {
			return nil, fmt.Errorf("%s operand %d: %w", t.Mnemonic, i, err)
		}
		switch p.Kind {
		case KindRegister:
			r := a.(Register)
			forceREX = forceREX || r.RexOnly
			highByte = highByte || r.HighByte
			if r.RexBit() {
				rex |= byte(p.Place.Rex)
			}
			switch p.Place.Field {
			case FieldModReg:
				reg = r.Low3()
			case FieldModRM:
				rm = r.Low3()
			case FieldSIBBase:
				base = r.Low3()
			case FieldSIBIndex:
				index = r.Low3()
				hasIndex = true
			case FieldOpcode1:
				op1 |= r.Low3()
			case FieldOpcode2:
				op2 |= r.Low3()
			}
		case KindScale:
			scale, _ = a.(Scale).bits()
		case KindImmediate:
			tail = appendLE(tail, uint64(a.(Immediate).Value), p.Width)
		case KindDisplacement:
			tail = appendLE(tail, uint64(a.(Displacement).Value), p.Width)
		case KindRelative:
			tail = appendLE(tail, uint64(a.(Relative).Offset), p.Width)
		}
	}

	if highByte && (rex != 0 || forceREX) {
		return nil, fmt.Errorf("%w: %s mixes a high byte register with REX", vmerrors.ErrEncoding, t.Mnemonic)
	}

	out := make([]byte, 0, 16)
	switch t.Selection {
	case PrefixOperandSize:
		out = append(out, PrefixOperandSize)
		if t.AddressSize32 {
			out = append(out, PrefixAddressSize)
		}
	case PrefixRep, PrefixRepne:
		if t.AddressSize32 {
			out = append(out, PrefixAddressSize)
		}
		out = append(out, t.Selection)
	default:
		if t.AddressSize32 {
			out = append(out, PrefixAddressSize)
		}
	}
	if rex != 0 || forceREX {
		out = append(out, REX|rex)
	}
	if t.OpcodeLen >= 1 {
		out = append(out, op1)
	}
	if t.OpcodeLen == 2 {
		out = append(out, op2)
	}

	if t.HasModRM() {
		mod := t.Form.Mod()
		var elided bool
		switch t.Form {
		case FormRIP:
			rm = RM_RIP
		case FormIndirect:
			if rm == RM_RIP {
				mod, elided = MOD_INDIRECT_DISP8, true
			}
		}
		if t.Form.SIB() {
			rm = RM_SIB
			if t.Form.NoIndex() {
				index = SIB_NO_INDEX
			} else if !hasIndex {
				return nil, fmt.Errorf("%w: %s missing index", vmerrors.ErrEncoding, t.Mnemonic)
			}
			if t.Form.NoBase() {
				base = SIB_NO_BASE
			} else if mod == MOD_INDIRECT && base == SIB_NO_BASE {
				mod, elided = MOD_INDIRECT_DISP8, true
			}
		}
		out = append(out, mod<<6|reg<<ModRMRegShift|rm)
		switch {
		case t.Form == FormAbsolute:
			out = append(out, SIB_ABSOLUTE)
		case t.Form.SIB():
			out = append(out, scale<<6|index<<3|base)
		}
		if elided {
			out = append(out, 0)
		}
	}
	out = append(out, tail...)
	log.Trace(log.Assembler, "assembled", "template", t.Serial, "mnemonic", t.Mnemonic, "bytes", fmt.Sprintf("% x", out))
	return out, nil
}

func appendLE(b []byte, v uint64, w Width) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:w.Bytes()]...)
}
