package x86

import (
	"fmt"
	"strings"
)

// Form is the ModRM/SIB addressing form of a template's r/m operand.
type Form uint8

const (
	FormNone Form = iota
	FormRegister
	FormIndirect
	FormRIP
	FormSIB
	FormSIBNoIndex
	FormSIBNoBase
	FormAbsolute
	FormDisp8
	FormSIBDisp8
	FormSIBNoIndexDisp8
	FormDisp32
	FormSIBDisp32
	FormSIBNoIndexDisp32
)

// FormAny is accepted by Table.Select as a wildcard.
const FormAny Form = 0xFF

var formNames = [...]string{
	FormNone:             "none",
	FormRegister:         "reg",
	FormIndirect:         "[base]",
	FormRIP:              "[rip+disp32]",
	FormSIB:              "[base+index*scale]",
	FormSIBNoIndex:       "[base] (sib)",
	FormSIBNoBase:        "[index*scale+disp32]",
	FormAbsolute:         "[disp32]",
	FormDisp8:            "[base+disp8]",
	FormSIBDisp8:         "[base+index*scale+disp8]",
	FormSIBNoIndexDisp8:  "[base+disp8] (sib)",
	FormDisp32:           "[base+disp32]",
	FormSIBDisp32:        "[base+index*scale+disp32]",
	FormSIBNoIndexDisp32: "[base+disp32] (sib)",
}

func (f Form) String() string {
	if int(f) < len(formNames) {
		return formNames[f]
	}
	return "any"
}

// Mod returns the ModRM mod value the form is encoded with.
func (f Form) Mod() byte {
	switch f {
	case FormRegister:
		return MOD_REGISTER
	case FormDisp8, FormSIBDisp8, FormSIBNoIndexDisp8:
		return MOD_INDIRECT_DISP8
	case FormDisp32, FormSIBDisp32, FormSIBNoIndexDisp32:
		return MOD_INDIRECT_DISP32
	}
	return MOD_INDIRECT
}

// Memory reports whether the form addresses memory.
func (f Form) Memory() bool { return f != FormNone && f != FormRegister }

// SIB reports whether the form is encoded with a SIB byte.
func (f Form) SIB() bool {
	switch f {
	case FormSIB, FormSIBNoIndex, FormSIBNoBase, FormAbsolute,
		FormSIBDisp8, FormSIBNoIndexDisp8, FormSIBDisp32, FormSIBNoIndexDisp32:
		return true
	}
	return false
}

// NoIndex reports whether the SIB index field must be 100 without REX.X.
func (f Form) NoIndex() bool {
	return f == FormSIBNoIndex || f == FormSIBNoIndexDisp8 || f == FormSIBNoIndexDisp32 || f == FormAbsolute
}

// NoBase reports whether the SIB base field must be 101.
func (f Form) NoBase() bool { return f == FormSIBNoBase || f == FormAbsolute }

// Template is an immutable instruction encoding pattern.
type Template struct {
	Serial        int
	Mnemonic      string
	OperandSize   Width
	Selection     byte // required 0x66, 0xF2 or 0xF3 prefix, 0 if none
	AddressSize32 bool
	RexW          bool
	Opcode1       byte
	Opcode2       byte
	OpcodeLen     int // 0 for prefix pseudo instructions
	// RegExt is the fixed ModRM reg value (/digit), -1 if the field carries a parameter.
	RegExt int
	Form   Form
	Params []Parameter
	// Leading and Trailing are implicit operands such as "al" or "cl".
	Leading  string
	Trailing string
	// Prefix marks single byte prefix pseudo instructions (rep, lock, segments).
	Prefix bool
}

// HasModRM reports whether the template is followed by a ModRM byte.
func (t *Template) HasModRM() bool { return t.Form != FormNone }

// HasRegisterOperand reports whether any explicit or implicit operand is a register.
func (t *Template) HasRegisterOperand() bool {
	for _, implicit := range []string{t.Leading, t.Trailing} {
		if _, ok := RegisterByName(implicit); ok {
			return true
		}
	}
	for _, p := range t.Params {
		if p.Kind == KindRegister && p.Role == RoleOperand {
			return true
		}
	}
	return false
}

// Keys returns the header keys the template is reachable from. Opcodes
// carrying a register in their low bits are reachable from 8 keys.
func (t *Template) Keys() []HeaderKey {
	base := HeaderKey{
		AddressSize32: t.AddressSize32,
		Selection:     t.Selection,
		OpcodeLen:     uint8(t.OpcodeLen),
		Opcode1:       t.Opcode1,
		Opcode2:       t.Opcode2,
	}
	for _, p := range t.Params {
		switch p.Place.Field {
		case FieldOpcode1:
			keys := make([]HeaderKey, 8)
			for i := range keys {
				keys[i] = base
				keys[i].Opcode1 = t.Opcode1 | byte(i)
			}
			return keys
		case FieldOpcode2:
			keys := make([]HeaderKey, 8)
			for i := range keys {
				keys[i] = base
				keys[i].Opcode2 = t.Opcode2 | byte(i)
			}
			return keys
		}
	}
	return []HeaderKey{base}
}

// Encoding returns the opcode notation, e.g. "REX.W 8B /r".
func (t *Template) Encoding() string {
	var parts []string
	if t.Selection != 0 {
		parts = append(parts, fmt.Sprintf("%02X", t.Selection))
	}
	if t.AddressSize32 {
		parts = append(parts, "67")
	}
	if t.RexW {
		parts = append(parts, "REX.W")
	}
	suffix := ""
	for _, p := range t.Params {
		if p.Place.Field == FieldOpcode1 || p.Place.Field == FieldOpcode2 {
			suffix = "+r"
		}
	}
	if t.OpcodeLen >= 1 {
		op := fmt.Sprintf("%02X", t.Opcode1)
		if t.OpcodeLen == 1 {
			op += suffix
		}
		parts = append(parts, op)
	}
	if t.OpcodeLen == 2 {
		parts = append(parts, fmt.Sprintf("%02X", t.Opcode2)+suffix)
	}
	if t.HasModRM() {
		if t.RegExt >= 0 {
			parts = append(parts, fmt.Sprintf("/%d", t.RegExt))
		} else {
			parts = append(parts, "/r")
		}
	}
	return strings.Join(parts, " ")
}

func (t *Template) String() string {
	var ops []string
	if t.Leading != "" {
		ops = append(ops, t.Leading)
	}
	mem := false
	for _, p := range t.Params {
		if p.Role.Memory() {
			if !mem {
				ops = append(ops, t.Form.String())
				mem = true
			}
			continue
		}
		ops = append(ops, p.String())
	}
	if t.Trailing != "" {
		ops = append(ops, t.Trailing)
	}
	s := fmt.Sprintf("#%d %s", t.Serial, t.Mnemonic)
	if len(ops) > 0 {
		s += " " + strings.Join(ops, ", ")
	}
	return s + " (" + t.Encoding() + ")"
}
