package x86

import (
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
)

// ParamKind is the argument type a parameter produces.
type ParamKind uint8

const (
	KindRegister ParamKind = iota + 1
	KindImmediate
	KindDisplacement
	KindRelative
	KindScale
)

func (k ParamKind) String() string {
	switch k {
	case KindRegister:
		return "reg"
	case KindImmediate:
		return "imm"
	case KindDisplacement:
		return "disp"
	case KindRelative:
		return "rel"
	case KindScale:
		return "scale"
	}
	return "?"
}

// Role is the part a parameter plays in operand text.
type Role uint8

const (
	RoleOperand  Role = iota // a standalone operand
	RoleBase                 // memory base register
	RoleIndex                // memory index register
	RoleScale                // memory index scale
	RoleDisp                 // memory displacement
	RoleRIP                  // displacement from the next instruction
	RoleAbsolute             // 32-bit absolute address
)

// Memory reports whether the role is part of a memory operand.
func (r Role) Memory() bool { return r != RoleOperand }

// Parameter describes one operand slot of a template.
type Parameter struct {
	Kind      ParamKind
	Place     Place
	Registers *RegisterSet
	Width     Width
	Signed    bool
	Role      Role
	// Exclude is a bit set of register numbers this slot cannot hold.
	Exclude uint16
}

func (p Parameter) excludes(n uint8) bool { return p.Exclude&(1<<n) != 0 }

// Resolve maps a raw field value to an argument. It fails for excluded or
// unencodable register numbers.
func (p Parameter) Resolve(value int, rex bool) (Argument, bool) {
	switch p.Kind {
	case KindRegister:
		if value < 0 || value > 15 || p.excludes(uint8(value)) {
			return nil, false
		}
		r, ok := p.Registers.Lookup(value, rex)
		if !ok {
			return nil, false
		}
		return r, true
	case KindScale:
		if value < 0 || value > 3 {
			return nil, false
		}
		return Scale(1 << uint(value)), true
	}
	return nil, false
}

// Decode builds an append argument from little endian bytes.
func (p Parameter) Decode(b []byte) Argument {
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	v := int64(u)
	signed := p.Signed || p.Kind == KindDisplacement || p.Kind == KindRelative
	if signed && p.Width < W64 {
		shift := 64 - uint(p.Width)
		v = v << shift >> shift
	}
	switch p.Kind {
	case KindDisplacement:
		return Displacement{Value: v, Width: p.Width}
	case KindRelative:
		return Relative{Offset: v, Width: p.Width}
	default:
		return Immediate{Value: v, Width: p.Width, Signed: p.Signed}
	}
}

func (p Parameter) String() string {
	switch p.Kind {
	case KindRegister:
		return fmt.Sprintf("%s@%s", p.Registers.Name, p.Place)
	case KindScale:
		return "scale@" + p.Place.String()
	}
	return fmt.Sprintf("%s%d", p.Kind, p.Width)
}

// check validates that arg can fill this parameter.
func (p Parameter) check(arg Argument) error {
	switch p.Kind {
	case KindRegister:
		r, ok := arg.(Register)
		if !ok {
			return fmt.Errorf("%w: %v for %s", vmerrors.ErrArgumentKind, arg, p)
		}
		if r.Width != p.Registers.Width {
			return fmt.Errorf("%w: %s is not a %s register", vmerrors.ErrArgumentKind, r, p.Registers.Name)
		}
		if p.excludes(r.Number) {
			return fmt.Errorf("%w: %s not allowed in %s", vmerrors.ErrEncoding, r, p.Place)
		}
		if r.RexBit() && !p.Place.Extended() {
			return fmt.Errorf("%w: %s needs REX in %s", vmerrors.ErrEncoding, r, p.Place)
		}
	case KindScale:
		s, ok := arg.(Scale)
		if !ok {
			return fmt.Errorf("%w: %v for %s", vmerrors.ErrArgumentKind, arg, p)
		}
		if _, ok := s.bits(); !ok {
			return fmt.Errorf("%w: scale %d", vmerrors.ErrValueOutOfRange, s)
		}
	case KindImmediate:
		i, ok := arg.(Immediate)
		if !ok || i.Width != p.Width {
			return fmt.Errorf("%w: %v for %s", vmerrors.ErrArgumentKind, arg, p)
		}
		if !fits(i.Value, p.Width, true) && !fits(i.Value, p.Width, false) {
			return fmt.Errorf("%w: %d in %d bits", vmerrors.ErrValueOutOfRange, i.Value, p.Width)
		}
	case KindDisplacement:
		d, ok := arg.(Displacement)
		if !ok || d.Width != p.Width {
			return fmt.Errorf("%w: %v for %s", vmerrors.ErrArgumentKind, arg, p)
		}
		if !fits(d.Value, p.Width, true) {
			return fmt.Errorf("%w: displacement %d in %d bits", vmerrors.ErrValueOutOfRange, d.Value, p.Width)
		}
	case KindRelative:
		r, ok := arg.(Relative)
		if !ok || r.Width != p.Width {
			return fmt.Errorf("%w: %v for %s", vmerrors.ErrArgumentKind, arg, p)
		}
		if !fits(r.Offset, p.Width, true) {
			return fmt.Errorf("%w: offset %d in %d bits", vmerrors.ErrValueOutOfRange, r.Offset, p.Width)
		}
	}
	return nil
}
