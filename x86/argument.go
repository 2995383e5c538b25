package x86

import "fmt"

// Argument is a decoded or to-be-encoded instruction operand value:
// Register, Immediate, Displacement, Relative or Scale.
type Argument interface {
	fmt.Stringer
	isArgument()
}

// Immediate is an immediate operand value.
type Immediate struct {
	Value  int64
	Width  Width
	Signed bool
}

func (Immediate) isArgument() {}

// Unsigned returns the value truncated to its width.
func (i Immediate) Unsigned() uint64 { return truncate(i.Value, i.Width) }

func (i Immediate) String() string { return fmt.Sprintf("0x%x", i.Unsigned()) }

// Imm builds a signed immediate of width w.
func Imm(v int64, w Width) Immediate { return Immediate{Value: v, Width: w, Signed: true} }

// Displacement is a memory operand offset. Displacements are always sign-extended.
type Displacement struct {
	Value int64
	Width Width
}

func (Displacement) isArgument() {}

func (d Displacement) String() string {
	if d.Value < 0 {
		return fmt.Sprintf("- %d", -d.Value)
	}
	return fmt.Sprintf("+ %d", d.Value)
}

// Disp8 and Disp32 build displacements.
func Disp8(v int64) Displacement  { return Displacement{Value: v, Width: W8} }
func Disp32(v int64) Displacement { return Displacement{Value: v, Width: W32} }

// Relative is a branch offset relative to the end of the instruction.
type Relative struct {
	Offset int64
	Width  Width
}

func (Relative) isArgument() {}

func (r Relative) String() string { return fmt.Sprintf("%+d", r.Offset) }

// Rel8 and Rel32 build relative offsets.
func Rel8(v int64) Relative  { return Relative{Offset: v, Width: W8} }
func Rel32(v int64) Relative { return Relative{Offset: v, Width: W32} }

// Scale is the SIB index multiplier.
type Scale uint8

const (
	Scale1 Scale = 1
	Scale2 Scale = 2
	Scale4 Scale = 4
	Scale8 Scale = 8
)

func (Scale) isArgument() {}

func (s Scale) String() string { return fmt.Sprintf("%d", uint8(s)) }

// bits returns the 2-bit SIB scale field.
func (s Scale) bits() (byte, bool) {
	switch s {
	case Scale1:
		return 0, true
	case Scale2:
		return 1, true
	case Scale4:
		return 2, true
	case Scale8:
		return 3, true
	}
	return 0, false
}

func truncate(v int64, w Width) uint64 {
	if w >= W64 {
		return uint64(v)
	}
	return uint64(v) & (1<<uint(w) - 1)
}

// fits reports whether v is representable in w bits.
func fits(v int64, w Width, signed bool) bool {
	if w >= W64 {
		return true
	}
	if signed {
		lim := int64(1) << (uint(w) - 1)
		return v >= -lim && v < lim
	}
	return v >= 0 && v < int64(1)<<uint(w)
}
