package x86

// REX Prefix Constants
const (
	REX   = 0x40 // REX prefix base
	REX_W = 0x08 // REX.W - 64-bit operand size
	REX_R = 0x04 // REX.R - Extension of ModRM reg field
	REX_X = 0x02 // REX.X - Extension of SIB index field
	REX_B = 0x01 // REX.B - Extension of ModRM r/m, SIB base, or opcode reg field
)

// Legacy prefixes recognised by the header scanner.
const (
	PrefixOperandSize = 0x66
	PrefixAddressSize = 0x67
	PrefixRepne       = 0xF2
	PrefixRep         = 0xF3
	EscapeTwoByte     = 0x0F
)

// ModRM Mode Constants
const (
	MOD_INDIRECT        = 0x00 // [reg] or [disp32]
	MOD_INDIRECT_DISP8  = 0x01 // [reg + disp8]
	MOD_INDIRECT_DISP32 = 0x02 // [reg + disp32]
	MOD_REGISTER        = 0x03 // reg
)

// Fixed r/m and SIB field values.
const (
	RM_SIB        = 0x04 // r/m=100: a SIB byte follows
	RM_RIP        = 0x05 // r/m=101 with mod=00: [rip + disp32]
	SIB_NO_INDEX  = 0x04 // index=100 without REX.X: no index
	SIB_NO_BASE   = 0x05 // base=101 with mod=00: disp32, no base
	SIB_ABSOLUTE  = 0x25 // scale=00 index=100 base=101
	ModRMRegShift = 3
)

// IsREX reports whether b is a REX prefix in 64-bit mode.
func IsREX(b byte) bool { return b&0xF0 == REX }
