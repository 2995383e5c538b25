package x86

// Field names the raw instruction field a parameter value comes from.
type Field uint8

const (
	FieldModReg Field = iota + 1
	FieldModRM
	FieldSIBBase
	FieldSIBIndex
	FieldSIBScale
	FieldOpcode1
	FieldOpcode2
	// FieldAppend values follow the ModRM/SIB bytes: displacements, immediates, offsets.
	FieldAppend
)

var fieldNames = map[Field]string{
	FieldModReg:   "MOD_REG",
	FieldModRM:    "MOD_RM",
	FieldSIBBase:  "SIB_BASE",
	FieldSIBIndex: "SIB_INDEX",
	FieldSIBScale: "SIB_SCALE",
	FieldOpcode1:  "OPCODE1",
	FieldOpcode2:  "OPCODE2",
	FieldAppend:   "APPEND",
}

func (f Field) String() string { return fieldNames[f] }

// RexBit selects the REX bit that extends a field by 8.
type RexBit uint8

const (
	RexNone RexBit = 0
	RexR    RexBit = REX_R
	RexX    RexBit = REX_X
	RexB    RexBit = REX_B
)

func (b RexBit) String() string {
	switch b {
	case RexR:
		return "REXR"
	case RexX:
		return "REXX"
	case RexB:
		return "REXB"
	}
	return ""
}

// Place is either Plain(field) or RexExtended(field, bit).
type Place struct {
	Field Field
	Rex   RexBit
}

func Plain(f Field) Place { return Place{Field: f} }

func RexExtended(f Field, b RexBit) Place { return Place{Field: f, Rex: b} }

// Extended reports whether a REX bit contributes to the value.
func (p Place) Extended() bool { return p.Rex != RexNone }

func (p Place) String() string {
	if p.Extended() {
		return p.Field.String() + "_" + p.Rex.String()
	}
	return p.Field.String()
}

// Value extracts the raw field value from decoded header and ModRM/SIB bytes.
// Append places have no field value and report false.
func (p Place) Value(rex, opcode1, opcode2, modrm, sib byte) (int, bool) {
	var v int
	switch p.Field {
	case FieldModReg:
		v = int(modrm>>ModRMRegShift) & 7
	case FieldModRM:
		v = int(modrm) & 7
	case FieldSIBBase:
		v = int(sib) & 7
	case FieldSIBIndex:
		v = int(sib>>3) & 7
	case FieldSIBScale:
		return int(sib >> 6), true
	case FieldOpcode1:
		v = int(opcode1) & 7
	case FieldOpcode2:
		v = int(opcode2) & 7
	default:
		return 0, false
	}
	if p.Extended() && rex&byte(p.Rex) != 0 {
		v += 8
	}
	return v, true
}

var (
	MOD_REG        = Plain(FieldModReg)
	MOD_REG_REXR   = RexExtended(FieldModReg, RexR)
	MOD_RM         = Plain(FieldModRM)
	MOD_RM_REXB    = RexExtended(FieldModRM, RexB)
	SIB_BASE       = Plain(FieldSIBBase)
	SIB_BASE_REXB  = RexExtended(FieldSIBBase, RexB)
	SIB_INDEX      = Plain(FieldSIBIndex)
	SIB_INDEX_REXX = RexExtended(FieldSIBIndex, RexX)
	SIB_SCALE      = Plain(FieldSIBScale)
	OPCODE1        = Plain(FieldOpcode1)
	OPCODE1_REXB   = RexExtended(FieldOpcode1, RexB)
	OPCODE2        = Plain(FieldOpcode2)
	OPCODE2_REXB   = RexExtended(FieldOpcode2, RexB)
	APPEND         = Plain(FieldAppend)
)
