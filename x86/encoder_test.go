package x86

import (
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

var (
	EAX, _ = RegisterByName("eax")
	ECX, _ = RegisterByName("ecx")
	AL, _  = RegisterByName("al")
	AH, _  = RegisterByName("ah")
	SIL, _ = RegisterByName("sil")
)

func TestEncoderKnownEncodings(t *testing.T) {
	tb := DefaultTable()
	cases := []struct {
		name     string
		mnemonic string
		size     Width
		form     Form
		args     []Argument
		want     []byte
	}{
		{"mov sib", "mov", W64, FormSIB, []Argument{RAX, RAX, RBX, Scale1}, []byte{0x48, 0x8B, 0x04, 0x18}},
		{"mov reg", "mov", W64, FormRegister, []Argument{RAX, RBX}, []byte{0x48, 0x89, 0xD8}},
		{"mov rbp elided", "mov", W64, FormIndirect, []Argument{RBP, RAX}, []byte{0x48, 0x89, 0x45, 0x00}},
		{"mov r13 elided", "mov", W64, FormIndirect, []Argument{R13, R8}, []byte{0x4D, 0x89, 0x45, 0x00}},
		{"mov sib rbp elided", "mov", W64, FormSIBNoIndex, []Argument{RBP, RAX}, []byte{0x48, 0x89, 0x44, 0x25, 0x00}},
		{"mov disp8", "mov", W64, FormDisp8, []Argument{RAX, RBX, Disp8(-8)}, []byte{0x48, 0x8B, 0x43, 0xF8}},
		{"mov rip", "mov", W64, FormRIP, []Argument{RAX, Disp32(16)}, []byte{0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00}},
		{"mov sib scaled", "mov", W32, FormSIBDisp8, []Argument{EAX, RSP, RCX, Scale4, Disp8(16)}, []byte{0x8B, 0x44, 0x8C, 0x10}},
		{"mov absolute", "mov", W64, FormAbsolute, []Argument{RAX, Disp32(0x1000)}, []byte{0x48, 0x8B, 0x04, 0x25, 0x00, 0x10, 0x00, 0x00}},
		{"mov imm32", "mov", W32, FormNone, []Argument{EAX, Imm(1, W32)}, []byte{0xB8, 0x01, 0x00, 0x00, 0x00}},
		{"mov imm64", "mov", W64, FormNone, []Argument{R9, Imm(-1, W64)}, []byte{0x49, 0xB9, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"mov sil", "mov", W8, FormNone, []Argument{SIL, Imm(1, W8)}, []byte{0x40, 0xB6, 0x01}},
		{"add sib disp8", "add", W64, FormSIBNoIndexDisp8, []Argument{RSP, Disp8(8), Imm(0x10, W8)}, []byte{0x48, 0x83, 0x44, 0x24, 0x08, 0x10}},
		{"add accumulator", "add", W32, FormNone, []Argument{Imm(5, W32)}, []byte{0x05, 0x05, 0x00, 0x00, 0x00}},
		{"push r12", "push", W64, FormNone, []Argument{R12}, []byte{0x41, 0x54}},
		{"pop rbp", "pop", W64, FormNone, []Argument{RBP}, []byte{0x5D}},
		{"jmp rel8", "jmp", 0, FormNone, []Argument{Rel8(2)}, []byte{0xEB, 0x02}},
		{"je rel32", "je", 0, FormNone, []Argument{Rel32(-16)}, []byte{0x0F, 0x84, 0xF0, 0xFF, 0xFF, 0xFF}},
		{"lea addr32", "lea", W32, FormIndirect, []Argument{EAX, ECX}, []byte{0x67, 0x8D, 0x01}},
		{"shl by one", "shl", W64, FormRegister, []Argument{RDX}, []byte{0x48, 0xD1, 0xE2}},
		{"ret", "ret", 0, FormNone, nil, []byte{0xC3}},
		{"repe", "repe", 0, FormNone, nil, []byte{0xF3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl, code, err := tb.Select(Encoder{}, tc.mnemonic, tc.size, tc.form, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, code, "template %s", tmpl)
		})
	}
}

func TestEncoderMatchesX86asmLength(t *testing.T) {
	tb := DefaultTable()
	for _, tmpl := range tb.Templates() {
		if tmpl.OpcodeLen == 0 || len(tmpl.Params) == 0 {
			continue
		}
		args := sampleArgs(tmpl)
		code, err := Encoder{}.Assemble(tmpl, args)
		require.NoError(t, err, "template %s", tmpl)
		inst, err := x86asm.Decode(code, 64)
		require.NoError(t, err, "template %s bytes % x", tmpl, code)
		assert.Equal(t, len(code), inst.Len, "template %s bytes % x", tmpl, code)
	}
}

// sampleArgs builds arguments that every parameter accepts.
func sampleArgs(tmpl *Template) []Argument {
	args := make([]Argument, len(tmpl.Params))
	for i, p := range tmpl.Params {
		switch p.Kind {
		case KindRegister:
			r, _ := p.Registers.Lookup(3, true)
			if p.Role == RoleIndex {
				r, _ = p.Registers.Lookup(6, true)
			}
			args[i] = r
		case KindScale:
			args[i] = Scale2
		case KindImmediate:
			args[i] = Immediate{Value: 0x12, Width: p.Width, Signed: p.Signed}
		case KindDisplacement:
			args[i] = Displacement{Value: -4, Width: p.Width}
		case KindRelative:
			args[i] = Relative{Offset: 6, Width: p.Width}
		}
	}
	return args
}

func TestEncoderErrors(t *testing.T) {
	_, err := Encoder{}.Assemble(firstTemplate(t, "mov", W8, FormRegister), []Argument{AH, SIL})
	assert.ErrorIs(t, err, vmerrors.ErrEncoding)

	_, err = Encoder{}.Assemble(firstTemplate(t, "mov", W64, FormIndirect), []Argument{RSP, RAX})
	assert.ErrorIs(t, err, vmerrors.ErrEncoding)

	_, err = Encoder{}.Assemble(firstTemplate(t, "mov", W64, FormDisp8), []Argument{RBX, Disp8(300), RAX})
	assert.ErrorIs(t, err, vmerrors.ErrValueOutOfRange)

	_, err = Encoder{}.Assemble(firstTemplate(t, "mov", W64, FormDisp8), []Argument{RBX, Imm(3, W8), RAX})
	assert.ErrorIs(t, err, vmerrors.ErrArgumentKind)

	ret := DefaultTable().ByMnemonic("ret")[0]
	_, err = Encoder{}.Assemble(ret, []Argument{RAX})
	assert.ErrorIs(t, err, vmerrors.ErrArgumentCount)

	_, _, err = DefaultTable().Select(Encoder{}, "mov", W64, FormRIP, RAX, RBX)
	assert.Error(t, err)
}

func TestHighByteWithoutREX(t *testing.T) {
	code, err := Encoder{}.Assemble(firstTemplate(t, "mov", W8, FormRegister), []Argument{AH, AL})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x88, 0xC4}, code)
}

func firstTemplate(t *testing.T, mnemonic string, size Width, form Form) *Template {
	t.Helper()
	for _, tmpl := range DefaultTable().ByMnemonic(mnemonic) {
		if tmpl.OperandSize == size && tmpl.Form == form {
			return tmpl
		}
	}
	t.Fatalf("no template %s %d %s", mnemonic, size, form)
	return nil
}
