package disasm

import (
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/x86"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleArgs builds arguments that every parameter of tmpl accepts.
func sampleArgs(tmpl *x86.Template) []x86.Argument {
	args := make([]x86.Argument, len(tmpl.Params))
	for i, p := range tmpl.Params {
		switch p.Kind {
		case x86.KindRegister:
			r, _ := p.Registers.Lookup(3, true)
			if p.Role == x86.RoleIndex {
				r, _ = p.Registers.Lookup(6, true)
			}
			args[i] = r
		case x86.KindScale:
			args[i] = x86.Scale2
		case x86.KindImmediate:
			args[i] = x86.Immediate{Value: 0x12, Width: p.Width, Signed: p.Signed}
		case x86.KindDisplacement:
			args[i] = x86.Displacement{Value: -4, Width: p.Width}
		case x86.KindRelative:
			args[i] = x86.Relative{Offset: 6, Width: p.Width}
		}
	}
	return args
}

func TestDecodeEveryTemplate(t *testing.T) {
	tb := x86.DefaultTable()
	asm := x86.Encoder{}
	d := New(Options{Table: tb, Strict: true})
	for _, tmpl := range tb.Templates() {
		if tmpl.OpcodeLen == 0 || len(tmpl.Params) == 0 {
			continue
		}
		code, err := asm.Assemble(tmpl, sampleArgs(tmpl))
		require.NoError(t, err, "template %s", tmpl)

		obj, err := d.DecodeOne(code, 0)
		require.NoError(t, err, "template %s bytes % x", tmpl, code)
		inst, ok := obj.(*Instruction)
		require.True(t, ok, "template %s decoded to %T", tmpl, obj)
		assert.Equal(t, code, inst.Raw, "template %s", tmpl)

		again, err := asm.Assemble(inst.Template, inst.Args)
		require.NoError(t, err, "template %s decoded as %s", tmpl, inst.Template)
		assert.Equal(t, code, again, "template %s decoded as %s", tmpl, inst.Template)
	}
}
