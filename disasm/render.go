package disasm

import (
	"fmt"
	"strings"

	"github.com/beehive-lab/Maxine-VM-sub091/x86"
)

// Text renders the instruction as "mnemonic op1, op2". Parameters and
// arguments are walked together; consecutive memory parameters form a single
// memory operand.
func (i *Instruction) Text(labels Labels) string {
	t := i.Template
	var ops []string
	if t.Leading != "" {
		ops = append(ops, t.Leading)
	}
	qualify := t.Form.Memory() && !t.HasRegisterOperand()
	for p := 0; p < len(t.Params); {
		if !t.Params[p].Role.Memory() {
			ops = append(ops, i.operandText(i.Args[p], labels))
			p++
			continue
		}
		end := p
		for end < len(t.Params) && t.Params[end].Role.Memory() {
			end++
		}
		ops = append(ops, i.memoryText(t.Params[p:end], i.Args[p:end], labels, qualify))
		p = end
	}
	if t.Trailing != "" {
		ops = append(ops, t.Trailing)
	}
	if len(ops) == 0 {
		return t.Mnemonic
	}
	return t.Mnemonic + " " + strings.Join(ops, ", ")
}

func (i *Instruction) operandText(arg x86.Argument, labels Labels) string {
	switch a := arg.(type) {
	case x86.Relative:
		return labels.prefix(i.nextAddress()+uint64(a.Offset)) + a.String()
	default:
		return a.String()
	}
}

func (i *Instruction) memoryText(params []x86.Parameter, args []x86.Argument, labels Labels, qualify bool) string {
	var (
		base, index string
		disp        *x86.Displacement
		b           strings.Builder
	)
	scale := x86.Scale1
	if qualify {
		if q := i.Template.OperandSize.Qualifier(); q != "" {
			b.WriteString(q)
			b.WriteByte(' ')
		}
	}
	for n, p := range params {
		switch p.Role {
		case x86.RoleBase:
			base = args[n].String()
		case x86.RoleIndex:
			index = args[n].String()
		case x86.RoleScale:
			scale = args[n].(x86.Scale)
		case x86.RoleDisp:
			d := args[n].(x86.Displacement)
			disp = &d
		case x86.RoleRIP:
			d := args[n].(x86.Displacement)
			ip := "rip"
			if i.Template.AddressSize32 {
				ip = "eip"
			}
			b.WriteString(labels.prefix(i.nextAddress() + uint64(d.Value)))
			fmt.Fprintf(&b, "[%s %s]", ip, d)
			return b.String()
		case x86.RoleAbsolute:
			d := args[n].(x86.Displacement)
			fmt.Fprintf(&b, "[0x%x]", uint32(d.Value))
			return b.String()
		}
	}
	if index != "" {
		b.WriteString(base)
		b.WriteByte('[')
		b.WriteString(index)
		if scale != x86.Scale1 {
			fmt.Fprintf(&b, " * %d", uint8(scale))
		}
	} else {
		b.WriteByte('[')
		b.WriteString(base)
	}
	if disp != nil {
		fmt.Fprintf(&b, " %s", disp)
	}
	b.WriteByte(']')
	return b.String()
}
