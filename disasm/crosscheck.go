package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Mismatch records an instruction whose length disagrees with an independent
// decoder, or which that decoder rejects.
type Mismatch struct {
	Position    int
	Address     uint64
	Text        string
	Length      int
	Theirs      string
	TheirLength int
	Err         error
}

func (m Mismatch) String() string {
	if m.Err != nil {
		return fmt.Sprintf("0x%04x: %s (%d bytes): %v", m.Address, m.Text, m.Length, m.Err)
	}
	return fmt.Sprintf("0x%04x: %s (%d bytes) vs %s (%d bytes)", m.Address, m.Text, m.Length, m.Theirs, m.TheirLength)
}

// CrossCheck decodes every instruction of l with x86asm in 64-bit mode and
// returns those whose lengths differ. Prefix pseudo-instructions are skipped.
func CrossCheck(l *Listing) []Mismatch {
	var out []Mismatch
	for _, inst := range l.Instructions() {
		if inst.Template.Prefix {
			continue
		}
		m := Mismatch{
			Position: inst.Position,
			Address:  inst.Address,
			Text:     inst.Text(l.Labels),
			Length:   len(inst.Raw),
		}
		theirs, err := x86asm.Decode(l.code[inst.Position:], 64)
		if err != nil {
			m.Err = err
			out = append(out, m)
			continue
		}
		if theirs.Len != len(inst.Raw) {
			m.Theirs = x86asm.IntelSyntax(theirs, inst.Address, nil)
			m.TheirLength = theirs.Len
			out = append(out, m)
		}
	}
	return out
}
