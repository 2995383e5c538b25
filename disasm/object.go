package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beehive-lab/Maxine-VM-sub091/x86"
)

// Object is one element of a disassembly: an instruction or inline data.
type Object interface {
	Start() int
	End() int
	StartAddress() uint64
	Bytes() []byte
	Text(labels Labels) string
}

// Instruction is a verified decoded instruction. Assembling Template with
// Args reproduces Raw.
type Instruction struct {
	Position int
	Address  uint64
	Raw      []byte
	Template *x86.Template
	Args     []x86.Argument
}

func (i *Instruction) Start() int           { return i.Position }
func (i *Instruction) End() int             { return i.Position + len(i.Raw) }
func (i *Instruction) StartAddress() uint64 { return i.Address }
func (i *Instruction) Bytes() []byte        { return i.Raw }
func (i *Instruction) Mnemonic() string     { return i.Template.Mnemonic }

// nextAddress is the address relative offsets are computed from.
func (i *Instruction) nextAddress() uint64 { return i.Address + uint64(len(i.Raw)) }

// Targets returns the addresses referenced by relative branches and
// rip-relative memory operands.
func (i *Instruction) Targets() []uint64 {
	var out []uint64
	for n, p := range i.Template.Params {
		switch a := i.Args[n].(type) {
		case x86.Relative:
			out = append(out, i.nextAddress()+uint64(a.Offset))
		case x86.Displacement:
			if p.Role == x86.RoleRIP {
				out = append(out, i.nextAddress()+uint64(a.Value))
			}
		}
	}
	return out
}

// ForwardJump reports the target position of an unconditional jmp with a
// non-negative offset.
func (i *Instruction) ForwardJump() (int, bool) {
	if i.Template.Mnemonic != "jmp" || len(i.Args) != 1 {
		return 0, false
	}
	rel, ok := i.Args[0].(x86.Relative)
	if !ok || rel.Offset < 0 {
		return 0, false
	}
	return i.End() + int(rel.Offset), true
}

// InlineKind classifies inline data.
type InlineKind uint8

const (
	// Raw bytes skipped to resynchronize on a known instruction start.
	Raw InlineKind = iota
	// Invalid is a single byte no template decodes.
	Invalid
	// JumpTable holds 32-bit offsets relative to the start of the table.
	JumpTable
	// ASCII holds character data.
	ASCII
)

func (k InlineKind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Invalid:
		return "invalid"
	case JumpTable:
		return "jumptable"
	case ASCII:
		return "ascii"
	}
	return "unknown"
}

// InlineData is a run of bytes in the code stream that is not an instruction.
type InlineData struct {
	Kind     InlineKind
	Position int
	Address  uint64
	Data     []byte
}

func (d *InlineData) Start() int           { return d.Position }
func (d *InlineData) End() int             { return d.Position + len(d.Data) }
func (d *InlineData) StartAddress() uint64 { return d.Address }
func (d *InlineData) Bytes() []byte        { return d.Data }

// Entries returns the target addresses of a jump table.
func (d *InlineData) Entries() []uint64 {
	if d.Kind != JumpTable {
		return nil
	}
	out := make([]uint64, 0, len(d.Data)/4)
	for n := 0; n+4 <= len(d.Data); n += 4 {
		off := int32(uint32(d.Data[n]) | uint32(d.Data[n+1])<<8 | uint32(d.Data[n+2])<<16 | uint32(d.Data[n+3])<<24)
		out = append(out, d.Address+uint64(int64(off)))
	}
	return out
}

func (d *InlineData) Text(labels Labels) string {
	switch d.Kind {
	case JumpTable:
		entries := d.Entries()
		parts := make([]string, len(entries))
		for n, target := range entries {
			parts[n] = labels.prefix(target) + fmt.Sprintf("0x%x", target)
		}
		return ".jumptable " + strings.Join(parts, ", ")
	case ASCII:
		return ".ascii " + strconv.Quote(string(d.Data))
	}
	parts := make([]string, len(d.Data))
	for n, b := range d.Data {
		parts[n] = fmt.Sprintf("0x%02x", b)
	}
	return ".byte " + strings.Join(parts, ", ")
}

// Label names an instruction start that is also a branch, rip-relative or
// jump table target.
type Label struct {
	Name     string
	Address  uint64
	Position int
}

// Labels maps addresses to labels.
type Labels map[uint64]*Label

// prefix returns "L1: " when address is labelled.
func (l Labels) prefix(address uint64) string {
	if lbl, ok := l[address]; ok {
		return lbl.Name + ": "
	}
	return ""
}
